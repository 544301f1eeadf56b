// internal/notify/console.go
package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
)

var (
	consoleTime  = color.New(color.Faint)
	taskMark     = color.New(color.FgGreen, color.Bold)
	progressMark = color.New(color.FgCyan)
	sessionMark  = color.New(color.FgYellow, color.Bold)
	titleStyle   = color.New(color.Bold)
)

// Console prints notifications to a terminal. Colors degrade automatically
// when the output is not a TTY.
type Console struct {
	out io.Writer
}

// NewConsole creates a console channel. A nil writer means stdout.
func NewConsole(out io.Writer) *Console {
	if out == nil {
		out = os.Stdout
	}
	return &Console{out: out}
}

func (c *Console) Name() string { return "console" }

func (c *Console) Send(_ context.Context, msg *Message) error {
	mark := progressMark.Sprint("…")
	switch msg.Kind {
	case KindTask:
		mark = taskMark.Sprint("✔")
	case KindSession:
		mark = sessionMark.Sprint("■")
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s %s\n",
		consoleTime.Sprint(time.Now().Format("15:04:05")),
		mark,
		titleStyle.Sprint(msg.Title))
	for _, line := range strings.Split(msg.Body, "\n") {
		fmt.Fprintf(&b, "           %s\n", line)
	}
	_, err := io.WriteString(c.out, b.String())
	return err
}
