// internal/notify/desktop.go
package notify

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
)

// Desktop shows native desktop notifications: notify-send on Linux,
// osascript on macOS. Hosts with neither report ErrUnavailable.
type Desktop struct {
	goos     string
	lookPath func(string) (string, error)
}

// NewDesktop creates a desktop channel for the current host.
func NewDesktop() *Desktop {
	return &Desktop{goos: runtime.GOOS, lookPath: exec.LookPath}
}

func (d *Desktop) Name() string { return "desktop" }

// Available reports whether the host can show desktop notifications.
func (d *Desktop) Available() bool {
	_, err := d.tool()
	return err == nil
}

func (d *Desktop) tool() (string, error) {
	switch d.goos {
	case "linux":
		return d.lookPath("notify-send")
	case "darwin":
		return d.lookPath("osascript")
	default:
		return "", fmt.Errorf("unsupported platform %s", d.goos)
	}
}

func (d *Desktop) Send(ctx context.Context, msg *Message) error {
	tool, err := d.tool()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	var cmd *exec.Cmd
	switch d.goos {
	case "linux":
		cmd = exec.CommandContext(ctx, tool, "--app-name=taskping", msg.Title, msg.Body)
	case "darwin":
		script := fmt.Sprintf("display notification %s with title %s",
			appleQuote(msg.Body), appleQuote(msg.Title))
		cmd = exec.CommandContext(ctx, tool, "-e", script)
	default:
		return ErrUnavailable
	}

	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("desktop notify: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}

// appleQuote wraps s in AppleScript double quotes, escaping embedded
// quotes and backslashes.
func appleQuote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}
