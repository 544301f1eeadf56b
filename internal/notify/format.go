// internal/notify/format.go
package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/user/taskping/internal/types"
)

// Render turns an engine notification into a channel-agnostic message.
// Task completions are reported at two confidence levels; signal selects
// which one reaches humans, so a task never notifies twice. Returns false
// for notifications filtered out.
func Render(n types.Notification, signal types.CompletionType) (*Message, bool) {
	switch v := n.(type) {
	case types.TaskCompleted:
		if v.CompletionType != signal {
			return nil, false
		}
		body := fmt.Sprintf("%s · %d responses · %s",
			formatCost(v.TaskCost), v.AssistantMessages, formatDuration(v.TaskDuration))
		return &Message{
			ID:        types.NewNotificationID(),
			Kind:      KindTask,
			SessionID: v.SessionID,
			Project:   v.ProjectName,
			Title:     fmt.Sprintf("%s: task finished", v.ProjectName),
			Body:      body + "\nsession " + v.SessionID.Short(),
		}, true

	case types.TaskProgress:
		body := fmt.Sprintf("%s so far · %d responses · %s elapsed",
			formatCost(v.CurrentCost), v.AssistantMessages, formatDuration(v.CurrentDuration))
		if v.EstimatedRemaining != nil {
			body += fmt.Sprintf(" · ~%s left", formatDuration(*v.EstimatedRemaining))
		}
		return &Message{
			ID:        types.NewNotificationID(),
			Kind:      KindProgress,
			SessionID: v.SessionID,
			Project:   v.ProjectName,
			Title:     fmt.Sprintf("%s: still working", v.ProjectName),
			Body:      body,
		}, true

	case types.SessionCompleted:
		var b strings.Builder
		if v.Summary != "" {
			b.WriteString(v.Summary)
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%s total · %d messages · %s",
			formatCost(v.TotalCost), v.MessageCount, formatDuration(v.Duration))
		switch v.Reason {
		case types.ReasonInactivity:
			b.WriteString(" · idle timeout")
		case types.ReasonManual:
			b.WriteString(" · flushed")
		}
		return &Message{
			ID:        types.NewNotificationID(),
			Kind:      KindSession,
			SessionID: v.SessionID,
			Project:   v.ProjectName,
			Title:     fmt.Sprintf("%s: session complete", v.ProjectName),
			Body:      b.String(),
		}, true
	}
	return nil, false
}

func formatCost(v float64) string {
	if v > 0 && v < 0.01 {
		return fmt.Sprintf("$%.4f", v)
	}
	return fmt.Sprintf("$%.2f", v)
}

func formatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	d = d.Round(time.Second)
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	default:
		return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
	}
}
