// internal/digest/digest.go
package digest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/user/taskping/internal/history"
	"github.com/user/taskping/internal/notify"
	"github.com/user/taskping/internal/types"
)

// Source provides the aggregate activity stats a digest reports on.
// Satisfied by *history.Store.
type Source interface {
	Summary(ctx context.Context, since time.Time) (*history.DigestStats, error)
}

// Sink receives the rendered digest. Satisfied by *notify.Dispatcher.
type Sink interface {
	Broadcast(msg *notify.Message) error
}

// cronParser accepts both standard 5-field cron expressions and 6-field
// expressions with an optional seconds field.
var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

const queryTimeout = 10 * time.Second

// window is how far back each digest looks.
const window = 24 * time.Hour

// Scheduler fires a periodic activity digest through the notification sink.
type Scheduler struct {
	source   Source
	sink     Sink
	schedule string
	cron     *cron.Cron
}

// New creates a digest scheduler. The schedule is a cron expression,
// e.g. "0 9 * * *" for every morning at nine.
func New(source Source, sink Sink, schedule string) *Scheduler {
	return &Scheduler{
		source:   source,
		sink:     sink,
		schedule: schedule,
		cron:     cron.New(cron.WithParser(cronParser)),
	}
}

// Start registers the digest job and starts the cron ticker.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, s.run); err != nil {
		return fmt.Errorf("invalid digest schedule %q: %w", s.schedule, err)
	}
	s.cron.Start()
	slog.Info("digest scheduled", "schedule", s.schedule)
	return nil
}

// Stop stops the cron ticker.
func (s *Scheduler) Stop() {
	s.cron.Stop()
}

// run queries the last day of activity and broadcasts the summary. Quiet
// days produce no notification.
func (s *Scheduler) run() {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	stats, err := s.source.Summary(ctx, time.Now().Add(-window))
	if err != nil {
		slog.Error("digest query failed", "error", err)
		return
	}
	if stats.Tasks == 0 && stats.Sessions == 0 {
		slog.Debug("digest skipped, no activity")
		return
	}
	if err := s.sink.Broadcast(Render(stats)); err != nil {
		slog.Error("digest broadcast failed", "error", err)
	}
}

// Render formats digest stats as a notification message.
func Render(stats *history.DigestStats) *notify.Message {
	var b strings.Builder
	fmt.Fprintf(&b, "%d tasks ($%.2f) · %d sessions ($%.2f)",
		stats.Tasks, stats.TaskCost, stats.Sessions, stats.SessionCost)
	if len(stats.Projects) > 0 {
		fmt.Fprintf(&b, "\nProjects: %s", strings.Join(stats.Projects, ", "))
	}
	return &notify.Message{
		ID:    types.NewNotificationID(),
		Kind:  notify.KindDigest,
		Title: "Daily digest",
		Body:  b.String(),
	}
}
