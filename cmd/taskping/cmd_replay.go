package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/spf13/cobra"

	"github.com/user/taskping/internal/engine"
	"github.com/user/taskping/internal/notify"
	"github.com/user/taskping/internal/pricing"
	"github.com/user/taskping/internal/types"
	"github.com/user/taskping/pkg/transcript"
)

func init() {
	rootCmd.AddCommand(replayCmd)
	replayCmd.Flags().Bool("settle", true, "advance past every timeout after the last event")
}

var replayCmd = &cobra.Command{
	Use:   "replay <transcript.jsonl>",
	Short: "Re-run a transcript through the engine on a simulated clock",
	Long: `replay parses a transcript file and feeds it to the completion engine on
a mock clock set from the event timestamps, so timers fire exactly as they
would have live. Rendered notifications go to stdout. Nothing is delivered
to real channels and nothing is recorded.`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

func runReplay(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	setupLogging(cfg)

	events, skipped, err := transcript.ReadFile(args[0])
	if err != nil {
		return err
	}
	if skipped > 0 {
		slog.Warn("skipped malformed transcript lines", "count", skipped)
	}
	if len(events) == 0 {
		fmt.Println("No events in transcript.")
		return nil
	}

	mock := clock.NewMock()
	for i := range events {
		if !events[i].Timestamp.IsZero() {
			mock.Set(events[i].Timestamp)
			break
		}
	}

	resolver := pricing.NewResolver(pricing.Options{
		DefaultModel:         cfg.Pricing.DefaultModel,
		EstimateMissingUsage: cfg.Pricing.EstimateMissingUsage,
	})
	eng := engine.New(cfg.EngineConfig(), mock, resolver)

	console := notify.NewConsole(os.Stdout)
	signal := types.CompletionType(cfg.Notify.CompletionSignal)
	eng.Subscribe(func(n types.Notification) {
		msg, ok := notify.Render(n, signal)
		if !ok {
			return
		}
		if err := console.Send(context.Background(), msg); err != nil {
			slog.Warn("render failed", "error", err)
		}
	})

	for i := range events {
		ev := &events[i]
		if !ev.Timestamp.IsZero() && ev.Timestamp.After(mock.Now()) {
			// Fires every timer due before this event, in deadline order.
			mock.Set(ev.Timestamp)
		}
		eng.Process(ev)
	}

	if settle, _ := cmd.Flags().GetBool("settle"); settle {
		ec := cfg.EngineConfig()
		mock.Add(ec.DelayedTaskCompletionTimeout + ec.InactivityTimeout + time.Second)
	}

	fmt.Fprintf(os.Stdout, "Replayed %d events.\n", len(events))
	return nil
}
