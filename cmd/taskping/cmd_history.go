package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/user/taskping/internal/history"
)

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.AddCommand(historyTasksCmd, historySessionsCmd)
	historyCmd.PersistentFlags().Int("limit", 20, "maximum rows to show")
	historyCmd.PersistentFlags().String("project", "", "only show one project")
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Browse recorded completions",
}

// openHistory opens the sqlite store read-side. Migrations run first so the
// command works even before the daemon has ever written a row.
func openHistory(cmd *cobra.Command) (*history.Store, error) {
	cfg := loadConfig()
	store, err := history.New(cfg.History.Path)
	if err != nil {
		return nil, fmt.Errorf("open history store: %w", err)
	}
	if err := store.Migrate(cmd.Context()); err != nil {
		store.Close()
		return nil, fmt.Errorf("migrate history store: %w", err)
	}
	return store, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

var historyTasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "List recently completed tasks",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openHistory(cmd)
		if err != nil {
			return err
		}
		defer store.Close()

		limit, _ := cmd.Flags().GetInt("limit")
		project, _ := cmd.Flags().GetString("project")

		tasks, err := store.RecentTasks(context.Background(), project, limit)
		if err != nil {
			return fmt.Errorf("list tasks: %w", err)
		}
		if len(tasks) == 0 {
			fmt.Println("No completed tasks recorded.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "COMPLETED\tPROJECT\tCOST\tMSGS\tDURATION")
		for _, t := range tasks {
			fmt.Fprintf(w, "%s\t%s\t$%.4f\t%d\t%s\n",
				t.CompletedAt.Local().Format("2006-01-02 15:04:05"),
				t.Project,
				t.Cost,
				t.AssistantMessages,
				t.Duration.Round(100*time.Millisecond),
			)
		}
		return w.Flush()
	},
}

var historySessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List recently completed sessions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openHistory(cmd)
		if err != nil {
			return err
		}
		defer store.Close()

		limit, _ := cmd.Flags().GetInt("limit")
		project, _ := cmd.Flags().GetString("project")

		sessions, err := store.RecentSessions(context.Background(), project, limit)
		if err != nil {
			return fmt.Errorf("list sessions: %w", err)
		}
		if len(sessions) == 0 {
			fmt.Println("No completed sessions recorded.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ENDED\tPROJECT\tREASON\tCOST\tDURATION\tSUMMARY")
		for _, s := range sessions {
			fmt.Fprintf(w, "%s\t%s\t%s\t$%.4f\t%s\t%s\n",
				s.EndedAt.Local().Format("2006-01-02 15:04:05"),
				s.Project,
				s.Reason,
				s.TotalCost,
				s.Duration.Round(time.Second),
				truncate(s.Summary, 48),
			)
		}
		return w.Flush()
	},
}
