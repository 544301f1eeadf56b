package main

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/user/taskping/internal/notify"
)

func init() {
	rootCmd.AddCommand(muteCmd, unmuteCmd, mutesCmd)
	muteCmd.Flags().Duration("for", 0, "mute duration, e.g. 2h (default: until unmuted)")
	muteCmd.Flags().String("reason", "", "note shown in the mute list")
}

func muteStore() *notify.MuteStore {
	cfg := loadConfig()
	return notify.NewMuteStore(filepath.Join(cfg.DataDir, "mutes.json"))
}

var muteCmd = &cobra.Command{
	Use:   "mute <project>",
	Short: "Silence notifications for a project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store := muteStore()

		m := &notify.Mute{Project: args[0]}
		if d, _ := cmd.Flags().GetDuration("for"); d > 0 {
			m.Until = time.Now().Add(d)
		}
		m.Reason, _ = cmd.Flags().GetString("reason")

		if err := store.Set(m); err != nil {
			return fmt.Errorf("mute project: %w", err)
		}
		if m.Until.IsZero() {
			fmt.Fprintf(os.Stdout, "Muted %s.\n", m.Project)
		} else {
			fmt.Fprintf(os.Stdout, "Muted %s until %s.\n", m.Project, m.Until.Format("2006-01-02 15:04"))
		}
		return nil
	},
}

var unmuteCmd = &cobra.Command{
	Use:   "unmute <project>",
	Short: "Restore notifications for a project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store := muteStore()
		if err := store.Remove(args[0]); err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "Unmuted %s.\n", args[0])
		return nil
	},
}

var mutesCmd = &cobra.Command{
	Use:   "mutes",
	Short: "List muted projects",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store := muteStore()

		// Drop expired entries while we are here.
		if _, err := store.Prune(time.Now()); err != nil {
			return fmt.Errorf("prune mutes: %w", err)
		}

		mutes, err := store.List()
		if err != nil {
			return fmt.Errorf("list mutes: %w", err)
		}
		if len(mutes) == 0 {
			fmt.Println("No muted projects.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "PROJECT\tUNTIL\tREASON")
		for _, m := range mutes {
			until := "indefinite"
			if !m.Until.IsZero() {
				until = m.Until.Local().Format("2006-01-02 15:04")
			}
			fmt.Fprintf(w, "%s\t%s\t%s\n", m.Project, until, m.Reason)
		}
		return w.Flush()
	},
}
