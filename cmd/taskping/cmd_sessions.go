package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(sessionsCmd)
	sessionsCmd.AddCommand(sessionsListCmd, sessionsInfoCmd, sessionsFlushCmd)
	sessionsCmd.PersistentFlags().Bool("json", false, "print the raw API response")
}

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Inspect the running daemon's tracked sessions",
}

// apiRequest calls the daemon's debug API and returns the response body.
func apiRequest(method, path string) ([]byte, error) {
	cfg := loadConfig()
	client := &http.Client{Timeout: 5 * time.Second}
	req, err := http.NewRequest(method, "http://"+cfg.HTTP.Listen+path, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("daemon not reachable at %s (is `taskping watch` running?): %w", cfg.HTTP.Listen, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("daemon returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}

// apiSession mirrors the debug API's session snapshot.
type apiSession struct {
	SessionID      string   `json:"session_id"`
	Project        string   `json:"project"`
	StartedAt      string   `json:"started_at"`
	LastActivityAt string   `json:"last_activity_at"`
	Summary        string   `json:"summary"`
	TotalCost      float64  `json:"total_cost"`
	EventCount     int      `json:"event_count"`
	UserTurns      int      `json:"user_turns"`
	AssistantTurns int      `json:"assistant_turns"`
	TaskInProgress bool     `json:"task_in_progress"`
	TaskStartedAt  string   `json:"task_started_at"`
	TaskCost       float64  `json:"task_cost"`
	TaskMessages   int      `json:"task_messages"`
	ArmedTimers    []string `json:"armed_timers"`
	Idle           bool     `json:"idle"`
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tracked sessions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		body, err := apiRequest(http.MethodGet, "/api/sessions")
		if err != nil {
			return err
		}
		if raw, _ := cmd.Flags().GetBool("json"); raw {
			fmt.Println(string(body))
			return nil
		}

		var sessions []apiSession
		if err := json.Unmarshal(body, &sessions); err != nil {
			return fmt.Errorf("decode sessions: %w", err)
		}
		if len(sessions) == 0 {
			fmt.Println("No active sessions.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tPROJECT\tCOST\tTASK\tTIMERS\tIDLE")
		for _, s := range sessions {
			task := "-"
			if s.TaskInProgress {
				task = fmt.Sprintf("$%.2f/%dmsg", s.TaskCost, s.TaskMessages)
			}
			fmt.Fprintf(w, "%s\t%s\t$%.2f\t%s\t%s\t%v\n",
				shortID(s.SessionID),
				s.Project,
				s.TotalCost,
				task,
				strings.Join(s.ArmedTimers, ","),
				s.Idle,
			)
		}
		return w.Flush()
	},
}

var sessionsInfoCmd = &cobra.Command{
	Use:   "info <session-id>",
	Short: "Show one session in detail",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		body, err := apiRequest(http.MethodGet, "/api/sessions/"+args[0])
		if err != nil {
			return err
		}
		if raw, _ := cmd.Flags().GetBool("json"); raw {
			fmt.Println(string(body))
			return nil
		}

		var s apiSession
		if err := json.Unmarshal(body, &s); err != nil {
			return fmt.Errorf("decode session: %w", err)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintf(w, "Session:\t%s\n", s.SessionID)
		fmt.Fprintf(w, "Project:\t%s\n", s.Project)
		fmt.Fprintf(w, "Started:\t%s\n", s.StartedAt)
		fmt.Fprintf(w, "Last activity:\t%s\n", s.LastActivityAt)
		fmt.Fprintf(w, "Total cost:\t$%.4f\n", s.TotalCost)
		fmt.Fprintf(w, "Events:\t%d (%d user, %d assistant)\n", s.EventCount, s.UserTurns, s.AssistantTurns)
		if s.TaskInProgress {
			fmt.Fprintf(w, "Task:\topen since %s, $%.4f, %d messages\n", s.TaskStartedAt, s.TaskCost, s.TaskMessages)
		} else {
			fmt.Fprintf(w, "Task:\tnone\n")
		}
		fmt.Fprintf(w, "Timers:\t%s\n", strings.Join(s.ArmedTimers, ", "))
		fmt.Fprintf(w, "Idle:\t%v\n", s.Idle)
		if s.Summary != "" {
			fmt.Fprintf(w, "Summary:\t%s\n", s.Summary)
		}
		return w.Flush()
	},
}

var sessionsFlushCmd = &cobra.Command{
	Use:   "flush",
	Short: "Force-complete every tracked session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		body, err := apiRequest(http.MethodPost, "/api/flush")
		if err != nil {
			return err
		}

		var resp map[string]int
		if err := json.Unmarshal(body, &resp); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		fmt.Fprintf(os.Stdout, "Flushed %d sessions.\n", resp["flushed"])
		return nil
	},
}
