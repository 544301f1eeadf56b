// internal/config/config.go
package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/user/taskping/internal/engine"
)

// Config is the on-disk configuration, one JSON file for the daemon and
// every subcommand.
type Config struct {
	DataDir     string `json:"data_dir"`
	LogLevel    string `json:"log_level"`
	FlushOnExit bool   `json:"flush_on_exit"`
	Watch       struct {
		Root             string `json:"root"`
		ReplayExisting   bool   `json:"replay_existing"`
		RescanIntervalMS int    `json:"rescan_interval_ms"`
	} `json:"watch"`
	Engine struct {
		InactivityTimeoutMS            int     `json:"inactivity_timeout_ms"`
		SummaryMessageTimeoutMS        int     `json:"summary_message_timeout_ms"`
		TaskCompletionTimeoutMS        int     `json:"task_completion_timeout_ms"`
		DelayedTaskCompletionTimeoutMS int     `json:"delayed_task_completion_timeout_ms"`
		MinTaskCost                    float64 `json:"min_task_cost"`
		MinTaskMessages                int     `json:"min_task_messages"`
		EnableProgress                 bool    `json:"enable_progress"`
		ProgressCheckIntervalMS        int     `json:"progress_check_interval_ms"`
		MinProgressCost                float64 `json:"min_progress_cost"`
		MinProgressDurationMS          int     `json:"min_progress_duration_ms"`
	} `json:"engine"`
	Pricing struct {
		DefaultModel         string `json:"default_model"`
		EstimateMissingUsage bool   `json:"estimate_missing_usage"`
	} `json:"pricing"`
	Notify struct {
		CompletionSignal string `json:"completion_signal"`
		MaxConcurrent    int    `json:"max_concurrent"`
		Console          struct {
			Enabled bool `json:"enabled"`
		} `json:"console"`
		Desktop struct {
			Enabled bool `json:"enabled"`
		} `json:"desktop"`
		Telegram struct {
			Enabled bool   `json:"enabled"`
			Token   string `json:"token"`
			ChatID  int64  `json:"chat_id"`
		} `json:"telegram"`
	} `json:"notify"`
	History struct {
		Enabled bool   `json:"enabled"`
		Path    string `json:"path"`
	} `json:"history"`
	Digest struct {
		Enabled  bool   `json:"enabled"`
		Schedule string `json:"schedule"`
	} `json:"digest"`
	HTTP struct {
		Enabled bool   `json:"enabled"`
		Listen  string `json:"listen"`
	} `json:"http"`
}

// DefaultPath returns the standard config location, ~/.taskping/config.json.
func DefaultPath() string {
	return filepath.Join(os.Getenv("HOME"), ".taskping", "config.json")
}

func defaults() *Config {
	cfg := &Config{
		DataDir:     filepath.Join(os.Getenv("HOME"), ".taskping"),
		LogLevel:    "info",
		FlushOnExit: true,
	}
	cfg.Watch.Root = filepath.Join(os.Getenv("HOME"), ".claude", "projects")
	cfg.Watch.RescanIntervalMS = 30000
	cfg.Engine.InactivityTimeoutMS = 300000
	cfg.Engine.SummaryMessageTimeoutMS = 5000
	cfg.Engine.TaskCompletionTimeoutMS = 3000
	cfg.Engine.DelayedTaskCompletionTimeoutMS = 30000
	cfg.Engine.MinTaskCost = 0.01
	cfg.Engine.MinTaskMessages = 1
	cfg.Engine.EnableProgress = true
	cfg.Engine.ProgressCheckIntervalMS = 10000
	cfg.Engine.MinProgressCost = 0.02
	cfg.Engine.MinProgressDurationMS = 15000
	cfg.Pricing.DefaultModel = "claude-sonnet-4-20250514"
	cfg.Notify.CompletionSignal = "immediate"
	cfg.Notify.MaxConcurrent = 2
	cfg.Notify.Console.Enabled = true
	cfg.Notify.Desktop.Enabled = true
	cfg.History.Enabled = true
	cfg.Digest.Schedule = "0 9 * * *"
	cfg.HTTP.Enabled = true
	cfg.HTTP.Listen = "127.0.0.1:7878"
	return cfg
}

// Load reads the config file, creating it with defaults when missing.
// Environment variables override file values.
func Load(path string) (*Config, error) {
	cfg := defaults()

	// Load from file if exists, otherwise write defaults
	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	} else if os.IsNotExist(err) {
		if err := Save(path, cfg); err != nil {
			return nil, err
		}
	}

	// Override from env (highest precedence)
	if token := os.Getenv("TASKPING_TELEGRAM_TOKEN"); token != "" {
		cfg.Notify.Telegram.Token = token
	}
	if chat := os.Getenv("TASKPING_TELEGRAM_CHAT_ID"); chat != "" {
		id, err := strconv.ParseInt(chat, 10, 64)
		if err != nil {
			slog.Warn("ignoring invalid TASKPING_TELEGRAM_CHAT_ID", "value", chat)
		} else {
			cfg.Notify.Telegram.ChatID = id
		}
	}
	if level := os.Getenv("TASKPING_LOG_LEVEL"); level != "" {
		cfg.LogLevel = level
	}

	cfg.normalize()
	return cfg, nil
}

// normalize fills values an edited file may have blanked out. Defaults
// cover absent fields; this covers explicit zeros that would break things.
func (c *Config) normalize() {
	if c.DataDir == "" {
		c.DataDir = filepath.Join(os.Getenv("HOME"), ".taskping")
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Watch.Root == "" {
		c.Watch.Root = filepath.Join(os.Getenv("HOME"), ".claude", "projects")
	}
	if c.Watch.RescanIntervalMS <= 0 {
		c.Watch.RescanIntervalMS = 30000
	}
	if c.Pricing.DefaultModel == "" {
		c.Pricing.DefaultModel = "claude-sonnet-4-20250514"
	}
	if c.Notify.CompletionSignal == "" {
		c.Notify.CompletionSignal = "immediate"
	}
	if c.Notify.MaxConcurrent <= 0 {
		c.Notify.MaxConcurrent = 2
	}
	if c.History.Path == "" {
		c.History.Path = filepath.Join(c.DataDir, "history.db")
	}
	if c.Digest.Schedule == "" {
		c.Digest.Schedule = "0 9 * * *"
	}
	if c.HTTP.Listen == "" {
		c.HTTP.Listen = "127.0.0.1:7878"
	}
}

// EngineConfig converts the ms-valued file fields into engine tuning.
func (c *Config) EngineConfig() engine.Config {
	ms := func(v int) time.Duration { return time.Duration(v) * time.Millisecond }
	return engine.Config{
		InactivityTimeout:            ms(c.Engine.InactivityTimeoutMS),
		SummaryMessageTimeout:        ms(c.Engine.SummaryMessageTimeoutMS),
		TaskCompletionTimeout:        ms(c.Engine.TaskCompletionTimeoutMS),
		DelayedTaskCompletionTimeout: ms(c.Engine.DelayedTaskCompletionTimeoutMS),
		MinTaskCost:                  c.Engine.MinTaskCost,
		MinTaskMessages:              c.Engine.MinTaskMessages,
		EnableProgress:               c.Engine.EnableProgress,
		ProgressCheckInterval:        ms(c.Engine.ProgressCheckIntervalMS),
		MinProgressCost:              c.Engine.MinProgressCost,
		MinProgressDuration:          ms(c.Engine.MinProgressDurationMS),
	}
}

// RescanInterval returns the watch rescan cadence as a duration.
func (c *Config) RescanInterval() time.Duration {
	return time.Duration(c.Watch.RescanIntervalMS) * time.Millisecond
}

// Save writes the config atomically, creating the parent directory.
func Save(path string, cfg *Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	data = append(data, '\n')
	return writeAtomic(path, data)
}

func writeAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename config: %w", err)
	}
	return nil
}
