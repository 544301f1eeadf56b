// internal/engine/config.go
package engine

import "time"

// Config holds the completion-inference tunables. Every value can change at
// runtime through UpdateConfig; changes take effect at the next timer arming
// or threshold check, never retroactively on already-armed timers.
type Config struct {
	InactivityTimeout            time.Duration
	SummaryMessageTimeout        time.Duration
	TaskCompletionTimeout        time.Duration
	DelayedTaskCompletionTimeout time.Duration
	MinTaskCost                  float64
	MinTaskMessages              int
	EnableProgress               bool
	ProgressCheckInterval        time.Duration
	MinProgressCost              float64
	MinProgressDuration          time.Duration
}

// DefaultConfig returns the stock tuning: a task completes after 3s of
// assistant silence (confirmed again at 30s), a session after 5min of
// inactivity or 5s after a summary message.
func DefaultConfig() Config {
	return Config{
		InactivityTimeout:            5 * time.Minute,
		SummaryMessageTimeout:        5 * time.Second,
		TaskCompletionTimeout:        3 * time.Second,
		DelayedTaskCompletionTimeout: 30 * time.Second,
		MinTaskCost:                  0.01,
		MinTaskMessages:              1,
		EnableProgress:               true,
		ProgressCheckInterval:        10 * time.Second,
		MinProgressCost:              0.02,
		MinProgressDuration:          15 * time.Second,
	}
}

// ConfigUpdate is a partial config; nil fields keep their current value.
type ConfigUpdate struct {
	InactivityTimeout            *time.Duration
	SummaryMessageTimeout        *time.Duration
	TaskCompletionTimeout        *time.Duration
	DelayedTaskCompletionTimeout *time.Duration
	MinTaskCost                  *float64
	MinTaskMessages              *int
	EnableProgress               *bool
	ProgressCheckInterval        *time.Duration
	MinProgressCost              *float64
	MinProgressDuration          *time.Duration
}

func (c Config) merged(u ConfigUpdate) Config {
	if u.InactivityTimeout != nil {
		c.InactivityTimeout = *u.InactivityTimeout
	}
	if u.SummaryMessageTimeout != nil {
		c.SummaryMessageTimeout = *u.SummaryMessageTimeout
	}
	if u.TaskCompletionTimeout != nil {
		c.TaskCompletionTimeout = *u.TaskCompletionTimeout
	}
	if u.DelayedTaskCompletionTimeout != nil {
		c.DelayedTaskCompletionTimeout = *u.DelayedTaskCompletionTimeout
	}
	if u.MinTaskCost != nil {
		c.MinTaskCost = *u.MinTaskCost
	}
	if u.MinTaskMessages != nil {
		c.MinTaskMessages = *u.MinTaskMessages
	}
	if u.EnableProgress != nil {
		c.EnableProgress = *u.EnableProgress
	}
	if u.ProgressCheckInterval != nil {
		c.ProgressCheckInterval = *u.ProgressCheckInterval
	}
	if u.MinProgressCost != nil {
		c.MinProgressCost = *u.MinProgressCost
	}
	if u.MinProgressDuration != nil {
		c.MinProgressDuration = *u.MinProgressDuration
	}
	return c
}

// sanitize clamps negative values so a bad update can never arm a timer in
// the past. Returns the names of the fields it had to fix.
func (c *Config) sanitize() []string {
	var fixed []string
	clamp := func(d *time.Duration, name string) {
		if *d < 0 {
			*d = 0
			fixed = append(fixed, name)
		}
	}
	clamp(&c.InactivityTimeout, "inactivity_timeout")
	clamp(&c.SummaryMessageTimeout, "summary_message_timeout")
	clamp(&c.TaskCompletionTimeout, "task_completion_timeout")
	clamp(&c.DelayedTaskCompletionTimeout, "delayed_task_completion_timeout")
	clamp(&c.ProgressCheckInterval, "progress_check_interval")
	clamp(&c.MinProgressDuration, "min_progress_duration")
	if c.MinTaskCost < 0 {
		c.MinTaskCost = 0
		fixed = append(fixed, "min_task_cost")
	}
	if c.MinProgressCost < 0 {
		c.MinProgressCost = 0
		fixed = append(fixed, "min_progress_cost")
	}
	if c.MinTaskMessages < 0 {
		c.MinTaskMessages = 0
		fixed = append(fixed, "min_task_messages")
	}
	return fixed
}
