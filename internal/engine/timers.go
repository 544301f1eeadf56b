// internal/engine/timers.go
package engine

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/user/taskping/internal/types"
)

// lookup re-fetches a session for a timer fire. A missing id or a stale
// epoch means the session completed (and was possibly recreated) after the
// timer was armed; the fire must be ignored.
func (e *Engine) lookup(id types.SessionID, epoch uint64) *session {
	s, ok := e.sessions[id]
	if !ok || s.epoch != epoch {
		return nil
	}
	return s
}

func (e *Engine) onTaskTimer(id types.SessionID, epoch, seq uint64, ct types.CompletionType) {
	e.mu.Lock()
	var batch []types.Notification
	if s := e.lookup(id, epoch); s != nil && s.taskSeq == seq && s.taskLive() {
		switch ct {
		case types.CompletionImmediate:
			s.taskImmediate = nil
		case types.CompletionDelayed:
			s.taskDelayed = nil
		}
		batch = e.completeTaskLocked(s, ct)
	}
	e.mu.Unlock()
	e.emit(batch)
}

// completeTaskLocked closes the live task at the given confidence. An
// immediate completion reports and leaves the task accumulating — the
// delayed handle is still armed and reports the same task again as its
// authoritative close. Delayed fires and manual flushes are terminal: they
// cancel the remaining task handles and reset the sub-state.
func (e *Engine) completeTaskLocked(s *session, ct types.CompletionType) []types.Notification {
	terminal := ct == types.CompletionDelayed

	endTask := func() {
		stopTimer(&s.taskImmediate)
		stopTimer(&s.taskDelayed)
		stopTimer(&s.progress)
		s.resetTask()
	}

	if s.taskCost < e.cfg.MinTaskCost || s.taskMessages < e.cfg.MinTaskMessages {
		slog.Debug("task below thresholds, not reported",
			"session", s.id.Short(), "cost", s.taskCost, "messages", s.taskMessages)
		if terminal {
			endTask()
		}
		return nil
	}

	duration := s.lastAssistantAt.Sub(s.taskStartedAt)
	if duration < 0 {
		slog.Warn("negative task duration clamped", "session", s.id.Short(), "duration", duration)
		duration = 0
	}
	n := types.TaskCompleted{
		SessionID:         s.id,
		ProjectName:       s.project,
		TaskCost:          s.taskCost,
		TaskDuration:      duration,
		AssistantMessages: s.taskMessages,
		LastMessageUUID:   s.lastAssistantUUID,
		Timestamp:         e.clock.Now(),
		CompletionType:    ct,
	}
	slog.Info("task completed", "session", s.id.Short(), "project", s.project,
		"confidence", string(ct), "cost", s.taskCost, "messages", s.taskMessages)
	if terminal {
		endTask()
	}
	return []types.Notification{n}
}

func (e *Engine) onProgressTick(id types.SessionID, epoch uint64) {
	e.mu.Lock()
	s := e.lookup(id, epoch)
	if s == nil {
		e.mu.Unlock()
		return
	}
	if !e.cfg.EnableProgress || !s.taskLive() {
		// Self-cancel: no task running, stop rescheduling.
		s.progress = nil
		e.mu.Unlock()
		return
	}

	var batch []types.Notification
	now := e.clock.Now()
	elapsed := now.Sub(s.taskStartedAt)
	if elapsed < 0 {
		elapsed = 0
	}
	dueAgain := s.lastProgressAt.IsZero() || now.Sub(s.lastProgressAt) >= e.cfg.ProgressCheckInterval
	if elapsed >= e.cfg.MinProgressDuration && s.taskCost >= e.cfg.MinProgressCost && dueAgain {
		batch = append(batch, types.TaskProgress{
			SessionID:          s.id,
			ProjectName:        s.project,
			CurrentCost:        s.taskCost,
			CurrentDuration:    elapsed,
			AssistantMessages:  s.taskMessages,
			IsActive:           true,
			EstimatedRemaining: e.estimateRemaining(s, now),
		})
		s.lastProgressAt = now
	}
	e.armProgress(s)
	e.mu.Unlock()
	e.emit(batch)
}

// estimateRemaining guesses how much longer the task will run from the only
// signal available, its own message cadence. Inside twice the average
// inter-message interval, assume one more beat; past that, the immediate
// timer is about to close the task anyway, so report what is left of it,
// capped at 5s.
func (e *Engine) estimateRemaining(s *session, now time.Time) *time.Duration {
	if s.taskMessages == 0 {
		return nil
	}
	avg := s.lastAssistantAt.Sub(s.taskStartedAt) / time.Duration(s.taskMessages)
	sinceLast := now.Sub(s.lastAssistantAt)

	var est time.Duration
	if sinceLast > 2*avg {
		est = e.cfg.TaskCompletionTimeout - sinceLast
		if est > 5*time.Second {
			est = 5 * time.Second
		}
		if est < 0 {
			est = 0
		}
	} else {
		est = 2 * avg
	}
	return &est
}

func (e *Engine) onInactivity(id types.SessionID, epoch uint64) {
	e.mu.Lock()
	var batch []types.Notification
	if s := e.lookup(id, epoch); s != nil {
		batch = e.completeSessionLocked(s, types.ReasonInactivity)
	}
	e.mu.Unlock()
	e.emit(batch)
}

func (e *Engine) onSummaryGrace(id types.SessionID, epoch uint64) {
	e.mu.Lock()
	var batch []types.Notification
	if s := e.lookup(id, epoch); s != nil {
		batch = e.completeSessionLocked(s, types.ReasonSummary)
	}
	e.mu.Unlock()
	e.emit(batch)
}

// completeSessionLocked closes and removes a session. The id is free for
// reuse afterwards; a later event carrying it starts over from scratch.
func (e *Engine) completeSessionLocked(s *session, reason types.CompletionReason) []types.Notification {
	s.stopAllTimers()

	summary := s.summary
	if summary == "" {
		summary = fmt.Sprintf("%d questions, %d responses", s.userTurns, s.assistantTurns)
	}
	duration := s.lastActivityAt.Sub(s.startedAt)
	if duration < 0 {
		slog.Warn("negative session duration clamped", "session", s.id.Short(), "duration", duration)
		duration = 0
	}
	n := types.SessionCompleted{
		SessionID:       s.id,
		ProjectName:     s.project,
		Summary:         summary,
		TotalCost:       s.totalCost,
		MessageCount:    s.eventCount,
		Duration:        duration,
		StartTime:       s.startedAt,
		EndTime:         s.lastActivityAt,
		LastMessageUUID: s.lastEventUUID,
		Reason:          reason,
	}
	slog.Info("session completed", "session", s.id.Short(), "project", s.project,
		"reason", string(reason), "cost", s.totalCost, "events", s.eventCount)
	delete(e.sessions, s.id)
	return []types.Notification{n}
}
