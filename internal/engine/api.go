// internal/engine/api.go
package engine

import (
	"log/slog"
	"sort"
	"time"

	"github.com/user/taskping/internal/types"
)

// SessionInfo is a point-in-time snapshot of one tracked session.
type SessionInfo struct {
	ID             types.SessionID
	Project        string
	StartedAt      time.Time
	LastActivityAt time.Time
	Summary        string
	TotalCost      float64
	EventCount     int
	UserTurns      int
	AssistantTurns int
	LastEventUUID  string

	TaskInProgress bool
	TaskStartedAt  time.Time
	TaskCost       float64
	TaskMessages   int

	ArmedTimers []string
}

// ActiveSessions lists the tracked session ids, sorted for stable output.
func (e *Engine) ActiveSessions() []types.SessionID {
	e.mu.Lock()
	defer e.mu.Unlock()
	ids := make([]types.SessionID, 0, len(e.sessions))
	for id := range e.sessions {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// SessionInfo reports a snapshot of one session; false when untracked.
func (e *Engine) SessionInfo(id types.SessionID) (SessionInfo, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.sessions[id.OrUnknown()]
	if !ok {
		return SessionInfo{}, false
	}
	return SessionInfo{
		ID:             s.id,
		Project:        s.project,
		StartedAt:      s.startedAt,
		LastActivityAt: s.lastActivityAt,
		Summary:        s.summary,
		TotalCost:      s.totalCost,
		EventCount:     s.eventCount,
		UserTurns:      s.userTurns,
		AssistantTurns: s.assistantTurns,
		LastEventUUID:  s.lastEventUUID,
		TaskInProgress: s.taskLive(),
		TaskStartedAt:  s.taskStartedAt,
		TaskCost:       s.taskCost,
		TaskMessages:   s.taskMessages,
		ArmedTimers:    s.armedTimers(),
	}, true
}

// IsIdle reports whether a session has been quiet longer than the
// inactivity timeout. Untracked ids are idle by definition.
func (e *Engine) IsIdle(id types.SessionID) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.sessions[id.OrUnknown()]
	if !ok {
		return true
	}
	return e.clock.Now().Sub(s.lastActivityAt) > e.cfg.InactivityTimeout
}

// CompleteAll force-closes everything: each live task at delayed confidence
// first, then its session with reason manual. Iterates over a snapshot of
// the id set, so completions mutating the map are safe. Used on shutdown
// and by the flush API.
func (e *Engine) CompleteAll() {
	e.mu.Lock()
	ids := make([]types.SessionID, 0, len(e.sessions))
	for id := range e.sessions {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var batch []types.Notification
	for _, id := range ids {
		s, ok := e.sessions[id]
		if !ok {
			continue
		}
		if s.taskLive() {
			batch = append(batch, e.completeTaskLocked(s, types.CompletionDelayed)...)
		}
		batch = append(batch, e.completeSessionLocked(s, types.ReasonManual)...)
	}
	e.mu.Unlock()
	e.emit(batch)
}

// UpdateConfig merges the set fields into the running config. Armed timers
// keep their original deadlines; new values apply from the next arming on.
func (e *Engine) UpdateConfig(u ConfigUpdate) {
	e.mu.Lock()
	defer e.mu.Unlock()
	next := e.cfg.merged(u)
	if fixed := next.sanitize(); len(fixed) > 0 {
		slog.Warn("negative values clamped in engine config", "fields", fixed)
	}
	e.cfg = next
}

// Config returns a copy of the current tuning.
func (e *Engine) Config() Config {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cfg
}
