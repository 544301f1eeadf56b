// internal/engine/engine.go

// Package engine infers task and session completion from per-session
// conversation event streams. Nothing in the transcript says "done": the
// engine arms timers on every event and reads completion out of the silence
// that follows. All timers run on an injected clock so tests and replays
// can drive virtual time.
package engine

import (
	"log/slog"
	"sync"

	"github.com/benbjohnson/clock"

	"github.com/user/taskping/internal/types"
	"github.com/user/taskping/pkg/transcript"
)

// CostResolver prices one event. Resolution order is the resolver's
// business; the engine only accumulates what it is told.
type CostResolver interface {
	Resolve(ev *transcript.Event) float64
}

// CostResolverFunc adapts a function to the CostResolver interface.
type CostResolverFunc func(ev *transcript.Event) float64

func (f CostResolverFunc) Resolve(ev *transcript.Event) float64 { return f(ev) }

// Handler receives emitted notifications. Handlers run outside the state
// lock in emission order, so a slow handler delays later emissions:
// anything doing real I/O should hand off to its own queue.
type Handler func(types.Notification)

// Engine turns per-session event streams into completion notifications.
type Engine struct {
	mu       sync.Mutex
	cfg      Config
	clock    clock.Clock
	costs    CostResolver
	sessions map[types.SessionID]*session
	epochs   uint64

	emitMu   sync.Mutex
	handlers []Handler
}

// New creates an Engine. A nil clock means the wall clock; a nil resolver
// falls back to the event's own explicit cost.
func New(cfg Config, clk clock.Clock, costs CostResolver) *Engine {
	if fixed := cfg.sanitize(); len(fixed) > 0 {
		slog.Warn("negative values clamped in engine config", "fields", fixed)
	}
	if clk == nil {
		clk = clock.New()
	}
	if costs == nil {
		costs = CostResolverFunc(explicitCostOnly)
	}
	return &Engine{
		cfg:      cfg,
		clock:    clk,
		costs:    costs,
		sessions: make(map[types.SessionID]*session),
	}
}

func explicitCostOnly(ev *transcript.Event) float64 {
	if ev.CostUSD != nil && *ev.CostUSD > 0 {
		return *ev.CostUSD
	}
	return 0
}

// Subscribe registers a handler for every notification emitted from now on.
func (e *Engine) Subscribe(h Handler) {
	e.emitMu.Lock()
	defer e.emitMu.Unlock()
	e.handlers = append(e.handlers, h)
}

// emit delivers a batch outside the state lock, under the emit lock so
// concurrent timer fires cannot interleave one batch with another.
func (e *Engine) emit(batch []types.Notification) {
	if len(batch) == 0 {
		return
	}
	e.emitMu.Lock()
	defer e.emitMu.Unlock()
	for _, n := range batch {
		for _, h := range e.handlers {
			h(n)
		}
	}
}

// Process ingests one event. Events for the same session must arrive in
// timestamp order; that is the producer's contract and is not re-checked
// here. Process never emits — notifications come from timer fires and the
// manual API.
func (e *Engine) Process(ev *transcript.Event) {
	if ev == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	id := types.SessionID(ev.SessionID).OrUnknown()
	s, ok := e.sessions[id]
	if !ok {
		s = e.newSession(id, ev)
		e.sessions[id] = s
	}

	s.lastActivityAt = ev.Timestamp
	s.eventCount++
	if ev.UUID != "" {
		s.lastEventUUID = ev.UUID
	}

	switch ev.Kind {
	case transcript.KindUser:
		e.handleUserTurn(s)
	case transcript.KindAssistant:
		e.handleAssistantTurn(s, ev)
	case transcript.KindSummary:
		e.handleSummary(s, ev)
	}
}

// newSession starts tracking an id. The project label is derived once, from
// the first event's context; later events cannot move a session between
// projects.
func (e *Engine) newSession(id types.SessionID, ev *transcript.Event) *session {
	e.epochs++
	s := &session{
		id:        id,
		epoch:     e.epochs,
		project:   ev.ProjectLabel(),
		startedAt: ev.Timestamp,
	}
	slog.Debug("session started", "session", id.Short(), "project", s.project)
	return s
}

// handleUserTurn: the human is mid-conversation, so any pending task or
// summary grace is moot and the inactivity window restarts.
func (e *Engine) handleUserTurn(s *session) {
	s.userTurns++
	stopTimer(&s.taskImmediate)
	stopTimer(&s.taskDelayed)
	stopTimer(&s.summaryGrace)
	if s.taskLive() {
		slog.Debug("pending task discarded by user turn",
			"session", s.id.Short(), "messages", s.taskMessages, "cost", s.taskCost)
	}
	s.resetTask()
	// The progress handle stays armed: it self-cancels at its next tick if
	// no task is live, and keeps its cadence if a new one has opened.
	e.armInactivity(s)
}

func (e *Engine) handleAssistantTurn(s *session, ev *transcript.Event) {
	s.assistantTurns++
	cost := e.costs.Resolve(ev)
	if cost < 0 {
		slog.Warn("negative event cost clamped", "session", s.id.Short(), "cost", cost)
		cost = 0
	}
	s.totalCost += cost

	if !s.taskLive() {
		s.taskStartedAt = ev.Timestamp
	}
	s.taskCost += cost
	s.taskMessages++
	s.lastAssistantAt = ev.Timestamp
	if ev.UUID != "" {
		s.lastAssistantUUID = ev.UUID
	}

	stopTimer(&s.summaryGrace)
	e.armTaskTimers(s)
	e.armInactivity(s)
	if e.cfg.EnableProgress && s.progress == nil {
		e.armProgress(s)
	}
}

// handleSummary: a summary line is the strongest completion signal — the
// conversation has already been wrapped up. A short grace period lets
// trailing events land before the session closes.
func (e *Engine) handleSummary(s *session, ev *transcript.Event) {
	if ev.Summary != "" {
		s.summary = ev.Summary
	}
	stopTimer(&s.taskImmediate)
	stopTimer(&s.taskDelayed)
	stopTimer(&s.progress)
	stopTimer(&s.inactivity)

	id, epoch := s.id, s.epoch
	stopTimer(&s.summaryGrace)
	s.summaryGrace = e.clock.AfterFunc(e.cfg.SummaryMessageTimeout, func() {
		e.onSummaryGrace(id, epoch)
	})
}

// Timer callbacks capture the session id and creation epoch, never the
// session pointer: state is re-fetched at fire time and a mismatch is a
// silent no-op. Arming always stops the previous handle of the same kind.

func (e *Engine) armInactivity(s *session) {
	id, epoch := s.id, s.epoch
	stopTimer(&s.inactivity)
	s.inactivity = e.clock.AfterFunc(e.cfg.InactivityTimeout, func() {
		e.onInactivity(id, epoch)
	})
}

func (e *Engine) armTaskTimers(s *session) {
	id, epoch, seq := s.id, s.epoch, s.taskSeq
	stopTimer(&s.taskImmediate)
	s.taskImmediate = e.clock.AfterFunc(e.cfg.TaskCompletionTimeout, func() {
		e.onTaskTimer(id, epoch, seq, types.CompletionImmediate)
	})
	stopTimer(&s.taskDelayed)
	s.taskDelayed = e.clock.AfterFunc(e.cfg.DelayedTaskCompletionTimeout, func() {
		e.onTaskTimer(id, epoch, seq, types.CompletionDelayed)
	})
}

func (e *Engine) armProgress(s *session) {
	id, epoch := s.id, s.epoch
	stopTimer(&s.progress)
	s.progress = e.clock.AfterFunc(e.cfg.ProgressCheckInterval, func() {
		e.onProgressTick(id, epoch)
	})
}
