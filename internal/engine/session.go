// internal/engine/session.go
package engine

import (
	"time"

	"github.com/benbjohnson/clock"

	"github.com/user/taskping/internal/types"
)

// session is the tracked state of one conversation. All access happens
// under the engine mutex; timer callbacks re-enter through it.
type session struct {
	id      types.SessionID
	epoch   uint64
	project string

	startedAt      time.Time
	lastActivityAt time.Time
	summary        string
	totalCost      float64
	eventCount     int
	userTurns      int
	assistantTurns int
	lastEventUUID  string

	// current-task sub-state
	taskSeq           uint64
	taskStartedAt     time.Time
	lastAssistantAt   time.Time
	lastAssistantUUID string
	taskCost          float64
	taskMessages      int

	// progress cadence survives task boundaries
	lastProgressAt time.Time

	inactivity    *clock.Timer
	summaryGrace  *clock.Timer
	taskImmediate *clock.Timer
	taskDelayed   *clock.Timer
	progress      *clock.Timer
}

func (s *session) taskLive() bool {
	return s.taskMessages > 0
}

// resetTask clears the task accumulators and bumps the sequence so an
// in-flight timer fire for the old task misses its guard.
func (s *session) resetTask() {
	s.taskSeq++
	s.taskStartedAt = time.Time{}
	s.lastAssistantAt = time.Time{}
	s.lastAssistantUUID = ""
	s.taskCost = 0
	s.taskMessages = 0
}

func stopTimer(t **clock.Timer) {
	if *t != nil {
		(*t).Stop()
		*t = nil
	}
}

// stopAllTimers covers every handle; completion paths call this so no stale
// fire can outlive the session.
func (s *session) stopAllTimers() {
	stopTimer(&s.inactivity)
	stopTimer(&s.summaryGrace)
	stopTimer(&s.taskImmediate)
	stopTimer(&s.taskDelayed)
	stopTimer(&s.progress)
}

// armedTimers names the live handles in a stable order.
func (s *session) armedTimers() []string {
	var names []string
	if s.inactivity != nil {
		names = append(names, "inactivity")
	}
	if s.summaryGrace != nil {
		names = append(names, "summary_grace")
	}
	if s.taskImmediate != nil {
		names = append(names, "task_immediate")
	}
	if s.taskDelayed != nil {
		names = append(names, "task_delayed")
	}
	if s.progress != nil {
		names = append(names, "progress")
	}
	return names
}
