package types

import "time"

// Notification is the closed set of events the engine emits. Consumers
// switch on the concrete type; the unexported marker keeps the set closed.
type Notification interface {
	notification()
}

type CompletionType string

const (
	CompletionImmediate CompletionType = "immediate"
	CompletionDelayed   CompletionType = "delayed"
)

type CompletionReason string

const (
	ReasonSummary    CompletionReason = "summary"
	ReasonInactivity CompletionReason = "inactivity"
	ReasonManual     CompletionReason = "manual"
)

// TaskCompleted reports a finished task. The same task is reported once at
// immediate confidence and again at delayed confidence; consumers wanting a
// single signal filter on CompletionType.
type TaskCompleted struct {
	SessionID         SessionID
	ProjectName       string
	TaskCost          float64
	TaskDuration      time.Duration
	AssistantMessages int
	LastMessageUUID   string
	Timestamp         time.Time
	CompletionType    CompletionType
}

// TaskProgress reports a still-running task that has crossed the progress
// thresholds. EstimatedRemaining is nil when no estimate was computed.
type TaskProgress struct {
	SessionID          SessionID
	ProjectName        string
	CurrentCost        float64
	CurrentDuration    time.Duration
	AssistantMessages  int
	IsActive           bool
	EstimatedRemaining *time.Duration
}

// SessionCompleted reports a closed session. After emission the session is
// gone; a later event reusing its id starts a fresh one.
type SessionCompleted struct {
	SessionID       SessionID
	ProjectName     string
	Summary         string
	TotalCost       float64
	MessageCount    int
	Duration        time.Duration
	StartTime       time.Time
	EndTime         time.Time
	LastMessageUUID string
	Reason          CompletionReason
}

func (TaskCompleted) notification()    {}
func (TaskProgress) notification()     {}
func (SessionCompleted) notification() {}
