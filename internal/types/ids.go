// internal/types/ids.go
package types

import (
	"github.com/google/uuid"
)

// SessionID is the transcript-assigned session identifier. Events arriving
// without one are tracked under UnknownSessionID.
type SessionID string

const UnknownSessionID SessionID = "unknown"

// NotificationID identifies one rendered notification across channels and
// retry attempts.
type NotificationID string

func NewNotificationID() NotificationID {
	return NotificationID(uuid.New().String())
}

// OrUnknown maps an empty id to the shared fallback session.
func (id SessionID) OrUnknown() SessionID {
	if id == "" {
		return UnknownSessionID
	}
	return id
}

// Short returns the leading id segment for log lines.
func (id SessionID) Short() string {
	if len(id) <= 8 {
		return string(id)
	}
	return string(id[:8])
}
