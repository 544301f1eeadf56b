// internal/notify/message.go
package notify

import (
	"context"
	"errors"

	"github.com/user/taskping/internal/types"
)

// Message kinds, used for channel-side presentation choices.
const (
	KindTask     = "task_completed"
	KindProgress = "task_progress"
	KindSession  = "session_completed"
	KindDigest   = "digest"
)

var (
	// ErrNotConfigured means a channel is missing required settings.
	ErrNotConfigured = errors.New("channel not configured")
	// ErrUnavailable means the host has no way to deliver on this channel.
	ErrUnavailable = errors.New("no notifier available")
)

// Message is a rendered notification, ready for any channel. ID is assigned
// at render time and stays stable across channels and retries.
type Message struct {
	ID        types.NotificationID
	Kind      string
	SessionID types.SessionID
	Project   string
	Title     string
	Body      string
}

// Channel delivers rendered messages somewhere a human will see them.
type Channel interface {
	Name() string
	Send(ctx context.Context, msg *Message) error
}
