// internal/history/handle.go
package history

import (
	"context"
	"log/slog"
	"time"

	"github.com/user/taskping/internal/types"
)

const writeTimeout = 5 * time.Second

// Handle subscribes to engine notifications and records completions.
// Write failures are logged and dropped; history is best-effort.
type Handle struct {
	store *Store
}

// NewHandle wraps a store for use as an engine subscriber.
func NewHandle(store *Store) *Handle {
	return &Handle{store: store}
}

// Notify records task and session completions. Task completions are stored
// at delayed confidence only: the engine reports every task at both levels,
// and keeping one row per task keeps counts honest. Progress events are not
// persisted.
func (h *Handle) Notify(n types.Notification) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	switch v := n.(type) {
	case types.TaskCompleted:
		if v.CompletionType != types.CompletionDelayed {
			return
		}
		rec := &TaskRecord{
			SessionID:         v.SessionID,
			Project:           v.ProjectName,
			Cost:              v.TaskCost,
			Duration:          v.TaskDuration,
			AssistantMessages: v.AssistantMessages,
			LastMessageUUID:   v.LastMessageUUID,
			CompletionType:    v.CompletionType,
			CompletedAt:       v.Timestamp,
		}
		if err := h.store.RecordTask(ctx, rec); err != nil {
			slog.Error("record task completion", "session_id", string(v.SessionID), "error", err)
		}

	case types.SessionCompleted:
		rec := &SessionRecord{
			SessionID:    v.SessionID,
			Project:      v.ProjectName,
			Summary:      v.Summary,
			TotalCost:    v.TotalCost,
			MessageCount: v.MessageCount,
			Duration:     v.Duration,
			StartedAt:    v.StartTime,
			EndedAt:      v.EndTime,
			Reason:       v.Reason,
		}
		if err := h.store.RecordSession(ctx, rec); err != nil {
			slog.Error("record session completion", "session_id", string(v.SessionID), "error", err)
		}
	}
}
