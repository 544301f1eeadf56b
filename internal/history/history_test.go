package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/user/taskping/internal/types"
)

func tempStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	if err := store.Migrate(context.Background()); err != nil {
		t.Fatal(err)
	}
	return store
}

func TestMigrateIdempotent(t *testing.T) {
	store := tempStore(t)
	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("second migrate failed: %v", err)
	}
}

func TestRecordAndListTasks(t *testing.T) {
	store := tempStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i, project := range []string{"alpha", "alpha", "beta"} {
		rec := &TaskRecord{
			SessionID:         types.SessionID("s1"),
			Project:           project,
			Cost:              0.05,
			Duration:          9 * time.Second,
			AssistantMessages: 2,
			LastMessageUUID:   "a-2",
			CompletionType:    types.CompletionDelayed,
			CompletedAt:       base.Add(time.Duration(i) * time.Minute),
		}
		if err := store.RecordTask(ctx, rec); err != nil {
			t.Fatal(err)
		}
		if rec.ID == 0 {
			t.Error("expected assigned row id")
		}
	}

	tasks, err := store.RecentTasks(ctx, "", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(tasks) != 3 {
		t.Fatalf("expected 3 tasks, got %d", len(tasks))
	}
	// Newest first.
	if !tasks[0].CompletedAt.After(tasks[2].CompletedAt) {
		t.Errorf("expected newest-first order: %v vs %v", tasks[0].CompletedAt, tasks[2].CompletedAt)
	}
	if tasks[0].Duration != 9*time.Second {
		t.Errorf("duration round-trip: got %v", tasks[0].Duration)
	}
	if tasks[0].Project != "beta" {
		t.Errorf("expected beta newest, got %s", tasks[0].Project)
	}

	alpha, err := store.RecentTasks(ctx, "alpha", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(alpha) != 2 {
		t.Errorf("expected 2 alpha tasks, got %d", len(alpha))
	}

	limited, _ := store.RecentTasks(ctx, "", 1)
	if len(limited) != 1 {
		t.Errorf("limit not applied, got %d", len(limited))
	}
}

func TestRecordAndListSessions(t *testing.T) {
	store := tempStore(t)
	ctx := context.Background()
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	rec := &SessionRecord{
		SessionID:    types.SessionID("s1"),
		Project:      "alpha",
		Summary:      "Fixed the login bug",
		TotalCost:    1.25,
		MessageCount: 12,
		Duration:     45 * time.Minute,
		StartedAt:    start,
		EndedAt:      start.Add(45 * time.Minute),
		Reason:       types.ReasonSummary,
	}
	if err := store.RecordSession(ctx, rec); err != nil {
		t.Fatal(err)
	}

	sessions, err := store.RecentSessions(ctx, "", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(sessions) != 1 {
		t.Fatalf("expected 1 session, got %d", len(sessions))
	}
	got := sessions[0]
	if got.Summary != "Fixed the login bug" || got.Reason != types.ReasonSummary {
		t.Errorf("unexpected record %+v", got)
	}
	if !got.StartedAt.Equal(start) {
		t.Errorf("start time round-trip: got %v, want %v", got.StartedAt, start)
	}
	if got.Duration != 45*time.Minute {
		t.Errorf("duration round-trip: got %v", got.Duration)
	}

	if none, _ := store.RecentSessions(ctx, "other", 10); len(none) != 0 {
		t.Errorf("project filter leaked %d rows", len(none))
	}
}

func TestSummaryWindow(t *testing.T) {
	store := tempStore(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

	old := &TaskRecord{SessionID: "s0", Project: "stale", Cost: 9.99,
		CompletionType: types.CompletionDelayed, CompletedAt: now.Add(-48 * time.Hour)}
	if err := store.RecordTask(ctx, old); err != nil {
		t.Fatal(err)
	}
	fresh := &TaskRecord{SessionID: "s1", Project: "alpha", Cost: 0.10,
		CompletionType: types.CompletionDelayed, CompletedAt: now.Add(-time.Hour)}
	if err := store.RecordTask(ctx, fresh); err != nil {
		t.Fatal(err)
	}
	sess := &SessionRecord{SessionID: "s1", Project: "beta", TotalCost: 0.50,
		Reason: types.ReasonInactivity, StartedAt: now.Add(-2 * time.Hour),
		EndedAt: now.Add(-time.Hour), RecordedAt: now.Add(-time.Hour)}
	if err := store.RecordSession(ctx, sess); err != nil {
		t.Fatal(err)
	}

	stats, err := store.Summary(ctx, now.Add(-24*time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if stats.Tasks != 1 || stats.Sessions != 1 {
		t.Errorf("window leaked: %+v", stats)
	}
	if stats.TaskCost != 0.10 || stats.SessionCost != 0.50 {
		t.Errorf("unexpected cost sums: %+v", stats)
	}
	if len(stats.Projects) != 2 || stats.Projects[0] != "alpha" || stats.Projects[1] != "beta" {
		t.Errorf("unexpected projects: %v", stats.Projects)
	}
}

func TestHandleRecordsCompletions(t *testing.T) {
	store := tempStore(t)
	h := NewHandle(store)
	ctx := context.Background()

	h.Notify(types.TaskCompleted{
		SessionID:         "s1",
		ProjectName:       "alpha",
		TaskCost:          0.05,
		AssistantMessages: 2,
		CompletionType:    types.CompletionImmediate,
		Timestamp:         time.Now().UTC(),
	})
	h.Notify(types.TaskCompleted{
		SessionID:         "s1",
		ProjectName:       "alpha",
		TaskCost:          0.05,
		AssistantMessages: 2,
		CompletionType:    types.CompletionDelayed,
		Timestamp:         time.Now().UTC(),
	})
	h.Notify(types.TaskProgress{SessionID: "s1", ProjectName: "alpha"})
	h.Notify(types.SessionCompleted{
		SessionID:   "s1",
		ProjectName: "alpha",
		TotalCost:   0.05,
		Reason:      types.ReasonManual,
		StartTime:   time.Now().UTC().Add(-time.Minute),
		EndTime:     time.Now().UTC(),
	})

	tasks, err := store.RecentTasks(ctx, "", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(tasks) != 1 {
		t.Fatalf("expected one row per task, got %d", len(tasks))
	}
	if tasks[0].CompletionType != types.CompletionDelayed {
		t.Errorf("stored confidence %s", tasks[0].CompletionType)
	}

	sessions, err := store.RecentSessions(ctx, "", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(sessions) != 1 || sessions[0].Reason != types.ReasonManual {
		t.Fatalf("unexpected sessions %+v", sessions)
	}
}
