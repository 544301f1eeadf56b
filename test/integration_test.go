//go:build integration

package test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/user/taskping/internal/engine"
	"github.com/user/taskping/internal/history"
	"github.com/user/taskping/internal/notify"
	"github.com/user/taskping/internal/types"
	"github.com/user/taskping/internal/watch"
	"github.com/user/taskping/pkg/transcript"
)

// recordingChannel captures every message delivered to it.
type recordingChannel struct {
	mu   sync.Mutex
	msgs []*notify.Message
}

func (r *recordingChannel) Name() string { return "recording" }

func (r *recordingChannel) Send(_ context.Context, msg *notify.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
	return nil
}

func (r *recordingChannel) messages() []*notify.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*notify.Message, len(r.msgs))
	copy(out, r.msgs)
	return out
}

func writeTranscript(t *testing.T, path string, lines ...string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestEndToEnd(t *testing.T) {
	dir := t.TempDir()
	root := filepath.Join(dir, "projects")

	// One finished exchange, sitting on disk before the watcher starts.
	writeTranscript(t, filepath.Join(root, "-home-dev-myproj", "sess-e2e.jsonl"),
		`{"type":"user","sessionId":"sess-e2e","timestamp":"2025-06-01T10:00:00Z","uuid":"u1","cwd":"/home/dev/myproj","message":{"role":"user","content":"fix the flaky test"}}`,
		`{"type":"assistant","sessionId":"sess-e2e","timestamp":"2025-06-01T10:00:05Z","uuid":"a1","cwd":"/home/dev/myproj","costUSD":0.05,"message":{"role":"assistant","content":"done"}}`,
	)

	mk := clock.NewMock()
	mk.Set(time.Date(2025, 6, 1, 10, 0, 6, 0, time.UTC))

	cfg := engine.DefaultConfig()
	cfg.EnableProgress = false
	eng := engine.New(cfg, mk, nil)

	rec := &recordingChannel{}
	registry := notify.NewRegistry()
	registry.Register(rec)
	mutes := notify.NewMuteStore(filepath.Join(dir, "mutes.json"))
	disp := notify.NewDispatcher(registry, mutes, notify.DispatcherOptions{
		MaxConcurrent:    1,
		CompletionSignal: types.CompletionImmediate,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	disp.Start(ctx)
	defer disp.Stop()
	eng.Subscribe(disp.Notify)

	w := watch.New(root, eng, watch.Options{ReplayExisting: true, RescanInterval: 200 * time.Millisecond})
	go func() { _ = w.Run(ctx) }()

	// Wait for the watcher to replay the file into the engine.
	deadline := time.After(2500 * time.Millisecond)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for len(eng.ActiveSessions()) == 0 {
		select {
		case <-deadline:
			t.Fatal("timeout waiting for watcher to deliver events")
		case <-ticker.C:
		}
	}

	// Quiet period elapses, the task completes.
	mk.Add(cfg.TaskCompletionTimeout)
	if !disp.WaitIdle(2 * time.Second) {
		t.Fatal("dispatcher did not drain after task completion")
	}

	msgs := rec.messages()
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	if msgs[0].Kind != notify.KindTask {
		t.Errorf("expected kind %q, got %q", notify.KindTask, msgs[0].Kind)
	}
	if msgs[0].Project != "myproj" {
		t.Errorf("expected project myproj, got %q", msgs[0].Project)
	}

	// Then nothing happens for long enough that the session closes too. The
	// delayed task report fires along the way but the immediate-signal
	// dispatcher filters it.
	mk.Add(cfg.InactivityTimeout)
	if !disp.WaitIdle(2 * time.Second) {
		t.Fatal("dispatcher did not drain after session completion")
	}

	msgs = rec.messages()
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[1].Kind != notify.KindSession {
		t.Errorf("expected kind %q, got %q", notify.KindSession, msgs[1].Kind)
	}
	if len(eng.ActiveSessions()) != 0 {
		t.Errorf("expected no active sessions, got %d", len(eng.ActiveSessions()))
	}
}

func TestEndToEndHistoryRecording(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sess-hist.jsonl")

	writeTranscript(t, path,
		`{"type":"user","sessionId":"sess-hist","timestamp":"2025-06-01T09:00:00Z","uuid":"u1","cwd":"/home/dev/api","message":{"role":"user","content":"add retries"}}`,
		`{"type":"assistant","sessionId":"sess-hist","timestamp":"2025-06-01T09:00:10Z","uuid":"a1","cwd":"/home/dev/api","costUSD":0.5,"message":{"role":"assistant","content":"working on it"}}`,
		`{"type":"assistant","sessionId":"sess-hist","timestamp":"2025-06-01T09:00:20Z","uuid":"a2","cwd":"/home/dev/api","costUSD":0.25,"message":{"role":"assistant","content":"done"}}`,
	)

	events, skipped, err := transcript.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if skipped != 0 {
		t.Fatalf("expected 0 malformed lines, got %d", skipped)
	}
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}

	store, err := history.New(filepath.Join(dir, "history.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = store.Close() }()
	ctx := context.Background()
	if err := store.Migrate(ctx); err != nil {
		t.Fatal(err)
	}

	mk := clock.NewMock()
	cfg := engine.DefaultConfig()
	cfg.EnableProgress = false
	eng := engine.New(cfg, mk, nil)
	eng.Subscribe(history.NewHandle(store).Notify)

	for i := range events {
		ev := &events[i]
		if !ev.Timestamp.IsZero() && ev.Timestamp.After(mk.Now()) {
			mk.Set(ev.Timestamp)
		}
		eng.Process(ev)
	}

	// Let the delayed completion and then the inactivity close both land.
	mk.Add(cfg.DelayedTaskCompletionTimeout + cfg.InactivityTimeout)

	tasks, err := store.RecentTasks(ctx, "", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(tasks) != 1 {
		t.Fatalf("expected 1 task record, got %d", len(tasks))
	}
	if tasks[0].Project != "api" {
		t.Errorf("expected project api, got %q", tasks[0].Project)
	}
	if tasks[0].Cost != 0.75 {
		t.Errorf("expected cost 0.75, got %v", tasks[0].Cost)
	}
	if tasks[0].AssistantMessages != 2 {
		t.Errorf("expected 2 assistant messages, got %d", tasks[0].AssistantMessages)
	}
	if tasks[0].CompletionType != types.CompletionDelayed {
		t.Errorf("expected delayed completion, got %q", tasks[0].CompletionType)
	}

	sessions, err := store.RecentSessions(ctx, "", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(sessions) != 1 {
		t.Fatalf("expected 1 session record, got %d", len(sessions))
	}
	if sessions[0].Reason != types.ReasonInactivity {
		t.Errorf("expected inactivity reason, got %q", sessions[0].Reason)
	}
	if sessions[0].TotalCost != 0.75 {
		t.Errorf("expected total cost 0.75, got %v", sessions[0].TotalCost)
	}

	stats, err := store.Summary(ctx, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatal(err)
	}
	if stats.Tasks != 1 || stats.Sessions != 1 {
		t.Errorf("expected 1 task and 1 session in summary, got %d and %d", stats.Tasks, stats.Sessions)
	}
	if len(stats.Projects) != 1 || stats.Projects[0] != "api" {
		t.Errorf("expected projects [api], got %v", stats.Projects)
	}
}
