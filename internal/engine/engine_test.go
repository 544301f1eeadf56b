package engine

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/user/taskping/internal/types"
	"github.com/user/taskping/pkg/transcript"
)

// testConfig returns a tuning scaled down to milliseconds so virtual-clock
// tests stay readable. Individual tests override what they exercise.
func testConfig() Config {
	return Config{
		InactivityTimeout:            10 * time.Second,
		SummaryMessageTimeout:        5 * time.Second,
		TaskCompletionTimeout:        100 * time.Millisecond,
		DelayedTaskCompletionTimeout: 200 * time.Millisecond,
		MinTaskCost:                  0.01,
		MinTaskMessages:              1,
		EnableProgress:               true,
		ProgressCheckInterval:        10 * time.Second,
		MinProgressCost:              0.02,
		MinProgressDuration:          15 * time.Second,
	}
}

type collector struct {
	events []types.Notification
}

func (c *collector) handle(n types.Notification) {
	c.events = append(c.events, n)
}

func (c *collector) tasks() []types.TaskCompleted {
	var out []types.TaskCompleted
	for _, n := range c.events {
		if t, ok := n.(types.TaskCompleted); ok {
			out = append(out, t)
		}
	}
	return out
}

func (c *collector) progress() []types.TaskProgress {
	var out []types.TaskProgress
	for _, n := range c.events {
		if p, ok := n.(types.TaskProgress); ok {
			out = append(out, p)
		}
	}
	return out
}

func (c *collector) sessions() []types.SessionCompleted {
	var out []types.SessionCompleted
	for _, n := range c.events {
		if s, ok := n.(types.SessionCompleted); ok {
			out = append(out, s)
		}
	}
	return out
}

func newTestEngine(t *testing.T, cfg Config) (*Engine, *clock.Mock, *collector) {
	t.Helper()
	mk := clock.NewMock()
	eng := New(cfg, mk, nil)
	col := &collector{}
	eng.Subscribe(col.handle)
	return eng, mk, col
}

func f64(v float64) *float64 { return &v }

func userTurn(session string, ts time.Time, uuid string) *transcript.Event {
	return &transcript.Event{
		Kind:      transcript.KindUser,
		SessionID: session,
		Timestamp: ts,
		UUID:      uuid,
		Cwd:       "/home/u/dev/myproj",
	}
}

func assistantTurn(session string, ts time.Time, uuid string, cost float64) *transcript.Event {
	ev := &transcript.Event{
		Kind:      transcript.KindAssistant,
		SessionID: session,
		Timestamp: ts,
		UUID:      uuid,
		Cwd:       "/home/u/dev/myproj",
	}
	if cost >= 0 {
		ev.CostUSD = f64(cost)
	}
	return ev
}

func summaryMsg(session string, ts time.Time, text string) *transcript.Event {
	return &transcript.Event{
		Kind:      transcript.KindSummary,
		SessionID: session,
		Timestamp: ts,
		Summary:   text,
	}
}

func TestImmediateAndDelayedCompletion(t *testing.T) {
	eng, mk, col := newTestEngine(t, testConfig())
	base := mk.Now()

	eng.Process(userTurn("s1", base, "u-1"))
	mk.Add(10 * time.Millisecond)
	eng.Process(assistantTurn("s1", base.Add(10*time.Millisecond), "a-1", 0.02))
	mk.Add(10 * time.Millisecond)
	eng.Process(assistantTurn("s1", base.Add(20*time.Millisecond), "a-2", 0.03))

	// t=120: the immediate timer armed by the last assistant turn fires.
	mk.Add(100 * time.Millisecond)
	tasks := col.tasks()
	if len(tasks) != 1 {
		t.Fatalf("expected 1 task completion at t=120, got %d", len(tasks))
	}
	first := tasks[0]
	if first.CompletionType != types.CompletionImmediate {
		t.Errorf("expected immediate confidence, got %s", first.CompletionType)
	}
	if first.TaskCost != 0.05 {
		t.Errorf("expected task cost 0.05, got %v", first.TaskCost)
	}
	if first.AssistantMessages != 2 {
		t.Errorf("expected 2 assistant messages, got %d", first.AssistantMessages)
	}
	if first.TaskDuration != 10*time.Millisecond {
		t.Errorf("expected 10ms task duration, got %v", first.TaskDuration)
	}
	if first.LastMessageUUID != "a-2" {
		t.Errorf("expected last message a-2, got %s", first.LastMessageUUID)
	}
	if first.SessionID != "s1" || first.ProjectName != "myproj" {
		t.Errorf("unexpected identity: %s/%s", first.SessionID, first.ProjectName)
	}

	// t=220: the delayed timer reports the same task once more.
	mk.Add(100 * time.Millisecond)
	tasks = col.tasks()
	if len(tasks) != 2 {
		t.Fatalf("expected 2 task completions at t=220, got %d", len(tasks))
	}
	second := tasks[1]
	if second.CompletionType != types.CompletionDelayed {
		t.Errorf("expected delayed confidence, got %s", second.CompletionType)
	}
	if second.TaskCost != first.TaskCost || second.AssistantMessages != first.AssistantMessages {
		t.Errorf("delayed report should carry the same accumulators: %+v vs %+v", second, first)
	}

	// The terminal report reset the task; nothing further fires for it.
	mk.Add(time.Second)
	if got := len(col.tasks()); got != 2 {
		t.Errorf("expected no further task completions, got %d", got)
	}
	info, ok := eng.SessionInfo("s1")
	if !ok {
		t.Fatal("session should still be tracked")
	}
	if info.TaskInProgress {
		t.Error("task should be reset after the delayed report")
	}
	if info.TotalCost != 0.05 {
		t.Errorf("session total should keep the task cost, got %v", info.TotalCost)
	}
}

func TestUserTurnDiscardsPendingTask(t *testing.T) {
	eng, mk, col := newTestEngine(t, testConfig())
	base := mk.Now()

	eng.Process(assistantTurn("s1", base, "a-1", 0.05))
	mk.Add(50 * time.Millisecond)
	eng.Process(userTurn("s1", base.Add(50*time.Millisecond), "u-1"))

	mk.Add(time.Second)
	if got := len(col.tasks()); got != 0 {
		t.Fatalf("discarded task must not be reported, got %d completions", got)
	}

	info, ok := eng.SessionInfo("s1")
	if !ok {
		t.Fatal("session should still be tracked")
	}
	if info.TaskInProgress {
		t.Error("task sub-state should be empty after the user turn")
	}
	if info.TotalCost != 0.05 {
		t.Errorf("session total keeps already-accumulated cost, got %v", info.TotalCost)
	}
}

func TestSummaryGraceCompletesSession(t *testing.T) {
	cfg := testConfig()
	cfg.SummaryMessageTimeout = 50 * time.Millisecond
	eng, mk, col := newTestEngine(t, cfg)
	base := mk.Now()

	eng.Process(summaryMsg("s1", base, "Fixed the login bug"))

	mk.Add(49 * time.Millisecond)
	if got := len(col.sessions()); got != 0 {
		t.Fatalf("grace period not elapsed, got %d completions", got)
	}

	mk.Add(1 * time.Millisecond)
	done := col.sessions()
	if len(done) != 1 {
		t.Fatalf("expected 1 session completion, got %d", len(done))
	}
	if done[0].Reason != types.ReasonSummary {
		t.Errorf("expected summary reason, got %s", done[0].Reason)
	}
	if done[0].Summary != "Fixed the login bug" {
		t.Errorf("unexpected summary %q", done[0].Summary)
	}
	if done[0].MessageCount != 1 {
		t.Errorf("expected 1 counted event, got %d", done[0].MessageCount)
	}

	if ids := eng.ActiveSessions(); len(ids) != 0 {
		t.Fatalf("completed session should be removed, still tracking %v", ids)
	}

	// Reusing the id starts from scratch.
	eng.Process(userTurn("s1", mk.Now(), "u-9"))
	info, ok := eng.SessionInfo("s1")
	if !ok {
		t.Fatal("expected fresh session after id reuse")
	}
	if info.EventCount != 1 || info.Summary != "" || info.TotalCost != 0 {
		t.Errorf("reused id should start clean, got %+v", info)
	}
}

func TestSummaryGraceCanceledByActivity(t *testing.T) {
	cfg := testConfig()
	cfg.SummaryMessageTimeout = 50 * time.Millisecond
	eng, mk, col := newTestEngine(t, cfg)
	base := mk.Now()

	eng.Process(summaryMsg("s1", base, "Wrapped up"))
	mk.Add(20 * time.Millisecond)
	eng.Process(userTurn("s1", base.Add(20*time.Millisecond), "u-1"))

	mk.Add(200 * time.Millisecond)
	if got := len(col.sessions()); got != 0 {
		t.Fatalf("grace should be canceled by the user turn, got %d completions", got)
	}

	// A fresh summary arms a fresh grace window.
	eng.Process(summaryMsg("s1", mk.Now(), ""))
	mk.Add(50 * time.Millisecond)
	done := col.sessions()
	if len(done) != 1 {
		t.Fatalf("expected completion after second summary, got %d", len(done))
	}
	if done[0].Summary != "Wrapped up" {
		t.Errorf("empty summary text must not overwrite the stored one, got %q", done[0].Summary)
	}
}

func TestTaskBelowCostThreshold(t *testing.T) {
	eng, mk, col := newTestEngine(t, testConfig())
	base := mk.Now()

	eng.Process(assistantTurn("s1", base, "a-1", 0.005))

	// Immediate fire skips but leaves the task accumulating.
	mk.Add(100 * time.Millisecond)
	if got := len(col.tasks()); got != 0 {
		t.Fatalf("below-threshold task must not be reported, got %d", got)
	}
	info, _ := eng.SessionInfo("s1")
	if !info.TaskInProgress {
		t.Error("immediate-confidence skip should leave the task open")
	}

	// The delayed fire is terminal even when it skips.
	mk.Add(100 * time.Millisecond)
	if got := len(col.tasks()); got != 0 {
		t.Fatalf("below-threshold task must not be reported, got %d", got)
	}
	info, _ = eng.SessionInfo("s1")
	if info.TaskInProgress {
		t.Error("terminal skip should reset the task sub-state")
	}
	if info.TotalCost != 0.005 {
		t.Errorf("session total still accumulates, got %v", info.TotalCost)
	}
}

func TestZeroCostTurnsCountMessagesOnly(t *testing.T) {
	eng, mk, col := newTestEngine(t, testConfig())
	base := mk.Now()

	// Three usage-less turns: message threshold is met, cost threshold is not.
	for i := 0; i < 3; i++ {
		eng.Process(assistantTurn("s1", base.Add(time.Duration(i)*10*time.Millisecond), "", -1))
		mk.Add(10 * time.Millisecond)
	}
	mk.Add(time.Second)
	if got := len(col.tasks()); got != 0 {
		t.Fatalf("zero-cost task must stay below the cost threshold, got %d", got)
	}
	info, _ := eng.SessionInfo("s1")
	if info.AssistantTurns != 3 || info.TotalCost != 0 {
		t.Errorf("expected 3 free turns, got %+v", info)
	}
}

func TestInactivityCompletesSessionWithFallbackSummary(t *testing.T) {
	cfg := testConfig()
	cfg.InactivityTimeout = 500 * time.Millisecond
	eng, mk, col := newTestEngine(t, cfg)
	base := mk.Now()

	eng.Process(userTurn("s1", base, "u-1"))
	mk.Add(10 * time.Millisecond)
	eng.Process(assistantTurn("s1", base.Add(10*time.Millisecond), "a-1", 0.04))

	mk.Add(time.Second)

	tasks := col.tasks()
	if len(tasks) != 2 {
		t.Fatalf("expected immediate+delayed task reports before idling out, got %d", len(tasks))
	}
	done := col.sessions()
	if len(done) != 1 {
		t.Fatalf("expected 1 session completion, got %d", len(done))
	}
	s := done[0]
	if s.Reason != types.ReasonInactivity {
		t.Errorf("expected inactivity reason, got %s", s.Reason)
	}
	if s.Summary != "1 questions, 1 responses" {
		t.Errorf("unexpected fallback summary %q", s.Summary)
	}
	if s.TotalCost != 0.04 || s.MessageCount != 2 {
		t.Errorf("unexpected totals: %+v", s)
	}
	if s.Duration != 10*time.Millisecond {
		t.Errorf("duration should span first to last event, got %v", s.Duration)
	}
	if s.LastMessageUUID != "a-1" {
		t.Errorf("expected last uuid a-1, got %s", s.LastMessageUUID)
	}
}

func TestProgressNotifications(t *testing.T) {
	cfg := testConfig()
	cfg.TaskCompletionTimeout = 10 * time.Second
	cfg.DelayedTaskCompletionTimeout = 50 * time.Second
	cfg.InactivityTimeout = time.Hour
	cfg.ProgressCheckInterval = 10 * time.Millisecond
	cfg.MinProgressDuration = 15 * time.Millisecond
	cfg.MinProgressCost = 0.02
	eng, mk, col := newTestEngine(t, cfg)
	base := mk.Now()

	eng.Process(assistantTurn("s1", base, "a-1", 0.05))

	// First tick at t=10: too young. Second tick at t=20: reports.
	mk.Add(10 * time.Millisecond)
	if got := len(col.progress()); got != 0 {
		t.Fatalf("expected no progress before min duration, got %d", got)
	}
	mk.Add(10 * time.Millisecond)
	prog := col.progress()
	if len(prog) != 1 {
		t.Fatalf("expected first progress at t=20, got %d", len(prog))
	}
	p := prog[0]
	if p.CurrentCost != 0.05 || p.AssistantMessages != 1 || !p.IsActive {
		t.Errorf("unexpected progress payload %+v", p)
	}
	if p.CurrentDuration != 20*time.Millisecond {
		t.Errorf("expected 20ms elapsed, got %v", p.CurrentDuration)
	}
	if p.EstimatedRemaining == nil {
		t.Error("expected a completion estimate")
	}

	// Interval cadence holds while the task lives.
	mk.Add(10 * time.Millisecond)
	if got := len(col.progress()); got != 2 {
		t.Fatalf("expected second progress at t=30, got %d", got)
	}

	// A user turn kills the task; the next tick self-cancels, silently.
	eng.Process(userTurn("s1", base.Add(30*time.Millisecond), "u-1"))
	mk.Add(100 * time.Millisecond)
	if got := len(col.progress()); got != 2 {
		t.Errorf("expected no progress after the task died, got %d", got)
	}
}

func TestProgressSuppressedAfterCompletion(t *testing.T) {
	cfg := testConfig()
	cfg.TaskCompletionTimeout = 30 * time.Millisecond
	cfg.DelayedTaskCompletionTimeout = 40 * time.Millisecond
	cfg.InactivityTimeout = time.Hour
	cfg.ProgressCheckInterval = 20 * time.Millisecond
	cfg.MinProgressDuration = 0
	cfg.MinProgressCost = 0
	eng, mk, col := newTestEngine(t, cfg)
	base := mk.Now()

	eng.Process(assistantTurn("s1", base, "a-1", 0.05))
	mk.Add(20 * time.Millisecond)
	if got := len(col.progress()); got != 1 {
		t.Fatalf("expected one progress tick, got %d", got)
	}

	// t=30 immediate, t=40 delayed (terminal: cancels the interval).
	mk.Add(30 * time.Millisecond)
	if got := len(col.tasks()); got != 2 {
		t.Fatalf("expected both completion reports, got %d", got)
	}
	before := len(col.progress())
	mk.Add(200 * time.Millisecond)
	if got := len(col.progress()); got != before {
		t.Errorf("no progress may follow a completed task, got %d new", got-before)
	}
}

func TestProgressDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.EnableProgress = false
	cfg.TaskCompletionTimeout = time.Hour
	cfg.DelayedTaskCompletionTimeout = time.Hour
	cfg.InactivityTimeout = time.Hour
	cfg.ProgressCheckInterval = 10 * time.Millisecond
	cfg.MinProgressDuration = 0
	cfg.MinProgressCost = 0
	eng, mk, col := newTestEngine(t, cfg)

	eng.Process(assistantTurn("s1", mk.Now(), "a-1", 0.50))
	mk.Add(time.Second)
	if got := len(col.progress()); got != 0 {
		t.Errorf("progress disabled, got %d events", got)
	}
}

func TestUnknownSessionFallback(t *testing.T) {
	eng, mk, _ := newTestEngine(t, testConfig())

	ev := assistantTurn("", mk.Now(), "a-1", 0.02)
	ev.Cwd = ""
	eng.Process(ev)

	ids := eng.ActiveSessions()
	if len(ids) != 1 || ids[0] != types.UnknownSessionID {
		t.Fatalf("expected the unknown session, got %v", ids)
	}
	info, ok := eng.SessionInfo(types.UnknownSessionID)
	if !ok {
		t.Fatal("unknown session should be tracked")
	}
	if info.Project != "unknown" {
		t.Errorf("expected unknown project label, got %s", info.Project)
	}
}

func TestCompleteAll(t *testing.T) {
	eng, mk, col := newTestEngine(t, testConfig())
	base := mk.Now()

	eng.Process(userTurn("s1", base, "u-1"))
	eng.Process(assistantTurn("s1", base.Add(10*time.Millisecond), "a-1", 0.03))
	eng.Process(userTurn("s2", base, "u-2"))

	eng.CompleteAll()

	tasks := col.tasks()
	if len(tasks) != 1 {
		t.Fatalf("expected the live task flushed once, got %d", len(tasks))
	}
	if tasks[0].CompletionType != types.CompletionDelayed {
		t.Errorf("manual flush closes tasks at delayed confidence, got %s", tasks[0].CompletionType)
	}
	done := col.sessions()
	if len(done) != 2 {
		t.Fatalf("expected both sessions completed, got %d", len(done))
	}
	for _, s := range done {
		if s.Reason != types.ReasonManual {
			t.Errorf("expected manual reason, got %s", s.Reason)
		}
	}
	if ids := eng.ActiveSessions(); len(ids) != 0 {
		t.Errorf("expected empty engine, still tracking %v", ids)
	}

	// Flushing an empty engine is a no-op, and stale timers stay quiet.
	eng.CompleteAll()
	mk.Add(time.Hour)
	if len(col.events) != 3 {
		t.Errorf("expected no further events, got %d total", len(col.events))
	}
}

func TestNegativeTaskDurationClamped(t *testing.T) {
	eng, mk, col := newTestEngine(t, testConfig())
	base := mk.Now()

	// Out-of-order payload timestamps: the second turn claims an earlier time.
	eng.Process(assistantTurn("s1", base.Add(20*time.Millisecond), "a-1", 0.02))
	mk.Add(5 * time.Millisecond)
	eng.Process(assistantTurn("s1", base.Add(10*time.Millisecond), "a-2", 0.02))

	mk.Add(100 * time.Millisecond)
	tasks := col.tasks()
	if len(tasks) != 1 {
		t.Fatalf("expected 1 completion, got %d", len(tasks))
	}
	if tasks[0].TaskDuration != 0 {
		t.Errorf("negative duration should clamp to zero, got %v", tasks[0].TaskDuration)
	}
}

func TestUpdateConfigNotRetroactive(t *testing.T) {
	cfg := testConfig()
	cfg.DelayedTaskCompletionTimeout = time.Hour
	eng, mk, col := newTestEngine(t, cfg)
	base := mk.Now()

	eng.Process(assistantTurn("s1", base, "a-1", 0.05))

	longer := 500 * time.Millisecond
	eng.UpdateConfig(ConfigUpdate{TaskCompletionTimeout: &longer})

	// The armed timer keeps its original 100ms deadline.
	mk.Add(100 * time.Millisecond)
	if got := len(col.tasks()); got != 1 {
		t.Fatalf("armed timer should keep its deadline, got %d completions", got)
	}

	// The next task arms with the updated value.
	eng.Process(userTurn("s1", mk.Now(), "u-1"))
	eng.Process(assistantTurn("s1", mk.Now(), "a-2", 0.05))
	mk.Add(100 * time.Millisecond)
	if got := len(col.tasks()); got != 1 {
		t.Fatalf("new timer should use the longer timeout, got %d", got)
	}
	mk.Add(400 * time.Millisecond)
	if got := len(col.tasks()); got != 2 {
		t.Fatalf("expected completion at the longer timeout, got %d", got)
	}
}

func TestUpdateConfigClampsNegatives(t *testing.T) {
	eng, _, _ := newTestEngine(t, testConfig())

	bad := -5 * time.Second
	badCost := -1.0
	eng.UpdateConfig(ConfigUpdate{InactivityTimeout: &bad, MinTaskCost: &badCost})

	got := eng.Config()
	if got.InactivityTimeout != 0 {
		t.Errorf("expected clamped inactivity timeout, got %v", got.InactivityTimeout)
	}
	if got.MinTaskCost != 0 {
		t.Errorf("expected clamped min task cost, got %v", got.MinTaskCost)
	}
}

func TestIsIdle(t *testing.T) {
	cfg := testConfig()
	cfg.InactivityTimeout = 10 * time.Second
	eng, mk, _ := newTestEngine(t, cfg)

	if !eng.IsIdle("nope") {
		t.Error("untracked ids are idle")
	}

	eng.Process(userTurn("s1", mk.Now(), "u-1"))
	mk.Add(500 * time.Millisecond)
	if eng.IsIdle("s1") {
		t.Error("fresh session should not be idle")
	}

	// Shrink the window below the elapsed quiet time; the armed timer keeps
	// its old deadline, so the session is still tracked but now counts as
	// idle.
	short := 100 * time.Millisecond
	eng.UpdateConfig(ConfigUpdate{InactivityTimeout: &short})
	if !eng.IsIdle("s1") {
		t.Error("session quiet past the (updated) timeout should be idle")
	}
	if _, ok := eng.SessionInfo("s1"); !ok {
		t.Error("idle session is still tracked until its timer fires")
	}
}

func TestSessionInfoSnapshot(t *testing.T) {
	eng, mk, _ := newTestEngine(t, testConfig())
	base := mk.Now()

	eng.Process(userTurn("s1", base, "u-1"))
	eng.Process(assistantTurn("s1", base.Add(10*time.Millisecond), "a-1", 0.02))

	info, ok := eng.SessionInfo("s1")
	if !ok {
		t.Fatal("expected tracked session")
	}
	if !info.TaskInProgress || info.TaskMessages != 1 || info.TaskCost != 0.02 {
		t.Errorf("unexpected task state %+v", info)
	}
	if info.UserTurns != 1 || info.AssistantTurns != 1 || info.EventCount != 2 {
		t.Errorf("unexpected counters %+v", info)
	}

	want := map[string]bool{
		"inactivity": true, "task_immediate": true, "task_delayed": true, "progress": true,
	}
	if len(info.ArmedTimers) != len(want) {
		t.Fatalf("expected %d armed timers, got %v", len(want), info.ArmedTimers)
	}
	for _, name := range info.ArmedTimers {
		if !want[name] {
			t.Errorf("unexpected armed timer %s", name)
		}
	}

	if _, ok := eng.SessionInfo("missing"); ok {
		t.Error("expected miss for unknown id")
	}
}

func TestEventWithoutUUIDKeepsLast(t *testing.T) {
	eng, mk, col := newTestEngine(t, testConfig())
	base := mk.Now()

	eng.Process(assistantTurn("s1", base, "a-1", 0.05))
	eng.Process(summaryMsg("s1", base.Add(10*time.Millisecond), "Done"))

	mk.Add(5 * time.Second)
	done := col.sessions()
	if len(done) != 1 {
		t.Fatalf("expected 1 completion, got %d", len(done))
	}
	if done[0].LastMessageUUID != "a-1" {
		t.Errorf("uuid-less summary must not clear the last uuid, got %q", done[0].LastMessageUUID)
	}
}

func TestNegativeResolvedCostClamped(t *testing.T) {
	mk := clock.NewMock()
	eng := New(testConfig(), mk, CostResolverFunc(func(ev *transcript.Event) float64 {
		return -0.25
	}))
	col := &collector{}
	eng.Subscribe(col.handle)

	eng.Process(assistantTurn("s1", mk.Now(), "a-1", 0.10))
	info, _ := eng.SessionInfo("s1")
	if info.TotalCost != 0 || info.TaskCost != 0 {
		t.Errorf("negative resolver cost should clamp to zero, got %+v", info)
	}
}

func TestSummaryCancelsTaskTimers(t *testing.T) {
	eng, mk, col := newTestEngine(t, testConfig())
	base := mk.Now()

	eng.Process(assistantTurn("s1", base, "a-1", 0.05))
	mk.Add(10 * time.Millisecond)
	eng.Process(summaryMsg("s1", base.Add(10*time.Millisecond), "Early wrap"))

	// Both task timers were canceled; only the session completes.
	mk.Add(10 * time.Second)
	if got := len(col.tasks()); got != 0 {
		t.Errorf("summary should cancel pending task reports, got %d", got)
	}
	done := col.sessions()
	if len(done) != 1 {
		t.Fatalf("expected session completion, got %d", len(done))
	}
	if done[0].TotalCost != 0.05 {
		t.Errorf("session total still includes the silent task, got %v", done[0].TotalCost)
	}
}
