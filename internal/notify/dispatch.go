// internal/notify/dispatch.go
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/user/taskping/internal/types"
)

// Dispatcher fans rendered messages out to every registered channel.
// Each channel gets its own FIFO lane so deliveries on one channel stay
// ordered, while the semaphore limits total concurrent sends across
// channels. Slow channels back up their own lane without delaying others.
type Dispatcher struct {
	registry *Registry
	mutes    *MuteStore
	retry    *RetryPolicy
	signal   types.CompletionType

	lanes   map[string]chan *Message
	sem     *semaphore.Weighted
	pending atomic.Int64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// DispatcherOptions tunes dispatch behavior. Zero values select defaults.
type DispatcherOptions struct {
	// MaxConcurrent caps simultaneous sends across all channels.
	MaxConcurrent int64
	// CompletionSignal selects which task-completion confidence notifies
	// humans, so a task never pings twice.
	CompletionSignal types.CompletionType
	// Retry overrides the delivery retry policy.
	Retry *RetryPolicy
}

// NewDispatcher creates a dispatcher over the given registry. mutes may be
// nil to disable mute checks.
func NewDispatcher(registry *Registry, mutes *MuteStore, opts DispatcherOptions) *Dispatcher {
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 2
	}
	if opts.CompletionSignal == "" {
		opts.CompletionSignal = types.CompletionImmediate
	}
	if opts.Retry == nil {
		opts.Retry = DefaultRetryPolicy()
	}
	return &Dispatcher{
		registry: registry,
		mutes:    mutes,
		retry:    opts.Retry,
		signal:   opts.CompletionSignal,
		lanes:    make(map[string]chan *Message),
		sem:      semaphore.NewWeighted(opts.MaxConcurrent),
	}
}

// Start initialises the dispatcher's context. Must be called before any
// message is handled.
func (d *Dispatcher) Start(ctx context.Context) {
	d.ctx, d.cancel = context.WithCancel(ctx)
}

// Stop cancels the context, closes all lanes, and waits for in-flight
// sends to finish.
func (d *Dispatcher) Stop() {
	if d.cancel != nil {
		d.cancel()
	}
	d.mu.Lock()
	for _, lane := range d.lanes {
		close(lane)
	}
	d.lanes = make(map[string]chan *Message)
	d.mu.Unlock()
	d.wg.Wait()
}

// Notify is the engine-facing entry point: render, apply mutes, broadcast.
// Errors are logged, never returned; a broken channel must not stall the
// event stream.
func (d *Dispatcher) Notify(n types.Notification) {
	msg, ok := Render(n, d.signal)
	if !ok {
		return
	}
	if d.mutes != nil && d.mutes.IsMuted(msg.Project, time.Now()) {
		slog.Debug("notification muted", "project", msg.Project, "kind", msg.Kind)
		return
	}
	if err := d.Broadcast(msg); err != nil {
		slog.Warn("broadcast notification", "kind", msg.Kind, "error", err)
	}
}

// Broadcast enqueues a message for every registered channel.
func (d *Dispatcher) Broadcast(msg *Message) error {
	var firstErr error
	for _, name := range d.registry.Names() {
		if err := d.enqueue(name, msg); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// enqueue adds a message to the channel's lane, creating the lane (and its
// goroutine) on first use. Returns an error if the lane's buffer is full.
func (d *Dispatcher) enqueue(channel string, msg *Message) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	lane, exists := d.lanes[channel]
	if !exists {
		lane = make(chan *Message, 100)
		d.lanes[channel] = lane
		d.wg.Add(1)
		go d.processLane(channel, lane)
	}

	select {
	case lane <- msg:
		d.pending.Add(1)
		return nil
	default:
		return fmt.Errorf("notification queue full for channel %s", channel)
	}
}

// processLane drains a single channel lane, acquiring a semaphore slot
// before sending synchronously. Strict FIFO per channel; the semaphore
// limits cross-channel parallelism.
func (d *Dispatcher) processLane(channel string, lane chan *Message) {
	defer d.wg.Done()
	for {
		select {
		case msg, ok := <-lane:
			if !ok {
				return
			}
			if err := d.sem.Acquire(d.ctx, 1); err != nil {
				return
			}
			if err := d.deliver(channel, msg); err != nil {
				slog.Error("notification delivery failed",
					"channel", channel,
					"id", string(msg.ID),
					"kind", msg.Kind,
					"session_id", string(msg.SessionID),
					"error", err)
			}
			d.pending.Add(-1)
			d.sem.Release(1)
		case <-d.ctx.Done():
			return
		}
	}
}

func (d *Dispatcher) deliver(channel string, msg *Message) error {
	return d.retry.Execute(d.ctx, func() error {
		return d.registry.Deliver(d.ctx, channel, msg)
	})
}

// WaitIdle blocks until every enqueued message has been delivered (or
// dropped), or the timeout expires. Returns true if idle, false if timed
// out. Used to flush pending notifications on shutdown.
func (d *Dispatcher) WaitIdle(timeout time.Duration) bool {
	deadline := time.After(timeout)
	for {
		if d.pending.Load() == 0 {
			return true
		}
		select {
		case <-deadline:
			return false
		case <-time.After(10 * time.Millisecond):
		}
	}
}
