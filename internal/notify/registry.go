// internal/notify/registry.go
package notify

import (
	"context"
	"fmt"
	"sync"
)

// Registry holds the channels notifications fan out to.
type Registry struct {
	mu       sync.RWMutex
	channels map[string]Channel
	order    []string
}

// NewRegistry creates an empty channel registry.
func NewRegistry() *Registry {
	return &Registry{
		channels: make(map[string]Channel),
	}
}

// Register adds a channel. Re-registering a name replaces the channel but
// keeps its broadcast position.
func (r *Registry) Register(ch Channel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := ch.Name()
	if _, ok := r.channels[name]; !ok {
		r.order = append(r.order, name)
	}
	r.channels[name] = ch
}

// Names returns channel names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Get looks up a channel by name.
func (r *Registry) Get(name string) (Channel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ch, ok := r.channels[name]
	return ch, ok
}

// Deliver sends a message on the named channel. Returns an error if no
// such channel is registered.
func (r *Registry) Deliver(ctx context.Context, name string, msg *Message) error {
	ch, ok := r.Get(name)
	if !ok {
		return fmt.Errorf("no notification channel: %s", name)
	}
	return ch.Send(ctx, msg)
}
