// internal/pricing/resolver.go
package pricing

import (
	"log/slog"
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"github.com/user/taskping/internal/engine"
	"github.com/user/taskping/pkg/transcript"
)

var _ engine.CostResolver = (*Resolver)(nil)

// Options configures cost resolution.
type Options struct {
	// DefaultModel prices turns with no model id and turns whose model is
	// not in the rate table.
	DefaultModel string
	// EstimateMissingUsage tokenizes the response text when a turn carries
	// neither an explicit cost nor a usage block. Off by default: turns
	// without usage stay free rather than guessed.
	EstimateMissingUsage bool
}

// Resolver turns assistant-turn metadata into dollars. Precedence: an
// explicit cost reported by the producer wins, then the usage block priced
// by the rate table, then (optionally) a tokenizer estimate of the response
// text. Anything else costs zero.
type Resolver struct {
	opts   Options
	encode func(string) int

	mu     sync.Mutex
	warned map[string]struct{}
}

// NewResolver builds a resolver. The tokenizer is only initialized when
// estimation is requested; a failed init disables estimates but never
// fails construction.
func NewResolver(opts Options) *Resolver {
	if opts.DefaultModel == "" {
		opts.DefaultModel = DefaultModel
	}
	r := &Resolver{opts: opts, warned: make(map[string]struct{})}
	if opts.EstimateMissingUsage {
		r.encode = newEncoder(opts.DefaultModel)
	}
	return r
}

func newEncoder(model string) func(string) int {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		// Fallback to cl100k_base for unknown models
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			slog.Warn("tokenizer unavailable, cost estimates disabled", "error", err)
			return nil
		}
	}
	return func(text string) int {
		return len(enc.Encode(text, nil, nil))
	}
}

// Resolve implements engine.CostResolver.
func (r *Resolver) Resolve(ev *transcript.Event) float64 {
	if ev.CostUSD != nil && *ev.CostUSD > 0 {
		return *ev.CostUSD
	}
	if ev.Kind != transcript.KindAssistant {
		return 0
	}
	rates := r.ratesFor(ev.Model)
	if ev.Usage != nil {
		return rates.Cost(ev.Usage)
	}
	if r.encode != nil && ev.Text != "" {
		// Output-only approximation: the prompt is not visible here, and
		// output tokens dominate the bill.
		return float64(r.encode(ev.Text)) * rates.Output / 1_000_000
	}
	return 0
}

func (r *Resolver) ratesFor(model string) ModelRates {
	if model == "" {
		model = r.opts.DefaultModel
	}
	if rates, ok := RatesFor(model); ok {
		return rates
	}
	r.warnOnce(model)
	if rates, ok := RatesFor(r.opts.DefaultModel); ok {
		return rates
	}
	return fallbackRates
}

func (r *Resolver) warnOnce(model string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.warned[model]; ok {
		return
	}
	r.warned[model] = struct{}{}
	slog.Warn("no pricing for model, using default rates",
		"model", model,
		"default", r.opts.DefaultModel)
}
