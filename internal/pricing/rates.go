// internal/pricing/rates.go
package pricing

import (
	"strings"

	"github.com/user/taskping/pkg/transcript"
)

// DefaultModel prices turns that carry no model id.
const DefaultModel = "claude-sonnet-4-20250514"

// ModelRates holds a model's per-million-token prices in USD.
type ModelRates struct {
	Input      float64
	Output     float64
	CacheRead  float64
	CacheWrite float64
}

func newRates(input, output float64) ModelRates {
	return ModelRates{
		Input:      input,
		Output:     output,
		CacheRead:  input * 0.1,
		CacheWrite: input * 1.25,
	}
}

// Model ids carry date suffixes ("claude-sonnet-4-20250514"), so the table
// matches on family prefixes instead of exact ids.
var ratesByPrefix = []struct {
	prefix string
	rates  ModelRates
}{
	{"claude-opus", newRates(15, 75)},
	{"claude-3-opus", newRates(15, 75)},
	{"claude-sonnet", newRates(3, 15)},
	{"claude-3-7-sonnet", newRates(3, 15)},
	{"claude-3-5-sonnet", newRates(3, 15)},
	{"claude-haiku", newRates(0.80, 4)},
	{"claude-3-5-haiku", newRates(0.80, 4)},
	{"claude-3-haiku", newRates(0.25, 1.25)},
}

var fallbackRates = newRates(3, 15)

// RatesFor returns the longest-prefix rate match for a model id.
func RatesFor(model string) (ModelRates, bool) {
	best := ModelRates{}
	bestLen := -1
	for _, e := range ratesByPrefix {
		if strings.HasPrefix(model, e.prefix) && len(e.prefix) > bestLen {
			best, bestLen = e.rates, len(e.prefix)
		}
	}
	if bestLen < 0 {
		return ModelRates{}, false
	}
	return best, true
}

// Cost prices a usage block at these rates.
func (r ModelRates) Cost(u *transcript.Usage) float64 {
	const mtok = 1_000_000
	return float64(u.InputTokens)*r.Input/mtok +
		float64(u.OutputTokens)*r.Output/mtok +
		float64(u.CacheReadInputTokens)*r.CacheRead/mtok +
		float64(u.CacheCreationInputTokens)*r.CacheWrite/mtok
}
