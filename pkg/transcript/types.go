// Package transcript reads Claude Code conversation files: append-only
// JSONL, one file per session, one JSON object per line. It normalizes the
// raw entries into the three event kinds the completion engine consumes and
// drops everything else (meta entries, tool-result echoes, system lines).
package transcript

import (
	"encoding/json"
	"time"
)

// Kind classifies a normalized transcript event.
type Kind string

const (
	KindUser      Kind = "user"
	KindAssistant Kind = "assistant"
	KindSummary   Kind = "summary"
)

// Usage carries the token counts of one assistant turn.
type Usage struct {
	InputTokens              int `json:"input_tokens"`
	OutputTokens             int `json:"output_tokens"`
	CacheReadInputTokens     int `json:"cache_read_input_tokens"`
	CacheCreationInputTokens int `json:"cache_creation_input_tokens"`
}

// TotalTokens sums every counted category.
func (u Usage) TotalTokens() int {
	return u.InputTokens + u.OutputTokens + u.CacheReadInputTokens + u.CacheCreationInputTokens
}

// Entry is the raw shape of one transcript line. Only the fields this
// package reads are declared; unknown fields are ignored.
type Entry struct {
	Type       string          `json:"type"`
	SessionID  string          `json:"sessionId"`
	Timestamp  string          `json:"timestamp"`
	UUID       string          `json:"uuid"`
	Cwd        string          `json:"cwd"`
	CostUSD    *float64        `json:"costUSD"`
	DurationMs *int64          `json:"durationMs"`
	IsMeta     bool            `json:"isMeta"`
	Summary    string          `json:"summary"`
	LeafUUID   string          `json:"leafUuid"`
	Usage      *Usage          `json:"usage"`
	Message    *Message        `json:"message"`
	ToolResult json.RawMessage `json:"toolUseResult"`
}

// Message is the API message embedded in user and assistant entries.
// Content is either a bare string or an array of typed blocks.
type Message struct {
	ID      string          `json:"id"`
	Role    string          `json:"role"`
	Model   string          `json:"model"`
	Content json.RawMessage `json:"content"`
	Usage   *Usage          `json:"usage"`
}

// Event is a normalized entry. CostUSD is nil when the line carried no
// explicit cost; Usage is nil when no token counts were present at either
// level. Summary events inherit the last timestamp seen in their file.
type Event struct {
	Kind        Kind
	SessionID   string
	Timestamp   time.Time
	UUID        string
	Cwd         string
	SourcePath  string
	Model       string
	CostUSD     *float64
	Usage       *Usage
	APIDuration time.Duration
	Text        string
	Summary     string
}
