package transcript

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// Decoder normalizes the lines of a single transcript file. It is stateful:
// the source path supplies the session-id fallback (a transcript file is
// named by its session id), and summary lines, which carry no timestamp of
// their own, inherit the last one seen in the file.
type Decoder struct {
	source     string
	fallbackID string
	lastSeen   time.Time
}

func NewDecoder(sourcePath string) *Decoder {
	base := filepath.Base(sourcePath)
	return &Decoder{
		source:     sourcePath,
		fallbackID: strings.TrimSuffix(base, filepath.Ext(base)),
	}
}

// Decode parses one line. A nil event with a nil error means the line is
// valid but not something this tool tracks. A non-nil error means the line
// is malformed; callers log and drop it.
func (d *Decoder) Decode(line []byte) (*Event, error) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return nil, nil
	}

	var entry Entry
	if err := json.Unmarshal(line, &entry); err != nil {
		return nil, fmt.Errorf("parse transcript line: %w", err)
	}

	switch entry.Type {
	case "summary":
		return d.summaryEvent(&entry), nil
	case "user", "assistant":
		// handled below
	default:
		return nil, nil
	}

	if entry.IsMeta {
		return nil, nil
	}

	ts, err := parseTimestamp(entry.Timestamp)
	if err != nil {
		return nil, err
	}
	d.lastSeen = ts

	ev := &Event{
		SessionID:  d.sessionID(entry.SessionID),
		Timestamp:  ts,
		UUID:       entry.UUID,
		Cwd:        entry.Cwd,
		SourcePath: d.source,
		CostUSD:    entry.CostUSD,
		Text:       messageText(entry.Message),
	}
	if entry.DurationMs != nil {
		ev.APIDuration = time.Duration(*entry.DurationMs) * time.Millisecond
	}

	switch entry.Type {
	case "user":
		// Tool results come back typed as user entries. They are machinery,
		// not the human speaking, and must not reset task tracking.
		if len(entry.ToolResult) > 0 || hasToolResult(entry.Message) {
			return nil, nil
		}
		ev.Kind = KindUser
	case "assistant":
		ev.Kind = KindAssistant
		if entry.Message != nil {
			ev.Model = entry.Message.Model
		}
		ev.Usage = entry.Usage
		if ev.Usage == nil && entry.Message != nil {
			ev.Usage = entry.Message.Usage
		}
	}
	return ev, nil
}

// summaryEvent handles summary lines. A summary before any timestamped
// entry is the resume header Claude writes at the top of a continued file,
// describing the previous conversation; it is not a completion signal.
func (d *Decoder) summaryEvent(entry *Entry) *Event {
	if d.lastSeen.IsZero() {
		return nil
	}
	return &Event{
		Kind:       KindSummary,
		SessionID:  d.sessionID(entry.SessionID),
		Timestamp:  d.lastSeen,
		UUID:       entry.UUID,
		SourcePath: d.source,
		Summary:    entry.Summary,
	}
}

func (d *Decoder) sessionID(explicit string) string {
	if explicit != "" {
		return explicit
	}
	return d.fallbackID
}

func parseTimestamp(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, errors.New("transcript line has no timestamp")
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// messageText joins the text blocks of a message. Content arrives either as
// a bare string or as an array of typed blocks.
func messageText(m *Message) string {
	if m == nil || len(m.Content) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(m.Content, &s); err == nil {
		return s
	}
	var blocks []contentBlock
	if err := json.Unmarshal(m.Content, &blocks); err != nil {
		return ""
	}
	var parts []string
	for _, b := range blocks {
		if b.Type == "text" && b.Text != "" {
			parts = append(parts, b.Text)
		}
	}
	return strings.Join(parts, "\n")
}

func hasToolResult(m *Message) bool {
	if m == nil || len(m.Content) == 0 {
		return false
	}
	var blocks []contentBlock
	if err := json.Unmarshal(m.Content, &blocks); err != nil {
		return false
	}
	for _, b := range blocks {
		if b.Type == "tool_result" {
			return true
		}
	}
	return false
}
