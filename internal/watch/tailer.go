// internal/watch/tailer.go
package watch

import (
	"bytes"
	"io"
	"log/slog"
	"os"

	"github.com/user/taskping/pkg/transcript"
)

// tailer tracks one transcript file: the byte offset consumed so far and
// any trailing partial line waiting for its newline.
type tailer struct {
	path   string
	dec    *transcript.Decoder
	offset int64
	carry  []byte
}

func newTailer(path string) *tailer {
	return &tailer{path: path, dec: transcript.NewDecoder(path)}
}

// skipToEnd positions the tailer at EOF without decoding history.
func (t *tailer) skipToEnd() error {
	info, err := os.Stat(t.path)
	if err != nil {
		return err
	}
	t.offset = info.Size()
	t.carry = nil
	return nil
}

// drain decodes every complete line appended since the last call. A file
// that shrank below the stored offset was truncated or replaced; the tailer
// starts over from the top.
func (t *tailer) drain() ([]*transcript.Event, error) {
	f, err := os.Open(t.path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if info.Size() < t.offset {
		slog.Debug("transcript shrank, re-reading from start", "path", t.path)
		t.offset = 0
		t.carry = nil
	}
	if info.Size() == t.offset {
		return nil, nil
	}
	if _, err := f.Seek(t.offset, io.SeekStart); err != nil {
		return nil, err
	}
	buf, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	t.offset += int64(len(buf))

	data := append(t.carry, buf...)
	var events []*transcript.Event
	for {
		idx := bytes.IndexByte(data, '\n')
		if idx < 0 {
			break
		}
		line := data[:idx]
		data = data[idx+1:]
		ev, err := t.dec.Decode(line)
		if err != nil {
			slog.Warn("skipping malformed transcript line", "path", t.path, "error", err)
			continue
		}
		if ev != nil {
			events = append(events, ev)
		}
	}
	t.carry = append([]byte(nil), data...)
	return events, nil
}
