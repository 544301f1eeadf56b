package transcript

import (
	"bufio"
	"fmt"
	"io"
	"os"
)

// Transcript lines can run very large when tool results embed whole files.
const maxLineBytes = 8 << 20

// ReadFile parses a complete transcript in order. Malformed lines are
// dropped and counted rather than aborting the read; the events before an
// I/O failure are still returned.
func ReadFile(path string) ([]Event, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("open transcript: %w", err)
	}
	defer f.Close()
	return ReadAll(f, path)
}

// ReadAll parses every line of r as a transcript named by sourcePath,
// returning the tracked events and the count of malformed lines skipped.
func ReadAll(r io.Reader, sourcePath string) ([]Event, int, error) {
	dec := NewDecoder(sourcePath)
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	var events []Event
	skipped := 0
	for sc.Scan() {
		ev, err := dec.Decode(sc.Bytes())
		if err != nil {
			skipped++
			continue
		}
		if ev != nil {
			events = append(events, *ev)
		}
	}
	if err := sc.Err(); err != nil {
		return events, skipped, fmt.Errorf("read transcript: %w", err)
	}
	return events, skipped, nil
}
