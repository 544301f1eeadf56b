// internal/watch/watcher.go

// Package watch tails Claude Code transcript files and feeds their events
// to a sink. Transcripts are JSONL files appended to live under
// ~/.claude/projects/<encoded-project>/<session-id>.jsonl; the watcher
// follows appends via fsnotify and backstops missed notifications with a
// periodic rescan.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/user/taskping/pkg/transcript"
)

// Sink receives decoded transcript events in file order.
type Sink interface {
	Process(ev *transcript.Event)
}

// Options tunes watcher behavior.
type Options struct {
	// ReplayExisting decodes transcript content that predates startup.
	// Off by default: a restart should not re-announce finished work.
	ReplayExisting bool
	// RescanInterval bounds how stale a missed notification can leave us.
	RescanInterval time.Duration
}

// Watcher follows every transcript under a root directory.
type Watcher struct {
	root    string
	sink    Sink
	opts    Options
	tailers map[string]*tailer
}

// New creates a watcher over root. Events go to sink from the watcher's
// goroutine, one at a time.
func New(root string, sink Sink, opts Options) *Watcher {
	if opts.RescanInterval <= 0 {
		opts.RescanInterval = 30 * time.Second
	}
	return &Watcher{
		root:    root,
		sink:    sink,
		opts:    opts,
		tailers: make(map[string]*tailer),
	}
}

// DefaultRoot returns the conventional transcript location.
func DefaultRoot() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home: %w", err)
	}
	return filepath.Join(home, ".claude", "projects"), nil
}

// Run watches the root until ctx is canceled. A missing root is not an
// error; the rescan ticker picks it up once it appears.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fw.Close()

	w.addTree(fw, w.root)
	w.scanInitial()

	ticker := time.NewTicker(w.opts.RescanInterval)
	defer ticker.Stop()

	slog.Info("watching transcripts", "root", w.root, "replay", w.opts.ReplayExisting)
	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(fw, ev)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			slog.Warn("watch error", "error", err)

		case <-ticker.C:
			w.addTree(fw, w.root)
			w.rescan()
		}
	}
}

func (w *Watcher) handleEvent(fw *fsnotify.Watcher, ev fsnotify.Event) {
	if ev.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			// New project directory: watch it and anything already inside.
			w.addTree(fw, ev.Name)
			w.rescan()
			return
		}
	}
	if !isTranscript(ev.Name) {
		return
	}
	switch {
	case ev.Has(fsnotify.Create), ev.Has(fsnotify.Write):
		w.drainFile(ev.Name)
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		delete(w.tailers, ev.Name)
	}
}

// scanInitial registers transcripts that already exist at startup, either
// replaying them or seeking past their history.
func (w *Watcher) scanInitial() {
	w.walkTranscripts(func(path string) {
		t := newTailer(path)
		w.tailers[path] = t
		if w.opts.ReplayExisting {
			w.drainFile(path)
			return
		}
		if err := t.skipToEnd(); err != nil {
			slog.Warn("skip transcript history", "path", path, "error", err)
			delete(w.tailers, path)
		}
	})
}

// rescan drains every known tailer and picks up files fsnotify missed.
// Files first seen here appeared after startup, so their content is new
// and gets decoded in full.
func (w *Watcher) rescan() {
	w.walkTranscripts(func(path string) {
		w.drainFile(path)
	})
	for path := range w.tailers {
		w.drainFile(path)
	}
}

func (w *Watcher) drainFile(path string) {
	t, ok := w.tailers[path]
	if !ok {
		t = newTailer(path)
		w.tailers[path] = t
	}
	events, err := t.drain()
	if err != nil {
		if os.IsNotExist(err) {
			delete(w.tailers, path)
			return
		}
		slog.Warn("drain transcript", "path", path, "error", err)
		return
	}
	for _, ev := range events {
		w.sink.Process(ev)
	}
}

func (w *Watcher) addTree(fw *fsnotify.Watcher, dir string) {
	filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) && path == dir {
				return filepath.SkipAll
			}
			return nil
		}
		if d.IsDir() {
			if err := fw.Add(path); err != nil {
				slog.Warn("watch dir", "path", path, "error", err)
			}
		}
		return nil
	})
}

func (w *Watcher) walkTranscripts(fn func(path string)) {
	filepath.WalkDir(w.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() && isTranscript(path) {
			fn(path)
		}
		return nil
	})
}

func isTranscript(path string) bool {
	return filepath.Ext(path) == ".jsonl"
}
