// Package tail incrementally watches a directory of append-only log files
// and emits newly appended complete lines. Files are tracked by byte offset;
// a size decrease is treated as rotation/truncation and resets the offset to
// zero. Reads are serialized per file: a change event arriving while a read
// is in flight coalesces into one more read after the current one finishes.
package tail

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/ZehenForever/eqrespawn/internal/model"
)

type Options struct {
	Dir string

	// Extensions and Prefixes filter which file names are watched. Empty
	// slices match everything. Extensions are compared case-insensitively.
	Extensions []string
	Prefixes   []string

	// RescanInterval bounds how long a missed filesystem event can delay a
	// read. Zero disables the safety rescan.
	RescanInterval time.Duration

	Logger zerolog.Logger
}

// Batch carries the complete lines appended to one file since the last read.
type Batch struct {
	Path  string
	Lines []string
}

// Trigger is a countdown-timer pattern tested against every emitted line.
type Trigger struct {
	ID      string
	Pattern model.Pattern
}

type TriggerMatch struct {
	TriggerID string
	Line      string
	At        time.Time
}

// CharacterName derives the character a log file belongs to from the
// standard eqlog_<Character>_<server>.txt naming.
func CharacterName(path string) (string, bool) {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if !strings.HasPrefix(base, "eqlog_") {
		return "", false
	}
	parts := strings.Split(strings.TrimPrefix(base, "eqlog_"), "_")
	if len(parts) < 2 || parts[0] == "" {
		return "", false
	}
	return parts[0], true
}

type fileState struct {
	mu      sync.Mutex
	offset  int64
	partial []byte
	reading bool
	again   bool
}

type Watcher struct {
	opts Options

	mu       sync.Mutex
	files    map[string]*fileState
	triggers []Trigger

	lines   chan Batch
	matches chan TriggerMatch
}

func New(opts Options) (*Watcher, error) {
	if opts.Dir == "" {
		return nil, errors.New("tail: empty directory")
	}
	return &Watcher{
		opts:    opts,
		files:   make(map[string]*fileState),
		lines:   make(chan Batch, 64),
		matches: make(chan TriggerMatch, 64),
	}, nil
}

func (w *Watcher) Lines() <-chan Batch          { return w.lines }
func (w *Watcher) Matches() <-chan TriggerMatch { return w.matches }

// SetTriggers replaces the trigger pattern set.
func (w *Watcher) SetTriggers(triggers []Trigger) {
	w.mu.Lock()
	w.triggers = triggers
	w.mu.Unlock()
}

// Start enumerates existing matching files, records each current size as the
// initial read offset (historical content is not re-processed), then blocks
// watching for filesystem events until ctx is done.
func (w *Watcher) Start(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	if err := fw.Add(w.opts.Dir); err != nil {
		return err
	}

	entries, err := os.ReadDir(w.opts.Dir)
	if err != nil {
		return err
	}
	for _, ent := range entries {
		if ent.IsDir() || !w.watchable(ent.Name()) {
			continue
		}
		info, err := ent.Info()
		if err != nil {
			continue
		}
		w.track(filepath.Join(w.opts.Dir, ent.Name()), info.Size())
	}

	var rescan <-chan time.Time
	if w.opts.RescanInterval > 0 {
		t := time.NewTicker(w.opts.RescanInterval)
		defer t.Stop()
		rescan = t.C
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !w.watchable(filepath.Base(ev.Name)) {
				continue
			}
			switch {
			case ev.Has(fsnotify.Create):
				// New file: read from the beginning.
				w.track(ev.Name, 0)
				w.scheduleRead(ctx, ev.Name)
			case ev.Has(fsnotify.Write):
				w.scheduleRead(ctx, ev.Name)
			case ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename):
				w.forget(ev.Name)
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.opts.Logger.Warn().Err(err).Msg("watch error")
		case <-rescan:
			for _, path := range w.tracked() {
				w.scheduleRead(ctx, path)
			}
		}
	}
}

func (w *Watcher) watchable(name string) bool {
	okExt := len(w.opts.Extensions) == 0
	for _, ext := range w.opts.Extensions {
		if strings.EqualFold(filepath.Ext(name), ext) {
			okExt = true
			break
		}
	}
	if !okExt {
		return false
	}
	if len(w.opts.Prefixes) == 0 {
		return true
	}
	for _, p := range w.opts.Prefixes {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}

func (w *Watcher) track(path string, offset int64) *fileState {
	w.mu.Lock()
	defer w.mu.Unlock()
	st, ok := w.files[path]
	if !ok {
		st = &fileState{offset: offset}
		w.files[path] = st
	}
	return st
}

func (w *Watcher) forget(path string) {
	w.mu.Lock()
	delete(w.files, path)
	w.mu.Unlock()
}

func (w *Watcher) tracked() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]string, 0, len(w.files))
	for p := range w.files {
		out = append(out, p)
	}
	return out
}

// scheduleRead starts a read for the file unless one is already in flight,
// in which case it marks the state to run once more afterwards. This bounds
// concurrent reads to one per file without losing the latest state.
func (w *Watcher) scheduleRead(ctx context.Context, path string) {
	w.mu.Lock()
	st, ok := w.files[path]
	if !ok {
		st = &fileState{}
		w.files[path] = st
	}
	w.mu.Unlock()

	st.mu.Lock()
	if st.reading {
		st.again = true
		st.mu.Unlock()
		return
	}
	st.reading = true
	st.mu.Unlock()

	go func() {
		for {
			if err := w.readDelta(ctx, path, st); err != nil && !errors.Is(err, context.Canceled) {
				w.opts.Logger.Warn().Err(err).Str("path", path).Msg("read failed")
			}
			st.mu.Lock()
			if !st.again {
				st.reading = false
				st.mu.Unlock()
				return
			}
			st.again = false
			st.mu.Unlock()
		}
	}()
}

// readDelta reads exactly the bytes appended since the recorded offset and
// emits the complete lines found. The trailing partial fragment is buffered
// until its newline arrives. On failure nothing is consumed; the next event
// or rescan retries from the same offset.
func (w *Watcher) readDelta(ctx context.Context, path string, st *fileState) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return err
	}

	if fi.Size() < st.offset {
		// Rotated or truncated: restart from the top, dropping any buffered
		// fragment from the old content.
		st.offset = 0
		st.partial = st.partial[:0]
	}
	delta := fi.Size() - st.offset
	if delta <= 0 {
		return nil
	}

	if _, err := f.Seek(st.offset, io.SeekStart); err != nil {
		return err
	}
	buf := make([]byte, delta)
	n, err := io.ReadFull(f, buf)
	if n == 0 && err != nil {
		return err
	}
	st.offset += int64(n)

	data := append(st.partial, buf[:n]...)
	var batch []string
	for {
		idx := bytes.IndexByte(data, '\n')
		if idx < 0 {
			break
		}
		line := strings.TrimSuffix(string(data[:idx]), "\r")
		if line != "" {
			batch = append(batch, line)
		}
		data = data[idx+1:]
	}
	st.partial = append(st.partial[:0], data...)

	if len(batch) == 0 {
		return nil
	}

	select {
	case w.lines <- Batch{Path: path, Lines: batch}:
	case <-ctx.Done():
		return ctx.Err()
	}

	w.mu.Lock()
	triggers := w.triggers
	w.mu.Unlock()
	if len(triggers) == 0 {
		return nil
	}
	now := time.Now()
	for _, line := range batch {
		lower := strings.ToLower(line)
		for _, tr := range triggers {
			if tr.Pattern.Match(lower) {
				select {
				case w.matches <- TriggerMatch{TriggerID: tr.ID, Line: line, At: now}:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		}
	}
	return nil
}
