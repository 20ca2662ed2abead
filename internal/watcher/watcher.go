package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher turns fsnotify events into debounced batches of FileEvents
// for the indexer.
type Watcher struct {
	opts      Options
	fsWatcher *fsnotify.Watcher
	debouncer *Debouncer
	rootPath  string

	events chan []FileEvent
	errs   chan error
	stopCh chan struct{}

	mu      sync.Mutex
	stopped bool
}

// New creates a watcher.
func New(opts Options) (*Watcher, error) {
	opts = opts.WithDefaults()

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}

	return &Watcher{
		opts:      opts,
		fsWatcher: fsw,
		debouncer: NewDebouncer(opts.DebounceWindow),
		events:    make(chan []FileEvent, opts.EventBufferSize),
		errs:      make(chan error, 10),
		stopCh:    make(chan struct{}),
	}, nil
}

// Start watches root recursively until the context ends or Stop is
// called. It blocks.
func (w *Watcher) Start(ctx context.Context, root string) error {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("resolve watch root: %w", err)
	}
	w.rootPath = absRoot

	if err := w.addRecursive(absRoot); err != nil {
		return fmt.Errorf("watch directories: %w", err)
	}

	go w.forwardBatches(ctx)

	for {
		select {
		case <-ctx.Done():
			_ = w.Stop()
			return ctx.Err()
		case <-w.stopCh:
			return nil
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return nil
			}
			w.emitError(err)
		}
	}
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") && path != root {
			return filepath.SkipDir
		}
		return w.fsWatcher.Add(path)
	})
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	relPath, err := filepath.Rel(w.rootPath, event.Name)
	if err != nil {
		relPath = event.Name
	}
	relPath = filepath.ToSlash(relPath)

	isDir := false
	if info, err := os.Stat(event.Name); err == nil {
		isDir = info.IsDir()
	}

	if w.shouldIgnore(relPath, isDir) {
		return
	}

	var op Operation
	switch {
	case event.Op&fsnotify.Create != 0:
		op = OpCreate
		// Watch new directories as they appear.
		if isDir {
			_ = w.fsWatcher.Add(event.Name)
			return
		}
	case event.Op&fsnotify.Write != 0:
		op = OpModify
	case event.Op&fsnotify.Remove != 0, event.Op&fsnotify.Rename != 0:
		// A renamed file re-enters as a CREATE at its new path.
		op = OpDelete
	default:
		return
	}

	w.debouncer.Add(FileEvent{
		Path:      relPath,
		Operation: op,
		Timestamp: time.Now(),
	})
}

// shouldIgnore filters hidden files, editor temp files, and anything
// outside the corpus matcher.
func (w *Watcher) shouldIgnore(relPath string, isDir bool) bool {
	base := filepath.Base(relPath)
	if strings.HasPrefix(base, ".") {
		return true
	}
	if strings.HasSuffix(base, "~") || strings.HasSuffix(base, ".swp") || strings.HasSuffix(base, ".tmp") {
		return true
	}
	for _, part := range strings.Split(filepath.ToSlash(relPath), "/") {
		if strings.HasPrefix(part, ".") {
			return true
		}
	}
	if isDir {
		return false
	}
	if w.opts.Matches != nil && !w.opts.Matches(relPath) {
		return true
	}
	return false
}

func (w *Watcher) forwardBatches(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case batch, ok := <-w.debouncer.Output():
			if !ok {
				return
			}
			select {
			case w.events <- batch:
			default:
				w.emitError(fmt.Errorf("event buffer full, dropped batch of %d", len(batch)))
			}
		}
	}
}

func (w *Watcher) emitError(err error) {
	select {
	case w.errs <- err:
	default:
	}
}

// Events returns debounced event batches.
func (w *Watcher) Events() <-chan []FileEvent {
	return w.events
}

// Errors returns non-fatal watcher errors.
func (w *Watcher) Errors() <-chan error {
	return w.errs
}

// Stop shuts the watcher down. Safe to call multiple times.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return nil
	}
	w.stopped = true
	close(w.stopCh)
	w.debouncer.Stop()
	return w.fsWatcher.Close()
}
