package watch

import (
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/dshills/oro/internal/logging"
)

// Watcher watches a directory tree with fsnotify. New subdirectories are
// picked up as they appear.
type Watcher struct {
	mu sync.Mutex

	watcher *fsnotify.Watcher
	filter  Filter
	log     *logging.Logger

	paths map[string]bool

	events chan Event
	errors chan error

	closed   bool
	closeCh  chan struct{}
	closedWg sync.WaitGroup
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithFilter sets the include/ignore filter.
func WithFilter(f Filter) Option {
	return func(w *Watcher) {
		w.filter = f
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(w *Watcher) {
		if l != nil {
			w.log = l
		}
	}
}

// New creates a watcher. Call WatchTree to add directories.
func New(opts ...Option) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		watcher: fsw,
		log:     logging.Nop(),
		paths:   make(map[string]bool),
		events:  make(chan Event, 100),
		errors:  make(chan error, 10),
		closeCh: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.log = w.log.WithComponent("watch")

	w.closedWg.Add(1)
	go w.processLoop()

	return w, nil
}

// WatchTree watches root and every directory below it that the filter does
// not ignore.
func (w *Watcher) WatchTree(root string) error {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return err
	}

	info, err := os.Stat(absRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return ErrPathNotExist
		}
		return err
	}
	if !info.IsDir() {
		return w.add(absRoot)
	}

	return filepath.WalkDir(absRoot, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable subtrees are skipped, not fatal.
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if p != absRoot && w.filter.IgnoreDir(p) {
			return filepath.SkipDir
		}
		if err := w.add(p); err != nil && err != ErrAlreadyWatching {
			return err
		}
		return nil
	})
}

func (w *Watcher) add(path string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrWatcherClosed
	}
	if w.paths[path] {
		return ErrAlreadyWatching
	}
	if err := w.watcher.Add(path); err != nil {
		return err
	}
	w.paths[path] = true
	return nil
}

// IsWatching returns true if the directory is being watched.
func (w *Watcher) IsWatching(path string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	absPath, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	return w.paths[absPath]
}

// Events returns the event channel.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Errors returns the error channel.
func (w *Watcher) Errors() <-chan error {
	return w.errors
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	close(w.closeCh)
	w.mu.Unlock()

	w.closedWg.Wait()

	close(w.events)
	close(w.errors)

	return w.watcher.Close()
}

func (w *Watcher) processLoop() {
	defer w.closedWg.Done()

	for {
		select {
		case <-w.closeCh:
			return

		case fsEvent, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleFSEvent(fsEvent)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			select {
			case w.errors <- err:
			default:
				w.log.Warn("dropping watcher error", logging.Fields(logging.FieldError, err))
			}
		}
	}
}

func (w *Watcher) handleFSEvent(fsEvent fsnotify.Event) {
	op := convertOp(fsEvent.Op)
	if op == 0 {
		return
	}

	if op.Has(OpCreate) {
		if info, err := os.Stat(fsEvent.Name); err == nil && info.IsDir() {
			if !w.filter.IgnoreDir(fsEvent.Name) {
				if err := w.WatchTree(fsEvent.Name); err != nil {
					w.log.Debug("cannot watch new directory", logging.Fields(
						logging.FieldPath, fsEvent.Name,
						logging.FieldError, err,
					))
				}
			}
			return
		}
	}

	if !w.filter.MatchFile(fsEvent.Name) {
		return
	}

	event := Event{Path: fsEvent.Name, Op: op, Timestamp: time.Now()}
	select {
	case w.events <- event:
	default:
		w.log.Warn("event channel full, dropping event", logging.Fields(logging.FieldPath, event.Path))
	}
}

// convertOp maps fsnotify operations; chmod alone is not a content change.
func convertOp(fsOp fsnotify.Op) Op {
	var op Op
	if fsOp.Has(fsnotify.Create) {
		op |= OpCreate
	}
	if fsOp.Has(fsnotify.Write) {
		op |= OpWrite
	}
	if fsOp.Has(fsnotify.Remove) {
		op |= OpRemove
	}
	if fsOp.Has(fsnotify.Rename) {
		op |= OpRename
	}
	return op
}

var _ Source = (*Watcher)(nil)
