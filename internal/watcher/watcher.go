package watcher

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/PR202111/GIT-PROJECT-reviewer/internal/indexer"
	"github.com/PR202111/GIT-PROJECT-reviewer/internal/loader"
	"github.com/PR202111/GIT-PROJECT-reviewer/pkg/types"
)

// DefaultDebounce is the quiet period before a rebuild starts
const DefaultDebounce = 1500 * time.Millisecond

// Rebuilder runs a full index build of a repository
type Rebuilder interface {
	IndexRepository(ctx context.Context, root string) (*indexer.Statistics, error)
}

// Watcher rebuilds the index when recognized files under a repository change.
type Watcher struct {
	root     string
	builder  Rebuilder
	loader   *loader.Loader
	debounce time.Duration
	onBuild  func(*indexer.Statistics, error)

	fsw    *fsnotify.Watcher
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// debounce state
	mu      sync.Mutex
	timer   *time.Timer
	pending bool
	stopped bool
	ctx     context.Context
}

// Option configures a Watcher
type Option func(*Watcher)

// WithDebounce sets the quiet period
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithLoader sets the loader whose skip rules decide which directories are watched
func WithLoader(l *loader.Loader) Option {
	return func(w *Watcher) {
		w.loader = l
	}
}

// OnBuild registers a callback invoked after every rebuild attempt
func OnBuild(fn func(*indexer.Statistics, error)) Option {
	return func(w *Watcher) {
		w.onBuild = fn
	}
}

// New creates a watcher for root.
func New(root string, builder Rebuilder, opts ...Option) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		root:     root,
		builder:  builder,
		loader:   loader.New(),
		debounce: DefaultDebounce,
		fsw:      fsw,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Start registers every directory under the root and begins watching.
func (w *Watcher) Start(ctx context.Context) error {
	info, err := os.Stat(w.root)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return loader.ErrNotDirectory
	}

	watched, err := w.addTree(w.root)
	if err != nil {
		return err
	}

	ctx, w.cancel = context.WithCancel(ctx)
	w.mu.Lock()
	w.ctx = ctx
	w.mu.Unlock()

	w.wg.Add(1)
	go w.loop(ctx)

	slog.Info("watcher started", "root", w.root, "dirs", watched, "debounce", w.debounce)
	return nil
}

// Stop shuts down the watcher. A rebuild already running is cancelled and
// Stop returns only after its OnBuild callback ran. No rebuild starts after Stop.
func (w *Watcher) Stop() {
	w.mu.Lock()
	w.stopped = true
	w.pending = false
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()

	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
	_ = w.fsw.Close()
}

func (w *Watcher) addTree(root string) (int, error) {
	watched := 0
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Directory may be gone already
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.root && w.loader.SkipDir(d.Name()) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			slog.Warn("watcher: cannot watch dir", "path", path, "error", err)
			return nil
		}
		watched++
		return nil
	})
	return watched, err
}

func (w *Watcher) loop(ctx context.Context) {
	defer w.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			slog.Warn("watcher error", "error", err)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	path := event.Name
	if event.Op == fsnotify.Chmod {
		return
	}

	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			if w.loader.SkipDir(filepath.Base(path)) {
				return
			}
			// Files may already exist inside a directory moved into the tree
			if n, err := w.addTree(path); err == nil {
				slog.Debug("watcher: watching new dir", "path", path, "dirs", n)
			}
			w.schedule()
			return
		}
	}

	if _, ok := types.TypeForPath(path); !ok {
		// A removed or renamed directory takes its files with it
		if !event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
			return
		}
	}
	w.schedule()
}

// schedule debounces rebuilds.
func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}

	w.pending = true

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.flush)
}

func (w *Watcher) flush() {
	w.mu.Lock()
	// wg.Add only happens while stopped is false, so it is ordered before Stop's Wait
	if w.stopped || !w.pending || w.ctx == nil || w.ctx.Err() != nil {
		w.mu.Unlock()
		return
	}
	w.pending = false
	ctx := w.ctx
	w.wg.Add(1)
	w.mu.Unlock()
	defer w.wg.Done()

	stats, err := w.builder.IndexRepository(ctx, w.root)
	switch {
	case errors.Is(err, types.ErrIndexingInProgress):
		slog.Debug("watcher: build in progress, retrying later", "root", w.root)
		w.schedule()
		return
	case err != nil:
		// The previous active build keeps serving queries
		slog.Error("watcher: rebuild failed", "root", w.root, "error", err)
	default:
		slog.Info("watcher: index rebuilt", "build", stats.BuildID,
			"fragments", stats.FragmentsStored, "duration", stats.Duration)
	}
	if w.onBuild != nil {
		w.onBuild(stats, err)
	}
}
