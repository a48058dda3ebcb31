package orchestrator

import (
	"context"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/standardbeagle/codeatlas/internal/debug"
)

// Watcher monitors the project root and triggers incremental re-analysis
// after a debounce window. Changed paths have their cache entries
// invalidated before the next run so stale records cannot be served.
type Watcher struct {
	o        *Orchestrator
	fs       *fsnotify.Watcher
	debounce time.Duration
	onRun    func(*Result, error)

	mu      sync.Mutex
	pending map[string]bool
	timer   *time.Timer

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWatcher creates a watcher for the orchestrator's project root. onRun
// is invoked with the result of every triggered incremental run.
func (o *Orchestrator) NewWatcher(onRun func(*Result, error)) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	debounce := time.Duration(o.cfg.Analysis.WatchDebounceMs) * time.Millisecond
	if debounce <= 0 {
		debounce = 250 * time.Millisecond
	}

	return &Watcher{
		o:        o,
		fs:       fsw,
		debounce: debounce,
		onRun:    onRun,
		pending:  make(map[string]bool),
	}, nil
}

// Start adds watches for every non-excluded directory and begins processing
// events until Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.addWatches(w.o.cfg.Project.Root); err != nil {
		return err
	}

	ctx, w.cancel = context.WithCancel(ctx)
	w.wg.Add(1)
	go w.processEvents(ctx)

	debug.LogOrchestrator("watcher started for %s (debounce %s)", w.o.cfg.Project.Root, w.debounce)
	return nil
}

// Stop closes the watcher and waits for the event goroutine to finish. Any
// pending debounced events are dropped; the next explicit run picks the
// changes up through the incremental signature check.
func (w *Watcher) Stop() error {
	if w.cancel != nil {
		w.cancel()
	}
	err := w.fs.Close()
	w.wg.Wait()

	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()
	return err
}

func (w *Watcher) addWatches(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr == nil && rel != "." && w.o.excluded(filepath.ToSlash(rel), true) {
			return filepath.SkipDir
		}
		if addErr := w.fs.Add(path); addErr != nil {
			log.Printf("watch: failed to add %s: %v", path, addErr)
		}
		return nil
	})
}

func (w *Watcher) processEvents(ctx context.Context) {
	defer w.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			w.handleEvent(ctx, event)

		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			log.Printf("watch: %v", err)
		}
	}
}

func (w *Watcher) handleEvent(ctx context.Context, event fsnotify.Event) {
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}

	// New directories need their own watch to see files created inside.
	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			_ = w.addWatches(event.Name)
		}
	}

	rel, err := filepath.Rel(w.o.cfg.Project.Root, event.Name)
	if err != nil || w.o.excluded(filepath.ToSlash(rel), false) {
		return
	}

	w.mu.Lock()
	w.pending[event.Name] = true
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() { w.flush(ctx) })
	w.mu.Unlock()
}

// flush invalidates cache entries for every debounced path and runs an
// incremental analysis.
func (w *Watcher) flush(ctx context.Context) {
	w.mu.Lock()
	paths := make([]string, 0, len(w.pending))
	for p := range w.pending {
		paths = append(paths, p)
	}
	w.pending = make(map[string]bool)
	w.mu.Unlock()

	if len(paths) == 0 || ctx.Err() != nil {
		return
	}

	if w.o.cache != nil {
		invalidated := w.o.cache.InvalidateFiles(paths)
		debug.LogOrchestrator("watch: %d changed paths, %d cache entries invalidated", len(paths), invalidated)
	}

	w.o.forget(paths)

	result, err := w.o.Run(ctx)
	if w.onRun != nil {
		w.onRun(result, err)
	}
}

// forget drops previous-run records for paths so the incremental signature
// check cannot reuse them.
func (o *Orchestrator) forget(paths []string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, p := range paths {
		delete(o.prev, p)
	}
}
