package assets

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"ideforge/internal/fsutil"
	"ideforge/internal/logging"
)

// Watcher re-copies branding assets into the build tree whenever a mapped
// source file is created or written.
type Watcher struct {
	mu       sync.Mutex
	watcher  *fsnotify.Watcher
	srcRoot  string
	dstRoot  string
	mappings []Mapping
	debounce time.Duration
	pending  map[string]time.Time
	stats    WatchStats
	cancel   context.CancelFunc
	doneCh   chan struct{}
}

// WatchStats tracks watcher activity.
type WatchStats struct {
	Events int
	Copied int
	Errors int
}

// NewWatcher creates a watcher. Writes to the same file within debounce
// are coalesced into one copy.
func NewWatcher(srcRoot, dstRoot string, mappings []Mapping, debounce time.Duration) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = 200 * time.Millisecond
	}
	return &Watcher{
		watcher:  fw,
		srcRoot:  srcRoot,
		dstRoot:  dstRoot,
		mappings: mappings,
		debounce: debounce,
		pending:  make(map[string]time.Time),
	}, nil
}

// Start registers every mapped source directory and begins processing
// events in the background.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.doneCh != nil {
		w.mu.Unlock()
		return nil
	}
	ctx, w.cancel = context.WithCancel(ctx)
	w.doneCh = make(chan struct{})
	w.mu.Unlock()

	for _, m := range w.mappings {
		base, _ := m.Split()
		dir := filepath.Join(w.srcRoot, filepath.FromSlash(base))
		if err := w.addTree(dir); err != nil {
			logging.AssetsWarn("cannot watch %s: %v", dir, err)
			continue
		}
		logging.Assets("watching %s", dir)
	}

	go w.run(ctx)
	return nil
}

// Stop halts the event loop and releases the underlying watcher.
func (w *Watcher) Stop() {
	w.mu.Lock()
	cancel, done := w.cancel, w.doneCh
	w.mu.Unlock()
	if cancel == nil {
		_ = w.watcher.Close()
		return
	}
	cancel()
	<-done
	_ = w.watcher.Close()
}

// Stats returns a snapshot of watcher activity.
func (w *Watcher) Stats() WatchStats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}

func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.watcher.Add(path)
		}
		return nil
	})
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(max(w.debounce/2, time.Millisecond))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.flush(time.Time{})
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.AssetsWarn("watch error: %v", err)
			w.mu.Lock()
			w.stats.Errors++
			w.mu.Unlock()
		case now := <-ticker.C:
			w.flush(now.Add(-w.debounce))
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return
	}

	info, err := os.Stat(event.Name)
	if err != nil {
		return
	}
	if info.IsDir() {
		// New directories need their own watch; files already inside are queued.
		if err := w.addTree(event.Name); err != nil {
			logging.AssetsWarn("cannot watch %s: %v", event.Name, err)
		}
		_ = filepath.WalkDir(event.Name, func(path string, d fs.DirEntry, err error) error {
			if err == nil && !d.IsDir() {
				w.queue(path)
			}
			return nil
		})
		return
	}
	w.queue(event.Name)
}

func (w *Watcher) queue(path string) {
	if _, ok := target(w.srcRoot, w.dstRoot, w.mappings, path); !ok {
		return
	}
	w.mu.Lock()
	w.pending[path] = time.Now()
	w.stats.Events++
	w.mu.Unlock()
}

// flush copies pending files last touched before cutoff. A zero cutoff
// flushes everything.
func (w *Watcher) flush(cutoff time.Time) {
	w.mu.Lock()
	var ready []string
	for path, at := range w.pending {
		if cutoff.IsZero() || at.Before(cutoff) {
			ready = append(ready, path)
			delete(w.pending, path)
		}
	}
	w.mu.Unlock()

	for _, src := range ready {
		dst, ok := target(w.srcRoot, w.dstRoot, w.mappings, src)
		if !ok {
			continue
		}
		if _, err := fsutil.CopyFile(src, dst); err != nil {
			logging.AssetsWarn("failed to copy %s: %v", src, err)
			w.mu.Lock()
			w.stats.Errors++
			w.mu.Unlock()
			continue
		}
		logging.AssetsDebug("copied %s -> %s", src, dst)
		w.mu.Lock()
		w.stats.Copied++
		w.mu.Unlock()
	}
}
