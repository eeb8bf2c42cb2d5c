package indexer

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/0xADE/datacube/internal/indexer/desktop"
)

// DefaultDebounce is how long the watcher waits for a burst of file events
// to settle before refreshing.
const DefaultDebounce = 500 * time.Millisecond

// WatcherOptions configures a Watcher.
type WatcherOptions struct {
	// Interval between periodic refreshes, 0 disables them.
	Interval time.Duration
	// Watch enables file system notifications.
	Watch    bool
	Debounce time.Duration
}

// Watcher keeps an Indexer fresh: it refreshes after changes in the source
// directories and on a fixed interval.
type Watcher struct {
	idx     *Indexer
	opts    WatcherOptions
	logger  *zap.Logger
	watcher *fsnotify.Watcher

	flatpakDirs map[string]struct{}

	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewWatcher creates a watcher for idx. Nothing happens until Start.
func NewWatcher(idx *Indexer, opts WatcherOptions, logger *zap.Logger) (*Watcher, error) {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	w := &Watcher{
		idx:         idx,
		opts:        opts,
		logger:      logger.Named("watcher"),
		flatpakDirs: make(map[string]struct{}),
	}
	if opts.Watch {
		fsw, err := fsnotify.NewWatcher()
		if err != nil {
			return nil, err
		}
		w.watcher = fsw
	}
	return w, nil
}

// Start registers the source directories and begins processing events in
// the background. Directories that do not exist are skipped.
func (w *Watcher) Start(ctx context.Context) error {
	ctx, w.cancel = context.WithCancel(ctx)

	var watched []string
	if w.watcher != nil {
		src := w.idx.Sources()
		for _, dir := range src.DesktopDirs {
			if w.add(dir) {
				watched = append(watched, dir)
			}
		}
		for _, root := range src.FlatpakInstallations {
			for _, dir := range []string{
				filepath.Join(root, "app"),
				filepath.Join(root, "exports", "share", "applications"),
			} {
				if w.add(dir) {
					w.flatpakDirs[dir] = struct{}{}
					watched = append(watched, dir)
				}
			}
		}
	}

	w.logger.Info("Index watcher started",
		zap.Strings("dirs", watched),
		zap.Duration("interval", w.opts.Interval))

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.processEvents(ctx)
	}()
	return nil
}

func (w *Watcher) add(dir string) bool {
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return false
	}
	if err := w.watcher.Add(dir); err != nil {
		w.logger.Warn("Cannot watch directory", zap.String("dir", dir), zap.Error(err))
		return false
	}
	return true
}

// Stop stops the watcher and waits for a running refresh to finish.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		if w.cancel != nil {
			w.cancel()
		}
		if w.watcher != nil {
			err = w.watcher.Close()
		}
		w.wg.Wait()
	})
	return err
}

func (w *Watcher) processEvents(ctx context.Context) {
	var (
		events <-chan fsnotify.Event
		errs   <-chan error
		tick   <-chan time.Time
		settle <-chan time.Time
		timer  *time.Timer
	)
	if w.watcher != nil {
		events = w.watcher.Events
		errs = w.watcher.Errors
	}
	if w.opts.Interval > 0 {
		ticker := time.NewTicker(w.opts.Interval)
		defer ticker.Stop()
		tick = ticker.C
	}
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Index watcher stopped")
			return

		case event, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if !w.relevant(event) {
				continue
			}
			w.logger.Debug("Source changed",
				zap.String("path", event.Name), zap.Stringer("op", event.Op))
			if timer == nil {
				timer = time.NewTimer(w.opts.Debounce)
			} else {
				timer.Reset(w.opts.Debounce)
			}
			settle = timer.C

		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			w.logger.Warn("Index watcher error", zap.Error(err))

		case <-settle:
			settle = nil
			w.refresh(ctx, "change")

		case <-tick:
			w.refresh(ctx, "interval")
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return false
	}
	if strings.HasSuffix(event.Name, desktop.Extension) {
		return true
	}
	// Installing or removing a flatpak touches app/<ID>.
	_, ok := w.flatpakDirs[filepath.Dir(event.Name)]
	return ok
}

func (w *Watcher) refresh(ctx context.Context, reason string) {
	if _, err := w.idx.Refresh(ctx); err != nil && ctx.Err() == nil {
		w.logger.Warn("Index refresh failed", zap.String("reason", reason), zap.Error(err))
	}
}
