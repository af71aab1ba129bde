package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// ArchiveWatcher signals when an archive file has been written or replaced.
// It watches the parent directory so atomic renames over the archive are
// seen as well.
type ArchiveWatcher struct {
	path     string
	debounce time.Duration
	logger   *zap.Logger

	watcher *fsnotify.Watcher
	events  chan struct{}
	stopCh  chan struct{}
	once    sync.Once
}

// New creates a watcher for path
func New(path string, debounce time.Duration, logger *zap.Logger) *ArchiveWatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ArchiveWatcher{
		path:     filepath.Clean(path),
		debounce: debounce,
		logger:   logger,
		events:   make(chan struct{}, 1),
		stopCh:   make(chan struct{}),
	}
}

// Start begins watching. The returned channel receives one value per burst
// of changes and is closed when the watcher stops.
func (w *ArchiveWatcher) Start(ctx context.Context) (<-chan struct{}, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	dir := filepath.Dir(w.path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	w.watcher = watcher

	w.logger.Info("watching archive", zap.String("path", w.path))
	go w.loop(ctx)

	return w.events, nil
}

func (w *ArchiveWatcher) loop(ctx context.Context) {
	defer func() {
		close(w.events)
		w.logger.Debug("watch loop stopped")
	}()

	var (
		timer   *time.Timer
		timerCh <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case <-w.stopCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			w.logger.Debug("archive changed", zap.String("op", event.Op.String()))

			// restart the quiet period so a copy in progress fires once
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}
			timerCh = timer.C

		case <-timerCh:
			timerCh = nil
			select {
			case w.events <- struct{}{}:
			default:
				// a trigger is already pending
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watcher error", zap.Error(err))
		}
	}
}

// Stop stops the watcher
func (w *ArchiveWatcher) Stop() error {
	var err error
	w.once.Do(func() {
		close(w.stopCh)
		if w.watcher != nil {
			err = w.watcher.Close()
		}
	})
	return err
}
