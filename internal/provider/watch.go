package provider

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// FileWatcher reloads a Registry whenever its override file changes.
// The parent directory is watched so editors that replace the file by rename
// are picked up too.
type FileWatcher struct {
	registry *Registry
	path     string
	debounce time.Duration

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
	reloads int
}

// NewFileWatcher creates a watcher for path. It does nothing until Start.
func NewFileWatcher(path string, registry *Registry) *FileWatcher {
	return &FileWatcher{
		registry: registry,
		path:     filepath.Clean(path),
		debounce: 250 * time.Millisecond,
	}
}

// Start loads the file once and begins watching. Non-blocking.
func (fw *FileWatcher) Start(ctx context.Context) error {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	if fw.running {
		return nil
	}

	if err := fw.registry.LoadFile(fw.path); err != nil {
		slog.Warn("provider overrides initial load failed", "path", fw.path, "error", err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(filepath.Dir(fw.path)); err != nil {
		_ = w.Close()
		return err
	}

	fw.watcher = w
	fw.running = true
	fw.stopCh = make(chan struct{})
	fw.doneCh = make(chan struct{})
	go fw.run(ctx)
	slog.Info("provider overrides watching", "path", fw.path)
	return nil
}

// Stop ends the watch loop and waits for it to exit.
func (fw *FileWatcher) Stop() {
	fw.mu.Lock()
	if !fw.running {
		fw.mu.Unlock()
		return
	}
	fw.running = false
	stopCh, doneCh, w := fw.stopCh, fw.doneCh, fw.watcher
	fw.mu.Unlock()

	close(stopCh)
	<-doneCh
	if err := w.Close(); err != nil {
		slog.Debug("provider overrides watcher close failed", "error", err)
	}
}

// Reloads reports how many debounced reloads have run.
func (fw *FileWatcher) Reloads() int {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	return fw.reloads
}

func (fw *FileWatcher) run(ctx context.Context) {
	defer close(fw.doneCh)

	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-fw.stopCh:
			return
		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != fw.path {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			slog.Debug("provider overrides change", "op", event.Op.String(), "path", event.Name)
			if timer == nil {
				timer = time.NewTimer(fw.debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(fw.debounce)
			}
			fire = timer.C
		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("provider overrides watcher error", "error", err)
		case <-fire:
			fire = nil
			if err := fw.registry.LoadFile(fw.path); err != nil {
				slog.Warn("provider overrides reload failed, keeping previous profiles", "path", fw.path, "error", err)
			}
			fw.mu.Lock()
			fw.reloads++
			fw.mu.Unlock()
		}
	}
}
