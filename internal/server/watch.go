package server

import (
	"context"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// reloadDebounce coalesces bursts of file events into one reload.
const reloadDebounce = 100 * time.Millisecond

// ReloadEvent reports the outcome of a configuration reload.
type ReloadEvent struct {
	Err error
}

// notifier broadcasts reload events to subscribed listeners.
type notifier struct {
	mu        sync.RWMutex
	listeners map[chan ReloadEvent]struct{}
}

func newNotifier() *notifier {
	return &notifier{listeners: make(map[chan ReloadEvent]struct{})}
}

func (n *notifier) subscribe() chan ReloadEvent {
	ch := make(chan ReloadEvent, 1)
	n.mu.Lock()
	n.listeners[ch] = struct{}{}
	n.mu.Unlock()
	return ch
}

func (n *notifier) unsubscribe(ch chan ReloadEvent) {
	n.mu.Lock()
	delete(n.listeners, ch)
	n.mu.Unlock()
	close(ch)
}

// broadcast never blocks; a listener with a pending event misses this one.
func (n *notifier) broadcast(ev ReloadEvent) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	for ch := range n.listeners {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Subscribe returns a channel that receives an event after every reload.
// Call Unsubscribe when done.
func (s *Server) Subscribe() <-chan ReloadEvent {
	return s.notifier.subscribe()
}

// Unsubscribe removes and closes a channel returned by Subscribe.
func (s *Server) Unsubscribe(ch <-chan ReloadEvent) {
	s.notifier.mu.RLock()
	var found chan ReloadEvent
	for c := range s.notifier.listeners {
		if c == ch {
			found = c
			break
		}
	}
	s.notifier.mu.RUnlock()
	if found != nil {
		s.notifier.unsubscribe(found)
	}
}

// watch reloads the configuration when YAML files under the config
// directory change. It blocks until ctx is cancelled.
func (s *Server) watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	if err := watchDirRecursive(watcher, s.opts.ConfigDir); err != nil {
		s.logger.Error("failed to watch config directory", slog.String("error", err.Error()))
	}

	var (
		mu            sync.Mutex
		debounceTimer *time.Timer
	)
	defer func() {
		mu.Lock()
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
		mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&fsnotify.Create != 0 {
				// New version directories need their own watch.
				_ = watchDirRecursive(watcher, event.Name)
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if ext := filepath.Ext(event.Name); ext != ".yaml" && ext != ".yml" {
				continue
			}

			mu.Lock()
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			name := event.Name
			debounceTimer = time.AfterFunc(reloadDebounce, func() {
				s.logger.Debug("config changed, reloading", slog.String("file", name))
				_ = s.Reload(ctx)
			})
			mu.Unlock()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Error("watcher error", slog.String("error", err.Error()))
		}
	}
}

// watchDirRecursive adds a directory and all subdirectories to the watcher.
func watchDirRecursive(watcher *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return watcher.Add(path)
		}
		return nil
	})
}
