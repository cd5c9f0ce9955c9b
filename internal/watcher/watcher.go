package watcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	"github.com/alucardeht/fstspell/internal/logger"
	"github.com/alucardeht/fstspell/internal/resources"
)

var log = logger.ForComponent("watcher")

// Refresher is told about resource files that changed on disk.
type Refresher interface {
	Refresh() error
	InvalidatePath(path string) error
}

// Watcher follows the resource directories and refreshes the engine when
// speller or grammar files appear, change or go away.
type Watcher struct {
	config      Config
	fsWatcher   *fsnotify.Watcher
	fsWatcherMu sync.Mutex
	debouncer   *Debouncer
	target      Refresher
	roots       []string
	mu          sync.RWMutex
	running     bool
	ctx         context.Context
	cancel      context.CancelFunc
}

func New(config Config, target Refresher) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		config:    config,
		fsWatcher: fsWatcher,
		target:    target,
		roots:     make([]string, 0),
	}

	w.debouncer = NewDebouncer(config.DebounceWindow, config.MaxBatchSize, w.onFlush)

	return w, nil
}

func (w *Watcher) addToWatcher(path string) error {
	w.fsWatcherMu.Lock()
	defer w.fsWatcherMu.Unlock()
	return w.fsWatcher.Add(path)
}

func (w *Watcher) removeFromWatcher(path string) {
	w.fsWatcherMu.Lock()
	defer w.fsWatcherMu.Unlock()
	w.fsWatcher.Remove(path)
}

// AddRoot watches path and every directory below it.
func (w *Watcher) AddRoot(path string) error {
	log.Info("adding root to watch", "path", path)

	if err := w.addToWatcher(path); err != nil {
		return err
	}

	w.mu.Lock()
	w.roots = append(w.roots, path)
	w.mu.Unlock()

	if _, err := w.walkAndAdd(path); err != nil {
		return err
	}
	return nil
}

// walkAndAdd watches the directories below path and reports whether it
// saw any resource file on the way.
func (w *Watcher) walkAndAdd(path string) (bool, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		log.Debug("failed to read directory", "path", path, "error", err)
		return false, err
	}

	found := false
	for _, entry := range entries {
		fullPath := filepath.Join(path, entry.Name())

		if w.shouldIgnore(fullPath) {
			continue
		}

		if entry.IsDir() {
			if err := w.addToWatcher(fullPath); err != nil {
				log.Debug("failed to watch directory", "path", fullPath, "error", err)
				continue
			}
			log.Debug("watching directory", "path", fullPath)
			sub, _ := w.walkAndAdd(fullPath)
			found = found || sub
		} else if resources.IsResource(fullPath) {
			found = true
		}
	}

	return found, nil
}

func (w *Watcher) RemoveRoot(path string) error {
	w.removeFromWatcher(path)

	w.mu.Lock()
	defer w.mu.Unlock()

	for i, root := range w.roots {
		if root == path {
			w.roots = append(w.roots[:i], w.roots[i+1:]...)
			break
		}
	}

	return nil
}

func (w *Watcher) Roots() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return append([]string(nil), w.roots...)
}

func (w *Watcher) Start(ctx context.Context) error {
	log.Info("starting resource watcher")

	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}

	w.running = true
	w.ctx, w.cancel = context.WithCancel(ctx)
	w.mu.Unlock()

	go w.handleEvents()

	return nil
}

func (w *Watcher) handleEvents() {
	for {
		select {
		case <-w.ctx.Done():
			return

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}

			log.Debug("file event", "path", event.Name, "op", event.Op.String())

			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if !w.shouldIgnore(event.Name) {
						if err := w.addToWatcher(event.Name); err == nil {
							if found, _ := w.walkAndAdd(event.Name); found {
								w.debouncer.Add(event.Name, EventCreate)
							}
						}
					}
					continue
				}
			}

			if typ, ok := w.convertEvent(event); ok {
				w.debouncer.Add(event.Name, typ)
			}

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			log.Warn("watcher error", "error", err)
		}
	}
}

// convertEvent keeps events about resource files. Removals are kept for
// any path since a removed directory can hold resources.
func (w *Watcher) convertEvent(event fsnotify.Event) (EventType, bool) {
	if w.shouldIgnore(event.Name) {
		return 0, false
	}

	var eventType EventType

	switch {
	case event.Has(fsnotify.Create):
		eventType = EventCreate
	case event.Has(fsnotify.Write):
		eventType = EventModify
	case event.Has(fsnotify.Remove):
		eventType = EventDelete
	case event.Has(fsnotify.Rename):
		eventType = EventRename
	default:
		return 0, false
	}

	if !eventType.Gone() && !resources.IsResource(event.Name) {
		return 0, false
	}
	return eventType, true
}

func (w *Watcher) onFlush(b Batch) {
	if w.target == nil {
		return
	}
	log.Info("resource files changed", "changed", len(b.Changed), "gone", len(b.Gone))

	for _, path := range b.Gone {
		if err := w.target.InvalidatePath(path); err != nil {
			log.Warn("failed to drop resource", "path", path, "error", err)
		}
	}

	if err := w.target.Refresh(); err != nil {
		log.Error("failed to refresh resources", "error", err)
	}
}

func (w *Watcher) shouldIgnore(path string) bool {
	basename := filepath.Base(path)

	if !w.config.WatchHidden && strings.HasPrefix(basename, ".") {
		return true
	}

	path = filepath.ToSlash(path)
	for _, pattern := range w.config.IgnorePatterns {
		if match, _ := doublestar.Match(pattern, path); match {
			return true
		}
	}

	return false
}

func (w *Watcher) Stop() error {
	log.Info("stopping resource watcher")

	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		w.fsWatcherMu.Lock()
		defer w.fsWatcherMu.Unlock()
		return w.fsWatcher.Close()
	}

	w.running = false
	w.cancel()
	w.mu.Unlock()

	w.debouncer.Stop()

	w.fsWatcherMu.Lock()
	defer w.fsWatcherMu.Unlock()
	return w.fsWatcher.Close()
}
