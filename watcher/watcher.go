package watcher

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Event reports one settled file under the watched directory.
type Event struct {
	Path string
}

// Watcher monitors a directory for new or modified image files and emits
// an event per path once writes have settled. It is an input producer for
// the pipeline; it never touches tracked files itself.
type Watcher struct {
	fsw      *fsnotify.Watcher
	events   chan Event
	logger   *zap.Logger
	exts     map[string]bool
	debounce time.Duration
	done     chan struct{}

	mu     sync.Mutex
	timers map[string]*time.Timer
}

func New(dir string, exts []string, debounce time.Duration, logger *zap.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	extSet := make(map[string]bool, len(exts))
	for _, ext := range exts {
		extSet[strings.ToLower(ext)] = true
	}

	return &Watcher{
		fsw:      fsw,
		events:   make(chan Event, 100),
		logger:   logger,
		exts:     extSet,
		debounce: debounce,
		done:     make(chan struct{}),
		timers:   make(map[string]*time.Timer),
	}, nil
}

func (w *Watcher) Start() {
	go w.loop()
}

func (w *Watcher) Events() <-chan Event {
	return w.events
}

func (w *Watcher) loop() {
	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Error("Watcher error", zap.Error(err))
		case <-w.done:
			return
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	isCreate := event.Op&fsnotify.Create == fsnotify.Create
	isWrite := event.Op&fsnotify.Write == fsnotify.Write
	if !isCreate && !isWrite {
		return
	}

	if !w.exts[strings.ToLower(filepath.Ext(event.Name))] {
		return
	}

	// Skip dotfiles and AppleDouble droppings.
	base := filepath.Base(event.Name)
	if strings.HasPrefix(base, ".") || strings.HasPrefix(base, "._") {
		return
	}

	// Debounce rapid successive events per path so a file still being
	// written produces one event after it settles.
	w.mu.Lock()
	if timer, exists := w.timers[event.Name]; exists {
		timer.Stop()
	}
	path := event.Name
	w.timers[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.timers, path)
		w.mu.Unlock()

		select {
		case <-w.done:
		case w.events <- Event{Path: path}:
		}
	})
	w.mu.Unlock()
}

func (w *Watcher) Stop() error {
	close(w.done)

	w.mu.Lock()
	for path, timer := range w.timers {
		timer.Stop()
		delete(w.timers, path)
	}
	w.mu.Unlock()

	return w.fsw.Close()
}
