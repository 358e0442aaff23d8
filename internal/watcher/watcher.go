// Package watcher keeps the parameter registry synchronized with source
// files on disk. Raw fsnotify events are filtered and debounced into change
// batches before any file is re-read.
package watcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/scadform/scadform/internal/logging"
)

// ChangeEvent is a debounced file change.
type ChangeEvent struct {
	Type    EventType
	Path    string
	ModTime time.Time
}

// EventType classifies a file change.
type EventType int

const (
	EventCreated EventType = iota
	EventModified
	EventDeleted
)

func (e EventType) String() string {
	switch e {
	case EventCreated:
		return "created"
	case EventModified:
		return "modified"
	case EventDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// FileFilter reports whether a path is interesting.
type FileFilter func(path string) bool

// ChangeHandler receives a debounced batch of changes, deduplicated by path.
type ChangeHandler func(events []ChangeEvent) error

// FileWatcher watches directories and delivers debounced change batches.
type FileWatcher struct {
	watcher   *fsnotify.Watcher
	debouncer *debouncer
	logger    logging.Logger

	mutex    sync.RWMutex
	filters  []FileFilter
	handlers []ChangeHandler
}

// New creates a FileWatcher with the given debounce window.
func New(debounce time.Duration, logger logging.Logger) (*FileWatcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &FileWatcher{
		watcher: fsw,
		logger:  logger.WithComponent("watcher"),
		debouncer: &debouncer{
			delay:  debounce,
			events: make(chan ChangeEvent, 100),
			output: make(chan []ChangeEvent, 10),
		},
	}, nil
}

// AddFilter registers a path filter. All filters must accept a path for its
// events to pass through.
func (fw *FileWatcher) AddFilter(filter FileFilter) {
	fw.mutex.Lock()
	defer fw.mutex.Unlock()
	fw.filters = append(fw.filters, filter)
}

// AddHandler registers a batch handler.
func (fw *FileWatcher) AddHandler(handler ChangeHandler) {
	fw.mutex.Lock()
	defer fw.mutex.Unlock()
	fw.handlers = append(fw.handlers, handler)
}

// AddRecursive watches root and every directory below it.
func (fw *FileWatcher) AddRecursive(root string) error {
	return filepath.Walk(filepath.Clean(root), func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() && !hiddenDir(path) {
			return fw.watcher.Add(path)
		}
		return nil
	})
}

func hiddenDir(path string) bool {
	base := filepath.Base(path)
	return base != "." && strings.HasPrefix(base, ".")
}

// Start runs the watcher goroutines until ctx is cancelled.
func (fw *FileWatcher) Start(ctx context.Context) {
	go fw.debouncer.run(ctx)
	go fw.dispatch(ctx)
	go fw.watchLoop(ctx)
}

// Stop closes the underlying fsnotify watcher.
func (fw *FileWatcher) Stop() error {
	fw.debouncer.stop()
	return fw.watcher.Close()
}

func (fw *FileWatcher) watchLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			fw.handleEvent(event)
		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			fw.logger.Warn(ctx, err, "watch error")
		}
	}
}

func (fw *FileWatcher) handleEvent(event fsnotify.Event) {
	fw.mutex.RLock()
	filters := fw.filters
	fw.mutex.RUnlock()

	for _, filter := range filters {
		if !filter(event.Name) {
			return
		}
	}

	change := ChangeEvent{Path: event.Name}
	switch {
	case event.Op.Has(fsnotify.Create):
		change.Type = EventCreated
	case event.Op.Has(fsnotify.Remove) || event.Op.Has(fsnotify.Rename):
		change.Type = EventDeleted
	default:
		change.Type = EventModified
	}

	if info, err := os.Stat(event.Name); err == nil {
		change.ModTime = info.ModTime()
	}

	select {
	case fw.debouncer.events <- change:
	default:
		// Burst overflow. The next event for this path restores sync.
	}
}

func (fw *FileWatcher) dispatch(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case batch := <-fw.debouncer.output:
			fw.mutex.RLock()
			handlers := fw.handlers
			fw.mutex.RUnlock()

			for _, handler := range handlers {
				if err := handler(batch); err != nil {
					fw.logger.Warn(ctx, err, "change handler failed")
				}
			}
		}
	}
}

// debouncer coalesces rapid changes into one batch per quiet window,
// deduplicated by path with the latest event winning.
type debouncer struct {
	delay  time.Duration
	events chan ChangeEvent
	output chan []ChangeEvent

	mutex   sync.Mutex
	timer   *time.Timer
	pending []ChangeEvent
}

func (d *debouncer) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-d.events:
			d.add(event)
		}
	}
}

func (d *debouncer) add(event ChangeEvent) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	d.pending = append(d.pending, event)
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, d.flush)
}

func (d *debouncer) stop() {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
}

func (d *debouncer) flush() {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if len(d.pending) == 0 {
		return
	}

	byPath := make(map[string]ChangeEvent, len(d.pending))
	for _, event := range d.pending {
		byPath[event.Path] = event
	}
	batch := make([]ChangeEvent, 0, len(byPath))
	for _, event := range byPath {
		batch = append(batch, event)
	}

	select {
	case d.output <- batch:
	default:
	}

	d.pending = d.pending[:0]
}

// SourceFilter accepts .scad files only.
func SourceFilter(path string) bool {
	return filepath.Ext(path) == ".scad"
}
