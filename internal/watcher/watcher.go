// Package watcher reloads files the server keeps in memory when they change
// on disk. It is only used in development, to pick up rebuilt shell
// templates without a restart.
package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/conneroisu/ssrgate/internal/logging"
	"github.com/fsnotify/fsnotify"
)

// FileWatcher watches for file changes with debouncing
type FileWatcher struct {
	watcher   *fsnotify.Watcher
	debouncer *Debouncer
	logger    logging.Logger
	filters   []FileFilter
	handlers  []ChangeHandler
	mutex     sync.RWMutex

	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
	stopErr  error
}

// ChangeEvent represents a file change event
type ChangeEvent struct {
	Type    EventType
	Path    string
	ModTime time.Time
	Size    int64
}

// EventType represents the type of file change
type EventType int

const (
	EventTypeCreated EventType = iota
	EventTypeModified
	EventTypeDeleted
	EventTypeRenamed
)

// String returns the string representation of the EventType
func (e EventType) String() string {
	switch e {
	case EventTypeCreated:
		return "created"
	case EventTypeModified:
		return "modified"
	case EventTypeDeleted:
		return "deleted"
	case EventTypeRenamed:
		return "renamed"
	default:
		return "unknown"
	}
}

// FileFilter determines if a file should be watched
type FileFilter func(path string) bool

// ChangeHandler handles file change events
type ChangeHandler func(events []ChangeEvent) error

// Debouncer groups rapid file changes together
type Debouncer struct {
	delay   time.Duration
	output  chan []ChangeEvent
	timer   *time.Timer
	pending []ChangeEvent
	mutex   sync.Mutex
}

// NewFileWatcher creates a new file watcher
func NewFileWatcher(debounceDelay time.Duration, logger logging.Logger) (*FileWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.Discard()
	}

	return &FileWatcher{
		watcher: watcher,
		debouncer: &Debouncer{
			delay:  debounceDelay,
			output: make(chan []ChangeEvent, 10),
		},
		logger: logger.WithComponent("watcher"),
	}, nil
}

// AddFilter adds a file filter
func (fw *FileWatcher) AddFilter(filter FileFilter) {
	fw.mutex.Lock()
	defer fw.mutex.Unlock()
	fw.filters = append(fw.filters, filter)
}

// AddHandler adds a change handler
func (fw *FileWatcher) AddHandler(handler ChangeHandler) {
	fw.mutex.Lock()
	defer fw.mutex.Unlock()
	fw.handlers = append(fw.handlers, handler)
}

// AddPath adds a directory or file to watch
func (fw *FileWatcher) AddPath(path string) error {
	abs, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}
	return fw.watcher.Add(abs)
}

// WatchFile watches a single file. Editors and build tools usually replace
// files by renaming over them, which drops a direct watch, so the parent
// directory is watched and events are narrowed to the file.
func (fw *FileWatcher) WatchFile(path string) error {
	abs, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}
	if err := fw.AddPath(filepath.Dir(abs)); err != nil {
		return err
	}
	fw.AddFilter(PathFilter(abs))
	return nil
}

// Start starts the watcher loops. They run until ctx is done or Stop is
// called.
func (fw *FileWatcher) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	fw.cancel = cancel

	fw.wg.Add(2)
	go func() {
		defer fw.wg.Done()
		fw.watchLoop(ctx)
	}()
	go func() {
		defer fw.wg.Done()
		fw.processEvents(ctx)
	}()

	return nil
}

// Stop stops the watcher, waits for its goroutines and releases the
// underlying inotify handle. It is safe to call more than once.
func (fw *FileWatcher) Stop() error {
	fw.stopOnce.Do(func() {
		if fw.cancel != nil {
			fw.cancel()
		}
		fw.debouncer.stop()
		fw.stopErr = fw.watcher.Close()
		fw.wg.Wait()
	})
	return fw.stopErr
}

// Close implements io.Closer.
func (fw *FileWatcher) Close() error {
	return fw.Stop()
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
			fw.handleFsnotifyEvent(event)
		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			fw.logger.Warn(ctx, err, "File watcher error")
		}
	}
}

func (fw *FileWatcher) handleFsnotifyEvent(event fsnotify.Event) {
	if event.Op == fsnotify.Chmod {
		return
	}

	fw.mutex.RLock()
	filters := fw.filters
	fw.mutex.RUnlock()

	for _, filter := range filters {
		if !filter(event.Name) {
			return
		}
	}

	var modTime time.Time
	var size int64
	if info, err := os.Stat(event.Name); err == nil {
		modTime = info.ModTime()
		size = info.Size()
	}

	var eventType EventType
	switch {
	case event.Op.Has(fsnotify.Create):
		eventType = EventTypeCreated
	case event.Op.Has(fsnotify.Write):
		eventType = EventTypeModified
	case event.Op.Has(fsnotify.Remove):
		eventType = EventTypeDeleted
	case event.Op.Has(fsnotify.Rename):
		eventType = EventTypeRenamed
	default:
		eventType = EventTypeModified
	}

	fw.debouncer.add(ChangeEvent{
		Type:    eventType,
		Path:    event.Name,
		ModTime: modTime,
		Size:    size,
	})
}

func (fw *FileWatcher) processEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case events := <-fw.debouncer.output:
			fw.mutex.RLock()
			handlers := fw.handlers
			fw.mutex.RUnlock()

			for _, handler := range handlers {
				if err := handler(events); err != nil {
					fw.logger.Error(ctx, err, "File watcher handler failed", "events", len(events))
				}
			}
		}
	}
}

func (d *Debouncer) add(event ChangeEvent) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	d.pending = append(d.pending, event)
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, d.flush)
}

func (d *Debouncer) stop() {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.pending = nil
}

func (d *Debouncer) flush() {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if len(d.pending) == 0 {
		return
	}

	// last event per path wins
	latest := make(map[string]ChangeEvent, len(d.pending))
	for _, event := range d.pending {
		latest[event.Path] = event
	}
	events := make([]ChangeEvent, 0, len(latest))
	for _, event := range latest {
		events = append(events, event)
	}
	sort.Slice(events, func(i, j int) bool { return events[i].Path < events[j].Path })

	select {
	case d.output <- events:
	default:
	}

	d.pending = d.pending[:0]
}

// PathFilter keeps events for the given files only.
func PathFilter(paths ...string) FileFilter {
	set := make(map[string]bool, len(paths))
	for _, p := range paths {
		if abs, err := filepath.Abs(p); err == nil {
			set[abs] = true
		}
	}
	return func(path string) bool {
		abs, err := filepath.Abs(path)
		return err == nil && set[abs]
	}
}

// Reloader is anything that can re-read its backing file.
type Reloader interface {
	Reload() error
}

// ReloadHandler reloads r on any change except deletion. A failed reload
// keeps the previous contents and is reported.
func ReloadHandler(r Reloader, logger logging.Logger) ChangeHandler {
	return func(events []ChangeEvent) error {
		for _, ev := range events {
			if ev.Type == EventTypeDeleted {
				continue
			}
			if err := r.Reload(); err != nil {
				return fmt.Errorf("reloading %s: %w", ev.Path, err)
			}
			logger.Info(context.Background(), "Reloaded file", "path", ev.Path, "size", ev.Size)
			return nil
		}
		return nil
	}
}
