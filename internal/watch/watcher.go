// Package watch re-runs a handler whenever one of a set of input workbooks
// is created or modified.
package watch

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet period after the last write before the
// handler runs.
const DefaultDebounce = 500 * time.Millisecond

// Config holds the files to watch.
type Config struct {
	Files    []string      `json:"files"`
	Debounce time.Duration `json:"debounce"`
}

// Event records one handled file change.
type Event struct {
	Time      time.Time `json:"time"`
	Path      string    `json:"path"`
	Operation string    `json:"operation"`
	Status    string    `json:"status"` // "processed" or "error"
	Error     string    `json:"error,omitempty"`
}

// Handler is called with the changed file. Calls never overlap.
type Handler func(ctx context.Context, path string) error

// Status represents the current watcher status.
type Status struct {
	Running    bool     `json:"running"`
	Files      []string `json:"files"`
	EventCount int      `json:"eventCount"`
	StartedAt  string   `json:"startedAt,omitempty"`
}

// Watcher monitors files for changes and triggers the handler.
type Watcher struct {
	Config  Config
	Logger  *log.Logger
	Handler Handler

	mu        sync.Mutex
	handlerMu sync.Mutex
	events    []Event
	targets   map[string]bool
	debounce  map[string]*time.Timer
	watcher   *fsnotify.Watcher
	startedAt time.Time
	running   bool
}

// New creates a Watcher for the given files. Paths are made absolute.
func New(config Config) (*Watcher, error) {
	if config.Debounce <= 0 {
		config.Debounce = DefaultDebounce
	}

	targets := make(map[string]bool, len(config.Files))
	for i, f := range config.Files {
		abs, err := filepath.Abs(f)
		if err != nil {
			return nil, fmt.Errorf("could not resolve %s: %w", f, err)
		}
		config.Files[i] = abs
		targets[abs] = true
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("could not create file watcher: %w", err)
	}

	return &Watcher{
		Config:   config,
		Logger:   log.New(os.Stderr, "[watch] ", log.LstdFlags),
		targets:  targets,
		debounce: make(map[string]*time.Timer),
		watcher:  fsw,
	}, nil
}

// Start watches the configured files until ctx is cancelled. The parent
// directory of each file is watched so editors that replace files on save
// are still noticed.
func (w *Watcher) Start(ctx context.Context) error {
	dirs := make(map[string]bool)
	for _, f := range w.Config.Files {
		dirs[filepath.Dir(f)] = true
	}
	for dir := range dirs {
		if err := w.watcher.Add(dir); err != nil {
			w.watcher.Close()
			return fmt.Errorf("could not watch %s: %w", dir, err)
		}
	}

	w.mu.Lock()
	w.running = true
	w.startedAt = time.Now()
	w.mu.Unlock()

	w.Logger.Printf("Watching %d file(s)", len(w.Config.Files))

	for {
		select {
		case <-ctx.Done():
			w.Logger.Println("Stopping watcher")
			w.stop()
			return w.watcher.Close()
		case event, ok := <-w.watcher.Events:
			if !ok {
				w.stop()
				return nil
			}
			w.handleEvent(ctx, event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				w.stop()
				return nil
			}
			w.Logger.Printf("Error: %v", err)
		}
	}
}

func (w *Watcher) handleEvent(ctx context.Context, event fsnotify.Event) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return
	}
	path := filepath.Clean(event.Name)
	if !w.targets[path] {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if timer, ok := w.debounce[path]; ok {
		timer.Stop()
	}
	op := event.Op.String()
	w.debounce[path] = time.AfterFunc(w.Config.Debounce, func() {
		w.process(ctx, path, op)
	})
}

func (w *Watcher) process(ctx context.Context, path, operation string) {
	if ctx.Err() != nil {
		return
	}

	w.handlerMu.Lock()
	defer w.handlerMu.Unlock()

	evt := Event{
		Time:      time.Now(),
		Path:      path,
		Operation: operation,
		Status:    "processed",
	}
	if w.Handler != nil {
		if err := w.Handler(ctx, path); err != nil {
			evt.Status = "error"
			evt.Error = err.Error()
			w.Logger.Printf("Error processing %s: %v", path, err)
		} else {
			w.Logger.Printf("Processed %s", path)
		}
	}

	w.mu.Lock()
	w.events = append(w.events, evt)
	w.mu.Unlock()
}

func (w *Watcher) stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.running = false
	for _, timer := range w.debounce {
		timer.Stop()
	}
}

// GetStatus returns the current watcher status.
func (w *Watcher) GetStatus() Status {
	w.mu.Lock()
	defer w.mu.Unlock()
	s := Status{
		Running:    w.running,
		Files:      w.Config.Files,
		EventCount: len(w.events),
	}
	if !w.startedAt.IsZero() {
		s.StartedAt = w.startedAt.Format(time.RFC3339)
	}
	return s
}

// GetEvents returns all recorded events.
func (w *Watcher) GetEvents() []Event {
	w.mu.Lock()
	defer w.mu.Unlock()
	events := make([]Event, len(w.events))
	copy(events, w.events)
	return events
}
