// Package progress provides terminal progress bars and spinners.
// All output goes to stderr to avoid polluting stdout/pipes.
package progress

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// Bar renders an ASCII progress bar, one step per job. Failed steps are
// counted and shown next to the bar.
type Bar struct {
	Total   int
	Current int
	Failed  int
	Label   string
	Width   int
	Enabled bool
	Out     io.Writer

	mu sync.Mutex
}

// New creates a progress bar.
// Automatically disabled if not a TTY, if --json is set, or XLREPORT_NO_PROGRESS=1.
func New(label string, total int) *Bar {
	return &Bar{
		Total:   total,
		Label:   label,
		Width:   40,
		Enabled: shouldEnable(),
		Out:     os.Stderr,
	}
}

// Step records one finished job named name and redraws.
func (b *Bar) Step(name string, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.Current < b.Total {
		b.Current++
	}
	if !ok {
		b.Failed++
	}
	b.render(name)
}

// Finish prints the final line, marked ✗ if any step failed.
func (b *Bar) Finish(summary string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.Enabled {
		return
	}
	mark := "✓"
	if b.Failed > 0 {
		mark = "✗"
	}
	fmt.Fprintf(b.writer(), "\r\033[K%s %s\n", mark, summary)
}

func (b *Bar) render(name string) {
	if !b.Enabled {
		return
	}

	filled := 0
	if b.Total > 0 {
		filled = b.Current * b.Width / b.Total
	}

	bar := strings.Repeat("=", filled) + strings.Repeat(" ", b.Width-filled)
	failed := ""
	if b.Failed > 0 {
		failed = fmt.Sprintf(" (%d failed)", b.Failed)
	}
	fmt.Fprintf(b.writer(), "\r\033[K%s [%s] %d/%d%s  %s",
		b.Label, bar, b.Current, b.Total, failed, name)
}

func (b *Bar) writer() io.Writer {
	if b.Out == nil {
		return os.Stderr
	}
	return b.Out
}

// Spinner shows the current stage of a single run.
type Spinner struct {
	Label   string
	Enabled bool
	Out     io.Writer

	mu      sync.Mutex
	done    chan struct{}
	stopped bool
}

// NewSpinner creates a spinner.
func NewSpinner(label string) *Spinner {
	return &Spinner{
		Label:   label,
		Enabled: shouldEnable(),
		Out:     os.Stderr,
		done:    make(chan struct{}),
	}
}

// Start begins the spinner animation.
func (s *Spinner) Start() {
	if !s.Enabled {
		return
	}

	s.mu.Lock()
	s.stopped = false
	s.done = make(chan struct{})
	done := s.done
	s.mu.Unlock()

	go func() {
		frames := []rune{'⠋', '⠙', '⠹', '⠸', '⠼', '⠴', '⠦', '⠧', '⠇', '⠏'}
		i := 0
		ticker := time.NewTicker(80 * time.Millisecond)
		defer ticker.Stop()

		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				s.mu.Lock()
				if !s.stopped {
					fmt.Fprintf(s.writer(), "\r\033[K%c %s", frames[i%len(frames)], s.Label)
					i++
				}
				s.mu.Unlock()
			}
		}
	}()
}

// Stop stops the spinner and prints a result. An empty result just clears
// the line.
func (s *Spinner) Stop(result string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.stopped = true

	select {
	case <-s.done:
	default:
		close(s.done)
	}

	if !s.Enabled {
		return
	}
	if result == "" {
		fmt.Fprint(s.writer(), "\r\033[K")
		return
	}
	fmt.Fprintf(s.writer(), "\r\033[K✓ %s\n", result)
}

// Update changes the spinner label while it's running.
func (s *Spinner) Update(label string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Label = label
}

func (s *Spinner) writer() io.Writer {
	if s.Out == nil {
		return os.Stderr
	}
	return s.Out
}

func shouldEnable() bool {
	if os.Getenv("XLREPORT_NO_PROGRESS") == "1" {
		return false
	}
	if os.Getenv("XLREPORT_JSON") == "true" {
		return false
	}
	return isTTY()
}

func isTTY() bool {
	stat, err := os.Stderr.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) != 0
}
