// Package shell provides the interactive xlreport session: load a workbook,
// set the start row and column range, then run the report.
package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/chzyer/readline"

	"github.com/klytics/xlreport/internal/colrange"
	"github.com/klytics/xlreport/internal/etl"
	"github.com/klytics/xlreport/internal/report"
)

// ErrExit is returned by Exec when the session should end.
var ErrExit = errors.New("exit")

// Session holds the inputs of the next run.
type Session struct {
	Runner *etl.Runner

	Source      []byte
	SourceName  string
	StartRow    int
	ColumnRange string

	LastResult     *etl.Result
	LastErr        error
	CommandHistory []string
	HistoryFile    string
	StartTime      time.Time

	// KnownCommands is the list of commands for completion.
	KnownCommands []string
}

// NewSession creates a session that runs requests with runner.
func NewSession(runner *etl.Runner, startRow int, columnRange string) *Session {
	home, _ := os.UserHomeDir()
	histFile := filepath.Join(home, ".xlreport", "shell_history")

	return &Session{
		Runner:      runner,
		StartRow:    startRow,
		ColumnRange: columnRange,
		HistoryFile: histFile,
		StartTime:   time.Now(),
		KnownCommands: []string{
			"load", "start", "range", "run", "show",
			"history", "help", "exit", "quit",
		},
	}
}

// Run starts the REPL loop. Blocks until 'exit' or Ctrl+D.
func (s *Session) Run(ctx context.Context, out io.Writer) error {
	os.MkdirAll(filepath.Dir(s.HistoryFile), 0755)

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "xlreport> ",
		HistoryFile:     s.HistoryFile,
		AutoComplete:    readline.NewPrefixCompleter(s.buildCompleter()...),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return err
	}
	defer rl.Close()

	fmt.Fprintln(out, "xlreport interactive shell")
	fmt.Fprintln(out, "Type 'help' for commands, 'exit' to quit.")
	fmt.Fprintln(out)

	for {
		line, err := rl.Readline()
		if err != nil { // io.EOF or interrupt
			return nil
		}
		if err := s.Exec(ctx, line, out); err != nil {
			if errors.Is(err, ErrExit) {
				return nil
			}
			fmt.Fprintf(out, "Error: %s\n", err)
		}
	}
}

// Exec runs one shell line and writes its output to out.
func (s *Session) Exec(ctx context.Context, line string, out io.Writer) error {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}
	s.CommandHistory = append(s.CommandHistory, line)

	fields := strings.Fields(line)
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case "exit", "quit":
		fmt.Fprintf(out, "\nSession ended. %d commands run in %s.\n",
			len(s.CommandHistory)-1, formatDuration(time.Since(s.StartTime)))
		return ErrExit
	case "help":
		s.printHelp(out)
	case "history":
		for i, h := range s.CommandHistory {
			fmt.Fprintf(out, "  %d  %s\n", i+1, h)
		}
	case "show":
		s.printState(out)
	case "load":
		if len(args) != 1 {
			return fmt.Errorf("usage: load <file.xlsx>")
		}
		return s.load(args[0], out)
	case "start":
		if len(args) != 1 {
			return fmt.Errorf("usage: start <row>")
		}
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 0 {
			return fmt.Errorf("start row must be a non-negative integer, got %q", args[0])
		}
		s.StartRow = n
		fmt.Fprintf(out, "Start row: %d\n", n)
	case "range":
		if len(args) != 1 {
			return fmt.Errorf("usage: range <A:F>")
		}
		r, err := colrange.Parse(args[0])
		if err != nil {
			return err
		}
		s.ColumnRange = r.String()
		fmt.Fprintf(out, "Column range: %s\n", s.ColumnRange)
	case "run":
		return s.run(ctx, out)
	default:
		return fmt.Errorf("unknown command %q — type 'help' for a list", cmd)
	}
	return nil
}

func (s *Session) load(path string, out io.Writer) error {
	req, err := etl.NewFileRequest(path, s.StartRow, s.ColumnRange)
	if err != nil {
		return err
	}
	s.Source = req.Source
	s.SourceName = req.SourceName
	fmt.Fprintf(out, "Loaded %s (%d bytes)\n", s.SourceName, len(s.Source))
	return nil
}

// run always prints the single result message, success or failure.
func (s *Session) run(ctx context.Context, out io.Writer) error {
	if s.Source == nil {
		return fmt.Errorf("no workbook loaded — use 'load <file.xlsx>' first")
	}
	if s.Runner == nil {
		return fmt.Errorf("shell runner not configured")
	}

	res, err := s.Runner.Run(ctx, etl.Request{
		Source:      s.Source,
		SourceName:  s.SourceName,
		StartRow:    s.StartRow,
		ColumnRange: s.ColumnRange,
	})
	s.LastResult = res
	s.LastErr = err
	fmt.Fprintln(out, res.Message)
	if err != nil {
		return nil
	}
	if res.ChartsPath != "" {
		fmt.Fprintf(out, "Charts saved as %s\n", res.ChartsPath)
	}
	fmt.Fprintln(out)
	return report.RenderText(out, res.Report)
}

// Complete returns tab-completion candidates for the given input.
func (s *Session) Complete(input string) []string {
	input = strings.TrimSpace(input)
	if input == "" {
		return s.KnownCommands
	}
	var matches []string
	for _, cmd := range s.KnownCommands {
		if strings.HasPrefix(cmd, input) {
			matches = append(matches, cmd)
		}
	}
	sort.Strings(matches)
	return matches
}

func (s *Session) printState(out io.Writer) {
	source := s.SourceName
	if source == "" {
		source = "(none)"
	}
	fmt.Fprintf(out, "  workbook:     %s\n", source)
	fmt.Fprintf(out, "  start row:    %d\n", s.StartRow)
	fmt.Fprintf(out, "  column range: %s\n", s.ColumnRange)
	if s.LastResult != nil {
		fmt.Fprintf(out, "  last result:  %s\n", s.LastResult.Message)
	}
}

func (s *Session) printHelp(out io.Writer) {
	fmt.Fprintln(out, "Commands:")
	fmt.Fprintln(out, "  load <file.xlsx>  load the input workbook")
	fmt.Fprintln(out, "  start <row>       first data row to keep (0 = first row after the header)")
	fmt.Fprintln(out, "  range <A:F>       column letters to keep")
	fmt.Fprintln(out, "  run               process the workbook and write the report")
	fmt.Fprintln(out, "  show              show the current inputs")
	fmt.Fprintln(out, "  history           show command history")
	fmt.Fprintln(out, "  exit              exit the shell")
}

func (s *Session) buildCompleter() []readline.PrefixCompleterInterface {
	var items []readline.PrefixCompleterInterface
	for _, cmd := range s.KnownCommands {
		items = append(items, readline.PcItem(cmd))
	}
	return items
}

func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.0fs", d.Seconds())
	}
	m := int(d.Minutes())
	sec := int(d.Seconds()) % 60
	return fmt.Sprintf("%dm %ds", m, sec)
}
