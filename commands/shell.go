package commands

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"github.com/josephlewis42/mysh/core/config"
	"github.com/josephlewis42/mysh/core/editor"
	"github.com/josephlewis42/mysh/core/lineio"
	"github.com/josephlewis42/mysh/core/logger"
	"github.com/josephlewis42/mysh/core/proc"
	"github.com/josephlewis42/mysh/core/shell"
)

// Exit statuses the shell reports for commands that didn't produce one.
const (
	StatusUsage    = 2
	StatusNotFound = 127
	StatusSignaled = 128
)

// Editor edits a document and reports its counts.
type Editor interface {
	Open(path string) (editor.Counts, error)
}

var _ Editor = (*editor.Editor)(nil)

type Shell struct {
	Config     *config.Configuration
	LineReader lineio.LineReader
	Launcher   *proc.Launcher
	Editor     Editor

	Stdout io.Writer
	Stderr io.Writer

	Log    *zap.Logger
	Events *logger.SessionLog

	// Set to true to quit the shell
	Quit bool

	lastRet int
	color   ColorPrinter
}

// NewShell creates a shell reading from lr and running commands with the
// process's standard streams.
func NewShell(cfg *config.Configuration, lr lineio.LineReader, log *zap.Logger) *Shell {
	if log == nil {
		log = zap.NewNop()
	}

	launcher := proc.NewLauncher(log.Named("proc"))
	launcher.Alias = cfg.Alias

	return &Shell{
		Config:     cfg,
		LineReader: lr,
		Launcher:   launcher,
		Editor:     editor.New(),
		Stdout:     os.Stdout,
		Stderr:     os.Stderr,
		Log:        log,
		Events:     logger.NopSessionLog(),
	}
}

// LastStatus is the exit status of the last foreground command.
func (s *Shell) LastStatus() int {
	return s.lastRet
}

func (s *Shell) colors() *ColorPrinter {
	s.color.Mode = s.Config.Color
	s.color.Out = s.Stdout
	return &s.color
}

func (s *Shell) prompt() string {
	return s.colors().Sprintf(ColorPrompt, "%s", s.Config.Prompt)
}

// Run reads and runs commands until exit or the end of input. It returns the
// exit status of the session.
func (s *Shell) Run() int {
	s.record(logger.EventSession, map[string]interface{}{"state": "start"})
	defer s.record(logger.EventSession, map[string]interface{}{"state": "end"})
	defer s.catchInterrupts()()

	for !s.Quit {
		line, err := s.readLogicalLine()

		switch {
		case errors.Is(err, io.EOF):
			// Input closed, run what was collected and quit.
			if strings.TrimSpace(line) != "" {
				s.runCommand(line)
			}
			return 0

		case errors.Is(err, lineio.ErrInterrupt):
			// Interrupt clears line.
			continue

		case errors.Is(err, shell.ErrInputTooLong):
			s.lastRet = StatusUsage
			s.printError(err)
			continue

		case err != nil:
			s.Log.Error("read failed", zap.Error(err))
			s.printError(err)
			return 1

		case strings.TrimSpace(line) == "":
			continue // empty line

		default:
			s.runCommand(line)
		}
	}

	return 0
}

// catchInterrupts stops SIGINT from ending the session while it waits for a
// foreground job. Children still get the default action because handled
// signals are reset on exec. The returned func restores the default.
func (s *Shell) catchInterrupts() func() {
	interrupts := make(chan os.Signal, 1)
	signal.Notify(interrupts, os.Interrupt)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for range interrupts {
			s.Log.Debug("interrupt ignored")
		}
	}()

	return func() {
		signal.Stop(interrupts)
		close(interrupts)
		<-done
	}
}

// RunOnce runs a single line of input without prompting and returns its exit
// status.
func (s *Shell) RunOnce(line string) int {
	s.record(logger.EventSession, map[string]interface{}{"state": "start"})
	defer s.record(logger.EventSession, map[string]interface{}{"state": "end"})

	s.runCommand(line)
	return s.lastRet
}

// readLogicalLine reads one line of input, joining lines that end in an
// unescaped backslash. If the input ends while joining, the collected text is
// returned with io.EOF.
func (s *Shell) readLogicalLine() (string, error) {
	prompt := s.prompt()
	var collected strings.Builder

	for {
		line, err := s.LineReader.ReadLine(prompt)
		switch {
		case errors.Is(err, io.EOF):
			return collected.String(), io.EOF
		case err != nil:
			return "", err
		}

		if !shell.EndsInContinuation(line) {
			collected.WriteString(line)
			return collected.String(), nil
		}

		collected.WriteString(line[:len(line)-1])
		prompt = s.Config.ContinuationPrompt
	}
}

// runCommand runs line and prints any error.
func (s *Shell) runCommand(line string) {
	if err := s.RunCommand(line); err != nil {
		s.printError(err)
	}
}

// RunCommand parses and runs one line of input.
func (s *Shell) RunCommand(line string) error {
	pipeline, err := shell.Parse(line, s.Config.MaxLineLength)
	if err != nil {
		s.lastRet = StatusUsage
		return err
	}

	s.record(logger.EventCommand, map[string]interface{}{
		"stages":     logger.Strings(pipeline.Stages),
		"background": pipeline.Background,
	})

	if pipeline.Single() {
		argv, err := shell.SplitArguments(pipeline.Stages[0])
		if err != nil {
			s.lastRet = StatusUsage
			return err
		}

		if result, ok, err := s.TryBuiltin(argv); ok {
			s.lastRet = result.ExitCode
			return err
		}

		result, err := s.Launcher.Launch(argv, pipeline.Background)
		s.finish(result)
		return err
	}

	results, err := s.Launcher.RunPipeline(pipeline.Stages, pipeline.Background)
	switch {
	case errors.Is(err, proc.ErrSpawnFailed):
		// Background pipeline that didn't fully start.
		s.lastRet = StatusNotFound
		return err
	case err != nil:
		s.lastRet = StatusUsage
		return err
	}

	var errs []error
	for _, result := range results {
		s.finish(result)
		if result.Err != nil {
			errs = append(errs, result.Err)
		}
	}
	return errors.Join(errs...)
}

// finish records a job's result and reports it to the user.
func (s *Shell) finish(result proc.JobResult) {
	data := map[string]interface{}{
		"argv":       logger.Strings(result.Argv),
		"pid":        result.Pid,
		"exit_code":  result.ExitCode,
		"signaled":   result.Signaled,
		"background": result.Background,
	}
	if result.Err != nil {
		data["error"] = result.Err.Error()
	}
	s.record(logger.EventJob, data)

	switch {
	case result.Err != nil:
		s.lastRet = 1
		if errors.Is(result.Err, proc.ErrSpawnFailed) {
			s.lastRet = StatusNotFound
		}
	case result.Background:
		fmt.Fprintln(s.Stdout, s.colors().Sprintf(ColorJob, "[%d] %d", result.Job, result.Pid))
	case result.Signaled:
		s.lastRet = StatusSignaled
		if sig, ok := result.Signal.(syscall.Signal); ok {
			s.lastRet += int(sig)
		}
		s.reportStatus(result)
	default:
		s.lastRet = result.ExitCode
		s.reportStatus(result)
	}
}

func (s *Shell) reportStatus(result proc.JobResult) {
	if s.Config.ReportStatus {
		fmt.Fprintln(s.Stdout, result.String())
	}
}

// printError writes a diagnostic for each error joined in err.
func (s *Shell) printError(err error) {
	errs := []error{err}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		errs = joined.Unwrap()
	}

	for _, e := range errs {
		fmt.Fprintln(s.Stderr, s.colors().Sprintf(ColorError, "mysh: %v", e))
	}
}

func (s *Shell) record(event string, data map[string]interface{}) {
	if err := s.Events.Record(event, data); err != nil {
		s.Log.Warn("couldn't record event", zap.String("event", event), zap.Error(err))
	}
}
