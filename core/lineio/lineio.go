// Package lineio acquires input lines for the interpreter.
package lineio

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/abiosoft/readline"

	"github.com/josephlewis42/mysh/core/shell"
)

// ErrInterrupt is returned when the user abandons the current line (Ctrl-C).
var ErrInterrupt = errors.New("interrupt")

// LineReader yields one physical input line per call. It returns io.EOF when
// there is no more input.
type LineReader interface {
	ReadLine(prompt string) (string, error)
}

// Config holds the settings of an interactive reader.
type Config struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	// HistoryLimit is the number of lines kept in memory for recall, history
	// is never written to disk.
	HistoryLimit int

	// IsTerminal reports whether the streams are attached to a terminal.
	IsTerminal func() bool
}

// Readline reads lines with editing and history.
type Readline struct {
	instance *readline.Instance
}

var _ LineReader = (*Readline)(nil)

// NewReadline creates an interactive reader.
func NewReadline(c Config) (*Readline, error) {
	cfg := &readline.Config{
		Stdin:        readline.NewCancelableStdin(c.Stdin),
		Stdout:       c.Stdout,
		Stderr:       c.Stderr,
		HistoryLimit: c.HistoryLimit,
		// readline treats a zero limit as its own default.
		DisableAutoSaveHistory: c.HistoryLimit <= 0,
		FuncIsTerminal:         c.IsTerminal,
	}

	if err := cfg.Init(); err != nil {
		return nil, err
	}

	instance, err := readline.NewEx(cfg)
	if err != nil {
		return nil, err
	}

	return &Readline{instance: instance}, nil
}

// ReadLine implements LineReader.
func (r *Readline) ReadLine(prompt string) (string, error) {
	r.instance.SetPrompt(prompt)
	line, err := r.instance.Readline()

	switch {
	case err == readline.ErrInterrupt:
		return "", ErrInterrupt
	case err != nil:
		return "", err
	default:
		return line, nil
	}
}

// Close releases the terminal.
func (r *Readline) Close() error {
	return r.instance.Close()
}

// DefaultMaxLineLength bounds the lines a Scanner buffers when no limit is
// set.
const DefaultMaxLineLength = 1024 * 1024

// Scanner reads lines from a plain stream without a prompt, for use when the
// input isn't a terminal.
type Scanner struct {
	// MaxLineLength is the longest line returned, in bytes. Longer lines are
	// discarded up to the next newline and reported as shell.ErrInputTooLong.
	// Zero means DefaultMaxLineLength.
	MaxLineLength int

	reader *bufio.Reader
	prompt io.Writer
}

var _ LineReader = (*Scanner)(nil)

// NewScanner creates a reader over r. If prompt is non-nil, prompts are
// written to it.
func NewScanner(r io.Reader, prompt io.Writer) *Scanner {
	return &Scanner{reader: bufio.NewReader(r), prompt: prompt}
}

// ReadLine implements LineReader.
func (s *Scanner) ReadLine(prompt string) (string, error) {
	if s.prompt != nil {
		io.WriteString(s.prompt, prompt)
	}

	limit := s.MaxLineLength
	if limit <= 0 {
		limit = DefaultMaxLineLength
	}

	var (
		line []byte
		size int
	)
	for {
		chunk, err := s.reader.ReadSlice('\n')
		size += len(chunk)
		if size <= limit+2 {
			line = append(line, chunk...)
		}

		if err == bufio.ErrBufferFull {
			continue
		}
		if err == io.EOF && size == 0 {
			return "", io.EOF
		}
		if err != nil && err != io.EOF {
			return "", err
		}
		break
	}

	text := strings.TrimSuffix(strings.TrimSuffix(string(line), "\n"), "\r")
	if size > limit+2 || len(text) > limit {
		return "", fmt.Errorf("%w: line longer than %d bytes", shell.ErrInputTooLong, limit)
	}

	return text, nil
}

// Lines is a LineReader over a fixed list of lines.
type Lines []string

var _ LineReader = (*Lines)(nil)

// ReadLine implements LineReader.
func (l *Lines) ReadLine(string) (string, error) {
	if len(*l) == 0 {
		return "", io.EOF
	}

	line := (*l)[0]
	*l = (*l)[1:]
	return line, nil
}
