// Package shell breaks a raw command line into pipeline stages and argument
// vectors.
//
// The grammar is a small subset of
// https://pubs.opengroup.org/onlinepubs/9699919799/utilities/V3_chap02.html:
//
// 1. The whole line may end with '&', which runs the pipeline in the
// background. The '&' is removed before anything else is split.
//
// 2. The line is split into stages on '|'. Each stage is trimmed and must not
// be empty.
//
// 3. Each stage is split into words on runs of whitespace. Single and double
// quotes group words but no other expansion is performed.
package shell

import (
	"errors"
	"fmt"
	"strings"

	"github.com/anmitsu/go-shlex"
)

const (
	pipeSeparator  = "|"
	backgroundMark = "&"
)

var (
	// ErrInputTooLong is returned when a line exceeds the configured maximum.
	ErrInputTooLong = errors.New("input too long")
	// ErrEmptyStage is returned when a pipeline has a stage with no command.
	ErrEmptyStage = errors.New("empty command in pipeline")
	// ErrSyntax is returned when a stage can't be split into words.
	ErrSyntax = errors.New("syntax error")
)

// Pipeline is the parsed form of one input line.
type Pipeline struct {
	// Stages holds the trimmed command line of each stage, left to right.
	Stages []string
	// Background is set if the line ended in '&'.
	Background bool
}

// Single reports whether the pipeline has exactly one stage.
func (p Pipeline) Single() bool {
	return len(p.Stages) == 1
}

// Parse checks the length of raw, strips a trailing background marker, and
// splits the remainder into stages.
func Parse(raw string, maxLen int) (Pipeline, error) {
	if maxLen > 0 && len(raw) > maxLen {
		return Pipeline{}, fmt.Errorf("%w: %d bytes, limit is %d", ErrInputTooLong, len(raw), maxLen)
	}

	line, background := StripBackground(raw)
	stages, err := SplitPipeline(line)
	if err != nil {
		return Pipeline{}, err
	}

	return Pipeline{Stages: stages, Background: background}, nil
}

// StripBackground removes a trailing '&' from the line, it may be attached to
// the last word. An escaped '\&' is part of the word.
func StripBackground(raw string) (string, bool) {
	line := strings.TrimSpace(raw)
	if !strings.HasSuffix(line, backgroundMark) {
		return line, false
	}

	rest := strings.TrimSuffix(line, backgroundMark)
	if EndsInContinuation(rest) {
		return line, false
	}

	return strings.TrimSpace(rest), true
}

// SplitPipeline splits raw on '|' and trims the spaces around each stage.
func SplitPipeline(raw string) ([]string, error) {
	pieces := strings.Split(raw, pipeSeparator)

	stages := make([]string, 0, len(pieces))
	for i, piece := range pieces {
		stage := strings.TrimSpace(piece)
		if stage == "" {
			return nil, fmt.Errorf("%w: stage %d", ErrEmptyStage, i+1)
		}
		stages = append(stages, stage)
	}

	return stages, nil
}

// SplitArguments splits a stage into words on runs of whitespace.
func SplitArguments(line string) ([]string, error) {
	words, err := shlex.Split(line, true)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSyntax, err)
	}

	out := words[:0]
	for _, w := range words {
		if w != "" {
			out = append(out, w)
		}
	}

	if len(out) == 0 {
		return nil, ErrEmptyStage
	}

	return out, nil
}

// EndsInContinuation reports whether line ends with a backslash that isn't
// itself escaped.
func EndsInContinuation(line string) bool {
	trailing := len(line) - len(strings.TrimRight(line, `\`))
	return trailing%2 == 1
}
