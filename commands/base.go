package commands

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	getopt "github.com/pborman/getopt/v2"
	"golang.org/x/term"

	"github.com/josephlewis42/mysh/core/config"
)

var (
	// ErrMissingArgument is returned when a built-in needs an operand that
	// wasn't given.
	ErrMissingArgument = errors.New("missing argument")
	// ErrTooManyArguments is returned when a built-in got more operands than
	// it accepts.
	ErrTooManyArguments = errors.New("too many arguments")
	// ErrEnvironment is returned when the OS refused a built-in's request.
	ErrEnvironment = errors.New("environment error")
	// ErrUsage is returned when a built-in's options couldn't be parsed.
	ErrUsage = errors.New("invalid usage")
)

type SimpleCommand struct {
	// Use holds a one line usage string
	Use string
	// Short holds a one line description of the command.
	Short string
	// ShowHelp sets whether help is displayed or not.
	// If this is non-nil when Run() is called, then the default help flag isn't
	// added.
	ShowHelp *bool

	flags *getopt.Set
}

// Flags gets the command's flag set.
func (s *SimpleCommand) Flags() *getopt.Set {
	if s.flags == nil {
		s.flags = getopt.New()
	}

	return s.flags
}

// PrintHelp writes help for the command to the given writer.
func (s *SimpleCommand) PrintHelp(w io.Writer) {
	fmt.Fprint(w, "usage: ")
	fmt.Fprintln(w, s.Use)
	fmt.Fprintln(w, s.Short)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	s.Flags().PrintOptions(w)
}

// Run the command, if flag parsing was succcessful call the callback.
func (s *SimpleCommand) Run(args []string, w io.Writer, callback func() error) error {
	opts := s.Flags()

	// Add help flag if not overridden.
	if s.ShowHelp == nil {
		s.ShowHelp = opts.BoolLong("help", 'h', "show this help and exit")
	}

	if err := opts.Getopt(args, nil); err != nil {
		s.PrintHelp(w)
		return fmt.Errorf("%w: %v", ErrUsage, err)
	}

	if *s.ShowHelp {
		s.PrintHelp(w)
		return nil
	}

	return callback()
}

var (
	ColorPrompt = []color.Attribute{color.FgGreen, color.Bold}
	ColorError  = []color.Attribute{color.FgRed, color.Bold}
	ColorJob    = []color.Attribute{color.FgCyan}
)

// ColorPrinter decides whether output gets ANSI colors.
type ColorPrinter struct {
	// Mode is one of config.ColorAlways, config.ColorAuto or
	// config.ColorNever.
	Mode string
	// Out is checked for a terminal in auto mode.
	Out io.Writer
}

func (c *ColorPrinter) ShouldColor() bool {
	switch c.Mode {
	case config.ColorNever:
		return false
	case config.ColorAlways:
		return true
	default:
		f, ok := c.Out.(*os.File)
		return ok && term.IsTerminal(int(f.Fd())) && os.Getenv("NO_COLOR") == ""
	}
}

func (c *ColorPrinter) Sprintf(attrs []color.Attribute, format string, a ...interface{}) string {
	if !c.ShouldColor() {
		return fmt.Sprintf(format, a...)
	}

	col := color.New(attrs...)
	col.EnableColor()
	return col.Sprintf(format, a...)
}
