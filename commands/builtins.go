package commands

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"go.uber.org/zap"

	"github.com/josephlewis42/mysh/core/logger"
	"github.com/josephlewis42/mysh/core/proc"
)

const (
	EnvPWD    = "PWD"
	EnvOldPWD = "OLDPWD"
)

// AllBuiltins holds a list of all registered shell builtins
var AllBuiltins = make(map[string]ShellBuiltin)

// ShellBuiltin is a command the interpreter runs itself instead of spawning a
// process.
type ShellBuiltin struct {
	// Short is the one line description shown by help.
	Short string
	Main  ShellBuiltinFunc
}

type ShellBuiltinFunc func(s *Shell, args []string) error

// BuiltinNames returns the names of every builtin in sorted order.
func BuiltinNames() []string {
	var names []string
	for name := range AllBuiltins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// TryBuiltin runs argv if it names a builtin. The second return value is
// false if argv[0] isn't a builtin, in which case nothing was run.
func (s *Shell) TryBuiltin(argv []string) (proc.JobResult, bool, error) {
	if len(argv) == 0 {
		return proc.JobResult{}, false, nil
	}

	builtin, ok := AllBuiltins[argv[0]]
	if !ok {
		return proc.JobResult{}, false, nil
	}

	result := proc.JobResult{Argv: argv}
	err := builtin.Main(s, argv)
	switch {
	case errors.Is(err, ErrUsage):
		result.ExitCode = StatusUsage
	case err != nil:
		result.ExitCode = 1
	}

	data := map[string]interface{}{
		"argv":      logger.Strings(argv),
		"exit_code": result.ExitCode,
	}
	if err != nil {
		data["error"] = err.Error()
	}
	s.record(logger.EventBuiltin, data)

	return result, true, err
}

// Pwd prints the working directory with symbolic links resolved.
func Pwd(s *Shell, args []string) error {
	cmd := &SimpleCommand{
		Use:   "pwd",
		Short: "Print the name of the current working directory.",
	}

	return cmd.Run(args, s.Stdout, func() error {
		dir, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("%w: pwd: %v", ErrEnvironment, err)
		}

		resolved, err := filepath.EvalSymlinks(dir)
		if err != nil {
			return fmt.Errorf("%w: pwd: %v", ErrEnvironment, err)
		}

		fmt.Fprintln(s.Stdout, resolved)
		return nil
	})
}

// Cd is the cd shell builtin
func Cd(s *Shell, args []string) error {
	cmd := &SimpleCommand{
		Use:   "cd DIRECTORY",
		Short: "Change the working directory.",
	}

	return cmd.Run(args, s.Stdout, func() error {
		operands := cmd.Flags().Args()
		switch {
		case len(operands) == 0:
			return fmt.Errorf("%w: cd: no directory given", ErrMissingArgument)
		case len(operands) > 1:
			return fmt.Errorf("%w: cd: expected one directory", ErrTooManyArguments)
		}

		old, _ := os.Getwd()
		if err := os.Chdir(operands[0]); err != nil {
			return fmt.Errorf("%w: cd: %v", ErrEnvironment, err)
		}

		// Children see the new directory through $PWD too.
		if dir, err := os.Getwd(); err == nil {
			os.Setenv(EnvOldPWD, old)
			os.Setenv(EnvPWD, dir)
		}
		s.Log.Debug("changed directory", zap.String("from", old), zap.String("to", operands[0]))
		return nil
	})
}

// Mkdir implements a POSIX mkdir command.
//
// https://pubs.opengroup.org/onlinepubs/9699919799.2018edition/utilities/mkdir.html
func Mkdir(s *Shell, args []string) error {
	cmd := &SimpleCommand{
		Use:   "mkdir [-pv] DIRECTORY...",
		Short: "Create directories if they don't exist.",
	}

	makeParents := cmd.Flags().BoolLong("parents", 'p', "make parents if needed")
	verbose := cmd.Flags().BoolLong("verbose", 'v', "print a line for every created directory")

	return cmd.Run(args, s.Stdout, func() error {
		directories := cmd.Flags().Args()
		if len(directories) == 0 {
			return fmt.Errorf("%w: mkdir: missing operand", ErrMissingArgument)
		}

		op := os.Mkdir
		if *makeParents {
			op = os.MkdirAll
		}

		var firstErr error
		for _, dir := range directories {
			err := op(dir, 0777)
			switch {
			case err != nil:
				if firstErr == nil {
					firstErr = fmt.Errorf("%w: mkdir: cannot create directory %q: %v", ErrEnvironment, dir, err)
				}
			case *verbose:
				fmt.Fprintf(s.Stdout, "mkdir: created directory %q\n", dir)
			}
		}

		return firstErr
	})
}

// Exit quits the shell
func Exit(s *Shell, args []string) error {
	s.Quit = true
	return nil
}

// Help lists the builtins.
func Help(s *Shell, args []string) error {
	w := s.Stdout
	fmt.Fprintln(w, "mysh, a small command interpreter.")
	fmt.Fprintln(w, "These commands are defined internally. Other commands are looked up in $PATH.")
	fmt.Fprintln(w, "Type `NAME --help' to find out more about the command `NAME'.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Builtins:")
	fmt.Fprintln(w)

	for _, name := range BuiltinNames() {
		fmt.Fprintf(w, "  %-5s  %s\n", name, AllBuiltins[name].Short)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "External commands:")
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  %-5s  %s\n", "ls", "list directory contents")

	return nil
}

// Vi opens the editor on a file and prints the counts of the saved document.
func Vi(s *Shell, args []string) error {
	cmd := &SimpleCommand{
		Use:   "vi FILE",
		Short: "Edit FILE and print its line, word and character counts.",
	}

	return cmd.Run(args, s.Stdout, func() error {
		operands := cmd.Flags().Args()
		switch {
		case len(operands) == 0:
			return fmt.Errorf("%w: vi: no file given", ErrMissingArgument)
		case len(operands) > 1:
			return fmt.Errorf("%w: vi: expected one file", ErrTooManyArguments)
		}

		counts, err := s.Editor.Open(operands[0])
		if err != nil {
			return fmt.Errorf("%w: vi: %v", ErrEnvironment, err)
		}

		fmt.Fprintf(s.Stdout, "Number of lines: %d\n", counts.Lines)
		fmt.Fprintf(s.Stdout, "Number of words: %d\n", counts.Words)
		fmt.Fprintf(s.Stdout, "Number of characters: %d\n", counts.Chars)

		s.record(logger.EventEditor, map[string]interface{}{
			"path":  operands[0],
			"lines": counts.Lines,
			"words": counts.Words,
			"chars": counts.Chars,
		})
		return nil
	})
}

func init() {
	AllBuiltins["pwd"] = ShellBuiltin{Short: "print the working directory", Main: Pwd}
	AllBuiltins["cd"] = ShellBuiltin{Short: "change the working directory", Main: Cd}
	AllBuiltins["mkdir"] = ShellBuiltin{Short: "create directories", Main: Mkdir}
	AllBuiltins["exit"] = ShellBuiltin{Short: "leave the interpreter", Main: Exit}
	AllBuiltins["help"] = ShellBuiltin{Short: "show this list", Main: Help}
	AllBuiltins["vi"] = ShellBuiltin{Short: "edit a file and print its line, word and character counts", Main: Vi}
}
