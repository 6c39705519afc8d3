package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/josephlewis42/mysh/commands"
	"github.com/josephlewis42/mysh/core/config"
	"github.com/josephlewis42/mysh/core/lineio"
	"github.com/josephlewis42/mysh/core/logger"
)

var (
	cfgPath     string
	commandLine string

	// exitCode is returned to the OS once the root command finishes.
	exitCode int
)

func loadConfig() (*config.Configuration, error) {
	configuration, err := config.Load(cfgPath)

	if errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintln(os.Stderr, "Couldn't load config: did you run init?")
	}

	return configuration, err
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "mysh",
	Short: "A small interactive command interpreter",
	Long: `mysh reads commands, runs them as child processes and connects
pipelines with |. A trailing & runs the command in the background.`,
	Args: cobra.ExactArgs(0),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		log, err := logger.New(cfg.Log.Level, cfg.Log.Path)
		if err != nil {
			return err
		}
		defer log.Sync()

		events, closeEvents, err := openEventLog(cfg)
		if err != nil {
			return err
		}
		defer closeEvents()

		if cmd.Flags().Changed("command") {
			s := commands.NewShell(cfg, nil, log)
			s.Events = events
			exitCode = s.RunOnce(commandLine)
			return nil
		}

		reader, closeReader, err := newLineReader(cfg)
		if err != nil {
			return err
		}
		defer closeReader()

		s := commands.NewShell(cfg, reader, log)
		s.Events = events
		log.Debug("session started", zap.String("session", events.SessionID()))
		exitCode = s.Run()
		return nil
	},
}

// newLineReader picks an interactive reader for terminals and a plain one for
// anything else.
func newLineReader(cfg *config.Configuration) (lineio.LineReader, func(), error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		scanner := lineio.NewScanner(os.Stdin, nil)
		scanner.MaxLineLength = cfg.MaxLineLength
		return scanner, func() {}, nil
	}

	rl, err := lineio.NewReadline(lineio.Config{
		Stdin:        os.Stdin,
		Stdout:       os.Stdout,
		Stderr:       os.Stderr,
		HistoryLimit: cfg.HistoryLimit,
		IsTerminal: func() bool {
			return term.IsTerminal(int(os.Stdout.Fd()))
		},
	})
	if err != nil {
		return nil, nil, err
	}

	return rl, func() { rl.Close() }, nil
}

// openEventLog opens the configured event log, or discards events if none is
// set.
func openEventLog(cfg *config.Configuration) (*logger.SessionLog, func(), error) {
	if cfg.EventLog == "" {
		return logger.NopSessionLog(), func() {}, nil
	}

	fd, err := cfg.OpenEventLog()
	if err != nil {
		return nil, nil, err
	}

	return logger.NewJSONLinesEventLog(fd).NewSession(), func() { fd.Close() }, nil
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	cobra.CheckErr(rootCmd.Execute())
	os.Exit(exitCode)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "config file or directory, built-in defaults if empty")
	rootCmd.Flags().StringVarP(&commandLine, "command", "c", "", "run a single command and exit")
}
