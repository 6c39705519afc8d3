package cmd

import (
	"fmt"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/josephlewis42/mysh/core/config"
)

// initCmd writes the default configuration
var initCmd = &cobra.Command{
	Use:   "init [DIRECTORY]",
	Short: "Write the default configuration to DIRECTORY, the current directory by default.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		dir := "."
		if len(args) > 0 {
			dir = args[0]
		}

		path, err := config.Initialize(afero.NewOsFs(), dir)
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %s, load it with --config %s\n", path, dir)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
