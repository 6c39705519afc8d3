package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/josephlewis42/mysh/commands"
)

// builtinsCmd lists the commands the interpreter runs itself
var builtinsCmd = &cobra.Command{
	Use:   "builtins",
	Short: "Show the builtin commands of the interpreter.",
	Args:  cobra.ExactArgs(0),
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, name := range commands.BuiltinNames() {
			fmt.Fprintf(cmd.OutOrStdout(), "%-5s  %s\n", name, commands.AllBuiltins[name].Short)
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(builtinsCmd)
}
