package init_cmd

import (
	"github.com/spf13/cobra"
)

func Init() *cobra.Command {
	initCmd := &cobra.Command{
		Use:   "init",
		Args:  cobra.NoArgs,
		Short: "specifies initialization subcommands",
		Run:   func(cmd *cobra.Command, _ []string) { _ = cmd.Help() },
	}
	initCmd.AddCommand(
		initNodeConfigCmd(),
		initValidatorKeyCmd(),
	)
	initCmd.InitDefaultHelpCmd()
	return initCmd
}
