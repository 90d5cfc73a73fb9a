package db_cmd

import (
	"github.com/spf13/cobra"
)

func Init() *cobra.Command {
	dbCmd := &cobra.Command{
		Use:   "db [<subcommand>]",
		Short: "specifies subcommand on the snapshot database",
		Args:  cobra.NoArgs,
		Run:   func(cmd *cobra.Command, _ []string) { _ = cmd.Help() },
	}

	dbCmd.InitDefaultHelpCmd()
	dbCmd.AddCommand(
		initDBInfoCmd(),
		initSnapshotsCmd(),
		initDBTreeCmd(),
		initCheckCmd(),
	)
	return dbCmd
}
