package db_cmd

import (
	"github.com/axonledger/axon/axi/glb"
	"github.com/spf13/cobra"
)

func initCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "verifies hash links of the whole checkpoint chain",
		Args:  cobra.NoArgs,
		Run:   runCheckCmd,
	}
}

func runCheckCmd(_ *cobra.Command, _ []string) {
	store := glb.MustOpenSnapshotDB()
	defer glb.CloseSnapshotDB()

	err := store.VerifyChain()
	glb.AssertNoError(err)
	glb.Infof("checkpoint chain is consistent")
}
