package db_cmd

import (
	"time"

	"github.com/axonledger/axon/axi/glb"
	"github.com/axonledger/axon/pos"
	"github.com/axonledger/axon/util"
	"github.com/spf13/cobra"
)

func initDBInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "outputs summary of the snapshot database",
		Args:  cobra.NoArgs,
		Run:   runDBInfoCmd,
	}
}

func runDBInfoCmd(_ *cobra.Command, _ []string) {
	store := glb.MustOpenSnapshotDB()
	defer glb.CloseSnapshotDB()

	latest, err := store.LatestSnapshot()
	glb.AssertNoError(err)
	if latest == nil {
		glb.Infof("snapshot database is empty")
		return
	}

	hash := latest.Hash()
	glb.Infof("latest snapshot: #%d", latest.SeqNo)
	glb.Infof("   created:      %s", time.Unix(0, latest.CreatedAt).Format(time.RFC3339))
	glb.Infof("   hash:         %x", hash[:])
	glb.Infof("   transactions: %d", len(latest.Included))

	registry, err := pos.RegistryFromBytes(latest.RegistryState)
	glb.AssertNoError(err)
	glb.Infof("validator registry at the latest snapshot: %d validator(s), total active stake %s",
		registry.NumValidators(), util.Th(registry.TotalActiveStake()))
	glb.Verbosef("%s", registry.Lines("   ").String())
}
