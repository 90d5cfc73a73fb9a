package db_cmd

import (
	"errors"
	"time"

	"github.com/axonledger/axon/axi/glb"
	"github.com/axonledger/axon/snapshot"
	"github.com/spf13/cobra"
)

func initSnapshotsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "snapshots",
		Short: "walks the checkpoint chain from genesis and outputs each snapshot",
		Args:  cobra.NoArgs,
		Run:   runSnapshotsCmd,
	}
}

func runSnapshotsCmd(_ *cobra.Command, _ []string) {
	store := glb.MustOpenSnapshotDB()
	defer glb.CloseSnapshotDB()

	count := 0
	for seqNo := uint64(0); ; seqNo++ {
		snap, err := store.SnapshotBySeq(seqNo)
		if errors.Is(err, snapshot.ErrSnapshotNotFound) {
			break
		}
		glb.AssertNoError(err)

		hash := snap.Hash()
		glb.Infof("#%-6d %s  txs: %-6d hash: %x  prev: %x",
			snap.SeqNo,
			time.Unix(0, snap.CreatedAt).Format("2006-01-02 15:04:05"),
			len(snap.Included),
			hash[:8], snap.PrevHash[:8])
		for _, txid := range snap.Included {
			glb.Verbosef("      %s", txid.String())
		}
		count++
	}
	glb.Infof("total %d snapshot(s) in the chain", count)
}
