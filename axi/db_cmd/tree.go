package db_cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/axonledger/axon/axi/glb"
	"github.com/axonledger/axon/ledger"
	"github.com/axonledger/axon/snapshot"
	"github.com/dominikbraun/graph"
	"github.com/dominikbraun/graph/draw"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func initDBTreeCmd() *cobra.Command {
	treeCmd := &cobra.Command{
		Use:   "tree",
		Short: "renders the snapshotted part of the DAG as a DOT file",
		Args:  cobra.NoArgs,
		Run:   runTreeCmd,
	}
	treeCmd.PersistentFlags().StringP("output", "o", "axon_tree", "output file")
	err := viper.BindPFlag("output", treeCmd.PersistentFlags().Lookup("output"))
	glb.AssertNoError(err)
	return treeCmd
}

func runTreeCmd(_ *cobra.Command, _ []string) {
	store := glb.MustOpenSnapshotDB()
	defer glb.CloseSnapshotDB()

	gr := graph.New(graph.StringHash, graph.Directed(), graph.Acyclic())

	known := make(map[ledger.TransactionID]uint64)
	numEdges := 0
	for seqNo := uint64(0); ; seqNo++ {
		snap, err := store.SnapshotBySeq(seqNo)
		if errors.Is(err, snapshot.ErrSnapshotNotFound) {
			break
		}
		glb.AssertNoError(err)

		for _, txid := range snap.Included {
			err = gr.AddVertex(txid.StringShort(),
				graph.VertexAttribute("fontsize", "10"),
				graph.VertexAttribute("xlabel", fmt.Sprintf("#%d", seqNo)),
			)
			glb.AssertNoError(err)
			known[txid] = seqNo
		}
	}
	for txid := range known {
		tx, err := store.ResolveTransaction(&txid)
		glb.AssertNoError(err)
		for _, parent := range tx.Parents {
			if _, ok := known[parent]; !ok {
				continue
			}
			err = gr.AddEdge(txid.StringShort(), parent.StringShort())
			glb.AssertNoError(err)
			numEdges++
		}
	}

	fname := viper.GetString("output") + ".gv"
	dotFile, err := os.Create(fname)
	glb.AssertNoError(err)
	defer func() { _ = dotFile.Close() }()

	err = draw.DOT(gr, dotFile)
	glb.AssertNoError(err)
	glb.Infof("%d transaction(s), %d edge(s) rendered to '%s'", len(known), numEdges, fname)
}
