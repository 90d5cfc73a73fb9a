package node

import (
	"crypto/ed25519"
	"testing"
	"time"

	"github.com/axonledger/axon/core/dag"
	"github.com/axonledger/axon/core/vertex"
	"github.com/axonledger/axon/global"
	"github.com/axonledger/axon/ledger"
	"github.com/axonledger/axon/pos"
	"github.com/axonledger/axon/snapshot"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestRebuildFromLatestSnapshot(t *testing.T) {
	dir := t.TempDir()

	pubKey, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	validatorID := pos.ValidatorIDFromPubKey(pubKey)

	// first lifetime: build a confirmed chain, snapshot it, prune it
	var snapHash [32]byte
	{
		db := snapshot.MustOpenDB(dir)
		store := snapshot.NewStore(db)
		env := struct {
			*global.Global
			*dag.DAG
		}{global.NewWithLogLevel(zapcore.ErrorLevel), dag.New()}

		registry := pos.NewRegistry()
		require.NoError(t, registry.Register(validatorID, pubKey, 1000))

		g := ledger.GenesisTransaction(0)
		v, err1 := env.DAG.Insert(g)
		require.NoError(t, err1)
		v.MarkConfirmed()
		tip := g.ID()
		for i := 0; i < 3; i++ {
			tx := ledger.NewTransaction(0, []ledger.TransactionID{tip}, []byte{byte(i)}, int64(1000+i)).SetValidated()
			v, err1 = env.DAG.Insert(tx)
			require.NoError(t, err1)
			v.MarkConfirmed()
			tip = tx.ID()
		}

		engine := snapshot.NewEngine(env, registry, store, snapshot.WithMinConfirmed(1))
		snap, err1 := engine.CreateSnapshot()
		require.NoError(t, err1)
		engine.Prune(snap)
		snapHash = snap.Hash()

		require.NoError(t, db.Close())
	}

	// second lifetime: a fresh node restores registry and frontier
	db := snapshot.MustOpenDB(dir)
	t.Cleanup(func() { _ = db.Close() })

	n := &AxonNode{
		Global:    global.NewWithLogLevel(zapcore.ErrorLevel),
		dag:       dag.New(),
		snapStore: snapshot.NewStore(db),
		mempool:   newMempool(16),
		started:   time.Now(),
	}
	require.NoError(t, n.snapStore.VerifyChain())

	latest, err := n.snapStore.LatestSnapshot()
	require.NoError(t, err)
	require.EqualValues(t, snapHash, latest.Hash())

	n.initRegistry()
	require.EqualValues(t, 1, n.registry.NumValidators())
	require.EqualValues(t, 1000, n.registry.EffectiveStake(validatorID))

	n.rebuildFromLatestSnapshot()

	// the last transaction of the snapshot is back as the startable tip
	tips := n.dag.Tips()
	require.EqualValues(t, 1, len(tips))
	frontier := latest.Included[len(latest.Included)-1]
	require.EqualValues(t, frontier, tips[0].ID())
	require.EqualValues(t, vertex.StatusSnapshotted, tips[0].Status())

	// new transactions build on the restored frontier, pruned ancestors
	// resolve through the store
	child := ledger.NewTransaction(0, []ledger.TransactionID{frontier}, []byte("new era"), time.Now().UnixNano())
	_, err = n.SubmitTransaction(child)
	require.NoError(t, err)
	n.drainMempool()
	childID := child.ID()
	require.True(t, n.dag.HasVertex(&childID))

	// a pruned ancestor still reports its status and the covering snapshot
	pruned := latest.Included[0]
	status := n.QueryTxStatus(&pruned)
	require.True(t, status.Found)
	require.EqualValues(t, vertex.StatusPruned.String(), status.Status)
	require.NotNil(t, status.SnapshotSeq)
	require.EqualValues(t, latest.SeqNo, *status.SnapshotSeq)

	// the restored frontier is live and snapshotted, with the same seq
	status = n.QueryTxStatus(&frontier)
	require.True(t, status.Found)
	require.EqualValues(t, vertex.StatusSnapshotted.String(), status.Status)
	require.NotNil(t, status.SnapshotSeq)
	require.EqualValues(t, latest.SeqNo, *status.SnapshotSeq)

	// fresh transactions carry no snapshot reference
	status = n.QueryTxStatus(&childID)
	require.True(t, status.Found)
	require.Nil(t, status.SnapshotSeq)
}
