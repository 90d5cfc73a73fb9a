package node

import (
	"testing"
	"time"

	"github.com/axonledger/axon/core/dag"
	"github.com/axonledger/axon/global"
	"github.com/axonledger/axon/ledger"
	"github.com/axonledger/axon/snapshot"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func newTestNode(t *testing.T) *AxonNode {
	db := snapshot.MustOpenDB(t.TempDir())
	t.Cleanup(func() { _ = db.Close() })

	n := &AxonNode{
		Global:    global.NewWithLogLevel(zapcore.ErrorLevel),
		dag:       dag.New(),
		snapStore: snapshot.NewStore(db),
		mempool:   newMempool(16),
		started:   time.Now(),
	}
	_, err := n.dag.Insert(ledger.GenesisTransaction(0))
	require.NoError(t, err)
	return n
}

func makeTx(parents []ledger.TransactionID, payload string) *ledger.Transaction {
	return ledger.NewTransaction(0, parents, []byte(payload), time.Now().UnixNano())
}

func TestMempoolBounded(t *testing.T) {
	m := newMempool(2)
	require.NoError(t, m.push(makeTx(nil, "1")))
	require.NoError(t, m.push(makeTx(nil, "2")))
	require.ErrorIs(t, m.push(makeTx(nil, "3")), ErrMempoolFull)
	require.EqualValues(t, 2, m.size())

	_, ok := m.pop()
	require.True(t, ok)
	require.NoError(t, m.push(makeTx(nil, "3")))
}

func TestDrainMempool(t *testing.T) {
	n := newTestNode(t)
	gid := ledger.GenesisTransaction(0).ID()

	child := makeTx([]ledger.TransactionID{gid}, "child")
	orphan := makeTx([]ledger.TransactionID{ledger.RandomTransactionID()}, "orphan")

	_, err := n.SubmitTransaction(child)
	require.NoError(t, err)
	_, err = n.SubmitTransaction(orphan)
	require.NoError(t, err)
	require.EqualValues(t, 2, n.mempool.size())

	n.drainMempool()

	// the child is inserted, the orphan waits for its parent
	childID := child.ID()
	require.True(t, n.dag.HasVertex(&childID))
	require.EqualValues(t, 1, n.mempool.size())

	// repeated drains do not drop the orphan
	n.drainMempool()
	require.EqualValues(t, 1, n.mempool.size())
}

func TestSubmitTransaction(t *testing.T) {
	n := newTestNode(t)
	gid := ledger.GenesisTransaction(0).ID()

	t.Run("structurally invalid", func(t *testing.T) {
		p := ledger.RandomTransactionID()
		tx := makeTx([]ledger.TransactionID{p, p}, "dup parents")
		_, err := n.SubmitTransaction(tx)
		require.ErrorIs(t, err, ledger.ErrDuplicateParents)
	})
	t.Run("via bytes", func(t *testing.T) {
		tx := makeTx([]ledger.TransactionID{gid}, "wire")
		txid, err := n.SubmitTransactionBytes(tx.Bytes())
		require.NoError(t, err)
		require.EqualValues(t, tx.ID(), txid)

		n.drainMempool()
		require.True(t, n.dag.HasVertex(&txid))

		status := n.QueryTxStatus(&txid)
		require.True(t, status.Found)
		require.EqualValues(t, "pending", status.Status)
	})
	t.Run("unknown txid", func(t *testing.T) {
		txid := ledger.RandomTransactionID()
		status := n.QueryTxStatus(&txid)
		require.False(t, status.Found)
	})
}
