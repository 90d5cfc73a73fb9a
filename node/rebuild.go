package node

import (
	"time"

	"github.com/axonledger/axon/ledger"
	"github.com/axonledger/axon/util"
)

// rebuildFromLatestSnapshot brings an empty DAG to a usable state after a
// restart. The snapshotted prefix itself is not replayed, it lives in the
// snapshot store. Instead the latest snapshot frontier is re-inserted as
// the set of startable tips: the last included transactions become parents
// for everything arriving after the restart
func (p *AxonNode) rebuildFromLatestSnapshot() {
	latest, err := p.snapStore.LatestSnapshot()
	util.AssertNoError(err)

	if latest == nil {
		_, err = p.dag.Insert(ledger.GenesisTransaction(p.shard))
		util.AssertNoError(err)
		p.Log().Infof("empty snapshot chain, starting from genesis")
		return
	}

	p.Log().Infof("latest snapshot #%d covers %d transaction(s), created %s",
		latest.SeqNo, len(latest.Included), time.Unix(0, latest.CreatedAt).Format(time.RFC3339))

	// transactions of the latest snapshot with no children inside it form
	// the restart frontier
	coveredByLatest := make(map[ledger.TransactionID]struct{}, len(latest.Included))
	for _, txid := range latest.Included {
		coveredByLatest[txid] = struct{}{}
	}
	referenced := make(map[ledger.TransactionID]struct{})
	txs := make([]*ledger.Transaction, 0, len(latest.Included))
	for _, txid := range latest.Included {
		tx, err1 := p.snapStore.ResolveTransaction(&txid)
		if err1 != nil {
			p.Log().Fatalf("snapshot #%d is missing payload of %s: %v", latest.SeqNo, txid.StringShort(), err1)
		}
		txs = append(txs, tx)
		for _, parent := range tx.Parents {
			referenced[parent] = struct{}{}
		}
	}

	// Included is topologically ordered ancestors-first, so parents of a
	// frontier transaction are either on the frontier too or resolvable
	// from the store
	restored := 0
	for _, tx := range txs {
		if _, isParent := referenced[tx.ID()]; isParent {
			continue
		}
		if err = p.restoreFrontierTx(tx); err != nil {
			p.Log().Fatalf("can't restore frontier transaction %s: %v", tx.ID().StringShort(), err)
		}
		restored++
	}
	if restored == 0 {
		// degenerate single-chain snapshot, restore the newest one
		err = p.restoreFrontierTx(txs[len(txs)-1])
		util.AssertNoError(err)
		restored = 1
	}
	p.Log().Infof("restored %d tip(s) from snapshot #%d", restored, latest.SeqNo)
}

// restoreFrontierTx re-inserts an already snapshotted transaction and
// forwards its lifecycle state so it cannot be included in a checkpoint
// twice
func (p *AxonNode) restoreFrontierTx(tx *ledger.Transaction) error {
	tx.SetValidated()
	v, err := p.dag.InsertWithFallback(tx, p.snapStore.HasTransaction)
	if err != nil {
		return err
	}
	v.MarkConfirmed()
	v.MarkSnapshotted()
	return nil
}
