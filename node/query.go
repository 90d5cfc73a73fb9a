package node

import (
	"fmt"
	"time"

	"github.com/axonledger/axon/api"
	"github.com/axonledger/axon/core/vertex"
	"github.com/axonledger/axon/global"
	"github.com/axonledger/axon/ledger"
)

// query facade behind the API server. Everything here is read-mostly,
// SubmitTransactionBytes is the only mutating entry point and it only
// touches the mempool

func (p *AxonNode) GetNodeInfo() *api.NodeInfo {
	return &api.NodeInfo{
		Name:    "axon",
		Version: global.Version,
		Shard:   byte(p.shard),
		UpTime:  p.UpTime().Round(time.Second).String(),
	}
}

func (p *AxonNode) GetStats() *api.Stats {
	ret := &api.Stats{
		NumVertices:      p.dag.NumVertices(),
		NumTips:          p.dag.NumTips(),
		MempoolSize:      p.mempool.size(),
		TotalActiveStake: p.registry.TotalActiveStake(),
	}
	maxGen, sumGen, numConfirmedGen := uint32(0), uint64(0), uint64(0)
	p.dag.ForEachVertexReadLocked(func(v *vertex.Vertex) bool {
		maxGen = max(maxGen, v.Generation())
		switch v.Status() {
		case vertex.StatusPending:
			ret.NumPending++
		case vertex.StatusConfirmed:
			ret.NumConfirmed++
		case vertex.StatusSnapshotted:
			ret.NumSnapshotted++
		}
		if v.IsConfirmed() {
			sumGen += uint64(v.Generation())
			numConfirmedGen++
		}
		return true
	})
	// mean distance from a confirmed transaction to the newest generation
	if numConfirmedGen > 0 {
		ret.MeanConfirmDepth = float64(maxGen) - float64(sumGen)/float64(numConfirmedGen)
	}
	if latest, err := p.snapStore.LatestSnapshot(); err == nil && latest != nil {
		ret.LatestSnapshotSeq = latest.SeqNo
		hash := latest.Hash()
		ret.LatestSnapshotHash = fmt.Sprintf("%x", hash[:])
	}
	return ret
}

func (p *AxonNode) GetValidators() *api.ValidatorList {
	records := p.registry.Records()
	ret := &api.ValidatorList{Validators: make([]api.ValidatorInfo, 0, len(records))}
	for _, v := range records {
		ret.Validators = append(ret.Validators, api.ValidatorInfo{
			ID:     v.ID.String(),
			PubKey: fmt.Sprintf("%x", []byte(v.PubKey)),
			Stake:  v.Stake,
			Status: v.Status.String(),
		})
	}
	return ret
}

func (p *AxonNode) TipIDs(max int) []ledger.TransactionID {
	tips := p.dag.Tips()
	if max > 0 && len(tips) > max {
		tips = tips[:max]
	}
	ret := make([]ledger.TransactionID, 0, len(tips))
	for _, v := range tips {
		ret = append(ret, v.ID())
	}
	return ret
}

// QueryTxStatus reports the lifecycle state of a transaction, whether it
// still lives in the DAG or has already been frozen into a checkpoint
func (p *AxonNode) QueryTxStatus(txid *ledger.TransactionID) *api.TxStatus {
	ret := &api.TxStatus{TxID: txid.StringHex()}

	if v, err := p.dag.GetVertex(txid); err == nil {
		ret.Found = true
		ret.Status = v.Status().String()
		ret.WeightUnits = v.WeightUnits()
		ret.NumChildren = v.NumChildren()
		if v.Status() >= vertex.StatusSnapshotted {
			if seq, err := p.snapStore.CoveringSnapshotSeq(txid); err == nil {
				ret.SnapshotSeq = &seq
			}
		}
		return ret
	}
	if p.snapStore.HasTransaction(txid) {
		ret.Found = true
		ret.Status = vertex.StatusPruned.String()
		if seq, err := p.snapStore.CoveringSnapshotSeq(txid); err == nil {
			ret.SnapshotSeq = &seq
		}
	}
	return ret
}

// ResolveTransactionBytes finds the canonical transaction bytes in the live
// DAG first, then falls back to the snapshot store
func (p *AxonNode) ResolveTransactionBytes(txid *ledger.TransactionID) ([]byte, error) {
	if v, err := p.dag.GetVertex(txid); err == nil {
		return v.Tx.Bytes(), nil
	}
	tx, err := p.snapStore.ResolveTransaction(txid)
	if err != nil {
		return nil, err
	}
	return tx.Bytes(), nil
}

// SubmitTransactionBytes parses, validates and queues a transaction.
// Insertion into the DAG is asynchronous
func (p *AxonNode) SubmitTransactionBytes(txBytes []byte) (ledger.TransactionID, error) {
	tx, err := ledger.TransactionFromBytes(txBytes)
	if err != nil {
		return ledger.TransactionID{}, err
	}
	return p.SubmitTransaction(tx)
}

func (p *AxonNode) SubmitTransaction(tx *ledger.Transaction) (ledger.TransactionID, error) {
	if err := tx.ValidateStructure(); err != nil {
		return ledger.TransactionID{}, err
	}
	tx.SetValidated()
	if err := p.mempool.push(tx); err != nil {
		return ledger.TransactionID{}, err
	}
	p.Tracef(TraceTagNode, "queued transaction %s", tx.ID().StringShort())
	return tx.ID(), nil
}

// SelectParents exposes tip selection for local transaction builders
func (p *AxonNode) SelectParents(k int) []ledger.TransactionID {
	if k <= 0 {
		k = ledger.DefaultNumParents
	}
	return p.tipPool.SelectParents(k)
}
