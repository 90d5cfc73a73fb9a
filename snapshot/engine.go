package snapshot

import (
	"errors"
	"fmt"
	"time"

	"github.com/axonledger/axon/core/vertex"
	"github.com/axonledger/axon/global"
	"github.com/axonledger/axon/ledger"
	"github.com/axonledger/axon/pos"
	"github.com/axonledger/axon/util"
	"github.com/axonledger/axon/util/set"
)

var ErrInsufficientConfirmedDepth = errors.New("not enough confirmed transactions for a snapshot")

type (
	Environment interface {
		global.NodeGlobal
		Vertices(filterByID ...func(txid *ledger.TransactionID) bool) []*vertex.Vertex
		GetVertex(txid *ledger.TransactionID) (*vertex.Vertex, error)
		PurgeVertices(txids []ledger.TransactionID)
	}

	// Engine freezes confirmed DAG prefixes into the checkpoint chain.
	// Snapshot creation is the only place where a transaction advances from
	// confirmed to snapshotted, so the engine needs no own lock: the cut
	// point is a copy-on-read of the confirmed set
	Engine struct {
		env      Environment
		registry *pos.Registry
		store    *Store

		minConfirmed int
		interval     time.Duration
	}

	Option func(e *Engine)
)

const TraceTag = "snapshot"

func WithMinConfirmed(n int) Option {
	return func(e *Engine) {
		e.minConfirmed = n
	}
}

func WithInterval(d time.Duration) Option {
	return func(e *Engine) {
		e.interval = d
	}
}

func NewEngine(env Environment, registry *pos.Registry, store *Store, opts ...Option) *Engine {
	ret := &Engine{
		env:          env,
		registry:     registry,
		store:        store,
		minConfirmed: ledger.DefaultMinConfirmedForSnapshot,
		interval:     ledger.DefaultSnapshotInterval,
	}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

// Start triggers snapshot creation periodically. Too-early attempts are
// expected and only traced
func (e *Engine) Start() {
	e.env.RepeatInBackground("snapshot.periodic", e.interval, func() bool {
		snap, err := e.CreateSnapshot()
		switch {
		case errors.Is(err, ErrInsufficientConfirmedDepth):
			e.env.Tracef(TraceTag, "skipped: %v", err)
		case err != nil:
			e.env.Log().Errorf("snapshot: %v", err)
		default:
			e.env.Log().Infof("created %s", snap.String())
		}
		return true
	})
}

// CreateSnapshot cuts the confirmed-but-not-snapshotted set, orders it
// topologically, links it to the previous snapshot and persists it together
// with the covered transaction bytes. Included vertices advance to the
// snapshotted state and become prunable
func (e *Engine) CreateSnapshot() (*Snapshot, error) {
	// copy-on-read cut: weight accumulated on these vertices after this
	// point does not change their membership
	cut := e.env.Vertices()
	cut = util.FilterSlice(cut, func(v *vertex.Vertex) bool {
		return v.Status() == vertex.StatusConfirmed
	})
	if len(cut) < e.minConfirmed {
		return nil, fmt.Errorf("%w: confirmed %d, required %d", ErrInsufficientConfirmedDepth, len(cut), e.minConfirmed)
	}

	ordered := topologicalOrder(cut)

	var prevHash [32]byte
	seqNo := uint64(0)
	prev, err := e.store.LatestSnapshot()
	if err != nil {
		return nil, err
	}
	if prev != nil {
		prevHash = prev.Hash()
		seqNo = prev.SeqNo + 1
	}

	included := make([]ledger.TransactionID, len(ordered))
	covered := make([]*ledger.Transaction, len(ordered))
	for i, v := range ordered {
		included[i] = v.ID()
		covered[i] = v.Tx
	}
	snap := &Snapshot{
		SeqNo:         seqNo,
		PrevHash:      prevHash,
		CreatedAt:     time.Now().UnixNano(),
		Included:      included,
		RegistryState: e.registry.Bytes(),
	}
	if err = e.store.SaveSnapshot(snap, covered); err != nil {
		return nil, err
	}
	for _, v := range ordered {
		util.Assertf(v.MarkSnapshotted(), "MarkSnapshotted: unexpected status regression in %s", v.ID().StringShort)
	}
	return snap, nil
}

// Prune removes transactions covered by a finalized snapshot from the live
// DAG. Reads of pruned ids resolve through the snapshot store
func (e *Engine) Prune(snap *Snapshot) {
	// vertices may already be gone if prune is repeated for the same snapshot
	for i := range snap.Included {
		if v, err := e.env.GetVertex(&snap.Included[i]); err == nil {
			v.MarkPruned()
		}
	}
	e.env.PurgeVertices(snap.Included)
	e.env.Tracef(TraceTag, "pruned %d transaction(s) of snapshot #%d", len(snap.Included), snap.SeqNo)
}

func (e *Engine) Store() *Store {
	return e.store
}

// topologicalOrder Kahn walk over the cut subgraph: ancestors always precede
// descendants. Ties resolved by timestamp, then id, so the order is
// deterministic for a fixed cut
func topologicalOrder(cut []*vertex.Vertex) []*vertex.Vertex {
	inCut := make(map[ledger.TransactionID]*vertex.Vertex, len(cut))
	for _, v := range cut {
		inCut[v.ID()] = v
	}
	// unresolved counts parents within the cut
	unresolved := make(map[ledger.TransactionID]int, len(cut))
	for _, v := range cut {
		n := 0
		for _, p := range v.Tx.Parents {
			if _, ok := inCut[p]; ok {
				n++
			}
		}
		unresolved[v.ID()] = n
	}

	ret := make([]*vertex.Vertex, 0, len(cut))
	resolved := set.New[ledger.TransactionID]()
	for len(ret) < len(cut) {
		// deterministic choice among the ready ones
		var next *vertex.Vertex
		for txid, n := range unresolved {
			if n != 0 || resolved.Contains(txid) {
				continue
			}
			v := inCut[txid]
			if next == nil || lessVertex(v, next) {
				next = v
			}
		}
		util.Assertf(next != nil, "topologicalOrder: no ready vertex, cut is not a DAG")
		nextID := next.ID()
		resolved.Insert(nextID)
		ret = append(ret, next)
		next.Children().ForEach(func(child ledger.TransactionID) bool {
			if _, ok := inCut[child]; ok {
				unresolved[child]--
			}
			return true
		})
	}
	return ret
}

func lessVertex(v1, v2 *vertex.Vertex) bool {
	if v1.Tx.Timestamp != v2.Tx.Timestamp {
		return v1.Tx.Timestamp < v2.Tx.Timestamp
	}
	return ledger.LessTxID(v1.ID(), v2.ID())
}
