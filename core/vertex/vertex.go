package vertex

import (
	"fmt"
	"sync"
	"time"

	"github.com/axonledger/axon/ledger"
	"github.com/axonledger/axon/util"
	"github.com/axonledger/axon/util/lines"
	"github.com/axonledger/axon/util/set"
	"go.uber.org/atomic"
)

type (
	// Status is the one-directional lifecycle of a transaction in the DAG.
	// Transitions never regress
	Status int32

	// Vertex wraps an immutable transaction record with the mutable DAG
	// node attributes: cumulative confirmation weight, lifecycle status and
	// the derived children index.
	//
	// Weight accumulation is an atomic add, so sibling insertions sharing
	// ancestors never lose updates and the converged weight does not depend
	// on arrival order
	Vertex struct {
		Tx        *ledger.Transaction
		FirstSeen time.Time

		weight     atomic.Uint64 // fixed point, ledger.WeightUnit per unit
		status     atomic.Int32
		refCount   atomic.Int32  // times chosen as a parent by tip selection
		generation atomic.Uint32 // 1 + max parent generation, set at insertion

		childrenMutex sync.RWMutex
		children      set.Set[ledger.TransactionID]
	}
)

const (
	StatusPending = Status(iota)
	StatusConfirmed
	StatusSnapshotted
	StatusPruned
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusConfirmed:
		return "confirmed"
	case StatusSnapshotted:
		return "snapshotted"
	case StatusPruned:
		return "pruned"
	}
	return fmt.Sprintf("status(%d)", int32(s))
}

func New(tx *ledger.Transaction) *Vertex {
	util.Assertf(tx != nil, "vertex.New: nil transaction")
	return &Vertex{
		Tx:        tx,
		FirstSeen: time.Now(),
		children:  set.New[ledger.TransactionID](),
	}
}

func (v *Vertex) ID() ledger.TransactionID {
	return v.Tx.ID()
}

// AddWeight commutative atomic accumulation, returns the resulting weight
func (v *Vertex) AddWeight(delta uint64) uint64 {
	return v.weight.Add(delta)
}

func (v *Vertex) Weight() uint64 {
	return v.weight.Load()
}

// WeightUnits weight in whole units, rounded down
func (v *Vertex) WeightUnits() uint64 {
	return v.weight.Load() / ledger.WeightUnit
}

func (v *Vertex) Status() Status {
	return Status(v.status.Load())
}

// advanceStatus CAS loop: succeeds only on the exact forward transition,
// so a status can never regress
func (v *Vertex) advanceStatus(from, to Status) bool {
	return v.status.CompareAndSwap(int32(from), int32(to))
}

func (v *Vertex) MarkConfirmed() bool {
	return v.advanceStatus(StatusPending, StatusConfirmed)
}

func (v *Vertex) MarkSnapshotted() bool {
	return v.advanceStatus(StatusConfirmed, StatusSnapshotted)
}

func (v *Vertex) MarkPruned() bool {
	return v.advanceStatus(StatusSnapshotted, StatusPruned)
}

// IsConfirmed confirmed at least. The flag never reverts
func (v *Vertex) IsConfirmed() bool {
	return v.Status() >= StatusConfirmed
}

func (v *Vertex) AddChild(txid ledger.TransactionID) {
	v.childrenMutex.Lock()
	defer v.childrenMutex.Unlock()

	v.children.Insert(txid)
}

func (v *Vertex) Children() set.Set[ledger.TransactionID] {
	v.childrenMutex.RLock()
	defer v.childrenMutex.RUnlock()

	return v.children.Clone()
}

func (v *Vertex) NumChildren() int {
	v.childrenMutex.RLock()
	defer v.childrenMutex.RUnlock()

	return len(v.children)
}

// IsTip no children yet
func (v *Vertex) IsTip() bool {
	return v.NumChildren() == 0
}

func (v *Vertex) SetGeneration(gen uint32) {
	v.generation.Store(gen)
}

func (v *Vertex) Generation() uint32 {
	return v.generation.Load()
}

func (v *Vertex) IncReferences() int32 {
	return v.refCount.Add(1)
}

func (v *Vertex) References() int32 {
	return v.refCount.Load()
}

func (v *Vertex) String() string {
	return fmt.Sprintf("%s %s weight: %s, children: %d",
		v.ID().StringShort(), v.Status().String(), util.Th(v.Weight()), v.NumChildren())
}

func (v *Vertex) Lines(prefix ...string) *lines.Lines {
	ret := lines.New(prefix...)
	ret.Add("%s", v.String())
	v.Children().ForEach(func(txid ledger.TransactionID) bool {
		ret.Add("    child %s", txid.StringShort())
		return true
	})
	return ret
}
