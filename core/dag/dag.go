package dag

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/axonledger/axon/core/vertex"
	"github.com/axonledger/axon/ledger"
	"github.com/axonledger/axon/util"
	"github.com/axonledger/axon/util/lines"
	"github.com/axonledger/axon/util/set"
	"golang.org/x/exp/maps"
)

var (
	ErrParentMissing  = errors.New("parent transaction not found in the DAG")
	ErrDuplicateTxID  = errors.New("duplicate transaction id")
	ErrCycleDetected  = errors.New("transaction would create a cycle")
	ErrTxNotFound     = errors.New("transaction not found")
	ErrNotValidated   = errors.New("transaction has not passed external validation")
)

type (
	// DAG is the sole owner of all vertices. The children indices kept on
	// the vertices are non-owning back-references maintained by Insert
	DAG struct {
		mutex    sync.RWMutex
		vertices map[ledger.TransactionID]*vertex.Vertex
		tips     set.Set[ledger.TransactionID]

		// called after every successful insertion, outside the write lock
		onInsert func(v *vertex.Vertex)
	}
)

func New() *DAG {
	return &DAG{
		vertices: make(map[ledger.TransactionID]*vertex.Vertex),
		tips:     set.New[ledger.TransactionID](),
	}
}

// OnInsert must be set before concurrent use
func (d *DAG) OnInsert(fun func(v *vertex.Vertex)) {
	d.onInsert = fun
}

// Insert checks structural invariants and atomically adds the vertex,
// links it into the children index of every parent and updates the tip
// index. A reader can never observe the vertex without its parent links.
//
// A parentless transaction is only accepted as the genesis of its shard,
// i.e. while the store holds no vertex of that shard
func (d *DAG) Insert(tx *ledger.Transaction) (*vertex.Vertex, error) {
	return d.insert(tx, nil)
}

// InsertWithFallback insert for rebuild after pruning: a parent counts as
// existing when parentKnown reports it, typically through snapshot lookup
func (d *DAG) InsertWithFallback(tx *ledger.Transaction, parentKnown func(txid *ledger.TransactionID) bool) (*vertex.Vertex, error) {
	return d.insert(tx, parentKnown)
}

func (d *DAG) insert(tx *ledger.Transaction, parentKnown func(txid *ledger.TransactionID) bool) (*vertex.Vertex, error) {
	if !tx.IsValidated() {
		return nil, fmt.Errorf("%w: %s", ErrNotValidated, tx.ID().StringShort())
	}
	if err := tx.ValidateStructure(); err != nil {
		return nil, err
	}
	txid := tx.ID()
	// identity is content-addressed, so a transaction among its own parents
	// is the only cycle shape reachable past the no-forward-reference rule
	for i := range tx.Parents {
		if tx.Parents[i] == txid {
			return nil, fmt.Errorf("%w: %s", ErrCycleDetected, txid.StringShort())
		}
	}

	v, err := func() (*vertex.Vertex, error) {
		d.mutex.Lock()
		defer d.mutex.Unlock()

		return d.insertNoLock(tx, txid, parentKnown)
	}()
	if err != nil {
		return nil, err
	}
	if d.onInsert != nil {
		// outside the write lock; the vertex is fully linked by now
		d.onInsert(v)
	}
	return v, nil
}

func (d *DAG) insertNoLock(tx *ledger.Transaction, txid ledger.TransactionID, parentKnown func(txid *ledger.TransactionID) bool) (*vertex.Vertex, error) {
	if _, already := d.vertices[txid]; already {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateTxID, txid.StringShort())
	}
	if tx.IsGenesis() && d.numVerticesOfShardNoLock(tx.Shard) > 0 {
		return nil, fmt.Errorf("%w: parentless transaction %s on a non-empty shard", ErrParentMissing, txid.StringShort())
	}
	parents := make([]*vertex.Vertex, 0, len(tx.Parents))
	for i := range tx.Parents {
		pv, found := d.vertices[tx.Parents[i]]
		if !found {
			if parentKnown != nil && parentKnown(&tx.Parents[i]) {
				continue
			}
			return nil, fmt.Errorf("%w: %s", ErrParentMissing, tx.Parents[i].StringShort())
		}
		parents = append(parents, pv)
	}

	v := vertex.New(tx)
	gen := uint32(0)
	for _, pv := range parents {
		gen = max(gen, pv.Generation())
	}
	if len(tx.Parents) > 0 {
		gen++
	}
	v.SetGeneration(gen)

	d.vertices[txid] = v
	for _, pv := range parents {
		pv.AddChild(txid)
		d.tips.Remove(pv.ID())
	}
	d.tips.Insert(txid)
	return v, nil
}

func (d *DAG) GetVertexNoLock(txid *ledger.TransactionID) *vertex.Vertex {
	return d.vertices[*txid]
}

func (d *DAG) GetVertex(txid *ledger.TransactionID) (*vertex.Vertex, error) {
	d.mutex.RLock()
	defer d.mutex.RUnlock()

	ret := d.GetVertexNoLock(txid)
	if ret == nil {
		return nil, fmt.Errorf("%w: %s", ErrTxNotFound, txid.StringShort())
	}
	return ret, nil
}

func (d *DAG) HasVertex(txid *ledger.TransactionID) bool {
	d.mutex.RLock()
	defer d.mutex.RUnlock()

	return d.vertices[*txid] != nil
}

// ChildrenOf derived index, consistent with insertions
func (d *DAG) ChildrenOf(txid *ledger.TransactionID) (set.Set[ledger.TransactionID], error) {
	v, err := d.GetVertex(txid)
	if err != nil {
		return nil, err
	}
	return v.Children(), nil
}

// Tips candidate attachment points, youngest first
func (d *DAG) Tips() []*vertex.Vertex {
	d.mutex.RLock()
	defer d.mutex.RUnlock()

	ret := make([]*vertex.Vertex, 0, len(d.tips))
	d.tips.ForEach(func(txid ledger.TransactionID) bool {
		if v := d.vertices[txid]; v != nil {
			ret = append(ret, v)
		}
		return true
	})
	sort.Slice(ret, func(i, j int) bool {
		if ret[i].Tx.Timestamp != ret[j].Tx.Timestamp {
			return ret[i].Tx.Timestamp > ret[j].Tx.Timestamp
		}
		return ledger.LessTxID(ret[i].ID(), ret[j].ID())
	})
	return ret
}

func (d *DAG) NumTips() int {
	d.mutex.RLock()
	defer d.mutex.RUnlock()

	return len(d.tips)
}

func (d *DAG) NumVertices() int {
	d.mutex.RLock()
	defer d.mutex.RUnlock()

	return len(d.vertices)
}

func (d *DAG) numVerticesOfShardNoLock(shard ledger.ShardID) (ret int) {
	for txid := range d.vertices {
		if txid.ShardID() == shard {
			ret++
		}
	}
	return
}

// Vertices snapshot of all vertices, to avoid traversal under the global lock
func (d *DAG) Vertices(filterByID ...func(txid *ledger.TransactionID) bool) []*vertex.Vertex {
	d.mutex.RLock()
	defer d.mutex.RUnlock()

	if len(filterByID) == 0 {
		return maps.Values(d.vertices)
	}
	return util.ValuesFiltered(d.vertices, func(v *vertex.Vertex) bool {
		id := v.ID()
		return filterByID[0](&id)
	})
}

// ForEachVertexReadLocked beware: the whole traversal is read-locked
func (d *DAG) ForEachVertexReadLocked(fun func(v *vertex.Vertex) bool) {
	d.mutex.RLock()
	defer d.mutex.RUnlock()

	for _, v := range d.vertices {
		if !fun(v) {
			return
		}
	}
}

// PurgeVertices removes pruned vertices under the global write lock
func (d *DAG) PurgeVertices(txids []ledger.TransactionID) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	for i := range txids {
		delete(d.vertices, txids[i])
		d.tips.Remove(txids[i])
	}
}

func (d *DAG) Lines(prefix ...string) *lines.Lines {
	ret := lines.New(prefix...)
	for _, v := range d.Vertices() {
		ret.Add("%s", v.String())
	}
	return ret
}
