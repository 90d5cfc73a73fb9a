package node

import (
	"errors"
	"fmt"
	"sync"

	"github.com/axonledger/axon/core/dag"
	"github.com/axonledger/axon/ledger"
	"github.com/gammazero/deque"
)

var ErrMempoolFull = errors.New("mempool is full")

// mempool is a bounded FIFO of structurally valid transactions waiting for
// insertion into the DAG. A transaction whose parents are not known yet is
// parked and retried when any new transaction makes it in
type mempool struct {
	mutex    sync.Mutex
	queue    deque.Deque[*ledger.Transaction]
	capacity int
}

func newMempool(capacity int) *mempool {
	if capacity <= 0 {
		capacity = DefaultMempoolSize
	}
	return &mempool{capacity: capacity}
}

// push enqueues the transaction, ErrMempoolFull when at capacity.
// Duplicates are tolerated here, insertion will reject them later
func (m *mempool) push(tx *ledger.Transaction) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.queue.Len() >= m.capacity {
		return fmt.Errorf("%w: capacity %d", ErrMempoolFull, m.capacity)
	}
	m.queue.PushBack(tx)
	return nil
}

func (m *mempool) pop() (*ledger.Transaction, bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.queue.Len() == 0 {
		return nil, false
	}
	return m.queue.PopFront(), true
}

func (m *mempool) size() int {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	return m.queue.Len()
}

// drainMempool inserts queued transactions until the queue is empty or only
// orphans remain. Orphans go back to the tail once per pass
func (p *AxonNode) drainMempool() {
	for toGo := p.mempool.size(); toGo > 0; toGo-- {
		tx, ok := p.mempool.pop()
		if !ok {
			return
		}
		_, err := p.dag.InsertWithFallback(tx, p.snapStore.HasTransaction)
		switch {
		case err == nil:
			p.Tracef(TraceTagNode, "inserted %s from mempool", tx.ID().StringShort())
		case errors.Is(err, dag.ErrParentMissing):
			// orphan, keep it for the next pass
			_ = p.mempool.push(tx)
		case errors.Is(err, dag.ErrDuplicateTxID):
			// harmless, gossip and API may race on the same transaction
		default:
			p.Log().Warnf("mempool: dropping transaction %s: %v", tx.ID().StringShort(), err)
		}
	}
}
