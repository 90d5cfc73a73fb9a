package confirm

import (
	"errors"
	"sync"
	"time"

	"github.com/axonledger/axon/core/vertex"
	"github.com/axonledger/axon/global"
	"github.com/axonledger/axon/ledger"
	"github.com/axonledger/axon/pos"
	"github.com/axonledger/axon/util/set"
	"github.com/gammazero/deque"
	"github.com/prometheus/client_golang/prometheus"
)

// ErrPropagationDepthExceeded is not a failure of the insertion: propagation
// was truncated at the depth cap and the remainder re-scheduled
var ErrPropagationDepthExceeded = errors.New("weight propagation depth cap exceeded, re-check deferred")

type (
	Environment interface {
		global.NodeGlobal
		GetVertex(txid *ledger.TransactionID) (*vertex.Vertex, error)
	}

	// Engine accumulates confirmation weight backward through the DAG.
	// All weight updates are commutative atomic adds: for a fixed DAG the
	// converged weights do not depend on the order transactions arrived in
	Engine struct {
		env       Environment
		registry  *pos.Registry
		threshold uint64 // fixed point
		maxDepth  int

		// attestations submitted ahead of insertion, consumed by OnInsert
		attestMutex  sync.Mutex
		attestations map[ledger.TransactionID]pos.ValidatorID

		deferredMutex sync.Mutex
		deferred      deque.Deque[deferredPropagation]

		confirmedCh chan ledger.TransactionID

		metrics engineMetrics
	}

	// deferredPropagation remainder of a truncated propagation pass: the
	// frontier vertices still owed the contribution
	deferredPropagation struct {
		frontier     []ledger.TransactionID
		contribution uint64
	}

	engineMetrics struct {
		confirmedCounter prometheus.Counter
		deferredCounter  prometheus.Counter
	}

	Option func(e *Engine)
)

const (
	TraceTag = "confirm"

	confirmedChanBuffer = 1024
	// deferredRecheckPeriod drain cadence of the deferred propagation queue
	deferredRecheckPeriod = 100 * time.Millisecond
)

func WithThresholdUnits(units uint64) Option {
	return func(e *Engine) {
		e.threshold = units * ledger.WeightUnit
	}
}

func WithMaxPropagationDepth(depth int) Option {
	return func(e *Engine) {
		e.maxDepth = depth
	}
}

func New(env Environment, registry *pos.Registry, opts ...Option) *Engine {
	ret := &Engine{
		env:          env,
		registry:     registry,
		threshold:    ledger.DefaultConfirmationThreshold * ledger.WeightUnit,
		maxDepth:     ledger.DefaultMaxPropagationDepth,
		attestations: make(map[ledger.TransactionID]pos.ValidatorID),
		confirmedCh:  make(chan ledger.TransactionID, confirmedChanBuffer),
	}
	for _, opt := range opts {
		opt(ret)
	}
	ret.metrics.confirmedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "axon_confirmed_tx_total",
		Help: "transactions which crossed the finality threshold",
	})
	ret.metrics.deferredCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "axon_deferred_propagation_total",
		Help: "weight propagation passes truncated by the depth cap and re-scheduled",
	})
	env.MetricsRegistry().MustRegister(ret.metrics.confirmedCounter, ret.metrics.deferredCounter)
	return ret
}

// Start runs the deferred re-check daemon until the global context closes
func (e *Engine) Start() {
	e.env.RepeatInBackground("confirm.deferred", deferredRecheckPeriod, func() bool {
		e.drainDeferred()
		return true
	})
}

// ConfirmedCh newly confirmed transaction ids, for gossip re-broadcast
func (e *Engine) ConfirmedCh() <-chan ledger.TransactionID {
	return e.confirmedCh
}

// RegisterAttestation must be called before the transaction is inserted.
// An attested transaction contributes weight scaled by the validator's
// effective stake instead of the flat unit
func (e *Engine) RegisterAttestation(txid ledger.TransactionID, validatorID pos.ValidatorID) {
	e.attestMutex.Lock()
	defer e.attestMutex.Unlock()

	e.attestations[txid] = validatorID
}

func (e *Engine) takeAttestation(txid ledger.TransactionID) (pos.ValidatorID, bool) {
	e.attestMutex.Lock()
	defer e.attestMutex.Unlock()

	ret, found := e.attestations[txid]
	if found {
		delete(e.attestations, txid)
	}
	return ret, found
}

// contributionOf flat unit, or stake-proportional for validator-attested
// transactions: one extra unit per full stake quantum
func (e *Engine) contributionOf(v *vertex.Vertex) uint64 {
	validatorID, attested := e.takeAttestation(v.ID())
	if !attested {
		return ledger.WeightUnit
	}
	stake := e.registry.EffectiveStake(validatorID)
	total := e.registry.TotalActiveStake()
	if total == 0 {
		return ledger.WeightUnit
	}
	// 1 + numValidators-normalized stake share, in weight units
	share := stake * uint64(e.registry.NumValidators()) / total
	return ledger.WeightUnit * (1 + share)
}

// OnInsert assigns the new vertex its base weight and propagates the
// contribution to ancestors, decaying per generation. Triggered by the DAG
// store after every insertion
func (e *Engine) OnInsert(v *vertex.Vertex) {
	contribution := e.contributionOf(v)
	e.bumpWeight(v, contribution)

	frontier := v.Tx.Parents
	e.propagate(frontier, decay(contribution), e.maxDepth)
}

// propagate BFS backward from the frontier. Every ancestor receives the
// contribution decayed by its shortest distance from the new vertex; the
// visited set keeps diamond shapes from double counting. Truncation at the
// depth cap is never silent: the remainder goes to the deferred queue
func (e *Engine) propagate(frontier []ledger.TransactionID, contribution uint64, depthBudget int) {
	if len(frontier) == 0 || contribution == 0 {
		return
	}
	visited := set.New[ledger.TransactionID]()
	current := frontier
	depth := 0

	for len(current) > 0 && contribution > 0 {
		if depth >= depthBudget {
			e.deferRemainder(current, contribution)
			return
		}
		next := make([]ledger.TransactionID, 0, len(current))
		for i := range current {
			txid := current[i]
			if visited.Contains(txid) {
				continue
			}
			visited.Insert(txid)
			ancestor, err := e.env.GetVertex(&txid)
			if err != nil {
				// ancestor already pruned into a snapshot, its weight is final
				continue
			}
			e.bumpWeight(ancestor, contribution)
			for _, p := range ancestor.Tx.Parents {
				if !visited.Contains(p) {
					next = append(next, p)
				}
			}
		}
		current = next
		contribution = decay(contribution)
		depth++
	}
}

func (e *Engine) bumpWeight(v *vertex.Vertex, delta uint64) {
	newWeight := v.AddWeight(delta)
	if newWeight >= e.threshold && v.MarkConfirmed() {
		e.metrics.confirmedCounter.Inc()
		e.env.Tracef(TraceTag, "confirmed %s at weight %d", v.ID().StringShort, newWeight)
		select {
		case e.confirmedCh <- v.ID():
		default:
			e.env.Log().Warnf("confirm: confirmed-id channel is full, %s dropped from notification", v.ID().StringShort())
		}
	}
}

func (e *Engine) deferRemainder(frontier []ledger.TransactionID, contribution uint64) {
	e.metrics.deferredCounter.Inc()
	e.env.Log().Warnf("confirm: %v (frontier size %d)", ErrPropagationDepthExceeded, len(frontier))

	remainder := deferredPropagation{
		frontier:     append(frontier[:0:0], frontier...),
		contribution: contribution,
	}
	e.deferredMutex.Lock()
	defer e.deferredMutex.Unlock()

	e.deferred.PushBack(remainder)
}

func (e *Engine) drainDeferred() {
	for {
		e.deferredMutex.Lock()
		if e.deferred.Len() == 0 {
			e.deferredMutex.Unlock()
			return
		}
		item := e.deferred.PopFront()
		e.deferredMutex.Unlock()

		e.env.Tracef(TraceTag, "deferred propagation pass: frontier %d, contribution %d", len(item.frontier), item.contribution)
		e.propagate(item.frontier, item.contribution, e.maxDepth)
	}
}

// IsConfirmed weight crossed the finality threshold. The flag never reverts
func (e *Engine) IsConfirmed(txid *ledger.TransactionID) bool {
	v, err := e.env.GetVertex(txid)
	if err != nil {
		return false
	}
	return v.IsConfirmed()
}

func (e *Engine) ThresholdUnits() uint64 {
	return e.threshold / ledger.WeightUnit
}

func decay(contribution uint64) uint64 {
	return contribution * ledger.DecayNumerator / ledger.DecayDenominator
}
