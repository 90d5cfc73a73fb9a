package tippool

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/axonledger/axon/core/vertex"
	"github.com/axonledger/axon/global"
	"github.com/axonledger/axon/ledger"
	"github.com/axonledger/axon/util"
)

type (
	Environment interface {
		global.Logging
		Tips() []*vertex.Vertex
	}

	// TipPool selects parents for new transactions. It operates on a
	// read-locked snapshot of the tip set: bounded staleness is acceptable,
	// exact freshness is a fairness concern, not a safety one
	TipPool struct {
		env Environment

		mutex           sync.Mutex
		rnd             *rand.Rand
		alpha           float64
		recencyHalfLife time.Duration
	}

	Option func(tp *TipPool)
)

const (
	TraceTag = "tippool"

	defaultRecencyHalfLife = 10 * time.Second
	// caps the exponent so extreme weights cannot overflow float64
	maxExpArg = 50.0
)

func WithRandomSource(src rand.Source) Option {
	return func(tp *TipPool) {
		tp.rnd = rand.New(src)
	}
}

func WithAlpha(alpha float64) Option {
	return func(tp *TipPool) {
		tp.alpha = alpha
	}
}

func WithRecencyHalfLife(d time.Duration) Option {
	return func(tp *TipPool) {
		tp.recencyHalfLife = d
	}
}

func New(env Environment, opts ...Option) *TipPool {
	ret := &TipPool{
		env:             env,
		rnd:             rand.New(rand.NewSource(time.Now().UnixNano())),
		alpha:           ledger.DefaultTipSelectionAlpha,
		recencyHalfLife: defaultRecencyHalfLife,
	}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

// SelectParents picks up to k distinct tips by weighted sampling without
// replacement. A tip is weighted up by confirmation score and recency and
// down by the number of times it has already been picked, so no single tip
// monopolizes references (lazy-tip mitigation). Reproducible for a fixed
// random source and DAG state
func (tp *TipPool) SelectParents(k int) []ledger.TransactionID {
	util.Assertf(k > 0, "SelectParents: k > 0")

	candidates := tp.env.Tips()
	if len(candidates) == 0 {
		return nil
	}
	if len(candidates) <= k {
		ret := make([]ledger.TransactionID, 0, len(candidates))
		for _, v := range candidates {
			v.IncReferences()
			ret = append(ret, v.ID())
		}
		return ret
	}

	weights := make([]float64, len(candidates))
	now := time.Now()
	for i, v := range candidates {
		weights[i] = tp.tipWeight(v, now)
	}

	tp.mutex.Lock()
	defer tp.mutex.Unlock()

	ret := make([]ledger.TransactionID, 0, k)
	for len(ret) < k {
		idx := tp.drawNoLock(weights)
		v := candidates[idx]
		v.IncReferences()
		ret = append(ret, v.ID())
		weights[idx] = -1 // without replacement

		tp.env.Tracef(TraceTag, "selected parent %s", v.ID().StringShort)
	}
	return ret
}

func (tp *TipPool) tipWeight(v *vertex.Vertex, now time.Time) float64 {
	expArg := tp.alpha * float64(v.WeightUnits())
	if expArg > maxExpArg {
		expArg = maxExpArg
	}
	age := now.Sub(v.FirstSeen)
	if age < 0 {
		age = 0
	}
	recency := math.Exp2(-float64(age) / float64(tp.recencyHalfLife))
	return math.Exp(expArg) * recency / float64(1+v.References())
}

// drawNoLock weighted draw over the remaining candidates. Entries already
// selected carry weight -1 and are never drawn again
func (tp *TipPool) drawNoLock(weights []float64) int {
	total := 0.0
	for _, w := range weights {
		if w > 0 {
			total += w
		}
	}
	if total <= 0 {
		// remaining weights underflowed to zero, pick uniformly among them
		remaining := make([]int, 0, len(weights))
		for i := range weights {
			if weights[i] >= 0 {
				remaining = append(remaining, i)
			}
		}
		return remaining[tp.rnd.Intn(len(remaining))]
	}
	target := tp.rnd.Float64() * total
	cumulative := 0.0
	last := 0
	for i, w := range weights {
		if w <= 0 {
			continue
		}
		cumulative += w
		last = i
		if target <= cumulative {
			return i
		}
	}
	return last
}
