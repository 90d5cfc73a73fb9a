package confirm

import (
	"crypto/ed25519"
	"math/rand"
	"testing"
	"time"

	"github.com/axonledger/axon/core/dag"
	"github.com/axonledger/axon/global"
	"github.com/axonledger/axon/ledger"
	"github.com/axonledger/axon/pos"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

type testEnv struct {
	*global.Global
	*dag.DAG
}

func newTestEnv() *testEnv {
	return &testEnv{
		Global: global.NewWithLogLevel(zapcore.ErrorLevel),
		DAG:    dag.New(),
	}
}

func makeTx(parents []ledger.TransactionID, payload string) *ledger.Transaction {
	return ledger.NewTransaction(0, parents, []byte(payload), time.Now().UnixNano()).SetValidated()
}

func mustInsert(t *testing.T, d *dag.DAG, tx *ledger.Transaction) {
	_, err := d.Insert(tx)
	require.NoError(t, err)
}

func weightUnitsOf(t *testing.T, d *dag.DAG, txid ledger.TransactionID) uint64 {
	v, err := d.GetVertex(&txid)
	require.NoError(t, err)
	return v.WeightUnits()
}

func weightOf(t *testing.T, d *dag.DAG, txid ledger.TransactionID) uint64 {
	v, err := d.GetVertex(&txid)
	require.NoError(t, err)
	return v.Weight()
}

func TestWeightAccumulation(t *testing.T) {
	env := newTestEnv()
	engine := New(env, pos.NewRegistry(), WithThresholdUnits(2))
	env.DAG.OnInsert(engine.OnInsert)

	g := ledger.GenesisTransaction(0)
	mustInsert(t, env.DAG, g)

	a := makeTx([]ledger.TransactionID{g.ID()}, "a")
	mustInsert(t, env.DAG, a)

	// own base weight only
	require.EqualValues(t, ledger.WeightUnit, weightOf(t, env.DAG, a.ID()))
	// genesis got the decayed contribution on top of its base
	require.EqualValues(t, ledger.WeightUnit+ledger.WeightUnit*9/10, weightOf(t, env.DAG, g.ID()))

	b := makeTx([]ledger.TransactionID{a.ID()}, "b")
	mustInsert(t, env.DAG, b)
	c := makeTx([]ledger.TransactionID{b.ID()}, "c")
	mustInsert(t, env.DAG, c)

	// a: 1 + 0.9 (from b) + 0.81 (from c) = 2.71 units, over the threshold
	require.EqualValues(t, 2, weightUnitsOf(t, env.DAG, a.ID()))
	aid := a.ID()
	require.True(t, engine.IsConfirmed(&aid))

	// b: 1 + 0.9 = 1.9 units, still pending
	bid := b.ID()
	require.False(t, engine.IsConfirmed(&bid))

	// confirmation is reported on the channel, genesis first, then a
	gid := g.ID()
	require.True(t, engine.IsConfirmed(&gid))
	require.EqualValues(t, gid, <-engine.ConfirmedCh())
	require.EqualValues(t, aid, <-engine.ConfirmedCh())
}

func TestDiamondNoDoubleCount(t *testing.T) {
	env := newTestEnv()
	engine := New(env, pos.NewRegistry(), WithThresholdUnits(100))
	env.DAG.OnInsert(engine.OnInsert)

	g := ledger.GenesisTransaction(0)
	mustInsert(t, env.DAG, g)
	a := makeTx([]ledger.TransactionID{g.ID()}, "a")
	b := makeTx([]ledger.TransactionID{g.ID()}, "b")
	mustInsert(t, env.DAG, a)
	mustInsert(t, env.DAG, b)
	c := makeTx([]ledger.TransactionID{a.ID(), b.ID()}, "c")
	mustInsert(t, env.DAG, c)

	// c reaches g along two paths of equal length, yet g is credited once
	// per insertion: 1 (own) + 0.9 (a) + 0.9 (b) + 0.81 (c)
	expected := ledger.WeightUnit +
		2*(ledger.WeightUnit*9/10) +
		ledger.WeightUnit*9/10*9/10
	require.EqualValues(t, expected, weightOf(t, env.DAG, g.ID()))
}

// buildRandomDAG returns transactions in a topologically valid order:
// parents always precede children
func buildRandomDAG(rnd *rand.Rand, size int) []*ledger.Transaction {
	txs := make([]*ledger.Transaction, 0, size)
	g := ledger.GenesisTransaction(0)
	txs = append(txs, g)

	for i := 1; i < size; i++ {
		// never ask for more distinct parents than candidates exist
		numParents := min(1+rnd.Intn(2), len(txs))
		parents := make([]ledger.TransactionID, 0, numParents)
		seen := make(map[ledger.TransactionID]struct{})
		for len(parents) < numParents {
			p := txs[rnd.Intn(len(txs))].ID()
			if _, ok := seen[p]; ok {
				continue
			}
			seen[p] = struct{}{}
			parents = append(parents, p)
		}
		txs = append(txs, makeTx(parents, string(rune('a'+i))))
	}
	return txs
}

// shuffleRespectingOrder permutes the list so that every parent still
// precedes its children
func shuffleRespectingOrder(rnd *rand.Rand, txs []*ledger.Transaction) []*ledger.Transaction {
	inserted := make(map[ledger.TransactionID]struct{})
	remaining := append(txs[:0:0], txs...)
	ret := make([]*ledger.Transaction, 0, len(txs))

	for len(remaining) > 0 {
		idx := rnd.Intn(len(remaining))
		tx := remaining[idx]
		ready := true
		for _, p := range tx.Parents {
			if _, ok := inserted[p]; !ok {
				ready = false
				break
			}
		}
		if !ready {
			continue
		}
		inserted[tx.ID()] = struct{}{}
		ret = append(ret, tx)
		remaining = append(remaining[:idx], remaining[idx+1:]...)
	}
	return ret
}

func TestOrderIndependence(t *testing.T) {
	const dagSize = 50

	rnd := rand.New(rand.NewSource(42))
	txs := buildRandomDAG(rnd, dagSize)

	runOrder := func(ordered []*ledger.Transaction) map[ledger.TransactionID]uint64 {
		env := newTestEnv()
		engine := New(env, pos.NewRegistry(), WithThresholdUnits(1000))
		env.DAG.OnInsert(engine.OnInsert)

		for _, tx := range ordered {
			mustInsert(t, env.DAG, tx)
		}
		ret := make(map[ledger.TransactionID]uint64)
		for _, tx := range txs {
			ret[tx.ID()] = weightOf(t, env.DAG, tx.ID())
		}
		return ret
	}

	reference := runOrder(txs)
	for round := 0; round < 5; round++ {
		shuffled := shuffleRespectingOrder(rnd, txs)
		require.EqualValues(t, reference, runOrder(shuffled), "round %d", round)
	}
}

func TestWeightMonotonicity(t *testing.T) {
	env := newTestEnv()
	engine := New(env, pos.NewRegistry(), WithThresholdUnits(1000))
	env.DAG.OnInsert(engine.OnInsert)

	g := ledger.GenesisTransaction(0)
	mustInsert(t, env.DAG, g)
	gid := g.ID()

	prev := weightOf(t, env.DAG, gid)
	tip := gid
	for i := 0; i < 20; i++ {
		tx := makeTx([]ledger.TransactionID{tip}, string(rune('a'+i)))
		mustInsert(t, env.DAG, tx)
		tip = tx.ID()

		w := weightOf(t, env.DAG, gid)
		require.GreaterOrEqual(t, w, prev)
		prev = w
	}
}

func TestDepthCapDeferral(t *testing.T) {
	const chainLen = 10

	env := newTestEnv()
	engine := New(env, pos.NewRegistry(), WithThresholdUnits(1000), WithMaxPropagationDepth(2))
	env.DAG.OnInsert(engine.OnInsert)
	engine.Start()
	defer env.Stop()

	g := ledger.GenesisTransaction(0)
	mustInsert(t, env.DAG, g)
	gid := g.ID()

	txs := make([]*ledger.Transaction, chainLen)
	tip := gid
	for i := range txs {
		txs[i] = makeTx([]ledger.TransactionID{tip}, string(rune('a'+i)))
		mustInsert(t, env.DAG, txs[i])
		tip = txs[i].ID()
	}

	// every insertion reaches at most 2 generations back, the rest is
	// deferred. The re-check daemon must eventually deliver the truncated
	// remainder so that genesis converges to the untruncated total
	expected := uint64(ledger.WeightUnit)
	contribution := uint64(ledger.WeightUnit)
	for i := 0; i < chainLen; i++ {
		contribution = contribution * ledger.DecayNumerator / ledger.DecayDenominator
		expected += contribution
	}
	require.Eventually(t, func() bool {
		v, err := env.DAG.GetVertex(&gid)
		require.NoError(t, err)
		return v.Weight() == expected
	}, 5*time.Second, 20*time.Millisecond)
}

func TestAttestedContribution(t *testing.T) {
	env := newTestEnv()
	registry := pos.NewRegistry()

	pubKey, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	validatorID := pos.ValidatorIDFromPubKey(pubKey)
	require.NoError(t, registry.Register(validatorID, pubKey, 1000))

	engine := New(env, registry, WithThresholdUnits(1000))
	env.DAG.OnInsert(engine.OnInsert)

	g := ledger.GenesisTransaction(0)
	mustInsert(t, env.DAG, g)

	attested := makeTx([]ledger.TransactionID{g.ID()}, "attested")
	engine.RegisterAttestation(attested.ID(), validatorID)
	mustInsert(t, env.DAG, attested)

	// a single validator holds the whole stake: share 1, contribution 2 units
	require.EqualValues(t, 2*ledger.WeightUnit, weightOf(t, env.DAG, attested.ID()))
	// the parent receives the decayed attested contribution
	require.EqualValues(t, ledger.WeightUnit+2*ledger.WeightUnit*9/10, weightOf(t, env.DAG, g.ID()))
}
