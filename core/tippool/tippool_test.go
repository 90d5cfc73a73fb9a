package tippool

import (
	"math/rand"
	"testing"
	"time"

	"github.com/axonledger/axon/core/dag"
	"github.com/axonledger/axon/global"
	"github.com/axonledger/axon/ledger"
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

// buildFanOut deterministic DAG: genesis plus numTips children of it
func buildFanOut(t *testing.T, d *dag.DAG, numTips int) []ledger.TransactionID {
	g := ledger.GenesisTransaction(0)
	_, err := d.Insert(g)
	require.NoError(t, err)

	ret := make([]ledger.TransactionID, 0, numTips)
	for i := 0; i < numTips; i++ {
		tx := ledger.NewTransaction(0, []ledger.TransactionID{g.ID()}, []byte{byte(i)}, int64(1000+i)).SetValidated()
		_, err = d.Insert(tx)
		require.NoError(t, err)
		ret = append(ret, tx.ID())
	}
	return ret
}

func TestSelectParents(t *testing.T) {
	t.Run("empty DAG", func(t *testing.T) {
		env := newTestEnv()
		tp := New(env)
		require.Nil(t, tp.SelectParents(2))
	})
	t.Run("fewer tips than requested", func(t *testing.T) {
		env := newTestEnv()
		tips := buildFanOut(t, env.DAG, 2)
		tp := New(env)

		selected := tp.SelectParents(5)
		require.EqualValues(t, 2, len(selected))
		require.ElementsMatch(t, tips, selected)
	})
	t.Run("distinct", func(t *testing.T) {
		env := newTestEnv()
		buildFanOut(t, env.DAG, 10)
		tp := New(env, WithRandomSource(rand.NewSource(1)))

		selected := tp.SelectParents(3)
		require.EqualValues(t, 3, len(selected))
		seen := make(map[ledger.TransactionID]struct{})
		for _, txid := range selected {
			seen[txid] = struct{}{}
		}
		require.EqualValues(t, 3, len(seen))
	})
}

func TestSelectParentsDeterminism(t *testing.T) {
	const seed = 42

	run := func() []ledger.TransactionID {
		env := newTestEnv()
		buildFanOut(t, env.DAG, 20)
		tp := New(env,
			WithRandomSource(rand.NewSource(seed)),
			WithRecencyHalfLife(24*time.Hour))
		return tp.SelectParents(4)
	}

	first := run()
	for i := 0; i < 3; i++ {
		require.EqualValues(t, first, run())
	}
}

func TestHeavyTipBias(t *testing.T) {
	const draws = 100

	env := newTestEnv()
	tips := buildFanOut(t, env.DAG, 5)
	heavy := tips[2]
	v, err := env.DAG.GetVertex(&heavy)
	require.NoError(t, err)
	v.AddWeight(20 * ledger.WeightUnit)

	tp := New(env,
		WithRandomSource(rand.NewSource(1)),
		WithRecencyHalfLife(24*time.Hour))

	heavyCount := 0
	for i := 0; i < draws; i++ {
		selected := tp.SelectParents(1)
		require.EqualValues(t, 1, len(selected))
		if selected[0] == heavy {
			heavyCount++
		}
	}
	// exp(alpha*20) dwarfs exp(0) even with the reference-count penalty
	require.Greater(t, heavyCount, draws*8/10)
}
