package pos

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

// naive reference model for the binary indexed tree
type naiveStakes struct {
	values []uint64
}

func (n *naiveStakes) appendSlot(value uint64) {
	n.values = append(n.values, value)
}

func (n *naiveStakes) prefixSum(slot int) (ret uint64) {
	for i := 0; i <= slot; i++ {
		ret += n.values[i]
	}
	return
}

func (n *naiveStakes) search(target uint64) int {
	var sum uint64
	for i, v := range n.values {
		sum += v
		if sum > target {
			return i
		}
	}
	return len(n.values)
}

func TestFenwickAgainstNaive(t *testing.T) {
	const (
		numSlots = 200
		numOps   = 2000
	)
	rnd := rand.New(rand.NewSource(1))

	tree := newFenwickTree()
	model := &naiveStakes{}
	for i := 0; i < numSlots; i++ {
		value := uint64(rnd.Intn(1000))
		slot := tree.appendSlot(value)
		require.EqualValues(t, i, slot)
		model.appendSlot(value)
	}

	for op := 0; op < numOps; op++ {
		slot := rnd.Intn(numSlots)
		delta := int64(rnd.Intn(200)) - 100
		if delta < 0 && uint64(-delta) > model.values[slot] {
			delta = -int64(model.values[slot])
		}
		tree.addDelta(slot, delta)
		model.values[slot] = uint64(int64(model.values[slot]) + delta)

		checkSlot := rnd.Intn(numSlots)
		require.EqualValues(t, model.prefixSum(checkSlot), tree.prefixSum(checkSlot))
	}

	require.EqualValues(t, model.prefixSum(numSlots-1), tree.total())
	total := tree.total()
	require.Greater(t, total, uint64(0))
	for i := 0; i < 1000; i++ {
		target := uint64(rnd.Int63n(int64(total)))
		require.EqualValues(t, model.search(target), tree.search(target))
	}
}

func TestFenwickAppendSeedsRange(t *testing.T) {
	tree := newFenwickTree()
	tree.appendSlot(70)
	tree.appendSlot(30)

	// the second node covers both slots, not just its own value
	require.EqualValues(t, 70, tree.prefixSum(0))
	require.EqualValues(t, 100, tree.prefixSum(1))
	require.EqualValues(t, 100, tree.total())
	require.EqualValues(t, 0, tree.search(0))
	require.EqualValues(t, 0, tree.search(69))
	require.EqualValues(t, 1, tree.search(70))

	// prefix sums remain consistent after every single append
	model := &naiveStakes{values: []uint64{70, 30}}
	for i := 2; i < 50; i++ {
		value := uint64(i * 7 % 13)
		tree.appendSlot(value)
		model.appendSlot(value)
		for slot := 0; slot <= i; slot++ {
			require.EqualValues(t, model.prefixSum(slot), tree.prefixSum(slot))
		}
	}
}

func TestFenwickZeroWeightSlots(t *testing.T) {
	tree := newFenwickTree()
	tree.appendSlot(0)
	tree.appendSlot(100)
	tree.appendSlot(0)
	tree.appendSlot(50)

	// a zeroed slot can never win the descend
	for target := uint64(0); target < tree.total(); target += 10 {
		slot := tree.search(target)
		require.True(t, slot == 1 || slot == 3)
	}
	require.EqualValues(t, 1, tree.search(0))
	require.EqualValues(t, 3, tree.search(100))
	require.EqualValues(t, 3, tree.search(149))
}
