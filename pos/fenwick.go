package pos

// fenwickTree is a binary indexed tree over validator slots. It keeps the
// running sum of effective stakes so that a stake-weighted lookup costs
// O(log n) instead of a linear rescan of the registry
type fenwickTree struct {
	sums []uint64 // 1-based
}

func newFenwickTree() *fenwickTree {
	return &fenwickTree{sums: make([]uint64, 1)}
}

func (f *fenwickTree) size() int {
	return len(f.sums) - 1
}

// appendSlot adds a new slot with the given value at the end of the tree.
// The new node must be seeded with the sum of its covered range
// (idx-lowbit(idx), idx], not just its own value
func (f *fenwickTree) appendSlot(value uint64) int {
	idx := len(f.sums)
	seed := value
	if lb := idx & (-idx); lb > 1 {
		seed += f.prefixSum(idx-2) - f.prefixSum(idx-lb-1)
	}
	f.sums = append(f.sums, seed)
	return idx - 1 // 0-based slot number
}

// add applies a delta to the 0-based slot. The delta is signed
func (f *fenwickTree) addDelta(slot int, delta int64) {
	if delta >= 0 {
		f.add(slot+1, uint64(delta))
		return
	}
	f.sub(slot+1, uint64(-delta))
}

func (f *fenwickTree) add(i int, value uint64) {
	for ; i < len(f.sums); i += i & (-i) {
		f.sums[i] += value
	}
}

func (f *fenwickTree) sub(i int, value uint64) {
	for ; i < len(f.sums); i += i & (-i) {
		f.sums[i] -= value
	}
}

// prefixSum sum of slots [0..slot], slot 0-based
func (f *fenwickTree) prefixSum(slot int) (ret uint64) {
	for i := slot + 1; i > 0; i -= i & (-i) {
		ret += f.sums[i]
	}
	return
}

func (f *fenwickTree) total() uint64 {
	return f.prefixSum(f.size() - 1)
}

// search returns the smallest 0-based slot with prefixSum(slot) > target.
// Standard BIT descend, O(log n)
func (f *fenwickTree) search(target uint64) int {
	idx := 0
	bitMask := 1
	for bitMask<<1 <= f.size() {
		bitMask <<= 1
	}
	for ; bitMask > 0; bitMask >>= 1 {
		next := idx + bitMask
		if next < len(f.sums) && f.sums[next] <= target {
			idx = next
			target -= f.sums[next]
		}
	}
	return idx // 0-based: idx is the count of full slots before the hit
}
