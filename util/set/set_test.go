package set

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSet(t *testing.T) {
	s := New(1, 2, 3)
	require.EqualValues(t, 3, len(s))
	require.True(t, s.Contains(2))
	require.False(t, s.Contains(5))

	s.Insert(5, 6)
	require.True(t, s.Contains(5))
	s.Remove(5)
	require.False(t, s.Contains(5))

	clone := s.Clone()
	clone.Insert(100)
	require.True(t, clone.Contains(100))
	require.False(t, s.Contains(100))

	u := Union(New("a"), New("b"), New("a", "c"))
	require.EqualValues(t, 3, len(u))

	ordered := New(3, 1, 2).Ordered(func(e1, e2 int) bool { return e1 < e2 })
	require.EqualValues(t, []int{1, 2, 3}, ordered)
}

func TestSetNil(t *testing.T) {
	var s Set[int]
	require.False(t, s.Contains(1))
	require.EqualValues(t, 0, len(s.AsList()))
	s.ForEach(func(_ int) bool {
		t.Fatal("must not be called")
		return true
	})
}
