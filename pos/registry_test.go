package pos

import (
	"crypto/ed25519"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestValidator(t *testing.T) (ValidatorID, ed25519.PublicKey) {
	pubKey, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	return ValidatorIDFromPubKey(pubKey), pubKey
}

func TestRegister(t *testing.T) {
	r := NewRegistry()
	id, pubKey := newTestValidator(t)

	require.NoError(t, r.Register(id, pubKey, 1000))
	require.EqualValues(t, 1, r.NumValidators())
	require.EqualValues(t, 1000, r.TotalActiveStake())
	require.EqualValues(t, 1000, r.EffectiveStake(id))

	t.Run("duplicate", func(t *testing.T) {
		err := r.Register(id, pubKey, 500)
		require.ErrorIs(t, err, ErrValidatorAlreadyRegistered)
		require.EqualValues(t, 1000, r.TotalActiveStake())
	})
	t.Run("not found", func(t *testing.T) {
		unknown, _ := newTestValidator(t)
		_, found := r.Get(unknown)
		require.False(t, found)
		require.ErrorIs(t, r.UpdateStake(unknown, 1), ErrValidatorNotFound)
	})
}

func TestUpdateStake(t *testing.T) {
	r := NewRegistry()
	id, pubKey := newTestValidator(t)
	require.NoError(t, r.Register(id, pubKey, 1000))

	require.NoError(t, r.UpdateStake(id, 500))
	require.EqualValues(t, 1500, r.EffectiveStake(id))
	require.NoError(t, r.UpdateStake(id, -700))
	require.EqualValues(t, 800, r.EffectiveStake(id))
	require.EqualValues(t, 800, r.TotalActiveStake())

	t.Run("negative result rejected atomically", func(t *testing.T) {
		err := r.UpdateStake(id, -801)
		require.ErrorIs(t, err, ErrNegativeStakeResult)
		// stake unchanged after the rejected update
		require.EqualValues(t, 800, r.EffectiveStake(id))
		require.EqualValues(t, 800, r.TotalActiveStake())
	})
	t.Run("to zero", func(t *testing.T) {
		require.NoError(t, r.UpdateStake(id, -800))
		require.EqualValues(t, 0, r.EffectiveStake(id))
		_, _, err := r.SelectValidator([]byte("seed"))
		require.ErrorIs(t, err, ErrNoActiveValidators)
	})
}

func TestSlashing(t *testing.T) {
	r := NewRegistry()
	id1, pubKey1 := newTestValidator(t)
	id2, pubKey2 := newTestValidator(t)
	require.NoError(t, r.Register(id1, pubKey1, 700))
	require.NoError(t, r.Register(id2, pubKey2, 300))

	r.Slash(id1)
	require.EqualValues(t, 0, r.EffectiveStake(id1))
	require.EqualValues(t, 300, r.TotalActiveStake())

	// slashing is idempotent
	r.Slash(id1)
	require.EqualValues(t, 300, r.TotalActiveStake())

	// a slashed validator is never selected
	seed := make([]byte, 8)
	for i := 0; i < 1000; i++ {
		binary.BigEndian.PutUint64(seed, uint64(i))
		selected, _, err := r.SelectValidator(seed)
		require.NoError(t, err)
		require.EqualValues(t, id2, selected)
	}

	t.Run("slash then update", func(t *testing.T) {
		// bookkeeping still works, the effective weight stays zero
		require.NoError(t, r.UpdateStake(id1, 100))
		require.EqualValues(t, 0, r.EffectiveStake(id1))
		require.EqualValues(t, 300, r.TotalActiveStake())
	})
	t.Run("retire the rest", func(t *testing.T) {
		r.Retire(id2)
		require.EqualValues(t, 0, r.TotalActiveStake())
		_, _, err := r.SelectValidator(seed)
		require.ErrorIs(t, err, ErrNoActiveValidators)
	})
}

func TestStakeProportionalSelection(t *testing.T) {
	const (
		rounds    = 10_000
		tolerance = 500 // 5% absolute
	)

	r := NewRegistry()
	id1, pubKey1 := newTestValidator(t)
	id2, pubKey2 := newTestValidator(t)
	require.NoError(t, r.Register(id1, pubKey1, 700))
	require.NoError(t, r.Register(id2, pubKey2, 300))

	counts := make(map[ValidatorID]int)
	seed := make([]byte, 8)
	for i := 0; i < rounds; i++ {
		binary.BigEndian.PutUint64(seed, uint64(i))
		selected, _, err := r.SelectValidator(seed)
		require.NoError(t, err)
		counts[selected]++
	}

	t.Logf("selection counts: %d / %d", counts[id1], counts[id2])
	require.InDelta(t, rounds*7/10, counts[id1], tolerance)
	require.InDelta(t, rounds*3/10, counts[id2], tolerance)
}

func TestVRFSelection(t *testing.T) {
	pubKey, privKey, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	r := NewRegistry().WithVRFKeyPair(pubKey, privKey)
	id := ValidatorIDFromPubKey(pubKey)
	require.NoError(t, r.Register(id, pubKey, 1000))

	seed := []byte("snapshot hash || slot")
	selected, proof, err := r.SelectValidator(seed)
	require.NoError(t, err)
	require.EqualValues(t, id, selected)
	require.NotEmpty(t, proof)

	ok, err := VerifySelection(pubKey, seed, proof)
	require.NoError(t, err)
	require.True(t, ok)

	// proof does not verify against a different seed
	ok, _ = VerifySelection(pubKey, []byte("other seed"), proof)
	require.False(t, ok)
}

func TestRegistryCodec(t *testing.T) {
	r := NewRegistry()
	id1, pubKey1 := newTestValidator(t)
	id2, pubKey2 := newTestValidator(t)
	id3, pubKey3 := newTestValidator(t)
	require.NoError(t, r.Register(id1, pubKey1, 700))
	require.NoError(t, r.Register(id2, pubKey2, 300))
	require.NoError(t, r.Register(id3, pubKey3, 500))
	r.Slash(id3)

	back, err := RegistryFromBytes(r.Bytes())
	require.NoError(t, err)
	require.EqualValues(t, r.NumValidators(), back.NumValidators())
	require.EqualValues(t, r.TotalActiveStake(), back.TotalActiveStake())
	require.EqualValues(t, r.StateDigest(), back.StateDigest())
	require.EqualValues(t, 0, back.EffectiveStake(id3))

	_, err = RegistryFromBytes([]byte("garbage"))
	require.Error(t, err)
}
