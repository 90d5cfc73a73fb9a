package pos

import (
	"bytes"
	"crypto/ed25519"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/axonledger/axon/ledger"
	"github.com/axonledger/axon/util"
	"github.com/axonledger/axon/util/lines"
	"github.com/yoseplee/vrf"
)

var (
	ErrValidatorAlreadyRegistered = errors.New("validator already registered")
	ErrValidatorNotFound          = errors.New("validator not found")
	ErrNegativeStakeResult        = errors.New("stake update would result in negative stake")
	ErrNoActiveValidators         = errors.New("no active validators in the registry")
)

type (
	ValidatorID [32]byte

	ValidatorStatus byte

	Validator struct {
		ID     ValidatorID
		PubKey ed25519.PublicKey
		Stake  uint64
		Status ValidatorStatus
	}

	// Registry is process-wide shared state, passed explicitly to the
	// components that need it. Mutations are serialized by the registry
	// mutex: per-validator linearizability comes for free and mutations
	// are cheap O(log n) Fenwick updates
	Registry struct {
		mutex      sync.RWMutex
		validators map[ValidatorID]*record
		// slot assignment is append-only; de-activated validators keep
		// their slot with zero effective stake
		slots            []ValidatorID
		stakes           *fenwickTree
		totalActiveStake uint64

		// keypair used to produce selection proofs; selection falls back
		// to a plain hash of the seed when the node runs without a key
		pubKey  ed25519.PublicKey
		privKey ed25519.PrivateKey
	}

	record struct {
		Validator
		slot int
	}
)

const (
	StatusActive = ValidatorStatus(iota)
	StatusSlashed
	StatusRetired
)

func (s ValidatorStatus) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusSlashed:
		return "slashed"
	case StatusRetired:
		return "retired"
	}
	return fmt.Sprintf("status(%d)", byte(s))
}

func (id ValidatorID) String() string {
	return hex.EncodeToString(id[:])
}

func (id ValidatorID) StringShort() string {
	return hex.EncodeToString(id[:4]) + ".."
}

func ValidatorIDFromPubKey(pubKey ed25519.PublicKey) (ret ValidatorID) {
	ret = ledger.HashData(pubKey)
	return
}

func NewRegistry() *Registry {
	return &Registry{
		validators: make(map[ValidatorID]*record),
		slots:      make([]ValidatorID, 0),
		stakes:     newFenwickTree(),
	}
}

// WithVRFKeyPair equips the registry with the local node's keypair for
// verifiable selection proofs
func (r *Registry) WithVRFKeyPair(pubKey ed25519.PublicKey, privKey ed25519.PrivateKey) *Registry {
	r.pubKey = pubKey
	r.privKey = privKey
	return r
}

func (r *Registry) Register(id ValidatorID, pubKey ed25519.PublicKey, stake uint64) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, already := r.validators[id]; already {
		return fmt.Errorf("%w: %s", ErrValidatorAlreadyRegistered, id.StringShort())
	}
	slot := r.stakes.appendSlot(stake)
	util.Assertf(slot == len(r.slots), "slot == len(r.slots)")
	r.slots = append(r.slots, id)
	r.validators[id] = &record{
		Validator: Validator{
			ID:     id,
			PubKey: pubKey,
			Stake:  stake,
			Status: StatusActive,
		},
		slot: slot,
	}
	r.totalActiveStake += stake
	return nil
}

// UpdateStake applies a staking/unstaking delta. Rejected atomically,
// without side effects, if the resulting stake would be negative
func (r *Registry) UpdateStake(id ValidatorID, delta int64) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	rec, found := r.validators[id]
	if !found {
		return fmt.Errorf("%w: %s", ErrValidatorNotFound, id.StringShort())
	}
	if delta < 0 && uint64(-delta) > rec.Stake {
		return fmt.Errorf("%w: %s stake %d, delta %d", ErrNegativeStakeResult, id.StringShort(), rec.Stake, delta)
	}
	newStake := uint64(int64(rec.Stake) + delta)
	if rec.Status == StatusActive {
		r.stakes.addDelta(rec.slot, int64(newStake)-int64(rec.Stake))
		r.totalActiveStake = r.totalActiveStake - rec.Stake + newStake
	}
	rec.Stake = newStake
	return nil
}

// Slash idempotent. Zeroes the effective weight for future selections;
// historical weight in past snapshots is untouched
func (r *Registry) Slash(id ValidatorID) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	rec, found := r.validators[id]
	if !found || rec.Status == StatusSlashed {
		return
	}
	r.deactivateNoLock(rec)
	rec.Status = StatusSlashed
}

// Retire voluntary exit, same effective weight consequences as slashing
func (r *Registry) Retire(id ValidatorID) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	rec, found := r.validators[id]
	if !found || rec.Status != StatusActive {
		return
	}
	r.deactivateNoLock(rec)
	rec.Status = StatusRetired
}

func (r *Registry) deactivateNoLock(rec *record) {
	if rec.Status == StatusActive {
		r.stakes.addDelta(rec.slot, -int64(rec.Stake))
		r.totalActiveStake -= rec.Stake
	}
}

func (r *Registry) Get(id ValidatorID) (Validator, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	rec, found := r.validators[id]
	if !found {
		return Validator{}, false
	}
	return rec.Validator, true
}

// EffectiveStake stake counted for selection and confirmation weight:
// zero unless the validator is active
func (r *Registry) EffectiveStake(id ValidatorID) uint64 {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	rec, found := r.validators[id]
	if !found || rec.Status != StatusActive {
		return 0
	}
	return rec.Stake
}

func (r *Registry) TotalActiveStake() uint64 {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	return r.totalActiveStake
}

func (r *Registry) NumValidators() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	return len(r.validators)
}

// SelectValidator stake-weighted selection seeded by the VRF output over
// the seed (typically prior snapshot hash plus slot number). Probability of
// selection is proportional to the active stake share. Returns the VRF
// proof so that peers can verify the selection with VerifySelection
func (r *Registry) SelectValidator(seed []byte) (ValidatorID, []byte, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	if r.totalActiveStake == 0 {
		return ValidatorID{}, nil, ErrNoActiveValidators
	}

	var randomness [32]byte
	var proof []byte
	if r.privKey != nil {
		pi, hash, err := vrf.Prove(r.pubKey, r.privKey, seed)
		if err != nil {
			return ValidatorID{}, nil, fmt.Errorf("SelectValidator: %w", err)
		}
		proof = pi
		copy(randomness[:], hash)
	} else {
		randomness = ledger.HashData(seed)
	}

	target := binary.BigEndian.Uint64(randomness[:8]) % r.totalActiveStake
	slot := r.stakes.search(target)
	util.Assertf(slot < len(r.slots), "slot < len(r.slots)")
	return r.slots[slot], proof, nil
}

// VerifySelection checks a selection proof produced by another node
func VerifySelection(pubKey ed25519.PublicKey, seed, proof []byte) (bool, error) {
	return vrf.Verify(pubKey, proof, seed)
}

// Records stable order, for snapshots and digests
func (r *Registry) Records() []Validator {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	ret := make([]Validator, 0, len(r.validators))
	for _, rec := range r.validators {
		ret = append(ret, rec.Validator)
	}
	sort.Slice(ret, func(i, j int) bool {
		return bytes.Compare(ret[i].ID[:], ret[j].ID[:]) < 0
	})
	return ret
}

// Bytes canonical serialization of the registry state, deterministic
func (r *Registry) Bytes() []byte {
	records := r.Records()
	var buf bytes.Buffer
	var num [8]byte
	binary.BigEndian.PutUint32(num[:4], uint32(len(records)))
	buf.Write(num[:4])
	for i := range records {
		buf.Write(records[i].ID[:])
		buf.WriteByte(byte(len(records[i].PubKey)))
		buf.Write(records[i].PubKey)
		binary.BigEndian.PutUint64(num[:], records[i].Stake)
		buf.Write(num[:])
		buf.WriteByte(byte(records[i].Status))
	}
	return buf.Bytes()
}

// StateDigest commitment to the registry state included in snapshots
func (r *Registry) StateDigest() [32]byte {
	return ledger.HashData(r.Bytes())
}

// RegistryFromBytes rebuilds a registry from its canonical serialization
func RegistryFromBytes(data []byte) (*Registry, error) {
	rdr := bytes.NewReader(data)
	var numRecords uint32
	if err := binary.Read(rdr, binary.BigEndian, &numRecords); err != nil {
		return nil, fmt.Errorf("RegistryFromBytes: %w", err)
	}
	ret := NewRegistry()
	for i := uint32(0); i < numRecords; i++ {
		var id ValidatorID
		if _, err := io.ReadFull(rdr, id[:]); err != nil {
			return nil, fmt.Errorf("RegistryFromBytes: %w", err)
		}
		lenPubKey, err := rdr.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("RegistryFromBytes: %w", err)
		}
		pubKey := make([]byte, lenPubKey)
		if _, err = io.ReadFull(rdr, pubKey); err != nil {
			return nil, fmt.Errorf("RegistryFromBytes: %w", err)
		}
		var stake uint64
		if err = binary.Read(rdr, binary.BigEndian, &stake); err != nil {
			return nil, fmt.Errorf("RegistryFromBytes: %w", err)
		}
		status, err := rdr.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("RegistryFromBytes: %w", err)
		}
		if err = ret.Register(id, pubKey, stake); err != nil {
			return nil, fmt.Errorf("RegistryFromBytes: %w", err)
		}
		switch ValidatorStatus(status) {
		case StatusSlashed:
			ret.Slash(id)
		case StatusRetired:
			ret.Retire(id)
		}
	}
	return ret, nil
}

func (r *Registry) Lines(prefix ...string) *lines.Lines {
	ret := lines.New(prefix...)
	for _, v := range r.Records() {
		ret.Add("%s %s stake: %s", v.ID.StringShort(), v.Status.String(), util.Th(v.Stake))
	}
	return ret
}
