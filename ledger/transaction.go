package ledger

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"
)

var (
	ErrTooManyParents    = errors.New("too many parents")
	ErrDuplicateParents  = errors.New("duplicate parent reference")
	ErrTimestampInFuture = errors.New("timestamp too far in the future")
	ErrWrongVersion      = errors.New("unsupported transaction version")
)

type (
	// Transaction is the immutable record inserted into the DAG. The payload
	// is opaque: signatures, confidential amounts and fee metadata are
	// produced and verified outside of the consensus core
	Transaction struct {
		Version   byte
		Shard     ShardID
		Parents   []TransactionID
		Payload   []byte
		Timestamp int64 // unix nanoseconds

		// set by the external validity check before insertion, not serialized
		validated bool

		idOnce sync.Once
		id     TransactionID
	}
)

func NewTransaction(shard ShardID, parents []TransactionID, payload []byte, timestamp int64) *Transaction {
	return &Transaction{
		Version:   TransactionVersion,
		Shard:     shard,
		Parents:   parents,
		Payload:   payload,
		Timestamp: timestamp,
	}
}

// GenesisTransaction deterministic parentless origin of a shard
func GenesisTransaction(shard ShardID) *Transaction {
	ret := NewTransaction(shard, nil, []byte("axon genesis"), 0)
	ret.SetValidated()
	return ret
}

// ID computed once over the canonical bytes, then cached
func (tx *Transaction) ID() TransactionID {
	tx.idOnce.Do(func() {
		tx.id = MakeTransactionID(tx.Shard, tx.Bytes())
	})
	return tx.id
}

func (tx *Transaction) IsGenesis() bool {
	return len(tx.Parents) == 0
}

func (tx *Transaction) SetValidated() *Transaction {
	tx.validated = true
	return tx
}

func (tx *Transaction) IsValidated() bool {
	return tx.validated
}

func (tx *Transaction) Time() time.Time {
	return time.Unix(0, tx.Timestamp)
}

// ValidateStructure structural checks only. Parent existence is enforced by
// the DAG store at insertion
func (tx *Transaction) ValidateStructure() error {
	if tx.Version != TransactionVersion {
		return fmt.Errorf("%w: %d", ErrWrongVersion, tx.Version)
	}
	if len(tx.Parents) > MaxParents {
		return fmt.Errorf("%w: %d > %d", ErrTooManyParents, len(tx.Parents), MaxParents)
	}
	seen := make(map[TransactionID]struct{}, len(tx.Parents))
	for _, p := range tx.Parents {
		if _, ok := seen[p]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicateParents, p.StringShort())
		}
		seen[p] = struct{}{}
	}
	if tx.Timestamp > time.Now().Add(MaxTimestampDrift).UnixNano() {
		return ErrTimestampInFuture
	}
	return nil
}

// Bytes canonical serialization: version, shard, timestamp, parents in order,
// payload. This is the exact preimage of the transaction id
func (tx *Transaction) Bytes() []byte {
	var buf bytes.Buffer
	buf.WriteByte(tx.Version)
	buf.WriteByte(byte(tx.Shard))
	_ = binary.Write(&buf, binary.BigEndian, tx.Timestamp)
	buf.WriteByte(byte(len(tx.Parents)))
	for i := range tx.Parents {
		buf.Write(tx.Parents[i][:])
	}
	var lenPayload [4]byte
	binary.BigEndian.PutUint32(lenPayload[:], uint32(len(tx.Payload)))
	buf.Write(lenPayload[:])
	buf.Write(tx.Payload)
	return buf.Bytes()
}

func TransactionFromBytes(data []byte) (*Transaction, error) {
	rdr := bytes.NewReader(data)

	version, err := rdr.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("TransactionFromBytes: %w", err)
	}
	shard, err := rdr.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("TransactionFromBytes: %w", err)
	}
	var timestamp int64
	if err = binary.Read(rdr, binary.BigEndian, &timestamp); err != nil {
		return nil, fmt.Errorf("TransactionFromBytes: %w", err)
	}
	numParents, err := rdr.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("TransactionFromBytes: %w", err)
	}
	if int(numParents) > MaxParents {
		return nil, fmt.Errorf("TransactionFromBytes: %w: %d", ErrTooManyParents, numParents)
	}
	parents := make([]TransactionID, numParents)
	for i := range parents {
		if _, err = io.ReadFull(rdr, parents[i][:]); err != nil {
			return nil, fmt.Errorf("TransactionFromBytes: %w", err)
		}
	}
	var lenPayload uint32
	if err = binary.Read(rdr, binary.BigEndian, &lenPayload); err != nil {
		return nil, fmt.Errorf("TransactionFromBytes: %w", err)
	}
	if int(lenPayload) != rdr.Len() {
		return nil, fmt.Errorf("TransactionFromBytes: wrong payload length")
	}
	payload := make([]byte, lenPayload)
	_, _ = io.ReadFull(rdr, payload)

	if numParents == 0 {
		parents = nil
	}
	return &Transaction{
		Version:   version,
		Shard:     ShardID(shard),
		Parents:   parents,
		Payload:   payload,
		Timestamp: timestamp,
	}, nil
}

func (tx *Transaction) String() string {
	return fmt.Sprintf("tx %s: %d parent(s), %d bytes payload, ts %d",
		tx.ID().StringShort(), len(tx.Parents), len(tx.Payload), tx.Timestamp)
}
