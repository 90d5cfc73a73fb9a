package snapshot

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/axonledger/axon/ledger"
	"github.com/dgraph-io/badger/v4"
)

var (
	ErrSnapshotNotFound    = errors.New("snapshot not found")
	ErrTransactionNotFound = errors.New("transaction not found in the snapshot store")

	keyLatestSeq       = []byte("latest")
	snapshotKeyPrefix  = []byte("s/")
	txPayloadKeyPrefix = []byte("t/")
	txSeqKeyPrefix     = []byte("c/")
)

type (
	// Store is the durable side of the checkpoint chain: hash-linked
	// snapshot records plus the payloads of covered transactions, so that
	// a pruned id still resolves to the same transaction bytes
	Store struct {
		db *badger.DB
	}
)

func NewStore(db *badger.DB) *Store {
	return &Store{db: db}
}

func snapshotKey(seqNo uint64) []byte {
	ret := make([]byte, len(snapshotKeyPrefix)+8)
	copy(ret, snapshotKeyPrefix)
	binary.BigEndian.PutUint64(ret[len(snapshotKeyPrefix):], seqNo)
	return ret
}

func txPayloadKey(txid *ledger.TransactionID) []byte {
	ret := make([]byte, len(txPayloadKeyPrefix)+ledger.TransactionIDLength)
	copy(ret, txPayloadKeyPrefix)
	copy(ret[len(txPayloadKeyPrefix):], txid[:])
	return ret
}

func txSeqKey(txid *ledger.TransactionID) []byte {
	ret := make([]byte, len(txSeqKeyPrefix)+ledger.TransactionIDLength)
	copy(ret, txSeqKeyPrefix)
	copy(ret[len(txSeqKeyPrefix):], txid[:])
	return ret
}

// SaveSnapshot persists the snapshot record together with the covered
// transaction bytes in one atomic batch
func (s *Store) SaveSnapshot(snap *Snapshot, covered []*ledger.Transaction) error {
	wb := s.db.NewWriteBatch()
	defer wb.Cancel()

	if err := wb.Set(snapshotKey(snap.SeqNo), snap.Bytes()); err != nil {
		return fmt.Errorf("SaveSnapshot: %w", err)
	}
	var seqBin [8]byte
	binary.BigEndian.PutUint64(seqBin[:], snap.SeqNo)
	if err := wb.Set(keyLatestSeq, seqBin[:]); err != nil {
		return fmt.Errorf("SaveSnapshot: %w", err)
	}
	for _, tx := range covered {
		txid := tx.ID()
		if err := wb.Set(txPayloadKey(&txid), tx.Bytes()); err != nil {
			return fmt.Errorf("SaveSnapshot: %w", err)
		}
		if err := wb.Set(txSeqKey(&txid), seqBin[:]); err != nil {
			return fmt.Errorf("SaveSnapshot: %w", err)
		}
	}
	if err := wb.Flush(); err != nil {
		return fmt.Errorf("SaveSnapshot: %w", err)
	}
	return nil
}

func (s *Store) SnapshotBySeq(seqNo uint64) (*Snapshot, error) {
	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(snapshotKey(seqNo))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: seq %d", ErrSnapshotNotFound, seqNo)
	}
	if err != nil {
		return nil, fmt.Errorf("SnapshotBySeq: %w", err)
	}
	return SnapshotFromBytes(data)
}

// LatestSnapshot nil without error when the chain is empty
func (s *Store) LatestSnapshot() (*Snapshot, error) {
	var seqNo uint64
	var found bool
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(keyLatestSeq)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return item.Value(func(val []byte) error {
			seqNo = binary.BigEndian.Uint64(val)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("LatestSnapshot: %w", err)
	}
	if !found {
		return nil, nil
	}
	return s.SnapshotBySeq(seqNo)
}

// ResolveTransaction reads of pruned ids fall back here and return the same
// transaction bytes as before pruning
func (s *Store) ResolveTransaction(txid *ledger.TransactionID) (*ledger.Transaction, error) {
	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(txPayloadKey(txid))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrTransactionNotFound, txid.StringShort())
	}
	if err != nil {
		return nil, fmt.Errorf("ResolveTransaction: %w", err)
	}
	return ledger.TransactionFromBytes(data)
}

// CoveringSnapshotSeq sequence number of the snapshot which included the
// transaction
func (s *Store) CoveringSnapshotSeq(txid *ledger.TransactionID) (uint64, error) {
	var seqNo uint64
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(txSeqKey(txid))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			seqNo = binary.BigEndian.Uint64(val)
			return nil
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, fmt.Errorf("%w: %s", ErrTransactionNotFound, txid.StringShort())
	}
	if err != nil {
		return 0, fmt.Errorf("CoveringSnapshotSeq: %w", err)
	}
	return seqNo, nil
}

func (s *Store) HasTransaction(txid *ledger.TransactionID) bool {
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(txPayloadKey(txid))
		return err
	})
	return err == nil
}

// VerifyChain walks the snapshot chain from genesis and checks every hash link
func (s *Store) VerifyChain() error {
	latest, err := s.LatestSnapshot()
	if err != nil {
		return err
	}
	if latest == nil {
		return nil
	}
	var prevHash [32]byte
	for seqNo := uint64(0); seqNo <= latest.SeqNo; seqNo++ {
		snap, err := s.SnapshotBySeq(seqNo)
		if err != nil {
			return fmt.Errorf("VerifyChain: %w", err)
		}
		if snap.PrevHash != prevHash {
			return fmt.Errorf("VerifyChain: broken hash link at seq %d", seqNo)
		}
		prevHash = snap.Hash()
	}
	return nil
}
