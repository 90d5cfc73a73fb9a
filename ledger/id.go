package ledger

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

const (
	TransactionIDLength = 32
	// TransactionIDShardPrefixLength first bytes of the id carry the shard key.
	// Single-shard deployments use shard 0; the prefix keeps the id scheme
	// stable when the store is partitioned later
	TransactionIDShardPrefixLength = 1
)

type (
	// TransactionID is the content-addressed identity of a transaction:
	// shard key byte followed by the blake2b-256 digest suffix of the
	// canonical transaction bytes
	TransactionID [TransactionIDLength]byte

	ShardID byte
)

func HashData(data []byte) [32]byte {
	return blake2b.Sum256(data)
}

// MakeTransactionID hashes canonical transaction bytes and stamps the shard prefix
func MakeTransactionID(shard ShardID, canonicalBytes []byte) (ret TransactionID) {
	h := HashData(canonicalBytes)
	copy(ret[:], h[:])
	ret[0] = byte(shard)
	return
}

func (txid TransactionID) ShardID() ShardID {
	return ShardID(txid[0])
}

func (txid TransactionID) Bytes() []byte {
	return txid[:]
}

func (txid TransactionID) String() string {
	return "[" + hex.EncodeToString(txid[:]) + "]"
}

func (txid TransactionID) StringHex() string {
	return hex.EncodeToString(txid[:])
}

func (txid TransactionID) StringShort() string {
	return "[" + hex.EncodeToString(txid[:4]) + "..]"
}

func TransactionIDFromHexString(str string) (ret TransactionID, err error) {
	data, err := hex.DecodeString(str)
	if err != nil {
		return
	}
	return TransactionIDFromBytes(data)
}

func TransactionIDFromBytes(data []byte) (ret TransactionID, err error) {
	if len(data) != TransactionIDLength {
		err = fmt.Errorf("TransactionIDFromBytes: wrong data length %d", len(data))
		return
	}
	copy(ret[:], data)
	return
}

func LessTxID(txid1, txid2 TransactionID) bool {
	return bytes.Compare(txid1[:], txid2[:]) < 0
}

// RandomTransactionID for testing
func RandomTransactionID(shard ...ShardID) (ret TransactionID) {
	_, _ = rand.Read(ret[:])
	if len(shard) > 0 {
		ret[0] = byte(shard[0])
	} else {
		ret[0] = 0
	}
	return
}
