package snapshot

import (
	"github.com/axonledger/axon/util"
	"github.com/dgraph-io/badger/v4"
)

// OpenDB opens or creates the badger database holding the checkpoint chain
func OpenDB(dir string) (*badger.DB, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil
	return badger.Open(opts)
}

func MustOpenDB(dir string) *badger.DB {
	db, err := OpenDB(dir)
	util.AssertNoError(err, "can't open snapshot database", dir)
	return db
}
