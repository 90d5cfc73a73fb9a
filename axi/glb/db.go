package glb

import (
	"github.com/axonledger/axon/node"
	"github.com/axonledger/axon/snapshot"
	"github.com/dgraph-io/badger/v4"
	"github.com/spf13/viper"
)

var snapDB *badger.DB

// MustOpenSnapshotDB opens the node's snapshot database for admin access.
// The node must not be running
func MustOpenSnapshotDB() *snapshot.Store {
	dir := viper.GetString(node.ConfigKeySnapshotDir)
	if dir == "" {
		dir = node.DefaultSnapshotDir
	}
	snapDB = snapshot.MustOpenDB(dir)
	Verbosef("opened snapshot DB '%s'", dir)
	return snapshot.NewStore(snapDB)
}

func CloseSnapshotDB() {
	if snapDB != nil {
		_ = snapDB.Close()
		snapDB = nil
	}
}
