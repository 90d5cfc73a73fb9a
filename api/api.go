package api

const (
	PrefixAPIV1 = "/api/v1"

	PathGetNodeInfo       = PrefixAPIV1 + "/node_info"
	PathGetStats          = PrefixAPIV1 + "/stats"
	PathGetTips           = PrefixAPIV1 + "/tips"
	PathGetValidators     = PrefixAPIV1 + "/validators"
	PathQueryTxStatus     = PrefixAPIV1 + "/query_tx_status"
	PathGetTransaction    = PrefixAPIV1 + "/get_transaction"
	PathSubmitTransaction = PrefixAPIV1 + "/submit_tx"
)

type (
	Error struct {
		// empty string when no error
		Error string `json:"error,omitempty"`
	}

	NodeInfo struct {
		Error
		Name    string `json:"name"`
		Version string `json:"version"`
		Shard   byte   `json:"shard"`
		UpTime  string `json:"uptime"`
	}

	// Stats is returned by 'stats'
	Stats struct {
		Error
		NumVertices        int     `json:"num_vertices"`
		NumTips            int     `json:"num_tips"`
		NumPending         int     `json:"num_pending"`
		NumConfirmed       int     `json:"num_confirmed"`
		NumSnapshotted     int     `json:"num_snapshotted"`
		MempoolSize        int     `json:"mempool_size"`
		MeanConfirmDepth   float64 `json:"mean_confirm_depth"`
		LatestSnapshotSeq  uint64  `json:"latest_snapshot_seq"`
		LatestSnapshotHash string  `json:"latest_snapshot_hash,omitempty"`
		TotalActiveStake   uint64  `json:"total_active_stake"`
	}

	// TipList is returned by 'tips'
	TipList struct {
		Error
		// hex-encoded transaction IDs, newest first
		Tips []string `json:"tips"`
	}

	ValidatorInfo struct {
		ID     string `json:"id"`
		PubKey string `json:"pub_key"`
		Stake  uint64 `json:"stake"`
		Status string `json:"status"`
	}

	ValidatorList struct {
		Error
		Validators []ValidatorInfo `json:"validators"`
	}

	// TxStatus is returned by 'query_tx_status'
	TxStatus struct {
		Error
		TxID        string `json:"txid"`
		Found       bool   `json:"found"`
		Status      string `json:"status,omitempty"`
		WeightUnits uint64 `json:"weight_units,omitempty"`
		NumChildren int    `json:"num_children,omitempty"`
		// set when the transaction was already frozen into a checkpoint
		SnapshotSeq *uint64 `json:"snapshot_seq,omitempty"`
	}

	// TransactionData is returned by 'get_transaction'
	TransactionData struct {
		Error
		// hex-encoded canonical transaction bytes
		TxBytes string `json:"tx_bytes,omitempty"`
	}

	// SubmitResult is returned by 'submit_tx'
	SubmitResult struct {
		Error
		TxID string `json:"txid,omitempty"`
	}
)
