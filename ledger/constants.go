package ledger

import "time"

const (
	TransactionVersion = 1

	// MaxParents upper bound of the parent set size
	MaxParents = 8
	// DefaultNumParents parents selected for a new transaction
	DefaultNumParents = 2

	// WeightUnit fixed-point scale of confirmation weight. Decayed
	// contributions remain integral, so concurrent propagation can use
	// plain atomic adds
	WeightUnit = uint64(1_000_000)

	// DefaultConfirmationThreshold cumulative weight (in units) at which a
	// transaction becomes confirmed
	DefaultConfirmationThreshold = uint64(100)

	// Weight contribution decays by DecayNumerator/DecayDenominator per DAG
	// generation while propagating towards ancestors
	DecayNumerator   = 9
	DecayDenominator = 10

	// DefaultMaxPropagationDepth bounds backward weight propagation per insertion.
	// Deeper ancestors are reached by the deferred re-check pass
	DefaultMaxPropagationDepth = 64

	// DefaultTipSelectionAlpha exponent coefficient in tip weighting
	DefaultTipSelectionAlpha = 0.5

	// MaxTimestampDrift transactions timestamped too far in the future are rejected
	MaxTimestampDrift = 2 * time.Hour

	DefaultSnapshotInterval        = 10 * time.Second
	DefaultMinConfirmedForSnapshot = 1
)
