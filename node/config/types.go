package config

// // NOTE: ONLY PUT STRUCT DEFINITIONS IN THIS FILE

// FullNode is the gas estimation node config
type FullNode struct {
	API          API
	Logging      Logging
	Chain        Chain
	Mpool        Mpool
	GasEstimator GasEstimator
}

// API contains configs for API endpoint
type API struct {
	// Binding address for the JSON-RPC API, as host:port.
	ListenAddress string
	// Maximum time a single request may run before it is cancelled.
	Timeout Duration
}

// Logging is the logging system config
type Logging struct {
	// SubsystemLevels specify per-subsystem log levels
	SubsystemLevels map[string]string
}

type Chain struct {
	// Network selects the protocol constants, e.g. mainnet or calibrationnet.
	// Names starting with localnet- use the 2k devnet constants.
	Network string
	// Number of tipsets kept in memory by the chain store.
	TipSetCacheSize int
	// Epochs carrying expensive state migrations. Message simulation at these
	// epochs steps back to the parent tipset.
	ExpensiveForkEpochs []int64
}

type Mpool struct {
	// Maximum number of pending messages.
	SizeLimitHigh int
	// Minimum premium ratio a message needs to replace a pending one with
	// the same nonce.
	ReplaceByFeeRatio float64
}

type GasEstimator struct {
	// Inclusion target, in epochs, used for the premium when filling a
	// message's unset gas fields.
	PremiumInclusionBlocks uint64
	// Number of blocks of maximal base fee growth the fee cap covers when
	// filling a message's unset gas fields.
	FeeCapQueueBlocks int64
	// Number of tipsets whose premium samples are memoized.
	PriceCacheSize int
	// Maximum number of concurrent message simulations.
	ExecutionLanes int
}
