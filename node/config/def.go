package config

import (
	"encoding"
	"time"
)

const (
	DefaultPremiumInclusionBlocks = 10
	DefaultFeeCapQueueBlocks      = 20
)

// DefaultFullNode returns the default config
func DefaultFullNode() *FullNode {
	return &FullNode{
		API: API{
			ListenAddress: "127.0.0.1:1234",
			Timeout:       Duration(30 * time.Second),
		},
		Logging: Logging{
			SubsystemLevels: map[string]string{},
		},
		Chain: Chain{
			Network:         "mainnet",
			TipSetCacheSize: 8192,
		},
		Mpool: Mpool{
			SizeLimitHigh:     30000,
			ReplaceByFeeRatio: 1.25,
		},
		GasEstimator: GasEstimator{
			PremiumInclusionBlocks: DefaultPremiumInclusionBlocks,
			FeeCapQueueBlocks:      DefaultFeeCapQueueBlocks,
			PriceCacheSize:         50,
			ExecutionLanes:         4,
		},
	}
}

var _ encoding.TextMarshaler = (*Duration)(nil)
var _ encoding.TextUnmarshaler = (*Duration)(nil)

// Duration is a wrapper type for time.Duration
// for decoding and encoding from/to TOML
type Duration time.Duration

// UnmarshalText implements interface for TOML decoding
func (dur *Duration) UnmarshalText(text []byte) error {
	d, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*dur = Duration(d)
	return err
}

func (dur Duration) MarshalText() ([]byte, error) {
	d := time.Duration(dur)
	return []byte(d.String()), nil
}
