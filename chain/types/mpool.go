package types

type MpoolConfig struct {
	// SizeLimitHigh bounds the number of distinct pending messages.
	SizeLimitHigh int
	// ReplaceByFeeRatio is the minimum premium bump for a replacement message.
	ReplaceByFeeRatio float64
}

func (mc *MpoolConfig) Clone() *MpoolConfig {
	r := new(MpoolConfig)
	*r = *mc
	return r
}
