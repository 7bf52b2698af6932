package messagepool

import (
	"github.com/filecoin-project/lotus-gasest/chain/types"
)

var (
	ReplaceByFeeRatioDefault  = 1.25
	MemPoolSizeLimitHiDefault = 30000
)

func (mp *MessagePool) GetConfig() *types.MpoolConfig {
	mp.cfgLk.Lock()
	defer mp.cfgLk.Unlock()
	return mp.cfg.Clone()
}

func (mp *MessagePool) SetConfig(cfg *types.MpoolConfig) {
	cfg = cfg.Clone()
	mp.cfgLk.Lock()
	mp.cfg = cfg
	mp.rbfNum = rbfNumFromRatio(cfg.ReplaceByFeeRatio)
	mp.cfgLk.Unlock()
}

func DefaultConfig() *types.MpoolConfig {
	return &types.MpoolConfig{
		SizeLimitHigh:     MemPoolSizeLimitHiDefault,
		ReplaceByFeeRatio: ReplaceByFeeRatioDefault,
	}
}
