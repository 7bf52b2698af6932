package modules

import (
	"github.com/filecoin-project/lotus-gasest/node/config"
	"github.com/filecoin-project/lotus-gasest/node/impl/gasutils"
)

func GasPriceCache(cfg config.GasEstimator) *gasutils.GasPriceCache {
	return gasutils.NewGasPriceCache(cfg.PriceCacheSize)
}

func NoiseSource() gasutils.NoiseSource {
	return gasutils.DefaultNoise
}
