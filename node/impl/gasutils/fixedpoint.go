package gasutils

import (
	"math"
	stdbig "math/big"
	"math/rand/v2"

	"golang.org/x/xerrors"

	"github.com/filecoin-project/go-state-types/big"

	"github.com/filecoin-project/lotus-gasest/api"
)

// NoiseSource yields samples of the standard normal distribution. Premium
// jitter draws from it; tests substitute a deterministic source.
type NoiseSource interface {
	NormFloat64() float64
}

type globalRand struct{}

func (globalRand) NormFloat64() float64 { return rand.NormFloat64() }

// DefaultNoise draws from the process-wide math/rand/v2 source.
var DefaultNoise NoiseSource = globalRand{}

const (
	feeCapPrecision = 8
	noisePrecision  = 32
)

// bigFromFloat truncates f towards zero. NaN, infinities and negative values
// are refused rather than clamped.
func bigFromFloat(f float64) (big.Int, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return big.Int{}, &api.ErrNumericConversion{Err: xerrors.Errorf("cannot convert %v to an integer", f)}
	}

	i, _ := new(stdbig.Float).SetFloat64(f).Int(nil)
	return big.Int{Int: i}, nil
}

// mulFixedPoint returns v * trunc(f * 2^shift) / 2^shift.
func mulFixedPoint(v big.Int, f float64, shift int) (big.Int, error) {
	mult, err := bigFromFloat(math.Ldexp(f, shift))
	if err != nil {
		return big.Int{}, err
	}

	return big.Div(big.Mul(v, mult), big.NewInt(1<<shift)), nil
}
