package types

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/filecoin-project/lotus-gasest/build/buildconstants"
)

// FIL is an amount of attoFIL, printed with the largest fitting unit prefix.
type FIL BigInt

var unitPrefixes = []string{"a", "f", "p", "n", "μ", "m"}

func (f FIL) String() string {
	if f.Int == nil {
		return "0 FIL"
	}

	n := new(big.Int).Abs(f.Int)
	dn := uint64(1)
	prefix := ""
	for _, p := range unitPrefixes {
		if n.Cmp(new(big.Int).SetUint64(dn*1000)) < 0 {
			prefix = p
			break
		}
		dn *= 1000
	}

	r := new(big.Rat).SetFrac(f.Int, new(big.Int).SetUint64(dn))
	if r.Sign() == 0 {
		return "0 " + prefix + "FIL"
	}
	return trimDecimal(r.FloatString(18)) + " " + prefix + "FIL"
}

// Unitless returns the amount in whole FIL without a unit.
func (f FIL) Unitless() string {
	if f.Int == nil {
		return "0"
	}
	r := new(big.Rat).SetFrac(f.Int, new(big.Int).SetUint64(buildconstants.FilecoinPrecision))
	if r.Sign() == 0 {
		return "0"
	}
	return trimDecimal(r.FloatString(18))
}

func (f FIL) Format(s fmt.State, ch rune) {
	switch ch {
	case 's', 'v':
		_, _ = fmt.Fprint(s, f.String())
	default:
		f.Int.Format(s, ch)
	}
}

func trimDecimal(s string) string {
	return strings.TrimRight(strings.TrimRight(s, "0"), ".")
}

// ParseFIL parses a decimal FIL amount. A trailing "attofil" or "afil" suffix
// reads the value as attoFIL instead.
func ParseFIL(s string) (FIL, error) {
	suffix := strings.TrimLeft(s, "-.1234567890")
	s = s[:len(s)-len(suffix)]
	var attofil bool
	if suffix != "" {
		norm := strings.ToLower(strings.TrimSpace(suffix))
		switch norm {
		case "", "fil":
		case "attofil", "afil":
			attofil = true
		default:
			return FIL{}, fmt.Errorf("unrecognized suffix: %q", suffix)
		}
	}

	if len(s) > 50 {
		return FIL{}, fmt.Errorf("string length too large: %d", len(s))
	}

	r, ok := new(big.Rat).SetString(s)
	if !ok {
		return FIL{}, fmt.Errorf("failed to parse %q as a decimal number", s)
	}

	if !attofil {
		r = r.Mul(r, new(big.Rat).SetInt(new(big.Int).SetUint64(buildconstants.FilecoinPrecision)))
	}

	if !r.IsInt() {
		var pref string
		if attofil {
			pref = "atto"
		}
		return FIL{}, fmt.Errorf("invalid %sFIL value: %q", pref, s)
	}

	return FIL{r.Num()}, nil
}
