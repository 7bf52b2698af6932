package types

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFILFormat(t *testing.T) {
	for v, expect := range map[uint64]string{
		0:           "0 aFIL",
		1:           "1 aFIL",
		999:         "999 aFIL",
		1000:        "1 fFIL",
		99900:       "99.9 fFIL",
		878367868:   "878.367868 pFIL",
		10000000000: "10 nFIL",
	} {
		require.Equal(t, expect, fmt.Sprintf("%s", FIL(NewInt(v))))
	}

	require.Equal(t, "1.5 FIL", FIL(NewInt(1_500_000_000_000_000_000)).String())
	require.Equal(t, "0.0000000000002", FIL(NewInt(200_000)).Unitless())
}

func TestParseFIL(t *testing.T) {
	for s, expect := range map[string]string{
		"1":            "1000000000000000000",
		"0.0000001":    "100000000000",
		"1.5 FIL":      "1500000000000000000",
		"100000 afil":  "100000",
		"7attofil":     "7",
	} {
		f, err := ParseFIL(s)
		require.NoError(t, err, s)
		require.Equal(t, expect, BigInt(f).String(), s)
	}

	for _, s := range []string{"1.5 attofil", "abc", "1 btc"} {
		_, err := ParseFIL(s)
		require.Error(t, err, s)
	}
}
