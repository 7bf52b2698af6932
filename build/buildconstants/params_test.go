package buildconstants

import (
	"testing"

	"github.com/filecoin-project/go-address"
	"github.com/stretchr/testify/require"
)

func TestParamsForNetwork(t *testing.T) {
	p, err := ParamsForNetwork("mainnet")
	require.NoError(t, err)
	require.Equal(t, int64(10_000_000_000), p.BlockGasLimit)
	require.Equal(t, p.BlockGasLimit/2, p.BlockGasTarget)
	require.Equal(t, int64(8), p.BaseFeeMaxChangeDenom)
	require.Equal(t, int64(100), p.MinimumBaseFee)
	require.Equal(t, int64(100_000), p.MinGasPremium)
	require.Equal(t, int64(200_000), p.GasLimitOverestimation)
	require.Equal(t, address.Mainnet, p.AddressNetwork)

	local, err := ParamsForNetwork("localnet-abc")
	require.NoError(t, err)
	require.Equal(t, "2k", local.NetworkName)
	require.Equal(t, uint64(4), local.BlockDelaySecs)

	_, err = ParamsForNetwork("nosuchnet")
	require.Error(t, err)
}

func TestParamsAreCopies(t *testing.T) {
	a := MustParamsForNetwork("calibrationnet")
	a.MinGasPremium = 1

	b := MustParamsForNetwork("calibrationnet")
	require.Equal(t, int64(100_000), b.MinGasPremium)
	require.Len(t, Networks(), 5)
}
