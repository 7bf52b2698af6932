package buildconstants

import (
	"strings"

	"github.com/filecoin-project/go-address"
	"golang.org/x/xerrors"
)

// NetworkParams holds the protocol constants gas estimation depends on. They
// must match across every node of a network; they are not user configuration.
type NetworkParams struct {
	NetworkName string

	// AddressNetwork selects the f/t address prefix for this network.
	AddressNetwork address.Network

	BlockDelaySecs uint64

	BlockGasLimit         int64
	BlockGasTarget        int64
	BaseFeeMaxChangeDenom int64 // 12.5% on all live networks
	InitialBaseFee        int64
	MinimumBaseFee        int64

	// MinGasPremium is the floor premium used when recent chain history gives
	// no usable signal.
	MinGasPremium int64

	// GasLimitOverestimation is added on top of simulated gas usage.
	GasLimitOverestimation int64
}

// FilecoinPrecision is the number of attoFIL in one FIL.
const FilecoinPrecision = uint64(1_000_000_000_000_000_000)

const (
	mainnetBlockGasLimit = int64(10_000_000_000)
	minGasPremium        = int64(100e3)
)

func defaultParams(name string, anet address.Network, blockDelay uint64) NetworkParams {
	return NetworkParams{
		NetworkName:            name,
		AddressNetwork:         anet,
		BlockDelaySecs:         blockDelay,
		BlockGasLimit:          mainnetBlockGasLimit,
		BlockGasTarget:         mainnetBlockGasLimit / 2,
		BaseFeeMaxChangeDenom:  8,
		InitialBaseFee:         100e6,
		MinimumBaseFee:         100,
		MinGasPremium:          minGasPremium,
		GasLimitOverestimation: 200_000,
	}
}

var networks = map[string]NetworkParams{
	"mainnet":        defaultParams("mainnet", address.Mainnet, 30),
	"calibrationnet": defaultParams("calibrationnet", address.Testnet, 30),
	"butterflynet":   defaultParams("butterflynet", address.Testnet, 30),
	"interopnet":     defaultParams("interopnet", address.Testnet, 30),
	"2k":             defaultParams("2k", address.Testnet, 4),
}

// Networks returns the names of all known networks.
func Networks() []string {
	out := make([]string, 0, len(networks))
	for n := range networks {
		out = append(out, n)
	}
	return out
}

// ParamsForNetwork looks up the protocol constants of a network by name.
// Local devnets named "localnet-*" share the 2k parameters.
func ParamsForNetwork(name string) (*NetworkParams, error) {
	if strings.HasPrefix(name, "localnet-") {
		name = "2k"
	}
	p, ok := networks[name]
	if !ok {
		return nil, xerrors.Errorf("unknown network name %q", name)
	}
	return &p, nil
}

// MustParamsForNetwork is like ParamsForNetwork but panics on unknown names.
// Only for tests and static initialization.
func MustParamsForNetwork(name string) *NetworkParams {
	p, err := ParamsForNetwork(name)
	if err != nil {
		panic(err)
	}
	return p
}
