package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDecodeNothing(t *testing.T) {
	cfg, err := FromFile(os.DevNull, DefaultFullNode())
	require.NoError(t, err)
	require.Equal(t, DefaultFullNode(), cfg, "config from empty file should be the same as default")

	cfg, err = FromFile(filepath.Join(t.TempDir(), "nonexistent.toml"), DefaultFullNode())
	require.NoError(t, err)
	require.Equal(t, DefaultFullNode(), cfg, "config from not existing file should be the same as default")
}

func TestParitalConfig(t *testing.T) {
	cfgString := `
		[API]
		Timeout = "10s"
		[GasEstimator]
		PremiumInclusionBlocks = 4
		FeeCapQueueBlocks = 0
		[Chain]
		Network = "calibrationnet"
		ExpensiveForkEpochs = [100, 200]
		`
	expected := DefaultFullNode()
	expected.API.Timeout = Duration(10 * time.Second)
	expected.GasEstimator.PremiumInclusionBlocks = 4
	expected.GasEstimator.FeeCapQueueBlocks = 0
	expected.Chain.Network = "calibrationnet"
	expected.Chain.ExpensiveForkEpochs = []int64{100, 200}

	{
		cfg, err := FromReader(bytes.NewReader([]byte(cfgString)), DefaultFullNode())
		require.NoError(t, err)
		require.Equal(t, expected, cfg, "config from reader should contain changes")
	}

	{
		f := filepath.Join(t.TempDir(), "config.toml")
		require.NoError(t, os.WriteFile(f, []byte(cfgString), 0644))

		cfg, err := FromFile(f, DefaultFullNode())
		require.NoError(t, err)
		require.Equal(t, expected, cfg, "config from file should contain changes")
	}
}

func TestRejectsBadConfig(t *testing.T) {
	for name, cfgString := range map[string]string{
		"unknown key":     "[GasEstimator]\nPremiumBlocks = 4\n",
		"bad duration":    "[API]\nTimeout = \"soon\"\n",
		"negative queue":  "[GasEstimator]\nFeeCapQueueBlocks = -1\n",
		"low rbf ratio":   "[Mpool]\nReplaceByFeeRatio = 0.5\n",
		"empty network":   "[Chain]\nNetwork = \"\"\n",
		"malformed table": "[GasEstimator\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := FromReader(strings.NewReader(cfgString), DefaultFullNode())
			require.Error(t, err)
		})
	}
}

func TestConfigCommentRoundTrip(t *testing.T) {
	b, err := ConfigComment(DefaultFullNode())
	require.NoError(t, err)
	require.Contains(t, string(b), "#FeeCapQueueBlocks = 20")
	require.Contains(t, string(b), `#Timeout = "30s"`)

	cfg, err := FromReader(bytes.NewReader(b), DefaultFullNode())
	require.NoError(t, err)
	require.Equal(t, DefaultFullNode(), cfg)
}

func TestConfigUpdateRoundTrip(t *testing.T) {
	c := DefaultFullNode()
	c.Chain.Network = "calibrationnet"
	c.GasEstimator.PremiumInclusionBlocks = 3

	b, err := ConfigUpdate(c)
	require.NoError(t, err)
	require.NotContains(t, string(b), "#")

	cfg, err := FromReader(bytes.NewReader(b), DefaultFullNode())
	require.NoError(t, err)
	require.Equal(t, c, cfg)
}
