package config

import (
	"bytes"
	"io"
	"os"
	"regexp"

	"github.com/BurntSushi/toml"
	"golang.org/x/xerrors"
)

// FromFile loads config from a specified file overriding defaults specified in
// the def parameter. If file does not exist or is empty defaults are assumed.
func FromFile(path string, def *FullNode) (*FullNode, error) {
	file, err := os.Open(path)
	switch {
	case os.IsNotExist(err):
		return def, nil
	case err != nil:
		return nil, err
	}

	defer file.Close() //nolint:errcheck // The file is RO
	return FromReader(file, def)
}

// FromReader loads config from a reader instance.
func FromReader(reader io.Reader, def *FullNode) (*FullNode, error) {
	cfg := def
	md, err := toml.NewDecoder(reader).Decode(cfg)
	if err != nil {
		return nil, err
	}

	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, xerrors.Errorf("unknown config keys: %v", undecoded)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate rejects values no component can run with.
func (cfg *FullNode) Validate() error {
	if cfg.Chain.Network == "" {
		return xerrors.New("Chain.Network must be set")
	}
	if cfg.GasEstimator.FeeCapQueueBlocks < 0 {
		return xerrors.Errorf("GasEstimator.FeeCapQueueBlocks must not be negative, got %d", cfg.GasEstimator.FeeCapQueueBlocks)
	}
	if cfg.Mpool.ReplaceByFeeRatio < 1 {
		return xerrors.Errorf("Mpool.ReplaceByFeeRatio must be at least 1, got %f", cfg.Mpool.ReplaceByFeeRatio)
	}
	return nil
}

var commentLine = regexp.MustCompile(`(?m)^(\s*)([^\s#\[][^\n]*)$`)

// ConfigComment encodes cfg as TOML with every key commented out, the way a
// freshly initialized repo presents the defaults.
func ConfigComment(cfg *FullNode) ([]byte, error) {
	buf := new(bytes.Buffer)
	_, _ = buf.WriteString("# Default config:\n")
	e := toml.NewEncoder(buf)
	if err := e.Encode(cfg); err != nil {
		return nil, xerrors.Errorf("encoding config: %w", err)
	}
	b := buf.Bytes()
	b = commentLine.ReplaceAll(b, []byte("$1#$2"))
	return b, nil
}

// ConfigUpdate encodes cfg as plain TOML.
func ConfigUpdate(cfg *FullNode) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := toml.NewEncoder(buf).Encode(cfg); err != nil {
		return nil, xerrors.Errorf("encoding config: %w", err)
	}
	return buf.Bytes(), nil
}
