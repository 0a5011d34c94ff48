package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"github.com/predictware/roundkeeper/internal/lib"
)

var (
	ErrMarketsDecode     = errors.New("cannot decode markets config")
	ErrMarketsValidation = errors.New("markets config validation error")
)

// Market is one prediction contract this keeper advances. Loaded once at
// startup, immutable afterwards.
type Market struct {
	Title           string `toml:"title"            validate:"required"`
	Network         string `toml:"network"          validate:"required"`
	IntervalSeconds int64  `toml:"interval"         validate:"required,gt=0"`
	Address         string `toml:"address"          validate:"required,eth_addr"`
}

// Interval is the fixed on-chain round duration.
func (m Market) Interval() time.Duration {
	return time.Duration(m.IntervalSeconds) * time.Second
}

// Network holds per-chain settings shared by all markets on that chain.
type Network struct {
	// candidate endpoints in priority order, first is preferred
	Endpoints []string `toml:"endpoints"        validate:"required,min=1,dive,uri"`

	FeeOracleURL string  `toml:"fee_oracle_url" validate:"omitempty,uri"`
	FeeTier      string  `toml:"fee_tier"`
	FeeOffset    float64 `toml:"fee_offset"`
	CheckFee     bool    `toml:"check_fee"`

	// static fallback gas price in wei, kept as a decimal string to preserve
	// precision beyond float64
	FallbackFeeWei string `toml:"fallback_fee_wei" validate:"required,number"`
}

// MarketsConfig is the structured part of the configuration that does not fit
// flat env vars: the market list and the per-network settings.
type MarketsConfig struct {
	Markets  []Market           `toml:"markets"  validate:"required,min=1,dive"`
	Networks map[string]Network `toml:"networks" validate:"required,dive"`
}

// Network returns the settings for the named network. Cross-references are
// checked at load time, so a miss here is a programming error.
func (c *MarketsConfig) Network(name string) (Network, bool) {
	n, ok := c.Networks[name]
	return n, ok
}

// LoadMarkets reads and validates the markets TOML file. Any error here is
// fatal at startup: a keeper with a malformed market list must not run.
func LoadMarkets(path string) (*MarketsConfig, error) {
	var cfg MarketsConfig
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, lib.WrapError(ErrMarketsDecode, err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, lib.WrapError(ErrMarketsValidation, err)
	}

	seen := map[string]struct{}{}
	for _, m := range cfg.Markets {
		if _, ok := seen[m.Title]; ok {
			return nil, lib.WrapError(ErrMarketsValidation, fmt.Errorf("duplicate market title %q", m.Title))
		}
		seen[m.Title] = struct{}{}

		if _, ok := cfg.Networks[m.Network]; !ok {
			return nil, lib.WrapError(ErrMarketsValidation, fmt.Errorf("market %q references unknown network %q", m.Title, m.Network))
		}
	}

	for name, n := range cfg.Networks {
		if n.CheckFee && n.FeeOracleURL == "" {
			return nil, lib.WrapError(ErrMarketsValidation, fmt.Errorf("network %q has check_fee enabled but no fee_oracle_url", name))
		}
	}

	return &cfg, nil
}
