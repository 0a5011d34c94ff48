package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const validMarketsTOML = `
[[markets]]
title = "MATIC"
network = "polygon"
interval = 300
address = "0xBD2e11702ABd48d9936A157c919B76e53a55F6A6"

[networks.polygon]
endpoints = [
	"https://polygon-rpc.com/",
	"https://matic-mainnet.chainstacklabs.com",
]
fee_oracle_url = "https://gpoly.blockscan.com/gasapi.ashx?apikey=key&method=gasoracle"
fee_tier = "ProposeGasPrice"
fee_offset = 10.0
check_fee = true
fallback_fee_wei = "45000000000"
`

func writeMarketsFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "markets.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadMarkets(t *testing.T) {
	cfg, err := LoadMarkets(writeMarketsFile(t, validMarketsTOML))
	require.NoError(t, err)

	require.Len(t, cfg.Markets, 1)
	market := cfg.Markets[0]
	require.Equal(t, "MATIC", market.Title)
	require.Equal(t, "polygon", market.Network)
	require.Equal(t, 5*time.Minute, market.Interval())

	network, ok := cfg.Network("polygon")
	require.True(t, ok)
	require.Len(t, network.Endpoints, 2)
	require.Equal(t, "https://polygon-rpc.com/", network.Endpoints[0])
	require.Equal(t, "45000000000", network.FallbackFeeWei)
	require.True(t, network.CheckFee)
}

func TestLoadMarketsUnknownNetwork(t *testing.T) {
	content := `
[[markets]]
title = "MATIC"
network = "optimism"
interval = 300
address = "0xBD2e11702ABd48d9936A157c919B76e53a55F6A6"

[networks.polygon]
endpoints = ["https://polygon-rpc.com/"]
fallback_fee_wei = "45000000000"
`
	_, err := LoadMarkets(writeMarketsFile(t, content))
	require.ErrorIs(t, err, ErrMarketsValidation)
	require.ErrorContains(t, err, "unknown network")
}

func TestLoadMarketsDuplicateTitle(t *testing.T) {
	content := validMarketsTOML + `
[[markets]]
title = "MATIC"
network = "polygon"
interval = 300
address = "0xBD2e11702ABd48d9936A157c919B76e53a55F6A6"
`
	_, err := LoadMarkets(writeMarketsFile(t, content))
	require.ErrorIs(t, err, ErrMarketsValidation)
	require.ErrorContains(t, err, "duplicate market title")
}

func TestLoadMarketsCheckFeeRequiresOracle(t *testing.T) {
	content := `
[[markets]]
title = "MATIC"
network = "polygon"
interval = 300
address = "0xBD2e11702ABd48d9936A157c919B76e53a55F6A6"

[networks.polygon]
endpoints = ["https://polygon-rpc.com/"]
check_fee = true
fallback_fee_wei = "45000000000"
`
	_, err := LoadMarkets(writeMarketsFile(t, content))
	require.ErrorIs(t, err, ErrMarketsValidation)
	require.ErrorContains(t, err, "fee_oracle_url")
}

func TestLoadMarketsRejectsBadAddress(t *testing.T) {
	content := `
[[markets]]
title = "MATIC"
network = "polygon"
interval = 300
address = "not-an-address"

[networks.polygon]
endpoints = ["https://polygon-rpc.com/"]
fallback_fee_wei = "45000000000"
`
	_, err := LoadMarkets(writeMarketsFile(t, content))
	require.ErrorIs(t, err, ErrMarketsValidation)
}

func TestLoadMarketsMissingFile(t *testing.T) {
	_, err := LoadMarkets(filepath.Join(t.TempDir(), "nope.toml"))
	require.ErrorIs(t, err, ErrMarketsDecode)
}
