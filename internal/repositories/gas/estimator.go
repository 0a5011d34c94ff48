package gas

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/predictware/roundkeeper/internal/config"
	"github.com/predictware/roundkeeper/internal/interfaces"
)

// DefaultFeeTier is read from the oracle response when a network does not
// name a tier.
const DefaultFeeTier = "FastGasPrice"

var gweiInWei = new(big.Int).Exp(big.NewInt(10), big.NewInt(9), nil)

// Estimator resolves the gas price to attach to an executeRound transaction.
// Estimation never fails: any oracle problem resolves to the network's static
// fallback price. A fresh estimate is made on every attempt, so a transient
// oracle outage only affects the current attempt.
type Estimator struct {
	// config
	networks map[string]config.Network

	// deps
	client *http.Client
	log    interfaces.ILogger
}

func NewEstimator(networks map[string]config.Network, timeout time.Duration, log interfaces.ILogger) *Estimator {
	return &Estimator{
		networks: networks,
		client:   &http.Client{Timeout: timeout},
		log:      log,
	}
}

// GasPrice returns the price in wei as an exact decimal string.
func (e *Estimator) GasPrice(ctx context.Context, market config.Market) string {
	netCfg, ok := e.networks[market.Network]
	if !ok {
		// cross-references are validated at startup
		e.log.Errorf("market %s references unknown network %s", market.Title, market.Network)
		return "0"
	}

	if !netCfg.CheckFee {
		return netCfg.FallbackFeeWei
	}

	price, err := e.fetchOraclePrice(ctx, netCfg)
	if err != nil {
		e.log.Warnf("gas oracle lookup failed, using fallback price %s: %s", netCfg.FallbackFeeWei, err)
		return netCfg.FallbackFeeWei
	}
	return price
}

type oracleResponse struct {
	Result map[string]json.RawMessage `json:"result"`
}

func (e *Estimator) fetchOraclePrice(ctx context.Context, netCfg config.Network) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, netCfg.FeeOracleURL, nil)
	if err != nil {
		return "", err
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("oracle returned status %d", resp.StatusCode)
	}

	var parsed oracleResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", err
	}

	tier := netCfg.FeeTier
	if tier == "" {
		tier = DefaultFeeTier
	}

	raw, ok := parsed.Result[tier]
	if !ok {
		return "", fmt.Errorf("tier %q missing from oracle response", tier)
	}

	return GweiToWei(rawNumber(raw), netCfg.FeeOffset)
}

// rawNumber strips optional JSON quoting, the oracle reports tiers either as
// numbers or numeric strings.
func rawNumber(raw json.RawMessage) string {
	s := strings.TrimSpace(string(raw))
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	return s
}

// GweiToWei adds the offset to a decimal gwei value and scales it to wei,
// returned as an exact decimal string. Computed in big.Rat so no precision is
// lost to float rounding; a sub-wei remainder is truncated.
func GweiToWei(gwei string, offset float64) (string, error) {
	value, ok := new(big.Rat).SetString(gwei)
	if !ok {
		return "", fmt.Errorf("non-numeric gas value %q", gwei)
	}

	offsetRat, ok := new(big.Rat).SetString(strconv.FormatFloat(offset, 'f', -1, 64))
	if !ok {
		return "", fmt.Errorf("non-numeric gas offset %v", offset)
	}

	value.Add(value, offsetRat)
	value.Mul(value, new(big.Rat).SetInt(gweiInWei))

	if value.Sign() < 0 {
		return "", fmt.Errorf("negative gas price %s", value.RatString())
	}

	return new(big.Int).Quo(value.Num(), value.Denom()).String(), nil
}
