package gas

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/predictware/roundkeeper/internal/config"
	"github.com/predictware/roundkeeper/internal/lib"
	"github.com/stretchr/testify/require"
)

func newTestEstimator(t *testing.T, oracleURL string, checkFee bool) (*Estimator, config.Market) {
	t.Helper()

	market := config.Market{
		Title:           "MATIC",
		Network:         "polygon",
		IntervalSeconds: 300,
		Address:         "0xBD2e11702ABd48d9936A157c919B76e53a55F6A6",
	}
	networks := map[string]config.Network{
		"polygon": {
			Endpoints:      []string{"https://polygon-rpc.com/"},
			FeeOracleURL:   oracleURL,
			FeeTier:        "ProposeGasPrice",
			FeeOffset:      10,
			CheckFee:       checkFee,
			FallbackFeeWei: "45000000000",
		},
	}
	return NewEstimator(networks, time.Second, lib.NewTestLogger()), market
}

func oracleServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestGasPriceCheckDisabledReturnsFallback(t *testing.T) {
	estimator, market := newTestEstimator(t, "http://unused", false)

	price := estimator.GasPrice(context.Background(), market)
	require.Equal(t, "45000000000", price)
}

func TestGasPriceTierPlusOffset(t *testing.T) {
	server := oracleServer(t, `{"result":{"SafeGasPrice":"28","ProposeGasPrice":"30","FastGasPrice":"35"}}`)
	estimator, market := newTestEstimator(t, server.URL, true)

	// (30 + 10) gwei = 40 * 10^9 wei, exact
	price := estimator.GasPrice(context.Background(), market)
	require.Equal(t, "40000000000", price)
}

func TestGasPriceNumericTierValue(t *testing.T) {
	server := oracleServer(t, `{"result":{"ProposeGasPrice":30.5}}`)
	estimator, market := newTestEstimator(t, server.URL, true)

	price := estimator.GasPrice(context.Background(), market)
	require.Equal(t, "40500000000", price)
}

func TestGasPriceMalformedJSONFallsBack(t *testing.T) {
	server := oracleServer(t, `<!DOCTYPE html><html>rate limited</html>`)
	estimator, market := newTestEstimator(t, server.URL, true)

	price := estimator.GasPrice(context.Background(), market)
	require.Equal(t, "45000000000", price)
}

func TestGasPriceMissingTierFallsBack(t *testing.T) {
	server := oracleServer(t, `{"result":{"SafeGasPrice":"28"}}`)
	estimator, market := newTestEstimator(t, server.URL, true)

	price := estimator.GasPrice(context.Background(), market)
	require.Equal(t, "45000000000", price)
}

func TestGasPriceOracleDownFallsBack(t *testing.T) {
	server := oracleServer(t, `{}`)
	server.Close()
	estimator, market := newTestEstimator(t, server.URL, true)

	price := estimator.GasPrice(context.Background(), market)
	require.Equal(t, "45000000000", price)
}

func TestGasPriceOracleErrorStatusFallsBack(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(server.Close)
	estimator, market := newTestEstimator(t, server.URL, true)

	price := estimator.GasPrice(context.Background(), market)
	require.Equal(t, "45000000000", price)
}

func TestGweiToWei(t *testing.T) {
	tests := []struct {
		name   string
		gwei   string
		offset float64
		want   string
	}{
		{"integer", "30", 10, "40000000000"},
		{"zero offset", "45", 0, "45000000000"},
		{"fractional value", "30.5", 10, "40500000000"},
		{"fractional offset", "30", 0.5, "30500000000"},
		{"sub-wei truncated", "0.0000000001", 0, "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := GweiToWei(tt.gwei, tt.offset)
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestGweiToWeiRejectsGarbage(t *testing.T) {
	_, err := GweiToWei("fast", 0)
	require.Error(t, err)

	_, err = GweiToWei("-100", 0)
	require.Error(t, err)
}
