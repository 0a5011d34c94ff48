package contracts

import (
	"context"
	"sync"
	"testing"

	"github.com/predictware/roundkeeper/internal/config"
	"github.com/predictware/roundkeeper/internal/lib"
	"github.com/predictware/roundkeeper/internal/repositories/rpc"
	"github.com/stretchr/testify/require"
)

const testPrivKey = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

type fakeEndpoints struct {
	mu       sync.Mutex
	selected map[string]string
}

func (f *fakeEndpoints) Current(network string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	url, ok := f.selected[network]
	return url, ok
}

type countingDialer struct {
	mu    sync.Mutex
	calls int
	urls  []string
}

// dial performs no network IO: ethclient over http connects lazily
func (d *countingDialer) dial(ctx context.Context, url string) (*rpc.EthClient, error) {
	d.mu.Lock()
	d.calls++
	d.urls = append(d.urls, url)
	d.mu.Unlock()
	return rpc.DialContext(ctx, url)
}

func testMarket() config.Market {
	return config.Market{
		Title:           "MATIC",
		Network:         "polygon",
		IntervalSeconds: 300,
		Address:         "0xBD2e11702ABd48d9936A157c919B76e53a55F6A6",
	}
}

func TestHandleRequiresSelectedEndpoint(t *testing.T) {
	dialer := &countingDialer{}
	registry := NewRegistry(testPrivKey, &fakeEndpoints{}, dialer.dial, lib.NewTestLogger())

	_, err := registry.Handle(context.Background(), testMarket())
	require.ErrorIs(t, err, ErrDependencyUnavailable)
	require.Zero(t, dialer.calls)
}

func TestHandleIsMemoized(t *testing.T) {
	endpoints := &fakeEndpoints{selected: map[string]string{"polygon": "http://127.0.0.1:8545"}}
	dialer := &countingDialer{}
	registry := NewRegistry(testPrivKey, endpoints, dialer.dial, lib.NewTestLogger())

	first, err := registry.Handle(context.Background(), testMarket())
	require.NoError(t, err)

	second, err := registry.Handle(context.Background(), testMarket())
	require.NoError(t, err)

	require.Same(t, first, second)
	require.Equal(t, 1, dialer.calls)
	require.Equal(t, "http://127.0.0.1:8545", first.Endpoint())
}

func TestHandleNotRebuiltOnEndpointChange(t *testing.T) {
	endpoints := &fakeEndpoints{selected: map[string]string{"polygon": "http://primary:8545"}}
	dialer := &countingDialer{}
	registry := NewRegistry(testPrivKey, endpoints, dialer.dial, lib.NewTestLogger())

	handle, err := registry.Handle(context.Background(), testMarket())
	require.NoError(t, err)

	// a later failover does not touch an already-built handle
	endpoints.mu.Lock()
	endpoints.selected["polygon"] = "http://secondary:8545"
	endpoints.mu.Unlock()

	again, err := registry.Handle(context.Background(), testMarket())
	require.NoError(t, err)
	require.Same(t, handle, again)
	require.Equal(t, "http://primary:8545", again.Endpoint())
}

func TestDropRebindsAgainstCurrentEndpoint(t *testing.T) {
	endpoints := &fakeEndpoints{selected: map[string]string{"polygon": "http://primary:8545"}}
	dialer := &countingDialer{}
	registry := NewRegistry(testPrivKey, endpoints, dialer.dial, lib.NewTestLogger())

	market := testMarket()
	_, err := registry.Handle(context.Background(), market)
	require.NoError(t, err)

	endpoints.mu.Lock()
	endpoints.selected["polygon"] = "http://secondary:8545"
	endpoints.mu.Unlock()

	registry.Drop(market.Title)

	rebound, err := registry.Handle(context.Background(), market)
	require.NoError(t, err)
	require.Equal(t, "http://secondary:8545", rebound.Endpoint())
	require.Equal(t, []string{"http://primary:8545", "http://secondary:8545"}, dialer.urls)
}

func TestDropUnknownMarketIsNoop(t *testing.T) {
	registry := NewRegistry(testPrivKey, &fakeEndpoints{}, (&countingDialer{}).dial, lib.NewTestLogger())
	registry.Drop("UNKNOWN")
}
