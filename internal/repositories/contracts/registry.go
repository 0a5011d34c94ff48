package contracts

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/predictware/roundkeeper/internal/config"
	"github.com/predictware/roundkeeper/internal/interfaces"
	"github.com/predictware/roundkeeper/internal/lib"
	"github.com/predictware/roundkeeper/internal/repositories/rpc"
)

var ErrDependencyUnavailable = errors.New("no endpoint selected for network")

// EndpointSource exposes the currently selected endpoint per network. The
// registry only reads it; resolving an endpoint is the caller's job before
// asking for a handle.
type EndpointSource interface {
	Current(network string) (string, bool)
}

// Dialer builds a client bound to one endpoint URL. Swappable in tests.
type Dialer func(ctx context.Context, url string) (*rpc.EthClient, error)

// Registry memoizes one contract handle per market. A handle is built at most
// once and pinned to the endpoint selected at build time; Drop removes it so
// the next Handle call re-binds against the current endpoint.
type Registry struct {
	// config
	privKey string

	// state
	mutex   sync.Mutex
	handles map[string]*PredictionEthereum

	// deps
	endpoints EndpointSource
	dial      Dialer
	log       interfaces.ILogger
}

func NewRegistry(privKey string, endpoints EndpointSource, dial Dialer, log interfaces.ILogger) *Registry {
	if dial == nil {
		dial = rpc.DialContext
	}
	return &Registry{
		privKey:   privKey,
		handles:   make(map[string]*PredictionEthereum),
		endpoints: endpoints,
		dial:      dial,
		log:       log,
	}
}

// Handle returns the memoized handle for the market, building it on first
// use. Requesting a handle before the market's network has a selected
// endpoint is a hard error, distinguishable from a submission failure.
func (r *Registry) Handle(ctx context.Context, market config.Market) (*PredictionEthereum, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if handle, ok := r.handles[market.Title]; ok {
		return handle, nil
	}

	url, ok := r.endpoints.Current(market.Network)
	if !ok {
		return nil, lib.WrapError(ErrDependencyUnavailable, fmt.Errorf("market %s network %s", market.Title, market.Network))
	}

	client, err := r.dial(ctx, url)
	if err != nil {
		return nil, err
	}

	handle := NewPredictionEthereum(common.HexToAddress(market.Address), r.privKey, client, r.log.Named(market.Title))
	r.handles[market.Title] = handle

	r.log.Debugf("built contract handle for market %s at %s over %s", market.Title, market.Address, url)
	return handle, nil
}

// Drop forgets the market's handle and closes its client. Called on
// submission failure together with endpoint invalidation so a failover
// actually takes effect for this market.
func (r *Registry) Drop(marketTitle string) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	handle, ok := r.handles[marketTitle]
	if !ok {
		return
	}
	handle.client.Close()
	delete(r.handles, marketTitle)
}
