package rpc

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	ethrpc "github.com/ethereum/go-ethereum/rpc"
	"github.com/predictware/roundkeeper/internal/config"
	"github.com/predictware/roundkeeper/internal/interfaces"
	"github.com/predictware/roundkeeper/internal/lib"
	"golang.org/x/sync/singleflight"
)

var (
	ErrEndpointUnavailable = errors.New("no responsive rpc endpoint")
	ErrUnknownNetwork      = errors.New("unknown network")
)

// Prober answers whether a single endpoint is alive. The context carries the
// probe deadline.
type Prober interface {
	Probe(ctx context.Context, url string) error
}

// Selector picks one healthy endpoint per network out of the configured
// candidate list, strictly in priority order, and caches the choice for the
// process lifetime until Invalidate is called. Concurrent Select calls for
// the same network share a single in-flight probe pass.
type Selector struct {
	// config
	networks     map[string]config.Network
	probeTimeout time.Duration

	// state
	mutex    sync.RWMutex
	selected map[string]string
	group    singleflight.Group

	// deps
	prober Prober
	log    interfaces.ILogger
}

func NewSelector(networks map[string]config.Network, probeTimeout time.Duration, prober Prober, log interfaces.ILogger) *Selector {
	return &Selector{
		networks:     networks,
		probeTimeout: probeTimeout,
		selected:     make(map[string]string),
		prober:       prober,
		log:          log,
	}
}

// Select returns the cached endpoint for the network, running a selection
// pass first if none is cached. Every candidate failing leaves the cache
// unresolved and returns ErrEndpointUnavailable; the caller retries on its
// next cycle.
func (s *Selector) Select(ctx context.Context, network string) (string, error) {
	if url, ok := s.Current(network); ok {
		return url, nil
	}

	url, err, _ := s.group.Do(network, func() (interface{}, error) {
		// selection may have completed while this call waited on the group
		if url, ok := s.Current(network); ok {
			return url, nil
		}
		return s.selectEndpoint(ctx, network)
	})
	if err != nil {
		return "", err
	}
	return url.(string), nil
}

func (s *Selector) selectEndpoint(ctx context.Context, network string) (string, error) {
	netCfg, ok := s.networks[network]
	if !ok {
		return "", lib.WrapError(ErrUnknownNetwork, fmt.Errorf("%q", network))
	}

	for _, candidate := range netCfg.Endpoints {
		s.log.Debugf("probing endpoint %s", candidate)

		probeCtx, cancel := context.WithTimeout(ctx, s.probeTimeout)
		err := s.prober.Probe(probeCtx, candidate)
		cancel()

		if err != nil {
			s.log.Warnf("endpoint %s failed probe: %s", candidate, err)
			continue
		}

		s.mutex.Lock()
		s.selected[network] = candidate
		s.mutex.Unlock()

		s.log.Infof("selected endpoint %s for network %s", candidate, network)
		return candidate, nil
	}

	return "", lib.WrapError(ErrEndpointUnavailable, fmt.Errorf("network %s: all %d candidates failed", network, len(netCfg.Endpoints)))
}

// Current returns the cached endpoint without triggering a selection.
func (s *Selector) Current(network string) (string, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	url, ok := s.selected[network]
	return url, ok
}

// Invalidate drops the cached endpoint so the next Select re-probes the
// candidate list from the top. Called after a submission failure so a dead
// endpoint is not reused forever.
func (s *Selector) Invalidate(network string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	delete(s.selected, network)
}

// JSONRPCProber checks liveness with a net_listening call, the JSON-RPC
// equivalent of web3's isListening.
type JSONRPCProber struct{}

func NewProber() *JSONRPCProber {
	return &JSONRPCProber{}
}

func (p *JSONRPCProber) Probe(ctx context.Context, url string) error {
	client, err := ethrpc.DialContext(ctx, url)
	if err != nil {
		return err
	}
	defer client.Close()

	var listening bool
	if err := client.CallContext(ctx, &listening, "net_listening"); err != nil {
		return err
	}
	if !listening {
		return fmt.Errorf("endpoint %s is not accepting connections", url)
	}
	return nil
}
