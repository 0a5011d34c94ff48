package rpc

import (
	"context"

	"github.com/ethereum/go-ethereum/ethclient"
)

// EthClient is an ethclient bound to one endpoint URL. The URL is kept so
// logs and the HTTP API can report which endpoint a handle is pinned to.
type EthClient struct {
	// config
	url string

	// state
	*ethclient.Client
}

func DialContext(ctx context.Context, urlString string) (*EthClient, error) {
	client, err := ethclient.DialContext(ctx, urlString)
	if err != nil {
		return nil, err
	}
	return &EthClient{
		Client: client,
		url:    urlString,
	}, nil
}

func (c *EthClient) URL() string {
	return c.url
}
