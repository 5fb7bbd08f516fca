package main

import (
	"context"
	"fmt"
	"sync"

	"github.com/yourorg/omnimint-bridge/internal/bridge"
	"github.com/yourorg/omnimint-bridge/internal/rpc"
	"github.com/yourorg/omnimint-bridge/internal/signer"
	"github.com/yourorg/omnimint-bridge/internal/types"
)

// ProviderSource hands out a signer-bound provider for the chain a call is sent on
type ProviderSource interface {
	Provider(ctx context.Context, c types.ChainDescriptor) (bridge.Provider, error)
}

type dialFunc func(ctx context.Context, rpcURL string) (*rpc.Client, error)

// signerProviders dials one signing client per chain and keeps it
type signerProviders struct {
	dial dialFunc

	mu      sync.Mutex
	clients map[int64]*rpc.Client
}

func newSignerProviders(key *signer.Key) *signerProviders {
	return newDialProviders(func(ctx context.Context, rpcURL string) (*rpc.Client, error) {
		return rpc.Dial(ctx, rpcURL, key)
	})
}

func newDialProviders(dial dialFunc) *signerProviders {
	return &signerProviders{dial: dial, clients: make(map[int64]*rpc.Client)}
}

func (s *signerProviders) Provider(ctx context.Context, c types.ChainDescriptor) (bridge.Provider, error) {
	if c.RPCURL == "" {
		return nil, fmt.Errorf("%s has no rpc url", c.Name)
	}

	s.mu.Lock()
	cli, ok := s.clients[c.ChainID]
	s.mu.Unlock()
	if ok {
		return cli, nil
	}

	// dial unlocked so a slow endpoint only delays its own chain
	cli, err := s.dial(ctx, c.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", c.Name, err)
	}
	if cli.ChainID().Int64() != c.ChainID {
		cli.Close()
		return nil, fmt.Errorf("%s rpc reports chain id %s, want %d", c.Name, cli.ChainID(), c.ChainID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.clients[c.ChainID]; ok {
		cli.Close()
		return existing, nil
	}
	s.clients[c.ChainID] = cli
	return cli, nil
}

func (s *signerProviders) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, cli := range s.clients {
		cli.Close()
		delete(s.clients, id)
	}
}
