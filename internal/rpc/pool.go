package rpc

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// Reader is a signer-independent connection used for view calls and receipt lookups
type Reader interface {
	ethereum.ContractCaller
	TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
}

// DialFunc opens a read-only connection
type DialFunc func(ctx context.Context, rpcURL string) (Reader, error)

func dialEthclient(ctx context.Context, rpcURL string) (Reader, error) {
	cli, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, err
	}
	return cli, nil
}

// Pool caches one read-only connection per RPC URL. Calls through it can be
// rate limited per endpoint.
type Pool struct {
	mu      sync.RWMutex
	readers map[string]Reader

	dial DialFunc

	// zero disables limiting
	rps   rate.Limit
	burst int
}

// NewPool creates a pool that dials with ethclient
func NewPool() *Pool {
	return &Pool{readers: make(map[string]Reader), dial: dialEthclient}
}

// WithDialer replaces the dial function
func (p *Pool) WithDialer(dial DialFunc) *Pool {
	p.dial = dial
	return p
}

// WithRateLimit limits calls to each endpoint to rps with the given burst
func (p *Pool) WithRateLimit(rps float64, burst int) *Pool {
	if rps > 0 {
		p.rps = rate.Limit(rps)
		if burst < 1 {
			burst = 1
		}
		p.burst = burst
	}
	return p
}

// Reader returns the cached connection for rpcURL, dialing on first use
func (p *Pool) Reader(ctx context.Context, rpcURL string) (Reader, error) {
	if rpcURL == "" {
		return nil, fmt.Errorf("empty rpc url")
	}

	p.mu.RLock()
	r, ok := p.readers[rpcURL]
	p.mu.RUnlock()
	if ok {
		return r, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if r, ok := p.readers[rpcURL]; ok {
		return r, nil
	}

	r, err := p.dial(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", rpcURL, err)
	}
	if p.rps > 0 {
		r = &limitedReader{Reader: r, limiter: rate.NewLimiter(p.rps, p.burst)}
	}
	p.readers[rpcURL] = r
	logrus.WithField("endpoint", rpcURL).Debug("Opened read-only connection")
	return r, nil
}

// Caller satisfies bridge.CallerSource
func (p *Pool) Caller(ctx context.Context, rpcURL string) (ethereum.ContractCaller, error) {
	return p.Reader(ctx, rpcURL)
}

// Receipt looks a transaction up once on rpcURL
func (p *Pool) Receipt(ctx context.Context, rpcURL string, hash common.Hash) (*types.Receipt, error) {
	r, err := p.Reader(ctx, rpcURL)
	if err != nil {
		return nil, err
	}
	return r.TransactionReceipt(ctx, hash)
}

// Close closes every connection that supports it
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for url, r := range p.readers {
		if l, ok := r.(*limitedReader); ok {
			r = l.Reader
		}
		if c, ok := r.(interface{ Close() }); ok {
			c.Close()
		}
		delete(p.readers, url)
	}
}

type limitedReader struct {
	Reader
	limiter *rate.Limiter
}

func (l *limitedReader) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return l.Reader.CallContract(ctx, msg, blockNumber)
}

func (l *limitedReader) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return l.Reader.TransactionReceipt(ctx, hash)
}
