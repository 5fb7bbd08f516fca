package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// jsonRPCServer answers eth_call with a fixed word and counts requests
func jsonRPCServer(t *testing.T, result string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     json.RawMessage `json:"id"`
			Method string          `json:"method"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		calls.Add(1)

		w.Header().Set("Content-Type", "application/json")
		if req.Method != "eth_call" {
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"jsonrpc": "2.0", "id": req.ID,
				"error": map[string]interface{}{"code": -32601, "message": "method not found"},
			})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"jsonrpc": "2.0", "id": req.ID, "result": result})
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestPool_CallerOverHTTP(t *testing.T) {
	word := "0x00000000000000000000000000000000000000000000000014d1120d7b160000"
	srv, calls := jsonRPCServer(t, word)

	p := NewPool()
	defer p.Close()

	caller, err := p.Caller(context.Background(), srv.URL)
	require.NoError(t, err)

	to := common.HexToAddress("0x991fC265f163fc33328FBD2b7C8aa9B77840Ed42")
	out, err := caller.CallContract(context.Background(), ethereum.CallMsg{To: &to, Data: []byte{1, 2, 3, 4}}, nil)
	require.NoError(t, err)
	assert.Equal(t, common.FromHex(word), out)
	assert.Equal(t, int32(1), calls.Load())
}

func TestPool_CachesPerURL(t *testing.T) {
	var dials int
	p := NewPool().WithDialer(func(ctx context.Context, rpcURL string) (Reader, error) {
		dials++
		if rpcURL == "https://down.rpc" {
			return nil, errors.New("connection refused")
		}
		return &fakeBackend{}, nil
	})

	a1, err := p.Reader(context.Background(), "https://a.rpc")
	require.NoError(t, err)
	a2, err := p.Reader(context.Background(), "https://a.rpc")
	require.NoError(t, err)
	assert.Same(t, a1, a2)

	_, err = p.Reader(context.Background(), "https://b.rpc")
	require.NoError(t, err)
	assert.Equal(t, 2, dials)

	_, err = p.Caller(context.Background(), "https://down.rpc")
	assert.Error(t, err)
	_, err = p.Caller(context.Background(), "https://down.rpc")
	assert.Error(t, err, "failed dials are not cached")
	assert.Equal(t, 4, dials)

	_, err = p.Reader(context.Background(), "")
	assert.Error(t, err)
}

func TestPool_RateLimitRespectsContext(t *testing.T) {
	p := NewPool().
		WithDialer(func(context.Context, string) (Reader, error) { return &fakeBackend{}, nil }).
		WithRateLimit(0.001, 1)

	r, err := p.Reader(context.Background(), "https://slow.rpc")
	require.NoError(t, err)

	_, err = r.CallContract(context.Background(), ethereum.CallMsg{}, nil)
	require.NoError(t, err, "burst allows the first call")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = r.CallContract(ctx, ethereum.CallMsg{}, nil)
	assert.Error(t, err)
}

func TestPool_Receipt(t *testing.T) {
	p := NewPool().WithDialer(func(context.Context, string) (Reader, error) { return &fakeBackend{}, nil })
	_, err := p.Receipt(context.Background(), "https://a.rpc", common.Hash{1})
	assert.ErrorIs(t, err, ethereum.NotFound)
}
