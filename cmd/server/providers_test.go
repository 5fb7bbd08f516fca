package main

import (
	"context"
	"math/big"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/omnimint-bridge/internal/rpc"
	"github.com/yourorg/omnimint-bridge/internal/signer"
	"github.com/yourorg/omnimint-bridge/internal/types"
)

const hardhatKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

// chainIDBackend only answers ChainID; the providers never touch anything else
type chainIDBackend struct {
	rpc.Backend
	id int64
}

func (b chainIDBackend) ChainID(context.Context) (*big.Int, error) { return big.NewInt(b.id), nil }

func testDial(t *testing.T, ids map[string]int64, block map[string]chan struct{}, dials *int32) dialFunc {
	t.Helper()
	key, err := signer.FromPrivateKey(hardhatKey)
	require.NoError(t, err)

	return func(ctx context.Context, rpcURL string) (*rpc.Client, error) {
		atomic.AddInt32(dials, 1)
		if ch, ok := block[rpcURL]; ok {
			select {
			case <-ch:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		return rpc.NewClient(ctx, chainIDBackend{id: ids[rpcURL]}, key)
	}
}

func TestSignerProviders_SlowDialDoesNotBlockOtherChains(t *testing.T) {
	slow := types.ChainDescriptor{ChainID: 8453, Name: "Base", RPCURL: "http://slow.test"}
	fast := types.ChainDescriptor{ChainID: 42220, Name: "Celo", RPCURL: "http://fast.test"}

	release := make(chan struct{})
	var dials int32
	providers := newDialProviders(testDial(t,
		map[string]int64{slow.RPCURL: slow.ChainID, fast.RPCURL: fast.ChainID},
		map[string]chan struct{}{slow.RPCURL: release},
		&dials,
	))

	slowDone := make(chan error, 1)
	go func() {
		_, err := providers.Provider(context.Background(), slow)
		slowDone <- err
	}()

	require.Eventually(t, func() bool { return atomic.LoadInt32(&dials) == 1 }, time.Second, 5*time.Millisecond)

	fastDone := make(chan error, 1)
	go func() {
		_, err := providers.Provider(context.Background(), fast)
		fastDone <- err
	}()

	select {
	case err := <-fastDone:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("provider lookup waited on another chain's dial")
	}

	close(release)
	require.NoError(t, <-slowDone)

	p1, err := providers.Provider(context.Background(), fast)
	require.NoError(t, err)
	p2, err := providers.Provider(context.Background(), fast)
	require.NoError(t, err)
	assert.Same(t, p1, p2)
	assert.Equal(t, int32(2), atomic.LoadInt32(&dials), "clients are cached per chain")
}

func TestSignerProviders_ChainIDMismatch(t *testing.T) {
	var dials int32
	providers := newDialProviders(testDial(t, map[string]int64{"http://base.test": 1}, nil, &dials))

	_, err := providers.Provider(context.Background(), types.ChainDescriptor{ChainID: 8453, Name: "Base", RPCURL: "http://base.test"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chain id")

	_, err = providers.Provider(context.Background(), types.ChainDescriptor{ChainID: 8453, Name: "Base"})
	assert.Error(t, err)
}
