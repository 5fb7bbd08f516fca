package validation

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/omnimint-bridge/internal/model"
	"github.com/yourorg/omnimint-bridge/internal/types"
)

var base = types.ChainDescriptor{
	ChainID:           8453,
	Name:              "Base",
	Network:           types.NetworkBase,
	LZChainID:         types.LZ(184),
	HyperlaneChainID:  types.Hyperlane(8453),
	NativeTokenSymbol: "ETH",
}

func validBridge() model.TransactionRequest {
	return model.TransactionRequest{
		ContractAddress: common.HexToAddress("0x991fC265f163fc33328FBD2b7C8aa9B77840Ed42"),
		Protocol:        types.ProtocolLayerZero,
		ChainToSend:     base,
		TokenID:         big.NewInt(1),
		Refuel:          true,
		RefuelCostUSD:   decimal.RequireFromString("0.25"),
	}
}

func TestValidateRequest(t *testing.T) {
	zero := common.Address{}

	tests := []struct {
		name    string
		op      Operation
		mutate  func(r *model.TransactionRequest)
		wantErr string
	}{
		{name: "valid bridge", op: OpBridge, mutate: func(r *model.TransactionRequest) {}},
		{name: "mint ignores token id", op: OpMint, mutate: func(r *model.TransactionRequest) { r.TokenID = nil }},
		{name: "estimate ignores chain", op: OpEstimate, mutate: func(r *model.TransactionRequest) { r.ChainToSend = types.ChainDescriptor{} }},
		{name: "unknown protocol", op: OpBridge, mutate: func(r *model.TransactionRequest) { r.Protocol = "wormhole" }, wantErr: "unknown protocol"},
		{name: "missing contract", op: OpMint, mutate: func(r *model.TransactionRequest) { r.ContractAddress = zero }, wantErr: "contract address"},
		{name: "bad chain", op: OpBridge, mutate: func(r *model.TransactionRequest) { r.ChainToSend.NativeTokenSymbol = "" }, wantErr: "native token symbol"},
		{name: "zero referrer", op: OpMint, mutate: func(r *model.TransactionRequest) { r.Referrer = &zero }, wantErr: "referrer"},
		{name: "missing token id", op: OpBridge, mutate: func(r *model.TransactionRequest) { r.TokenID = nil }, wantErr: "tokenId is required"},
		{name: "negative token id", op: OpBridge, mutate: func(r *model.TransactionRequest) { r.TokenID = big.NewInt(-1) }, wantErr: "negative tokenId"},
		{name: "negative refuel", op: OpBridge, mutate: func(r *model.TransactionRequest) { r.RefuelCostUSD = decimal.NewFromInt(-1) }, wantErr: "negative refuel"},
		{name: "refuel over cap", op: OpBridge, mutate: func(r *model.TransactionRequest) { r.RefuelCostUSD = decimal.NewFromInt(1000) }, wantErr: "above cap"},
		{name: "non-preset accepted", op: OpBridge, mutate: func(r *model.TransactionRequest) { r.RefuelCostUSD = decimal.RequireFromString("0.33") }},
		{name: "negative refuel ignored without refuel", op: OpBridge, mutate: func(r *model.TransactionRequest) {
			r.Refuel = false
			r.RefuelCostUSD = decimal.NewFromInt(-1)
		}},
		{name: "refuel over hyperlane", op: OpBridge, mutate: func(r *model.TransactionRequest) { r.Protocol = types.ProtocolHyperlane }, wantErr: "only available"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validBridge()
			tt.mutate(&req)

			err := ValidateRequest(req, tt.op)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidRequest)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateRefuelCost_Presets(t *testing.T) {
	opts := DefaultOptions()
	opts.RequirePreset = true

	for _, p := range RefuelPresets {
		assert.NoError(t, ValidateRefuelCost(p, opts), p.String())
	}
	assert.NoError(t, ValidateRefuelCost(decimal.RequireFromString("0.50"), opts), "trailing zeros still match")
	assert.Error(t, ValidateRefuelCost(decimal.RequireFromString("0.3"), opts))

	assert.True(t, DefaultRefuelCostUSD.Equal(decimal.RequireFromString("0.25")))
	assert.Len(t, RefuelPresets, 4)
}

func TestValidateChain(t *testing.T) {
	assert.NoError(t, ValidateChain(base))

	noProtocol := base
	noProtocol.LZChainID, noProtocol.HyperlaneChainID = nil, nil
	assert.ErrorIs(t, ValidateChain(noProtocol), ErrInvalidChain)

	noID := base
	noID.ChainID = 0
	assert.ErrorIs(t, ValidateChain(noID), ErrInvalidChain)

	noName := base
	noName.Name = ""
	assert.ErrorIs(t, ValidateChain(noName), ErrInvalidChain)
}

func TestFilterChains(t *testing.T) {
	celo := types.ChainDescriptor{ChainID: 42220, Name: "Celo", Network: types.NetworkCelo, HyperlaneChainID: types.Hyperlane(42220), NativeTokenSymbol: "CELO"}
	dup := base
	dup.Name = "Base again"
	broken := types.ChainDescriptor{ChainID: 1, Name: "Broken"}

	got := FilterChains([]types.ChainDescriptor{base, broken, celo, dup})
	require.Len(t, got, 2)
	assert.Equal(t, "Base", got[0].Name)
	assert.Equal(t, "Celo", got[1].Name)

	assert.Empty(t, FilterChains(nil))
}

func TestDestinationsFor(t *testing.T) {
	celo := types.ChainDescriptor{ChainID: 42220, Name: "Celo", Network: types.NetworkCelo, HyperlaneChainID: types.Hyperlane(42220), NativeTokenSymbol: "CELO"}
	zora := types.ChainDescriptor{ChainID: 7777777, Name: "Zora", Network: types.NetworkZora, LZChainID: types.LZ(195), NativeTokenSymbol: "ETH"}
	chains := []types.ChainDescriptor{base, celo, zora}

	lz := DestinationsFor(chains, types.ProtocolLayerZero, base.ChainID)
	require.Len(t, lz, 1)
	assert.Equal(t, "Zora", lz[0].Name)

	hl := DestinationsFor(chains, types.ProtocolHyperlane, zora.ChainID)
	require.Len(t, hl, 2)
	assert.Equal(t, "Base", hl[0].Name)
	assert.Equal(t, "Celo", hl[1].Name)
}
