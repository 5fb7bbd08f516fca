package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/omnimint-bridge/internal/types"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 10*time.Second, cfg.PriceTimeout)
	assert.Equal(t, time.Second, cfg.PriceBackoff)
	assert.Equal(t, 15*time.Second, cfg.PriceDeadline)
	assert.Equal(t, 60*time.Second, cfg.ConfirmationTimeout)
	assert.Equal(t, 12000, cfg.GasMarginBps)
	assert.Equal(t, 1, cfg.MintBatchSize)
	assert.Equal(t, 0.25, cfg.DefaultRefuelCostUSD)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("CONFIRMATION_TIMEOUT", "90s")
	t.Setenv("GAS_MARGIN_BPS", "15000")
	t.Setenv("RATE_LIMIT_RPS", "2.5")
	t.Setenv("MINT_BATCH_SIZE", "not-a-number")

	cfg := Load()
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 90*time.Second, cfg.ConfirmationTimeout)
	assert.Equal(t, 15000, cfg.GasMarginBps)
	assert.Equal(t, 2.5, cfg.RateLimitRPS)
	assert.Equal(t, 1, cfg.MintBatchSize, "unparsable values fall back to the default")
}

func TestLoad_NonPositiveCountsFallBack(t *testing.T) {
	t.Setenv("GAS_MARGIN_BPS", "-1")
	t.Setenv("MINT_BATCH_SIZE", "0")
	t.Setenv("REPORT_BATCH_SIZE", "-20")

	cfg := Load()
	assert.Equal(t, 12000, cfg.GasMarginBps, "a negative margin must not wrap to a huge uint64")
	assert.Equal(t, 1, cfg.MintBatchSize)
	assert.Equal(t, 20, cfg.ReportBatchSize)
}

func TestGetEnvAsBool(t *testing.T) {
	t.Setenv("FLAG_ON", "true")
	t.Setenv("FLAG_BAD", "maybe")
	assert.True(t, GetEnvAsBool("FLAG_ON", false))
	assert.True(t, GetEnvAsBool("FLAG_BAD", true))
	assert.False(t, GetEnvAsBool("FLAG_MISSING", false))
}

func TestDefaultRegistry(t *testing.T) {
	r, err := DefaultRegistry()
	require.NoError(t, err)
	assert.Len(t, r.Chains(), 15)

	polygon, ok := r.Chain(types.NetworkPolygon)
	require.True(t, ok)
	assert.Equal(t, int64(137), polygon.ChainID)
	require.NotNil(t, polygon.LZChainID)
	assert.Equal(t, uint16(109), *polygon.LZChainID)
	assert.True(t, polygon.IsPolygon())

	celo, ok := r.ChainByID(42220)
	require.True(t, ok)
	assert.Nil(t, celo.LZChainID)
	require.NotNil(t, celo.HyperlaneChainID)
	assert.Equal(t, uint32(42220), *celo.HyperlaneChainID)
}

func TestRegistry_ContractAddress(t *testing.T) {
	r, err := DefaultRegistry()
	require.NoError(t, err)

	tests := []struct {
		protocol types.ProtocolKind
		network  types.NetworkName
		want     string
	}{
		{types.ProtocolLayerZero, types.NetworkBase, "0x991fC265f163fc33328FBD2b7C8aa9B77840Ed42"},
		{types.ProtocolLayerZero, types.NetworkArbitrum, "0x809E8c06e6110CD6a055a7d2044EF7e0B29Ce2e3"},
		{types.ProtocolLayerZero, types.NetworkAvalanche, "0x7a9ed9A5EF8dF626Bf934AaCe84c66267b37842c"},
		{types.ProtocolLayerZero, types.NetworkZkSync, "0x569aA521b05752D22de8B3DBb91D92f65baa7E6f"},
		{types.ProtocolLayerZero, types.NetworkCelo, ""},
		{types.ProtocolHyperlane, types.NetworkGnosis, "0x7e67c93cd0059B9957dF63Df6418B394D1070627"},
		{types.ProtocolHyperlane, types.NetworkZora, ""},
	}

	for _, tt := range tests {
		t.Run(string(tt.protocol)+"/"+string(tt.network), func(t *testing.T) {
			addr, ok := r.ContractAddress(tt.protocol, tt.network)
			if tt.want == "" {
				assert.False(t, ok, "placeholder means not deployed")
				return
			}
			require.True(t, ok)
			assert.Equal(t, common.HexToAddress(tt.want), addr)
		})
	}
}

func TestRegistry_Available(t *testing.T) {
	r, err := DefaultRegistry()
	require.NoError(t, err)

	lz := types.ProtocolLayerZero
	hl := types.ProtocolHyperlane

	assert.True(t, r.Available(lz, types.NetworkBase, types.NetworkZora))
	assert.False(t, r.Available(lz, types.NetworkScroll, types.NetworkZora), "listed as unavailable")
	assert.False(t, r.Available(lz, types.NetworkZora, types.NetworkBSC))
	assert.True(t, r.Available(lz, types.NetworkBSC, types.NetworkScroll))
	assert.False(t, r.Available(lz, types.NetworkBase, types.NetworkCelo), "no LayerZero contract on celo")
	assert.False(t, r.Available(lz, types.NetworkBase, types.NetworkBase))

	assert.True(t, r.Available(hl, types.NetworkCelo, types.NetworkGnosis))
	assert.False(t, r.Available(hl, types.NetworkBase, types.NetworkZora))

	assert.Equal(t, []types.NetworkName{
		types.NetworkArbitrum, types.NetworkBase, types.NetworkOptimism, types.NetworkAvalanche,
		types.NetworkScroll, types.NetworkPolygon, types.NetworkBSC, types.NetworkCelo, types.NetworkGnosis,
	}, r.Networks(hl))
}

func TestLoadRegistry_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chains.toml")
	data := `
[[chains]]
chain_id = 8453
name = "Base"
network = "base"
lz_chain_id = 184
token = "ETH"
rpc_url = "http://localhost:8545"

[[chains]]
chain_id = 0
name = "Broken"
network = "broken"
token = "ETH"

[contracts.lz]
base = "0x991fC265f163fc33328FBD2b7C8aa9B77840Ed42"
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	r, err := LoadRegistry(path)
	require.NoError(t, err)
	require.Len(t, r.Chains(), 1, "invalid entries are dropped")

	_, ok := r.ContractAddress(types.ProtocolLayerZero, types.NetworkBase)
	assert.True(t, ok, "protocol aliases are accepted")
}

func TestLoadRegistry_Errors(t *testing.T) {
	_, err := LoadRegistry(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)

	_, err = ParseRegistry(`chains = "nope"`)
	assert.Error(t, err)

	_, err = ParseRegistry(`
[[chains]]
chain_id = 10
name = "Optimism"
network = "optimism"
lz_chain_id = 111
token = "ETH"

[contracts.layerzero]
optimism = "not-an-address"
`)
	assert.Error(t, err)

	_, err = ParseRegistry(`
[[chains]]
chain_id = 10
name = "Optimism"
network = "optimism"
lz_chain_id = 111
token = "ETH"

[contracts.wormhole]
optimism = "0x991fC265f163fc33328FBD2b7C8aa9B77840Ed42"
`)
	assert.Error(t, err)
}

func TestLoadRegistry_EmptyPathUsesDefault(t *testing.T) {
	r, err := LoadRegistry("")
	require.NoError(t, err)
	assert.NotEmpty(t, r.Chains())
}
