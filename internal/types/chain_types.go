// Package types contains shared type definitions used across multiple packages
package types

import (
	"fmt"
	"strings"
)

// NetworkName is the network key a chain is known by in the chain list
type NetworkName string

// Supported networks. Polygon is keyed as "matic" by the chain list provider.
const (
	NetworkArbitrum     NetworkName = "arbitrum-one"
	NetworkArbitrumNova NetworkName = "arbitrum-nova"
	NetworkBase         NetworkName = "base"
	NetworkLinea        NetworkName = "linea-mainnet"
	NetworkOptimism     NetworkName = "optimism"
	NetworkAvalanche    NetworkName = "avalanche"
	NetworkZora         NetworkName = "zora"
	NetworkScroll       NetworkName = "scroll"
	NetworkPolygon      NetworkName = "matic"
	NetworkPolygonZkEVM NetworkName = "polygon-zkevm"
	NetworkMantle       NetworkName = "mantle"
	NetworkBSC          NetworkName = "bsc"
	NetworkZkSync       NetworkName = "zksync-era"
	NetworkCelo         NetworkName = "celo"
	NetworkGnosis       NetworkName = "gnosis"
)

// ProtocolKind selects the interoperability protocol a contract speaks
type ProtocolKind string

const (
	ProtocolLayerZero ProtocolKind = "layerzero"
	ProtocolHyperlane ProtocolKind = "hyperlane"
)

// ParseProtocol converts user input into a ProtocolKind
func ParseProtocol(s string) (ProtocolKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "layerzero", "lz":
		return ProtocolLayerZero, nil
	case "hyperlane":
		return ProtocolHyperlane, nil
	default:
		return "", fmt.Errorf("unknown protocol %q", s)
	}
}

// ChainDescriptor describes one chain from the chain list
type ChainDescriptor struct {
	ChainID           int64       `json:"chainId" toml:"chain_id"`
	Name              string      `json:"name" toml:"name"`
	Network           NetworkName `json:"network" toml:"network"`
	LZChainID         *uint16     `json:"lzChain,omitempty" toml:"lz_chain_id"`
	HyperlaneChainID  *uint32     `json:"hyperlaneChain,omitempty" toml:"hyperlane_chain_id"`
	NativeTokenSymbol string      `json:"token" toml:"token"`
	RPCURL            string      `json:"rpcUrl" toml:"rpc_url"`
}

// SupportsProtocol reports whether the chain has a route id for the protocol
func (c ChainDescriptor) SupportsProtocol(p ProtocolKind) bool {
	switch p {
	case ProtocolLayerZero:
		return c.LZChainID != nil
	case ProtocolHyperlane:
		return c.HyperlaneChainID != nil
	}
	return false
}

// IsPolygon reports whether the chain is Polygon PoS
func (c ChainDescriptor) IsPolygon() bool {
	return c.Network == NetworkPolygon
}

// LZ returns a pointer suitable for ChainDescriptor.LZChainID
func LZ(id uint16) *uint16 { return &id }

// Hyperlane returns a pointer suitable for ChainDescriptor.HyperlaneChainID
func Hyperlane(id uint32) *uint32 { return &id }
