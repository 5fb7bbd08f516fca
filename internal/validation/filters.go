// Package validation checks requests and chain descriptors before they reach the orchestrator.
package validation

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/yourorg/omnimint-bridge/internal/model"
	"github.com/yourorg/omnimint-bridge/internal/types"
)

// RefuelPresets are the refuel budgets offered in USD
var RefuelPresets = []decimal.Decimal{
	decimal.RequireFromString("0.25"),
	decimal.RequireFromString("0.5"),
	decimal.RequireFromString("0.75"),
	decimal.NewFromInt(1),
}

// DefaultRefuelCostUSD is the preselected refuel budget
var DefaultRefuelCostUSD = RefuelPresets[0]

// Operation selects which request fields are required
type Operation string

const (
	OpMint     Operation = "mint"
	OpBridge   Operation = "bridge"
	OpEstimate Operation = "estimate"
)

var (
	ErrInvalidRequest = errors.New("invalid request")
	ErrInvalidChain   = errors.New("invalid chain descriptor")
)

// Options holds configuration for request validation
type Options struct {
	// MaxRefuelCostUSD caps the refuel budget; zero disables the cap
	MaxRefuelCostUSD decimal.Decimal

	// RequirePreset rejects refuel costs outside RefuelPresets
	RequirePreset bool
}

// DefaultOptions accepts any non-negative refuel cost up to $100
func DefaultOptions() Options {
	return Options{
		MaxRefuelCostUSD: decimal.NewFromInt(100),
	}
}

// ValidateRequest checks a request for the given operation with default options
func ValidateRequest(req model.TransactionRequest, op Operation) error {
	return ValidateRequestWithOptions(req, op, DefaultOptions())
}

// ValidateRequestWithOptions checks a request for the given operation
func ValidateRequestWithOptions(req model.TransactionRequest, op Operation, opts Options) error {
	if req.Protocol != types.ProtocolLayerZero && req.Protocol != types.ProtocolHyperlane {
		return fmt.Errorf("%w: unknown protocol %q", ErrInvalidRequest, req.Protocol)
	}

	if op != OpEstimate {
		if req.ContractAddress == (common.Address{}) {
			return fmt.Errorf("%w: contract address is required", ErrInvalidRequest)
		}
		if err := ValidateChain(req.ChainToSend); err != nil {
			return fmt.Errorf("%w: chainToSend: %w", ErrInvalidRequest, err)
		}
	}

	if req.Referrer != nil && *req.Referrer == (common.Address{}) {
		return fmt.Errorf("%w: referrer cannot be the zero address", ErrInvalidRequest)
	}

	if op == OpMint {
		return nil
	}

	if req.TokenID == nil {
		return fmt.Errorf("%w: tokenId is required", ErrInvalidRequest)
	}
	if req.TokenID.Sign() < 0 {
		return fmt.Errorf("%w: negative tokenId %s", ErrInvalidRequest, req.TokenID)
	}

	if req.Refuel {
		if req.Protocol != types.ProtocolLayerZero {
			return fmt.Errorf("%w: refuel is only available over %s", ErrInvalidRequest, types.ProtocolLayerZero)
		}
		if err := ValidateRefuelCost(req.RefuelCostUSD, opts); err != nil {
			return err
		}
	}
	return nil
}

// ValidateRefuelCost rejects negative, over-cap and (optionally) non-preset costs
func ValidateRefuelCost(cost decimal.Decimal, opts Options) error {
	if cost.IsNegative() {
		return fmt.Errorf("%w: negative refuel cost %s", ErrInvalidRequest, cost)
	}
	if opts.MaxRefuelCostUSD.IsPositive() && cost.GreaterThan(opts.MaxRefuelCostUSD) {
		return fmt.Errorf("%w: refuel cost %s above cap %s", ErrInvalidRequest, cost, opts.MaxRefuelCostUSD)
	}
	if opts.RequirePreset && !IsPreset(cost) {
		return fmt.Errorf("%w: refuel cost %s is not a preset", ErrInvalidRequest, cost)
	}
	return nil
}

// IsPreset reports whether cost is one of RefuelPresets
func IsPreset(cost decimal.Decimal) bool {
	for _, p := range RefuelPresets {
		if p.Equal(cost) {
			return true
		}
	}
	return false
}

// ValidateChain checks a single chain descriptor
func ValidateChain(c types.ChainDescriptor) error {
	if c.ChainID <= 0 {
		return fmt.Errorf("%w: chain id %d", ErrInvalidChain, c.ChainID)
	}
	if c.Name == "" || c.Network == "" {
		return fmt.Errorf("%w: chain %d has no name or network", ErrInvalidChain, c.ChainID)
	}
	if c.NativeTokenSymbol == "" {
		return fmt.Errorf("%w: %s has no native token symbol", ErrInvalidChain, c.Name)
	}
	if c.LZChainID == nil && c.HyperlaneChainID == nil {
		return fmt.Errorf("%w: %s supports no protocol", ErrInvalidChain, c.Name)
	}
	return nil
}

// FilterChains removes descriptors that fail validation or share a chain id
// with an earlier entry. It keeps input order.
func FilterChains(chains []types.ChainDescriptor) []types.ChainDescriptor {
	seen := make(map[int64]bool, len(chains))
	valid := make([]types.ChainDescriptor, 0, len(chains))
	for _, c := range chains {
		if err := ValidateChain(c); err != nil {
			logrus.WithField("chain", c.Name).Debugf("Filtered chain: %v", err)
			continue
		}
		if seen[c.ChainID] {
			logrus.WithField("chain", c.Name).Debug("Filtered duplicate chain id")
			continue
		}
		seen[c.ChainID] = true
		valid = append(valid, c)
	}
	return valid
}

// DestinationsFor returns the chains reachable over protocol, excluding the source chain
func DestinationsFor(chains []types.ChainDescriptor, protocol types.ProtocolKind, sourceChainID int64) []types.ChainDescriptor {
	out := make([]types.ChainDescriptor, 0, len(chains))
	for _, c := range chains {
		if c.ChainID != sourceChainID && c.SupportsProtocol(protocol) {
			out = append(out, c)
		}
	}
	return out
}
