// Package bridge orchestrates mint, bridge and referral-claim transactions
// against the LayerZero and Hyperlane flavours of the omnichain NFT contract.
package bridge

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/yourorg/omnimint-bridge/internal/contracts"
	"github.com/yourorg/omnimint-bridge/internal/model"
	chain "github.com/yourorg/omnimint-bridge/internal/types"
)

// NativeDecimals is the decimals of every supported chain's native token
const NativeDecimals = 18

// Adapter is the protocol-specific half of a transaction: it reads fees,
// encodes parameters and picks the contract entry point. Submission is shared.
type Adapter interface {
	Kind() chain.ProtocolKind

	// PrepareMint reads the mint fee and builds the mint call
	PrepareMint(ctx context.Context, r ethereum.ContractCaller, contract, sender common.Address, referrer *common.Address) (Call, error)

	// PrepareBridge resolves the destination route, reads fees and builds the
	// bridge call. Call.Value is the full native fee.
	PrepareBridge(ctx context.Context, r ethereum.ContractCaller, req model.TransactionRequest, sender common.Address) (Call, error)

	PrepareClaim(contract common.Address) (Call, error)

	// ReadEarned returns the unclaimed referral amount in wei
	ReadEarned(ctx context.Context, r ethereum.ContractCaller, contract, account common.Address) (*big.Int, error)
}

// callUint256 performs a view call returning a single uint256
func callUint256(ctx context.Context, r ethereum.ContractCaller, a abi.ABI, contract common.Address, method string, args ...interface{}) (*big.Int, error) {
	data, err := a.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	out, err := r.CallContract(ctx, ethereum.CallMsg{To: &contract, Data: data}, nil)
	if err != nil {
		return nil, transportError(method, err)
	}
	return contracts.UnpackUint256(a, method, out)
}

// RefuelWei converts a USD refuel budget into destination native wei.
// The token amount is rounded to 8 decimals before scaling to 18.
func RefuelWei(costUSD, priceUSD decimal.Decimal) (*big.Int, error) {
	if !priceUSD.IsPositive() {
		return nil, fmt.Errorf("%w: non-positive price %s", ErrPriceUnavailable, priceUSD)
	}
	if costUSD.IsNegative() {
		return nil, fmt.Errorf("negative refuel cost %s", costUSD)
	}
	amount := costUSD.DivRound(priceUSD, 8)
	return amount.Shift(NativeDecimals).BigInt(), nil
}

// WeiToNative converts wei into a native token decimal
func WeiToNative(wei *big.Int) decimal.Decimal {
	if wei == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(wei, -NativeDecimals)
}

func requireTokenID(req model.TransactionRequest) (*big.Int, error) {
	if req.TokenID == nil || req.TokenID.Sign() < 0 {
		return nil, fmt.Errorf("token id is required")
	}
	return req.TokenID, nil
}
