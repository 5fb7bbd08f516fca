package bridge

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"

	chain "github.com/yourorg/omnimint-bridge/internal/types"
)

// Call is a contract write ready for gas estimation and submission
type Call struct {
	To       common.Address
	Value    *big.Int
	Data     []byte
	GasLimit uint64

	// Method is the ABI method name, for logs
	Method string
}

// Provider is the signer-capable connection owned by the wallet collaborator.
// It is borrowed for the duration of one call.
type Provider interface {
	ethereum.ContractCaller

	// Address returns the active signer address
	Address() common.Address

	// Balance returns the native balance of the signer
	Balance(ctx context.Context) (*big.Int, error)

	EstimateGas(ctx context.Context, call Call) (uint64, error)

	// Send signs and submits the call, returning its hash
	Send(ctx context.Context, call Call) (common.Hash, error)

	// TransactionReceipt returns ethereum.NotFound while the transaction is pending
	TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
}

// CallerSource hands out signer-independent read-only callers keyed by RPC URL
type CallerSource interface {
	Caller(ctx context.Context, rpcURL string) (ethereum.ContractCaller, error)
}

// PriceSource quotes native tokens in USD
type PriceSource interface {
	FetchPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
}

// AddressBook resolves the deployed contract of a protocol on a network
type AddressBook interface {
	ContractAddress(protocol chain.ProtocolKind, network chain.NetworkName) (common.Address, bool)
}

// RouteTable reports whether a protocol can carry a message between two networks
type RouteTable interface {
	Available(protocol chain.ProtocolKind, from, to chain.NetworkName) bool
}
