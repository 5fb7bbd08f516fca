// Package rpc connects the orchestrator to EVM JSON-RPC endpoints: a
// signer-backed provider for writes and a pool of read-only callers.
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

	"github.com/yourorg/omnimint-bridge/internal/bridge"
)

// Backend is the subset of *ethclient.Client the provider needs
type Backend interface {
	ethereum.ContractCaller
	ethereum.GasEstimator
	ethereum.TransactionSender
	ethereum.TransactionReader

	ChainID(ctx context.Context) (*big.Int, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
}

// TxSigner signs transactions for a single account
type TxSigner interface {
	Address() common.Address
	SignTx(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error)
}

// Client is a bridge.Provider over one chain's endpoint
type Client struct {
	backend Backend
	signer  TxSigner
	chainID *big.Int

	// serializes nonce selection and submission
	sendMu sync.Mutex
}

var _ bridge.Provider = (*Client)(nil)

// Dial connects to rpcURL and resolves its chain id
func Dial(ctx context.Context, rpcURL string, signer TxSigner) (*Client, error) {
	cli, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial rpc: %w", err)
	}
	c, err := NewClient(ctx, cli, signer)
	if err != nil {
		cli.Close()
		return nil, err
	}
	return c, nil
}

// NewClient wraps an existing backend
func NewClient(ctx context.Context, backend Backend, signer TxSigner) (*Client, error) {
	if signer == nil {
		return nil, fmt.Errorf("signer is required")
	}
	chainID, err := backend.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch chain id: %w", err)
	}
	return &Client{backend: backend, signer: signer, chainID: chainID}, nil
}

func (c *Client) ChainID() *big.Int { return new(big.Int).Set(c.chainID) }

// Close releases the backend connection if it holds one
func (c *Client) Close() {
	if cl, ok := c.backend.(interface{ Close() }); ok {
		cl.Close()
	}
}

func (c *Client) Address() common.Address { return c.signer.Address() }

func (c *Client) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	return c.backend.CallContract(ctx, msg, blockNumber)
}

func (c *Client) Balance(ctx context.Context) (*big.Int, error) {
	return c.backend.BalanceAt(ctx, c.signer.Address(), nil)
}

func (c *Client) EstimateGas(ctx context.Context, call bridge.Call) (uint64, error) {
	to := call.To
	return c.backend.EstimateGas(ctx, ethereum.CallMsg{
		From:  c.signer.Address(),
		To:    &to,
		Value: call.Value,
		Data:  call.Data,
	})
}

// Send builds, signs and submits the call. London chains get a dynamic fee
// transaction with a fee cap of twice the base fee plus tip; others a legacy one.
func (c *Client) Send(ctx context.Context, call bridge.Call) (common.Hash, error) {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	from := c.signer.Address()
	nonce, err := c.backend.PendingNonceAt(ctx, from)
	if err != nil {
		return common.Hash{}, fmt.Errorf("pending nonce: %w", err)
	}

	tx, err := c.buildTx(ctx, nonce, call)
	if err != nil {
		return common.Hash{}, err
	}

	signed, err := c.signer.SignTx(tx, c.chainID)
	if err != nil {
		return common.Hash{}, fmt.Errorf("sign: %w", err)
	}

	if err := c.backend.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, fmt.Errorf("send transaction: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"tx":       signed.Hash().Hex(),
		"chain_id": c.chainID.String(),
		"nonce":    nonce,
		"type":     signed.Type(),
	}).Debug("Transaction broadcast")

	return signed.Hash(), nil
}

func (c *Client) buildTx(ctx context.Context, nonce uint64, call bridge.Call) (*types.Transaction, error) {
	to := call.To
	value := call.Value
	if value == nil {
		value = new(big.Int)
	}

	head, err := c.backend.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("latest header: %w", err)
	}

	if head.BaseFee == nil {
		gasPrice, err := c.backend.SuggestGasPrice(ctx)
		if err != nil {
			return nil, fmt.Errorf("suggest gas price: %w", err)
		}
		return types.NewTx(&types.LegacyTx{
			Nonce:    nonce,
			GasPrice: gasPrice,
			Gas:      call.GasLimit,
			To:       &to,
			Value:    value,
			Data:     call.Data,
		}), nil
	}

	tip, err := c.backend.SuggestGasTipCap(ctx)
	if err != nil {
		return nil, fmt.Errorf("suggest gas tip: %w", err)
	}
	feeCap := new(big.Int).Add(tip, new(big.Int).Mul(head.BaseFee, big.NewInt(2)))

	return types.NewTx(&types.DynamicFeeTx{
		ChainID:   c.chainID,
		Nonce:     nonce,
		GasTipCap: tip,
		GasFeeCap: feeCap,
		Gas:       call.GasLimit,
		To:        &to,
		Value:     value,
		Data:      call.Data,
	}), nil
}

func (c *Client) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	return c.backend.TransactionReceipt(ctx, hash)
}
