package bridge

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"github.com/yourorg/omnimint-bridge/internal/contracts"
	"github.com/yourorg/omnimint-bridge/internal/model"
	chain "github.com/yourorg/omnimint-bridge/internal/types"
)

// LayerZeroAdapter speaks to the ONFT contract
type LayerZeroAdapter struct {
	prices PriceSource
}

// NewLayerZeroAdapter creates the adapter. prices is used to size refuel airdrops.
func NewLayerZeroAdapter(prices PriceSource) *LayerZeroAdapter {
	return &LayerZeroAdapter{prices: prices}
}

func (a *LayerZeroAdapter) Kind() chain.ProtocolKind { return chain.ProtocolLayerZero }

func (a *LayerZeroAdapter) PrepareMint(ctx context.Context, r ethereum.ContractCaller, contract, sender common.Address, referrer *common.Address) (Call, error) {
	fee, err := callUint256(ctx, r, contracts.LayerZeroABI, contract, contracts.LZMintFee)
	if err != nil {
		return Call{}, err
	}

	method := contracts.LZMint
	args := []interface{}{}
	if referrer != nil {
		method = contracts.LZMintWithReferrer
		args = append(args, *referrer)
	}

	data, err := contracts.LayerZeroABI.Pack(method, args...)
	if err != nil {
		return Call{}, fmt.Errorf("pack %s: %w", method, err)
	}
	return Call{To: contract, Value: fee, Data: data, Method: contracts.LayerZeroABI.Methods[method].Sig}, nil
}

func (a *LayerZeroAdapter) PrepareBridge(ctx context.Context, r ethereum.ContractCaller, req model.TransactionRequest, sender common.Address) (Call, error) {
	if req.ChainToSend.LZChainID == nil {
		return Call{}, fmt.Errorf("%w: %s has no LayerZero chain id", ErrUnsupportedRoute, req.ChainToSend.Name)
	}
	dst := *req.ChainToSend.LZChainID

	tokenID, err := requireTokenID(req)
	if err != nil {
		return Call{}, err
	}

	minDstGas, err := callUint256(ctx, r, contracts.LayerZeroABI, req.ContractAddress, contracts.LZMinDstGasLookup, dst, contracts.LZVersion)
	if err != nil {
		return Call{}, err
	}

	adapterParams, err := a.adapterParams(ctx, req, minDstGas, sender)
	if err != nil {
		return Call{}, err
	}

	toAddress := contracts.PackToAddress(sender)
	nativeFee, err := a.estimateSendFee(ctx, r, req.ContractAddress, dst, toAddress, tokenID, adapterParams)
	if err != nil {
		return Call{}, err
	}

	data, err := contracts.LayerZeroABI.Pack(contracts.LZSendFrom,
		sender, dst, toAddress, tokenID, sender, common.Address{}, adapterParams)
	if err != nil {
		return Call{}, fmt.Errorf("pack sendFrom: %w", err)
	}

	return Call{To: req.ContractAddress, Value: nativeFee, Data: data, Method: contracts.LZSendFrom}, nil
}

// adapterParams builds version 1 params, or version 2 with a native airdrop when refuel is requested
func (a *LayerZeroAdapter) adapterParams(ctx context.Context, req model.TransactionRequest, minDstGas *big.Int, sender common.Address) ([]byte, error) {
	if !req.Refuel {
		return contracts.PackAdapterParams(minDstGas)
	}
	if a.prices == nil {
		return nil, fmt.Errorf("%w: no price source for refuel", ErrPriceUnavailable)
	}

	symbol := req.ChainToSend.NativeTokenSymbol
	price, err := a.prices.FetchPrice(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrPriceUnavailable, symbol, err)
	}

	refuelWei, err := RefuelWei(req.RefuelCostUSD, price)
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"chain":      req.ChainToSend.Name,
		"refuel_usd": req.RefuelCostUSD.String(),
		"price":      price.String(),
		"refuel_wei": refuelWei.String(),
	}).Debug("Refuel airdrop sized")

	return contracts.PackAirdropAdapterParams(minDstGas, refuelWei, sender)
}

func (a *LayerZeroAdapter) estimateSendFee(ctx context.Context, r ethereum.ContractCaller, contract common.Address, dst uint16, toAddress []byte, tokenID *big.Int, adapterParams []byte) (*big.Int, error) {
	data, err := contracts.LayerZeroABI.Pack(contracts.LZEstimateSendFee, dst, toAddress, tokenID, false, adapterParams)
	if err != nil {
		return nil, fmt.Errorf("pack estimateSendFee: %w", err)
	}
	out, err := r.CallContract(ctx, ethereum.CallMsg{To: &contract, Data: data}, nil)
	if err != nil {
		return nil, transportError(contracts.LZEstimateSendFee, err)
	}

	// (nativeFee, zroFee); only the native fee is paid
	return contracts.UnpackUint256(contracts.LayerZeroABI, contracts.LZEstimateSendFee, out)
}

func (a *LayerZeroAdapter) PrepareClaim(contract common.Address) (Call, error) {
	data, err := contracts.LayerZeroABI.Pack(contracts.LZClaimReferrerEarnings)
	if err != nil {
		return Call{}, fmt.Errorf("pack claimReferrerEarnings: %w", err)
	}
	return Call{To: contract, Value: new(big.Int), Data: data, Method: contracts.LZClaimReferrerEarnings}, nil
}

func (a *LayerZeroAdapter) ReadEarned(ctx context.Context, r ethereum.ContractCaller, contract, account common.Address) (*big.Int, error) {
	return callUint256(ctx, r, contracts.LayerZeroABI, contract, contracts.LZReferrersEarnedAmount, account)
}
