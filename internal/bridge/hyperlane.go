package bridge

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"

	"github.com/yourorg/omnimint-bridge/internal/contracts"
	"github.com/yourorg/omnimint-bridge/internal/model"
	chain "github.com/yourorg/omnimint-bridge/internal/types"
)

// DefaultMintBatchSize is the number of tokens minted per Hyperlane mint call
const DefaultMintBatchSize = 1

// HyperlaneAdapter speaks to the Hyperlane ERC721 router contract
type HyperlaneAdapter struct {
	batchSize int64
}

// NewHyperlaneAdapter creates the adapter; batchSize below one falls back to the default
func NewHyperlaneAdapter(batchSize int64) *HyperlaneAdapter {
	if batchSize < 1 {
		batchSize = DefaultMintBatchSize
	}
	return &HyperlaneAdapter{batchSize: batchSize}
}

func (a *HyperlaneAdapter) Kind() chain.ProtocolKind { return chain.ProtocolHyperlane }

// PrepareMint always goes through batchMintWithReferrer; a missing referrer is sent as the zero address
func (a *HyperlaneAdapter) PrepareMint(ctx context.Context, r ethereum.ContractCaller, contract, sender common.Address, referrer *common.Address) (Call, error) {
	fee, err := callUint256(ctx, r, contracts.HyperlaneABI, contract, contracts.HLMintFee)
	if err != nil {
		return Call{}, err
	}

	var ref common.Address
	if referrer != nil {
		ref = *referrer
	}

	count := big.NewInt(a.batchSize)
	data, err := contracts.HyperlaneABI.Pack(contracts.HLBatchMintWithReferrer, count, ref)
	if err != nil {
		return Call{}, fmt.Errorf("pack batchMintWithReferrer: %w", err)
	}

	value := new(big.Int).Mul(fee, count)
	return Call{To: contract, Value: value, Data: data, Method: contracts.HLBatchMintWithReferrer}, nil
}

func (a *HyperlaneAdapter) PrepareBridge(ctx context.Context, r ethereum.ContractCaller, req model.TransactionRequest, sender common.Address) (Call, error) {
	if req.ChainToSend.HyperlaneChainID == nil {
		return Call{}, fmt.Errorf("%w: %s has no Hyperlane domain", ErrUnsupportedRoute, req.ChainToSend.Name)
	}
	dst := *req.ChainToSend.HyperlaneChainID

	tokenID, err := requireTokenID(req)
	if err != nil {
		return Call{}, err
	}

	messageFee, err := callUint256(ctx, r, contracts.HyperlaneABI, req.ContractAddress, contracts.HLGetHyperlaneMessageFee, dst)
	if err != nil {
		return Call{}, err
	}
	bridgeFee, err := callUint256(ctx, r, contracts.HyperlaneABI, req.ContractAddress, contracts.HLBridgeFee)
	if err != nil {
		return Call{}, err
	}

	data, err := contracts.HyperlaneABI.Pack(contracts.HLTransferRemote, dst, contracts.RecipientBytes32(sender), tokenID)
	if err != nil {
		return Call{}, fmt.Errorf("pack transferRemote: %w", err)
	}

	value := new(big.Int).Add(messageFee, bridgeFee)
	return Call{To: req.ContractAddress, Value: value, Data: data, Method: contracts.HLTransferRemote}, nil
}

func (a *HyperlaneAdapter) PrepareClaim(contract common.Address) (Call, error) {
	data, err := contracts.HyperlaneABI.Pack(contracts.HLClaimRefEarnings)
	if err != nil {
		return Call{}, fmt.Errorf("pack claimRefEarnings: %w", err)
	}
	return Call{To: contract, Value: new(big.Int), Data: data, Method: contracts.HLClaimRefEarnings}, nil
}

func (a *HyperlaneAdapter) ReadEarned(ctx context.Context, r ethereum.ContractCaller, contract, account common.Address) (*big.Int, error) {
	return callUint256(ctx, r, contracts.HyperlaneABI, contract, contracts.HLRefAmountToClaim, account)
}
