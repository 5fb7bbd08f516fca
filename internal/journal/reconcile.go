package journal

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/sirupsen/logrus"

	"github.com/yourorg/omnimint-bridge/internal/bridge"
	"github.com/yourorg/omnimint-bridge/internal/model"
	"github.com/yourorg/omnimint-bridge/internal/types"
)

// ReceiptSource looks a transaction up on a chain's RPC endpoint
type ReceiptSource interface {
	Receipt(ctx context.Context, rpcURL string, hash common.Hash) (*ethtypes.Receipt, error)
}

// ChainLookup resolves the network an entry was submitted on
type ChainLookup interface {
	Chain(network types.NetworkName) (types.ChainDescriptor, bool)
}

// Result summarises one reconcile pass
type Result struct {
	Checked   int `json:"checked"`
	Confirmed int `json:"confirmed"`
	Reverted  int `json:"reverted"`
	Pending   int `json:"pending"`
	Failed    int `json:"failed"`

	// Entries that settled as SentOk in this pass, as stored
	Settled []Entry `json:"settled,omitempty"`
}

// Reconcile re-checks NotConfirmed entries and settles the ones that have been mined.
// Entries still unknown to the node stay NotConfirmed. A mint that settles
// without a token id gets it from the receipt logs.
func Reconcile(ctx context.Context, store Store, receipts ReceiptSource, chains ChainLookup, limit int) (Result, error) {
	var res Result

	pending, err := store.Pending(ctx, limit)
	if err != nil {
		return res, fmt.Errorf("list pending: %w", err)
	}

	for _, e := range pending {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		res.Checked++

		log := logrus.WithFields(logrus.Fields{"id": e.ID, "network": e.Network, "tx": e.TxHash})

		c, ok := chains.Chain(e.Network)
		if !ok || c.RPCURL == "" {
			log.Warn("No RPC endpoint for journal entry")
			res.Failed++
			continue
		}

		receipt, err := receipts.Receipt(ctx, c.RPCURL, common.HexToHash(e.TxHash))
		switch {
		case errors.Is(err, ethereum.NotFound) || (err == nil && receipt == nil):
			res.Pending++
			continue
		case err != nil:
			log.Warnf("Receipt lookup failed: %v", err)
			res.Failed++
			continue
		}

		msg := model.MessageSentOk
		if receipt.Status != ethtypes.ReceiptStatusSuccessful {
			msg = model.MessageReverted
		}
		var tokenID string
		if msg == model.MessageSentOk && e.Operation == OperationMint && e.TokenID == "" {
			if id, ok := bridge.ExtractLogID(receipt, e.Network); ok {
				tokenID = id.String()
			}
		}

		detail := fmt.Sprintf("settled in block %s", receipt.BlockNumber)
		if err := store.Settle(ctx, e.ID, msg, detail, tokenID); err != nil {
			return res, fmt.Errorf("settle %s: %w", e.ID, err)
		}

		if msg == model.MessageSentOk {
			res.Confirmed++
			e.Message, e.Detail = msg, detail
			if tokenID != "" {
				e.TokenID = tokenID
			}
			res.Settled = append(res.Settled, e)
		} else {
			res.Reverted++
		}
		log.Infof("Journal entry settled as %s", msg)
	}

	return res, nil
}
