package bridge

import (
	"context"
	"errors"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/sirupsen/logrus"

	chain "github.com/yourorg/omnimint-bridge/internal/types"
)

// waitForReceipt polls until the transaction is mined or the wait window closes.
// Closing the window returns ErrNotConfirmed; the transaction itself is not cancelled.
func waitForReceipt(ctx context.Context, p Provider, hash common.Hash, timeout, interval time.Duration) (*types.Receipt, error) {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		receipt, err := p.TransactionReceipt(waitCtx, hash)
		if receipt != nil {
			return receipt, nil
		}
		if err != nil && !errors.Is(err, ethereum.NotFound) && waitCtx.Err() == nil {
			logrus.WithField("tx", hash.Hex()).Debugf("Receipt lookup failed, will retry: %v", err)
		}

		select {
		case <-waitCtx.Done():
			return nil, ErrNotConfirmed
		case <-ticker.C:
		}
	}
}

// ExtractLogID pulls the minted token id out of a mint receipt. The id is the
// fourth topic of the first log carrying exactly four topics; on Polygon it
// is the fourth topic of the second log instead.
func ExtractLogID(receipt *types.Receipt, network chain.NetworkName) (*big.Int, bool) {
	if receipt == nil {
		return nil, false
	}

	if network == chain.NetworkPolygon {
		if len(receipt.Logs) > 1 && receipt.Logs[1] != nil && len(receipt.Logs[1].Topics) > 3 {
			return receipt.Logs[1].Topics[3].Big(), true
		}
		return nil, false
	}

	for _, l := range receipt.Logs {
		if l != nil && len(l.Topics) == 4 {
			return l.Topics[3].Big(), true
		}
	}
	return nil, false
}
