package bridge

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/yourorg/omnimint-bridge/internal/model"
	"github.com/yourorg/omnimint-bridge/internal/price"
	chain "github.com/yourorg/omnimint-bridge/internal/types"
)

// FeeEstimator quotes the bridge fee to every candidate destination at once
type FeeEstimator struct {
	adapters map[chain.ProtocolKind]Adapter
	prices   PriceSource
	routes   RouteTable
}

// NewFeeEstimator creates an estimator over the given adapters
func NewFeeEstimator(prices PriceSource, adapters ...Adapter) *FeeEstimator {
	m := make(map[chain.ProtocolKind]Adapter, len(adapters))
	for _, a := range adapters {
		m[a.Kind()] = a
	}
	return &FeeEstimator{adapters: m, prices: prices}
}

// WithRoutes skips destinations the route table marks unavailable
func (e *FeeEstimator) WithRoutes(routes RouteTable) *FeeEstimator {
	e.routes = routes
	return e
}

// Estimate returns one quote per chain, in order. A nil slot means that
// destination could not be quoted; it must be filtered, never read as free.
// The source token price is fetched once for the whole batch; a failed or
// zero price leaves every slot nil.
func (e *FeeEstimator) Estimate(ctx context.Context, r ethereum.ContractCaller, sender common.Address, chains []chain.ChainDescriptor, nativeTokenSymbol string, req model.TransactionRequest) []*model.FeeQuote {
	quotes := make([]*model.FeeQuote, len(chains))
	if len(chains) == 0 {
		return quotes
	}

	adapter, ok := e.adapters[req.Protocol]
	if !ok {
		logrus.WithField("protocol", req.Protocol).Warn("Estimate requested for unknown protocol")
		return quotes
	}

	tokenPrice, err := e.prices.FetchPrice(ctx, nativeTokenSymbol)
	if err != nil {
		logrus.WithField("symbol", nativeTokenSymbol).Warnf("Price unavailable, no quotes produced: %v", err)
		return quotes
	}
	if !tokenPrice.IsPositive() {
		logrus.WithField("symbol", nativeTokenSymbol).Warn("Non-positive source price, no quotes produced")
		return quotes
	}

	type result struct {
		index int
		quote *model.FeeQuote
	}
	resultCh := make(chan result, len(chains))

	var wg sync.WaitGroup
	for i, c := range chains {
		wg.Add(1)
		go func(i int, c chain.ChainDescriptor) {
			defer wg.Done()
			resultCh <- result{index: i, quote: e.quoteOne(ctx, adapter, r, sender, c, req, tokenPrice)}
		}(i, c)
	}

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	quoted := 0
	for res := range resultCh {
		if res.quote != nil {
			quotes[res.index] = res.quote
			quoted++
		}
	}

	logrus.WithFields(logrus.Fields{
		"protocol": req.Protocol,
		"quoted":   quoted,
		"total":    len(chains),
	}).Debug("Bridge fee estimate complete")

	return quotes
}

func (e *FeeEstimator) quoteOne(ctx context.Context, adapter Adapter, r ethereum.ContractCaller, sender common.Address, c chain.ChainDescriptor, req model.TransactionRequest, tokenPrice decimal.Decimal) *model.FeeQuote {
	log := logrus.WithFields(logrus.Fields{"protocol": req.Protocol, "chain": c.Name})

	if e.routes != nil && req.SourceNetwork != "" && !e.routes.Available(req.Protocol, req.SourceNetwork, c.Network) {
		log.Debug("Route unavailable, skipping")
		return nil
	}

	perChain := req
	perChain.ChainToSend = c

	call, err := adapter.PrepareBridge(ctx, r, perChain, sender)
	if err != nil {
		log.Debugf("Fee estimate failed: %v", err)
		return nil
	}

	usd := WeiToNative(call.Value).Mul(tokenPrice)
	return &model.FeeQuote{
		Chain:        c,
		NativeFeeWei: call.Value,
		USDFormatted: price.FormatUSD(usd),
	}
}
