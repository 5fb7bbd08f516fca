package bridge

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/yourorg/omnimint-bridge/internal/gas"
	"github.com/yourorg/omnimint-bridge/internal/model"
	"github.com/yourorg/omnimint-bridge/internal/otel"
	chain "github.com/yourorg/omnimint-bridge/internal/types"
)

const (
	DefaultConfirmationTimeout = 60 * time.Second
	DefaultPollInterval        = 2 * time.Second
	DefaultPriceDeadline       = 15 * time.Second
)

// DefaultReferrerEarnings is reported when an earned-amount read fails
var DefaultReferrerEarnings = decimal.Zero

// Config holds the orchestrator's tunables
type Config struct {
	// Upper bound on waiting for a receipt after submission
	ConfirmationTimeout time.Duration

	// Receipt polling interval inside the wait window
	PollInterval time.Duration

	GasPolicy gas.Policy

	// Tokens per Hyperlane mint call
	MintBatchSize int64

	// Upper bound on a single price lookup. The feed retries until its
	// context ends, so every lookup made here carries this deadline.
	PriceDeadline time.Duration
}

// DefaultConfig returns the production defaults
func DefaultConfig() Config {
	return Config{
		ConfirmationTimeout: DefaultConfirmationTimeout,
		PollInterval:        DefaultPollInterval,
		GasPolicy:           gas.NewPolicy(gas.DefaultMarginBps),
		MintBatchSize:       DefaultMintBatchSize,
		PriceDeadline:       DefaultPriceDeadline,
	}
}

// Breaker guards read-only endpoints keyed by RPC URL
type Breaker interface {
	Allow(key string) error
	Success(key string)
	Failure(key string)
}

// Orchestrator is the entry point for mint, bridge, estimate and referral
// operations. It holds no per-call state and is safe for concurrent use.
type Orchestrator struct {
	cfg       Config
	adapters  map[chain.ProtocolKind]Adapter
	estimator *FeeEstimator
	prices    PriceSource
	book      AddressBook
	callers   CallerSource
	routes    RouteTable
	breaker   Breaker
}

// NewOrchestrator creates an orchestrator with both protocol adapters
func NewOrchestrator(cfg Config, prices PriceSource) *Orchestrator {
	def := DefaultConfig()
	if cfg.ConfirmationTimeout <= 0 {
		cfg.ConfirmationTimeout = def.ConfirmationTimeout
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.PriceDeadline <= 0 {
		cfg.PriceDeadline = def.PriceDeadline
	}
	if prices != nil {
		prices = boundedPrices{src: prices, deadline: cfg.PriceDeadline}
	}

	lz := NewLayerZeroAdapter(prices)
	hl := NewHyperlaneAdapter(cfg.MintBatchSize)

	return &Orchestrator{
		cfg: cfg,
		adapters: map[chain.ProtocolKind]Adapter{
			lz.Kind(): lz,
			hl.Kind(): hl,
		},
		estimator: NewFeeEstimator(prices, lz, hl),
		prices:    prices,
	}
}

// WithAddressBook sets the per-network contract addresses used by claim and earned reads
func (o *Orchestrator) WithAddressBook(book AddressBook) *Orchestrator {
	o.book = book
	return o
}

// WithCallers sets the read-only caller pool used by earned reads
func (o *Orchestrator) WithCallers(callers CallerSource) *Orchestrator {
	o.callers = callers
	return o
}

// WithRoutes enables the unavailable-route table for bridge and estimate
func (o *Orchestrator) WithRoutes(routes RouteTable) *Orchestrator {
	o.routes = routes
	o.estimator.WithRoutes(routes)
	return o
}

// WithBreaker guards earned reads with a per-endpoint circuit breaker
func (o *Orchestrator) WithBreaker(b Breaker) *Orchestrator {
	o.breaker = b
	return o
}

func (o *Orchestrator) adapter(kind chain.ProtocolKind) (Adapter, error) {
	a, ok := o.adapters[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProtocol, kind)
	}
	return a, nil
}

// Mint mints on the request's chain. On success the minted id is read from
// the receipt logs into BlockchainLogID.
func (o *Orchestrator) Mint(ctx context.Context, p Provider, req model.TransactionRequest) model.TransactionOutcome {
	ctx, span := otel.Start(ctx, "bridge.Mint", requestAttrs(req)...)
	defer span.End()

	adapter, err := o.adapter(req.Protocol)
	if err != nil {
		return finish(span, failed(err))
	}

	sender := p.Address()
	log := logrus.WithFields(logrus.Fields{
		"op":       "mint",
		"protocol": req.Protocol,
		"chain":    req.ChainToSend.Name,
		"sender":   sender.Hex(),
	})

	call, err := adapter.PrepareMint(ctx, p, req.ContractAddress, sender, req.Referrer)
	if err != nil {
		log.Warnf("Mint preparation failed: %v", err)
		return finish(span, failed(err))
	}

	outcome, receipt := o.submit(ctx, p, call, log)
	if outcome.Success {
		if id, ok := ExtractLogID(receipt, req.ChainToSend.Network); ok {
			outcome.BlockchainLogID = id
		} else {
			log.WithField("tx", outcome.TransactionHash).Warn("Minted but no token id found in receipt logs")
		}
	}
	return finish(span, outcome)
}

// Bridge sends req.TokenID to req.ChainToSend, optionally airdropping
// req.RefuelCostUSD worth of destination gas (LayerZero only).
func (o *Orchestrator) Bridge(ctx context.Context, p Provider, req model.TransactionRequest) model.TransactionOutcome {
	ctx, span := otel.Start(ctx, "bridge.Bridge", requestAttrs(req)...)
	defer span.End()

	adapter, err := o.adapter(req.Protocol)
	if err != nil {
		return finish(span, failed(err))
	}

	if o.routes != nil && req.SourceNetwork != "" && !o.routes.Available(req.Protocol, req.SourceNetwork, req.ChainToSend.Network) {
		return finish(span, failed(fmt.Errorf("%w: %s -> %s over %s", ErrUnsupportedRoute, req.SourceNetwork, req.ChainToSend.Network, req.Protocol)))
	}

	sender := p.Address()
	log := logrus.WithFields(logrus.Fields{
		"op":       "bridge",
		"protocol": req.Protocol,
		"chain":    req.ChainToSend.Name,
		"sender":   sender.Hex(),
		"refuel":   req.Refuel,
	})

	call, err := adapter.PrepareBridge(ctx, p, req, sender)
	if err != nil {
		log.Warnf("Bridge preparation failed: %v", err)
		return finish(span, failed(err))
	}

	outcome, _ := o.submit(ctx, p, call, log)
	return finish(span, outcome)
}

// EstimateBridge quotes bridging to every chain concurrently. See FeeEstimator.Estimate.
func (o *Orchestrator) EstimateBridge(ctx context.Context, p Provider, chains []chain.ChainDescriptor, nativeTokenSymbol string, req model.TransactionRequest) []*model.FeeQuote {
	ctx, span := otel.Start(ctx, "bridge.EstimateBridge",
		attribute.String("protocol", string(req.Protocol)),
		attribute.Int("chains", len(chains)),
	)
	defer span.End()

	return o.estimator.Estimate(ctx, p, p.Address(), chains, nativeTokenSymbol, req)
}

// ClaimReferralFee withdraws the signer's referral earnings on c. It never
// panics or returns an error; every failure becomes an unsuccessful outcome.
func (o *Orchestrator) ClaimReferralFee(ctx context.Context, p Provider, c chain.ChainDescriptor, protocol chain.ProtocolKind) (out model.TransactionOutcome) {
	ctx, span := otel.Start(ctx, "bridge.ClaimReferralFee",
		attribute.String("protocol", string(protocol)),
		attribute.String("chain", c.Name),
	)
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			logrus.Errorf("Referral claim panicked: %v", r)
			out = finish(span, model.TransactionOutcome{Success: false, Message: model.MessageUnknown, Detail: fmt.Sprint(r)})
		}
	}()

	adapter, err := o.adapter(protocol)
	if err != nil {
		return finish(span, failed(err))
	}
	contract, err := o.contractFor(protocol, c.Network)
	if err != nil {
		return finish(span, failed(err))
	}

	call, err := adapter.PrepareClaim(contract)
	if err != nil {
		return finish(span, failed(err))
	}

	log := logrus.WithFields(logrus.Fields{
		"op":       "claim",
		"protocol": protocol,
		"chain":    c.Name,
		"sender":   p.Address().Hex(),
	})
	outcome, _ := o.submit(ctx, p, call, log)
	return finish(span, outcome)
}

// ReferrerEarned reads the unclaimed referral amount of account on c in
// native units. It uses a read-only RPC caller, never the signer, and
// returns DefaultReferrerEarnings on any failure.
func (o *Orchestrator) ReferrerEarned(ctx context.Context, c chain.ChainDescriptor, protocol chain.ProtocolKind, account common.Address) decimal.Decimal {
	log := logrus.WithFields(logrus.Fields{"protocol": protocol, "chain": c.Name})

	adapter, err := o.adapter(protocol)
	if err != nil {
		return DefaultReferrerEarnings
	}
	contract, err := o.contractFor(protocol, c.Network)
	if err != nil {
		return DefaultReferrerEarnings
	}
	if o.callers == nil || c.RPCURL == "" {
		log.Debug("No read-only endpoint for earned read")
		return DefaultReferrerEarnings
	}

	if o.breaker != nil {
		if err := o.breaker.Allow(c.RPCURL); err != nil {
			log.Debugf("Earned read skipped: %v", err)
			return DefaultReferrerEarnings
		}
	}

	caller, err := o.callers.Caller(ctx, c.RPCURL)
	if err == nil {
		var wei *big.Int
		wei, err = adapter.ReadEarned(ctx, caller, contract, account)
		if err == nil {
			if o.breaker != nil {
				o.breaker.Success(c.RPCURL)
			}
			return WeiToNative(wei)
		}
	}

	if o.breaker != nil {
		o.breaker.Failure(c.RPCURL)
	}
	log.Warnf("Earned read failed, reporting default: %v", err)
	return DefaultReferrerEarnings
}

// EarnedAmounts reads both protocols' earned amounts and the native price for
// every chain concurrently. A failed or zero price leaves PriceUSD nil.
func (o *Orchestrator) EarnedAmounts(ctx context.Context, chains []chain.ChainDescriptor, account common.Address) []model.EarnedAmount {
	ctx, span := otel.Start(ctx, "bridge.EarnedAmounts", attribute.Int("chains", len(chains)))
	defer span.End()

	out := make([]model.EarnedAmount, len(chains))

	var wg sync.WaitGroup
	for i, c := range chains {
		wg.Add(1)
		go func(i int, c chain.ChainDescriptor) {
			defer wg.Done()

			entry := model.EarnedAmount{
				Chain: c,
				ProtocolAmounts: model.ProtocolAmounts{
					LayerZero: o.ReferrerEarned(ctx, c, chain.ProtocolLayerZero, account),
					Hyperlane: o.ReferrerEarned(ctx, c, chain.ProtocolHyperlane, account),
				},
			}
			if o.prices != nil {
				p, err := o.prices.FetchPrice(ctx, c.NativeTokenSymbol)
				switch {
				case err != nil:
					logrus.WithField("chain", c.Name).Debugf("No price for earned total: %v", err)
				case !p.IsPositive():
					logrus.WithField("chain", c.Name).Debug("Zero price for earned total")
				default:
					entry.PriceUSD = &p
				}
			}
			out[i] = entry
		}(i, c)
	}
	wg.Wait()

	return out
}

// boundedPrices caps every lookup on src at deadline
type boundedPrices struct {
	src      PriceSource
	deadline time.Duration
}

func (b boundedPrices) FetchPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	ctx, cancel := context.WithTimeout(ctx, b.deadline)
	defer cancel()
	return b.src.FetchPrice(ctx, symbol)
}

func (o *Orchestrator) contractFor(protocol chain.ProtocolKind, network chain.NetworkName) (common.Address, error) {
	if o.book == nil {
		return common.Address{}, fmt.Errorf("%w: no address book configured", ErrUnsupportedRoute)
	}
	addr, ok := o.book.ContractAddress(protocol, network)
	if !ok {
		return common.Address{}, fmt.Errorf("%w: no %s contract on %s", ErrUnsupportedRoute, protocol, network)
	}
	return addr, nil
}

// submit runs the shared write pipeline: balance precheck, gas estimate with
// margin, a single submission, then a bounded wait for the receipt.
// No step is retried once the transaction is on the wire.
func (o *Orchestrator) submit(ctx context.Context, p Provider, call Call, log *logrus.Entry) (model.TransactionOutcome, *types.Receipt) {
	if call.Value == nil {
		call.Value = new(big.Int)
	}
	log = log.WithField("method", call.Method)

	if call.Value.Sign() > 0 {
		balance, err := p.Balance(ctx)
		if err != nil {
			return failed(transportError("balance", err)), nil
		}
		if balance.Cmp(call.Value) < 0 {
			log.WithFields(logrus.Fields{
				"balance":  balance.String(),
				"required": call.Value.String(),
			}).Info("Balance below required value, not submitting")
			return failed(fmt.Errorf("%w: balance %s below required %s", ErrInsufficientFunds, balance, call.Value)), nil
		}
	}

	estimated, err := p.EstimateGas(ctx, call)
	if err != nil {
		log.Warnf("Gas estimation failed: %v", err)
		return failed(fmt.Errorf("estimate gas for %s: %w", call.Method, err)), nil
	}
	call.GasLimit = o.cfg.GasPolicy.ApplyMargin(estimated)

	hash, err := p.Send(ctx, call)
	if err != nil {
		log.Warnf("Submission failed: %v", err)
		return failed(fmt.Errorf("send %s: %w", call.Method, err)), nil
	}

	log = log.WithFields(logrus.Fields{"tx": hash.Hex(), "gas_limit": call.GasLimit})
	log.Info("Transaction submitted")

	receipt, err := waitForReceipt(ctx, p, hash, o.cfg.ConfirmationTimeout, o.cfg.PollInterval)
	if err != nil {
		log.Warnf("No receipt within %s", o.cfg.ConfirmationTimeout)
		return model.TransactionOutcome{
			Success:         false,
			Message:         model.MessageNotConfirmed,
			TransactionHash: hash.Hex(),
			Detail:          err.Error(),
		}, nil
	}

	if receipt.Status != types.ReceiptStatusSuccessful {
		log.Warn("Transaction reverted")
		return model.TransactionOutcome{
			Success:         false,
			Message:         model.MessageReverted,
			TransactionHash: hash.Hex(),
			Detail:          ErrReverted.Error(),
		}, receipt
	}

	log.Info("Transaction confirmed")
	return model.TransactionOutcome{
		Success:         true,
		Message:         model.MessageSentOk,
		TransactionHash: hash.Hex(),
	}, receipt
}

func requestAttrs(req model.TransactionRequest) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("protocol", string(req.Protocol)),
		attribute.String("chain", req.ChainToSend.Name),
		attribute.String("contract", req.ContractAddress.Hex()),
		attribute.Bool("refuel", req.Refuel),
	}
}

func finish(span trace.Span, outcome model.TransactionOutcome) model.TransactionOutcome {
	span.SetAttributes(
		attribute.String("outcome", string(outcome.Message)),
		attribute.String("tx", outcome.TransactionHash),
	)
	return outcome
}
