package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/yourorg/omnimint-bridge/internal/aggregate"
	"github.com/yourorg/omnimint-bridge/internal/journal"
	"github.com/yourorg/omnimint-bridge/internal/model"
	"github.com/yourorg/omnimint-bridge/internal/price"
	"github.com/yourorg/omnimint-bridge/internal/refcode"
	"github.com/yourorg/omnimint-bridge/internal/report"
	"github.com/yourorg/omnimint-bridge/internal/types"
	"github.com/yourorg/omnimint-bridge/internal/validation"
)

// txRequest is the JSON body of /mint, /bridge, /estimate and /claim
type txRequest struct {
	Protocol string `json:"protocol"`

	// Optional; defaults to the registry's contract on the source chain
	ContractAddress string `json:"contractAddress,omitempty"`

	// Chain the transaction is sent on (bridge, estimate, claim)
	SourceNetwork string `json:"sourceNetwork,omitempty"`

	// Destination for bridge, the chain minted on for mint
	ChainToSend string `json:"chainToSend,omitempty"`

	// Hex address or referral token
	Referrer string `json:"referrer,omitempty"`

	TokenID       string `json:"tokenId,omitempty"`
	Refuel        bool   `json:"refuel,omitempty"`
	RefuelCostUSD string `json:"refuelCostUsd,omitempty"`
}

var errBadRequest = errors.New("bad request")

func badRequest(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

func (s *Server) chain(network string, field string) (types.ChainDescriptor, error) {
	if network == "" {
		return types.ChainDescriptor{}, badRequest("%s is required", field)
	}
	c, ok := s.registry.Chain(types.NetworkName(network))
	if !ok {
		return types.ChainDescriptor{}, badRequest("unknown %s %q", field, network)
	}
	return c, nil
}

func parseReferrer(v string) (*common.Address, error) {
	if v == "" {
		return nil, nil
	}
	if !common.IsHexAddress(v) {
		decoded := refcode.Decode(v)
		if decoded == "" || !common.IsHexAddress(decoded) {
			return nil, badRequest("referrer %q is neither an address nor a referral token", v)
		}
		v = decoded
	}
	addr := common.HexToAddress(v)
	return &addr, nil
}

// toModel resolves a JSON body into a TransactionRequest. source is the chain
// the transaction would be sent on.
func (s *Server) toModel(body txRequest, op validation.Operation) (model.TransactionRequest, types.ChainDescriptor, error) {
	protocol, err := types.ParseProtocol(body.Protocol)
	if err != nil {
		return model.TransactionRequest{}, types.ChainDescriptor{}, badRequest("%v", err)
	}
	req := model.TransactionRequest{Protocol: protocol, Refuel: body.Refuel}

	var source types.ChainDescriptor
	switch op {
	case validation.OpMint:
		if source, err = s.chain(body.ChainToSend, "chainToSend"); err != nil {
			return req, source, err
		}
		req.ChainToSend = source
	case validation.OpBridge:
		if source, err = s.chain(body.SourceNetwork, "sourceNetwork"); err != nil {
			return req, source, err
		}
		if req.ChainToSend, err = s.chain(body.ChainToSend, "chainToSend"); err != nil {
			return req, source, err
		}
	case validation.OpEstimate:
		if source, err = s.chain(body.SourceNetwork, "sourceNetwork"); err != nil {
			return req, source, err
		}
	}
	req.SourceNetwork = source.Network

	if body.ContractAddress != "" {
		if !common.IsHexAddress(body.ContractAddress) {
			return req, source, badRequest("invalid contractAddress %q", body.ContractAddress)
		}
		req.ContractAddress = common.HexToAddress(body.ContractAddress)
	} else if addr, ok := s.registry.ContractAddress(protocol, source.Network); ok {
		req.ContractAddress = addr
	} else {
		return req, source, badRequest("no %s contract on %s", protocol, source.Network)
	}

	if req.Referrer, err = parseReferrer(body.Referrer); err != nil {
		return req, source, err
	}

	if body.TokenID != "" {
		id, ok := new(big.Int).SetString(body.TokenID, 10)
		if !ok {
			return req, source, badRequest("invalid tokenId %q", body.TokenID)
		}
		req.TokenID = id
	} else if op == validation.OpEstimate {
		// quotes do not depend on which token moves
		req.TokenID = big.NewInt(0)
	}

	req.RefuelCostUSD = s.refuelDefault
	if body.RefuelCostUSD != "" {
		if req.RefuelCostUSD, err = decimal.NewFromString(body.RefuelCostUSD); err != nil {
			return req, source, badRequest("invalid refuelCostUsd %q", body.RefuelCostUSD)
		}
	}

	if err := validation.ValidateRequest(req, op); err != nil {
		return req, source, fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return req, source, nil
}

func decodeBody(w http.ResponseWriter, r *http.Request, into interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16))
	dec.DisallowUnknownFields()
	if err := dec.Decode(into); err != nil {
		return badRequest("invalid request body: %v", err)
	}
	return nil
}

func (s *Server) handleMint(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	var body txRequest
	if err := decodeBody(w, r, &body); err != nil {
		s.errorResponse(w, err)
		return
	}
	req, source, err := s.toModel(body, validation.OpMint)
	if err != nil {
		s.errorResponse(w, err)
		return
	}

	p, err := s.providers.Provider(r.Context(), source)
	if err != nil {
		s.errorResponse(w, err)
		return
	}

	out := s.orchestrator.Mint(r.Context(), p, req)
	s.afterSubmit(r.Context(), string(validation.OpMint), req.Protocol, source.Network, nil, out)
	if rec, ok := report.MintRecord(source.Network, req.Protocol, out); ok {
		s.reporter.Enqueue(rec)
	}

	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleBridge(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	var body txRequest
	if err := decodeBody(w, r, &body); err != nil {
		s.errorResponse(w, err)
		return
	}
	req, source, err := s.toModel(body, validation.OpBridge)
	if err != nil {
		s.errorResponse(w, err)
		return
	}

	p, err := s.providers.Provider(r.Context(), source)
	if err != nil {
		s.errorResponse(w, err)
		return
	}

	out := s.orchestrator.Bridge(r.Context(), p, req)
	s.afterSubmit(r.Context(), string(validation.OpBridge), req.Protocol, source.Network, req.TokenID, out)
	if rec, ok := report.BridgeRecord(source.Network, req.Protocol, req.TokenID, out); ok {
		s.reporter.Enqueue(rec)
	}

	writeJSON(w, http.StatusOK, out)
}

// estimateResponse keeps quotes aligned with chains; a null quote could not be produced
type estimateResponse struct {
	Chains       []types.ChainDescriptor `json:"chains"`
	Quotes       []*model.FeeQuote       `json:"quotes"`
	Cheapest     *model.FeeQuote         `json:"cheapest,omitempty"`
	MedianFeeWei *big.Int                `json:"medianFeeWei,omitempty"`
}

func (s *Server) handleEstimate(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	var body txRequest
	if err := decodeBody(w, r, &body); err != nil {
		s.errorResponse(w, err)
		return
	}
	req, source, err := s.toModel(body, validation.OpEstimate)
	if err != nil {
		s.errorResponse(w, err)
		return
	}

	p, err := s.providers.Provider(r.Context(), source)
	if err != nil {
		s.errorResponse(w, err)
		return
	}

	chains := validation.DestinationsFor(s.registry.Chains(), req.Protocol, source.ChainID)
	quotes := s.orchestrator.EstimateBridge(r.Context(), p, chains, source.NativeTokenSymbol, req)

	resp := estimateResponse{Chains: chains, Quotes: quotes, MedianFeeWei: aggregate.MedianFee(quotes)}
	if cheapest, ok := aggregate.Cheapest(quotes); ok {
		resp.Cheapest = &cheapest
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	var body txRequest
	if err := decodeBody(w, r, &body); err != nil {
		s.errorResponse(w, err)
		return
	}
	protocol, err := types.ParseProtocol(body.Protocol)
	if err != nil {
		s.errorResponse(w, badRequest("%v", err))
		return
	}
	c, err := s.chain(body.SourceNetwork, "sourceNetwork")
	if err != nil {
		s.errorResponse(w, err)
		return
	}

	p, err := s.providers.Provider(r.Context(), c)
	if err != nil {
		s.errorResponse(w, err)
		return
	}

	out := s.orchestrator.ClaimReferralFee(r.Context(), p, c, protocol)
	s.afterSubmit(r.Context(), "claim", protocol, c.Network, nil, out)
	writeJSON(w, http.StatusOK, out)
}

type earnedResponse struct {
	Account   string               `json:"account"`
	Amounts   []model.EarnedAmount `json:"amounts"`
	TotalUSD  string               `json:"totalUsd"`
	Claimable map[string][]string  `json:"claimable"`
}

func (s *Server) handleEarned(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	account := r.URL.Query().Get("account")
	if !common.IsHexAddress(account) {
		s.errorResponse(w, badRequest("account must be a hex address"))
		return
	}
	addr := common.HexToAddress(account)

	amounts := s.orchestrator.EarnedAmounts(r.Context(), s.registry.Chains(), addr)

	resp := earnedResponse{
		Account:  addr.Hex(),
		Amounts:  amounts,
		TotalUSD: aggregate.TotalEarnedUSD(amounts),
		Claimable: map[string][]string{
			string(types.ProtocolLayerZero): networks(aggregate.ClaimableChains(amounts, aggregate.LayerZero)),
			string(types.ProtocolHyperlane): networks(aggregate.ClaimableChains(amounts, aggregate.Hyperlane)),
		},
	}
	writeJSON(w, http.StatusOK, resp)
}

func networks(amounts []model.EarnedAmount) []string {
	out := make([]string, len(amounts))
	for i, a := range amounts {
		out[i] = string(a.Chain.Network)
	}
	return out
}

func (s *Server) handlePrice(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	symbol := strings.TrimSpace(r.URL.Query().Get("symbol"))
	if symbol == "" {
		s.errorResponse(w, badRequest("symbol is required"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.config.PriceTimeout)
	defer cancel()

	p, err := s.prices.FetchPrice(ctx, symbol)
	if err != nil {
		writeError(w, http.StatusBadGateway, fmt.Sprintf("price unavailable for %s: %v", symbol, err))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"symbol":    s.prices.NormalizeSymbol(symbol),
		"priceUsd":  p,
		"formatted": price.FormatUSD(p),
	})
}

func (s *Server) handleRefEncode(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	address := r.URL.Query().Get("address")
	if !common.IsHexAddress(address) {
		s.errorResponse(w, badRequest("address must be a hex address"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"token": refcode.Encode(address),
		"link":  refcode.Link(s.config.RefLinkOrigin, address),
	})
}

func (s *Server) handleRefDecode(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	q := r.URL.Query()

	var address string
	switch {
	case q.Get("token") != "":
		address = refcode.Decode(q.Get("token"))
	case q.Get("link") != "":
		address = refcode.FromLink(q.Get("link"))
	default:
		s.errorResponse(w, badRequest("token or link is required"))
		return
	}
	if address == "" || !common.IsHexAddress(address) {
		s.errorResponse(w, badRequest("malformed referral token"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"address": common.HexToAddress(address).Hex()})
}

func (s *Server) handleReconcile(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	res, err := journal.Reconcile(r.Context(), s.journal, s.receipts, s.registry, 100)
	for _, e := range res.Settled {
		s.reportSettled(e)
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// reportSettled queues the persistence record for a mint or bridge that
// confirmed after its request had already answered NotConfirmed
func (s *Server) reportSettled(e journal.Entry) {
	out := model.TransactionOutcome{
		Success:         e.Message == model.MessageSentOk,
		Message:         e.Message,
		TransactionHash: e.TxHash,
	}

	var (
		rec report.Record
		ok  bool
	)
	switch e.Operation {
	case string(validation.OpMint):
		out.BlockchainLogID = e.Token()
		rec, ok = report.MintRecord(e.Network, e.Protocol, out)
	case string(validation.OpBridge):
		rec, ok = report.BridgeRecord(e.Network, e.Protocol, e.Token(), out)
	}
	if ok {
		s.reporter.Enqueue(rec)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	endpoints := make(map[string]string)
	for _, c := range s.registry.Chains() {
		if c.RPCURL != "" {
			endpoints[string(c.Network)] = s.breaker.State(c.RPCURL).String()
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "OK",
		"version":   version,
		"uptime":    time.Since(startTime).String(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"chains":    len(s.registry.Chains()),
		"endpoints": endpoints,
		"reporter":  s.reporter.Status(),
	})
}

// afterSubmit counts the outcome and journals anything that reached the chain.
// tokenID is the bridged token; mints carry theirs in the outcome.
func (s *Server) afterSubmit(ctx context.Context, op string, protocol types.ProtocolKind, network types.NetworkName, tokenID *big.Int, out model.TransactionOutcome) {
	s.metrics.outcomes.WithLabelValues(op, string(protocol), string(out.Message)).Inc()

	entry, ok := journal.NewEntry(op, protocol, network, out)
	if !ok {
		return
	}
	entry = entry.WithTokenID(tokenID)
	// the response must not depend on the journal
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if _, err := s.journal.Record(ctx, entry); err != nil {
		s.metrics.journalErrors.Inc()
		logrus.WithField("tx", out.TransactionHash).Errorf("Failed to journal submission: %v", err)
	}
}
