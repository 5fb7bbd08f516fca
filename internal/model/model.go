// Package model defines the value objects passed in and out of the orchestrator.
package model

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/yourorg/omnimint-bridge/internal/types"
)

// Message classifies a TransactionOutcome
type Message string

const (
	MessageSentOk            Message = "SentOk"
	MessageInsufficientFunds Message = "InsufficientFunds"
	MessageUnsupportedRoute  Message = "UnsupportedRoute"
	MessageNotConfirmed      Message = "NotConfirmed"
	MessageReverted          Message = "Reverted"
	MessageUnknown           Message = "Unknown"
)

// Submitted reports whether an outcome with this message had a transaction on the wire
func (m Message) Submitted() bool {
	switch m {
	case MessageSentOk, MessageNotConfirmed, MessageReverted:
		return true
	}
	return false
}

// TransactionRequest carries everything one mint/bridge/estimate call needs.
// It is built per call and never retained.
type TransactionRequest struct {
	// Contract the call goes to on the source chain
	ContractAddress common.Address `json:"contractAddress"`

	Protocol types.ProtocolKind `json:"protocol"`

	// Destination chain for bridge, or the chain being minted on for mint
	ChainToSend types.ChainDescriptor `json:"chainToSend"`

	// Optional referrer credited on mint
	Referrer *common.Address `json:"referrer,omitempty"`

	TokenID *big.Int `json:"tokenId,omitempty"`

	Refuel        bool            `json:"refuel"`
	RefuelCostUSD decimal.Decimal `json:"refuelCostUsd"`

	// Source network, when known, enables the unavailable-route table
	SourceNetwork types.NetworkName `json:"sourceNetwork,omitempty"`
}

// TransactionOutcome is produced once per submission attempt
type TransactionOutcome struct {
	Success         bool     `json:"success"`
	Message         Message  `json:"message"`
	TransactionHash string   `json:"transactionHash"`
	BlockchainLogID *big.Int `json:"blockchainLogId,omitempty"`

	// Detail holds the underlying error text, if any
	Detail string `json:"detail,omitempty"`
}

// FeeQuote is the cost of bridging to one destination chain
type FeeQuote struct {
	Chain        types.ChainDescriptor `json:"chain"`
	NativeFeeWei *big.Int              `json:"nativeFeeWei"`
	USDFormatted string                `json:"usdFormatted"`
}

// ProtocolAmounts holds unclaimed referral amounts per protocol in native units
type ProtocolAmounts struct {
	LayerZero decimal.Decimal `json:"layerZero"`
	Hyperlane decimal.Decimal `json:"hyperlane"`
}

// EarnedAmount is the referral balance on one chain
type EarnedAmount struct {
	Chain           types.ChainDescriptor `json:"chain"`
	ProtocolAmounts ProtocolAmounts       `json:"protocolAmounts"`

	// PriceUSD is nil when the price lookup failed
	PriceUSD *decimal.Decimal `json:"priceUsd"`
}

// Total returns the sum over both protocols in native units
func (e EarnedAmount) Total() decimal.Decimal {
	return e.ProtocolAmounts.LayerZero.Add(e.ProtocolAmounts.Hyperlane)
}
