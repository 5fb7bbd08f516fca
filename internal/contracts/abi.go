// Package contracts holds the fixed ABIs of the omnichain NFT contracts and
// the packed encodings their bridge calls expect.
package contracts

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/crypto"
)

// LayerZero ONFT method names. go-ethereum renames the second "mint" overload to "mint0".
const (
	LZMintFee               = "mintFee"
	LZMint                  = "mint"
	LZMintWithReferrer      = "mint0"
	LZMinDstGasLookup       = "minDstGasLookup"
	LZEstimateSendFee       = "estimateSendFee"
	LZSendFrom              = "sendFrom"
	LZClaimReferrerEarnings = "claimReferrerEarnings"
	LZReferrersEarnedAmount = "referrersEarnedAmount"
)

// Hyperlane ERC721 method names
const (
	HLMintFee                = "mintFee"
	HLBatchMintWithReferrer  = "batchMintWithReferrer"
	HLGetHyperlaneMessageFee = "getHyperlaneMessageFee"
	HLBridgeFee              = "bridgeFee"
	HLTransferRemote         = "transferRemote"
	HLClaimRefEarnings       = "claimRefEarnings"
	HLRefAmountToClaim       = "refAmountToClaim"
)

var (
	LayerZeroABI = mustParseABI(`[
		{"inputs":[],"name":"mintFee","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
		{"inputs":[],"name":"mint","outputs":[],"stateMutability":"payable","type":"function"},
		{"inputs":[{"internalType":"address","name":"_referrer","type":"address"}],"name":"mint","outputs":[],"stateMutability":"payable","type":"function"},
		{"inputs":[{"internalType":"uint16","name":"","type":"uint16"},{"internalType":"uint16","name":"","type":"uint16"}],"name":"minDstGasLookup","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
		{"inputs":[{"internalType":"uint16","name":"_dstChainId","type":"uint16"},{"internalType":"bytes","name":"_toAddress","type":"bytes"},{"internalType":"uint256","name":"_tokenId","type":"uint256"},{"internalType":"bool","name":"_useZro","type":"bool"},{"internalType":"bytes","name":"_adapterParams","type":"bytes"}],"name":"estimateSendFee","outputs":[{"internalType":"uint256","name":"nativeFee","type":"uint256"},{"internalType":"uint256","name":"zroFee","type":"uint256"}],"stateMutability":"view","type":"function"},
		{"inputs":[{"internalType":"address","name":"_from","type":"address"},{"internalType":"uint16","name":"_dstChainId","type":"uint16"},{"internalType":"bytes","name":"_toAddress","type":"bytes"},{"internalType":"uint256","name":"_tokenId","type":"uint256"},{"internalType":"address payable","name":"_refundAddress","type":"address"},{"internalType":"address","name":"_zroPaymentAddress","type":"address"},{"internalType":"bytes","name":"_adapterParams","type":"bytes"}],"name":"sendFrom","outputs":[],"stateMutability":"payable","type":"function"},
		{"inputs":[],"name":"claimReferrerEarnings","outputs":[],"stateMutability":"nonpayable","type":"function"},
		{"inputs":[{"internalType":"address","name":"","type":"address"}],"name":"referrersEarnedAmount","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
		{"anonymous":false,"inputs":[{"indexed":true,"internalType":"address","name":"from","type":"address"},{"indexed":true,"internalType":"address","name":"to","type":"address"},{"indexed":true,"internalType":"uint256","name":"tokenId","type":"uint256"}],"name":"Transfer","type":"event"}
	]`)

	HyperlaneABI = mustParseABI(`[
		{"inputs":[],"name":"mintFee","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
		{"inputs":[{"internalType":"uint256","name":"_tokenCount","type":"uint256"},{"internalType":"address","name":"_referrer","type":"address"}],"name":"batchMintWithReferrer","outputs":[],"stateMutability":"payable","type":"function"},
		{"inputs":[{"internalType":"uint32","name":"_destination","type":"uint32"}],"name":"getHyperlaneMessageFee","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
		{"inputs":[],"name":"bridgeFee","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
		{"inputs":[{"internalType":"uint32","name":"_destination","type":"uint32"},{"internalType":"bytes32","name":"_recipient","type":"bytes32"},{"internalType":"uint256","name":"_tokenId","type":"uint256"}],"name":"transferRemote","outputs":[{"internalType":"bytes32","name":"messageId","type":"bytes32"}],"stateMutability":"payable","type":"function"},
		{"inputs":[],"name":"claimRefEarnings","outputs":[],"stateMutability":"nonpayable","type":"function"},
		{"inputs":[{"internalType":"address","name":"","type":"address"}],"name":"refAmountToClaim","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
		{"anonymous":false,"inputs":[{"indexed":true,"internalType":"address","name":"from","type":"address"},{"indexed":true,"internalType":"address","name":"to","type":"address"},{"indexed":true,"internalType":"uint256","name":"tokenId","type":"uint256"}],"name":"Transfer","type":"event"}
	]`)

	// TransferTopic is the ERC721 Transfer event signature
	TransferTopic = crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)"))
)

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(err)
	}
	return parsed
}

// UnpackUint256 decodes the first uint256 output of a view call
func UnpackUint256(a abi.ABI, method string, out []byte) (*big.Int, error) {
	vals, err := a.Unpack(method, out)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", method, err)
	}
	if len(vals) == 0 {
		return nil, fmt.Errorf("failed to decode %s: empty output", method)
	}
	value, ok := vals[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("failed to decode %s: unexpected type %T", method, vals[0])
	}
	return value, nil
}

// MethodName returns the ABI method a calldata payload invokes, or "" if unknown
func MethodName(a abi.ABI, data []byte) string {
	if len(data) < 4 {
		return ""
	}
	m, err := a.MethodById(data[:4])
	if err != nil {
		return ""
	}
	return m.Name
}
