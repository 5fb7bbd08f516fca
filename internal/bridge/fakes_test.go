package bridge

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"

	"github.com/yourorg/omnimint-bridge/internal/contracts"
	chain "github.com/yourorg/omnimint-bridge/internal/types"
)

var (
	testSender   = common.HexToAddress("0x1111111111111111111111111111111111111111")
	testReferrer = common.HexToAddress("0x2222222222222222222222222222222222222222")
	testContract = common.HexToAddress("0x991fC265f163fc33328FBD2b7C8aa9B77840Ed42")
	testTxHash   = common.HexToHash("0xabc0000000000000000000000000000000000000000000000000000000000def")
)

type viewFunc func(args []interface{}) ([]interface{}, error)

// fakeChain decodes calldata against a contract ABI and answers view calls
// from handlers. It records every read and write it sees.
type fakeChain struct {
	mu  sync.Mutex
	abi abi.ABI

	views map[string]viewFunc

	viewCalls []string
}

func newFakeChain(a abi.ABI) *fakeChain {
	return &fakeChain{abi: a, views: map[string]viewFunc{}}
}

func (f *fakeChain) on(method string, fn viewFunc) *fakeChain {
	f.views[method] = fn
	return f
}

func (f *fakeChain) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	if len(msg.Data) < 4 {
		return nil, errors.New("short calldata")
	}
	method, err := f.abi.MethodById(msg.Data[:4])
	if err != nil {
		return nil, err
	}
	args, err := method.Inputs.Unpack(msg.Data[4:])
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	f.viewCalls = append(f.viewCalls, method.Name)
	handler, ok := f.views[method.Name]
	f.mu.Unlock()

	if !ok {
		return nil, fmt.Errorf("no handler for %s", method.Name)
	}
	vals, err := handler(args)
	if err != nil {
		return nil, err
	}
	return method.Outputs.Pack(vals...)
}

func (f *fakeChain) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.viewCalls...)
}

// fakeProvider is a signer-capable provider over a fakeChain
type fakeProvider struct {
	*fakeChain

	sender      common.Address
	balance     *big.Int
	balanceErr  error
	gasEstimate uint64
	estimateErr error
	sendErr     error
	sendPanic   bool

	// receipt returned once sent; nil keeps the transaction pending
	receipt *types.Receipt

	mu        sync.Mutex
	estimates []Call
	sent      []Call
}

func newFakeProvider(c *fakeChain) *fakeProvider {
	return &fakeProvider{
		fakeChain:   c,
		sender:      testSender,
		balance:     ether(10),
		gasEstimate: 100000,
		receipt:     &types.Receipt{Status: types.ReceiptStatusSuccessful, TxHash: testTxHash},
	}
}

func (p *fakeProvider) Address() common.Address { return p.sender }

func (p *fakeProvider) Balance(context.Context) (*big.Int, error) {
	if p.balanceErr != nil {
		return nil, p.balanceErr
	}
	return new(big.Int).Set(p.balance), nil
}

func (p *fakeProvider) EstimateGas(_ context.Context, call Call) (uint64, error) {
	p.mu.Lock()
	p.estimates = append(p.estimates, call)
	p.mu.Unlock()
	return p.gasEstimate, p.estimateErr
}

func (p *fakeProvider) Send(_ context.Context, call Call) (common.Hash, error) {
	if p.sendPanic {
		panic("wallet exploded")
	}
	p.mu.Lock()
	p.sent = append(p.sent, call)
	p.mu.Unlock()
	if p.sendErr != nil {
		return common.Hash{}, p.sendErr
	}
	return testTxHash, nil
}

func (p *fakeProvider) TransactionReceipt(_ context.Context, hash common.Hash) (*types.Receipt, error) {
	if p.receipt == nil || hash != testTxHash {
		return nil, ethereum.NotFound
	}
	return p.receipt, nil
}

func (p *fakeProvider) writes() (estimates, sent int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.estimates), len(p.sent)
}

func (p *fakeProvider) lastSent() Call {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sent[len(p.sent)-1]
}

type fakePrices struct {
	mu     sync.Mutex
	prices map[string]decimal.Decimal
	errs   map[string]error
	calls  []string
}

func (f *fakePrices) FetchPrice(_ context.Context, symbol string) (decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, symbol)
	if err, ok := f.errs[symbol]; ok {
		return decimal.Zero, err
	}
	return f.prices[symbol], nil
}

func (f *fakePrices) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeBook map[chain.ProtocolKind]map[chain.NetworkName]common.Address

func (b fakeBook) ContractAddress(p chain.ProtocolKind, n chain.NetworkName) (common.Address, bool) {
	addr, ok := b[p][n]
	return addr, ok
}

type ethereumCaller = ethereum.ContractCaller

type fakeCallers struct {
	mu      sync.Mutex
	callers map[string]ethereumCaller
	dials   int
}

func (f *fakeCallers) Caller(_ context.Context, rpcURL string) (ethereum.ContractCaller, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dials++
	c, ok := f.callers[rpcURL]
	if !ok {
		return nil, fmt.Errorf("dial %s: connection refused", rpcURL)
	}
	return c, nil
}

// protocolCallers serves several contracts behind one RPC URL
type protocolCallers struct {
	byURL map[string]map[string]ethereumCaller
}

func (f *protocolCallers) Caller(_ context.Context, rpcURL string) (ethereum.ContractCaller, error) {
	chains, ok := f.byURL[rpcURL]
	if !ok {
		return nil, fmt.Errorf("dial %s: connection refused", rpcURL)
	}
	return multiCaller(chains), nil
}

// multiCaller routes a call to whichever contract answers its selector
type multiCaller map[string]ethereumCaller

func (m multiCaller) CallContract(ctx context.Context, msg ethereum.CallMsg, block *big.Int) ([]byte, error) {
	var lastErr error
	for _, c := range m {
		out, err := c.CallContract(ctx, msg, block)
		if err == nil {
			return out, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

type routeDeny struct {
	from, to chain.NetworkName
}

func (r routeDeny) Available(_ chain.ProtocolKind, from, to chain.NetworkName) bool {
	return !(from == r.from && to == r.to)
}

func ether(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(1e18))
}

func gwei(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(1e9))
}

func constView(vals ...interface{}) viewFunc {
	return func([]interface{}) ([]interface{}, error) { return vals, nil }
}

// lzChain returns a fake ONFT answering every view the adapter needs
func lzChain(mintFee, nativeFee *big.Int) *fakeChain {
	return newFakeChain(contracts.LayerZeroABI).
		on(contracts.LZMintFee, constView(mintFee)).
		on(contracts.LZMinDstGasLookup, constView(big.NewInt(200000))).
		on(contracts.LZEstimateSendFee, constView(nativeFee, big.NewInt(0)))
}

// hlChain returns a fake Hyperlane router answering every view the adapter needs
func hlChain(mintFee, messageFee, bridgeFee *big.Int) *fakeChain {
	return newFakeChain(contracts.HyperlaneABI).
		on(contracts.HLMintFee, constView(mintFee)).
		on(contracts.HLGetHyperlaneMessageFee, constView(messageFee)).
		on(contracts.HLBridgeFee, constView(bridgeFee))
}

func transferLog(tokenID int64) *types.Log {
	return &types.Log{
		Address: testContract,
		Topics: []common.Hash{
			contracts.TransferTopic,
			{},
			common.BytesToHash(testSender.Bytes()),
			common.BigToHash(big.NewInt(tokenID)),
		},
	}
}

func decodeCall(t interface{ Fatalf(string, ...interface{}) }, a abi.ABI, data []byte) (string, []interface{}) {
	method, err := a.MethodById(data[:4])
	if err != nil {
		t.Fatalf("unknown selector: %v", err)
	}
	args, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		t.Fatalf("unpack %s: %v", method.Name, err)
	}
	return method.Name, args
}
