package trader

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"

	"github.com/speedrun-hq/dexpulse/pkg/chainclient"
	"github.com/speedrun-hq/dexpulse/pkg/contracts"
	"github.com/speedrun-hq/dexpulse/pkg/models"
)

var (
	testWallet = common.HexToAddress("0x2222222222222222222222222222222222222222")
	testWETH   = common.HexToAddress("0x4200000000000000000000000000000000000006")
	testRouter = common.HexToAddress("0x2626664c2603336E57B271c5C0b26F421741e481")
	testToken  = common.HexToAddress("0x1111111111111111111111111111111111111111")

	errRevert    = errors.New("execution reverted")
	errTransport = errors.New("Post \"https://mainnet.base.org\": connection reset by peer")
)

func ether(s string) *big.Int {
	return ToBaseUnits(decimal.RequireFromString(s), BaseDecimals)
}

// fakeQuoter answers quotes from fixed per-tier tables
type fakeQuoter struct {
	mu     sync.Mutex
	quotes map[uint32]*big.Int
	errs   map[uint32]error
	calls  []uint32
}

func (f *fakeQuoter) QuoteExactInputSingle(_ context.Context, _, _ common.Address, _ *big.Int, feeTier uint32) (*big.Int, error) {
	f.mu.Lock()
	f.calls = append(f.calls, feeTier)
	f.mu.Unlock()

	if err, ok := f.errs[feeTier]; ok {
		return nil, err
	}
	if q, ok := f.quotes[feeTier]; ok {
		return q, nil
	}
	return nil, errRevert
}

// fakeChain records every state-changing call
type fakeChain struct {
	fakeQuoter

	token        models.TokenDescriptor
	baseBalance  *big.Int
	tokenBalance *big.Int
	allowance    *big.Int

	gasPriceErr error
	swapErrs    []error
	approveErrs []error
	waitErr     error

	approvals []*big.Int
	intents   []models.TradeIntent
	swapCalls int
	waits     int
	nonce     uint64
}

func newFakeChain() *fakeChain {
	return &fakeChain{
		fakeQuoter: fakeQuoter{
			quotes: map[uint32]*big.Int{},
			errs:   map[uint32]error{},
		},
		token:        models.TokenDescriptor{Address: testToken, Symbol: "TKN", Name: "Token", Decimals: 18},
		baseBalance:  ether("1"),
		tokenBalance: big.NewInt(0),
		allowance:    big.NewInt(0),
	}
}

func (f *fakeChain) Address() common.Address       { return testWallet }
func (f *fakeChain) WETHAddress() common.Address   { return testWETH }
func (f *fakeChain) RouterAddress() common.Address { return testRouter }

func (f *fakeChain) SwapRecipient(tokenOut common.Address) common.Address {
	if tokenOut == testWETH {
		return testRouter
	}
	return testWallet
}

func (f *fakeChain) UpdateGasPrice(_ context.Context) (*big.Int, error) {
	if f.gasPriceErr != nil {
		return nil, f.gasPriceErr
	}
	return big.NewInt(1_000_000_000), nil
}

func (f *fakeChain) BaseBalance(_ context.Context) (*big.Int, error) {
	return f.baseBalance, nil
}

func (f *fakeChain) TokenBalance(_ context.Context, _ common.Address) (*big.Int, error) {
	return f.tokenBalance, nil
}

func (f *fakeChain) TokenInfo(_ context.Context, _ common.Address) (models.TokenDescriptor, error) {
	return f.token, nil
}

func (f *fakeChain) Allowance(_ context.Context, _, _ common.Address) (*big.Int, error) {
	return f.allowance, nil
}

func (f *fakeChain) Approve(_ context.Context, _, _ common.Address, amount *big.Int) (*types.Transaction, error) {
	if len(f.approveErrs) > 0 {
		err := f.approveErrs[0]
		f.approveErrs = f.approveErrs[1:]
		return nil, err
	}
	f.approvals = append(f.approvals, amount)
	f.allowance = amount
	return f.newTx(), nil
}

func (f *fakeChain) SwapExactInputSingle(_ context.Context, intent models.TradeIntent) (*types.Transaction, error) {
	f.swapCalls++
	if len(f.swapErrs) > 0 {
		err := f.swapErrs[0]
		f.swapErrs = f.swapErrs[1:]
		return nil, err
	}
	f.intents = append(f.intents, intent)
	return f.newTx(), nil
}

func (f *fakeChain) WaitForConfirmation(_ context.Context, tx *types.Transaction, _ time.Duration) (*types.Receipt, error) {
	f.waits++
	receipt := &types.Receipt{
		Status:      types.ReceiptStatusSuccessful,
		TxHash:      tx.Hash(),
		BlockNumber: big.NewInt(1234),
		GasUsed:     120_000,
	}
	if f.waitErr != nil {
		if errors.Is(f.waitErr, chainclient.ErrReverted) {
			receipt.Status = types.ReceiptStatusFailed
			return receipt, f.waitErr
		}
		return nil, f.waitErr
	}

	// the pool pays out the quoted amount of the last swap
	if len(f.intents) > 0 {
		intent := f.intents[len(f.intents)-1]
		if tx.Nonce() == f.nonce-1 {
			receipt.Logs = []*types.Log{transferLog(intent.TokenOut, f.SwapRecipient(intent.TokenOut), f.quotes[intent.FeeTier])}
		}
	}
	return receipt, nil
}

func (f *fakeChain) newTx() *types.Transaction {
	tx := types.NewTx(&types.LegacyTx{Nonce: f.nonce, GasPrice: big.NewInt(1), Gas: 21000})
	f.nonce++
	return tx
}

func transferLog(token, to common.Address, amount *big.Int) *types.Log {
	if amount == nil {
		amount = big.NewInt(0)
	}
	return &types.Log{
		Address: token,
		Topics: []common.Hash{
			contracts.TransferTopic,
			common.BytesToHash(common.HexToAddress("0x00000000000000000000000000000000000000aa").Bytes()),
			common.BytesToHash(to.Bytes()),
		},
		Data: common.LeftPadBytes(amount.Bytes(), 32),
	}
}

// fixedPrice is a PriceSource returning a constant
type fixedPrice struct {
	price decimal.Decimal
}

func (p fixedPrice) BasePriceUSD(_ context.Context) (decimal.Decimal, string) {
	return p.price, chainclient.SourceFallback
}

// fixedRand always draws the same offset
type fixedRand struct {
	offset int64
}

func (r fixedRand) Int64N(n int64) int64 {
	if r.offset >= n {
		panic(fmt.Sprintf("offset %d out of range %d", r.offset, n))
	}
	return r.offset
}
