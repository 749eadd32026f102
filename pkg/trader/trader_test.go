package trader

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/speedrun-hq/dexpulse/pkg/chainclient"
	"github.com/speedrun-hq/dexpulse/pkg/config"
	"github.com/speedrun-hq/dexpulse/pkg/contracts"
	"github.com/speedrun-hq/dexpulse/pkg/logger"
	"github.com/speedrun-hq/dexpulse/pkg/models"
)

func testOptions() Options {
	return Options{
		Token: testToken,
		Trade: config.TradeConfig{
			MinBuyUSD:         decimal.NewFromInt(1),
			MaxBuyUSD:         decimal.NewFromInt(10),
			SlippageTolerance: decimal.NewFromInt(5),
			FeeTiers:          []uint32{500, 3000, 10000},
			GasReserve:        decimal.RequireFromString("0.0005"),
			SwapDeadline:      5 * time.Minute,
		},
		Retry: RetryPolicy{
			MaxAttempts: 3,
			BaseDelay:   time.Millisecond,
			Multiplier:  2,
		},
		ConfirmationTimeout: time.Second,
	}
}

// newTestTrader draws $5.00 on every buy at a $2500 base price
func newTestTrader(chain *fakeChain, opts Options) *Trader {
	tr := New(chain, fixedPrice{price: decimal.NewFromInt(2500)}, opts)
	tr.rand = fixedRand{offset: 400} // 100 cents + 400
	now := time.Unix(1_700_000_000, 0)
	tr.now = func() time.Time { return now }
	return tr
}

var log = &logger.EmptyLogger{}

func TestBuyScenario(t *testing.T) {
	chain := newFakeChain()
	chain.quotes[500] = big.NewInt(900)
	chain.quotes[3000] = big.NewInt(1000)
	chain.quotes[10000] = big.NewInt(1000)

	outcome := newTestTrader(chain, testOptions()).Buy(context.Background(), log)
	require.Equal(t, models.StatusSuccess, outcome.Status, "%+v", outcome.Failure)

	require.Len(t, chain.intents, 1)
	intent := chain.intents[0]
	assert.Equal(t, models.Buy, intent.Direction)
	assert.Equal(t, testWETH, intent.TokenIn)
	assert.Equal(t, testToken, intent.TokenOut)
	assert.Equal(t, ether("0.002"), intent.AmountIn)
	assert.Equal(t, big.NewInt(950), intent.MinAmountOut)
	assert.Equal(t, uint32(3000), intent.FeeTier, "tie keeps the first tier")
	assert.Equal(t, time.Unix(1_700_000_000, 0).Add(5*time.Minute), intent.Deadline)

	assert.Empty(t, chain.approvals, "buy sends native value")

	result := outcome.Result
	assert.Equal(t, uint64(1234), result.BlockNumber)
	assert.Equal(t, uint64(120_000), result.GasUsed)
	assert.Equal(t, ether("0.002"), result.InputAmount)
	assert.Equal(t, big.NewInt(1000), result.OutputAmount)
	assert.Equal(t, big.NewInt(950), result.MinOutputAmount)
	assert.Equal(t, uint32(3000), result.FeeTier)
	assert.Equal(t, ether("1"), result.Balances.Base)
}

func TestBuyInsufficientBalance(t *testing.T) {
	tests := []struct {
		name    string
		balance *big.Int
		short   string
	}{
		{"below gas reserve", ether("0.0001"), "gas_reserve"},
		{"reserve leaves too little", ether("0.0020"), "base_balance"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chain := newFakeChain()
			chain.baseBalance = tt.balance
			chain.quotes[3000] = big.NewInt(1000)

			outcome := newTestTrader(chain, testOptions()).Buy(context.Background(), log)
			require.Equal(t, models.StatusFailure, outcome.Status)
			assert.Equal(t, string(KindInsufficientBalance), outcome.Failure.Kind)
			assert.Equal(t, tt.short, outcome.Failure.Details["short"])
			assert.Zero(t, chain.swapCalls)
			assert.Empty(t, chain.calls, "no quote before the balance check passes")
		})
	}
}

func TestBuyNoLiquidity(t *testing.T) {
	chain := newFakeChain()

	outcome := newTestTrader(chain, testOptions()).Buy(context.Background(), log)
	require.Equal(t, models.StatusFailure, outcome.Status)
	assert.Equal(t, string(KindNoLiquidity), outcome.Failure.Kind)
	assert.Equal(t, testWETH.Hex(), outcome.Failure.Details["token_in"])
	assert.Equal(t, testToken.Hex(), outcome.Failure.Details["token_out"])
	assert.Zero(t, chain.swapCalls)
}

func TestBuyQuoteUnavailable(t *testing.T) {
	chain := newFakeChain()
	chain.errs[3000] = errTransport

	outcome := newTestTrader(chain, testOptions()).Buy(context.Background(), log)
	require.Equal(t, models.StatusFailure, outcome.Status)
	assert.Equal(t, string(KindQuoteUnavailable), outcome.Failure.Kind)
	assert.Zero(t, chain.swapCalls)
}

func TestBuyDryRun(t *testing.T) {
	chain := newFakeChain()
	chain.quotes[500] = big.NewInt(1000)
	opts := testOptions()
	opts.DryRun = true

	outcome := newTestTrader(chain, opts).Buy(context.Background(), log)
	assert.Equal(t, models.StatusSkipped, outcome.Status)
	assert.Equal(t, ReasonDryRun, outcome.Reason)
	assert.Zero(t, chain.swapCalls)
}

func TestSellZeroBalanceSkipped(t *testing.T) {
	chain := newFakeChain()
	chain.quotes[3000] = big.NewInt(1000)

	outcome := newTestTrader(chain, testOptions()).Sell(context.Background(), log)
	assert.Equal(t, models.StatusSkipped, outcome.Status)
	assert.Equal(t, ReasonNoTokens, outcome.Reason)
	assert.Nil(t, outcome.Result)
	assert.Nil(t, outcome.Failure)

	assert.Zero(t, chain.swapCalls)
	assert.Empty(t, chain.approvals)
	assert.Empty(t, chain.calls)
}

func TestSellFullBalanceSkipsApproval(t *testing.T) {
	chain := newFakeChain()
	chain.tokenBalance = big.NewInt(80)
	chain.allowance = big.NewInt(100)
	chain.quotes[500] = ether("0.001")

	outcome := newTestTrader(chain, testOptions()).Sell(context.Background(), log)
	require.Equal(t, models.StatusSuccess, outcome.Status, "%+v", outcome.Failure)

	assert.Empty(t, chain.approvals, "allowance 100 covers 80")
	require.Len(t, chain.intents, 1)
	intent := chain.intents[0]
	assert.Equal(t, big.NewInt(80), intent.AmountIn)
	assert.Equal(t, testToken, intent.TokenIn)
	assert.Equal(t, testWETH, intent.TokenOut)
	assert.Equal(t, MinOutput(ether("0.001"), decimal.NewFromInt(5)), intent.MinAmountOut)

	// WETH is paid to the router and unwrapped
	assert.Equal(t, ether("0.001"), outcome.Result.OutputAmount)
}

func TestSellApproves(t *testing.T) {
	tests := []struct {
		name      string
		unlimited bool
		expected  *big.Int
	}{
		{"exact", false, big.NewInt(80)},
		{"unlimited", true, contracts.MaxUint256},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chain := newFakeChain()
			chain.tokenBalance = big.NewInt(80)
			chain.allowance = big.NewInt(10)
			chain.quotes[3000] = big.NewInt(5000)
			opts := testOptions()
			opts.ApproveUnlimited = tt.unlimited

			outcome := newTestTrader(chain, opts).Sell(context.Background(), log)
			require.Equal(t, models.StatusSuccess, outcome.Status, "%+v", outcome.Failure)

			require.Len(t, chain.approvals, 1)
			assert.Equal(t, tt.expected, chain.approvals[0])
			assert.Equal(t, 2, chain.waits, "approval confirmed before the swap")
		})
	}
}

func TestSellApprovalFatal(t *testing.T) {
	chain := newFakeChain()
	chain.tokenBalance = big.NewInt(80)
	chain.quotes[3000] = big.NewInt(5000)
	chain.approveErrs = []error{errors.New("insufficient funds for gas * price + value")}

	outcome := newTestTrader(chain, testOptions()).Sell(context.Background(), log)
	require.Equal(t, models.StatusFailure, outcome.Status)
	assert.Equal(t, string(KindInsufficientFunds), outcome.Failure.Kind)
	assert.Zero(t, chain.swapCalls)
}

func TestSwapRetriedThenSucceeds(t *testing.T) {
	chain := newFakeChain()
	chain.quotes[3000] = big.NewInt(1000)
	chain.swapErrs = []error{errTransport, errTransport}

	outcome := newTestTrader(chain, testOptions()).Buy(context.Background(), log)
	require.Equal(t, models.StatusSuccess, outcome.Status, "%+v", outcome.Failure)
	assert.Equal(t, 3, chain.swapCalls)
	assert.Equal(t, 1, chain.waits)
}

func TestSwapExhaustedRetries(t *testing.T) {
	chain := newFakeChain()
	chain.quotes[3000] = big.NewInt(1000)
	chain.swapErrs = []error{errTransport, errTransport, errTransport, errTransport}

	outcome := newTestTrader(chain, testOptions()).Buy(context.Background(), log)
	require.Equal(t, models.StatusFailure, outcome.Status)
	assert.Equal(t, string(KindExhaustedRetries), outcome.Failure.Kind)
	assert.Contains(t, outcome.Failure.Message, "connection reset by peer")
	assert.Equal(t, 3, chain.swapCalls)
	assert.Zero(t, chain.waits)
}

func TestSwapFatalNotRetried(t *testing.T) {
	chain := newFakeChain()
	chain.quotes[3000] = big.NewInt(1000)
	chain.swapErrs = []error{errors.New("nonce too low: next nonce 5, tx nonce 4")}

	outcome := newTestTrader(chain, testOptions()).Buy(context.Background(), log)
	require.Equal(t, models.StatusFailure, outcome.Status)
	assert.Equal(t, string(KindNonceConflict), outcome.Failure.Kind)
	assert.Equal(t, 1, chain.swapCalls)
}

func TestConfirmationFailures(t *testing.T) {
	tests := []struct {
		name    string
		waitErr error
		kind    ErrorKind
	}{
		{"timeout", fmt.Errorf("%w: 0xabc not included after 2m0s", chainclient.ErrConfirmationTimeout), KindConfirmationTimeout},
		{"reverted", fmt.Errorf("%w: 0xabc in block 1234", chainclient.ErrReverted), KindReverted},
		{"canceled", fmt.Errorf("failed to wait for transaction 0xabc: %w", context.Canceled), KindCanceled},
		{"rpc failure", errors.New("failed to wait for transaction 0xabc: connection refused"), KindRetryable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chain := newFakeChain()
			chain.quotes[3000] = big.NewInt(1000)
			chain.waitErr = tt.waitErr

			outcome := newTestTrader(chain, testOptions()).Buy(context.Background(), log)
			require.Equal(t, models.StatusFailure, outcome.Status)
			assert.Equal(t, string(tt.kind), outcome.Failure.Kind)
			assert.NotEmpty(t, outcome.Failure.Details["tx_hash"])
			assert.Equal(t, 1, chain.swapCalls, "no resubmission after a confirmation failure")
		})
	}
}

func TestRunTagsOutcome(t *testing.T) {
	chain := newFakeChain()

	outcome := newTestTrader(chain, testOptions()).Run(context.Background(), log, models.Sell, "corr-1")
	assert.Equal(t, "corr-1", outcome.CorrelationID)
	assert.Equal(t, models.Sell, outcome.Direction)
	assert.Equal(t, models.StatusSkipped, outcome.Status)

	outcome = newTestTrader(chain, testOptions()).Run(context.Background(), log, models.Direction("hold"), "corr-2")
	assert.Equal(t, models.StatusFailure, outcome.Status)
	assert.Equal(t, string(KindInvalidInput), outcome.Failure.Kind)
}
