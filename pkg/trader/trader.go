package trader

import (
	"context"
	"errors"
	"math/big"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"

	"github.com/speedrun-hq/dexpulse/pkg/chainclient"
	"github.com/speedrun-hq/dexpulse/pkg/config"
	"github.com/speedrun-hq/dexpulse/pkg/contracts"
	"github.com/speedrun-hq/dexpulse/pkg/logger"
	"github.com/speedrun-hq/dexpulse/pkg/metrics"
	"github.com/speedrun-hq/dexpulse/pkg/models"
)

// ReasonNoTokens is the skip reason of a sell with an empty balance
const ReasonNoTokens = "no tokens to sell"

// ReasonDryRun is the skip reason of a run that stops before submission
const ReasonDryRun = "dry run"

// Chain is the blockchain client the trader drives
type Chain interface {
	Quoter
	Address() common.Address
	WETHAddress() common.Address
	RouterAddress() common.Address
	SwapRecipient(tokenOut common.Address) common.Address
	UpdateGasPrice(ctx context.Context) (*big.Int, error)
	BaseBalance(ctx context.Context) (*big.Int, error)
	TokenBalance(ctx context.Context, token common.Address) (*big.Int, error)
	TokenInfo(ctx context.Context, token common.Address) (models.TokenDescriptor, error)
	Allowance(ctx context.Context, token, spender common.Address) (*big.Int, error)
	Approve(ctx context.Context, token, spender common.Address, amount *big.Int) (*types.Transaction, error)
	SwapExactInputSingle(ctx context.Context, intent models.TradeIntent) (*types.Transaction, error)
	WaitForConfirmation(ctx context.Context, tx *types.Transaction, timeout time.Duration) (*types.Receipt, error)
}

// PriceSource returns the USD price of the base currency and where it came from
type PriceSource interface {
	BasePriceUSD(ctx context.Context) (decimal.Decimal, string)
}

// Options holds the trading parameters
type Options struct {
	Token               common.Address
	Trade               config.TradeConfig
	Retry               RetryPolicy
	ConfirmationTimeout time.Duration
	ApproveUnlimited    bool
	DryRun              bool
}

// OptionsFromConfig builds trading options from the loaded configuration
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Token: cfg.TokenAddress,
		Trade: cfg.Trade,
		Retry: RetryPolicy{
			MaxAttempts: cfg.Retry.MaxAttempts,
			BaseDelay:   cfg.Retry.BaseDelay,
			Multiplier:  cfg.Retry.Multiplier,
		},
		ConfirmationTimeout: cfg.Retry.ConfirmationTimeout,
		ApproveUnlimited:    cfg.Chain.ApproveUnlimited,
	}
}

// Trader sequences quoting, approval and swap submission for one invocation
type Trader struct {
	chain    Chain
	price    PriceSource
	selector *QuoteSelector
	opts     Options
	rand     Rand
	now      func() time.Time
}

// New creates a new trader
func New(chain Chain, price PriceSource, opts Options) *Trader {
	if opts.ConfirmationTimeout <= 0 {
		opts.ConfirmationTimeout = config.DefaultConfirmationTimeout
	}
	return &Trader{
		chain:    chain,
		price:    price,
		selector: NewQuoteSelector(chain),
		opts:     opts,
		rand:     globalRand{},
		now:      time.Now,
	}
}

// Run executes one invocation and always returns exactly one outcome
func (t *Trader) Run(ctx context.Context, log logger.Logger, direction models.Direction, correlationID string) models.Outcome {
	log = log.With("correlation_id", correlationID).With("direction", string(direction))
	start := t.now()

	var outcome models.Outcome
	switch direction {
	case models.Buy:
		outcome = t.Buy(ctx, log)
	case models.Sell:
		outcome = t.Sell(ctx, log)
	default:
		outcome = models.Failed(direction, failureFrom(newError(KindInvalidInput, "run", "unknown direction %q", direction)))
	}
	outcome.CorrelationID = correlationID

	metrics.Trades.WithLabelValues(string(direction), string(outcome.Status)).Inc()
	metrics.TradeDuration.WithLabelValues(string(direction)).Observe(t.now().Sub(start).Seconds())

	switch outcome.Status {
	case models.StatusSuccess:
		log.Info("Trade succeeded: tx %s in block %d", outcome.Result.TxHash.Hex(), outcome.Result.BlockNumber)
	case models.StatusSkipped:
		log.Notice("Trade skipped: %s", outcome.Reason)
	case models.StatusFailure:
		metrics.Errors.WithLabelValues(string(direction), outcome.Failure.Kind).Inc()
		log.Error("Trade failed (%s): %s", outcome.Failure.Kind, outcome.Failure.Message)
	}
	return outcome
}

// Buy spends a random USD amount of the base currency on the token
func (t *Trader) Buy(ctx context.Context, log logger.Logger) models.Outcome {
	fail := func(err error) models.Outcome { return models.Failed(models.Buy, failureFrom(err)) }

	token, err := t.chain.TokenInfo(ctx, t.opts.Token)
	if err != nil {
		return fail(wrapError("token info", err))
	}

	targetUSD := RandomBuyAmount(t.rand, t.opts.Trade.MinBuyUSD, t.opts.Trade.MaxBuyUSD)
	price, source := t.price.BasePriceUSD(ctx)
	log.Info("Buying $%s of %s at base price $%s (%s)", targetUSD.StringFixed(2), token.Symbol, price.String(), source)

	balance, err := t.chain.BaseBalance(ctx)
	if err != nil {
		return fail(wrapError("balance", err))
	}

	amountIn, err := PlanBuy(targetUSD, price, balance, ToBaseUnits(t.opts.Trade.GasReserve, BaseDecimals))
	if err != nil {
		return fail(err)
	}
	log.Info("Input amount %s wei (balance %s wei)", amountIn.String(), balance.String())

	weth := t.chain.WETHAddress()
	quote, err := t.selector.SelectBestQuote(ctx, log, weth, token.Address, amountIn, t.opts.Trade.FeeTiers)
	if err != nil {
		return fail(err)
	}

	intent := t.newIntent(log, models.Buy, weth, token.Address, amountIn, quote)
	if t.opts.DryRun {
		return models.Skipped(models.Buy, ReasonDryRun)
	}

	if _, err := t.updateGasPrice(ctx); err != nil {
		return fail(err)
	}

	// native value is attached so no allowance is involved
	result, err := t.execute(ctx, log, intent)
	if err != nil {
		return fail(err)
	}
	return models.Succeeded(models.Buy, result)
}

// Sell swaps the whole token balance back to the base currency
func (t *Trader) Sell(ctx context.Context, log logger.Logger) models.Outcome {
	fail := func(err error) models.Outcome { return models.Failed(models.Sell, failureFrom(err)) }

	token, err := t.chain.TokenInfo(ctx, t.opts.Token)
	if err != nil {
		return fail(wrapError("token info", err))
	}

	balance, err := t.chain.TokenBalance(ctx, token.Address)
	if err != nil {
		return fail(wrapError("balance", err))
	}

	amountIn, skip := PlanSell(balance)
	if skip {
		return models.Skipped(models.Sell, ReasonNoTokens)
	}
	log.Info("Selling %s %s", FromBaseUnits(amountIn, token.Decimals).String(), token.Symbol)

	weth := t.chain.WETHAddress()
	quote, err := t.selector.SelectBestQuote(ctx, log, token.Address, weth, amountIn, t.opts.Trade.FeeTiers)
	if err != nil {
		return fail(err)
	}

	intent := t.newIntent(log, models.Sell, token.Address, weth, amountIn, quote)
	router := t.chain.RouterAddress()

	if t.opts.DryRun {
		allowance, err := t.chain.Allowance(ctx, token.Address, router)
		if err != nil {
			return fail(wrapError("allowance", err))
		}
		log.Info("Dry run: approval needed: %t", allowance.Cmp(amountIn) < 0)
		return models.Skipped(models.Sell, ReasonDryRun)
	}

	if _, err := t.updateGasPrice(ctx); err != nil {
		return fail(err)
	}
	if _, err := t.ensureAllowance(ctx, log, token.Address, router, amountIn); err != nil {
		return fail(err)
	}

	result, err := t.execute(ctx, log, intent)
	if err != nil {
		return fail(err)
	}
	return models.Succeeded(models.Sell, result)
}

func (t *Trader) newIntent(log logger.Logger, direction models.Direction, tokenIn, tokenOut common.Address, amountIn *big.Int, quote models.Quote) models.TradeIntent {
	minOut := MinOutput(quote.AmountOut, t.opts.Trade.SlippageTolerance)
	log.Info("Minimum output %s for expected %s at %s%% slippage", minOut.String(), quote.AmountOut.String(), t.opts.Trade.SlippageTolerance.String())

	return models.TradeIntent{
		Direction:    direction,
		TokenIn:      tokenIn,
		TokenOut:     tokenOut,
		AmountIn:     amountIn,
		MinAmountOut: minOut,
		FeeTier:      quote.FeeTier,
		Deadline:     t.now().Add(t.opts.Trade.SwapDeadline),
	}
}

func (t *Trader) updateGasPrice(ctx context.Context) (*big.Int, error) {
	price, err := t.chain.UpdateGasPrice(ctx)
	if err != nil {
		return nil, wrapError("gas price", err)
	}
	return price, nil
}

// execute submits the swap with retry, waits for inclusion and reads the new balances
func (t *Trader) execute(ctx context.Context, log logger.Logger, intent models.TradeIntent) (*models.TradeResult, error) {
	tx, err := ExecuteWithRetry(ctx, t.opts.Retry, log, "swap", func(ctx context.Context) (*types.Transaction, error) {
		return t.chain.SwapExactInputSingle(ctx, intent)
	})
	if err != nil {
		return nil, err
	}

	receipt, err := t.confirm(ctx, log, "swap", tx)
	if err != nil {
		return nil, err
	}
	metrics.GasUsed.WithLabelValues(string(intent.Direction)).Observe(float64(receipt.GasUsed))

	output := contracts.TransferredTo(receipt.Logs, intent.TokenOut, t.chain.SwapRecipient(intent.TokenOut))

	return &models.TradeResult{
		TxHash:          tx.Hash(),
		BlockNumber:     blockNumber(receipt),
		GasUsed:         receipt.GasUsed,
		InputAmount:     intent.AmountIn,
		OutputAmount:    output,
		MinOutputAmount: intent.MinAmountOut,
		FeeTier:         intent.FeeTier,
		Balances:        t.balances(ctx, log),
	}, nil
}

// confirm waits for tx within the confirmation timeout. The swap is never resubmitted after this point.
func (t *Trader) confirm(ctx context.Context, log logger.Logger, op string, tx *types.Transaction) (*types.Receipt, error) {
	log.Info("Waiting up to %s for %s transaction %s", t.opts.ConfirmationTimeout, op, tx.Hash().Hex())

	receipt, err := t.chain.WaitForConfirmation(ctx, tx, t.opts.ConfirmationTimeout)
	if err == nil {
		log.Info("%s transaction %s confirmed in block %d", op, tx.Hash().Hex(), blockNumber(receipt))
		return receipt, nil
	}

	details := map[string]string{"tx_hash": tx.Hash().Hex()}
	var te *TradeError
	switch {
	case errors.Is(err, chainclient.ErrReverted):
		te = &TradeError{Kind: KindReverted, Op: op, Message: string(KindReverted), Err: err}
		details["block_number"] = strconv.FormatUint(blockNumber(receipt), 10)
	case errors.Is(err, chainclient.ErrConfirmationTimeout):
		te = &TradeError{Kind: KindConfirmationTimeout, Op: op, Message: string(KindConfirmationTimeout), Err: err}
	default:
		te = wrapError(op, err)
	}
	for k, v := range te.Details {
		details[k] = v
	}
	te.Details = details
	return nil, te
}

// balances reads the post-trade balances; read failures leave the field empty
func (t *Trader) balances(ctx context.Context, log logger.Logger) models.Balances {
	var b models.Balances
	var err error
	if b.Base, err = t.chain.BaseBalance(ctx); err != nil {
		log.Notice("Failed to read base balance after trade: %v", err)
	}
	if b.Token, err = t.chain.TokenBalance(ctx, t.opts.Token); err != nil {
		log.Notice("Failed to read token balance after trade: %v", err)
	}
	return b
}

func blockNumber(receipt *types.Receipt) uint64 {
	if receipt == nil || receipt.BlockNumber == nil {
		return 0
	}
	return receipt.BlockNumber.Uint64()
}
