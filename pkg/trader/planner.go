package trader

import (
	"math/big"
	"math/rand/v2"

	"github.com/shopspring/decimal"
)

// BaseDecimals is the precision of the base currency (wei)
const BaseDecimals = 18

var (
	oneHundred = decimal.NewFromInt(100)
	bpsDenom   = big.NewInt(10_000)
	maxBps     = big.NewInt(10_000)
)

// Rand draws uniform integers in [0, n)
type Rand interface {
	Int64N(n int64) int64
}

// globalRand uses the auto-seeded math/rand/v2 source
type globalRand struct{}

func (globalRand) Int64N(n int64) int64 { return rand.Int64N(n) }

// RandomBuyAmount draws a USD amount uniformly from whole cents in [minUSD, maxUSD].
// It returns zero when the interval holds no whole cent.
func RandomBuyAmount(r Rand, minUSD, maxUSD decimal.Decimal) decimal.Decimal {
	low := minUSD.Mul(oneHundred).Ceil().IntPart()
	high := maxUSD.Mul(oneHundred).Floor().IntPart()
	if high < low {
		return decimal.Zero
	}
	return decimal.New(low+r.Int64N(high-low+1), -2)
}

// ToBaseUnits converts a decimal amount to smallest units, truncating below one unit
func ToBaseUnits(amount decimal.Decimal, decimals uint8) *big.Int {
	return amount.Shift(int32(decimals)).Truncate(0).BigInt()
}

// FromBaseUnits renders smallest units as a decimal amount
func FromBaseUnits(amount *big.Int, decimals uint8) decimal.Decimal {
	if amount == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(amount, -int32(decimals))
}

// USDToBase converts a USD amount to wei at basePriceUSD, truncating
func USDToBase(targetUSD, basePriceUSD decimal.Decimal) (*big.Int, error) {
	if !basePriceUSD.IsPositive() {
		return nil, newError(KindInvalidInput, "plan", "base currency price must be positive, got %s", basePriceUSD.String())
	}
	if !targetUSD.IsPositive() {
		return nil, newError(KindInvalidInput, "plan", "buy amount must be positive, got %s", targetUSD.String())
	}

	amount := targetUSD.Shift(BaseDecimals).Div(basePriceUSD).Truncate(0).BigInt()
	if amount.Sign() <= 0 {
		return nil, newError(KindInvalidInput, "plan", "$%s is below one wei at $%s", targetUSD.String(), basePriceUSD.String())
	}
	return amount, nil
}

// PlanBuy converts targetUSD into a base currency input amount and checks that
// the wallet covers it on top of gasReserve
func PlanBuy(targetUSD, basePriceUSD decimal.Decimal, balance, gasReserve *big.Int) (*big.Int, error) {
	inputAmount, err := USDToBase(targetUSD, basePriceUSD)
	if err != nil {
		return nil, err
	}

	details := map[string]string{
		"required":    inputAmount.String(),
		"available":   balance.String(),
		"gas_reserve": gasReserve.String(),
	}

	if balance.Cmp(gasReserve) < 0 {
		err := newError(KindInsufficientBalance, "plan", "gas reserve short: balance %s wei below reserve %s wei", balance.String(), gasReserve.String())
		details["short"] = "gas_reserve"
		err.Details = details
		return nil, err
	}

	spendable := new(big.Int).Sub(balance, gasReserve)
	if spendable.Cmp(inputAmount) < 0 {
		err := newError(KindInsufficientBalance, "plan", "base balance short: spendable %s wei below required %s wei", spendable.String(), inputAmount.String())
		details["short"] = "base_balance"
		err.Details = details
		return nil, err
	}

	return inputAmount, nil
}

// PlanSell returns the full token balance as the input amount.
// A zero balance reports skip and is not an error.
func PlanSell(tokenBalance *big.Int) (amountIn *big.Int, skip bool) {
	if tokenBalance == nil || tokenBalance.Sign() <= 0 {
		return nil, true
	}
	return new(big.Int).Set(tokenBalance), false
}

// MinOutput computes expected - floor(expected * round(slippage*100) / 10000)
func MinOutput(expected *big.Int, slippagePercent decimal.Decimal) *big.Int {
	bps := slippagePercent.Mul(oneHundred).Round(0).BigInt()
	if bps.Sign() < 0 {
		bps.SetInt64(0)
	}
	if bps.Cmp(maxBps) > 0 {
		bps.Set(maxBps)
	}

	deduction := new(big.Int).Mul(expected, bps)
	deduction.Quo(deduction, bpsDenom)
	return new(big.Int).Sub(expected, deduction)
}
