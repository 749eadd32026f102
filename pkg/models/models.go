package models

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Direction is the side of a trade
type Direction string

const (
	// Buy swaps the base currency for the token
	Buy Direction = "buy"
	// Sell swaps the full token balance back to the base currency
	Sell Direction = "sell"
)

// TokenDescriptor represents identity and display metadata of an ERC-20 token
type TokenDescriptor struct {
	Address  common.Address `json:"address"`
	Symbol   string         `json:"symbol"`
	Name     string         `json:"name"`
	Decimals uint8          `json:"decimals"`
}

// Quote is the result of probing a single fee tier
type Quote struct {
	FeeTier   uint32   `json:"fee_tier"`
	AmountOut *big.Int `json:"amount_out"`
}

// TradeIntent represents one attempted swap
type TradeIntent struct {
	Direction    Direction      `json:"direction"`
	TokenIn      common.Address `json:"token_in"`
	TokenOut     common.Address `json:"token_out"`
	AmountIn     *big.Int       `json:"amount_in"`
	MinAmountOut *big.Int       `json:"min_amount_out"`
	FeeTier      uint32         `json:"fee_tier"`
	Deadline     time.Time      `json:"deadline"`
}

// Balances holds the wallet balances in smallest units
type Balances struct {
	Base  *big.Int `json:"base"`
	Token *big.Int `json:"token"`
}

// TradeResult is the outcome of a confirmed swap
type TradeResult struct {
	TxHash          common.Hash `json:"tx_hash"`
	BlockNumber     uint64      `json:"block_number"`
	GasUsed         uint64      `json:"gas_used"`
	InputAmount     *big.Int    `json:"input_amount"`
	OutputAmount    *big.Int    `json:"output_amount"`
	MinOutputAmount *big.Int    `json:"min_output_amount"`
	FeeTier         uint32      `json:"fee_tier"`
	Balances        Balances    `json:"new_balances"`
}

// Status tags an Outcome
type Status string

const (
	StatusSuccess Status = "success"
	StatusSkipped Status = "skipped"
	StatusFailure Status = "failure"
)

// Failure carries a classified error
type Failure struct {
	Kind    string            `json:"error_kind"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

// Outcome is the single terminal result of an invocation.
// Exactly one of Result, Reason or Failure is set, according to Status.
type Outcome struct {
	Status        Status       `json:"status"`
	Direction     Direction    `json:"direction"`
	CorrelationID string       `json:"correlation_id"`
	Result        *TradeResult `json:"result,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	Failure       *Failure     `json:"failure,omitempty"`
}

// Succeeded builds a success outcome
func Succeeded(direction Direction, result *TradeResult) Outcome {
	return Outcome{Status: StatusSuccess, Direction: direction, Result: result}
}

// Skipped builds a skipped outcome
func Skipped(direction Direction, reason string) Outcome {
	return Outcome{Status: StatusSkipped, Direction: direction, Reason: reason}
}

// Failed builds a failure outcome
func Failed(direction Direction, failure Failure) Outcome {
	return Outcome{Status: StatusFailure, Direction: direction, Failure: &failure}
}
