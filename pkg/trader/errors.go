package trader

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/rpc"

	"github.com/speedrun-hq/dexpulse/pkg/chainclient"
	"github.com/speedrun-hq/dexpulse/pkg/models"
)

// ErrorKind is the closed set of failure kinds an invocation can end with
type ErrorKind string

const (
	KindNoLiquidity         ErrorKind = "no_liquidity"
	KindQuoteUnavailable    ErrorKind = "quote_unavailable"
	KindInsufficientBalance ErrorKind = "insufficient_balance"
	KindInsufficientFunds   ErrorKind = "insufficient_funds"
	KindNonceConflict       ErrorKind = "nonce_conflict"
	KindFeeTooLow           ErrorKind = "fee_too_low"
	KindDuplicateSubmission ErrorKind = "duplicate_submission"
	KindInvalidCredential   ErrorKind = "invalid_credential"
	KindExecutionReverted   ErrorKind = "execution_reverted"
	KindRetryable           ErrorKind = "retryable"
	KindExhaustedRetries    ErrorKind = "exhausted_retries"
	KindConfirmationTimeout ErrorKind = "confirmation_timeout"
	KindReverted            ErrorKind = "reverted"
	KindInvalidInput        ErrorKind = "invalid_input"
	KindCanceled            ErrorKind = "canceled"
)

// Fatal reports whether an error of this kind must not be retried
func (k ErrorKind) Fatal() bool {
	return k != KindRetryable
}

// rpcRevertCode is the JSON-RPC error code nodes use for execution reverts
const rpcRevertCode = 3

// providerSignatures maps known provider error messages to kinds.
// Matching is case-insensitive and the first match wins.
var providerSignatures = []struct {
	signature string
	kind      ErrorKind
}{
	{"insufficient funds", KindInsufficientFunds},
	{"nonce too low", KindNonceConflict},
	{"nonce too high", KindNonceConflict},
	{"nonce has already been used", KindNonceConflict},
	{"replacement transaction underpriced", KindFeeTooLow},
	{"transaction underpriced", KindFeeTooLow},
	{"max fee per gas less than block base fee", KindFeeTooLow},
	{"fee too low", KindFeeTooLow},
	{"already known", KindDuplicateSubmission},
	{"known transaction", KindDuplicateSubmission},
	{"invalid sender", KindInvalidCredential},
	{"invalid signature", KindInvalidCredential},
	{"invalid private key", KindInvalidCredential},
	{"unauthorized", KindInvalidCredential},
	{"execution reverted", KindExecutionReverted},
	{"revert", KindExecutionReverted},
}

// TradeError is a classified failure
type TradeError struct {
	Kind    ErrorKind
	Op      string
	Message string
	Details map[string]string
	Err     error
}

func (e *TradeError) Error() string {
	var sb strings.Builder
	if e.Op != "" {
		sb.WriteString(e.Op)
		sb.WriteString(": ")
	}
	sb.WriteString(e.Message)
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

func (e *TradeError) Unwrap() error {
	return e.Err
}

// newError builds a TradeError without an underlying cause
func newError(kind ErrorKind, op, format string, args ...interface{}) *TradeError {
	return &TradeError{Kind: kind, Op: op, Message: fmt.Sprintf(format, args...)}
}

// wrapError classifies err and attaches the operation that produced it
func wrapError(op string, err error) *TradeError {
	var te *TradeError
	if errors.As(err, &te) {
		return te
	}
	kind := Classify(err)
	return &TradeError{Kind: kind, Op: op, Message: string(kind), Err: err}
}

// Classify maps an error returned by the chain boundary to a kind.
// Typed errors are checked first, then the provider signature table.
// Anything unrecognized is retryable.
func Classify(err error) ErrorKind {
	if err == nil {
		return ""
	}

	var te *TradeError
	if errors.As(err, &te) {
		return te.Kind
	}

	switch {
	case errors.Is(err, chainclient.ErrConfirmationTimeout):
		return KindConfirmationTimeout
	case errors.Is(err, chainclient.ErrReverted):
		return KindReverted
	}

	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) && rpcErr.ErrorCode() == rpcRevertCode {
		return KindExecutionReverted
	}

	switch {
	case errors.Is(err, context.Canceled):
		return KindCanceled
	case errors.Is(err, context.DeadlineExceeded):
		return KindRetryable
	}

	msg := strings.ToLower(err.Error())
	for _, s := range providerSignatures {
		if strings.Contains(msg, s.signature) {
			return s.kind
		}
	}
	return KindRetryable
}

// failureFrom converts an error into the Failure shape of an Outcome
func failureFrom(err error) models.Failure {
	te := wrapError("", err)
	return models.Failure{
		Kind:    string(te.Kind),
		Message: te.Error(),
		Details: te.Details,
	}
}
