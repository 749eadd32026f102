package trader

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/speedrun-hq/dexpulse/pkg/contracts"
	"github.com/speedrun-hq/dexpulse/pkg/logger"
)

// approvalAmount decides how much to approve for a required amount
func approvalAmount(required *big.Int, unlimited bool) *big.Int {
	if unlimited {
		return contracts.MaxUint256
	}
	return required
}

// ensureAllowance makes sure spender may move amount of token from the wallet.
// It returns true when an approval transaction was submitted and confirmed.
func (t *Trader) ensureAllowance(ctx context.Context, log logger.Logger, token, spender common.Address, amount *big.Int) (bool, error) {
	current, err := t.chain.Allowance(ctx, token, spender)
	if err != nil {
		return false, wrapError("allowance", err)
	}

	if current.Cmp(amount) >= 0 {
		log.Info("Existing allowance (%s) is sufficient for amount (%s), skipping approval", current.String(), amount.String())
		return false, nil
	}

	approval := approvalAmount(amount, t.opts.ApproveUnlimited)
	log.Info("Allowance %s below %s, approving %s for %s", current.String(), amount.String(), approval.String(), spender.Hex())

	tx, err := ExecuteWithRetry(ctx, t.opts.Retry, log, "approve", func(ctx context.Context) (*types.Transaction, error) {
		return t.chain.Approve(ctx, token, spender, approval)
	})
	if err != nil {
		return false, err
	}

	receipt, err := t.confirm(ctx, log, "approve", tx)
	if err != nil {
		return false, err
	}

	log.Info("Approval confirmed in block %d (gas used: %d)", receipt.BlockNumber.Uint64(), receipt.GasUsed)
	return true, nil
}
