package trader

import (
	"context"
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/speedrun-hq/dexpulse/pkg/logger"
	"github.com/speedrun-hq/dexpulse/pkg/metrics"
	"github.com/speedrun-hq/dexpulse/pkg/models"
)

// Quoter reads expected swap outputs for a single pool
type Quoter interface {
	QuoteExactInputSingle(ctx context.Context, tokenIn, tokenOut common.Address, amountIn *big.Int, feeTier uint32) (*big.Int, error)
}

// probeResult is the outcome of quoting one fee tier
type probeResult struct {
	feeTier   uint32
	amountOut *big.Int
	err       error
	transport bool
}

func (p probeResult) usable() bool {
	return p.err == nil && p.amountOut != nil && p.amountOut.Sign() > 0
}

// QuoteSelector probes fee tiers and keeps the best quote
type QuoteSelector struct {
	quoter Quoter
}

// NewQuoteSelector creates a quote selector over quoter
func NewQuoteSelector(quoter Quoter) *QuoteSelector {
	return &QuoteSelector{quoter: quoter}
}

// SelectBestQuote quotes amountIn on every fee tier and returns the highest output.
// Ties keep the tier probed first. When no tier quotes, the error kind is
// quote_unavailable if any probe failed at the transport level and
// no_liquidity otherwise.
func (s *QuoteSelector) SelectBestQuote(ctx context.Context, log logger.Logger, tokenIn, tokenOut common.Address, amountIn *big.Int, feeTiers []uint32) (models.Quote, error) {
	if amountIn == nil || amountIn.Sign() <= 0 {
		return models.Quote{}, newError(KindInvalidInput, "quote", "input amount must be positive")
	}
	if len(feeTiers) == 0 {
		return models.Quote{}, newError(KindInvalidInput, "quote", "no fee tiers configured")
	}

	// probes are read-only so they run concurrently; results keep tier order
	probes := make([]probeResult, len(feeTiers))
	var g errgroup.Group
	for i, tier := range feeTiers {
		g.Go(func() error {
			probes[i] = s.probe(ctx, tokenIn, tokenOut, amountIn, tier)
			return nil
		})
	}
	_ = g.Wait()

	var best *models.Quote
	for _, p := range probes {
		tier := strconv.FormatUint(uint64(p.feeTier), 10)
		switch {
		case p.usable():
			metrics.QuoteProbes.WithLabelValues(tier, "ok").Inc()
			log.Debug("Fee tier %d quotes %s", p.feeTier, p.amountOut.String())
			if best == nil || p.amountOut.Cmp(best.AmountOut) > 0 {
				best = &models.Quote{FeeTier: p.feeTier, AmountOut: p.amountOut}
			}
		case p.transport:
			metrics.QuoteProbes.WithLabelValues(tier, "error").Inc()
			log.Notice("Fee tier %d quote failed: %v", p.feeTier, p.err)
		default:
			metrics.QuoteProbes.WithLabelValues(tier, "no_pool").Inc()
			log.Debug("Fee tier %d has no usable pool", p.feeTier)
		}
	}

	if best != nil {
		log.Info("Best quote: fee tier %d, output %s", best.FeeTier, best.AmountOut.String())
		return *best, nil
	}

	details := map[string]string{
		"token_in":  tokenIn.Hex(),
		"token_out": tokenOut.Hex(),
		"amount_in": amountIn.String(),
	}
	if failed := lo.CountBy(probes, func(p probeResult) bool { return p.transport }); failed > 0 {
		err := newError(KindQuoteUnavailable, "quote", "%d of %d fee tiers could not be quoted", failed, len(probes))
		err.Details = details
		err.Err = lo.FindOrElse(probes, probeResult{}, func(p probeResult) bool { return p.transport }).err
		return models.Quote{}, err
	}

	err := newError(KindNoLiquidity, "quote", "no liquidity for %s -> %s", tokenIn.Hex(), tokenOut.Hex())
	err.Details = details
	return models.Quote{}, err
}

// probe quotes a single tier. A revert or a zero output means no usable pool.
func (s *QuoteSelector) probe(ctx context.Context, tokenIn, tokenOut common.Address, amountIn *big.Int, feeTier uint32) probeResult {
	amountOut, err := s.quoter.QuoteExactInputSingle(ctx, tokenIn, tokenOut, amountIn, feeTier)
	if err != nil {
		return probeResult{
			feeTier:   feeTier,
			err:       err,
			transport: Classify(err) != KindExecutionReverted,
		}
	}
	return probeResult{feeTier: feeTier, amountOut: amountOut}
}
