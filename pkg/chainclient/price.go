package chainclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"

	"github.com/speedrun-hq/dexpulse/pkg/config"
	"github.com/speedrun-hq/dexpulse/pkg/contracts"
	"github.com/speedrun-hq/dexpulse/pkg/logger"
	"github.com/speedrun-hq/dexpulse/pkg/metrics"
)

// Price sources in lookup order
const (
	SourceChainlink = "chainlink"
	SourceCoinGecko = "coingecko"
	SourceFallback  = "fallback"
)

// DefaultCoinGeckoURL is the simple price endpoint
const DefaultCoinGeckoURL = "https://api.coingecko.com/api/v3/simple/price"

const basePriceKey = "base_usd"

// PriceReference resolves the USD price of the base currency
type PriceReference struct {
	feed         *contracts.Aggregator
	cfg          config.PriceConfig
	timeout      time.Duration
	httpClient   *http.Client
	coinGeckoURL string
	cache        *PriceCache
	logger       logger.Logger
	now          func() time.Time
}

// NewPriceReference creates a price reference reading feed through caller.
// A zero feed address skips the on-chain oracle.
func NewPriceReference(caller bind.ContractCaller, feed common.Address, cfg config.PriceConfig, timeout time.Duration, log logger.Logger) (*PriceReference, error) {
	p := &PriceReference{
		cfg:          cfg,
		timeout:      timeout,
		httpClient:   &http.Client{},
		coinGeckoURL: DefaultCoinGeckoURL,
		cache:        NewPriceCache(time.Minute),
		logger:       log,
		now:          time.Now,
	}
	if feed != (common.Address{}) {
		aggregator, err := contracts.NewAggregator(feed, caller)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize price feed: %v", err)
		}
		p.feed = aggregator
	}
	return p, nil
}

// NewPriceReference creates a price reference over the client's backend
func (c *Client) NewPriceReference(feed common.Address, cfg config.PriceConfig) (*PriceReference, error) {
	return NewPriceReference(c.Backend, feed, cfg, c.RPCTimeout, c.logger)
}

// BasePriceUSD returns the price and the source that produced it.
// It never fails: the configured fallback constant is the last resort.
func (p *PriceReference) BasePriceUSD(ctx context.Context) (decimal.Decimal, string) {
	if price, source, ok := p.cache.Get(basePriceKey); ok {
		return price, source
	}

	price, source := p.resolve(ctx)
	p.cache.Set(basePriceKey, price, source)
	metrics.PriceSource.WithLabelValues(source).Inc()
	return price, source
}

func (p *PriceReference) resolve(ctx context.Context) (decimal.Decimal, string) {
	if p.feed != nil {
		price, err := p.chainlinkPrice(ctx)
		if err == nil {
			p.logger.Debug("Base currency price from oracle: $%s", price.String())
			return price, SourceChainlink
		}
		p.logger.Notice("Price oracle unavailable: %v", err)
	}

	if p.cfg.CoinGeckoID != "" {
		price, err := p.coinGeckoPrice(ctx)
		if err == nil {
			p.logger.Debug("Base currency price from CoinGecko: $%s", price.String())
			return price, SourceCoinGecko
		}
		p.logger.Notice("CoinGecko price unavailable: %v", err)
	}

	p.logger.Notice("Using fallback base currency price $%s", p.cfg.FallbackETHPrice.String())
	return p.cfg.FallbackETHPrice, SourceFallback
}

func (p *PriceReference) chainlinkPrice(ctx context.Context) (decimal.Decimal, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	opts := &bind.CallOpts{Context: timeoutCtx}

	decimals, err := p.feed.Decimals(opts)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to get feed decimals: %v", err)
	}
	round, err := p.feed.LatestRoundData(opts)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to get latest round: %v", err)
	}

	if round.Answer.Sign() <= 0 {
		return decimal.Zero, fmt.Errorf("non-positive answer %s in round %s", round.Answer.String(), round.RoundID.String())
	}
	if p.cfg.MaxAge > 0 {
		updatedAt := time.Unix(round.UpdatedAt.Int64(), 0)
		if age := p.now().Sub(updatedAt); age > p.cfg.MaxAge {
			return decimal.Zero, fmt.Errorf("stale answer updated %s ago", age.Truncate(time.Second))
		}
	}

	return decimal.NewFromBigInt(round.Answer, -int32(decimals)), nil
}

// coinGeckoPrice fetches the current USD price of the configured CoinGecko asset
func (p *PriceReference) coinGeckoPrice(ctx context.Context) (decimal.Decimal, error) {
	query := url.Values{}
	query.Set("ids", p.cfg.CoinGeckoID)
	query.Set("vs_currencies", "usd")

	timeoutCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(timeoutCtx, http.MethodGet, p.coinGeckoURL+"?"+query.Encode(), nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to create request: %v", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to fetch price: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, fmt.Errorf("API request failed with status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to read response body: %v", err)
	}

	result := gjson.GetBytes(body, p.cfg.CoinGeckoID+".usd")
	if !result.Exists() {
		return decimal.Zero, fmt.Errorf("USD price not found in response")
	}

	price, err := decimal.NewFromString(result.Raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid USD price %q: %v", result.Raw, err)
	}
	if !price.IsPositive() {
		return decimal.Zero, fmt.Errorf("non-positive USD price %s", price.String())
	}
	return price, nil
}
