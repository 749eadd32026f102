package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/big"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/urfave/cli/v2"

	"github.com/speedrun-hq/dexpulse/pkg/chainclient"
	"github.com/speedrun-hq/dexpulse/pkg/config"
	"github.com/speedrun-hq/dexpulse/pkg/logger"
	"github.com/speedrun-hq/dexpulse/pkg/metrics"
	"github.com/speedrun-hq/dexpulse/pkg/models"
	"github.com/speedrun-hq/dexpulse/pkg/trader"
)

func main() {
	app := &cli.App{
		Name:  "dexpulse",
		Usage: "buy a random USD amount of a token or sell the whole balance on Uniswap V3",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "quote and plan the trade without submitting transactions",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "buy",
				Usage:  "buy a random USD amount of the configured token",
				Action: tradeAction(models.Buy),
			},
			{
				Name:   "sell",
				Usage:  "sell the whole token balance back to ETH",
				Action: tradeAction(models.Sell),
			},
			{
				Name:  "quote",
				Usage: "print the best fee tier quote without trading",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "direction",
						Value: string(models.Buy),
						Usage: "buy or sell",
					},
					&cli.StringFlag{
						Name:  "usd",
						Usage: "USD amount to quote for a buy (defaults to MIN_BUY_USD)",
					},
				},
				Action: quoteAction,
			},
			{
				Name:   "balance",
				Usage:  "print the wallet balances",
				Action: balanceAction,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("%v", err)
	}
}

// session holds what every command needs
type session struct {
	cfg           *config.Config
	logger        logger.Logger
	scoped        logger.Logger
	correlationID string
	chain         *chainclient.Client
	price         *chainclient.PriceReference
}

// openSession draws the correlation id first so every component logs it
func openSession(ctx context.Context, direction models.Direction) (*session, error) {
	// Load configuration from environment variables
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %v", err)
	}

	l, err := logger.New(cfg.LoggerConfig.Format, cfg.LoggerConfig.Coloring, cfg.LoggerConfig.Level)
	if err != nil {
		return nil, err
	}

	correlationID := uuid.NewString()
	scoped := scopeLogger(l, correlationID, direction)

	chain, err := chainclient.New(ctx, cfg.Chain, cfg.PrivateKey, scoped)
	if err != nil {
		return nil, err
	}

	price, err := chain.NewPriceReference(cfg.Chain.PriceFeedAddr, cfg.Price)
	if err != nil {
		chain.Close()
		return nil, err
	}

	scoped.Info("Connected to %s (chain %d) as %s", config.GetChainName(cfg.Chain.ChainID), cfg.Chain.ChainID, chain.Address().Hex())
	return &session{cfg: cfg, logger: l, scoped: scoped, correlationID: correlationID, chain: chain, price: price}, nil
}

// scopeLogger attaches the fields the trader adds to its own events
func scopeLogger(l logger.Logger, correlationID string, direction models.Direction) logger.Logger {
	l = l.With("correlation_id", correlationID)
	if direction != "" {
		l = l.With("direction", string(direction))
	}
	return l
}

// signalContext cancels on SIGINT/SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-signalCh:
			log.Println("Received termination signal, shutting down...")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(signalCh)
	}()

	return ctx, cancel
}

func tradeAction(direction models.Direction) cli.ActionFunc {
	return func(c *cli.Context) error {
		ctx, cancel := signalContext()
		defer cancel()

		s, err := openSession(ctx, direction)
		if err != nil {
			return err
		}
		defer s.chain.Close()

		opts := trader.OptionsFromConfig(s.cfg)
		opts.DryRun = c.Bool("dry-run")

		outcome := trader.New(s.chain, s.price, opts).Run(ctx, s.logger, direction, s.correlationID)

		pushCtx, pushCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer pushCancel()
		if err := metrics.Push(pushCtx, s.cfg.PushgatewayURL); err != nil {
			s.scoped.Error("%v", err)
		}

		if err := printJSON(outcome); err != nil {
			return err
		}
		if outcome.Status == models.StatusFailure {
			return cli.Exit("", 1)
		}
		return nil
	}
}

func quoteAction(c *cli.Context) error {
	ctx, cancel := signalContext()
	defer cancel()

	s, err := openSession(ctx, "")
	if err != nil {
		return err
	}
	defer s.chain.Close()

	weth := s.chain.WETHAddress()
	tokenIn, tokenOut := weth, s.cfg.TokenAddress

	var amount *big.Int
	switch models.Direction(c.String("direction")) {
	case models.Buy:
		usd := s.cfg.Trade.MinBuyUSD
		if v := c.String("usd"); v != "" {
			if usd, err = decimal.NewFromString(v); err != nil {
				return fmt.Errorf("invalid --usd value: %s", v)
			}
		}
		price, source := s.price.BasePriceUSD(ctx)
		s.scoped.Info("Quoting $%s at $%s per ETH (%s)", usd.StringFixed(2), price.String(), source)
		if amount, err = trader.USDToBase(usd, price); err != nil {
			return err
		}
	case models.Sell:
		tokenIn, tokenOut = s.cfg.TokenAddress, weth
		if amount, err = s.chain.TokenBalance(ctx, s.cfg.TokenAddress); err != nil {
			return err
		}
		if amount.Sign() == 0 {
			return fmt.Errorf("token balance is zero, nothing to quote")
		}
	default:
		return fmt.Errorf("unknown direction %q", c.String("direction"))
	}

	quote, err := trader.NewQuoteSelector(s.chain).SelectBestQuote(ctx, s.scoped, tokenIn, tokenOut, amount, s.cfg.Trade.FeeTiers)
	if err != nil {
		return err
	}

	return printJSON(map[string]interface{}{
		"token_in":       tokenIn,
		"token_out":      tokenOut,
		"amount_in":      amount,
		"fee_tier":       quote.FeeTier,
		"amount_out":     quote.AmountOut,
		"min_amount_out": trader.MinOutput(quote.AmountOut, s.cfg.Trade.SlippageTolerance),
	})
}

func balanceAction(_ *cli.Context) error {
	ctx, cancel := signalContext()
	defer cancel()

	s, err := openSession(ctx, "")
	if err != nil {
		return err
	}
	defer s.chain.Close()

	token, err := s.chain.TokenInfo(ctx, s.cfg.TokenAddress)
	if err != nil {
		return err
	}
	base, err := s.chain.BaseBalance(ctx)
	if err != nil {
		return err
	}
	tokenBalance, err := s.chain.TokenBalance(ctx, token.Address)
	if err != nil {
		return err
	}
	price, source := s.price.BasePriceUSD(ctx)
	baseAmount := trader.FromBaseUnits(base, trader.BaseDecimals)

	return printJSON(map[string]interface{}{
		"wallet":        s.chain.Address(),
		"token":         token,
		"base":          baseAmount.String(),
		"base_usd":      baseAmount.Mul(price).StringFixed(2),
		"token_balance": trader.FromBaseUnits(tokenBalance, token.Decimals).String(),
		"price_usd":     price.String(),
		"price_source":  source,
	})
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
