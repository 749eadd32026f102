package config

import (
	"fmt"
	"log"
	"math/big"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/speedrun-hq/dexpulse/pkg/logger"
)

// Config holds the configuration for the trading bot
type Config struct {
	PrivateKey     string
	TokenAddress   common.Address
	Chain          ChainConfig
	Trade          TradeConfig
	Retry          RetryConfig
	Price          PriceConfig
	LoggerConfig   LoggerConfig
	PushgatewayURL string
}

// ChainConfig holds the RPC endpoint and the contract addresses used on the chain
type ChainConfig struct {
	ChainID          int
	RPCURL           string
	WETHAddress      common.Address
	QuoterAddress    common.Address
	RouterAddress    common.Address
	PriceFeedAddr    common.Address
	GasMultiplier    float64
	MaxGasPrice      *big.Int
	RPCTimeout       time.Duration
	ApproveUnlimited bool
}

// TradeConfig holds the sizing and protection parameters of a trade
type TradeConfig struct {
	MinBuyUSD         decimal.Decimal
	MaxBuyUSD         decimal.Decimal
	SlippageTolerance decimal.Decimal
	FeeTiers          []uint32
	GasReserve        decimal.Decimal
	SwapDeadline      time.Duration
}

// RetryConfig holds the submission retry policy
type RetryConfig struct {
	MaxAttempts         int
	BaseDelay           time.Duration
	Multiplier          float64
	ConfirmationTimeout time.Duration
}

// PriceConfig holds the price reference settings
type PriceConfig struct {
	FallbackETHPrice decimal.Decimal
	MaxAge           time.Duration
	CoinGeckoID      string
}

// LoggerConfig holds the configuration for logging
type LoggerConfig struct {
	Level    logger.Level
	Coloring bool
	Format   string
}

// LoadConfig loads the configuration from environment variables
func LoadConfig() (*Config, error) {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found, using environment variables")
	}

	privateKey, err := GetEnvPrivateKey()
	if err != nil {
		return nil, err
	}

	tokenAddress, err := GetEnvTokenAddress()
	if err != nil {
		return nil, err
	}

	chain, err := loadChainConfig()
	if err != nil {
		return nil, err
	}

	trade, err := loadTradeConfig()
	if err != nil {
		return nil, err
	}

	retry, err := loadRetryConfig()
	if err != nil {
		return nil, err
	}

	fallbackPrice, err := GetEnvFallbackETHPrice()
	if err != nil {
		return nil, err
	}

	maxAge, err := GetEnvDuration("PRICE_FEED_MAX_AGE", DefaultPriceFeedMaxAge)
	if err != nil {
		return nil, err
	}

	logLevel, err := GetEnvLogLevel()
	if err != nil {
		return nil, err
	}

	logColoring, err := GetEnvBool("LOG_COLORING", true)
	if err != nil {
		return nil, err
	}

	logFormat, err := GetEnvLogFormat()
	if err != nil {
		return nil, err
	}

	pushgatewayURL, err := GetEnvPushgatewayURL()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		PrivateKey:   privateKey,
		TokenAddress: tokenAddress,
		Chain:        chain,
		Trade:        trade,
		Retry:        retry,
		Price: PriceConfig{
			FallbackETHPrice: fallbackPrice,
			MaxAge:           maxAge,
			CoinGeckoID:      os.Getenv("COINGECKO_ID"),
		},
		LoggerConfig: LoggerConfig{
			Level:    logLevel,
			Coloring: logColoring,
			Format:   logFormat,
		},
		PushgatewayURL: pushgatewayURL,
	}

	// Validate cross-field constraints
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func loadChainConfig() (ChainConfig, error) {
	chainID, err := GetEnvChainID()
	if err != nil {
		return ChainConfig{}, err
	}

	rpcURL, err := GetEnvRPCURL()
	if err != nil {
		return ChainConfig{}, err
	}

	weth, err := GetEnvAddress("WETH_ADDRESS", BaseWETHAddress)
	if err != nil {
		return ChainConfig{}, err
	}

	quoter, err := GetEnvAddress("QUOTER_ADDRESS", BaseQuoterV2Address)
	if err != nil {
		return ChainConfig{}, err
	}

	router, err := GetEnvAddress("ROUTER_ADDRESS", BaseSwapRouter02Address)
	if err != nil {
		return ChainConfig{}, err
	}

	feed, err := GetEnvAddress("PRICE_FEED_ADDRESS", BaseETHUSDFeedAddress)
	if err != nil {
		return ChainConfig{}, err
	}

	gasMultiplier, err := GetEnvGasMultiplier()
	if err != nil {
		return ChainConfig{}, err
	}

	maxGasPrice, err := GetEnvMaxGasPrice()
	if err != nil {
		return ChainConfig{}, err
	}

	rpcTimeout, err := GetEnvDuration("RPC_TIMEOUT", DefaultRPCTimeout)
	if err != nil {
		return ChainConfig{}, err
	}

	approveUnlimited, err := GetEnvBool("APPROVE_UNLIMITED", false)
	if err != nil {
		return ChainConfig{}, err
	}

	return ChainConfig{
		ChainID:          chainID,
		RPCURL:           rpcURL,
		WETHAddress:      weth,
		QuoterAddress:    quoter,
		RouterAddress:    router,
		PriceFeedAddr:    feed,
		GasMultiplier:    gasMultiplier,
		MaxGasPrice:      maxGasPrice,
		RPCTimeout:       rpcTimeout,
		ApproveUnlimited: approveUnlimited,
	}, nil
}

func loadTradeConfig() (TradeConfig, error) {
	minUSD, maxUSD, err := GetEnvBuyRange()
	if err != nil {
		return TradeConfig{}, err
	}

	slippage, err := GetEnvSlippageTolerance()
	if err != nil {
		return TradeConfig{}, err
	}

	feeTiers, err := GetEnvFeeTiers()
	if err != nil {
		return TradeConfig{}, err
	}

	gasReserve, err := GetEnvGasReserve()
	if err != nil {
		return TradeConfig{}, err
	}

	deadline, err := GetEnvDuration("SWAP_DEADLINE", DefaultSwapDeadline)
	if err != nil {
		return TradeConfig{}, err
	}

	return TradeConfig{
		MinBuyUSD:         minUSD,
		MaxBuyUSD:         maxUSD,
		SlippageTolerance: slippage,
		FeeTiers:          feeTiers,
		GasReserve:        gasReserve,
		SwapDeadline:      deadline,
	}, nil
}

func loadRetryConfig() (RetryConfig, error) {
	maxRetries, err := GetEnvMaxRetries()
	if err != nil {
		return RetryConfig{}, err
	}

	baseDelay, err := GetEnvDuration("RETRY_BASE_DELAY", DefaultRetryBaseDelay)
	if err != nil {
		return RetryConfig{}, err
	}

	multiplier, err := GetEnvRetryMultiplier()
	if err != nil {
		return RetryConfig{}, err
	}

	confirmationTimeout, err := GetEnvDuration("CONFIRMATION_TIMEOUT", DefaultConfirmationTimeout)
	if err != nil {
		return RetryConfig{}, err
	}

	return RetryConfig{
		MaxAttempts:         maxRetries,
		BaseDelay:           baseDelay,
		Multiplier:          multiplier,
		ConfirmationTimeout: confirmationTimeout,
	}, nil
}

// validateConfig validates the configuration
func validateConfig(cfg *Config) error {
	if cfg.TokenAddress == (common.Address{}) {
		return fmt.Errorf("TOKEN_ADDRESS must not be the zero address")
	}
	if cfg.TokenAddress == cfg.Chain.WETHAddress {
		return fmt.Errorf("TOKEN_ADDRESS must differ from WETH_ADDRESS")
	}
	// buy amounts are drawn from the whole cents inside [MIN, MAX]
	hundred := decimal.NewFromInt(100)
	lowCents := cfg.Trade.MinBuyUSD.Mul(hundred).Ceil()
	highCents := cfg.Trade.MaxBuyUSD.Mul(hundred).Floor()
	if highCents.IsZero() {
		return fmt.Errorf("MAX_BUY_USD must be at least 0.01")
	}
	if lowCents.GreaterThan(highCents) {
		return fmt.Errorf("MIN_BUY_USD (%s) to MAX_BUY_USD (%s) contains no whole cent", cfg.Trade.MinBuyUSD, cfg.Trade.MaxBuyUSD)
	}
	return nil
}
