package config

import (
	"fmt"
	"math/big"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/spf13/cast"

	"github.com/speedrun-hq/dexpulse/pkg/logger"
)

const (
	// DefaultSlippageTolerance is the default slippage tolerance in percent
	DefaultSlippageTolerance = "5"

	// DefaultGasMultiplier is the buffer applied to the suggested gas price (10%)
	DefaultGasMultiplier = 1.1

	// DefaultMinBuyUSD defines the lower bound of the random buy amount
	DefaultMinBuyUSD = "1"

	// DefaultMaxBuyUSD defines the upper bound of the random buy amount
	DefaultMaxBuyUSD = "10"

	// DefaultFeeTiers defines the pool fee tiers probed for quotes (0.05%, 0.3%, 1%)
	DefaultFeeTiers = "500,3000,10000"

	// DefaultGasReserve defines the ETH kept aside for transaction fees
	DefaultGasReserve = "0.0005"

	// DefaultMaxRetries defines the number of submission attempts
	DefaultMaxRetries = 3

	// DefaultRetryBaseDelay defines the delay before the first retry
	DefaultRetryBaseDelay = 2 * time.Second

	// DefaultRetryMultiplier defines the backoff multiplier
	DefaultRetryMultiplier = 2.0

	// DefaultConfirmationTimeout defines how long to wait for block inclusion
	DefaultConfirmationTimeout = 120 * time.Second

	// DefaultRPCTimeout bounds every read-only RPC call
	DefaultRPCTimeout = 15 * time.Second

	// DefaultSwapDeadline defines the on-chain deadline offset for swaps
	DefaultSwapDeadline = 5 * time.Minute

	// DefaultFallbackETHPrice is used when no price source answers
	DefaultFallbackETHPrice = "2500"

	// DefaultPriceFeedMaxAge rejects oracle answers older than this
	DefaultPriceFeedMaxAge = 24 * time.Hour

	// DefaultLogFormat defines the default log output
	DefaultLogFormat = "text"

	// maxFeeTier is the largest value representable as uint24
	maxFeeTier = 1<<24 - 1
)

// GetEnvPrivateKey returns the wallet key without the 0x prefix
func GetEnvPrivateKey() (string, error) {
	key := strings.TrimSpace(os.Getenv("PRIVATE_KEY"))
	key = strings.TrimPrefix(strings.TrimPrefix(key, "0x"), "0X")
	if key == "" {
		return "", fmt.Errorf("PRIVATE_KEY environment variable is required")
	}
	if len(key) != 64 {
		return "", fmt.Errorf("invalid PRIVATE_KEY value: must be 32 bytes hex encoded")
	}
	return key, nil
}

// GetEnvTokenAddress returns the address of the traded token
func GetEnvTokenAddress() (common.Address, error) {
	token := os.Getenv("TOKEN_ADDRESS")
	if token == "" {
		return common.Address{}, fmt.Errorf("TOKEN_ADDRESS environment variable is required")
	}
	if !common.IsHexAddress(token) {
		return common.Address{}, fmt.Errorf("invalid TOKEN_ADDRESS value: %s, must be a valid Ethereum address", token)
	}
	return common.HexToAddress(token), nil
}

// GetEnvAddress returns an address override or the given default
func GetEnvAddress(name string, defaultValue string) (common.Address, error) {
	value := os.Getenv(name)
	if value == "" {
		value = defaultValue
	}
	if !common.IsHexAddress(value) {
		return common.Address{}, fmt.Errorf("invalid %s value: %s, must be a valid Ethereum address", name, value)
	}
	return common.HexToAddress(value), nil
}

// GetEnvRPCURL returns the JSON-RPC endpoint
func GetEnvRPCURL() (string, error) {
	rpcURL := os.Getenv("RPC_URL")
	if rpcURL == "" {
		return DefaultRPCURL, nil
	}

	// Validate URL format
	if _, err := url.ParseRequestURI(rpcURL); err != nil {
		return "", fmt.Errorf("invalid RPC_URL value: %s, must be a valid URL", rpcURL)
	}
	return rpcURL, nil
}

// GetEnvChainID returns the expected chain ID
func GetEnvChainID() (int, error) {
	chainID := os.Getenv("CHAIN_ID")
	if chainID == "" {
		return BaseMainnetChainID, nil
	}

	id, err := strconv.Atoi(chainID)
	if err != nil {
		return 0, fmt.Errorf("invalid CHAIN_ID value: %s, must be an integer", chainID)
	}
	if id <= 0 {
		return 0, fmt.Errorf("CHAIN_ID must be greater than 0")
	}
	return id, nil
}

// GetEnvSlippageTolerance returns the slippage tolerance in percent
func GetEnvSlippageTolerance() (decimal.Decimal, error) {
	slippage := os.Getenv("SLIPPAGE_TOLERANCE")
	if slippage == "" {
		slippage = DefaultSlippageTolerance
	}

	value, err := decimal.NewFromString(slippage)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid SLIPPAGE_TOLERANCE value: %s, must be a number", slippage)
	}
	if value.IsNegative() || value.GreaterThan(decimal.NewFromInt(100)) {
		return decimal.Zero, fmt.Errorf("SLIPPAGE_TOLERANCE must be between 0 and 100")
	}
	return value, nil
}

// GetEnvMaxGasPrice returns the gas price cap in wei, nil when unset
func GetEnvMaxGasPrice() (*big.Int, error) {
	maxGasPrice := os.Getenv("MAX_GAS_PRICE")
	if maxGasPrice == "" {
		return nil, nil
	}

	maxGasPriceBig := new(big.Int)
	if _, ok := maxGasPriceBig.SetString(maxGasPrice, 10); !ok {
		return nil, fmt.Errorf("invalid MAX_GAS_PRICE value: %s, must be a valid integer string", maxGasPrice)
	}

	if maxGasPriceBig.Sign() <= 0 {
		return nil, fmt.Errorf("MAX_GAS_PRICE must be greater than 0")
	}
	return maxGasPriceBig, nil
}

// GetEnvGasMultiplier returns the buffer applied to the suggested gas price
func GetEnvGasMultiplier() (float64, error) {
	multiplier := os.Getenv("GAS_MULTIPLIER")
	if multiplier == "" {
		return DefaultGasMultiplier, nil
	}

	parsed, err := strconv.ParseFloat(multiplier, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid GAS_MULTIPLIER value: %s, must be a number", multiplier)
	}
	if parsed <= 0 {
		return 0, fmt.Errorf("GAS_MULTIPLIER must be greater than 0")
	}
	return parsed, nil
}

// GetEnvBuyRange returns the USD interval random buys are drawn from
func GetEnvBuyRange() (decimal.Decimal, decimal.Decimal, error) {
	minUSD, err := getEnvPositiveDecimal("MIN_BUY_USD", DefaultMinBuyUSD)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	maxUSD, err := getEnvPositiveDecimal("MAX_BUY_USD", DefaultMaxBuyUSD)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	if minUSD.GreaterThan(maxUSD) {
		return decimal.Zero, decimal.Zero, fmt.Errorf("MIN_BUY_USD (%s) must not exceed MAX_BUY_USD (%s)", minUSD, maxUSD)
	}
	return minUSD, maxUSD, nil
}

// GetEnvFeeTiers returns the ordered fee tiers to probe, duplicates removed
func GetEnvFeeTiers() ([]uint32, error) {
	tiers := os.Getenv("FEE_TIERS")
	if tiers == "" {
		tiers = DefaultFeeTiers
	}

	var parsed []uint32
	for _, part := range strings.Split(tiers, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		tier, err := cast.ToUint32E(part)
		if err != nil || tier == 0 || tier > maxFeeTier {
			return nil, fmt.Errorf("invalid FEE_TIERS entry: %s, must be an integer in (0, %d]", part, maxFeeTier)
		}
		parsed = append(parsed, tier)
	}
	if len(parsed) == 0 {
		return nil, fmt.Errorf("FEE_TIERS must contain at least one fee tier")
	}
	return lo.Uniq(parsed), nil
}

// GetEnvGasReserve returns the ETH amount kept aside for fees
func GetEnvGasReserve() (decimal.Decimal, error) {
	reserve := os.Getenv("GAS_RESERVE")
	if reserve == "" {
		reserve = DefaultGasReserve
	}

	value, err := decimal.NewFromString(reserve)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid GAS_RESERVE value: %s, must be a number", reserve)
	}
	if value.IsNegative() {
		return decimal.Zero, fmt.Errorf("GAS_RESERVE must be greater than or equal to 0")
	}
	return value, nil
}

// GetEnvMaxRetries returns the number of submission attempts
func GetEnvMaxRetries() (int, error) {
	maxRetries := os.Getenv("MAX_RETRIES")
	if maxRetries == "" {
		return DefaultMaxRetries, nil
	}

	maxRetriesInt, err := strconv.Atoi(maxRetries)
	if err != nil {
		return 0, fmt.Errorf("invalid MAX_RETRIES value: %s, must be an integer", maxRetries)
	}
	if maxRetriesInt < 1 {
		return 0, fmt.Errorf("MAX_RETRIES must be greater than or equal to 1")
	}
	return maxRetriesInt, nil
}

// GetEnvRetryMultiplier returns the backoff multiplier
func GetEnvRetryMultiplier() (float64, error) {
	multiplier := os.Getenv("RETRY_MULTIPLIER")
	if multiplier == "" {
		return DefaultRetryMultiplier, nil
	}

	parsed, err := strconv.ParseFloat(multiplier, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid RETRY_MULTIPLIER value: %s, must be a number", multiplier)
	}
	if parsed < 1 {
		return 0, fmt.Errorf("RETRY_MULTIPLIER must be greater than or equal to 1")
	}
	return parsed, nil
}

// GetEnvDuration returns a positive duration from the environment or the default
func GetEnvDuration(name string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(name)
	if value == "" {
		return defaultValue, nil
	}

	// Validate duration format
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value: %s, must be a valid duration string", name, value)
	}
	if parsed <= 0 {
		return 0, fmt.Errorf("%s must be greater than 0", name)
	}
	return parsed, nil
}

// GetEnvFallbackETHPrice returns the USD price used when every price source fails
func GetEnvFallbackETHPrice() (decimal.Decimal, error) {
	return getEnvPositiveDecimal("FALLBACK_ETH_PRICE", DefaultFallbackETHPrice)
}

// GetEnvBool returns a boolean from the environment or the default
func GetEnvBool(name string, defaultValue bool) (bool, error) {
	value := os.Getenv(name)
	if value == "" {
		return defaultValue, nil
	}

	if value == "true" {
		return true, nil
	} else if value == "false" {
		return false, nil
	}

	return false, fmt.Errorf("invalid %s value: %s, must be 'true' or 'false'", name, value)
}

// GetEnvLogLevel returns the log level
func GetEnvLogLevel() (logger.Level, error) {
	level, err := logger.ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil {
		return logger.InfoLevel, fmt.Errorf("invalid LOG_LEVEL value: %v", err)
	}
	return level, nil
}

// GetEnvLogFormat returns the log output format
func GetEnvLogFormat() (string, error) {
	format := os.Getenv("LOG_FORMAT")
	if format == "" {
		return DefaultLogFormat, nil
	}
	if format != "text" && format != "json" {
		return "", fmt.Errorf("invalid LOG_FORMAT value: %s, must be 'text' or 'json'", format)
	}
	return format, nil
}

// GetEnvPushgatewayURL returns the optional Pushgateway endpoint
func GetEnvPushgatewayURL() (string, error) {
	endpoint := os.Getenv("PUSHGATEWAY_URL")
	if endpoint == "" {
		return "", nil
	}
	if _, err := url.ParseRequestURI(endpoint); err != nil {
		return "", fmt.Errorf("invalid PUSHGATEWAY_URL value: %s, must be a valid URL", endpoint)
	}
	return endpoint, nil
}

func getEnvPositiveDecimal(name string, defaultValue string) (decimal.Decimal, error) {
	value := os.Getenv(name)
	if value == "" {
		value = defaultValue
	}

	parsed, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid %s value: %s, must be a number", name, value)
	}
	if !parsed.IsPositive() {
		return decimal.Zero, fmt.Errorf("%s must be greater than 0", name)
	}
	return parsed, nil
}
