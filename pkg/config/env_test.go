package config

import (
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

func setRequiredEnv(t *testing.T) {
	t.Setenv("PRIVATE_KEY", "0x"+testKey)
	t.Setenv("TOKEN_ADDRESS", "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913")
}

func TestGetEnvFeeTiers(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		want    []uint32
		wantErr bool
	}{
		{name: "default", value: "", want: []uint32{500, 3000, 10000}},
		{name: "order kept", value: "10000, 500", want: []uint32{10000, 500}},
		{name: "duplicates removed", value: "3000,500,3000", want: []uint32{3000, 500}},
		{name: "empty entries skipped", value: "100,,500,", want: []uint32{100, 500}},
		{name: "zero", value: "0", wantErr: true},
		{name: "above uint24", value: "16777216", wantErr: true},
		{name: "not a number", value: "low", wantErr: true},
		{name: "only separators", value: " , ", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("FEE_TIERS", tt.value)
			got, err := GetEnvFeeTiers()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGetEnvSlippageTolerance(t *testing.T) {
	t.Setenv("SLIPPAGE_TOLERANCE", "")
	got, err := GetEnvSlippageTolerance()
	require.NoError(t, err)
	assert.Equal(t, "5", got.String())

	t.Setenv("SLIPPAGE_TOLERANCE", "0.5")
	got, err = GetEnvSlippageTolerance()
	require.NoError(t, err)
	assert.Equal(t, "0.5", got.String())

	for _, bad := range []string{"-1", "100.01", "abc"} {
		t.Setenv("SLIPPAGE_TOLERANCE", bad)
		_, err = GetEnvSlippageTolerance()
		assert.Error(t, err, bad)
	}
}

func TestGetEnvPrivateKey(t *testing.T) {
	t.Setenv("PRIVATE_KEY", "0x"+testKey)
	key, err := GetEnvPrivateKey()
	require.NoError(t, err)
	assert.Equal(t, testKey, key)

	t.Setenv("PRIVATE_KEY", "")
	_, err = GetEnvPrivateKey()
	assert.ErrorContains(t, err, "required")

	t.Setenv("PRIVATE_KEY", "abcd")
	_, err = GetEnvPrivateKey()
	assert.Error(t, err)
}

func TestGetEnvBuyRange(t *testing.T) {
	t.Setenv("MIN_BUY_USD", "")
	t.Setenv("MAX_BUY_USD", "")
	minUSD, maxUSD, err := GetEnvBuyRange()
	require.NoError(t, err)
	assert.Equal(t, "1", minUSD.String())
	assert.Equal(t, "10", maxUSD.String())

	t.Setenv("MIN_BUY_USD", "20")
	_, _, err = GetEnvBuyRange()
	assert.ErrorContains(t, err, "must not exceed")

	t.Setenv("MIN_BUY_USD", "0")
	_, _, err = GetEnvBuyRange()
	assert.Error(t, err)
}

func TestGetEnvDuration(t *testing.T) {
	t.Setenv("CONFIRMATION_TIMEOUT", "")
	d, err := GetEnvDuration("CONFIRMATION_TIMEOUT", DefaultConfirmationTimeout)
	require.NoError(t, err)
	assert.Equal(t, 120*time.Second, d)

	t.Setenv("CONFIRMATION_TIMEOUT", "90s")
	d, err = GetEnvDuration("CONFIRMATION_TIMEOUT", DefaultConfirmationTimeout)
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, d)

	t.Setenv("CONFIRMATION_TIMEOUT", "soon")
	_, err = GetEnvDuration("CONFIRMATION_TIMEOUT", DefaultConfirmationTimeout)
	assert.Error(t, err)
}

func TestGetEnvBool(t *testing.T) {
	t.Setenv("APPROVE_UNLIMITED", "")
	v, err := GetEnvBool("APPROVE_UNLIMITED", false)
	require.NoError(t, err)
	assert.False(t, v)

	t.Setenv("APPROVE_UNLIMITED", "true")
	v, err = GetEnvBool("APPROVE_UNLIMITED", false)
	require.NoError(t, err)
	assert.True(t, v)

	t.Setenv("APPROVE_UNLIMITED", "yes")
	_, err = GetEnvBool("APPROVE_UNLIMITED", false)
	assert.Error(t, err)
}

func TestLoadConfigDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, testKey, cfg.PrivateKey)
	assert.Equal(t, BaseMainnetChainID, cfg.Chain.ChainID)
	assert.Equal(t, common.HexToAddress(BaseWETHAddress), cfg.Chain.WETHAddress)
	assert.Equal(t, common.HexToAddress(BaseSwapRouter02Address), cfg.Chain.RouterAddress)
	assert.Equal(t, []uint32{500, 3000, 10000}, cfg.Trade.FeeTiers)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, 2*time.Second, cfg.Retry.BaseDelay)
	assert.Equal(t, 120*time.Second, cfg.Retry.ConfirmationTimeout)
	assert.Equal(t, "2500", cfg.Price.FallbackETHPrice.String())
	assert.Equal(t, "BASE", GetChainName(cfg.Chain.ChainID))
}

func TestLoadConfigRejectsWETHAsToken(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("TOKEN_ADDRESS", BaseWETHAddress)

	_, err := LoadConfig()
	assert.ErrorContains(t, err, "must differ from WETH_ADDRESS")
}

func TestLoadConfigBuyRangeWithoutWholeCent(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("MIN_BUY_USD", "1.005")
	t.Setenv("MAX_BUY_USD", "1.009")

	_, err := LoadConfig()
	assert.ErrorContains(t, err, "contains no whole cent")

	t.Setenv("MAX_BUY_USD", "1.01")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "1.005", cfg.Trade.MinBuyUSD.String())
}

func TestLoadConfigBuyRangeBelowOneCent(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("MIN_BUY_USD", "0.001")
	t.Setenv("MAX_BUY_USD", "0.009")

	_, err := LoadConfig()
	assert.ErrorContains(t, err, "MAX_BUY_USD must be at least 0.01")
}
