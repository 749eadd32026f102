package chainclient

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/speedrun-hq/dexpulse/pkg/blockchain"
	"github.com/speedrun-hq/dexpulse/pkg/config"
	"github.com/speedrun-hq/dexpulse/pkg/contracts"
	"github.com/speedrun-hq/dexpulse/pkg/logger"
	"github.com/speedrun-hq/dexpulse/pkg/metrics"
	"github.com/speedrun-hq/dexpulse/pkg/models"
)

var (
	// ErrConfirmationTimeout is returned when a transaction is not included in time
	ErrConfirmationTimeout = errors.New("confirmation timeout")
	// ErrReverted is returned when a transaction is included with a failed status
	ErrReverted = errors.New("transaction reverted")
)

// Backend is the subset of an RPC client the trading client needs.
// Both *ethclient.Client and the simulated backend client satisfy it.
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend
	ChainID(ctx context.Context) (*big.Int, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
}

// Client contains client and config information for the trading chain
type Client struct {
	ChainID       int
	Backend       Backend
	Auth          *bind.TransactOpts
	GasMultiplier float64
	MaxGasPrice   *big.Int
	RPCTimeout    time.Duration
	WETH          common.Address
	Router        common.Address

	quoter *contracts.QuoterV2
	router *contracts.SwapRouter02
	nonces *blockchain.NonceManager
	logger logger.Logger
	close  func()
}

// New dials the RPC endpoint and creates a new client
func New(ctx context.Context, cfg config.ChainConfig, privateKey string, log logger.Logger) (*Client, error) {
	rpc, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to client: %v", err)
	}

	client, err := NewWithBackend(ctx, rpc, cfg, privateKey, log)
	if err != nil {
		rpc.Close()
		return nil, fmt.Errorf("failed to connect to chain %d: %v", cfg.ChainID, err)
	}
	client.close = rpc.Close
	return client, nil
}

// NewWithBackend creates a client over an existing backend
func NewWithBackend(ctx context.Context, backend Backend, cfg config.ChainConfig, privateKey string, log logger.Logger) (*Client, error) {
	c := &Client{
		ChainID:       cfg.ChainID,
		Backend:       backend,
		GasMultiplier: cfg.GasMultiplier,
		MaxGasPrice:   cfg.MaxGasPrice,
		RPCTimeout:    cfg.RPCTimeout,
		WETH:          cfg.WETHAddress,
		Router:        cfg.RouterAddress,
		logger:        log,
	}
	if c.RPCTimeout <= 0 {
		c.RPCTimeout = config.DefaultRPCTimeout
	}

	auth, err := createAuthenticator(ctx, backend, privateKey, cfg.ChainID)
	if err != nil {
		return nil, fmt.Errorf("failed to create authenticator: %v", err)
	}
	c.Auth = auth
	c.nonces = blockchain.NewNonceManager(backend, auth.From, log)

	if c.quoter, err = contracts.NewQuoterV2(cfg.QuoterAddress, backend); err != nil {
		return nil, fmt.Errorf("failed to initialize quoter: %v", err)
	}
	if c.router, err = contracts.NewSwapRouter02(cfg.RouterAddress, backend); err != nil {
		return nil, fmt.Errorf("failed to initialize router: %v", err)
	}
	return c, nil
}

// Close releases the RPC connection
func (c *Client) Close() {
	if c.close != nil {
		c.close()
	}
}

// Address returns the wallet address
func (c *Client) Address() common.Address {
	return c.Auth.From
}

// WETHAddress returns the wrapped base currency used for routing
func (c *Client) WETHAddress() common.Address {
	return c.WETH
}

// RouterAddress returns the swap router, which is the approval spender
func (c *Client) RouterAddress() common.Address {
	return c.Router
}

// UpdateGasPrice updates the gas price based on current network conditions
func (c *Client) UpdateGasPrice(ctx context.Context) (*big.Int, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, c.RPCTimeout)
	defer cancel()

	gasPrice, err := c.Backend.SuggestGasPrice(timeoutCtx)
	if err != nil {
		return nil, fmt.Errorf("failed to get gas price: %v", err)
	}

	finalGasPrice := applyGasPolicy(gasPrice, c.GasMultiplier, c.MaxGasPrice)
	if c.MaxGasPrice != nil && finalGasPrice.Cmp(c.MaxGasPrice) == 0 {
		c.logger.Notice("Gas price capped at %s wei (suggested %s wei)", c.MaxGasPrice.String(), gasPrice.String())
	}

	c.Auth.GasPrice = finalGasPrice
	gwei, _ := new(big.Float).Quo(new(big.Float).SetInt(finalGasPrice), big.NewFloat(1e9)).Float64()
	metrics.GasPrice.Set(gwei)

	c.logger.Debug("Updated gas price: %s wei (multiplier: %.2f)", finalGasPrice.String(), c.GasMultiplier)
	return finalGasPrice, nil
}

// applyGasPolicy multiplies the suggested price and caps it at maxGasPrice
func applyGasPolicy(suggested *big.Int, multiplier float64, maxGasPrice *big.Int) *big.Int {
	multiplied := new(big.Float).Mul(new(big.Float).SetInt(suggested), big.NewFloat(multiplier))
	final := new(big.Int)
	multiplied.Int(final)

	if maxGasPrice != nil && final.Cmp(maxGasPrice) > 0 {
		return new(big.Int).Set(maxGasPrice)
	}
	return final
}

// BaseBalance returns the wallet's native balance in wei
func (c *Client) BaseBalance(ctx context.Context) (*big.Int, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, c.RPCTimeout)
	defer cancel()

	balance, err := c.Backend.BalanceAt(timeoutCtx, c.Address(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get base balance: %v", err)
	}
	return balance, nil
}

// TokenBalance returns the wallet's balance of token in smallest units
func (c *Client) TokenBalance(ctx context.Context, token common.Address) (*big.Int, error) {
	erc20, err := contracts.NewERC20(token, c.Backend)
	if err != nil {
		return nil, err
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, c.RPCTimeout)
	defer cancel()

	balance, err := erc20.BalanceOf(&bind.CallOpts{Context: timeoutCtx}, c.Address())
	if err != nil {
		return nil, fmt.Errorf("failed to get token balance: %v", err)
	}
	return balance, nil
}

// TokenInfo fetches the metadata of token
func (c *Client) TokenInfo(ctx context.Context, token common.Address) (models.TokenDescriptor, error) {
	erc20, err := contracts.NewERC20(token, c.Backend)
	if err != nil {
		return models.TokenDescriptor{}, err
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, c.RPCTimeout)
	defer cancel()
	opts := &bind.CallOpts{Context: timeoutCtx}

	name, err := erc20.Name(opts)
	if err != nil {
		return models.TokenDescriptor{}, fmt.Errorf("failed to get token name: %v", err)
	}
	symbol, err := erc20.Symbol(opts)
	if err != nil {
		return models.TokenDescriptor{}, fmt.Errorf("failed to get token symbol: %v", err)
	}
	decimals, err := erc20.Decimals(opts)
	if err != nil {
		return models.TokenDescriptor{}, fmt.Errorf("failed to get token decimals: %v", err)
	}

	return models.TokenDescriptor{
		Address:  erc20.Address(),
		Symbol:   symbol,
		Name:     name,
		Decimals: decimals,
	}, nil
}

// Allowance returns how much of token spender may move from the wallet
func (c *Client) Allowance(ctx context.Context, token, spender common.Address) (*big.Int, error) {
	erc20, err := contracts.NewERC20(token, c.Backend)
	if err != nil {
		return nil, err
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, c.RPCTimeout)
	defer cancel()

	allowance, err := erc20.Allowance(&bind.CallOpts{Context: timeoutCtx}, c.Address(), spender)
	if err != nil {
		return nil, fmt.Errorf("failed to check allowance: %v", err)
	}
	return allowance, nil
}

// Approve submits an approval of amount of token for spender
func (c *Client) Approve(ctx context.Context, token, spender common.Address, amount *big.Int) (*types.Transaction, error) {
	erc20, err := contracts.NewERC20(token, c.Backend)
	if err != nil {
		return nil, err
	}

	return c.submit(ctx, "approve", nil, func(opts *bind.TransactOpts) (*types.Transaction, error) {
		return erc20.Approve(opts, spender, amount)
	})
}

// QuoteExactInputSingle returns the output the quoter expects for a single pool swap
func (c *Client) QuoteExactInputSingle(ctx context.Context, tokenIn, tokenOut common.Address, amountIn *big.Int, feeTier uint32) (*big.Int, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, c.RPCTimeout)
	defer cancel()

	result, err := c.quoter.QuoteExactInputSingle(&bind.CallOpts{Context: timeoutCtx, From: c.Address()}, contracts.QuoteExactInputSingleParams{
		TokenIn:           tokenIn,
		TokenOut:          tokenOut,
		AmountIn:          amountIn,
		Fee:               new(big.Int).SetUint64(uint64(feeTier)),
		SqrtPriceLimitX96: big.NewInt(0),
	})
	if err != nil {
		return nil, err
	}
	c.logger.Debug("Quote at fee tier %d: %s out, gas estimate %s", feeTier, result.AmountOut.String(), result.GasEstimate.String())
	return result.AmountOut, nil
}

// SwapExactInputSingle submits the swap described by intent through the router multicall.
// Native value is attached when the input is WETH and the output is unwrapped
// to the wallet when the output is WETH.
func (c *Client) SwapExactInputSingle(ctx context.Context, intent models.TradeIntent) (*types.Transaction, error) {
	var (
		value    *big.Int
		unwrapTo *common.Address
	)
	if intent.TokenIn == c.WETH {
		value = intent.AmountIn
	}
	if intent.TokenOut == c.WETH {
		wallet := c.Address()
		unwrapTo = &wallet
	}

	calls, err := c.router.PackSwap(contracts.ExactInputSingleParams{
		TokenIn:           intent.TokenIn,
		TokenOut:          intent.TokenOut,
		Fee:               new(big.Int).SetUint64(uint64(intent.FeeTier)),
		Recipient:         c.Address(),
		AmountIn:          intent.AmountIn,
		AmountOutMinimum:  intent.MinAmountOut,
		SqrtPriceLimitX96: big.NewInt(0),
	}, unwrapTo)
	if err != nil {
		return nil, err
	}

	deadline := big.NewInt(intent.Deadline.Unix())
	return c.submit(ctx, "swap", value, func(opts *bind.TransactOpts) (*types.Transaction, error) {
		return c.router.Multicall(opts, deadline, calls)
	})
}

// SwapRecipient returns the address that receives tokenOut from the pool
func (c *Client) SwapRecipient(tokenOut common.Address) common.Address {
	if tokenOut == c.WETH {
		return c.Router
	}
	return c.Address()
}

// submit sends a transaction with a locally reserved nonce.
// Nonce lookup, gas estimation and sending share one RPCTimeout deadline.
func (c *Client) submit(ctx context.Context, operation string, value *big.Int, send func(*bind.TransactOpts) (*types.Transaction, error)) (*types.Transaction, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, c.RPCTimeout)
	defer cancel()

	nonce, err := c.nonces.GetNonce(timeoutCtx)
	if err != nil {
		return nil, err
	}

	opts := *c.Auth
	opts.Context = timeoutCtx
	opts.Nonce = new(big.Int).SetUint64(nonce)
	opts.Value = value

	tx, err := send(&opts)
	if err != nil {
		c.nonces.ReleaseNonce(nonce)
		c.resyncNonce(ctx)
		return nil, err
	}

	c.nonces.TrackTransaction(tx.Hash(), nonce, operation)
	c.logger.Info("Submitted %s transaction %s (nonce %d)", operation, tx.Hash().Hex(), nonce)
	return tx, nil
}

// resyncNonce picks up nonces consumed outside this process before the next attempt
func (c *Client) resyncNonce(ctx context.Context) {
	timeoutCtx, cancel := context.WithTimeout(ctx, c.RPCTimeout)
	defer cancel()

	if err := c.nonces.SyncWithBlockchain(timeoutCtx); err != nil {
		c.logger.Notice("Failed to resync nonce: %v", err)
	}
}

// WaitForConfirmation waits until tx is included or timeout elapses
func (c *Client) WaitForConfirmation(ctx context.Context, tx *types.Transaction, timeout time.Duration) (*types.Receipt, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	receipt, err := bind.WaitMined(timeoutCtx, c.Backend, tx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, fmt.Errorf("%w: %s not included after %s", ErrConfirmationTimeout, tx.Hash().Hex(), timeout)
		}
		return nil, fmt.Errorf("failed to wait for transaction %s: %w", tx.Hash().Hex(), err)
	}

	c.nonces.MarkTransactionConfirmed(tx.Nonce())

	if receipt.Status == types.ReceiptStatusFailed {
		return receipt, fmt.Errorf("%w: %s in block %d", ErrReverted, tx.Hash().Hex(), receipt.BlockNumber.Uint64())
	}
	return receipt, nil
}

// createAuthenticator builds a signer and checks the backend serves the expected chain
func createAuthenticator(ctx context.Context, backend Backend, privateKeyHex string, expectedChainID int) (*bind.TransactOpts, error) {
	privateKey, err := crypto.HexToECDSA(privateKeyHex)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %v", err)
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, config.DefaultRPCTimeout)
	defer cancel()

	chainID, err := backend.ChainID(timeoutCtx)
	if err != nil {
		return nil, fmt.Errorf("failed to get chain ID: %v", err)
	}
	if expectedChainID != 0 && chainID.Int64() != int64(expectedChainID) {
		return nil, fmt.Errorf("RPC serves chain %s, expected %d", chainID.String(), expectedChainID)
	}

	return bind.NewKeyedTransactorWithChainID(privateKey, chainID)
}
