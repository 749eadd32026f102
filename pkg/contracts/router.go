package contracts

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// SwapRouter02ABI contains the SwapRouter02 methods used for single pool swaps.
// Only the deadline overload of multicall and the recipient overload of
// unwrapWETH9 are listed so the method names stay unambiguous.
const SwapRouter02ABI = `[
	{
		"inputs": [
			{
				"components": [
					{"internalType": "address", "name": "tokenIn", "type": "address"},
					{"internalType": "address", "name": "tokenOut", "type": "address"},
					{"internalType": "uint24", "name": "fee", "type": "uint24"},
					{"internalType": "address", "name": "recipient", "type": "address"},
					{"internalType": "uint256", "name": "amountIn", "type": "uint256"},
					{"internalType": "uint256", "name": "amountOutMinimum", "type": "uint256"},
					{"internalType": "uint160", "name": "sqrtPriceLimitX96", "type": "uint160"}
				],
				"internalType": "struct IV3SwapRouter.ExactInputSingleParams",
				"name": "params",
				"type": "tuple"
			}
		],
		"name": "exactInputSingle",
		"outputs": [{"internalType": "uint256", "name": "amountOut", "type": "uint256"}],
		"stateMutability": "payable",
		"type": "function"
	},
	{
		"inputs": [
			{"internalType": "uint256", "name": "deadline", "type": "uint256"},
			{"internalType": "bytes[]", "name": "data", "type": "bytes[]"}
		],
		"name": "multicall",
		"outputs": [{"internalType": "bytes[]", "name": "", "type": "bytes[]"}],
		"stateMutability": "payable",
		"type": "function"
	},
	{
		"inputs": [
			{"internalType": "uint256", "name": "amountMinimum", "type": "uint256"},
			{"internalType": "address", "name": "recipient", "type": "address"}
		],
		"name": "unwrapWETH9",
		"outputs": [],
		"stateMutability": "payable",
		"type": "function"
	}
]`

// RouterAddressThis is the SwapRouter02 sentinel recipient that keeps the
// output inside the router for a follow-up call in the same multicall
var RouterAddressThis = common.HexToAddress("0x0000000000000000000000000000000000000002")

// ExactInputSingleParams mirrors the SwapRouter02 params tuple
type ExactInputSingleParams struct {
	TokenIn           common.Address
	TokenOut          common.Address
	Fee               *big.Int
	Recipient         common.Address
	AmountIn          *big.Int
	AmountOutMinimum  *big.Int
	SqrtPriceLimitX96 *big.Int
}

// SwapRouter02 is a binding around the Uniswap SwapRouter02 contract
type SwapRouter02 struct {
	abi      abi.ABI
	contract *bind.BoundContract
}

// NewSwapRouter02 creates a new instance of SwapRouter02, bound to a specific deployed contract
func NewSwapRouter02(address common.Address, backend bind.ContractBackend) (*SwapRouter02, error) {
	parsed, err := abi.JSON(strings.NewReader(SwapRouter02ABI))
	if err != nil {
		return nil, err
	}
	return &SwapRouter02{
		abi:      parsed,
		contract: bind.NewBoundContract(address, parsed, backend, backend, backend),
	}, nil
}

// PackSwap encodes the multicall payload for an exact input single swap.
// When unwrapTo is set the output is kept in the router and unwrapped to it.
func (r *SwapRouter02) PackSwap(params ExactInputSingleParams, unwrapTo *common.Address) ([][]byte, error) {
	if unwrapTo != nil {
		params.Recipient = RouterAddressThis
	}

	swap, err := r.abi.Pack("exactInputSingle", params)
	if err != nil {
		return nil, fmt.Errorf("failed to pack exactInputSingle: %v", err)
	}
	calls := [][]byte{swap}

	if unwrapTo != nil {
		unwrap, err := r.abi.Pack("unwrapWETH9", params.AmountOutMinimum, *unwrapTo)
		if err != nil {
			return nil, fmt.Errorf("failed to pack unwrapWETH9: %v", err)
		}
		calls = append(calls, unwrap)
	}
	return calls, nil
}

// Multicall submits multicall(deadline, data)
func (r *SwapRouter02) Multicall(opts *bind.TransactOpts, deadline *big.Int, data [][]byte) (*types.Transaction, error) {
	return r.contract.Transact(opts, "multicall", deadline, data)
}
