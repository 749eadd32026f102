package contracts

import (
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
)

// QuoterV2ABI contains quoteExactInputSingle of the Uniswap V3 QuoterV2
const QuoterV2ABI = `[
	{
		"inputs": [
			{
				"components": [
					{"internalType": "address", "name": "tokenIn", "type": "address"},
					{"internalType": "address", "name": "tokenOut", "type": "address"},
					{"internalType": "uint256", "name": "amountIn", "type": "uint256"},
					{"internalType": "uint24", "name": "fee", "type": "uint24"},
					{"internalType": "uint160", "name": "sqrtPriceLimitX96", "type": "uint160"}
				],
				"internalType": "struct IQuoterV2.QuoteExactInputSingleParams",
				"name": "params",
				"type": "tuple"
			}
		],
		"name": "quoteExactInputSingle",
		"outputs": [
			{"internalType": "uint256", "name": "amountOut", "type": "uint256"},
			{"internalType": "uint160", "name": "sqrtPriceX96After", "type": "uint160"},
			{"internalType": "uint32", "name": "initializedTicksCrossed", "type": "uint32"},
			{"internalType": "uint256", "name": "gasEstimate", "type": "uint256"}
		],
		"stateMutability": "nonpayable",
		"type": "function"
	}
]`

// QuoteExactInputSingleParams mirrors the QuoterV2 params tuple
type QuoteExactInputSingleParams struct {
	TokenIn           common.Address
	TokenOut          common.Address
	AmountIn          *big.Int
	Fee               *big.Int
	SqrtPriceLimitX96 *big.Int
}

// QuoteResult holds the outputs of quoteExactInputSingle
type QuoteResult struct {
	AmountOut   *big.Int
	GasEstimate *big.Int
}

// QuoterV2 is a binding around the Uniswap V3 QuoterV2 contract
type QuoterV2 struct {
	contract *bind.BoundContract
}

// NewQuoterV2 creates a new instance of QuoterV2, bound to a specific deployed contract
func NewQuoterV2(address common.Address, caller bind.ContractCaller) (*QuoterV2, error) {
	contract, err := bindContract(address, QuoterV2ABI, caller, nil, nil)
	if err != nil {
		return nil, err
	}
	return &QuoterV2{contract: contract}, nil
}

// QuoteExactInputSingle simulates an exact input single pool swap through eth_call
func (q *QuoterV2) QuoteExactInputSingle(opts *bind.CallOpts, params QuoteExactInputSingleParams) (*QuoteResult, error) {
	var out []interface{}
	if err := q.contract.Call(opts, &out, "quoteExactInputSingle", params); err != nil {
		return nil, err
	}
	amountOut, err := firstBigInt(out, "quoteExactInputSingle")
	if err != nil {
		return nil, err
	}
	result := &QuoteResult{AmountOut: amountOut}
	if len(out) == 4 {
		if gas, ok := out[3].(*big.Int); ok {
			result.GasEstimate = gas
		}
	}
	return result, nil
}
