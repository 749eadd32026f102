package contracts

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
)

// AggregatorV3ABI contains the Chainlink price feed read methods
const AggregatorV3ABI = `[
	{"inputs":[],"name":"decimals","outputs":[{"internalType":"uint8","name":"","type":"uint8"}],"stateMutability":"view","type":"function"},
	{"inputs":[],"name":"latestRoundData","outputs":[
		{"internalType":"uint80","name":"roundId","type":"uint80"},
		{"internalType":"int256","name":"answer","type":"int256"},
		{"internalType":"uint256","name":"startedAt","type":"uint256"},
		{"internalType":"uint256","name":"updatedAt","type":"uint256"},
		{"internalType":"uint80","name":"answeredInRound","type":"uint80"}
	],"stateMutability":"view","type":"function"}
]`

// RoundData holds the latest answer of a price feed
type RoundData struct {
	RoundID   *big.Int
	Answer    *big.Int
	UpdatedAt *big.Int
}

// Aggregator is a binding around a Chainlink AggregatorV3 price feed
type Aggregator struct {
	contract *bind.BoundContract
}

// NewAggregator creates a new instance of Aggregator, bound to a specific deployed contract
func NewAggregator(address common.Address, caller bind.ContractCaller) (*Aggregator, error) {
	contract, err := bindContract(address, AggregatorV3ABI, caller, nil, nil)
	if err != nil {
		return nil, err
	}
	return &Aggregator{contract: contract}, nil
}

// Decimals calls decimals()
func (a *Aggregator) Decimals(opts *bind.CallOpts) (uint8, error) {
	var out []interface{}
	if err := a.contract.Call(opts, &out, "decimals"); err != nil {
		return 0, err
	}
	if len(out) == 0 {
		return 0, fmt.Errorf("empty decimals response")
	}
	d, ok := out[0].(uint8)
	if !ok {
		return 0, fmt.Errorf("invalid decimals format")
	}
	return d, nil
}

// LatestRoundData calls latestRoundData()
func (a *Aggregator) LatestRoundData(opts *bind.CallOpts) (*RoundData, error) {
	var out []interface{}
	if err := a.contract.Call(opts, &out, "latestRoundData"); err != nil {
		return nil, err
	}
	if len(out) != 5 {
		return nil, fmt.Errorf("unexpected latestRoundData response length %d", len(out))
	}
	roundID, ok1 := out[0].(*big.Int)
	answer, ok2 := out[1].(*big.Int)
	updatedAt, ok3 := out[3].(*big.Int)
	if !ok1 || !ok2 || !ok3 {
		return nil, fmt.Errorf("invalid latestRoundData format")
	}
	return &RoundData{RoundID: roundID, Answer: answer, UpdatedAt: updatedAt}, nil
}
