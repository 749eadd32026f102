package contracts

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// ERC20ABI contains the subset of the ERC-20 interface used for trading
const ERC20ABI = `[
	{"constant":true,"inputs":[],"name":"name","outputs":[{"name":"","type":"string"}],"stateMutability":"view","type":"function"},
	{"constant":true,"inputs":[],"name":"symbol","outputs":[{"name":"","type":"string"}],"stateMutability":"view","type":"function"},
	{"constant":true,"inputs":[],"name":"decimals","outputs":[{"name":"","type":"uint8"}],"stateMutability":"view","type":"function"},
	{"constant":true,"inputs":[{"name":"_owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
	{"constant":true,"inputs":[{"name":"_owner","type":"address"},{"name":"_spender","type":"address"}],"name":"allowance","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
	{"constant":false,"inputs":[{"name":"_spender","type":"address"},{"name":"_value","type":"uint256"}],"name":"approve","outputs":[{"name":"","type":"bool"}],"stateMutability":"nonpayable","type":"function"},
	{"anonymous":false,"inputs":[{"indexed":true,"name":"from","type":"address"},{"indexed":true,"name":"to","type":"address"},{"indexed":false,"name":"value","type":"uint256"}],"name":"Transfer","type":"event"}
]`

// TransferTopic is the log topic of the ERC-20 Transfer event
var TransferTopic = crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)"))

// MaxUint256 represents the maximum possible uint256 value (2^256 - 1)
var MaxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

// ERC20 is a binding around an ERC-20 token contract
type ERC20 struct {
	address  common.Address
	contract *bind.BoundContract
}

// NewERC20 creates a new instance of ERC20, bound to a specific deployed contract
func NewERC20(address common.Address, backend bind.ContractBackend) (*ERC20, error) {
	contract, err := bindContract(address, ERC20ABI, backend, backend, backend)
	if err != nil {
		return nil, err
	}
	return &ERC20{address: address, contract: contract}, nil
}

// Address returns the token contract address
func (t *ERC20) Address() common.Address {
	return t.address
}

// Name calls name()
func (t *ERC20) Name(opts *bind.CallOpts) (string, error) {
	var out []interface{}
	if err := t.contract.Call(opts, &out, "name"); err != nil {
		return "", err
	}
	return *abi.ConvertType(out[0], new(string)).(*string), nil
}

// Symbol calls symbol()
func (t *ERC20) Symbol(opts *bind.CallOpts) (string, error) {
	var out []interface{}
	if err := t.contract.Call(opts, &out, "symbol"); err != nil {
		return "", err
	}
	return *abi.ConvertType(out[0], new(string)).(*string), nil
}

// Decimals calls decimals()
func (t *ERC20) Decimals(opts *bind.CallOpts) (uint8, error) {
	var out []interface{}
	if err := t.contract.Call(opts, &out, "decimals"); err != nil {
		return 0, err
	}
	return *abi.ConvertType(out[0], new(uint8)).(*uint8), nil
}

// BalanceOf calls balanceOf(owner)
func (t *ERC20) BalanceOf(opts *bind.CallOpts, owner common.Address) (*big.Int, error) {
	var out []interface{}
	if err := t.contract.Call(opts, &out, "balanceOf", owner); err != nil {
		return nil, err
	}
	return firstBigInt(out, "balanceOf")
}

// Allowance calls allowance(owner, spender)
func (t *ERC20) Allowance(opts *bind.CallOpts, owner, spender common.Address) (*big.Int, error) {
	var out []interface{}
	if err := t.contract.Call(opts, &out, "allowance", owner, spender); err != nil {
		return nil, err
	}
	return firstBigInt(out, "allowance")
}

// Approve submits approve(spender, amount)
func (t *ERC20) Approve(opts *bind.TransactOpts, spender common.Address, amount *big.Int) (*types.Transaction, error) {
	return t.contract.Transact(opts, "approve", spender, amount)
}

// TransferredTo sums the Transfer events of token to recipient found in logs
func TransferredTo(logs []*types.Log, token, recipient common.Address) *big.Int {
	total := new(big.Int)
	for _, l := range logs {
		if l.Address != token || len(l.Topics) != 3 || l.Topics[0] != TransferTopic {
			continue
		}
		if common.BytesToAddress(l.Topics[2].Bytes()) != recipient {
			continue
		}
		total.Add(total, new(big.Int).SetBytes(l.Data))
	}
	return total
}

// bindContract binds a generic wrapper to an already deployed contract
func bindContract(address common.Address, abiJSON string, caller bind.ContractCaller, transactor bind.ContractTransactor, filterer bind.ContractFilterer) (*bind.BoundContract, error) {
	parsed, err := abi.JSON(strings.NewReader(abiJSON))
	if err != nil {
		return nil, err
	}
	return bind.NewBoundContract(address, parsed, caller, transactor, filterer), nil
}

func firstBigInt(out []interface{}, method string) (*big.Int, error) {
	if len(out) == 0 || out[0] == nil {
		return nil, fmt.Errorf("empty %s response", method)
	}
	value, ok := out[0].(*big.Int)
	if !ok || value == nil {
		return nil, fmt.Errorf("invalid %s format", method)
	}
	return value, nil
}
