package chain

import (
	"context"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
)

// StakeInfo mirrors the vault's per-agent stake record.
type StakeInfo struct {
	Amount   *big.Int
	Slashed  *big.Int
	StakedAt *big.Int
	Owner    common.Address
	Active   bool
}

// ABI for the StakingVault (native-asset trust bonds, slashable)
const vaultABI = `[
  {"inputs":[{"internalType":"uint256","name":"agentId","type":"uint256"}],"name":"stake","outputs":[],"stateMutability":"payable","type":"function"},
  {"inputs":[{"internalType":"uint256","name":"agentId","type":"uint256"}],"name":"effectiveStake","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
  {"inputs":[{"internalType":"uint256","name":"agentId","type":"uint256"},{"internalType":"uint256","name":"amount","type":"uint256"},{"internalType":"string","name":"reason","type":"string"}],"name":"slash","outputs":[],"stateMutability":"nonpayable","type":"function"},
  {"inputs":[{"internalType":"uint256","name":"agentId","type":"uint256"}],"name":"slashCount","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
  {"inputs":[{"internalType":"uint256","name":"agentId","type":"uint256"}],"name":"getStakeInfo","outputs":[{"internalType":"uint256","name":"","type":"uint256"},{"internalType":"uint256","name":"","type":"uint256"},{"internalType":"uint256","name":"","type":"uint256"},{"internalType":"address","name":"","type":"address"},{"internalType":"bool","name":"","type":"bool"}],"stateMutability":"view","type":"function"},
  {"anonymous":false,"inputs":[{"indexed":true,"internalType":"uint256","name":"agentId","type":"uint256"},{"indexed":true,"internalType":"address","name":"owner","type":"address"},{"indexed":false,"internalType":"uint256","name":"amount","type":"uint256"}],"name":"Staked","type":"event"},
  {"anonymous":false,"inputs":[{"indexed":true,"internalType":"uint256","name":"agentId","type":"uint256"},{"indexed":false,"internalType":"uint256","name":"amount","type":"uint256"},{"indexed":false,"internalType":"string","name":"reason","type":"string"}],"name":"Slashed","type":"event"}
]`

// Vault binds the StakingVault contract holding provider trust bonds.
type Vault struct {
	addr     common.Address
	backend  bind.ContractBackend
	contract *bind.BoundContract
	abi      abi.ABI
}

func NewVault(addr common.Address, backend bind.ContractBackend) (*Vault, error) {
	parsed, err := abi.JSON(strings.NewReader(vaultABI))
	if err != nil {
		return nil, err
	}
	c := bind.NewBoundContract(addr, parsed, backend, backend, backend)
	return &Vault{addr: addr, backend: backend, contract: c, abi: parsed}, nil
}

// VaultABI returns the ABI JSON used by this package
func VaultABI() string { return vaultABI }

// Stake locks auth.Value as the agent's trust bond.
func (v *Vault) Stake(auth *bind.TransactOpts, agentID *big.Int) error {
	_, err := v.contract.Transact(auth, "stake", agentID)
	return err
}

// Slash reduces the agent's effective stake as a penalty.
func (v *Vault) Slash(auth *bind.TransactOpts, agentID, amount *big.Int, reason string) error {
	_, err := v.contract.Transact(auth, "slash", agentID, amount, reason)
	return err
}

// EffectiveStake returns stake minus lifetime slashed amount.
func (v *Vault) EffectiveStake(ctx context.Context, call *bind.CallOpts, agentID *big.Int) (*big.Int, error) {
	if call == nil {
		call = &bind.CallOpts{Context: ctx}
	}
	var out0 *big.Int
	out := []interface{}{&out0}
	if err := v.contract.Call(call, &out, "effectiveStake", agentID); err != nil {
		return nil, err
	}
	return out0, nil
}

// SlashCount returns the number of times the agent has been slashed.
func (v *Vault) SlashCount(ctx context.Context, call *bind.CallOpts, agentID *big.Int) (*big.Int, error) {
	if call == nil {
		call = &bind.CallOpts{Context: ctx}
	}
	var out0 *big.Int
	out := []interface{}{&out0}
	if err := v.contract.Call(call, &out, "slashCount", agentID); err != nil {
		return nil, err
	}
	return out0, nil
}

// GetStakeInfo returns the full stake record for an agent.
func (v *Vault) GetStakeInfo(ctx context.Context, call *bind.CallOpts, agentID *big.Int) (StakeInfo, error) {
	if call == nil {
		call = &bind.CallOpts{Context: ctx}
	}
	var (
		amount   *big.Int
		slashed  *big.Int
		stakedAt *big.Int
		owner    common.Address
		active   bool
	)
	out := []interface{}{&amount, &slashed, &stakedAt, &owner, &active}
	if err := v.contract.Call(call, &out, "getStakeInfo", agentID); err != nil {
		return StakeInfo{}, err
	}
	return StakeInfo{Amount: amount, Slashed: slashed, StakedAt: stakedAt, Owner: owner, Active: active}, nil
}
