package chain

import (
	"context"
	"math"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
)

// ABI for the ERC-8004-style reputation registry (minimal)
const reputationABI = `[
  {"inputs":[{"internalType":"uint256","name":"agentId","type":"uint256"},{"internalType":"int128","name":"value","type":"int128"},{"internalType":"uint8","name":"valueDecimals","type":"uint8"},{"internalType":"string","name":"tag1","type":"string"},{"internalType":"string","name":"tag2","type":"string"},{"internalType":"string","name":"endpoint","type":"string"},{"internalType":"string","name":"feedbackURI","type":"string"},{"internalType":"bytes32","name":"feedbackHash","type":"bytes32"}],"name":"giveFeedback","outputs":[],"stateMutability":"nonpayable","type":"function"},
  {"inputs":[{"internalType":"uint256","name":"agentId","type":"uint256"},{"internalType":"address[]","name":"clientAddresses","type":"address[]"},{"internalType":"string","name":"tag1","type":"string"},{"internalType":"string","name":"tag2","type":"string"}],"name":"getSummary","outputs":[{"internalType":"uint64","name":"","type":"uint64"},{"internalType":"int128","name":"","type":"int128"},{"internalType":"uint8","name":"","type":"uint8"}],"stateMutability":"view","type":"function"}
]`

// FeedbackSummary aggregates on-chain feedback for one agent.
type FeedbackSummary struct {
	Count uint64
	Score float64 // average feedback value, decimals applied
}

// Reputation binds the reputation registry collecting client feedback.
type Reputation struct {
	addr     common.Address
	backend  bind.ContractBackend
	contract *bind.BoundContract
	abi      abi.ABI
}

func NewReputation(addr common.Address, backend bind.ContractBackend) (*Reputation, error) {
	parsed, err := abi.JSON(strings.NewReader(reputationABI))
	if err != nil {
		return nil, err
	}
	c := bind.NewBoundContract(addr, parsed, backend, backend, backend)
	return &Reputation{addr: addr, backend: backend, contract: c, abi: parsed}, nil
}

// GiveFeedback records a score for an agent under the successRate tag.
func (r *Reputation) GiveFeedback(auth *bind.TransactOpts, agentID *big.Int, score int64) error {
	_, err := r.contract.Transact(auth, "giveFeedback",
		agentID, big.NewInt(score), uint8(0), "successRate", "", "", "", [32]byte{})
	return err
}

// GetSummary returns the feedback count and average score for an agent.
func (r *Reputation) GetSummary(ctx context.Context, call *bind.CallOpts, agentID *big.Int) (FeedbackSummary, error) {
	if call == nil {
		call = &bind.CallOpts{Context: ctx}
	}
	var (
		count    uint64
		value    *big.Int
		decimals uint8
	)
	out := []interface{}{&count, &value, &decimals}
	if err := r.contract.Call(call, &out, "getSummary", agentID, []common.Address{}, "", ""); err != nil {
		return FeedbackSummary{}, err
	}

	score, _ := new(big.Float).SetInt(value).Float64()
	if decimals > 0 {
		score /= math.Pow10(int(decimals))
	}
	return FeedbackSummary{Count: count, Score: score}, nil
}
