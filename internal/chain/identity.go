package chain

import (
	"context"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
)

// maxScanIDs caps the fallback enumeration when the registry's counter is
// unavailable, so a missing contract never turns into an unbounded scan.
const maxScanIDs = 50

// ABI for the ERC-8004-style identity registry (ERC-721 backed)
const identityABI = `[
  {"inputs":[{"internalType":"string","name":"agentURI","type":"string"}],"name":"register","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"nonpayable","type":"function"},
  {"inputs":[{"internalType":"uint256","name":"agentId","type":"uint256"},{"internalType":"string","name":"newURI","type":"string"}],"name":"setAgentURI","outputs":[],"stateMutability":"nonpayable","type":"function"},
  {"inputs":[{"internalType":"uint256","name":"tokenId","type":"uint256"}],"name":"tokenURI","outputs":[{"internalType":"string","name":"","type":"string"}],"stateMutability":"view","type":"function"},
  {"inputs":[{"internalType":"uint256","name":"tokenId","type":"uint256"}],"name":"ownerOf","outputs":[{"internalType":"address","name":"","type":"address"}],"stateMutability":"view","type":"function"},
  {"inputs":[],"name":"totalSupply","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
  {"anonymous":false,"inputs":[{"indexed":true,"internalType":"address","name":"from","type":"address"},{"indexed":true,"internalType":"address","name":"to","type":"address"},{"indexed":true,"internalType":"uint256","name":"tokenId","type":"uint256"}],"name":"Transfer","type":"event"}
]`

// RegisteredAgent is one identity registry entry.
type RegisteredAgent struct {
	AgentID  *big.Int
	Owner    common.Address
	AgentURI string
}

// Identity binds the identity registry assigning numeric agent ids.
type Identity struct {
	addr     common.Address
	backend  bind.ContractBackend
	contract *bind.BoundContract
	abi      abi.ABI
}

func NewIdentity(addr common.Address, backend bind.ContractBackend) (*Identity, error) {
	parsed, err := abi.JSON(strings.NewReader(identityABI))
	if err != nil {
		return nil, err
	}
	c := bind.NewBoundContract(addr, parsed, backend, backend, backend)
	return &Identity{addr: addr, backend: backend, contract: c, abi: parsed}, nil
}

// IdentityABI returns the ABI JSON used by this package
func IdentityABI() string { return identityABI }

// Register mints a new agent identity pointing at the given metadata URI.
// The assigned agentId is emitted in the receipt's Transfer event.
func (i *Identity) Register(auth *bind.TransactOpts, agentURI string) error {
	_, err := i.contract.Transact(auth, "register", agentURI)
	return err
}

// SetAgentURI updates the metadata URI for an existing agent.
func (i *Identity) SetAgentURI(auth *bind.TransactOpts, agentID *big.Int, newURI string) error {
	_, err := i.contract.Transact(auth, "setAgentURI", agentID, newURI)
	return err
}

// AgentCount returns the number of registered agents.
func (i *Identity) AgentCount(ctx context.Context, call *bind.CallOpts) (*big.Int, error) {
	if call == nil {
		call = &bind.CallOpts{Context: ctx}
	}
	var cnt *big.Int
	out := []interface{}{&cnt}
	if err := i.contract.Call(call, &out, "totalSupply"); err != nil {
		return nil, err
	}
	return cnt, nil
}

// GetAgent resolves one registry entry by id.
func (i *Identity) GetAgent(ctx context.Context, call *bind.CallOpts, agentID *big.Int) (RegisteredAgent, error) {
	if call == nil {
		call = &bind.CallOpts{Context: ctx}
	}
	var owner common.Address
	out := []interface{}{&owner}
	if err := i.contract.Call(call, &out, "ownerOf", agentID); err != nil {
		return RegisteredAgent{}, err
	}
	var uri string
	out = []interface{}{&uri}
	if err := i.contract.Call(call, &out, "tokenURI", agentID); err != nil {
		return RegisteredAgent{}, err
	}
	return RegisteredAgent{AgentID: agentID, Owner: owner, AgentURI: uri}, nil
}

// EnumerateAgents lists registered agents. It prefers the registry's counter;
// when that read fails it falls back to scanning sequential ids, capped at
// maxScanIDs, stopping at the first missing entry.
func (i *Identity) EnumerateAgents(ctx context.Context) ([]RegisteredAgent, error) {
	call := &bind.CallOpts{Context: ctx}

	if count, err := i.AgentCount(ctx, call); err == nil {
		total := count.Int64()
		agents := make([]RegisteredAgent, 0, total)
		for id := int64(1); id <= total; id++ {
			agent, err := i.GetAgent(ctx, call, big.NewInt(id))
			if err != nil {
				continue
			}
			agents = append(agents, agent)
		}
		return agents, nil
	}

	var agents []RegisteredAgent
	for id := int64(1); id <= maxScanIDs; id++ {
		agent, err := i.GetAgent(ctx, call, big.NewInt(id))
		if err != nil {
			break
		}
		agents = append(agents, agent)
	}
	return agents, nil
}
