package chain

import (
	"context"
	"fmt"
	"math/big"
)

// Readers adapts the bound contracts to the narrow int64-id read interfaces
// the registry and facilitator consume. Any of the contracts may be nil;
// reads against a nil contract return an error so callers fall back to
// their documented defaults.
type Readers struct {
	vault      *Vault
	identity   *Identity
	reputation *Reputation
}

// NewReaders bundles the available contracts into a read adapter.
func NewReaders(vault *Vault, identity *Identity, reputation *Reputation) *Readers {
	return &Readers{vault: vault, identity: identity, reputation: reputation}
}

// EffectiveStake returns the agent's stake minus lifetime slashed amount.
func (r *Readers) EffectiveStake(ctx context.Context, agentID int64) (*big.Int, error) {
	if r.vault == nil {
		return nil, fmt.Errorf("staking vault not configured")
	}
	return r.vault.EffectiveStake(ctx, nil, big.NewInt(agentID))
}

// SlashCount returns the number of times the agent has been slashed.
func (r *Readers) SlashCount(ctx context.Context, agentID int64) (int64, error) {
	if r.vault == nil {
		return 0, fmt.Errorf("staking vault not configured")
	}
	count, err := r.vault.SlashCount(ctx, nil, big.NewInt(agentID))
	if err != nil {
		return 0, err
	}
	return count.Int64(), nil
}

// ReputationSummary returns the agent's feedback count and average score.
func (r *Readers) ReputationSummary(ctx context.Context, agentID int64) (int64, float64, error) {
	if r.reputation == nil {
		return 0, 0, fmt.Errorf("reputation registry not configured")
	}
	summary, err := r.reputation.GetSummary(ctx, nil, big.NewInt(agentID))
	if err != nil {
		return 0, 0, err
	}
	return int64(summary.Count), summary.Score, nil
}

// AgentCount returns the number of registered agents.
func (r *Readers) AgentCount(ctx context.Context) (int64, error) {
	if r.identity == nil {
		return 0, fmt.Errorf("identity registry not configured")
	}
	count, err := r.identity.AgentCount(ctx, nil)
	if err != nil {
		return 0, err
	}
	return count.Int64(), nil
}
