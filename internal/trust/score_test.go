package trust

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
)

// stake returns k * 1e16 minor units, i.e. a raw stake score of 0.4*k.
func stake(k int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(k), big.NewInt(1e16))
}

func TestScoreComponents(t *testing.T) {
	result := Score(Input{
		StakeMinor:      stake(50),
		ReputationScore: 80,
		FeedbackCount:   25,
		SlashCount:      0,
		UptimeDays:      15,
	})

	assert.Equal(t, 20.0, result.Breakdown.StakeScore)
	assert.Equal(t, 24.0, result.Breakdown.ReputationScore)
	assert.Equal(t, 7.5, result.Breakdown.FeedbackScore)
	assert.Equal(t, 12.5, result.Breakdown.StabilityScore)
	assert.Equal(t, 64.0, result.Total)
	assert.Equal(t, TierGold, result.Tier)
}

func TestScoreCaps(t *testing.T) {
	result := Score(Input{
		StakeMinor:      stake(1_000_000),
		ReputationScore: 500,
		FeedbackCount:   10_000,
		SlashCount:      0,
		UptimeDays:      3650,
	})

	assert.Equal(t, 100.0, result.Total)
	assert.Equal(t, 40.0, result.Breakdown.StakeScore)
	assert.Equal(t, 30.0, result.Breakdown.ReputationScore)
	assert.Equal(t, 15.0, result.Breakdown.FeedbackScore)
	assert.Equal(t, 15.0, result.Breakdown.StabilityScore)
	assert.Equal(t, TierDiamond, result.Tier)
}

func TestTierBoundaries(t *testing.T) {
	cases := []struct {
		name  string
		input Input
		total float64
		tier  Tier
	}{
		{
			name:  "just below bronze",
			input: Input{ReputationScore: 33.3}, // 10 stability + 9.99
			total: 19.99,
			tier:  TierUnverified,
		},
		{
			name:  "exactly bronze",
			input: Input{StakeMinor: stake(25)}, // 10 + 10
			total: 20.0,
			tier:  TierBronze,
		},
		{
			name:  "exactly silver",
			input: Input{ReputationScore: 100}, // 30 + 10
			total: 40.0,
			tier:  TierSilver,
		},
		{
			name:  "exactly gold",
			input: Input{StakeMinor: stake(125)}, // 50 + 10
			total: 60.0,
			tier:  TierGold,
		},
		{
			name:  "exactly diamond",
			input: Input{StakeMinor: stake(100), ReputationScore: 100}, // 40 + 30 + 10
			total: 80.0,
			tier:  TierDiamond,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result := Score(tc.input)
			assert.Equal(t, tc.total, result.Total)
			assert.Equal(t, tc.tier, result.Tier)
		})
	}
}

// A raw total just under a threshold that rounds up must land in the
// higher tier: the tier is derived from the rounded total.
func TestTierUsesRoundedTotal(t *testing.T) {
	result := Score(Input{ReputationScore: 33.333}) // 10 + 9.9999
	assert.Equal(t, 20.0, result.Total)
	assert.Equal(t, TierBronze, result.Tier)
}

func TestScoreMonotonicity(t *testing.T) {
	base := Input{
		StakeMinor:      stake(50),
		ReputationScore: 50,
		FeedbackCount:   10,
		SlashCount:      1,
		UptimeDays:      10,
	}
	baseline := Score(base).Total

	moreStake := base
	moreStake.StakeMinor = stake(60)
	assert.GreaterOrEqual(t, Score(moreStake).Total, baseline)

	moreRep := base
	moreRep.ReputationScore = 60
	assert.GreaterOrEqual(t, Score(moreRep).Total, baseline)

	moreFeedback := base
	moreFeedback.FeedbackCount = 20
	assert.GreaterOrEqual(t, Score(moreFeedback).Total, baseline)

	moreUptime := base
	moreUptime.UptimeDays = 20
	assert.GreaterOrEqual(t, Score(moreUptime).Total, baseline)

	moreSlashes := base
	moreSlashes.SlashCount = 3
	assert.LessOrEqual(t, Score(moreSlashes).Total, baseline)
}

func TestSlashPenalty(t *testing.T) {
	clean := Score(Input{})
	assert.Equal(t, 10.0, clean.Breakdown.StabilityScore)

	once := Score(Input{SlashCount: 1})
	assert.Equal(t, 7.0, once.Breakdown.StabilityScore)

	many := Score(Input{SlashCount: 4})
	assert.Equal(t, 0.0, many.Breakdown.StabilityScore)
}

func TestNegativeInputsClampToZero(t *testing.T) {
	zero := Score(Input{})
	negative := Score(Input{
		StakeMinor:      big.NewInt(-1),
		ReputationScore: -10,
		FeedbackCount:   -5,
		SlashCount:      -2,
		UptimeDays:      -1,
	})
	assert.Equal(t, zero, negative)
}

func TestScoreTotalWithinRange(t *testing.T) {
	inputs := []Input{
		{},
		{StakeMinor: stake(100_000), ReputationScore: 100, FeedbackCount: 500, UptimeDays: 365},
		{SlashCount: 100},
		{StakeMinor: nil, ReputationScore: 100},
	}
	for _, input := range inputs {
		result := Score(input)
		assert.GreaterOrEqual(t, result.Total, 0.0)
		assert.LessOrEqual(t, result.Total, 100.0)
	}
}
