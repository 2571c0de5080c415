package trust

import (
	"math"
	"math/big"
)

// Tier is the discrete trust bucket derived from the composite score.
type Tier string

const (
	TierDiamond    Tier = "diamond"
	TierGold       Tier = "gold"
	TierSilver     Tier = "silver"
	TierBronze     Tier = "bronze"
	TierUnverified Tier = "unverified"
)

// stakeNormalizer is the minor-unit amount that maps to the maximum stake
// score: 1e16 wei, i.e. 0.01 of the native asset at 18 decimals.
var stakeNormalizer = big.NewFloat(1e16)

// Input carries the raw signals for one scoring call. Negative numeric
// values are treated as zero; callers are expected not to produce them.
type Input struct {
	StakeMinor      *big.Int `json:"stakeMinor"`
	ReputationScore float64  `json:"reputationScore"`
	FeedbackCount   int      `json:"feedbackCount"`
	SlashCount      int      `json:"slashCount"`
	UptimeDays      float64  `json:"uptimeDays"`
}

// Breakdown exposes the weighted components of a trust score.
type Breakdown struct {
	StakeScore      float64 `json:"stakeScore"`
	ReputationScore float64 `json:"reputationScore"`
	FeedbackScore   float64 `json:"feedbackScore"`
	StabilityScore  float64 `json:"stabilityScore"`
}

// Result is the outcome of scoring one provider.
type Result struct {
	Total     float64   `json:"total"`
	Breakdown Breakdown `json:"breakdown"`
	Tier      Tier      `json:"tier"`
}

// Score computes the composite trust score for a provider. Pure and
// deterministic: stake 40%, reputation 30%, feedback density 15%,
// stability (slash history + uptime) 15%.
func Score(input Input) Result {
	stake := input.StakeMinor
	if stake == nil || stake.Sign() < 0 {
		stake = big.NewInt(0)
	}

	normalized, _ := new(big.Float).Quo(new(big.Float).SetInt(stake), stakeNormalizer).Float64()
	stakeScore := math.Min(normalized, 100) * 0.40

	repScore := clamp(input.ReputationScore, 0, 100) * 0.30

	feedback := input.FeedbackCount
	if feedback < 0 {
		feedback = 0
	}
	feedbackScore := math.Min(float64(feedback)/50, 1) * 15

	slashes := input.SlashCount
	if slashes < 0 {
		slashes = 0
	}
	noSlashBonus := 10.0
	if slashes > 0 {
		noSlashBonus = math.Max(0, 10-float64(slashes)*3)
	}
	uptime := math.Max(input.UptimeDays, 0)
	uptimeBonus := math.Min(uptime/30, 1) * 5
	stabilityScore := noSlashBonus + uptimeBonus

	total := round2(stakeScore + repScore + feedbackScore + stabilityScore)

	return Result{
		Total: total,
		Breakdown: Breakdown{
			StakeScore:      round2(stakeScore),
			ReputationScore: round2(repScore),
			FeedbackScore:   round2(feedbackScore),
			StabilityScore:  round2(stabilityScore),
		},
		Tier: tierFor(total),
	}
}

func tierFor(total float64) Tier {
	switch {
	case total >= 80:
		return TierDiamond
	case total >= 60:
		return TierGold
	case total >= 40:
		return TierSilver
	case total >= 20:
		return TierBronze
	default:
		return TierUnverified
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
