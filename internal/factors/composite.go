package factors

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mlocke/vfr-api-sub009/internal/config"
)

// CompositeScore is the final bounded aggregate for a symbol. Immutable once
// produced; each request creates a fresh one.
type CompositeScore struct {
	Symbol              string             `json:"symbol"`
	Score               float64            `json:"score"`
	WeightBreakdown     map[string]float64 `json:"weight_breakdown"`
	GroupScores         map[string]float64 `json:"group_scores"`
	ContributingFactors []string           `json:"contributing_factors"`
	MarketCapTier       string             `json:"market_cap_tier"`
	ComputedAt          time.Time          `json:"computed_at"`
}

// Confidence is the fraction of weight groups backed by real data rather
// than neutral substitution. Callers use it to detect diluted scores.
func (s *CompositeScore) Confidence() float64 {
	if len(s.WeightBreakdown) == 0 {
		return 0
	}
	return float64(len(s.ContributingFactors)) / float64(len(s.WeightBreakdown))
}

// Scorer computes composite scores under the configured weight allocation.
type Scorer struct {
	cfg     *config.WeightsConfig
	library *Library
}

// NewScorer creates a Scorer. cfg must have passed Validate.
func NewScorer(cfg *config.WeightsConfig, library *Library) *Scorer {
	return &Scorer{cfg: cfg, library: library}
}

// groupResult is one weight group's resolved sub-score.
type groupResult struct {
	score       float64
	contributed bool // false when the neutral substitute was used
}

// Score computes the composite for a symbol. Provider gaps degrade to
// neutral substitution; the only error path is the bounds invariant, which
// indicates an implementation bug and is raised loudly rather than clamped
// away.
func (sc *Scorer) Score(ctx context.Context, symbol string, fctx Context) (*CompositeScore, error) {
	weights, tier := sc.normalizedWeights(fctx.MarketCap())

	groups := map[string]groupResult{
		"technical":   sc.groupScore(ctx, symbol, fctx, "technical_composite", sc.cfg.Neutral.Default),
		"fundamental": sc.groupScore(ctx, symbol, fctx, "fundamental_composite", sc.cfg.Neutral.Default),
		"macro":       sc.groupScore(ctx, symbol, fctx, "macro_composite", sc.cfg.Neutral.Default),
		"sentiment":   sc.groupScore(ctx, symbol, fctx, "sentiment_composite", sc.cfg.Neutral.Default),
		"alternative": sc.alternativeScore(ctx, symbol, fctx),
	}

	final := 0.0
	groupScores := make(map[string]float64, len(groups))
	contributing := make([]string, 0, len(groups))
	for name, g := range groups {
		final += g.score * weights[name]
		groupScores[name] = g.score
		if g.contributed {
			contributing = append(contributing, name)
		}
	}
	sort.Strings(contributing)

	// Bounds invariant. With weights summing to 1 and group scores in [0,1]
	// this cannot trip; if it does, something upstream is broken and the
	// caller must see it.
	if final < -1e-9 || final > 1+1e-9 {
		err := fmt.Errorf("composite score %.9f for %s outside [0,1]: invariant violation", final, symbol)
		log.Error().Str("symbol", symbol).Float64("score", final).Msg("composite bounds invariant violated")
		return nil, err
	}
	final = clamp01(final)

	scoreOut := &CompositeScore{
		Symbol:              symbol,
		Score:               final,
		WeightBreakdown:     weights,
		GroupScores:         groupScores,
		ContributingFactors: contributing,
		MarketCapTier:       tier,
		ComputedAt:          time.Now(),
	}

	log.Info().
		Str("symbol", symbol).
		Float64("score", final).
		Str("tier", tier).
		Int("contributing", len(contributing)).
		Msg("composite score computed")
	return scoreOut, nil
}

// normalizedWeights applies the market-cap tier multipliers to the technical
// and fundamental base weights, then renormalizes all five group weights so
// they sum to exactly 1.0 regardless of tier.
func (sc *Scorer) normalizedWeights(marketCap float64) (map[string]float64, string) {
	tier := sc.cfg.TierFor(marketCap)

	weights := map[string]float64{
		"technical":   sc.cfg.Groups.Technical * tier.TechnicalMultiplier,
		"fundamental": sc.cfg.Groups.Fundamental * tier.FundamentalMultiplier,
		"macro":       sc.cfg.Groups.Macro,
		"sentiment":   sc.cfg.Groups.Sentiment,
		"alternative": sc.cfg.Groups.Alternative,
	}

	total := 0.0
	for _, w := range weights {
		total += w
	}
	for name := range weights {
		weights[name] /= total
	}
	return weights, tier.Name
}

// groupScore resolves one group's composite factor, substituting neutral
// when data is unavailable.
func (sc *Scorer) groupScore(ctx context.Context, symbol string, fctx Context, factorName string, neutral float64) groupResult {
	result, err := sc.library.Calculate(ctx, factorName, symbol, fctx)
	if err != nil || !valid(result.Value) {
		log.Debug().
			Str("symbol", symbol).
			Str("factor", factorName).
			Float64("neutral", neutral).
			Msg("neutral substitution applied")
		return groupResult{score: neutral, contributed: false}
	}
	return groupResult{score: *result.Value, contributed: true}
}

// alternativeScore splits the Alternative group across options, ESG, short
// interest, and extended-market liquidity. Missing components take their
// neutral value (ESG uses its industry-baseline neutral); the group counts
// as contributing when at least one component has real data.
func (sc *Scorer) alternativeScore(ctx context.Context, symbol string, fctx Context) groupResult {
	split := sc.cfg.AlternativeSplit
	parts := []struct {
		factor  string
		weight  float64
		neutral float64
	}{
		{"options_composite", split.Options, sc.cfg.Neutral.Default},
		{"esg_composite", split.ESG, sc.cfg.Neutral.ESG},
		{"short_interest", split.ShortInterest, sc.cfg.Neutral.Default},
		{"liquidity", split.ExtendedMarket, sc.cfg.Neutral.Default},
	}

	total, anyReal := 0.0, false
	for _, p := range parts {
		g := sc.groupScore(ctx, symbol, fctx, p.factor, p.neutral)
		total += g.score * p.weight
		anyReal = anyReal || g.contributed
	}
	return groupResult{score: clamp01(total), contributed: anyReal}
}

// VerifyWeightSum checks the renormalization invariant for a weight map.
// Exported for tests and the self-check command.
func VerifyWeightSum(weights map[string]float64, tolerance float64) error {
	sum := 0.0
	for _, w := range weights {
		sum += w
	}
	if math.Abs(sum-1.0) > tolerance {
		return fmt.Errorf("weights sum to %.9f, want 1.0 ± %g", sum, tolerance)
	}
	return nil
}
