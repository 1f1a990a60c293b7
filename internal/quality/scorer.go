// Package quality annotates aggregated data with freshness, completeness,
// and accuracy metrics. The scores inform downstream consumers and fallback
// decisions; they never block scoring.
package quality

import (
	"math"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/mlocke/vfr-api-sub009/internal/providers"
)

// Metrics is the annotation attached to a fetched payload set.
type Metrics struct {
	Freshness          float64 `json:"freshness"`
	Completeness       float64 `json:"completeness"`
	Accuracy           float64 `json:"accuracy"`
	ReputationWeighted float64 `json:"reputation_weighted_score"`
}

// Expected cadence per data type: how stale a payload can be before its
// freshness decays. Roughly tracks the cache TTLs but is an independent
// quality judgement, not an eviction rule.
var expectedCadence = map[providers.DataType]time.Duration{
	providers.DataTypeStockPrice:   time.Minute,
	providers.DataTypeSentiment:    15 * time.Minute,
	providers.DataTypeOptionsChain: 15 * time.Minute,
	providers.DataTypeFundamentals: 24 * time.Hour,
	providers.DataTypeShortData:    24 * time.Hour,
	providers.DataTypeESG:          7 * 24 * time.Hour,
	providers.DataTypeMacro:        24 * time.Hour,
	providers.DataTypeHistorical:   24 * time.Hour,
	providers.DataTypeCompanyInfo:  30 * 24 * time.Hour,
}

// Scorer computes quality annotations. Reputation weighting consults the
// provider registry's configured reliability.
type Scorer struct {
	registry *providers.Registry
	now      func() time.Time
}

// NewScorer creates a Scorer over the provider registry.
func NewScorer(registry *providers.Registry) *Scorer {
	return &Scorer{registry: registry, now: time.Now}
}

// Freshness scores a payload age against its data type's expected cadence:
// 1.0 when fresher than one cadence, decaying toward 0 as age stretches.
// Worst feed wins when aggregating multiple payloads.
func (s *Scorer) Freshness(dataType providers.DataType, timestamp time.Time) float64 {
	if timestamp.IsZero() {
		return 0
	}
	cadence, ok := expectedCadence[dataType]
	if !ok {
		cadence = time.Hour
	}
	age := s.now().Sub(timestamp)
	if age <= cadence {
		return 1
	}
	// One cadence over → 0.5, four over → 0.2.
	ratio := float64(age) / float64(cadence)
	return math.Max(0, 1/ratio)
}

// AggregateFreshness applies worst-feed-wins across the payload set.
func (s *Scorer) AggregateFreshness(timestamps map[providers.DataType]time.Time) float64 {
	if len(timestamps) == 0 {
		return 0
	}
	worst := 1.0
	for dataType, ts := range timestamps {
		if f := s.Freshness(dataType, ts); f < worst {
			worst = f
		}
	}
	return worst
}

// Completeness is the fraction of expected fields present.
func (s *Scorer) Completeness(present, expected int) float64 {
	if expected <= 0 {
		return 0
	}
	return math.Min(1, float64(present)/float64(expected))
}

// Accuracy scores cross-source agreement for a data type multiple providers
// answered: the relative standard deviation of the reported values mapped so
// tight agreement scores 1 and >10% dispersion decays toward 0. A single
// source cannot be cross-checked and scores a flat 0.8.
func (s *Scorer) Accuracy(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	if len(values) == 1 {
		return 0.8
	}
	m := stat.Mean(values, nil)
	if m == 0 {
		return 0
	}
	rsd := stat.StdDev(values, nil) / math.Abs(m)
	return math.Max(0, 1-rsd*10)
}

// Annotate combines the three axes with the sources' reputation weights.
// sources maps data type to the provider that served it.
func (s *Scorer) Annotate(timestamps map[providers.DataType]time.Time, completeness float64, crossSource []float64, sources map[providers.DataType]string) Metrics {
	m := Metrics{
		Freshness:    s.AggregateFreshness(timestamps),
		Completeness: completeness,
		Accuracy:     s.Accuracy(crossSource),
	}

	reputation := 0.5
	if len(sources) > 0 {
		sum := 0.0
		for _, name := range sources {
			sum += s.registry.Reliability(name)
		}
		reputation = sum / float64(len(sources))
	}

	base := 0.4*m.Freshness + 0.35*m.Completeness + 0.25*m.Accuracy
	m.ReputationWeighted = base * reputation
	return m
}
