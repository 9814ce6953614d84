package portfolio

import (
	"fmt"
	"sort"

	"DipSentinel/internal/calculator"
	"DipSentinel/internal/cooldown"
	"DipSentinel/internal/model"
	"DipSentinel/internal/strategy"
)

// Scoring weights.
const (
	ValueZoneScore   = 50
	BelowMedianScore = 25
	NearLowScore     = 30

	BelowMedianPercentile = 50.0
	NearLowPct            = 5.0
)

// Candidate is the latest evaluation of one symbol.
type Candidate struct {
	Symbol         string
	Name           string
	Price          float64
	Percentile     float64
	HasPercentile  bool
	Profile        *model.HistoricalProfile
	Allocation     float64
	Recommendation *model.Recommendation
}

// Score rates a candidate. Candidates without a percentile score 0.
func Score(c Candidate) (int, []string) {
	if !c.HasPercentile {
		return 0, nil
	}
	score := 0
	var reasons []string

	switch {
	case c.Percentile <= calculator.ValueZonePercentile:
		score += ValueZoneScore
		reasons = append(reasons, fmt.Sprintf("In value zone (%.1f%%)", c.Percentile))
	case c.Percentile <= BelowMedianPercentile:
		score += BelowMedianScore
		reasons = append(reasons, fmt.Sprintf("Below median (%.1f%%)", c.Percentile))
	}

	if dist, ok := calculator.DistanceFromLow(c.Profile, c.Price); ok && dist <= NearLowPct {
		score += NearLowScore
		reasons = append(reasons, fmt.Sprintf("Near %d-day low (+%.1f%%)", c.Profile.Samples, dist))
	}
	return score, reasons
}

// Rank scores every candidate, drops those scoring 0 and sorts the rest by
// score, highest first. Ties keep input order.
func Rank(candidates []Candidate, portfolioAmount float64) []model.Opportunity {
	var opps []model.Opportunity
	for _, c := range candidates {
		score, reasons := Score(c)
		if score == 0 {
			continue
		}
		spend, units := strategy.SuggestedSpend(portfolioAmount, c.Allocation, c.Price)
		opps = append(opps, model.Opportunity{
			Symbol:         c.Symbol,
			Name:           c.Name,
			Price:          c.Price,
			Percentile:     c.Percentile,
			Allocation:     c.Allocation,
			Score:          score,
			Reasons:        reasons,
			Profile:        c.Profile,
			SuggestedSpend: spend,
			SuggestedUnits: units,
			Recommendation: c.Recommendation,
		})
	}
	sort.SliceStable(opps, func(i, j int) bool { return opps[i].Score > opps[j].Score })
	return opps
}

// Comparator decides when a consolidated alert is due.
type Comparator struct {
	Threshold int // minimum leading score
	TopN      int
	Cooldowns *cooldown.Registry
}

// NewComparator creates a comparator with its own etf_comparison cooldown.
func NewComparator(threshold, topN int, cooldowns *cooldown.Registry) *Comparator {
	return &Comparator{Threshold: threshold, TopN: topN, Cooldowns: cooldowns}
}

// Select returns the top candidates when the leader reaches the threshold and
// the etf_comparison cooldown allows it. Firing records the cooldown.
func (c *Comparator) Select(ranked []model.Opportunity) ([]model.Opportunity, bool) {
	if len(ranked) == 0 || ranked[0].Score < c.Threshold {
		return nil, false
	}
	if c.Cooldowns != nil {
		if _, ok := c.Cooldowns.TryFire(model.AlertETFComparison); !ok {
			return nil, false
		}
	}
	n := c.TopN
	if n <= 0 || n > len(ranked) {
		n = len(ranked)
	}
	return ranked[:n], true
}
