package calculator

import (
	"errors"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"DipSentinel/internal/model"
)

// ValueZonePercentile is the highest percentile rank still considered a value zone.
const ValueZonePercentile = 30.0

// ErrNoHistory is returned when a profile is requested from an empty sequence.
var ErrNoHistory = errors.New("no historical closes")

// BuildProfile summarizes an ordered sequence of historical closes.
// shortWindow and longWindow fall back to the full-sequence mean when the history is shorter.
func BuildProfile(closes []float64, shortWindow, longWindow int) (*model.HistoricalProfile, error) {
	if len(closes) == 0 {
		return nil, ErrNoHistory
	}

	mean, variance := stat.PopMeanVariance(closes, nil)

	sorted := append([]float64(nil), closes...)
	sort.Float64s(sorted)

	p := &model.HistoricalProfile{
		Samples: len(closes),
		Min:     floats.Min(closes),
		Max:     floats.Max(closes),
		Mean:    mean,
		StdDev:  math.Sqrt(variance),
		P25:     Percentile(sorted, 25),
		P50:     Percentile(sorted, 50),
		P75:     Percentile(sorted, 75),
	}
	if sma, err := CalculateSMA(closes, shortWindow); err == nil {
		p.SMAShort = sma
	} else {
		p.SMAShort = mean
	}
	if sma, err := CalculateSMA(closes, longWindow); err == nil {
		p.SMALong = sma
	} else {
		p.SMALong = mean
	}
	p.RSI14, p.HasRSI = RSI(closes, RSIPeriod)
	return p, nil
}

// Percentile returns the pct-th percentile (0..100) of an ascending slice,
// interpolating linearly between the two nearest ranks.
func Percentile(sorted []float64, pct float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}
	rank := pct / 100 * float64(n-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo < 0 {
		lo = 0
	}
	if hi >= n {
		hi = n - 1
	}
	frac := rank - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}

// PercentileRank places price linearly within the profile's [min, max] range,
// scaled to 0..100 and rounded to one decimal. ok is false without a profile.
func PercentileRank(p *model.HistoricalProfile, price float64) (rank float64, ok bool) {
	if p == nil {
		return 0, false
	}
	pos, err := RangePosition(price, p.Max, p.Min)
	if err != nil {
		return 0, false
	}
	return roundTo(pos*100, 1), true
}

// IsValueZone reports whether price sits in the lower 30% of the historical range.
func IsValueZone(p *model.HistoricalProfile, price float64) bool {
	rank, ok := PercentileRank(p, price)
	return ok && rank <= ValueZonePercentile
}

// DistanceFromLow returns how far price sits above the historical low, in percent.
func DistanceFromLow(p *model.HistoricalProfile, price float64) (float64, bool) {
	if p == nil || p.Min == 0 {
		return 0, false
	}
	return PercentChange(price, p.Min), true
}
