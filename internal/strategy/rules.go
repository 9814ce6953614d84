package strategy

import (
	"DipSentinel/internal/calculator"
	"DipSentinel/internal/model"
)

// Fixed rule thresholds, in percent.
const (
	MABreachThreshold = 1.5
	OpenDropThreshold = 3.0
	NearLowThreshold  = 2.0
)

// Thresholds are the configurable rule limits.
type Thresholds struct {
	DipPercentage            float64 // sharp drop vs previous sample
	DipFromHigh              float64 // drop vs today's high
	MAPeriod                 int
	ConsecutiveDropThreshold int
}

// Snapshot is the tracker state a rule battery is evaluated against.
// It is taken after the sample was folded into the state.
type Snapshot struct {
	Symbol           string
	Price            float64
	PreviousPrice    float64 // value before this sample
	HasPrevious      bool
	TodayHigh        float64
	DailyOpen        float64
	MovingAverage    float64
	HasMA            bool
	ConsecutiveDrops int
	Profile          *model.HistoricalProfile
	Recommendation   *model.Recommendation
}

// DetectAlerts evaluates every rule independently and returns the matches in
// battery order. Cooldown gating is left to the caller.
func DetectAlerts(s Snapshot, t Thresholds) []model.Alert {
	var alerts []model.Alert
	add := func(kind model.AlertKind, changePct, ref float64, count int) {
		alerts = append(alerts, model.Alert{
			Kind:      kind,
			Symbol:    s.Symbol,
			Price:     s.Price,
			ChangePct: changePct,
			Reference: ref,
			Count:     count,
		})
	}

	if s.HasPrevious && s.PreviousPrice > 0 {
		if chg := calculator.PercentChange(s.Price, s.PreviousPrice); chg <= -t.DipPercentage {
			add(model.AlertPriceDip, chg, s.PreviousPrice, 0)
		}
	}

	fromHigh := 0.0
	if s.TodayHigh > 0 {
		fromHigh = calculator.PercentChange(s.Price, s.TodayHigh)
		if fromHigh <= -t.DipFromHigh {
			add(model.AlertHighDip, fromHigh, s.TodayHigh, 0)
		}
	}

	if s.HasMA && s.MovingAverage > 0 {
		if dev := calculator.PercentChange(s.Price, s.MovingAverage); dev <= -MABreachThreshold {
			add(model.AlertMABreach, dev, s.MovingAverage, t.MAPeriod)
		}
	}

	if t.ConsecutiveDropThreshold > 0 && s.ConsecutiveDrops >= t.ConsecutiveDropThreshold {
		add(model.AlertConsecutiveDrops, 0, 0, s.ConsecutiveDrops)
	}

	if s.DailyOpen > 0 {
		if chg := calculator.PercentChange(s.Price, s.DailyOpen); chg <= -OpenDropThreshold {
			add(model.AlertOpenDrop, chg, s.DailyOpen, 0)
		}
	}

	if s.Profile == nil || s.Recommendation == nil {
		return alerts
	}
	signal := s.Recommendation.Signal

	if signal.IsBuy() {
		if rank, ok := calculator.PercentileRank(s.Profile, s.Price); ok && rank <= calculator.ValueZonePercentile {
			add(model.AlertValueZone, rank, s.Profile.Min, 0)
		}
	}

	if signal.IsBuy() && s.TodayHigh > 0 && fromHigh <= -t.DipFromHigh && s.Price < s.Profile.SMALong {
		add(model.AlertDipOpportunity, fromHigh, s.Profile.SMALong, 0)
	}

	if signal == model.SignalStrongBuy {
		if dist, ok := calculator.DistanceFromLow(s.Profile, s.Price); ok && dist <= NearLowThreshold {
			add(model.AlertNearLow, dist, s.Profile.Min, 0)
		}
	}

	return alerts
}
