package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// AlertKind tags an alert for cooldown gating.
type AlertKind string

const (
	AlertPriceDip         AlertKind = "price_dip"
	AlertHighDip          AlertKind = "high_dip"
	AlertMABreach         AlertKind = "ma_breach"
	AlertConsecutiveDrops AlertKind = "consecutive_drops"
	AlertOpenDrop         AlertKind = "open_drop"
	AlertValueZone        AlertKind = "value_zone"
	AlertDipOpportunity   AlertKind = "dip_opportunity"
	AlertNearLow          AlertKind = "near_low"
	AlertETFComparison    AlertKind = "etf_comparison"
)

// Alert is a rule match that passed its cooldown.
type Alert struct {
	Kind      AlertKind
	Symbol    string
	Price     float64
	ChangePct float64 // percent move that triggered the rule
	Reference float64 // previous price, today's high, MA, open or historical low
	Count     int     // consecutive drops; MA period for ma_breach
	FiredAt   time.Time
}

// Signal is the recommendation verdict.
type Signal string

const (
	SignalStrongBuy       Signal = "STRONG_BUY"
	SignalBuy             Signal = "BUY"
	SignalHold            Signal = "HOLD"
	SignalHoldWatch       Signal = "HOLD_WATCH"
	SignalConsiderSelling Signal = "CONSIDER_SELLING"
)

// IsBuy reports whether the signal suggests adding to the position.
func (s Signal) IsBuy() bool {
	return s == SignalStrongBuy || s == SignalBuy
}

// Recommendation is derived fresh on every evaluation.
type Recommendation struct {
	Signal          Signal
	Strength        string
	MovingAverage   float64
	DeviationPct    float64
	SuggestedAmount decimal.Decimal // spend for buy signals
	SuggestedUnits  int64           // units to buy or to sell
	TargetValue     decimal.Decimal
	TargetUnits     int64
	Actions         []string
	Reasoning       []string
}

// Opportunity is one ranked symbol in multi-symbol mode.
type Opportunity struct {
	Symbol         string
	Name           string
	Price          float64
	Percentile     float64
	Allocation     float64
	Score          int
	Reasons        []string
	Profile        *HistoricalProfile
	SuggestedSpend decimal.Decimal
	SuggestedUnits int64
	Recommendation *Recommendation
}
