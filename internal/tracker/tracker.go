package tracker

import (
	"time"

	"DipSentinel/internal/calculator"
	"DipSentinel/internal/cooldown"
	"DipSentinel/internal/model"
	"DipSentinel/internal/strategy"
)

// Settings are the per-symbol knobs of a tracker. Replacing them keeps the accumulated state.
type Settings struct {
	Symbol         string
	Name           string
	Allocation     float64
	WindowCapacity int
	Cooldown       time.Duration
	Thresholds     strategy.Thresholds
	Params         strategy.Params
}

// Evaluation is the outcome of one ingested sample.
type Evaluation struct {
	Sample         model.Sample
	PreviousPrice  float64
	HasPrevious    bool
	MovingAverage  float64
	HasMA          bool
	Percentile     float64
	HasPercentile  bool
	ValueZone      bool
	Alerts         []model.Alert
	Recommendation *model.Recommendation
}

// Status is a read-only view of a tracker's state.
type Status struct {
	Symbol           string
	Name             string
	Allocation       float64
	Samples          int
	LastPrice        float64
	DailyOpen        float64
	TodayHigh        float64
	TodayLow         float64
	ConsecutiveDrops int
	MovingAverage    float64
	HasMA            bool
	Profile          *model.HistoricalProfile
}

// Tracker owns the state of one symbol. It is not safe for concurrent use.
type Tracker struct {
	settings  Settings
	window    *calculator.Window
	profile   *model.HistoricalProfile
	cooldowns *cooldown.Registry

	previousPrice    float64
	hasPrevious      bool
	dailyOpen        float64
	hasOpen          bool
	todayHigh        float64
	todayLow         float64
	consecutiveDrops int
	samples          int
}

// New creates a tracker. A nil profile disables the history-dependent rules.
func New(settings Settings, profile *model.HistoricalProfile) *Tracker {
	settings.WindowCapacity = windowCapacity(settings)
	return &Tracker{
		settings:  settings,
		window:    calculator.NewWindow(settings.WindowCapacity),
		profile:   profile,
		cooldowns: cooldown.NewRegistry(settings.Cooldown),
	}
}

func windowCapacity(s Settings) int {
	c := s.WindowCapacity
	if c <= 0 {
		c = calculator.DefaultWindowCapacity
	}
	if c < s.Thresholds.MAPeriod {
		c = s.Thresholds.MAPeriod
	}
	return c
}

// Cooldowns exposes the registry, mainly so tests can pin its clock.
func (t *Tracker) Cooldowns() *cooldown.Registry { return t.cooldowns }

// Settings returns the active settings.
func (t *Tracker) Settings() Settings { return t.settings }

// Profile returns the historical profile, or nil.
func (t *Tracker) Profile() *model.HistoricalProfile { return t.profile }

// Apply swaps thresholds and sizing. History window, cooldown stamps and
// intraday extremes are kept.
func (t *Tracker) Apply(settings Settings) {
	settings.Symbol = t.settings.Symbol
	settings.WindowCapacity = windowCapacity(settings)
	t.settings = settings
	t.window.SetCapacity(settings.WindowCapacity)
	t.cooldowns.Cooldown = settings.Cooldown
}

// ResetSession clears the intraday reference points: daily open, today's
// high/low and the drop streak. The price window, profile and cooldowns stay.
func (t *Tracker) ResetSession() {
	t.dailyOpen, t.hasOpen = 0, false
	t.todayHigh, t.todayLow = 0, 0
	t.consecutiveDrops = 0
}

// Ingest folds a sample into the state, evaluates the rule battery and
// returns the alerts that passed their cooldown together with the recommendation.
func (t *Tracker) Ingest(s model.Sample) *Evaluation {
	price := s.Price
	t.window.Push(price)
	t.samples++

	if t.samples == 1 || t.todayHigh == 0 || price > t.todayHigh {
		t.todayHigh = price
	}
	if t.samples == 1 || t.todayLow == 0 || price < t.todayLow {
		t.todayLow = price
	}
	if !t.hasOpen {
		t.dailyOpen, t.hasOpen = price, true
	}

	prev, hadPrev := t.previousPrice, t.hasPrevious
	if hadPrev {
		if price < prev {
			t.consecutiveDrops++
		} else {
			t.consecutiveDrops = 0
		}
	}
	t.previousPrice, t.hasPrevious = price, true

	ev := &Evaluation{Sample: s, PreviousPrice: prev, HasPrevious: hadPrev}
	ev.MovingAverage, ev.HasMA = t.window.MovingAverage(t.settings.Thresholds.MAPeriod)
	ev.Percentile, ev.HasPercentile = calculator.PercentileRank(t.profile, price)
	ev.ValueZone = calculator.IsValueZone(t.profile, price)
	if ev.HasMA {
		ev.Recommendation = strategy.Recommend(price, ev.MovingAverage, t.context(), t.settings.Params)
	}

	candidates := strategy.DetectAlerts(strategy.Snapshot{
		Symbol:           t.settings.Symbol,
		Price:            price,
		PreviousPrice:    prev,
		HasPrevious:      hadPrev,
		TodayHigh:        t.todayHigh,
		DailyOpen:        t.dailyOpen,
		MovingAverage:    ev.MovingAverage,
		HasMA:            ev.HasMA,
		ConsecutiveDrops: t.consecutiveDrops,
		Profile:          t.profile,
		Recommendation:   ev.Recommendation,
	}, t.settings.Thresholds)

	for _, a := range candidates {
		at, ok := t.cooldowns.TryFire(a.Kind)
		if !ok {
			continue
		}
		a.FiredAt = at
		ev.Alerts = append(ev.Alerts, a)
	}
	return ev
}

// Recommendation computes a fresh recommendation for price, or nil while the
// moving average is unavailable.
func (t *Tracker) Recommendation(price float64) *model.Recommendation {
	ma, ok := t.window.MovingAverage(t.settings.Thresholds.MAPeriod)
	if !ok {
		return nil
	}
	return strategy.Recommend(price, ma, t.context(), t.settings.Params)
}

func (t *Tracker) context() strategy.Context {
	return strategy.Context{
		TodayHigh:        t.todayHigh,
		TodayLow:         t.todayLow,
		ConsecutiveDrops: t.consecutiveDrops,
	}
}

// Status returns a snapshot of the state.
func (t *Tracker) Status() Status {
	st := Status{
		Symbol:           t.settings.Symbol,
		Name:             t.settings.Name,
		Allocation:       t.settings.Allocation,
		Samples:          t.samples,
		LastPrice:        t.previousPrice,
		DailyOpen:        t.dailyOpen,
		TodayHigh:        t.todayHigh,
		TodayLow:         t.todayLow,
		ConsecutiveDrops: t.consecutiveDrops,
		Profile:          t.profile,
	}
	st.MovingAverage, st.HasMA = t.window.MovingAverage(t.settings.Thresholds.MAPeriod)
	return st
}
