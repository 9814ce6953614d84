package notifier

import (
	"fmt"
	"html"
	"math"
	"strings"
	"time"

	"DipSentinel/internal/calculator"
	"DipSentinel/internal/model"
	"DipSentinel/internal/strategy"
	"DipSentinel/internal/tracker"
)

const timeLayout = "2006-01-02 15:04:05"

// ComparisonTitle is the title of the consolidated multi-symbol alert.
const ComparisonTitle = "Multi-ETF Comparison"

// StatusReport is everything the status display needs about one symbol after a tick.
type StatusReport struct {
	At             time.Time
	Currency       string
	MAPeriod       int
	DropThreshold  int
	Status         tracker.Status
	PreviousPrice  float64
	HasPrevious    bool
	Percentile     float64
	HasPercentile  bool
	Recommendation *model.Recommendation
}

// AlertTitle is the default title for a symbol's alerts.
func AlertTitle(name string) string {
	return name + " Alert"
}

// Envelope wraps an alert for Telegram's HTML parse mode.
func Envelope(title, body string, at time.Time) string {
	return fmt.Sprintf("<b>%s</b>\n%s\n<i>%s</i>",
		html.EscapeString(title), html.EscapeString(body), at.Format(timeLayout))
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// FormatAlert renders one fired rule.
func FormatAlert(a model.Alert, currency string) string {
	switch a.Kind {
	case model.AlertPriceDip:
		return fmt.Sprintf("⚠️ Sharp Drop: %.2f%% to %s%.2f", math.Abs(a.ChangePct), currency, a.Price)
	case model.AlertHighDip:
		return fmt.Sprintf("📉 Down %.2f%% from high %s%.2f", math.Abs(a.ChangePct), currency, a.Reference)
	case model.AlertMABreach:
		return fmt.Sprintf("📊 Below %d-period MA by %.2f%%", a.Count, math.Abs(a.ChangePct))
	case model.AlertConsecutiveDrops:
		return fmt.Sprintf("⬇️ Downtrend Alert: %d consecutive drops", a.Count)
	case model.AlertOpenDrop:
		return fmt.Sprintf("📍 Day Performance: %.2f%% from open %s%.2f", a.ChangePct, currency, a.Reference)
	case model.AlertValueZone:
		return fmt.Sprintf("💎 Value Zone: %s%.2f sits at %.1f%% of its historical range", currency, a.Price, a.ChangePct)
	case model.AlertDipOpportunity:
		return fmt.Sprintf("🎯 Dip Opportunity: down %.2f%% from high and below the %s%.2f long-term average",
			math.Abs(a.ChangePct), currency, a.Reference)
	case model.AlertNearLow:
		return fmt.Sprintf("🔻 Near Historical Low: %s%.2f is %.2f%% above the %s%.2f low",
			currency, a.Price, a.ChangePct, currency, a.Reference)
	default:
		return fmt.Sprintf("%s at %s%.2f", a.Kind, currency, a.Price)
	}
}

// FormatRecommendation renders the signal block.
func FormatRecommendation(rec *model.Recommendation, currency string) string {
	if rec == nil {
		return "💡 Collecting data for moving average...\n"
	}
	var b strings.Builder
	b.WriteString(fmt.Sprintf("💡 INVESTMENT SIGNAL: %s %s\n", rec.Strength, rec.Signal))
	for _, a := range rec.Actions {
		b.WriteString(fmt.Sprintf("   • %s\n", a))
	}
	b.WriteString("📋 Analysis:\n")
	for _, r := range rec.Reasoning {
		b.WriteString(fmt.Sprintf("   • %s\n", r))
	}
	b.WriteString(fmt.Sprintf("Target Holdings: %d units (%s)\n",
		rec.TargetUnits, strategy.FormatMoney(currency, rec.TargetValue.InexactFloat64())))
	return b.String()
}

// FormatStatus renders the per-tick status block.
func FormatStatus(r StatusReport) string {
	st := r.Status
	cur := r.Currency
	var b strings.Builder

	b.WriteString(strings.Repeat("=", 60) + "\n")
	b.WriteString(fmt.Sprintf("Time: %s\n", r.At.Format(timeLayout)))
	b.WriteString(fmt.Sprintf("Symbol: %s (%s)\n", st.Name, st.Symbol))
	b.WriteString(fmt.Sprintf("Current Price: %s%.2f\n", cur, st.LastPrice))

	if r.HasPrevious && r.PreviousPrice > 0 {
		change := st.LastPrice - r.PreviousPrice
		icon := "📈"
		if change < 0 {
			icon = "📉"
		}
		b.WriteString(fmt.Sprintf("Change: %s %s%.2f (%+.2f%%)\n", icon, cur, change, change/r.PreviousPrice*100))
	}
	if st.DailyOpen > 0 {
		change := st.LastPrice - st.DailyOpen
		b.WriteString(fmt.Sprintf("Day Change: %s%+.2f (%+.2f%%)\n", cur, change, change/st.DailyOpen*100))
	}
	if st.TodayHigh > 0 {
		b.WriteString(fmt.Sprintf("Today's High: %s%.2f\n", cur, st.TodayHigh))
	}
	if st.TodayLow > 0 {
		b.WriteString(fmt.Sprintf("Today's Low: %s%.2f\n", cur, st.TodayLow))
		rng := st.TodayHigh - st.TodayLow
		b.WriteString(fmt.Sprintf("Day Range: %s%.2f (%.2f%%)\n", cur, rng, rng/st.TodayLow*100))
	}
	if st.HasMA && st.MovingAverage > 0 {
		diff := st.LastPrice - st.MovingAverage
		icon := "⬆️"
		if diff < 0 {
			icon = "⬇️"
		}
		b.WriteString(fmt.Sprintf("MA(%d): %s %s%.2f (%+.2f%%)\n", r.MAPeriod, icon, cur, st.MovingAverage, diff/st.MovingAverage*100))
	}
	if st.ConsecutiveDrops > 0 {
		flag := ""
		if st.ConsecutiveDrops >= r.DropThreshold {
			flag = " 🔴"
		}
		b.WriteString(fmt.Sprintf("Consecutive Drops: %d%s\n", st.ConsecutiveDrops, flag))
	}
	if r.HasPercentile {
		b.WriteString(fmt.Sprintf("Historical Percentile: %.1f%%\n", r.Percentile))
	}

	b.WriteString(strings.Repeat("─", 60) + "\n")
	b.WriteString(FormatRecommendation(r.Recommendation, cur))
	b.WriteString(strings.Repeat("=", 60))
	return b.String()
}

// FormatComparison renders the consolidated multi-symbol alert body.
func FormatComparison(opps []model.Opportunity, currency string) string {
	var b strings.Builder
	b.WriteString("🎯 BEST ETF OPPORTUNITIES 🎯\n\n")
	b.WriteString(fmt.Sprintf("Found %d good entry points:\n\n", len(opps)))
	for i, o := range opps {
		b.WriteString(fmt.Sprintf("%d. %s (%s)\n", i+1, o.Name, strings.TrimSuffix(o.Symbol, ".NS")))
		b.WriteString(fmt.Sprintf("   Price: %s%.2f | Percentile: %.1f%%\n", currency, o.Price, o.Percentile))
		b.WriteString(fmt.Sprintf("   💰 Consider: %s (~%d units)\n",
			strategy.FormatMoney(currency, o.SuggestedSpend.InexactFloat64()), o.SuggestedUnits))
		b.WriteString(fmt.Sprintf("   ✓ %s\n", strings.Join(o.Reasons, ", ")))
		if o.Profile != nil {
			b.WriteString(fmt.Sprintf("   Range: %s%.2f - %s%.2f\n", currency, o.Profile.Min, currency, o.Profile.Max))
		}
		b.WriteString("\n")
	}
	b.WriteString("⏰ Act fast on the best opportunities!")
	return b.String()
}

// FormatProfile renders a historical profile summary.
func FormatProfile(name string, p *model.HistoricalProfile, currency string) string {
	if p == nil {
		return fmt.Sprintf("%s: no historical profile (history unavailable)", name)
	}
	var b strings.Builder
	b.WriteString(fmt.Sprintf("📚 %s: %d-day profile\n", name, p.Samples))
	b.WriteString(fmt.Sprintf("Range: %s%.2f - %s%.2f\n", currency, p.Min, currency, p.Max))
	b.WriteString(fmt.Sprintf("Mean: %s%.2f (σ %.2f)\n", currency, p.Mean, p.StdDev))
	b.WriteString(fmt.Sprintf("P25 / P50 / P75: %.2f / %.2f / %.2f\n", p.P25, p.P50, p.P75))
	b.WriteString(fmt.Sprintf("SMA short / long: %.2f / %.2f\n", p.SMAShort, p.SMALong))
	if p.HasRSI {
		b.WriteString(fmt.Sprintf("RSI(%d): %.1f (%s)", calculator.RSIPeriod, p.RSI14, calculator.RSIZone(p.RSI14)))
	} else {
		b.WriteString(fmt.Sprintf("RSI(%d): n/a (short history)", calculator.RSIPeriod))
	}
	return b.String()
}

// FormatDigest renders the scheduled one-line-per-symbol summary.
func FormatDigest(reports []StatusReport, at time.Time) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("🗞 Status digest | %s\n\n", at.Format(timeLayout)))
	if len(reports) == 0 {
		b.WriteString("No samples yet.")
		return b.String()
	}
	for _, r := range reports {
		st := r.Status
		line := fmt.Sprintf("%s: %s%.2f", st.Name, r.Currency, st.LastPrice)
		if r.HasPercentile {
			line += fmt.Sprintf(" | %.1f%%ile", r.Percentile)
		}
		if r.Recommendation != nil {
			line += fmt.Sprintf(" | %s", r.Recommendation.Signal)
		}
		b.WriteString(line + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
