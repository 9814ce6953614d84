package dashboard

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"

	"DipSentinel/internal/calculator"
	"DipSentinel/internal/model"
	"DipSentinel/internal/notifier"
)

// Zone labels a percentile rank and suggests an action for it.
func Zone(percentile float64, ok bool) (zone, action string) {
	switch {
	case !ok:
		return "⚪ NO HISTORY", "… Collecting"
	case percentile <= 30:
		return "🟢 BUY ZONE", "⭐ STRONG BUY"
	case percentile <= 50:
		return "🟡 FAIR", "✓ Consider"
	case percentile <= 70:
		return "🟠 MODERATE", "⏸ Hold"
	default:
		return "🔴 HIGH", "⚠ Wait"
	}
}

// RenderMulti prints the multi-symbol dashboard followed by the best opportunity.
func RenderMulti(w io.Writer, reports []notifier.StatusReport, ranked []model.Opportunity, at time.Time) {
	fmt.Fprintf(w, "\n%s\nMULTI-ETF DASHBOARD - %s\n%s\n", strings.Repeat("=", 80), at.Format("2006-01-02 15:04:05"), strings.Repeat("=", 80))

	table := tablewriter.NewTable(w,
		tablewriter.WithHeader([]string{"ETF", "Price", "Zone", "Percentile", "Signal", "Action"}),
	)
	for _, r := range reports {
		zone, action := Zone(r.Percentile, r.HasPercentile)
		pct := "-"
		if r.HasPercentile {
			pct = fmt.Sprintf("%.0f%%", r.Percentile)
		}
		signal := "-"
		if r.Recommendation != nil {
			signal = string(r.Recommendation.Signal)
		}
		table.Append([]string{
			r.Status.Name,
			fmt.Sprintf("%s%.2f", r.Currency, r.Status.LastPrice),
			zone,
			pct,
			signal,
			action,
		})
	}
	table.Render()

	if len(ranked) > 0 {
		best := ranked[0]
		fmt.Fprintf(w, "\n💎 BEST OPPORTUNITY: %s - Score: %d\n", best.Name, best.Score)
		fmt.Fprintf(w, "   %s\n", strings.Join(best.Reasons, ", "))
	}
	fmt.Fprintln(w)
}

// ProfileRow is one symbol in the profile table.
type ProfileRow struct {
	Symbol  string
	Name    string
	Profile *model.HistoricalProfile
}

func rsiCell(p *model.HistoricalProfile) string {
	if !p.HasRSI {
		return "-"
	}
	return fmt.Sprintf("%.1f %s", p.RSI14, calculator.RSIZone(p.RSI14))
}

// RenderProfiles prints the historical profile of each symbol.
func RenderProfiles(w io.Writer, rows []ProfileRow) {
	table := tablewriter.NewTable(w,
		tablewriter.WithHeader([]string{"Symbol", "Name", "Days", "Min", "P25", "P50", "P75", "Max", "SMA S/L", "RSI"}),
	)
	for _, r := range rows {
		p := r.Profile
		if p == nil {
			table.Append([]string{r.Symbol, r.Name, "0", "-", "-", "-", "-", "-", "-", "-"})
			continue
		}
		table.Append([]string{
			r.Symbol,
			r.Name,
			fmt.Sprintf("%d", p.Samples),
			fmt.Sprintf("%.2f", p.Min),
			fmt.Sprintf("%.2f", p.P25),
			fmt.Sprintf("%.2f", p.P50),
			fmt.Sprintf("%.2f", p.P75),
			fmt.Sprintf("%.2f", p.Max),
			fmt.Sprintf("%.2f / %.2f", p.SMAShort, p.SMALong),
			rsiCell(p),
		})
	}
	table.Render()
}
