package strategy

import (
	"fmt"
	"math"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"

	"DipSentinel/internal/calculator"
	"DipSentinel/internal/model"
)

// Params holds the sizing inputs of a recommendation.
type Params struct {
	PortfolioAmount  float64
	TargetAllocation float64 // fraction of the portfolio meant for this symbol
	BuyOnDip         float64 // percent below MA for STRONG_BUY
	SellOnSpike      float64 // percent above MA for CONSIDER_SELLING
	Currency         string
}

// Context is the intraday state that colours the reasoning.
type Context struct {
	TodayHigh        float64
	TodayLow         float64
	ConsecutiveDrops int
}

const (
	buyBand      = -1.0 // BUY when deviation is at or below this but above -BuyOnDip
	holdUpper    = 1.5  // HOLD while deviation stays under this
	maxBuyPct    = 5.0  // cap on portfolio percent spent on a strong buy
	buyPct       = 2.0  // portfolio percent spent on a buy
	maxSellPct   = 10.0 // cap on percent of target holdings sold
	volatileDay  = 2.0  // day range percent considered volatile
	downtrendMin = 2
)

// Recommend maps the deviation from the moving average to a signal and a sizing.
// Returns nil when price or ma is not positive.
func Recommend(price, ma float64, ctx Context, p Params) *model.Recommendation {
	if price <= 0 || ma <= 0 {
		return nil
	}
	dev := calculator.PercentChange(price, ma)
	targetValue := p.PortfolioAmount * p.TargetAllocation
	unitsToHold := targetValue / price

	rec := &model.Recommendation{
		MovingAverage: ma,
		DeviationPct:  dev,
		TargetValue:   money(targetValue),
		TargetUnits:   int64(math.Floor(unitsToHold)),
	}

	switch {
	case dev <= -p.BuyOnDip:
		pct := math.Min(math.Abs(dev)/2, maxBuyPct)
		amount := p.PortfolioAmount * pct / 100
		rec.Signal = model.SignalStrongBuy
		rec.Strength = "🟢🟢🟢"
		rec.SuggestedAmount = money(amount)
		rec.SuggestedUnits = units(amount, price)
		rec.Reasoning = append(rec.Reasoning, fmt.Sprintf("Price %.2f%% below MA - Great dip opportunity", math.Abs(dev)))
		rec.Actions = append(rec.Actions, fmt.Sprintf("Invest %s (~%d units)", FormatMoney(p.Currency, amount), rec.SuggestedUnits))
	case dev <= buyBand:
		amount := p.PortfolioAmount * buyPct / 100
		rec.Signal = model.SignalBuy
		rec.Strength = "🟢🟢"
		rec.SuggestedAmount = money(amount)
		rec.SuggestedUnits = units(amount, price)
		rec.Reasoning = append(rec.Reasoning, fmt.Sprintf("Price %.2f%% below MA - Good entry point", math.Abs(dev)))
		rec.Actions = append(rec.Actions, fmt.Sprintf("Consider investing %s (~%d units)", FormatMoney(p.Currency, amount), rec.SuggestedUnits))
	case dev >= p.SellOnSpike:
		pct := math.Min(dev/3, maxSellPct)
		sellUnits := unitsToHold * pct / 100
		amount := sellUnits * price
		rec.Signal = model.SignalConsiderSelling
		rec.Strength = "🔴🔴"
		rec.SuggestedAmount = money(amount)
		rec.SuggestedUnits = int64(math.Floor(sellUnits))
		rec.Reasoning = append(rec.Reasoning, fmt.Sprintf("Price %.2f%% above MA - Take profits", dev))
		rec.Actions = append(rec.Actions, fmt.Sprintf("Book profits: ~%d units (%s)", rec.SuggestedUnits, FormatMoney(p.Currency, amount)))
	case dev < holdUpper:
		rec.Signal = model.SignalHold
		rec.Strength = "🟡"
		rec.Reasoning = append(rec.Reasoning, fmt.Sprintf("Price %+.2f%% vs MA - near moving average, wait for better opportunity", dev))
		rec.Actions = append(rec.Actions, "Maintain current position")
	default:
		rec.Signal = model.SignalHoldWatch
		rec.Strength = "🟡"
		rec.Reasoning = append(rec.Reasoning, fmt.Sprintf("Price %+.2f%% vs MA - slightly elevated, monitor for better entry", dev))
		rec.Actions = append(rec.Actions, "Wait for dip before adding more")
	}

	if ctx.TodayLow > 0 && ctx.TodayHigh > 0 {
		dayRange := calculator.PercentChange(ctx.TodayHigh, ctx.TodayLow)
		if dayRange > volatileDay {
			rec.Reasoning = append(rec.Reasoning, fmt.Sprintf("High volatility today (%.1f%% range)", dayRange))
		}
	}
	if ctx.ConsecutiveDrops >= downtrendMin {
		rec.Reasoning = append(rec.Reasoning, fmt.Sprintf("Downtrend: %d consecutive drops", ctx.ConsecutiveDrops))
	}
	return rec
}

// SuggestedSpend returns the consolidated-alert spend for one symbol: 10% of its target allocation.
func SuggestedSpend(portfolioAmount, allocation, price float64) (decimal.Decimal, int64) {
	amount := portfolioAmount * allocation * 0.10
	return money(amount), units(amount, price)
}

// FormatMoney renders an amount with thousands separators and no decimals.
func FormatMoney(currency string, amount float64) string {
	return currency + humanize.Comma(int64(math.Round(amount)))
}

func money(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v).Round(2)
}

func units(amount, price float64) int64 {
	if price <= 0 {
		return 0
	}
	return int64(math.Floor(amount / price))
}
