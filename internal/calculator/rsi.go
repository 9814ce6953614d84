package calculator

// Momentum bands for RSI labels.
const (
	RSIOversold   = 30.0
	RSIOverbought = 70.0
)

// RSIPeriod is the lookback used for the profile's momentum reading.
const RSIPeriod = 14

// RSI returns the Wilder relative strength index of closes. The first period
// moves seed plain averages; later moves are smoothed. ok is false until
// period+1 closes exist. A series that never moves reads 50.
func RSI(closes []float64, period int) (rsi float64, ok bool) {
	if period <= 0 || len(closes) <= period {
		return 0, false
	}
	n := float64(period)
	var up, down float64
	for i, c := range closes[1:] {
		gain, loss := splitMove(c - closes[i])
		if i < period {
			up += gain / n
			down += loss / n
			continue
		}
		up = (up*(n-1) + gain) / n
		down = (down*(n-1) + loss) / n
	}
	switch {
	case up == 0 && down == 0:
		return 50, true
	case down == 0:
		return 100, true
	}
	return 100 - 100/(1+up/down), true
}

func splitMove(d float64) (gain, loss float64) {
	if d > 0 {
		return d, 0
	}
	return 0, -d
}

// RSIZone labels an RSI reading.
func RSIZone(rsi float64) string {
	switch {
	case rsi <= RSIOversold:
		return "oversold"
	case rsi >= RSIOverbought:
		return "overbought"
	default:
		return "neutral"
	}
}
