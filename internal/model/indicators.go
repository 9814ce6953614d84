package model

// HistoricalProfile summarizes the distribution of a symbol's historical closes.
// Built once per tracker and never updated.
type HistoricalProfile struct {
	Samples  int
	Min      float64
	Max      float64
	Mean     float64
	StdDev   float64
	P25      float64
	P50      float64
	P75      float64
	SMAShort float64
	SMALong  float64
	RSI14    float64
	HasRSI   bool // false when the history is shorter than the RSI period
}
