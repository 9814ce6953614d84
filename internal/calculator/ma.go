package calculator

import "errors"

// CalculateSMA computes the simple moving average of the given prices over the specified period.
func CalculateSMA(prices []float64, period int) (float64, error) {
	if period <= 0 {
		return 0, errors.New("period must be positive")
	}
	if len(prices) < period {
		return 0, errors.New("not enough data for SMA calculation")
	}
	sum := 0.0
	for i := len(prices) - period; i < len(prices); i++ {
		sum += prices[i]
	}
	return sum / float64(period), nil
}

// DefaultWindowCapacity is the number of recent prices kept when none is configured.
const DefaultWindowCapacity = 20

// Window is a bounded FIFO of recent prices.
type Window struct {
	prices   []float64
	capacity int
}

// NewWindow creates an empty window. Non-positive capacity falls back to DefaultWindowCapacity.
func NewWindow(capacity int) *Window {
	if capacity <= 0 {
		capacity = DefaultWindowCapacity
	}
	return &Window{prices: make([]float64, 0, capacity), capacity: capacity}
}

// Push appends a price, evicting the oldest once the window is full.
func (w *Window) Push(price float64) {
	w.prices = append(w.prices, price)
	if len(w.prices) > w.capacity {
		w.prices = w.prices[len(w.prices)-w.capacity:]
	}
}

// Len returns the number of prices held.
func (w *Window) Len() int { return len(w.prices) }

// Capacity returns the maximum number of prices held.
func (w *Window) Capacity() int { return w.capacity }

// SetCapacity changes the bound, dropping the oldest prices if the window shrinks.
func (w *Window) SetCapacity(capacity int) {
	if capacity <= 0 {
		capacity = DefaultWindowCapacity
	}
	w.capacity = capacity
	if len(w.prices) > capacity {
		w.prices = append([]float64(nil), w.prices[len(w.prices)-capacity:]...)
	}
}

// MovingAverage returns the mean of the last period prices.
// ok is false until at least period prices were pushed.
func (w *Window) MovingAverage(period int) (ma float64, ok bool) {
	ma, err := CalculateSMA(w.prices, period)
	if err != nil {
		return 0, false
	}
	return ma, true
}

// Prices returns a copy of the held prices, oldest first.
func (w *Window) Prices() []float64 {
	return append([]float64(nil), w.prices...)
}
