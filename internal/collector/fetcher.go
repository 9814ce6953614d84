package collector

import (
	"context"
	"errors"

	"DipSentinel/internal/model"
)

// ErrUnavailable is returned when a provider answers but has no data for the symbol.
var ErrUnavailable = errors.New("market data unavailable")

// Fetcher defines the interface for fetching market data.
type Fetcher interface {
	// FetchLatest returns the most recent price and volume.
	FetchLatest(ctx context.Context, symbol string) (model.Sample, error)
	// FetchHistory returns up to days daily bars, oldest first.
	FetchHistory(ctx context.Context, symbol string, days int) ([]model.OHLCV, error)
	Name() string
}
