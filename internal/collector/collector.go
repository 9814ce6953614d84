package collector

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"DipSentinel/internal/calculator"
	"DipSentinel/internal/model"
	"DipSentinel/internal/ratelimit"
)

// MockFetcher returns controllable fixed data for development and testing.
// Prices are served in order; the last one repeats once the list is drained.
type MockFetcher struct {
	mu      sync.Mutex
	Prices  map[string][]float64
	History map[string][]model.OHLCV
	Err     error // returned by FetchLatest when set
	HistErr error // returned by FetchHistory when set
	Calls   int
}

func (m *MockFetcher) Name() string { return "mock" }

func (m *MockFetcher) FetchLatest(_ context.Context, symbol string) (model.Sample, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls++
	if m.Err != nil {
		return model.Sample{}, m.Err
	}
	prices := m.Prices[symbol]
	if len(prices) == 0 {
		return model.Sample{}, fmt.Errorf("mock %s: %w", symbol, ErrUnavailable)
	}
	price := prices[0]
	if len(prices) > 1 {
		m.Prices[symbol] = prices[1:]
	}
	return model.Sample{Symbol: symbol, Price: price, Volume: 1000, Time: time.Now()}, nil
}

func (m *MockFetcher) FetchHistory(_ context.Context, symbol string, days int) ([]model.OHLCV, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.HistErr != nil {
		return nil, m.HistErr
	}
	if bars, ok := m.History[symbol]; ok {
		if len(bars) > days {
			bars = bars[len(bars)-days:]
		}
		return bars, nil
	}
	return nil, fmt.Errorf("mock %s history: %w", symbol, ErrUnavailable)
}

// MockBars builds count daily bars closing at base, base+step, base+2*step, ...
func MockBars(base, step float64, count int) []model.OHLCV {
	bars := make([]model.OHLCV, count)
	for i := 0; i < count; i++ {
		p := base + float64(i)*step
		bars[i] = model.OHLCV{
			Time:   time.Now().AddDate(0, 0, -(count - i)),
			Open:   p * 0.999,
			High:   p * 1.005,
			Low:    p * 0.995,
			Close:  p,
			Volume: 1000000,
		}
	}
	return bars
}

// RateLimitedFetcher paces calls to another Fetcher.
type RateLimitedFetcher struct {
	Fetcher Fetcher
	Limiter *ratelimit.Limiter
}

// WithRateLimit wraps f so that it sends at most perMinute requests per minute.
func WithRateLimit(f Fetcher, perMinute int) *RateLimitedFetcher {
	return &RateLimitedFetcher{Fetcher: f, Limiter: ratelimit.NewLimiter(f.Name(), perMinute)}
}

func (r *RateLimitedFetcher) Name() string { return r.Fetcher.Name() }

func (r *RateLimitedFetcher) FetchLatest(ctx context.Context, symbol string) (model.Sample, error) {
	if err := r.Limiter.Wait(ctx); err != nil {
		return model.Sample{}, fmt.Errorf("rate limit %s: %w", r.Limiter.Name(), err)
	}
	return r.Fetcher.FetchLatest(ctx, symbol)
}

func (r *RateLimitedFetcher) FetchHistory(ctx context.Context, symbol string, days int) ([]model.OHLCV, error) {
	if err := r.Limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit %s: %w", r.Limiter.Name(), err)
	}
	return r.Fetcher.FetchHistory(ctx, symbol, days)
}

// Collector fetches samples and builds historical profiles.
type Collector struct {
	Fetcher      Fetcher
	LookbackDays int
	ShortWindow  int
	LongWindow   int
}

// NewCollector creates a new Collector.
func NewCollector(fetcher Fetcher, lookbackDays, shortWindow, longWindow int) *Collector {
	return &Collector{
		Fetcher:      fetcher,
		LookbackDays: lookbackDays,
		ShortWindow:  shortWindow,
		LongWindow:   longWindow,
	}
}

// Sample fetches the latest price for symbol.
func (c *Collector) Sample(ctx context.Context, symbol string) (model.Sample, error) {
	s, err := c.Fetcher.FetchLatest(ctx, symbol)
	if err != nil {
		return model.Sample{}, fmt.Errorf("fetch %s: %w", symbol, err)
	}
	if s.Price <= 0 {
		return model.Sample{}, fmt.Errorf("fetch %s: %w", symbol, ErrUnavailable)
	}
	if s.Symbol == "" {
		s.Symbol = symbol
	}
	return s, nil
}

// LoadProfile builds the historical profile for symbol.
// Failures are logged and yield nil so callers run in degraded mode.
func (c *Collector) LoadProfile(ctx context.Context, symbol string) *model.HistoricalProfile {
	bars, err := c.Fetcher.FetchHistory(ctx, symbol, c.LookbackDays)
	if err != nil {
		log.Printf("[WARN] %s: history unavailable, running without profile: %v", symbol, err)
		return nil
	}
	profile, err := calculator.BuildProfile(model.Closes(bars), c.ShortWindow, c.LongWindow)
	if err != nil {
		log.Printf("[WARN] %s: profile build failed, running without profile: %v", symbol, err)
		return nil
	}
	log.Printf("[INFO] %s: loaded %d-day profile (min %.2f, median %.2f, max %.2f)",
		symbol, profile.Samples, profile.Min, profile.P50, profile.Max)
	return profile
}
