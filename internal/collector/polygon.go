package collector

import (
	"context"
	"fmt"
	"time"

	polygonrest "github.com/polygon-io/client-go/rest"
	rmodels "github.com/polygon-io/client-go/rest/models"

	"DipSentinel/internal/model"
)

// PolygonFetcher implements Fetcher with Polygon aggregate bars.
type PolygonFetcher struct {
	rest *polygonrest.Client
}

// NewPolygonFetcher creates a fetcher. A zero timeout leaves calls unbounded.
func NewPolygonFetcher(apiKey, proxyURL string, timeout time.Duration) *PolygonFetcher {
	return &PolygonFetcher{rest: polygonrest.NewWithClient(apiKey, newHTTPClient(proxyURL, timeout))}
}

func (f *PolygonFetcher) Name() string { return "polygon" }

// aggs collects at most maxBars bars (0 = all). The iterator follows next_url
// page by page, so stopping early is what bounds the request count.
func (f *PolygonFetcher) aggs(ctx context.Context, symbol string, span rmodels.Timespan, from, to time.Time, order rmodels.Order, limit, maxBars int) ([]model.OHLCV, error) {
	params := &rmodels.ListAggsParams{
		Ticker:     symbol,
		Timespan:   span,
		Multiplier: 1,
		From:       rmodels.Millis(from),
		To:         rmodels.Millis(to),
	}
	adj := true
	params.Limit = &limit
	params.Order = &order
	params.Adjusted = &adj

	var bars []model.OHLCV
	iter := f.rest.ListAggs(ctx, params)
	for iter.Next() {
		a := iter.Item()
		bars = append(bars, model.OHLCV{
			Time:   time.Time(a.Timestamp),
			Open:   a.Open,
			High:   a.High,
			Low:    a.Low,
			Close:  a.Close,
			Volume: a.Volume,
		})
		if maxBars > 0 && len(bars) >= maxBars {
			break
		}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("polygon aggs %s: %w", symbol, err)
	}
	return bars, nil
}

// FetchLatest returns the newest minute bar of the last few days.
func (f *PolygonFetcher) FetchLatest(ctx context.Context, symbol string) (model.Sample, error) {
	now := time.Now()
	bars, err := f.aggs(ctx, symbol, rmodels.Minute, now.AddDate(0, 0, -4), now.Add(time.Minute), rmodels.Desc, 1, 1)
	if err != nil {
		return model.Sample{}, err
	}
	if len(bars) == 0 {
		return model.Sample{}, fmt.Errorf("polygon %s: %w", symbol, ErrUnavailable)
	}
	b := bars[0]
	return model.Sample{Symbol: symbol, Price: b.Close, Volume: int64(b.Volume), Time: b.Time}, nil
}

func (f *PolygonFetcher) FetchHistory(ctx context.Context, symbol string, days int) ([]model.OHLCV, error) {
	end := time.Now()
	start := end.AddDate(0, 0, -days*7/5-7)
	bars, err := f.aggs(ctx, symbol, rmodels.Day, start, end, rmodels.Asc, 50000, 0)
	if err != nil {
		return nil, err
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("polygon %s history: %w", symbol, ErrUnavailable)
	}
	if len(bars) > days {
		bars = bars[len(bars)-days:]
	}
	return bars, nil
}
