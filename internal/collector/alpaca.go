package collector

import (
	"context"
	"fmt"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"DipSentinel/internal/model"
)

// AlpacaFetcher implements Fetcher with the Alpaca market data API.
// The SDK calls take no context, so a cancelled ctx is only checked before each call.
type AlpacaFetcher struct {
	client *marketdata.Client
}

// NewAlpacaFetcher creates a fetcher authenticated with the given key pair.
// An empty baseURL uses the SDK's data endpoint.
func NewAlpacaFetcher(apiKey, apiSecret, baseURL string) *AlpacaFetcher {
	return &AlpacaFetcher{
		client: marketdata.NewClient(marketdata.ClientOpts{
			APIKey:    apiKey,
			APISecret: apiSecret,
			BaseURL:   baseURL,
		}),
	}
}

func (f *AlpacaFetcher) Name() string { return "alpaca" }

func (f *AlpacaFetcher) FetchLatest(ctx context.Context, symbol string) (model.Sample, error) {
	if err := ctx.Err(); err != nil {
		return model.Sample{}, err
	}
	trade, err := f.client.GetLatestTrade(symbol, marketdata.GetLatestTradeRequest{})
	if err != nil {
		return model.Sample{}, fmt.Errorf("alpaca latest trade: %w", err)
	}
	if trade == nil || trade.Price <= 0 {
		return model.Sample{}, fmt.Errorf("alpaca %s: %w", symbol, ErrUnavailable)
	}
	return model.Sample{
		Symbol: symbol,
		Price:  trade.Price,
		Volume: int64(trade.Size),
		Time:   trade.Timestamp,
	}, nil
}

func (f *AlpacaFetcher) FetchHistory(ctx context.Context, symbol string, days int) ([]model.OHLCV, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	end := time.Now()
	// calendar days cover weekends and holidays
	start := end.AddDate(0, 0, -days*7/5-7)
	bars, err := f.client.GetBars(symbol, marketdata.GetBarsRequest{
		TimeFrame: marketdata.OneDay,
		Start:     start,
		End:       end,
	})
	if err != nil {
		return nil, fmt.Errorf("alpaca bars: %w", err)
	}
	out := make([]model.OHLCV, 0, len(bars))
	for _, b := range bars {
		out = append(out, model.OHLCV{
			Time:   b.Timestamp,
			Open:   b.Open,
			High:   b.High,
			Low:    b.Low,
			Close:  b.Close,
			Volume: float64(b.Volume),
		})
	}
	if len(out) > days {
		out = out[len(out)-days:]
	}
	return out, nil
}
