package collector

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

// polygonServer serves one aggregate per page and links pages through next_url.
func polygonServer(t *testing.T, pages int) (*httptest.Server, *int32) {
	t.Helper()
	var calls int32
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		if pages == 0 {
			fmt.Fprint(w, `{"status":"OK","ticker":"SPY","resultsCount":0,"results":[]}`)
			return
		}
		next := ""
		if int(n) < pages {
			next = fmt.Sprintf(`,"next_url":"%s/v2/aggs/cursor/%d"`, srv.URL, n)
		}
		price := 100 + int(n)
		fmt.Fprintf(w, `{"status":"OK","ticker":"SPY","resultsCount":1,"results":[{"o":%d,"h":%d,"l":%d,"c":%d,"v":1000,"t":%d}]%s}`,
			price, price, price, price, 1700000000000+int64(n)*60000, next)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func newTestPolygonFetcher(srv *httptest.Server) *PolygonFetcher {
	f := NewPolygonFetcher("test-key", "", 0)
	f.rest.HTTP.SetBaseURL(srv.URL)
	return f
}

func TestPolygonFetcher_FetchLatestReadsOnePage(t *testing.T) {
	srv, calls := polygonServer(t, 500)
	f := newTestPolygonFetcher(srv)

	s, err := f.FetchLatest(context.Background(), "SPY")
	if err != nil {
		t.Fatalf("FetchLatest: %v", err)
	}
	if s.Price != 101 || s.Volume != 1000 {
		t.Errorf("unexpected sample: %+v", s)
	}
	if got := atomic.LoadInt32(calls); got != 1 {
		t.Errorf("expected 1 HTTP call for the latest bar, got %d", got)
	}
}

func TestPolygonFetcher_FetchHistoryFollowsPages(t *testing.T) {
	srv, calls := polygonServer(t, 3)
	f := newTestPolygonFetcher(srv)

	bars, err := f.FetchHistory(context.Background(), "SPY", 2)
	if err != nil {
		t.Fatalf("FetchHistory: %v", err)
	}
	if len(bars) != 2 || bars[0].Close != 102 || bars[1].Close != 103 {
		t.Errorf("expected the last two of three pages, got %+v", bars)
	}
	if got := atomic.LoadInt32(calls); got != 3 {
		t.Errorf("expected 3 HTTP calls, got %d", got)
	}
}

func TestPolygonFetcher_EmptyResult(t *testing.T) {
	srv, _ := polygonServer(t, 0)
	f := newTestPolygonFetcher(srv)

	if _, err := f.FetchLatest(context.Background(), "SPY"); !errors.Is(err, ErrUnavailable) {
		t.Errorf("FetchLatest: expected ErrUnavailable, got %v", err)
	}
	if _, err := f.FetchHistory(context.Background(), "SPY", 10); !errors.Is(err, ErrUnavailable) {
		t.Errorf("FetchHistory: expected ErrUnavailable, got %v", err)
	}
}

const (
	alpacaTrade = `{"t":"2024-01-02T15:04:05Z","x":"V","p":101.5,"s":100,"c":["@"],"i":1,"z":"C"}`
	alpacaBars  = `[{"t":"2024-01-02T05:00:00Z","o":100,"h":102,"l":99,"c":101,"v":1000,"n":10,"vw":100.5},
{"t":"2024-01-03T05:00:00Z","o":101,"h":103,"l":100,"c":102,"v":1100,"n":11,"vw":101.5},
{"t":"2024-01-04T05:00:00Z","o":102,"h":104,"l":101,"c":103,"v":1200,"n":12,"vw":102.5}]`
)

// alpacaServer answers both the multi-symbol and per-symbol routes for SPY.
func alpacaServer(t *testing.T, gotKey *string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*gotKey = r.Header.Get("APCA-API-KEY-ID")
		w.Header().Set("Content-Type", "application/json")
		symbols := r.URL.Query().Get("symbols")
		switch {
		case r.URL.Path == "/v2/stocks/trades/latest":
			if symbols == "SPY" {
				fmt.Fprintf(w, `{"trades":{"SPY":%s}}`, alpacaTrade)
				return
			}
			fmt.Fprint(w, `{"trades":{}}`)
		case r.URL.Path == "/v2/stocks/SPY/trades/latest":
			fmt.Fprintf(w, `{"symbol":"SPY","trade":%s}`, alpacaTrade)
		case r.URL.Path == "/v2/stocks/bars" && symbols == "SPY":
			fmt.Fprintf(w, `{"bars":{"SPY":%s},"next_page_token":null}`, alpacaBars)
		case r.URL.Path == "/v2/stocks/SPY/bars":
			fmt.Fprintf(w, `{"symbol":"SPY","bars":%s,"next_page_token":null}`, alpacaBars)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestAlpacaFetcher(t *testing.T) {
	var gotKey string
	srv := alpacaServer(t, &gotKey)
	f := NewAlpacaFetcher("key", "secret", srv.URL)
	ctx := context.Background()

	s, err := f.FetchLatest(ctx, "SPY")
	if err != nil {
		t.Fatalf("FetchLatest: %v", err)
	}
	if s.Price != 101.5 || s.Volume != 100 || s.Symbol != "SPY" {
		t.Errorf("unexpected sample: %+v", s)
	}
	if gotKey != "key" {
		t.Errorf("expected API key header, got %q", gotKey)
	}

	bars, err := f.FetchHistory(ctx, "SPY", 2)
	if err != nil {
		t.Fatalf("FetchHistory: %v", err)
	}
	if len(bars) != 2 || bars[1].Close != 103 || bars[1].Volume != 1200 {
		t.Errorf("expected the last two bars, got %+v", bars)
	}

	if _, err := f.FetchLatest(ctx, "NONE"); err == nil {
		t.Error("expected an error for an unknown symbol")
	}
}

func TestAlpacaFetcher_CancelledContext(t *testing.T) {
	f := NewAlpacaFetcher("key", "secret", "http://127.0.0.1:1")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := f.FetchLatest(ctx, "SPY"); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if _, err := f.FetchHistory(ctx, "SPY", 5); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
