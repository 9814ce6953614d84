package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"DipSentinel/internal/config"
	"DipSentinel/internal/health"
)

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	port := l.Addr().(*net.TCPAddr).Port
	l.Close()
	return port
}

func waitFor(t *testing.T, deadline time.Time, what string, cond func() error) {
	t.Helper()
	for {
		err := cond()
		if err == nil {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("%s: %v", what, err)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestWatch_HealthAnswersWhileHistoryStalls(t *testing.T) {
	release := make(chan struct{})
	var hits int32
	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer provider.Close()
	defer close(release)

	cfg := config.Default()
	cfg.Headless = true
	cfg.DataSource.Provider = config.ProviderREST
	cfg.DataSource.BaseURL = provider.URL
	cfg.DataSource.RateLimit = 0
	cfg.Health.Port = freePort(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() {
		done <- watch(ctx, cfg, filepath.Join(t.TempDir(), "config.yaml"), false)
	}()

	deadline := time.Now().Add(2 * time.Second)
	waitFor(t, deadline, "history request never reached the provider", func() error {
		if atomic.LoadInt32(&hits) == 0 {
			return fmt.Errorf("no provider calls yet")
		}
		return nil
	})

	client := &http.Client{Timeout: 500 * time.Millisecond}
	url := fmt.Sprintf("http://127.0.0.1:%d%s", cfg.Health.Port, health.Path)
	waitFor(t, deadline, "health endpoint unreachable during startup", func() error {
		resp, err := client.Get(url)
		if err != nil {
			return err
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("status %d", resp.StatusCode)
		}
		return nil
	})

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("watch returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop after cancel")
	}
}

func TestNewFetcher(t *testing.T) {
	tests := []struct {
		provider string
		want     string
	}{
		{config.ProviderYahoo, "yahoo"},
		{config.ProviderREST, "rest"},
		{config.ProviderAlpaca, "alpaca"},
		{config.ProviderPolygon, "polygon"},
	}
	for _, tt := range tests {
		cfg := config.Default()
		cfg.DataSource.Provider = tt.provider
		cfg.DataSource.BaseURL = "http://127.0.0.1:1"
		cfg.DataSource.APIKey = "key"
		cfg.DataSource.APISecret = "secret"
		if got := newFetcher(cfg).Name(); got != tt.want {
			t.Errorf("provider %s: expected %q, got %q", tt.provider, tt.want, got)
		}
	}
}
