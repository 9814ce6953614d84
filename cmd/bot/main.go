package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"DipSentinel/internal/collector"
	"DipSentinel/internal/config"
	"DipSentinel/internal/dashboard"
	"DipSentinel/internal/health"
	"DipSentinel/internal/notifier"
	"DipSentinel/internal/recorder"
	"DipSentinel/internal/scheduler"
)

var (
	cfgFile string
	once    bool
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	defaultCfg := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		defaultCfg = v
	}

	rootCmd := &cobra.Command{
		Use:   "dipsentinel",
		Short: "Price dip tracker with desktop and Telegram alerts",
		Long: `DipSentinel polls the latest price of one symbol, or of a watch list of ETFs,
and alerts on sharp drops, moving-average breaches and historical value zones.

Examples:
  dipsentinel --config configs/config.yaml
  dipsentinel --once
  dipsentinel profile`,
		SilenceUsage: true,
		RunE:         runWatch,
	}
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", defaultCfg, "config file path (env CONFIG_PATH)")
	rootCmd.Flags().BoolVar(&once, "once", false, "run a single tick and exit")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "profile",
		Short: "Print the historical profile of every configured symbol",
		RunE:  runProfile,
	})

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig() *config.Config {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		log.Fatalf("[FATAL] load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("[FATAL] config validation: %v", err)
	}
	return cfg
}

func newFetcher(cfg *config.Config) collector.Fetcher {
	ds := cfg.DataSource
	timeout := cfg.ProviderTimeout()

	var f collector.Fetcher
	switch ds.Provider {
	case config.ProviderREST:
		f = collector.NewRESTFetcher(ds.BaseURL, ds.APIKey, cfg.Proxy, timeout)
	case config.ProviderAlpaca:
		f = collector.NewAlpacaFetcher(ds.APIKey, ds.APISecret, ds.BaseURL)
	case config.ProviderPolygon:
		f = collector.NewPolygonFetcher(ds.APIKey, cfg.Proxy, timeout)
	default:
		f = collector.NewYahooFetcher(cfg.Proxy, timeout)
	}
	log.Printf("[INFO] data source: %s (%d req/min)", f.Name(), ds.RateLimit)
	return collector.WithRateLimit(f, ds.RateLimit)
}

func newRecorder(cfg *config.Config) recorder.Recorder {
	if cfg.Database.SQLitePath == "" {
		return recorder.NewNoopRecorder()
	}
	sr, err := recorder.NewSQLiteRecorder(cfg.Database.SQLitePath)
	if err != nil {
		log.Printf("[WARN] init sqlite recorder failed, using noop: %v", err)
		return recorder.NewNoopRecorder()
	}
	return sr
}

func newBar(total int, desc string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription(desc),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]█[reset]",
			SaucerHead:    "[green]█[reset]",
			SaucerPadding: "░",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}

func runWatch(cmd *cobra.Command, args []string) error {
	log.Println("[INFO] DipSentinel starting...")
	cfg := loadConfig()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return watch(ctx, cfg, cfgFile, once)
}

// watch runs the tracker until ctx is cancelled. The health listener comes up
// first so it answers while the history preload waits on the provider.
func watch(ctx context.Context, cfg *config.Config, path string, singleTick bool) error {
	if !singleTick {
		hs := health.NewServer(cfg.Health.Port)
		go func() {
			if err := hs.Start(); err != nil {
				log.Printf("[ERROR] health server: %v", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			hs.Shutdown(shutdownCtx)
		}()
	}

	col := collector.NewCollector(newFetcher(cfg), cfg.History.LookbackDays, cfg.History.ShortWindow, cfg.History.LongWindow)

	rec := newRecorder(cfg)
	defer rec.Close()

	sched := scheduler.NewScheduler(cfg, col, rec)
	sched.Watcher = config.NewWatcher(path)

	bar := newBar(len(cfg.Symbols()), "Loading history")
	sched.Init(ctx, func(done, total int) {
		bar.Set(done)
	})
	bar.Finish()
	fmt.Println()

	if singleTick {
		sched.Tick(ctx)
		return nil
	}

	if err := sched.RegisterJobs(); err != nil {
		return fmt.Errorf("register cron tasks: %w", err)
	}
	sched.Start()
	defer sched.Stop()

	if cfg.TelegramAlerts {
		tn := notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy)
		if tn.Configured() {
			go tn.StartPolling(ctx, sched.HandleCommand)
			log.Println("[INFO] Telegram polling started")
		}
	}

	log.Println("[INFO] DipSentinel is running. Press Ctrl+C to stop.")
	if err := sched.Run(ctx); err != nil {
		return err
	}
	log.Println("[INFO] DipSentinel stopped")
	return nil
}

func runProfile(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	col := collector.NewCollector(newFetcher(cfg), cfg.History.LookbackDays, cfg.History.ShortWindow, cfg.History.LongWindow)

	syms := cfg.Symbols()
	bar := newBar(len(syms), "Fetching history")
	rows := make([]dashboard.ProfileRow, 0, len(syms))
	for i, s := range syms {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		rows = append(rows, dashboard.ProfileRow{
			Symbol:  s.Symbol,
			Name:    s.Name,
			Profile: col.LoadProfile(ctx, s.Symbol),
		})
		bar.Set(i + 1)
	}
	bar.Finish()
	fmt.Println()

	dashboard.RenderProfiles(os.Stdout, rows)
	return nil
}
