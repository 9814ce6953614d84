package scheduler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"DipSentinel/internal/collector"
	"DipSentinel/internal/config"
	"DipSentinel/internal/cooldown"
	"DipSentinel/internal/dashboard"
	"DipSentinel/internal/model"
	"DipSentinel/internal/notifier"
	"DipSentinel/internal/portfolio"
	"DipSentinel/internal/recorder"
	"DipSentinel/internal/strategy"
	"DipSentinel/internal/tracker"

	"github.com/robfig/cron/v3"
)

// Snapshot is the read-only view published after every tick.
type Snapshot struct {
	At       time.Time
	Currency string
	Reports  []notifier.StatusReport
	Ranked   []model.Opportunity

	dispatcher *notifier.Dispatcher
}

// Scheduler runs the polling loop and the cron extension jobs.
// Tracker state is only touched from the loop goroutine.
type Scheduler struct {
	Cron       *cron.Cron
	Collector  *collector.Collector
	Dispatcher *notifier.Dispatcher
	Recorder   recorder.Recorder
	Watcher    *config.Watcher
	Out        io.Writer

	// BuildDispatcher rebuilds the channels after a reload.
	BuildDispatcher func(cfg *config.Config) *notifier.Dispatcher

	cfg        *config.Config
	trackers   map[string]*tracker.Tracker
	order      []string
	comparator *portfolio.Comparator

	resetCh  chan struct{}
	snapshot atomic.Pointer[Snapshot]
}

// NewScheduler creates a new Scheduler. Call Init before the first tick.
func NewScheduler(cfg *config.Config, col *collector.Collector, rec recorder.Recorder) *Scheduler {
	return &Scheduler{
		Cron:            cron.New(cron.WithSeconds()),
		Collector:       col,
		Dispatcher:      NewDispatcher(cfg),
		Recorder:        rec,
		Out:             os.Stdout,
		BuildDispatcher: NewDispatcher,
		cfg:             cfg,
		trackers:        make(map[string]*tracker.Tracker),
		comparator:      portfolio.NewComparator(cfg.Multi.AlertThreshold, cfg.Multi.TopN, cooldown.NewRegistry(cfg.Cooldown())),
		resetCh:         make(chan struct{}, 1),
	}
}

// NewDispatcher wires the channels enabled by cfg. Disabled channels stay nil.
func NewDispatcher(cfg *config.Config) *notifier.Dispatcher {
	d := &notifier.Dispatcher{}
	if !cfg.Headless {
		d.Desktop = notifier.NewDesktopNotifier("DipSentinel")
	}
	if cfg.TelegramAlerts {
		tn := notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy)
		if tn.Configured() {
			d.Chat = tn
		} else {
			log.Println("[WARN] telegram_alerts enabled but bot token or chat id missing, chat alerts skipped")
		}
	}
	return d
}

// Settings maps the config of one symbol onto tracker settings.
func Settings(cfg *config.Config, sym config.Symbol) tracker.Settings {
	allocation := sym.Allocation
	if allocation <= 0 {
		allocation = cfg.Investment.TargetAllocation
	}
	return tracker.Settings{
		Symbol:         sym.Symbol,
		Name:           sym.Name,
		Allocation:     allocation,
		WindowCapacity: cfg.HistoryCapacity,
		Cooldown:       cfg.Cooldown(),
		Thresholds: strategy.Thresholds{
			DipPercentage:            cfg.DipPercentage,
			DipFromHigh:              cfg.DipFromHigh,
			MAPeriod:                 cfg.MovingAvgPeriod,
			ConsecutiveDropThreshold: cfg.ConsecutiveDropThreshold,
		},
		Params: strategy.Params{
			PortfolioAmount:  cfg.Investment.PortfolioAmount,
			TargetAllocation: allocation,
			BuyOnDip:         cfg.Investment.BuyOnDip,
			SellOnSpike:      cfg.Investment.SellOnSpike,
			Currency:         cfg.Currency,
		},
	}
}

// Config returns the active configuration.
func (s *Scheduler) Config() *config.Config { return s.cfg }

// Tracker returns the tracker for symbol, or nil.
func (s *Scheduler) Tracker(symbol string) *tracker.Tracker { return s.trackers[symbol] }

// Init loads the historical profile of every configured symbol and creates its tracker.
// progress, when set, is called after each symbol.
func (s *Scheduler) Init(ctx context.Context, progress func(done, total int)) {
	syms := s.cfg.Symbols()
	for i, sym := range syms {
		s.addTracker(ctx, sym)
		if progress != nil {
			progress(i+1, len(syms))
		}
	}
	log.Printf("[INFO] tracking %d symbol(s), check interval %ds", len(s.order), s.cfg.CheckInterval)
}

func (s *Scheduler) addTracker(ctx context.Context, sym config.Symbol) {
	profile := s.Collector.LoadProfile(ctx, sym.Symbol)
	s.trackers[sym.Symbol] = tracker.New(Settings(s.cfg, sym), profile)
	s.order = append(s.order, sym.Symbol)
}

// RegisterJobs registers the optional session reset and digest jobs.
func (s *Scheduler) RegisterJobs() error {
	if spec := s.cfg.Schedule.SessionResetCron; spec != "" {
		if _, err := s.Cron.AddFunc(spec, s.RequestSessionReset); err != nil {
			return fmt.Errorf("register session reset: %w", err)
		}
		log.Printf("[INFO] session reset scheduled: %s", spec)
	}
	if spec := s.cfg.Schedule.DigestCron; spec != "" {
		if _, err := s.Cron.AddFunc(spec, s.sendDigest); err != nil {
			return fmt.Errorf("register digest: %w", err)
		}
		log.Printf("[INFO] status digest scheduled: %s", spec)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	log.Println("[INFO] scheduler started")
}

// Stop stops the cron scheduler gracefully.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	log.Println("[INFO] scheduler stopped")
}

// RequestSessionReset asks the loop to reset every tracker's session before its next tick.
func (s *Scheduler) RequestSessionReset() {
	select {
	case s.resetCh <- struct{}{}:
	default: // already pending
	}
}

func (s *Scheduler) sendDigest() {
	snap := s.Snapshot()
	if snap == nil || snap.dispatcher == nil {
		return
	}
	// runs on the cron goroutine: use the channels published with the snapshot
	snap.dispatcher.Reply(context.Background(), notifier.FormatDigest(snap.Reports, time.Now()))
}

// Run ticks every check interval until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	for {
		s.Tick(ctx)

		timer := time.NewTimer(s.cfg.Interval())
		select {
		case <-ctx.Done():
			timer.Stop()
			log.Println("[INFO] polling loop stopped")
			return nil
		case <-timer.C:
		}
	}
}

// Tick runs one iteration: reload, fetch, ingest, alert, compare, publish.
func (s *Scheduler) Tick(ctx context.Context) {
	s.reload(ctx)

	select {
	case <-s.resetCh:
		for _, sym := range s.order {
			s.trackers[sym].ResetSession()
		}
		log.Println("[INFO] session reset: daily open, today's high/low and drop streaks cleared")
	default:
	}

	now := time.Now()
	snap := &Snapshot{At: now, Currency: s.cfg.Currency, dispatcher: s.Dispatcher}
	var candidates []portfolio.Candidate

	for _, sym := range s.order {
		t := s.trackers[sym]
		sample, err := s.Collector.Sample(ctx, sym)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if errors.Is(err, collector.ErrUnavailable) {
				log.Printf("[WARN] %s: no data this tick: %v", sym, err)
			} else {
				log.Printf("[WARN] %s: fetch failed, skipping tick: %v", sym, err)
			}
			if prev := s.Snapshot(); prev != nil {
				if r, ok := findReport(prev.Reports, sym); ok {
					snap.Reports = append(snap.Reports, r)
				}
			}
			continue
		}

		ev := t.Ingest(sample)
		report := s.report(t, ev, now)
		snap.Reports = append(snap.Reports, report)

		if err := s.Recorder.RecordRecommendation(&recorder.RecommendationEvent{
			Symbol: sym, Price: sample.Price, Recommendation: ev.Recommendation, At: now,
		}); err != nil {
			log.Printf("[ERROR] record recommendation: %v", err)
		}

		if !s.cfg.MultiMode() || s.cfg.Multi.SymbolAlerts {
			s.dispatchAlerts(ctx, t, ev.Alerts)
		}

		if !s.cfg.MultiMode() {
			fmt.Fprintln(s.Out, notifier.FormatStatus(report))
		}

		st := t.Status()
		candidates = append(candidates, portfolio.Candidate{
			Symbol:         sym,
			Name:           st.Name,
			Price:          sample.Price,
			Percentile:     ev.Percentile,
			HasPercentile:  ev.HasPercentile,
			Profile:        st.Profile,
			Allocation:     st.Allocation,
			Recommendation: ev.Recommendation,
		})
	}

	if s.cfg.MultiMode() {
		snap.Ranked = portfolio.Rank(candidates, s.cfg.Investment.PortfolioAmount)
		dashboard.RenderMulti(s.Out, snap.Reports, snap.Ranked, now)
		if top, ok := s.comparator.Select(snap.Ranked); ok {
			s.Dispatcher.Dispatch(ctx, notifier.ComparisonTitle, notifier.FormatComparison(top, s.cfg.Currency))
			if err := s.Recorder.RecordComparison(&recorder.ComparisonEvent{Opportunities: top, At: now}); err != nil {
				log.Printf("[ERROR] record comparison: %v", err)
			}
		}
	}

	s.snapshot.Store(snap)
}

func (s *Scheduler) dispatchAlerts(ctx context.Context, t *tracker.Tracker, alerts []model.Alert) {
	title := notifier.AlertTitle(t.Settings().Name)
	for _, a := range alerts {
		msg := notifier.FormatAlert(a, s.cfg.Currency)
		s.Dispatcher.Dispatch(ctx, title, msg)
		if err := s.Recorder.RecordAlert(&recorder.AlertEvent{Alert: a, Message: msg}); err != nil {
			log.Printf("[ERROR] record alert: %v", err)
		}
	}
}

func (s *Scheduler) report(t *tracker.Tracker, ev *tracker.Evaluation, at time.Time) notifier.StatusReport {
	return notifier.StatusReport{
		At:             at,
		Currency:       s.cfg.Currency,
		MAPeriod:       s.cfg.MovingAvgPeriod,
		DropThreshold:  s.cfg.ConsecutiveDropThreshold,
		Status:         t.Status(),
		PreviousPrice:  ev.PreviousPrice,
		HasPrevious:    ev.HasPrevious,
		Percentile:     ev.Percentile,
		HasPercentile:  ev.HasPercentile,
		Recommendation: ev.Recommendation,
	}
}

func findReport(reports []notifier.StatusReport, symbol string) (notifier.StatusReport, bool) {
	for _, r := range reports {
		if r.Status.Symbol == symbol {
			return r, true
		}
	}
	return notifier.StatusReport{}, false
}

// reload applies a changed config file. Tracker state survives; a bad file
// keeps the previous config.
func (s *Scheduler) reload(ctx context.Context) {
	if s.Watcher == nil {
		return
	}
	cfg, err := s.Watcher.Reload()
	if err != nil {
		log.Printf("[ERROR] config reload failed, keeping previous config: %v", err)
		return
	}
	if cfg == nil {
		return
	}
	if cfg.DataSource != s.cfg.DataSource || cfg.Schedule != s.cfg.Schedule || cfg.Health != s.cfg.Health {
		log.Println("[WARN] data source, schedule and health port changes take effect after restart")
	}
	if cfg.Telegram != s.cfg.Telegram || cfg.TelegramAlerts != s.cfg.TelegramAlerts {
		log.Println("[WARN] telegram settings reloaded for alerts; the command poller keeps its startup token until restart")
	}

	old := s.cfg
	s.cfg = cfg
	if s.BuildDispatcher != nil {
		s.Dispatcher = s.BuildDispatcher(cfg)
	}
	s.comparator.Threshold = cfg.Multi.AlertThreshold
	s.comparator.TopN = cfg.Multi.TopN
	s.comparator.Cooldowns.Cooldown = cfg.Cooldown()
	s.Collector.LookbackDays = cfg.History.LookbackDays
	s.Collector.ShortWindow = cfg.History.ShortWindow
	s.Collector.LongWindow = cfg.History.LongWindow

	keep := make(map[string]bool)
	var order []string
	for _, sym := range cfg.Symbols() {
		keep[sym.Symbol] = true
		if t, ok := s.trackers[sym.Symbol]; ok {
			t.Apply(Settings(cfg, sym))
			order = append(order, sym.Symbol)
			continue
		}
		profile := s.Collector.LoadProfile(ctx, sym.Symbol)
		s.trackers[sym.Symbol] = tracker.New(Settings(cfg, sym), profile)
		order = append(order, sym.Symbol)
		log.Printf("[INFO] now tracking %s", sym.Symbol)
	}
	for sym := range s.trackers {
		if !keep[sym] {
			delete(s.trackers, sym)
			log.Printf("[INFO] stopped tracking %s", sym)
		}
	}
	s.order = order
	log.Printf("[INFO] config reloaded from %s (symbols %d -> %d)", s.Watcher.Path(), len(old.Symbols()), len(order))
}

// Snapshot returns the last published tick, or nil before the first one.
func (s *Scheduler) Snapshot() *Snapshot {
	return s.snapshot.Load()
}

// HandleCommand answers Telegram commands from the published snapshot only.
func (s *Scheduler) HandleCommand(cmd string) string {
	snap := s.Snapshot()
	fields := strings.Fields(cmd)
	if len(fields) == 0 {
		return ""
	}
	// "/status@MyBot" in group chats
	name := strings.SplitN(fields[0], "@", 2)[0]

	switch name {
	case "/status":
		if snap == nil || len(snap.Reports) == 0 {
			return "No samples yet."
		}
		parts := make([]string, 0, len(snap.Reports))
		for _, r := range snap.Reports {
			parts = append(parts, notifier.FormatStatus(r))
		}
		return strings.Join(parts, "\n\n")
	case "/compare":
		if snap == nil || len(snap.Ranked) == 0 {
			return "No opportunities right now."
		}
		return notifier.FormatComparison(snap.Ranked, snap.Currency)
	case "/profile":
		if snap == nil || len(snap.Reports) == 0 {
			return "No samples yet."
		}
		parts := make([]string, 0, len(snap.Reports))
		for _, r := range snap.Reports {
			if len(fields) > 1 && !strings.EqualFold(fields[1], r.Status.Symbol) {
				continue
			}
			parts = append(parts, notifier.FormatProfile(r.Status.Name, r.Status.Profile, r.Currency))
		}
		if len(parts) == 0 {
			return fmt.Sprintf("Unknown symbol: %s", fields[1])
		}
		return strings.Join(parts, "\n\n")
	case "/start", "/help":
		return "Commands:\n/status - latest price, MA and signal\n/compare - ranked opportunities\n/profile [symbol] - historical profile"
	default:
		return fmt.Sprintf("Unknown command: %s. Try /help", name)
	}
}
