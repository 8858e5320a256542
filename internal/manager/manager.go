package manager

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/brensch/camava/internal/db"
	"github.com/brensch/camava/internal/notify"
	"github.com/brensch/camava/internal/providers"
	"github.com/brensch/camava/internal/search"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"golang.org/x/time/rate"
)

type Options struct {
	Facilities []int // empty means the provider default
	Nights     int
	Horizon    int // days ahead to search
	Schedule   string
	Location   *time.Location
	Rate       rate.Limit // lookups per second
}

func (o Options) withDefaults() Options {
	if o.Nights < 1 {
		o.Nights = 1
	}
	if o.Horizon < 1 {
		o.Horizon = 14
	}
	if o.Horizon <= o.Nights {
		o.Horizon = o.Nights + 1
	}
	if o.Schedule == "" {
		o.Schedule = "*/15 * * * *"
	}
	if o.Location == nil {
		o.Location = time.UTC
	}
	if o.Rate <= 0 {
		o.Rate = 0.5
	}
	return o
}

type Manager struct {
	store    *db.Store
	prov     providers.Provider
	notifier notify.Notifier
	opts     Options
	limiter  *rate.Limiter
	logger   *slog.Logger
	mu       sync.Mutex // one run at a time
	now      func() time.Time
}

func NewManager(store *db.Store, prov providers.Provider, notifier notify.Notifier, opts Options) *Manager {
	opts = opts.withDefaults()
	return &Manager{
		store:    store,
		prov:     prov,
		notifier: notifier,
		opts:     opts,
		limiter:  rate.NewLimiter(opts.Rate, 1),
		logger:   slog.Default(),
		now:      time.Now,
	}
}

// RunSummary describes one watch run.
type RunSummary struct {
	RunID     string
	Lookups   int
	Failures  int
	Found     int
	NewlyOpen int
}

// RunOnce searches every configured facility for every stay in the horizon,
// records what it saw and notifies about sites that were not open last time.
func (m *Manager) RunOnce(ctx context.Context) (RunSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	runID := uuid.NewString()
	started := time.Now()
	logger := m.logger.With(slog.String("run_id", runID), slog.String("provider", m.prov.Name()))
	sum := RunSummary{RunID: runID}

	if _, err := m.SyncFacilities(ctx); err != nil {
		logger.Warn("facility sync failed", slog.Any("err", err))
	}

	today := m.now().In(m.opts.Location)
	first := time.Date(today.Year(), today.Month(), today.Day()+1, 0, 0, 0, 0, time.UTC)
	last := time.Date(today.Year(), today.Month(), today.Day()+m.opts.Horizon, 0, 0, 0, 0, time.UTC)
	windows, err := search.WindowsBetween(first, last, m.opts.Nights)
	if err != nil {
		return sum, fmt.Errorf("build search windows: %w", err)
	}

	c := &search.Campaign{
		Provider:   m.prov,
		Facilities: m.opts.Facilities,
		Windows:    windows,
		Limiter:    m.limiter,
		Recorder:   &lookupRecorder{store: m.store, runID: runID},
		Logger:     logger,
	}
	res := c.Run(ctx)
	sum.Lookups, sum.Failures, sum.Found = res.Lookups, res.Failures, len(res.Campsites)
	if res.Err != nil {
		return sum, res.Err
	}

	newly, err := m.store.ReconcileAvailability(ctx, m.prov.Name(), res.Campsites, started)
	if err != nil {
		return sum, fmt.Errorf("reconcile availability: %w", err)
	}
	sum.NewlyOpen = len(newly)
	m.notifyByFacility(ctx, logger, newly)

	since, err := m.store.CountLookupsSince(ctx, m.prov.Name(), started.Add(-24*time.Hour))
	if err != nil {
		logger.Warn("count lookups failed", slog.Any("err", err))
	}
	logger.Info("watch run complete",
		slog.Int("lookups", sum.Lookups),
		slog.Int("failures", sum.Failures),
		slog.Int("found", sum.Found),
		slog.Int("newly_open", sum.NewlyOpen),
		slog.Int64("lookups_24h", since),
		slog.Duration("duration", time.Since(started)))
	return sum, nil
}

// notifyByFacility sends one bundled message per facility, in the order the
// facilities were first seen.
func (m *Manager) notifyByFacility(ctx context.Context, logger *slog.Logger, sites []providers.AvailableCampsite) {
	if m.notifier == nil || len(sites) == 0 {
		return
	}
	var order []int
	byFacility := map[int][]providers.AvailableCampsite{}
	for _, s := range sites {
		if _, ok := byFacility[s.FacilityID]; !ok {
			order = append(order, s.FacilityID)
		}
		byFacility[s.FacilityID] = append(byFacility[s.FacilityID], s)
	}
	for _, id := range order {
		group := byFacility[id]
		if err := m.notifier.Notify(ctx, group[0].FacilityName, group); err != nil {
			logger.Warn("notify failed", slog.Int("facility", id), slog.Any("err", err))
		}
	}
}

// Run performs a watch run immediately and then on the configured cron
// schedule until ctx is done.
func (m *Manager) Run(ctx context.Context) error {
	c := cron.New(
		cron.WithLocation(m.opts.Location),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	if _, err := c.AddFunc(m.opts.Schedule, func() { m.runLogged(ctx) }); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", m.opts.Schedule, err)
	}

	m.logger.Info("starting watch",
		slog.String("provider", m.prov.Name()),
		slog.String("schedule", m.opts.Schedule),
		slog.String("timezone", m.opts.Location.String()))
	m.runLogged(ctx)

	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}

func (m *Manager) runLogged(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if _, err := m.RunOnce(ctx); err != nil && ctx.Err() == nil {
		m.logger.Error("watch run failed", slog.Any("err", err))
	}
}

// lookupRecorder stores campaign lookups tagged with the run that made them.
type lookupRecorder struct {
	store *db.Store
	runID string
}

func (r *lookupRecorder) RecordLookup(ctx context.Context, l search.Lookup) error {
	entry := db.LookupLog{
		Provider:   l.Provider,
		FacilityID: l.FacilityID,
		StartDate:  l.Window.Start,
		EndDate:    l.Window.End,
		CheckedAt:  l.CheckedAt,
		Success:    l.Err == nil,
		Count:      l.Count,
		RunID:      r.runID,
	}
	if l.Err != nil {
		entry.Err = l.Err.Error()
	}
	return r.store.RecordLookup(ctx, entry)
}
