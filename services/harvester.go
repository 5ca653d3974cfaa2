package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"newhome-tracker/metrics"
	"newhome-tracker/scraper"
	"newhome-tracker/storage"
	"newhome-tracker/utils"
)

// Extractor outcomes as recorded in metrics and the cycle report.
const (
	resultOK         = "ok"
	resultEmpty      = "empty"
	resultPanic      = "panic"
	resultStoreError = "store_error"
)

// CycleReport summarizes one harvest cycle.
type CycleReport struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time

	Extractors int
	Empty      int
	Failed     int
	Records    int
	BatchResult

	// Err is set when the cycle could not run at all.
	Err error
}

// Duration is the cycle's wall time.
func (r CycleReport) Duration() time.Duration { return r.FinishedAt.Sub(r.StartedAt) }

func (r CycleReport) outcome() string {
	switch {
	case r.Err != nil:
		return "error"
	case r.Failed > 0:
		return "partial"
	}
	return "ok"
}

// HarvesterOption customizes a Harvester.
type HarvesterOption func(*Harvester)

// WithInterval sets the pause between the end of one cycle and the start of
// the next.
func WithInterval(d time.Duration) HarvesterOption {
	return func(h *Harvester) {
		if d > 0 {
			h.interval = d
		}
	}
}

// WithPlansCache invalidates c whenever a cycle changes the catalog.
func WithPlansCache(c storage.PlansCache) HarvesterOption {
	return func(h *Harvester) { h.cache = c }
}

// WithMetrics records cycle and extractor outcomes on m.
func WithMetrics(m *metrics.Metrics) HarvesterOption {
	return func(h *Harvester) { h.metrics = m }
}

// WithClock replaces wall time for report timestamps.
func WithClock(c utils.Clock) HarvesterOption {
	return func(h *Harvester) { h.clock = c }
}

// Harvester runs every registered extractor against the store on a fixed
// cadence. Cycles never overlap.
type Harvester struct {
	registry *scraper.Registry
	store    storage.ListingStore
	detector *ChangeDetector
	cache    storage.PlansCache
	metrics  *metrics.Metrics
	logger   *utils.Logger
	clock    utils.Clock
	interval time.Duration

	cycleMu sync.Mutex

	mu     sync.Mutex
	stopCh chan struct{}
	done   chan struct{}
}

// NewHarvester creates a Harvester with a one hour interval unless overridden.
func NewHarvester(registry *scraper.Registry, store storage.ListingStore, detector *ChangeDetector,
	logger *utils.Logger, opts ...HarvesterOption) *Harvester {
	h := &Harvester{
		registry: registry,
		store:    store,
		detector: detector,
		logger:   logger,
		clock:    utils.RealClock{},
		interval: time.Hour,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Start runs a cycle immediately and then one every interval until Stop is
// called or ctx ends. Calling Start on a running harvester is a no-op.
func (h *Harvester) Start(ctx context.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stopCh != nil {
		return
	}
	h.stopCh = make(chan struct{})
	h.done = make(chan struct{})
	h.logger.Info("[harvest] Scheduler started: %d extractors every %v", h.registry.Len(), h.interval)
	go h.loop(ctx, h.stopCh, h.done)
}

func (h *Harvester) loop(ctx context.Context, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	for {
		h.RunCycle(ctx)

		timer := time.NewTimer(h.interval)
		select {
		case <-stop:
			timer.Stop()
			return
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// Stop cancels the pending tick and waits for an in-flight cycle to finish.
func (h *Harvester) Stop() {
	h.mu.Lock()
	stop, done := h.stopCh, h.done
	h.stopCh, h.done = nil, nil
	h.mu.Unlock()
	if stop == nil {
		return
	}
	close(stop)
	<-done
	h.logger.Info("[harvest] Scheduler stopped")
}

// RunCycle runs every extractor once, in registration order, applying each
// non-empty batch in its own transaction on one shared session. Extractor
// panics and store errors are contained to that extractor.
func (h *Harvester) RunCycle(ctx context.Context) (report CycleReport) {
	h.cycleMu.Lock()
	defer h.cycleMu.Unlock()

	report.RunID = uuid.NewString()
	report.StartedAt = h.clock.Now()
	start := time.Now()
	h.logger.Info("[harvest] Cycle %s starting", report.RunID)

	defer func() {
		if r := recover(); r != nil {
			report.Err = fmt.Errorf("cycle panic: %v", r)
		}
		report.FinishedAt = h.clock.Now()
		h.finish(ctx, &report, time.Since(start))
	}()

	sess, err := h.store.Session(ctx)
	if err != nil {
		report.Err = fmt.Errorf("open session: %w", err)
		return report
	}
	defer func() {
		if err := sess.Close(); err != nil {
			h.logger.Warn("[harvest] Closing session: %v", err)
		}
	}()

	for _, e := range h.registry.Extractors() {
		if ctx.Err() != nil {
			report.Err = ctx.Err()
			break
		}
		report.Extractors++
		h.runExtractor(ctx, sess, e, &report)
	}
	return report
}

func (h *Harvester) runExtractor(ctx context.Context, sess storage.Session, e scraper.Extractor, report *CycleReport) {
	key := e.Key().String()
	defer func() {
		if r := recover(); r != nil {
			report.Failed++
			h.metrics.ObserveExtractor(key, resultPanic, 0)
			h.logger.Error("[harvest] %s panicked: %v", key, r)
		}
	}()

	records := e.FetchListings(ctx)
	if len(records) == 0 {
		report.Empty++
		h.metrics.ObserveExtractor(key, resultEmpty, 0)
		h.logger.Warn("[harvest] %s returned no records", key)
		return
	}
	report.Records += len(records)

	res, err := h.detector.Apply(ctx, sess, records)
	if err != nil {
		report.Failed++
		h.metrics.ObserveExtractor(key, resultStoreError, len(records))
		h.logger.Error("[harvest] %s: batch of %d rolled back: %v", key, len(records), err)
		return
	}
	report.BatchResult.Add(res)
	h.metrics.ObserveExtractor(key, resultOK, len(records))
	h.logger.Info("[harvest] %s: %d records, %d new, %d updated, %d price changes, %d malformed, %d repeated",
		key, len(records), res.Created, res.Updated, res.PriceChanges, res.Malformed, res.Duplicates)
}

func (h *Harvester) finish(ctx context.Context, r *CycleReport, elapsed time.Duration) {
	h.metrics.ObserveCycle(r.outcome(), elapsed, r.Created, r.Updated, r.PriceChanges, r.Malformed)

	if r.Changed() && h.cache != nil {
		if err := h.cache.Invalidate(context.WithoutCancel(ctx)); err != nil {
			h.logger.Warn("[harvest] Plans cache invalidation failed: %v", err)
		}
	}

	if r.Err != nil {
		h.logger.Error("[harvest] Cycle %s aborted after %v: %v", r.RunID, elapsed.Round(time.Millisecond), r.Err)
		return
	}
	h.logger.Info("[harvest] Cycle %s done in %v: %d extractors (%d empty, %d failed), %d records, %d new, %d updated, %d price changes",
		r.RunID, elapsed.Round(time.Millisecond), r.Extractors, r.Empty, r.Failed, r.Records,
		r.Created, r.Updated, r.PriceChanges)
}
