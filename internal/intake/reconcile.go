package intake

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/venue-registry/internal/metrics"
	"github.com/sells-group/venue-registry/internal/queue"
	"github.com/sells-group/venue-registry/internal/resilience"
)

// ReplayQueue is the queue surface the reconciler drains.
type ReplayQueue interface {
	Due(ctx context.Context, maxAttempts, limit int) ([]queue.Entry, error)
	MarkFailed(ctx context.Context, id string, cause error, delay time.Duration) error
	Remove(ctx context.Context, id string) error
	Stats(ctx context.Context, maxAttempts int) (queue.Stats, error)
}

// ReconcileConfig tunes queue replay.
type ReconcileConfig struct {
	// Interval between drains when run as a loop. Default: 30s.
	Interval time.Duration
	// MaxAttempts caps replays per entry; exhausted entries stay queued.
	MaxAttempts int
	// PerSecond paces replays against the recovering store. Default: 5.
	PerSecond float64
	// Batch is the most entries one drain reads. Default: 100.
	Batch int
	// Retry supplies the next-attempt backoff schedule.
	Retry resilience.RetryConfig
}

func (c ReconcileConfig) withDefaults() ReconcileConfig {
	if c.Interval <= 0 {
		c.Interval = 30 * time.Second
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 20
	}
	if c.PerSecond <= 0 {
		c.PerSecond = 5
	}
	if c.Batch <= 0 {
		c.Batch = 100
	}
	return c
}

// DrainReport summarizes one drain.
type DrainReport struct {
	Replayed int  `json:"replayed"`
	Failed   int  `json:"failed"`
	Stopped  bool `json:"stopped"`
}

// Reconciler replays queued intakes into the primary store.
type Reconciler struct {
	cfg     ReconcileConfig
	queue   ReplayQueue
	store   Creator
	guard   *resilience.Guard
	limiter *rate.Limiter
	metrics *metrics.Metrics
}

// NewReconciler creates a Reconciler.
func NewReconciler(cfg ReconcileConfig, q ReplayQueue, store Creator, guard *resilience.Guard, m *metrics.Metrics) *Reconciler {
	cfg = cfg.withDefaults()
	return &Reconciler{
		cfg:     cfg,
		queue:   q,
		store:   store,
		guard:   guard,
		limiter: rate.NewLimiter(rate.Limit(cfg.PerSecond), 1),
		metrics: m,
	}
}

// Run drains the queue every interval until ctx is done.
func (r *Reconciler) Run(ctx context.Context) {
	log := zap.L().With(zap.String("component", "intake.reconciler"))
	log.Info("starting queue reconciler",
		zap.Duration("interval", r.cfg.Interval),
		zap.Int("max_attempts", r.cfg.MaxAttempts),
	)

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("queue reconciler stopped")
			return
		case <-ticker.C:
			if _, err := r.Drain(ctx); err != nil && ctx.Err() == nil {
				log.Error("intake: drain failed", zap.Error(err))
			}
		}
	}
}

// Drain replays every due entry once. It stops early when the primary store
// is still unavailable; entries keep their place for the next drain.
func (r *Reconciler) Drain(ctx context.Context) (DrainReport, error) {
	log := zap.L().With(zap.String("component", "intake.reconciler"))
	var rep DrainReport

	defer r.reportDepth(ctx, log)

	if b := r.guard.Breaker(); b != nil && b.Allow() != nil {
		log.Debug("breaker open, skipping drain")
		rep.Stopped = true
		return rep, nil
	}

	entries, err := r.queue.Due(ctx, r.cfg.MaxAttempts, r.cfg.Batch)
	if err != nil {
		return rep, err
	}

	for _, e := range entries {
		if err := r.limiter.Wait(ctx); err != nil {
			return rep, eris.Wrap(err, "intake: replay pacing")
		}

		var rec Record
		if err := json.Unmarshal(e.Body, &rec); err != nil {
			rep.Failed++
			r.metrics.Replayed("corrupt")
			log.Error("intake: undecodable queue entry", zap.String("id", e.ID), zap.Error(err))
			if merr := r.queue.MarkFailed(ctx, e.ID, err, r.cfg.Retry.Backoff(e.Attempts)); merr != nil {
				return rep, merr
			}
			continue
		}

		_, outcome, err := resilience.Attempt(ctx, r.guard, func(ctx context.Context) (struct{}, error) {
			return struct{}{}, r.store.Create(ctx, rec.Submission, rec.Media)
		}, nil)

		switch {
		case outcome == resilience.OutcomeSuccess:
			if err := r.queue.Remove(ctx, e.ID); err != nil {
				return rep, err
			}
			rep.Replayed++
			r.metrics.Replayed("ok")
			log.Info("intake: replayed queued submission", zap.String("id", e.ID), zap.Int("attempts", e.Attempts+1))
		case outcome == resilience.OutcomeNotConfigured:
			rep.Stopped = true
			return rep, nil
		default:
			rep.Failed++
			r.metrics.Replayed("failed")
			if merr := r.queue.MarkFailed(ctx, e.ID, err, r.cfg.Retry.Backoff(e.Attempts)); merr != nil {
				return rep, merr
			}
			switch outcome {
			case resilience.OutcomeUnavailable:
				log.Warn("intake: primary store still unavailable", zap.String("id", e.ID), zap.Error(err))
				rep.Stopped = true
				return rep, nil
			case resilience.OutcomeFailed:
				log.Error("intake: primary store cannot accept submissions", zap.String("id", e.ID), zap.Error(err))
				rep.Stopped = true
				return rep, nil
			}
			log.Error("intake: queued submission rejected by store", zap.String("id", e.ID), zap.Error(err))
		}
	}
	return rep, nil
}

func (r *Reconciler) reportDepth(ctx context.Context, log *zap.Logger) {
	if r.metrics == nil {
		return
	}
	st, err := r.queue.Stats(ctx, r.cfg.MaxAttempts)
	if err != nil {
		log.Debug("intake: queue stats failed", zap.Error(err))
		return
	}
	r.metrics.QueueDepth(st.Pending + st.Exhausted)
}
