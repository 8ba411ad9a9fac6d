package main

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/sells-group/venue-registry/internal/config"
	"github.com/sells-group/venue-registry/internal/db"
	"github.com/sells-group/venue-registry/internal/intake"
	"github.com/sells-group/venue-registry/internal/media"
	"github.com/sells-group/venue-registry/internal/metrics"
	"github.com/sells-group/venue-registry/internal/model"
	"github.com/sells-group/venue-registry/internal/place"
	"github.com/sells-group/venue-registry/internal/promote"
	"github.com/sells-group/venue-registry/internal/queue"
	"github.com/sells-group/venue-registry/internal/resilience"
	"github.com/sells-group/venue-registry/internal/schema"
	"github.com/sells-group/venue-registry/internal/submission"
)

// appEnv holds every service the commands wire together. Pool, Submissions
// and Promoter are nil when no database_url is set; Queue is nil when the
// queue could not be opened.
type appEnv struct {
	Pool        *pgxpool.Pool
	Negotiator  *schema.Negotiator
	Metrics     *metrics.Metrics
	Objects     media.ObjectStore
	Media       *media.Manager
	Guard       *resilience.Guard
	Queue       *queue.Queue
	Submissions *submission.Store
	Places      *place.Service
	Intake      *intake.Service
	Promoter    *promote.Promoter
}

// Close releases resources held by the environment.
func (e *appEnv) Close() {
	if e.Queue != nil {
		_ = e.Queue.Close()
	}
	if e.Pool != nil {
		e.Pool.Close()
	}
}

// initEnv builds the environment from cfg. Callers should defer env.Close().
func initEnv(ctx context.Context, c *config.Config, fsys afero.Fs) (*appEnv, error) {
	log := zap.L().With(zap.String("component", "env"))
	env := &appEnv{
		Negotiator: schema.NewNegotiator(time.Duration(c.Schema.CapabilityTTLSecs) * time.Second),
		Metrics:    metrics.New(),
	}

	objects, err := initObjects(ctx, c.Media, fsys)
	if err != nil {
		return nil, err
	}
	env.Objects = objects
	env.Media = media.NewManager(objects)

	if c.Store.DatabaseURL != "" {
		pool, err := db.Open(ctx, c.Store.DatabaseURL, db.PoolConfig{
			MaxConns: c.Store.MaxConns,
			MinConns: c.Store.MinConns,
		})
		if err != nil {
			return nil, err
		}
		env.Pool = pool

		retry := resilience.FromRetryConfig(c.Retry.MaxAttempts, c.Retry.InitialBackoffMs, c.Retry.MaxBackoffMs)
		if err := pingPrimary(ctx, pool, retry); err != nil {
			// The pool dials on demand; until then reads fall back and intakes queue.
			log.Warn("primary store unreachable at startup, serving degraded", zap.Error(err))
		}
	}

	setting, err := resilience.ParseSetting(c.Source.Setting)
	if err != nil {
		env.Close()
		return nil, err
	}
	env.Guard = resilience.NewGuard(resilience.GuardConfig{
		Setting:    setting,
		Timeout:    c.Source.Timeout(),
		Configured: env.Pool != nil,
		Breaker:    resilience.NewBreaker(resilience.FromBreakerConfig(c.Breaker.FailureThreshold, c.Breaker.ResetTimeoutSecs)),
	})

	if c.Queue.Path != "" {
		q, err := queue.Open(ctx, c.Queue.Path)
		if err != nil {
			log.Warn("intake queue unavailable, degraded intakes will fail", zap.Error(err))
		} else {
			env.Queue = q
		}
	}

	var (
		primary place.Reader
		creator intake.Creator
		enqueue intake.Enqueuer
	)
	if env.Pool != nil {
		env.Submissions = submission.NewStore(env.Pool, env.Negotiator, env.Media, env.Metrics)
		env.Promoter = promote.New(env.Pool, env.Negotiator, env.Media, env.Metrics)
		primary = place.NewStore(env.Pool, env.Negotiator)
		creator = env.Submissions
	} else {
		creator = unconfiguredCreator{}
	}
	if env.Queue != nil {
		enqueue = env.Queue
	}

	var snapshot place.Reader
	if c.Source.SnapshotPath != "" {
		snap, err := place.LoadSnapshot(fsys, c.Source.SnapshotPath)
		if err != nil {
			log.Warn("place snapshot unavailable", zap.String("path", c.Source.SnapshotPath), zap.Error(err))
		} else {
			log.Info("place snapshot loaded", zap.Int("places", snap.Len()))
			snapshot = snap
		}
	}

	env.Places = place.NewService(env.Guard, primary, snapshot, env.Metrics)
	env.Intake = intake.NewService(env.Guard, creator, env.Media, enqueue, env.Metrics)
	return env, nil
}

// pingPrimary checks the primary store answers, retrying transient failures.
func pingPrimary(ctx context.Context, pool db.Pool, retry resilience.RetryConfig) error {
	_, err := resilience.Do(ctx, retry, "db: ping", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, pool.Ping(ctx)
	})
	return eris.Wrap(err, "db: ping")
}

// requirePool returns the primary pool or an error naming the command.
func (e *appEnv) requirePool(cmd string) (*pgxpool.Pool, error) {
	if e.Pool == nil {
		return nil, eris.Errorf("%s: no primary store configured", cmd)
	}
	return e.Pool, nil
}

func initObjects(ctx context.Context, c config.MediaConfig, fsys afero.Fs) (media.ObjectStore, error) {
	switch c.Driver {
	case "s3":
		s3, err := media.NewS3Store(media.S3Config{
			Endpoint:  c.Endpoint,
			Bucket:    c.Bucket,
			AccessKey: c.AccessKey,
			SecretKey: c.SecretKey,
			UseSSL:    c.UseSSL,
			Region:    c.Region,
		})
		if err != nil {
			return nil, err
		}
		if err := s3.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		return s3, nil
	case "fs", "":
		return media.NewFSStore(fsys, c.Root), nil
	default:
		return nil, eris.Errorf("media: unsupported driver %q", c.Driver)
	}
}

// unconfiguredCreator stands in for the submission store when no primary
// store exists. The guard reports not-configured before it is reached.
type unconfiguredCreator struct{}

func (unconfiguredCreator) Create(context.Context, model.Submission, []model.Media) error {
	return model.Unavailable(nil, "no primary store configured")
}

// retentionPolicy converts configured day counts.
func retentionPolicy(c config.RetentionConfig) media.RetentionPolicy {
	day := 24 * time.Hour
	return media.RetentionPolicy{
		model.MediaProof:    time.Duration(c.ProofDays) * day,
		model.MediaEvidence: time.Duration(c.EvidenceDays) * day,
		model.MediaGallery:  time.Duration(c.GalleryDays) * day,
	}
}

func sweepConfig(execute bool) media.SweepConfig {
	return media.SweepConfig{
		Policy:      retentionPolicy(cfg.Retention),
		Concurrency: cfg.Retention.Concurrency,
		Execute:     execute,
	}
}

// reconcileConfig converts queue and retry settings.
func reconcileConfig(c *config.Config) intake.ReconcileConfig {
	return intake.ReconcileConfig{
		Interval:    time.Duration(c.Queue.ReconcileIntervalSecs) * time.Second,
		MaxAttempts: c.Queue.MaxAttempts,
		PerSecond:   c.Queue.ReplayPerSec,
		Retry:       resilience.FromRetryConfig(c.Retry.MaxAttempts, c.Retry.InitialBackoffMs, c.Retry.MaxBackoffMs),
	}
}
