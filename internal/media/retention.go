package media

import (
	"context"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/venue-registry/internal/db"
	"github.com/sells-group/venue-registry/internal/metrics"
	"github.com/sells-group/venue-registry/internal/model"
	"github.com/sells-group/venue-registry/internal/schema"
)

// AdoptionChecker reports whether a submission is approved and linked to a
// published place. Missing submissions are not adopted.
type AdoptionChecker interface {
	Adopted(ctx context.Context, submissionID string) (bool, error)
}

// RetentionPolicy is the maximum age per media kind. A zero age keeps that
// kind forever.
type RetentionPolicy map[model.MediaKind]time.Duration

// DefaultRetention returns proof 90d, evidence 180d, gallery 365d.
func DefaultRetention() RetentionPolicy {
	day := 24 * time.Hour
	return RetentionPolicy{
		model.MediaProof:    90 * day,
		model.MediaEvidence: 180 * day,
		model.MediaGallery:  365 * day,
	}
}

// SweepConfig controls one sweep.
type SweepConfig struct {
	Policy      RetentionPolicy
	Concurrency int
	// Execute deletes; otherwise the sweep only reports.
	Execute bool
}

// Candidate is one object past its retention age.
type Candidate struct {
	Key          string          `json:"key"`
	SubmissionID string          `json:"submission_id"`
	Kind         model.MediaKind `json:"kind"`
	MediaID      string          `json:"media_id"`
	Size         int64           `json:"size"`
	Age          time.Duration   `json:"age"`
}

// SweepReport summarizes a sweep.
type SweepReport struct {
	DryRun     bool        `json:"dry_run"`
	Scanned    int         `json:"scanned"`
	Adopted    int         `json:"adopted"`
	Deleted    int         `json:"deleted"`
	Failed     int         `json:"failed"`
	Bytes      int64       `json:"bytes"`
	Candidates []Candidate `json:"candidates"`
}

// Sweeper deletes media past its retention age.
type Sweeper struct {
	objects    ObjectStore
	pool       db.Pool
	negotiator *schema.Negotiator
	adoption   AdoptionChecker
	metrics    *metrics.Metrics
	now        func() time.Time
}

// NewSweeper creates a Sweeper.
func NewSweeper(objects ObjectStore, pool db.Pool, negotiator *schema.Negotiator, adoption AdoptionChecker) *Sweeper {
	return &Sweeper{
		objects:    objects,
		pool:       pool,
		negotiator: negotiator,
		adoption:   adoption,
		now:        time.Now,
	}
}

// WithMetrics counts deletions on m.
func (s *Sweeper) WithMetrics(m *metrics.Metrics) *Sweeper {
	s.metrics = m
	return s
}

// Sweep finds expired objects and, when cfg.Execute is set, deletes them.
// Gallery objects of adopted submissions are never eligible; adoption is
// checked again right before each delete because a promotion may land
// between the scan and the delete. A failed delete is logged and left for
// the next sweep.
func (s *Sweeper) Sweep(ctx context.Context, cfg SweepConfig) (SweepReport, error) {
	log := zap.L().With(zap.String("component", "media.retention"))
	if cfg.Policy == nil {
		cfg.Policy = DefaultRetention()
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	report := SweepReport{DryRun: !cfg.Execute}
	now := s.now()

	var expired []Candidate
	err := s.objects.List(ctx, Prefix, func(o ObjectInfo) error {
		report.Scanned++
		sid, kind, mid, ok := ParseKey(o.Key)
		if !ok {
			return nil
		}
		maxAge := cfg.Policy[kind]
		age := now.Sub(o.ModTime)
		if maxAge <= 0 || age <= maxAge {
			return nil
		}
		expired = append(expired, Candidate{
			Key: o.Key, SubmissionID: sid, Kind: kind, MediaID: mid, Size: o.Size, Age: age,
		})
		return nil
	})
	if err != nil {
		return report, eris.Wrap(err, "media: retention scan")
	}

	for _, c := range expired {
		if c.Kind == model.MediaGallery {
			adopted, err := s.adoption.Adopted(ctx, c.SubmissionID)
			if err != nil {
				log.Warn("adoption check failed, skipping", zap.String("key", c.Key), zap.Error(err))
				report.Failed++
				continue
			}
			if adopted {
				report.Adopted++
				continue
			}
		}
		report.Candidates = append(report.Candidates, c)
		report.Bytes += c.Size
	}

	if !cfg.Execute {
		log.Info("retention dry run",
			zap.Int("scanned", report.Scanned),
			zap.Int("eligible", len(report.Candidates)),
			zap.String("bytes", humanize.Bytes(uint64(report.Bytes))),
		)
		return report, nil
	}

	capab, err := s.negotiator.Negotiate(ctx, s.pool)
	if err != nil {
		return report, err
	}

	var mu sync.Mutex
	var freed int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Concurrency)
	for _, c := range report.Candidates {
		g.Go(func() error {
			res := s.remove(gctx, capab, c, log)
			mu.Lock()
			defer mu.Unlock()
			switch res {
			case removed:
				report.Deleted++
				freed += c.Size
				s.metrics.RetentionDeleted(string(c.Kind))
			case keptAdopted:
				report.Adopted++
			default:
				report.Failed++
			}
			return nil
		})
	}
	_ = g.Wait()

	log.Info("retention sweep complete",
		zap.Int("scanned", report.Scanned),
		zap.Int("deleted", report.Deleted),
		zap.Int("failed", report.Failed),
		zap.Int("adopted", report.Adopted),
		zap.String("freed", humanize.Bytes(uint64(freed))),
	)
	return report, nil
}

type removal int

const (
	removed removal = iota
	keptAdopted
	removeFailed
)

// remove deletes the mapping row before the object, so a failed object
// delete leaves the object listed for the next sweep.
func (s *Sweeper) remove(ctx context.Context, capab schema.Capability, c Candidate, log *zap.Logger) removal {
	if c.Kind == model.MediaGallery {
		adopted, err := s.adoption.Adopted(ctx, c.SubmissionID)
		if err != nil {
			log.Warn("adoption re-check failed", zap.String("key", c.Key), zap.Error(err))
			return removeFailed
		}
		if adopted {
			log.Info("gallery object adopted since scan", zap.String("key", c.Key))
			return keptAdopted
		}
	}
	if err := DeleteMapping(ctx, s.pool, capab, c.MediaID); err != nil {
		log.Warn("delete mapping failed", zap.String("key", c.Key), zap.Error(err))
		return removeFailed
	}
	if err := s.objects.Delete(ctx, c.Key); err != nil {
		log.Warn("delete object failed", zap.String("key", c.Key), zap.Error(err))
		return removeFailed
	}
	return removed
}
