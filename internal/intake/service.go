package intake

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/venue-registry/internal/media"
	"github.com/sells-group/venue-registry/internal/metrics"
	"github.com/sells-group/venue-registry/internal/model"
	"github.com/sells-group/venue-registry/internal/resilience"
)

// QueueKind tags intake records in the local queue.
const QueueKind = "intake"

// Creator persists a new submission and its media mapping rows. Creating a
// submission whose id already exists is a no-op.
type Creator interface {
	Create(ctx context.Context, sub model.Submission, items []model.Media) error
}

// Enqueuer is the durable local queue used while the primary store is down.
type Enqueuer interface {
	Enqueue(ctx context.Context, id, kind string, body []byte) error
}

// Record is the queued form of an intake.
type Record struct {
	Submission model.Submission `json:"submission"`
	Media      []model.Media    `json:"media"`
}

// mediaRecord keeps the object key, which model.Media hides from API output.
type mediaRecord struct {
	model.Media
	Key string `json:"key"`
}

func (r Record) MarshalJSON() ([]byte, error) {
	items := make([]mediaRecord, len(r.Media))
	for i, m := range r.Media {
		items[i] = mediaRecord{Media: m, Key: m.Key}
	}
	return json.Marshal(struct {
		Submission model.Submission `json:"submission"`
		Media      []mediaRecord    `json:"media"`
	}{r.Submission, items})
}

func (r *Record) UnmarshalJSON(data []byte) error {
	var w struct {
		Submission model.Submission `json:"submission"`
		Media      []mediaRecord    `json:"media"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	r.Submission = w.Submission
	r.Media = make([]model.Media, len(w.Media))
	for i, m := range w.Media {
		r.Media[i] = m.Media
		r.Media[i].Key = m.Key
	}
	return nil
}

// Result is what intake reports back to the submitter.
type Result struct {
	SubmissionID         string             `json:"submissionId"`
	Status               model.Status       `json:"status"`
	AcceptedMediaSummary model.MediaSummary `json:"acceptedMediaSummary"`
	Degraded             bool               `json:"degraded,omitempty"`
}

// Service runs validated intakes into the primary store or the queue.
type Service struct {
	guard   *resilience.Guard
	store   Creator
	media   *media.Manager
	queue   Enqueuer
	metrics *metrics.Metrics
	now     func() time.Time
	newID   func() string
}

// NewService creates a Service. queue may be nil, in which case degraded
// intakes fail with PRIMARY_STORE_UNAVAILABLE.
func NewService(guard *resilience.Guard, store Creator, mm *media.Manager, queue Enqueuer, m *metrics.Metrics) *Service {
	return &Service{
		guard:   guard,
		store:   store,
		media:   mm,
		queue:   queue,
		metrics: m,
		now:     time.Now,
		newID:   func() string { return uuid.NewString() },
	}
}

// Submit validates a submission, stores its files and records it.
func (s *Service) Submit(ctx context.Context, p model.Payload, files map[string][]File) (Result, error) {
	log := zap.L().With(zap.String("component", "intake"), zap.String("kind", string(p.Kind)))

	summary, err := Validate(p, files)
	if err != nil {
		s.metrics.Intake(string(p.Kind), "rejected")
		return Result{}, err
	}

	sub := model.Submission{
		ID:        s.newID(),
		Kind:      p.Kind,
		Status:    model.StatusPending,
		Payload:   p,
		CreatedAt: s.now().UTC(),
	}
	log = log.With(zap.String("submission_id", sub.ID))

	items, err := s.upload(ctx, sub.ID, files)
	if err != nil {
		s.metrics.Intake(string(p.Kind), "failed")
		return Result{}, err
	}

	action, err := resilience.Write(ctx, s.guard, func(ctx context.Context) error {
		return s.store.Create(ctx, sub, items)
	})
	res := Result{SubmissionID: sub.ID, Status: model.StatusPending, AcceptedMediaSummary: summary}

	switch action {
	case resilience.WriteCommitted:
		if err != nil {
			// The store answered and refused; nothing references the objects.
			s.media.Discard(ctx, items)
			s.metrics.Intake(string(p.Kind), "failed")
			return Result{}, resilience.Classify(err)
		}
	case resilience.WriteQueue:
		if qerr := s.enqueue(ctx, sub, items); qerr != nil {
			log.Error("intake: queue write failed", zap.Error(qerr), zap.NamedError("cause", err))
			s.metrics.Intake(string(p.Kind), "failed")
			return Result{}, model.Unavailable(qerr, "primary store unavailable and queue write failed")
		}
		log.Warn("intake: primary store unavailable, queued", zap.Error(err))
		res.Degraded = true
	default:
		if model.CodeOf(err).Fatal() {
			s.media.Discard(ctx, items)
			s.metrics.Intake(string(p.Kind), "failed")
			log.Error("intake: primary store cannot accept submissions", zap.Error(err))
			return Result{}, err
		}
		// The abandoned write may still land, so the objects stay; the
		// retention sweep removes them if it never does.
		s.metrics.Intake(string(p.Kind), "unavailable")
		return Result{}, err
	}

	for kind, n := range summary {
		s.metrics.MediaAccepted(string(kind), n)
	}
	if res.Degraded {
		s.metrics.Intake(string(p.Kind), "queued")
	} else {
		s.metrics.Intake(string(p.Kind), "created")
	}
	log.Info("intake: accepted", zap.Int("media", summary.Total()), zap.Bool("degraded", res.Degraded))
	return res, nil
}

func (s *Service) upload(ctx context.Context, submissionID string, files map[string][]File) ([]model.Media, error) {
	fields := make([]string, 0, len(files))
	for f := range files {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	var items []model.Media
	for _, f := range fields {
		for _, file := range files[f] {
			it, err := s.media.Put(ctx, submissionID, model.MediaKind(f), file.Data, file.ContentType())
			if err != nil {
				s.media.Discard(ctx, items)
				return nil, model.Unavailable(err, "object store write failed")
			}
			items = append(items, it)
		}
	}
	return items, nil
}

func (s *Service) enqueue(ctx context.Context, sub model.Submission, items []model.Media) error {
	if s.queue == nil {
		return eris.New("intake: no local queue configured")
	}
	body, err := json.Marshal(Record{Submission: sub, Media: items})
	if err != nil {
		return eris.Wrap(err, "intake: encode queue record")
	}
	return s.queue.Enqueue(ctx, sub.ID, QueueKind, body)
}
