package place

import (
	"context"

	"github.com/sells-group/venue-registry/internal/metrics"
	"github.com/sells-group/venue-registry/internal/model"
	"github.com/sells-group/venue-registry/internal/resilience"
)

// Reader is a place source: the Postgres store or the snapshot.
type Reader interface {
	Get(ctx context.Context, id string) (model.Place, error)
	List(ctx context.Context, f model.PlaceFilter) ([]model.Place, error)
}

// Service answers place reads through the resilience layer.
type Service struct {
	guard    *resilience.Guard
	primary  Reader
	snapshot Reader
	metrics  *metrics.Metrics
}

// NewService creates a Service. primary or snapshot may be nil when that
// source is not configured.
func NewService(guard *resilience.Guard, primary, snapshot Reader, m *metrics.Metrics) *Service {
	return &Service{guard: guard, primary: primary, snapshot: snapshot, metrics: m}
}

// Get reads one place.
func (s *Service) Get(ctx context.Context, id string) (resilience.Result[model.Place], error) {
	var primary func(context.Context) (model.Place, error)
	if s.primary != nil {
		primary = func(ctx context.Context) (model.Place, error) { return s.primary.Get(ctx, id) }
	}
	res, err := resilience.Read(ctx, s.guard, primary, func(ctx context.Context) (model.Place, error) {
		if s.snapshot == nil {
			return model.Place{}, model.Unavailable(nil, "no snapshot configured")
		}
		return s.snapshot.Get(ctx, id)
	}, nil)
	s.record(res.Source, res.Limited, err)
	return res, err
}

// List reads a page of places.
func (s *Service) List(ctx context.Context, f model.PlaceFilter) (resilience.Result[[]model.Place], error) {
	var primary func(context.Context) ([]model.Place, error)
	if s.primary != nil {
		primary = func(ctx context.Context) ([]model.Place, error) { return s.primary.List(ctx, f) }
	}
	res, err := resilience.Read(ctx, s.guard, primary, func(ctx context.Context) ([]model.Place, error) {
		if s.snapshot == nil {
			return nil, model.Unavailable(nil, "no snapshot configured")
		}
		return s.snapshot.List(ctx, f)
	}, func(p []model.Place) bool { return len(p) == 0 })
	if err == nil && res.Data == nil {
		res.Data = []model.Place{}
	}
	s.record(res.Source, res.Limited, err)
	return res, err
}

func (s *Service) record(src resilience.Source, limited bool, err error) {
	if err != nil && !model.IsCode(err, model.CodeNotFound) {
		return
	}
	s.metrics.Read(string(src), limited)
}
