package place

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/venue-registry/internal/model"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

var at = time.Date(2026, 5, 3, 8, 0, 0, 0, time.UTC)

func ptr[T any](v T) *T { return &v }

// stubReader is a scripted Reader. block, when set, holds every call until
// closed.
type stubReader struct {
	places map[string]model.Place
	err    error
	block  chan struct{}
	calls  int
}

func (s *stubReader) Get(_ context.Context, id string) (model.Place, error) {
	s.calls++
	if s.block != nil {
		<-s.block
	}
	if s.err != nil {
		return model.Place{}, s.err
	}
	pl, ok := s.places[id]
	if !ok {
		return model.Place{}, model.NotFound("place", id)
	}
	return pl, nil
}

func (s *stubReader) List(_ context.Context, _ model.PlaceFilter) ([]model.Place, error) {
	s.calls++
	if s.block != nil {
		<-s.block
	}
	if s.err != nil {
		return nil, s.err
	}
	out := []model.Place{}
	for _, pl := range s.places {
		out = append(out, pl)
	}
	return out, nil
}
