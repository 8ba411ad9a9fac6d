package place

import (
	"bytes"
	"context"
	"encoding/json"
	"sort"

	"github.com/rotisserie/eris"
	"github.com/spf13/afero"

	"github.com/sells-group/venue-registry/internal/model"
)

// Snapshot is the static JSON export served while the primary store is
// unreachable. It is read-only and possibly stale.
type Snapshot struct {
	byID  map[string]model.Place
	order []string
}

// LoadSnapshot reads a snapshot file. The file is either a JSON array of
// places or an object with a "places" array.
func LoadSnapshot(fsys afero.Fs, path string) (*Snapshot, error) {
	data, err := afero.ReadFile(fsys, path)
	if err != nil {
		return nil, eris.Wrapf(err, "place: read snapshot %s", path)
	}
	return ParseSnapshot(data)
}

// ParseSnapshot decodes snapshot bytes.
func ParseSnapshot(data []byte) (*Snapshot, error) {
	var places []model.Place
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &places); err != nil {
			return nil, eris.Wrap(err, "place: decode snapshot")
		}
	} else {
		var doc struct {
			Places []model.Place `json:"places"`
		}
		if err := json.Unmarshal(trimmed, &doc); err != nil {
			return nil, eris.Wrap(err, "place: decode snapshot")
		}
		places = doc.Places
	}

	s := &Snapshot{byID: make(map[string]model.Place, len(places))}
	for _, pl := range places {
		if pl.ID == "" {
			continue
		}
		if pl.Payments == nil {
			pl.Payments = []model.PaymentAccept{}
		}
		if pl.Media == nil {
			pl.Media = []model.Media{}
		}
		model.SortPayments(pl.Payments)
		if _, dup := s.byID[pl.ID]; !dup {
			s.order = append(s.order, pl.ID)
		}
		s.byID[pl.ID] = pl
	}
	sort.SliceStable(s.order, func(i, j int) bool {
		a, b := s.byID[s.order[i]], s.byID[s.order[j]]
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.ID < b.ID
	})
	return s, nil
}

// Len returns the number of places in the snapshot.
func (s *Snapshot) Len() int { return len(s.order) }

// Get returns one place.
func (s *Snapshot) Get(_ context.Context, id string) (model.Place, error) {
	pl, ok := s.byID[id]
	if !ok {
		return model.Place{}, model.NotFound("place", id)
	}
	return pl, nil
}

// List filters and pages the snapshot in the same order the store uses.
func (s *Snapshot) List(_ context.Context, f model.PlaceFilter) ([]model.Place, error) {
	limit, offset := clampPage(f.Limit, f.Offset)
	out := []model.Place{}
	skipped := 0
	for _, id := range s.order {
		pl := s.byID[id]
		if f.Country != "" && pl.Country != f.Country {
			continue
		}
		if f.City != "" && pl.City != f.City {
			continue
		}
		if skipped < offset {
			skipped++
			continue
		}
		out = append(out, pl)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}
