package submission

import (
	"encoding/json"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"go.uber.org/zap"

	"github.com/sells-group/venue-registry/internal/model"
	"github.com/sells-group/venue-registry/internal/schema"
	"github.com/sells-group/venue-registry/internal/schema/schematest"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

var (
	created = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	fixedAt = time.Date(2026, 5, 2, 12, 0, 0, 0, time.UTC)
)

func newTestStore(mock pgxmock.PgxPoolIface) *Store {
	s := NewStore(mock, schema.NewNegotiator(0), nil, nil)
	s.now = func() time.Time { return fixedAt }
	return s
}

func ownerPayloadJSON() []byte {
	data, _ := json.Marshal(model.Payload{
		Kind:           model.KindOwner,
		Name:           "Cafe X",
		Country:        "JP",
		City:           "Tokyo",
		AcceptedAssets: []model.AcceptedAsset{{Asset: "BTC"}},
		Details:        model.OwnerDetails{},
	})
	return data
}

// submissionRows renders one submission row shaped for cols.
func submissionRows(cols map[string][]string, id string, status model.Status, linked *string) *pgxmock.Rows {
	c := schematest.Capability(cols)
	rows := pgxmock.NewRows(Columns(c))
	vals := []any{id, "owner", string(status), ownerPayloadJSON(), linked, created}
	if c.ReviewColumns {
		vals = append(vals, nil, nil, nil)
	}
	if c.RejectReason {
		vals = append(vals, nil)
	}
	return rows.AddRow(vals...)
}
