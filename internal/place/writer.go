package place

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/venue-registry/internal/db"
	"github.com/sells-group/venue-registry/internal/model"
	"github.com/sells-group/venue-registry/internal/schema"
)

// Columns returns the places columns writable under c, in argument order.
func Columns(c schema.Capability) []string {
	cols := []string{
		"id", "name", "country", "city", "address", "lat", "lng",
		"category", "verification", "about", "updated_at",
	}
	if c.PlaceHours {
		cols = append(cols, "hours")
	}
	if c.PlacePaymentNote {
		cols = append(cols, "payment_note")
	}
	if c.PlaceGeom {
		cols = append(cols, "geom")
	}
	return cols
}

// Upsert writes pl, creating or overwriting the row with its id. inserted
// reports whether the row is new. Optional columns absent under c are
// silently dropped.
func Upsert(ctx context.Context, q db.Querier, c schema.Capability, pl model.Place, at time.Time) (inserted bool, err error) {
	cols := Columns(c)
	sql, err := db.UpsertSQL(db.UpsertConfig{
		Table:        schema.TablePlaces,
		Columns:      cols,
		ConflictKeys: []string{"id"},
		Exprs:        map[string]string{"geom": "ST_GeomFromEWKB(%s)"},
	})
	if err != nil {
		return false, err
	}

	args := []any{
		pl.ID, pl.Name, pl.Country, pl.City, pl.Address, pl.Lat, pl.Lng,
		pl.Category, string(pl.Verification), pl.About, at,
	}
	if c.PlaceHours {
		args = append(args, pl.Hours)
	}
	if c.PlacePaymentNote {
		args = append(args, pl.PaymentNote)
	}
	if c.PlaceGeom {
		point, err := EncodePoint(pl.Lat, pl.Lng)
		if err != nil {
			return false, err
		}
		args = append(args, point)
	}

	// xmax is zero only for a freshly inserted tuple.
	if err := q.QueryRow(ctx, sql+" RETURNING (xmax = 0)", args...).Scan(&inserted); err != nil {
		return false, eris.Wrapf(err, "place: upsert %s", pl.ID)
	}
	return inserted, nil
}

// UpsertVerification records the place's verification level and the
// submission it came from. It is a no-op without a usable verifications
// table.
func UpsertVerification(ctx context.Context, q db.Querier, c schema.Capability, placeID string, level model.VerificationLevel, sourceSubmissionID *string, at time.Time) error {
	if !c.Verifications() {
		return nil
	}
	sql, err := db.UpsertSQL(db.UpsertConfig{
		Table:        schema.TableVerifications,
		Columns:      []string{"place_id", c.VerificationColumn, "source_submission_id", "updated_at"},
		ConflictKeys: []string{"place_id"},
	})
	if err != nil {
		return err
	}
	if _, err := q.Exec(ctx, sql, placeID, string(level), sourceSubmissionID, at); err != nil {
		return eris.Wrapf(err, "place: upsert verification %s", placeID)
	}
	return nil
}

// InsertPayments adds normalized payment facts. Facts already recorded for
// the place are skipped. It returns how many rows were new.
func InsertPayments(ctx context.Context, q db.Querier, c schema.Capability, placeID string, payments []model.PaymentAccept, at time.Time) (int, error) {
	if !c.Payments || len(payments) == 0 {
		return 0, nil
	}
	cols := []string{"place_id", "asset", "network", "label"}
	if c.PaymentPreferred {
		cols = append(cols, "preferred")
	}
	if c.PaymentMethod {
		cols = append(cols, "method")
	}
	cols = append(cols, "created_at")

	sql, err := db.UpsertSQL(db.UpsertConfig{
		Table:        schema.TablePayments,
		Columns:      cols,
		ConflictKeys: c.PaymentConflictKeys(),
		DoNothing:    true,
	})
	if err != nil {
		return 0, err
	}

	added := 0
	for _, pa := range payments {
		args := []any{placeID, pa.Asset, pa.Network, pa.Label}
		if c.PaymentPreferred {
			args = append(args, pa.Preferred)
		}
		if c.PaymentMethod {
			args = append(args, pa.Method)
		}
		args = append(args, at)
		tag, err := q.Exec(ctx, sql, args...)
		if err != nil {
			return added, eris.Wrapf(err, "place: insert payment %s/%s", placeID, pa.Label)
		}
		added += int(tag.RowsAffected())
	}
	return added, nil
}
