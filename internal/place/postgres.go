// Package place reads and writes published places. Reads go through the
// resilience layer and fall back to a JSON snapshot; writes are shared by
// promotion and administrative import.
package place

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/venue-registry/internal/db"
	"github.com/sells-group/venue-registry/internal/media"
	"github.com/sells-group/venue-registry/internal/model"
	"github.com/sells-group/venue-registry/internal/schema"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// Store reads places from Postgres.
type Store struct {
	pool       db.Pool
	negotiator *schema.Negotiator
}

// NewStore creates a Store.
func NewStore(pool db.Pool, negotiator *schema.Negotiator) *Store {
	return &Store{pool: pool, negotiator: negotiator}
}

// readColumns returns the places columns readable under c, in scan order.
func readColumns(c schema.Capability) []string {
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
	return cols
}

func scanPlace(row pgx.Row, c schema.Capability) (model.Place, error) {
	var (
		pl    model.Place
		level string
	)
	dest := []any{
		&pl.ID, &pl.Name, &pl.Country, &pl.City, &pl.Address, &pl.Lat, &pl.Lng,
		&pl.Category, &level, &pl.About, &pl.UpdatedAt,
	}
	if c.PlaceHours {
		dest = append(dest, &pl.Hours)
	}
	if c.PlacePaymentNote {
		dest = append(dest, &pl.PaymentNote)
	}
	if err := row.Scan(dest...); err != nil {
		return pl, err
	}
	pl.Verification = model.VerificationLevel(level)
	pl.Payments = []model.PaymentAccept{}
	pl.Media = []model.Media{}
	return pl, nil
}

// Get reads one place with its payments and media.
func (s *Store) Get(ctx context.Context, id string) (model.Place, error) {
	c, err := s.negotiator.Negotiate(ctx, s.pool)
	if err != nil {
		return model.Place{}, err
	}
	pl, err := scanPlace(s.pool.QueryRow(ctx,
		fmt.Sprintf("SELECT %s FROM places WHERE id = $1", strings.Join(readColumns(c), ", ")),
		id,
	), c)
	if eris.Is(err, pgx.ErrNoRows) {
		return model.Place{}, model.NotFound("place", id)
	}
	if err != nil {
		return model.Place{}, eris.Wrapf(err, "place: get %s", id)
	}

	payments, err := s.payments(ctx, c, []string{id})
	if err != nil {
		return model.Place{}, err
	}
	if p := payments[id]; p != nil {
		pl.Payments = p
	}
	items, err := media.PlaceMedia(ctx, s.pool, c, id)
	if err != nil {
		return model.Place{}, err
	}
	if items != nil {
		pl.Media = items
	}
	return pl, nil
}

// List reads places ordered by name, with payments.
func (s *Store) List(ctx context.Context, f model.PlaceFilter) ([]model.Place, error) {
	c, err := s.negotiator.Negotiate(ctx, s.pool)
	if err != nil {
		return nil, err
	}

	var (
		where []string
		args  []any
	)
	if f.Country != "" {
		args = append(args, f.Country)
		where = append(where, fmt.Sprintf("country = $%d", len(args)))
	}
	if f.City != "" {
		args = append(args, f.City)
		where = append(where, fmt.Sprintf("city = $%d", len(args)))
	}
	limit, offset := clampPage(f.Limit, f.Offset)
	args = append(args, limit, offset)

	sql := fmt.Sprintf("SELECT %s FROM places", strings.Join(readColumns(c), ", "))
	if len(where) > 0 {
		sql += " WHERE " + strings.Join(where, " AND ")
	}
	sql += fmt.Sprintf(" ORDER BY name, id LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, eris.Wrap(err, "place: list")
	}
	var (
		out []model.Place
		ids []string
	)
	for rows.Next() {
		pl, err := scanPlace(rows, c)
		if err != nil {
			rows.Close()
			return nil, eris.Wrap(err, "place: scan")
		}
		out = append(out, pl)
		ids = append(ids, pl.ID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "place: iterate")
	}

	payments, err := s.payments(ctx, c, ids)
	if err != nil {
		return nil, err
	}
	for i := range out {
		if p := payments[out[i].ID]; p != nil {
			out[i].Payments = p
		}
	}
	if out == nil {
		out = []model.Place{}
	}
	return out, nil
}

func (s *Store) payments(ctx context.Context, c schema.Capability, ids []string) (map[string][]model.PaymentAccept, error) {
	out := make(map[string][]model.PaymentAccept, len(ids))
	if !c.Payments || len(ids) == 0 {
		return out, nil
	}
	cols := []string{"place_id", "asset", "network", "label"}
	if c.PaymentPreferred {
		cols = append(cols, "preferred")
	}
	if c.PaymentMethod {
		cols = append(cols, "method")
	}
	rows, err := s.pool.Query(ctx,
		fmt.Sprintf("SELECT %s FROM payment_accepts WHERE place_id = ANY($1) ORDER BY place_id, id",
			strings.Join(cols, ", ")),
		ids,
	)
	if err != nil {
		return nil, eris.Wrap(err, "place: list payments")
	}
	defer rows.Close()

	for rows.Next() {
		var (
			placeID string
			pa      model.PaymentAccept
		)
		dest := []any{&placeID, &pa.Asset, &pa.Network, &pa.Label}
		if c.PaymentPreferred {
			dest = append(dest, &pa.Preferred)
		}
		if c.PaymentMethod {
			dest = append(dest, &pa.Method)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, eris.Wrap(err, "place: scan payment")
		}
		out[placeID] = append(out[placeID], pa)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "place: iterate payments")
	}
	for _, p := range out {
		model.SortPayments(p)
	}
	return out, nil
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
