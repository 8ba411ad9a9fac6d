// Package submission persists submissions and runs their review state
// machine against the negotiated schema.
package submission

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/venue-registry/internal/audit"
	"github.com/sells-group/venue-registry/internal/db"
	"github.com/sells-group/venue-registry/internal/media"
	"github.com/sells-group/venue-registry/internal/metrics"
	"github.com/sells-group/venue-registry/internal/model"
	"github.com/sells-group/venue-registry/internal/resilience"
	"github.com/sells-group/venue-registry/internal/schema"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// Store is the Postgres-backed submission store.
type Store struct {
	pool       db.Pool
	negotiator *schema.Negotiator
	media      *media.Manager
	metrics    *metrics.Metrics
	now        func() time.Time
}

// NewStore creates a Store. mm resolves media for review detail when the
// mapping table is absent; it may be nil.
func NewStore(pool db.Pool, negotiator *schema.Negotiator, mm *media.Manager, m *metrics.Metrics) *Store {
	return &Store{
		pool:       pool,
		negotiator: negotiator,
		media:      mm,
		metrics:    m,
		now:        time.Now,
	}
}

// Pool returns the underlying pool.
func (s *Store) Pool() db.Pool { return s.pool }

// Negotiator returns the capability negotiator shared by the store's callers.
func (s *Store) Negotiator() *schema.Negotiator { return s.negotiator }

// Columns returns the submissions columns readable under c, in scan order.
func Columns(c schema.Capability) []string {
	cols := []string{"id", "kind", "status", "payload", "linked_place_id", "created_at"}
	if c.ReviewColumns {
		cols = append(cols, "reviewed_by", "reviewed_at", "review_note")
	}
	if c.RejectReason {
		cols = append(cols, "reject_reason")
	}
	return cols
}

func scan(row pgx.Row, c schema.Capability) (model.Submission, error) {
	var (
		sub          model.Submission
		kind, status string
		payload      []byte
	)
	dest := []any{&sub.ID, &kind, &status, &payload, &sub.LinkedPlaceID, &sub.CreatedAt}
	if c.ReviewColumns {
		dest = append(dest, &sub.ReviewedBy, &sub.ReviewedAt, &sub.ReviewNote)
	}
	if c.RejectReason {
		dest = append(dest, &sub.RejectReason)
	}
	if err := row.Scan(dest...); err != nil {
		return sub, err
	}
	sub.Kind = model.Kind(kind)
	sub.Status = model.Status(status)
	if err := json.Unmarshal(payload, &sub.Payload); err != nil {
		return sub, eris.Wrapf(err, "submission: decode payload %s", sub.ID)
	}
	return sub, nil
}

// Load reads one submission inside the caller's unit of work. lock takes the
// row lock that serializes review and promotion of the same submission.
func Load(ctx context.Context, q db.Querier, c schema.Capability, id string, lock bool) (model.Submission, error) {
	sql := fmt.Sprintf("SELECT %s FROM submissions WHERE id = $1", strings.Join(Columns(c), ", "))
	if lock {
		sql += " FOR UPDATE"
	}
	sub, err := scan(q.QueryRow(ctx, sql, id), c)
	if eris.Is(err, pgx.ErrNoRows) {
		return sub, model.NotFound("submission", id)
	}
	if err != nil {
		return sub, eris.Wrapf(err, "submission: load %s", id)
	}
	return sub, nil
}

// Create inserts a pending submission and its media mapping rows. Replaying
// an id that already exists changes nothing.
func (s *Store) Create(ctx context.Context, sub model.Submission, items []model.Media) error {
	payload, err := json.Marshal(sub.Payload)
	if err != nil {
		return eris.Wrap(err, "submission: encode payload")
	}
	err = db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		c, err := s.negotiator.Negotiate(ctx, tx)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO submissions (id, kind, status, payload, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $5)
			 ON CONFLICT (id) DO NOTHING`,
			sub.ID, string(sub.Kind), string(model.StatusPending), payload, sub.CreatedAt,
		); err != nil {
			return eris.Wrapf(err, "submission: insert %s", sub.ID)
		}
		return media.InsertMappings(ctx, tx, c, items)
	})
	return resilience.Classify(err)
}

// Get reads one submission.
func (s *Store) Get(ctx context.Context, id string) (model.Submission, error) {
	c, err := s.negotiator.Negotiate(ctx, s.pool)
	if err != nil {
		return model.Submission{}, resilience.Classify(err)
	}
	sub, err := Load(ctx, s.pool, c, id, false)
	return sub, resilience.Classify(err)
}

// List returns submissions newest first.
func (s *Store) List(ctx context.Context, f model.SubmissionFilter) ([]model.Submission, error) {
	c, err := s.negotiator.Negotiate(ctx, s.pool)
	if err != nil {
		return nil, resilience.Classify(err)
	}

	var (
		where []string
		args  []any
	)
	if f.Status != "" {
		if !f.Status.Valid() {
			return nil, model.FieldError(model.CodeInvalidPayload, "status", "unknown status %q", f.Status)
		}
		args = append(args, string(f.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if f.Kind != "" {
		if !f.Kind.Valid() {
			return nil, model.FieldError(model.CodeInvalidPayload, "kind", "unknown kind %q", f.Kind)
		}
		args = append(args, string(f.Kind))
		where = append(where, fmt.Sprintf("kind = $%d", len(args)))
	}
	limit := f.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}

	sql := fmt.Sprintf("SELECT %s FROM submissions", strings.Join(Columns(c), ", "))
	if len(where) > 0 {
		sql += " WHERE " + strings.Join(where, " AND ")
	}
	args = append(args, limit, offset)
	sql += fmt.Sprintf(" ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, resilience.Classify(eris.Wrap(err, "submission: list"))
	}
	defer rows.Close()

	out := []model.Submission{}
	for rows.Next() {
		sub, err := scan(rows, c)
		if err != nil {
			return nil, resilience.Classify(eris.Wrap(err, "submission: scan"))
		}
		out = append(out, sub)
	}
	return out, resilience.Classify(eris.Wrap(rows.Err(), "submission: iterate"))
}

// Detail reads a submission with its media and history.
func (s *Store) Detail(ctx context.Context, id string) (model.SubmissionDetail, error) {
	c, err := s.negotiator.Negotiate(ctx, s.pool)
	if err != nil {
		return model.SubmissionDetail{}, resilience.Classify(err)
	}
	sub, err := Load(ctx, s.pool, c, id, false)
	if err != nil {
		return model.SubmissionDetail{}, resilience.Classify(err)
	}

	d := model.SubmissionDetail{Submission: sub}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if s.media != nil {
			d.Media, err = s.media.Submission(gctx, s.pool, c, id)
		} else {
			d.Media, err = media.ListMappings(gctx, s.pool, c, id)
		}
		return err
	})
	g.Go(func() error {
		var err error
		d.History, err = audit.List(gctx, s.pool, c, id)
		return err
	})
	if err := g.Wait(); err != nil {
		return model.SubmissionDetail{}, resilience.Classify(err)
	}
	if d.Media == nil {
		d.Media = []model.Media{}
	}
	return d, nil
}

// LinkPlace records the place a submission was promoted into. The link is
// set once, and only on an approved submission.
func LinkPlace(ctx context.Context, q db.Querier, id, placeID string, at time.Time) error {
	tag, err := q.Exec(ctx,
		`UPDATE submissions SET linked_place_id = $2, updated_at = $3
		 WHERE id = $1 AND status = 'approved' AND linked_place_id IS NULL`,
		id, placeID, at,
	)
	if err != nil {
		return eris.Wrapf(err, "submission: link %s", id)
	}
	if tag.RowsAffected() != 1 {
		return model.Conflict(model.StatusApproved, "submission %s is already linked or not approved", id)
	}
	return nil
}

// Adopted reports whether a submission backs a published place. Unknown ids
// are not adopted.
func (s *Store) Adopted(ctx context.Context, id string) (bool, error) {
	var (
		status string
		linked *string
	)
	err := s.pool.QueryRow(ctx,
		`SELECT status, linked_place_id FROM submissions WHERE id = $1`, id,
	).Scan(&status, &linked)
	if eris.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, eris.Wrapf(err, "submission: adoption %s", id)
	}
	sub := model.Submission{Status: model.Status(status), LinkedPlaceID: linked}
	return sub.Adopted(), nil
}
