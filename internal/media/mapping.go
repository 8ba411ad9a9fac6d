package media

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/venue-registry/internal/db"
	"github.com/sells-group/venue-registry/internal/model"
	"github.com/sells-group/venue-registry/internal/schema"
)

var mappingColumns = []string{"id", "submission_id", "kind", "key", "content_type", "size", "created_at"}

// InsertMappings records uploaded media. It is a no-op when the store has no
// submission_media table; keys stay derivable from ids.
func InsertMappings(ctx context.Context, q db.Querier, c schema.Capability, items []model.Media) error {
	if !c.SubmissionMedia || len(items) == 0 {
		return nil
	}
	sql, err := db.UpsertSQL(db.UpsertConfig{
		Table:        schema.TableSubmissionMedia,
		Columns:      mappingColumns,
		ConflictKeys: []string{"id"},
		DoNothing:    true,
	})
	if err != nil {
		return err
	}
	for _, m := range items {
		if _, err := q.Exec(ctx, sql,
			m.ID, m.SubmissionID, string(m.Kind), m.Key, m.ContentType, m.Size, m.CreatedAt,
		); err != nil {
			return eris.Wrapf(err, "media: insert mapping %s", m.ID)
		}
	}
	return nil
}

// ListMappings returns a submission's media in upload order.
func ListMappings(ctx context.Context, q db.Querier, c schema.Capability, submissionID string) ([]model.Media, error) {
	if !c.SubmissionMedia {
		return nil, nil
	}
	rows, err := q.Query(ctx,
		`SELECT id, submission_id, kind, key, content_type, size, created_at
		 FROM submission_media WHERE submission_id = $1
		 ORDER BY created_at, id`,
		submissionID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "media: list mappings %s", submissionID)
	}
	defer rows.Close()

	var out []model.Media
	for rows.Next() {
		var m model.Media
		var kind string
		if err := rows.Scan(&m.ID, &m.SubmissionID, &kind, &m.Key, &m.ContentType, &m.Size, &m.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "media: scan mapping")
		}
		m.Kind = model.MediaKind(kind)
		out = append(out, m)
	}
	return out, eris.Wrap(rows.Err(), "media: iterate mappings")
}

// GetMapping looks up one mapping row. ok is false when the row or the
// table is absent.
func GetMapping(ctx context.Context, q db.Querier, c schema.Capability, submissionID, mediaID string) (model.Media, bool, error) {
	if !c.SubmissionMedia {
		return model.Media{}, false, nil
	}
	var m model.Media
	var kind string
	err := q.QueryRow(ctx,
		`SELECT id, submission_id, kind, key, content_type, size, created_at
		 FROM submission_media WHERE submission_id = $1 AND id = $2`,
		submissionID, mediaID,
	).Scan(&m.ID, &m.SubmissionID, &kind, &m.Key, &m.ContentType, &m.Size, &m.CreatedAt)
	if eris.Is(err, pgx.ErrNoRows) {
		return model.Media{}, false, nil
	}
	if err != nil {
		return model.Media{}, false, eris.Wrapf(err, "media: get mapping %s", mediaID)
	}
	m.Kind = model.MediaKind(kind)
	return m, true, nil
}

// DeleteMapping removes a mapping row after its object is gone.
func DeleteMapping(ctx context.Context, q db.Querier, c schema.Capability, mediaID string) error {
	if !c.SubmissionMedia {
		return nil
	}
	_, err := q.Exec(ctx, `DELETE FROM submission_media WHERE id = $1`, mediaID)
	return eris.Wrapf(err, "media: delete mapping %s", mediaID)
}

// PlaceMedia returns a place's media in display order.
func PlaceMedia(ctx context.Context, q db.Querier, c schema.Capability, placeID string) ([]model.Media, error) {
	if !c.PlaceMedia {
		return nil, nil
	}
	sql := `SELECT pm.media_id, pm.key, '' AS content_type, 0::bigint AS size, pm.created_at
		FROM place_media pm WHERE pm.place_id = $1 ORDER BY pm.position, pm.media_id`
	if c.SubmissionMedia {
		sql = `SELECT pm.media_id, pm.key, COALESCE(sm.content_type, ''), COALESCE(sm.size, 0), pm.created_at
		FROM place_media pm LEFT JOIN submission_media sm ON sm.id = pm.media_id
		WHERE pm.place_id = $1 ORDER BY pm.position, pm.media_id`
	}
	rows, err := q.Query(ctx, sql, placeID)
	if err != nil {
		return nil, eris.Wrapf(err, "media: list place media %s", placeID)
	}
	defer rows.Close()

	var out []model.Media
	for rows.Next() {
		var m model.Media
		if err := rows.Scan(&m.ID, &m.Key, &m.ContentType, &m.Size, &m.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "media: scan place media")
		}
		m.Kind = model.MediaGallery
		if sid, _, _, ok := ParseKey(m.Key); ok {
			m.SubmissionID = sid
		}
		out = append(out, m)
	}
	return out, eris.Wrap(rows.Err(), "media: iterate place media")
}

// ReplacePlaceMedia makes items the place's exact media set, in order. Place
// rows reference the submission's object keys; nothing is copied.
func ReplacePlaceMedia(ctx context.Context, q db.Querier, c schema.Capability, placeID string, items []model.Media) error {
	if !c.PlaceMedia {
		return nil
	}
	if _, err := q.Exec(ctx, `DELETE FROM place_media WHERE place_id = $1`, placeID); err != nil {
		return eris.Wrapf(err, "media: clear place media %s", placeID)
	}
	now := time.Now().UTC()
	for i, m := range items {
		if _, err := q.Exec(ctx,
			`INSERT INTO place_media (place_id, media_id, key, position, created_at)
			 VALUES ($1, $2, $3, $4, $5)`,
			placeID, m.ID, m.Key, i, now,
		); err != nil {
			return eris.Wrapf(err, "media: insert place media %s/%s", placeID, m.ID)
		}
	}
	return nil
}
