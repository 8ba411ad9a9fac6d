// Package audit appends and reads the immutable per-submission history.
// Entries are never updated or deleted; the table's trigger enforces the same.
package audit

import (
	"context"
	"encoding/json"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/venue-registry/internal/db"
	"github.com/sells-group/venue-registry/internal/model"
	"github.com/sells-group/venue-registry/internal/schema"
)

// Append records e inside the caller's unit of work and returns it with its
// id and timestamp. On a database without the history table the entry is
// logged and dropped.
func Append(ctx context.Context, q db.Querier, c schema.Capability, e model.HistoryEntry) (model.HistoryEntry, error) {
	if !c.History {
		zap.L().Warn("audit: history table missing, entry not persisted",
			zap.String("submission_id", e.SubmissionID),
			zap.String("action", string(e.Action)),
			zap.String("actor", e.Actor),
		)
		return e, nil
	}

	meta := e.Meta
	if meta == nil {
		meta = map[string]any{}
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		return e, eris.Wrap(err, "audit: encode meta")
	}

	err = q.QueryRow(ctx,
		`INSERT INTO submission_history (submission_id, actor, action, place_id, meta)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at`,
		e.SubmissionID, e.Actor, string(e.Action), e.PlaceID, raw,
	).Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		return e, eris.Wrapf(err, "audit: append %s %s", e.Action, e.SubmissionID)
	}
	return e, nil
}

// List returns a submission's history oldest first.
func List(ctx context.Context, q db.Querier, c schema.Capability, submissionID string) ([]model.HistoryEntry, error) {
	if !c.History {
		return []model.HistoryEntry{}, nil
	}
	rows, err := q.Query(ctx,
		`SELECT id, submission_id, actor, action, place_id, meta, created_at
		 FROM submission_history
		 WHERE submission_id = $1
		 ORDER BY created_at, id`,
		submissionID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "audit: list %s", submissionID)
	}
	defer rows.Close()

	out := []model.HistoryEntry{}
	for rows.Next() {
		var (
			e      model.HistoryEntry
			action string
			raw    []byte
		)
		if err := rows.Scan(&e.ID, &e.SubmissionID, &e.Actor, &action, &e.PlaceID, &raw, &e.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "audit: scan entry")
		}
		e.Action = model.Action(action)
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &e.Meta); err != nil {
				return nil, eris.Wrapf(err, "audit: decode meta for entry %d", e.ID)
			}
		}
		out = append(out, e)
	}
	return out, eris.Wrap(rows.Err(), "audit: iterate entries")
}
