package submission

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/venue-registry/internal/audit"
	"github.com/sells-group/venue-registry/internal/db"
	"github.com/sells-group/venue-registry/internal/model"
	"github.com/sells-group/venue-registry/internal/resilience"
	"github.com/sells-group/venue-registry/internal/schema"
)

// Review is one reviewer decision.
type Review struct {
	Actor  string
	Note   string
	Reason string
}

// Approve moves a pending submission to approved. Approving an approved
// submission succeeds without writing; approving a rejected one is CONFLICT.
func (s *Store) Approve(ctx context.Context, id string, r Review) (model.Submission, error) {
	return s.transition(ctx, id, model.ActionApprove, model.StatusApproved, r)
}

// Reject moves a pending submission to rejected. A reason is required to
// change state; rejecting a rejected submission succeeds without one.
func (s *Store) Reject(ctx context.Context, id string, r Review) (model.Submission, error) {
	return s.transition(ctx, id, model.ActionReject, model.StatusRejected, r)
}

func (s *Store) transition(ctx context.Context, id string, action model.Action, to model.Status, r Review) (model.Submission, error) {
	log := zap.L().With(
		zap.String("component", "submission.review"),
		zap.String("submission_id", id),
		zap.String("action", string(action)),
	)

	var (
		out     model.Submission
		changed bool
	)
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		c, err := s.negotiator.Negotiate(ctx, tx)
		if err != nil {
			return err
		}
		sub, err := Load(ctx, tx, c, id, true)
		if err != nil {
			return err
		}

		switch sub.Status {
		case to:
			out = sub
			return nil
		case model.StatusPending:
		default:
			return model.Conflict(sub.Status, "cannot %s a %s submission", action, sub.Status)
		}
		if to == model.StatusRejected && strings.TrimSpace(r.Reason) == "" {
			return model.FieldError(model.CodeInvalidPayload, "reason", "reject reason required")
		}

		at := s.now().UTC()
		if err := applyReview(ctx, tx, c, &sub, to, r, at); err != nil {
			return err
		}

		meta := map[string]any{"from": string(model.StatusPending), "to": string(to)}
		if r.Note != "" {
			meta["note"] = r.Note
		}
		if r.Reason != "" {
			meta["reason"] = r.Reason
		}
		if _, err := audit.Append(ctx, tx, c, model.HistoryEntry{
			SubmissionID: id,
			Actor:        r.Actor,
			Action:       action,
			Meta:         meta,
		}); err != nil {
			return err
		}
		out = sub
		changed = true
		return nil
	})
	if err != nil {
		err = resilience.Classify(err)
		s.metrics.Review(string(action), string(model.CodeOf(err)))
		return model.Submission{}, err
	}

	if changed {
		s.metrics.Review(string(action), "applied")
		log.Info("submission reviewed", zap.String("actor", r.Actor))
	} else {
		s.metrics.Review(string(action), "noop")
		log.Debug("review already applied")
	}
	return out, nil
}

// applyReview writes the status change and whatever review metadata the
// schema can hold. Without a reject_reason column the reason is kept in the
// note.
func applyReview(ctx context.Context, q db.Querier, c schema.Capability, sub *model.Submission, to model.Status, r Review, at time.Time) error {
	sets := []string{"status = $2", "updated_at = $3"}
	args := []any{sub.ID, string(to), at}
	add := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	note := r.Note
	if to == model.StatusRejected && !c.RejectReason {
		note = foldReason(r.Reason, r.Note)
	}

	sub.Status = to
	if c.ReviewColumns {
		actor, when := r.Actor, at
		add("reviewed_by", actor)
		add("reviewed_at", when)
		add("review_note", nilIfEmpty(note))
		sub.ReviewedBy, sub.ReviewedAt, sub.ReviewNote = &actor, &when, nilIfEmpty(note)
	}
	if c.RejectReason && to == model.StatusRejected {
		reason := r.Reason
		add("reject_reason", reason)
		sub.RejectReason = &reason
	}

	tag, err := q.Exec(ctx,
		fmt.Sprintf("UPDATE submissions SET %s WHERE id = $1 AND status = 'pending'", strings.Join(sets, ", ")),
		args...,
	)
	if err != nil {
		return eris.Wrapf(err, "submission: update status %s", sub.ID)
	}
	if tag.RowsAffected() != 1 {
		return model.Conflict(model.StatusPending, "submission %s changed during review", sub.ID)
	}
	return nil
}

func foldReason(reason, note string) string {
	if note == "" {
		return "Rejected: " + reason
	}
	return "Rejected: " + reason + "\n\n" + note
}

func nilIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
