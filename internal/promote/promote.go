// Package promote turns an approved submission into a published place in a
// single transaction.
package promote

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/venue-registry/internal/audit"
	"github.com/sells-group/venue-registry/internal/db"
	"github.com/sells-group/venue-registry/internal/media"
	"github.com/sells-group/venue-registry/internal/metrics"
	"github.com/sells-group/venue-registry/internal/model"
	"github.com/sells-group/venue-registry/internal/place"
	"github.com/sells-group/venue-registry/internal/resilience"
	"github.com/sells-group/venue-registry/internal/schema"
	"github.com/sells-group/venue-registry/internal/submission"
)

// Request asks for one submission to be promoted.
type Request struct {
	SubmissionID string
	Actor        string
	// Gallery selects which gallery media to publish, in display order.
	// nil publishes every gallery item the submission still has.
	Gallery []string
}

// Result reports what a promotion did.
type Result struct {
	PlaceID string `json:"placeId"`
	// Created is true when the place row is new.
	Created bool `json:"created"`
	// AlreadyPromoted is true when the submission was linked before this
	// call and nothing was written.
	AlreadyPromoted bool `json:"alreadyPromoted"`
	Media           int  `json:"mediaCount"`
	Payments        int  `json:"paymentsAdded"`
}

// Promoter runs promotions.
type Promoter struct {
	pool       db.Pool
	negotiator *schema.Negotiator
	media      *media.Manager
	metrics    *metrics.Metrics
	now        func() time.Time
	newID      func() string
}

// New creates a Promoter.
func New(pool db.Pool, negotiator *schema.Negotiator, mm *media.Manager, m *metrics.Metrics) *Promoter {
	return &Promoter{
		pool:       pool,
		negotiator: negotiator,
		media:      mm,
		metrics:    m,
		now:        time.Now,
		newID:      func() string { return uuid.NewString() },
	}
}

// Promote publishes an approved owner or community submission. Promoting an
// already linked submission returns its place without writing. Any failure
// rolls back every write.
func (p *Promoter) Promote(ctx context.Context, req Request) (Result, error) {
	log := zap.L().With(
		zap.String("component", "promote"),
		zap.String("submission_id", req.SubmissionID),
	)

	var res Result
	err := db.WithTx(ctx, p.pool, func(tx pgx.Tx) error {
		c, err := p.negotiator.Negotiate(ctx, tx)
		if err != nil {
			return err
		}
		sub, err := submission.Load(ctx, tx, c, req.SubmissionID, true)
		if err != nil {
			return err
		}
		if !sub.Kind.Promotable() {
			return model.Conflict(sub.Status, "%s submissions cannot be promoted", sub.Kind)
		}
		if sub.Status != model.StatusApproved {
			return model.Conflict(sub.Status, "submission is %s, not approved", sub.Status)
		}

		if sub.LinkedPlaceID != nil && *sub.LinkedPlaceID != "" {
			res = Result{PlaceID: *sub.LinkedPlaceID, AlreadyPromoted: true}
			return p.checkSelection(ctx, tx, c, res.PlaceID, req.Gallery)
		}

		res, err = p.publish(ctx, tx, c, sub, req, log)
		return err
	})
	if err != nil {
		err = resilience.Classify(err)
		p.metrics.Promotion(string(model.CodeOf(err)))
		log.Warn("promotion failed", zap.Error(err))
		return Result{}, err
	}

	switch {
	case res.AlreadyPromoted:
		p.metrics.Promotion("noop")
	case res.Created:
		p.metrics.Promotion("created")
	default:
		p.metrics.Promotion("updated")
	}
	log.Info("promotion complete",
		zap.String("place_id", res.PlaceID),
		zap.Bool("created", res.Created),
		zap.Bool("already_promoted", res.AlreadyPromoted),
		zap.Int("media", res.Media),
	)
	return res, nil
}

func (p *Promoter) publish(ctx context.Context, tx pgx.Tx, c schema.Capability, sub model.Submission, req Request, log *zap.Logger) (Result, error) {
	at := p.now().UTC()

	placeID := sub.Payload.TargetPlaceID
	if placeID != "" {
		if err := lockPlace(ctx, tx, placeID); err != nil {
			return Result{}, err
		}
	} else {
		placeID = p.newID()
	}

	level := sub.Kind.VerificationLevel()
	pl := model.PlaceFromPayload(placeID, sub.Payload, level)
	created, err := place.Upsert(ctx, tx, c, pl, at)
	if err != nil {
		return Result{}, err
	}

	sid := sub.ID
	if err := place.UpsertVerification(ctx, tx, c, placeID, level, &sid, at); err != nil {
		return Result{}, err
	}

	added, err := place.InsertPayments(ctx, tx, c, placeID, model.NormalizeAssets(sub.Payload.AcceptedAssets), at)
	if err != nil {
		return Result{}, err
	}

	gallery, err := p.resolveGallery(ctx, tx, c, sub.ID, req.Gallery, log)
	if err != nil {
		return Result{}, err
	}
	if err := media.ReplacePlaceMedia(ctx, tx, c, placeID, gallery); err != nil {
		return Result{}, err
	}

	if _, err := audit.Append(ctx, tx, c, model.HistoryEntry{
		SubmissionID: sub.ID,
		Actor:        req.Actor,
		Action:       model.ActionPromote,
		PlaceID:      &placeID,
		Meta: map[string]any{
			"from":         string(sub.Status),
			"to":           string(model.StatusApproved),
			"created":      created,
			"verification": string(level),
			"media_count":  len(gallery),
			"payments":     added,
		},
	}); err != nil {
		return Result{}, err
	}

	if err := submission.LinkPlace(ctx, tx, sub.ID, placeID, at); err != nil {
		return Result{}, err
	}
	return Result{PlaceID: placeID, Created: created, Media: len(gallery), Payments: added}, nil
}

// lockPlace takes the row lock on a place a submission targets, failing
// when it does not exist.
func lockPlace(ctx context.Context, q db.Querier, id string) error {
	var found string
	err := q.QueryRow(ctx, `SELECT id FROM places WHERE id = $1 FOR UPDATE`, id).Scan(&found)
	if eris.Is(err, pgx.ErrNoRows) {
		return model.NotFound("place", id)
	}
	return eris.Wrapf(err, "promote: lock place %s", id)
}

// resolveGallery picks the gallery media to publish. An explicit selection
// must name media the submission has and whose objects still exist; without
// one, items whose objects are gone are skipped.
func (p *Promoter) resolveGallery(ctx context.Context, q db.Querier, c schema.Capability, submissionID string, selection []string, log *zap.Logger) ([]model.Media, error) {
	all, err := p.media.Gallery(ctx, q, c, submissionID)
	if err != nil {
		return nil, err
	}

	if selection == nil {
		out := make([]model.Media, 0, len(all))
		for _, it := range all {
			ok, err := p.media.Exists(ctx, it)
			if err != nil {
				return nil, err
			}
			if !ok {
				log.Warn("gallery object missing, skipped", zap.String("media_id", it.ID))
				continue
			}
			out = append(out, it)
		}
		return out, nil
	}

	byID := make(map[string]model.Media, len(all))
	for _, it := range all {
		byID[it.ID] = it
	}
	out := make([]model.Media, 0, len(selection))
	seen := make(map[string]bool, len(selection))
	for _, id := range selection {
		if seen[id] {
			continue
		}
		seen[id] = true
		it, ok := byID[id]
		if !ok {
			return nil, model.Conflict(model.StatusApproved, "selected media %s is not a gallery item of this submission", id)
		}
		exists, err := p.media.Exists(ctx, it)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, model.Conflict(model.StatusApproved, "selected media %s no longer exists", id)
		}
		out = append(out, it)
	}
	return out, nil
}

// checkSelection compares an explicit selection on an already promoted
// submission with the place's current media.
func (p *Promoter) checkSelection(ctx context.Context, q db.Querier, c schema.Capability, placeID string, selection []string) error {
	if selection == nil || !c.PlaceMedia {
		return nil
	}
	current, err := media.PlaceMedia(ctx, q, c, placeID)
	if err != nil {
		return err
	}
	have := make([]string, len(current))
	for i, m := range current {
		have[i] = m.ID
	}
	want := dedupe(selection)
	sort.Strings(have)
	sort.Strings(want)
	if len(have) != len(want) {
		return model.Conflict(model.StatusApproved, "already promoted with a different media selection")
	}
	for i := range have {
		if have[i] != want[i] {
			return model.Conflict(model.StatusApproved, "already promoted with a different media selection")
		}
	}
	return nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
