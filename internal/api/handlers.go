package api

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/sells-group/venue-registry/internal/intake"
	"github.com/sells-group/venue-registry/internal/model"
	"github.com/sells-group/venue-registry/internal/promote"
	"github.com/sells-group/venue-registry/internal/submission"
)

func (s *server) submit(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	p, files, err := intake.ParseRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := s.Intake.Submit(r.Context(), p, files)
	if err != nil {
		writeError(w, r, err)
		return
	}
	status := http.StatusCreated
	if res.Degraded {
		status = http.StatusAccepted
	}
	writeJSON(w, status, res)
}

func (s *server) listSubmissions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := model.SubmissionFilter{
		Status: model.Status(q.Get("status")),
		Kind:   model.Kind(q.Get("kind")),
	}
	if f.Status != "" && !f.Status.Valid() {
		writeError(w, r, model.FieldError(model.CodeInvalidPayload, "status", "unknown status %q", f.Status))
		return
	}
	if f.Kind != "" && !f.Kind.Valid() {
		writeError(w, r, model.FieldError(model.CodeInvalidPayload, "kind", "unknown kind %q", f.Kind))
		return
	}
	var err error
	if f.Limit, f.Offset, err = page(r); err != nil {
		writeError(w, r, err)
		return
	}

	subs, err := s.Reviews.List(r.Context(), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if subs == nil {
		subs = []model.Submission{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": subs})
}

func (s *server) getSubmission(w http.ResponseWriter, r *http.Request) {
	d, err := s.Reviews.Detail(r.Context(), chi.URLParam(r, "submissionID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

type reviewRequest struct {
	Note   string `json:"note"`
	Reason string `json:"reason"`
}

type promoteRequest struct {
	// Gallery is nil when the field is absent, publishing every gallery item.
	Gallery []string `json:"gallery"`
}

func (s *server) approve(w http.ResponseWriter, r *http.Request) {
	var req reviewRequest
	if err := decodeOptional(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	sub, err := s.Reviews.Approve(r.Context(), chi.URLParam(r, "submissionID"),
		submission.Review{Actor: actorFrom(r), Note: req.Note})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

func (s *server) reject(w http.ResponseWriter, r *http.Request) {
	var req reviewRequest
	if err := decodeOptional(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	sub, err := s.Reviews.Reject(r.Context(), chi.URLParam(r, "submissionID"),
		submission.Review{Actor: actorFrom(r), Note: req.Note, Reason: req.Reason})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

func (s *server) promote(w http.ResponseWriter, r *http.Request) {
	var req promoteRequest
	if err := decodeOptional(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := s.Promoter.Promote(r.Context(), promote.Request{
		SubmissionID: chi.URLParam(r, "submissionID"),
		Actor:        actorFrom(r),
		Gallery:      req.Gallery,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *server) publicMedia(w http.ResponseWriter, r *http.Request) {
	s.serveMedia(w, r, model.MediaGallery, false)
}

func (s *server) adminMedia(w http.ResponseWriter, r *http.Request) {
	s.serveMedia(w, r, model.MediaKind(chi.URLParam(r, "kind")), true)
}

func (s *server) serveMedia(w http.ResponseWriter, r *http.Request, kind model.MediaKind, admin bool) {
	obj, err := s.Media.Open(r.Context(),
		chi.URLParam(r, "submissionID"), kind, chi.URLParam(r, "mediaID"), admin)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer obj.Close() //nolint:errcheck

	if obj.ContentType != "" {
		w.Header().Set("Content-Type", obj.ContentType)
	}
	if obj.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(obj.Size, 10))
	}
	w.Header().Set("Cache-Control", obj.CacheControl)
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, obj); err != nil {
		zap.L().Debug("api: media copy interrupted", zap.Error(err))
	}
}

func (s *server) listPlaces(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := model.PlaceFilter{Country: q.Get("country"), City: q.Get("city")}
	var err error
	if f.Limit, f.Offset, err = page(r); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := s.Places.List(r.Context(), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *server) getPlace(w http.ResponseWriter, r *http.Request) {
	res, err := s.Places.Get(r.Context(), chi.URLParam(r, "placeID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// page reads limit and offset query parameters. Stores clamp the values.
func page(r *http.Request) (limit, offset int, err error) {
	q := r.URL.Query()
	if v := q.Get("limit"); v != "" {
		if limit, err = strconv.Atoi(v); err != nil || limit < 0 {
			return 0, 0, model.FieldError(model.CodeInvalidPayload, "limit", "limit must be a non-negative integer")
		}
	}
	if v := q.Get("offset"); v != "" {
		if offset, err = strconv.Atoi(v); err != nil || offset < 0 {
			return 0, 0, model.FieldError(model.CodeInvalidPayload, "offset", "offset must be a non-negative integer")
		}
	}
	return limit, offset, nil
}

// decodeOptional reads a small JSON body into v. An empty body leaves v
// untouched.
func decodeOptional(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 64<<10))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && err != io.EOF {
		return model.FieldError(model.CodeInvalidPayload, "", "invalid JSON body: %v", err)
	}
	return nil
}
