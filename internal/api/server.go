// Package api exposes intake, review, promotion, media and place reads over
// HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/sells-group/venue-registry/internal/intake"
	"github.com/sells-group/venue-registry/internal/media"
	"github.com/sells-group/venue-registry/internal/metrics"
	"github.com/sells-group/venue-registry/internal/model"
	"github.com/sells-group/venue-registry/internal/promote"
	"github.com/sells-group/venue-registry/internal/resilience"
	"github.com/sells-group/venue-registry/internal/submission"
)

// Intake accepts submissions.
type Intake interface {
	Submit(ctx context.Context, p model.Payload, files map[string][]intake.File) (intake.Result, error)
}

// Reviews lists and transitions submissions.
type Reviews interface {
	List(ctx context.Context, f model.SubmissionFilter) ([]model.Submission, error)
	Detail(ctx context.Context, id string) (model.SubmissionDetail, error)
	Approve(ctx context.Context, id string, r submission.Review) (model.Submission, error)
	Reject(ctx context.Context, id string, r submission.Review) (model.Submission, error)
}

// Promoter publishes approved submissions.
type Promoter interface {
	Promote(ctx context.Context, req promote.Request) (promote.Result, error)
}

// Places answers place reads.
type Places interface {
	Get(ctx context.Context, id string) (resilience.Result[model.Place], error)
	List(ctx context.Context, f model.PlaceFilter) (resilience.Result[[]model.Place], error)
}

// MediaOpener serves stored media.
type MediaOpener interface {
	Open(ctx context.Context, submissionID string, kind model.MediaKind, mediaID string, admin bool) (*media.Object, error)
}

// Config tunes the HTTP surface.
type Config struct {
	// AdminTokens maps actor name to bearer token.
	AdminTokens     map[string]string
	CORSOrigins     []string
	IntakePerMinute int
	MaxUploadBytes  int64
}

// Deps are the services the router dispatches to. A nil service leaves its
// routes unmounted.
type Deps struct {
	Intake   Intake
	Reviews  Reviews
	Promoter Promoter
	Places   Places
	Media    MediaOpener
	Metrics  *metrics.Metrics
}

type server struct {
	Deps
	cfg Config
}

// NewRouter builds the HTTP handler.
func NewRouter(cfg Config, d Deps) http.Handler {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 32 << 20
	}
	s := &server{Deps: d, cfg: cfg}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics.Handler())
	}

	r.Route("/v1", func(r chi.Router) {
		if d.Intake != nil {
			limiter := newIPLimiter(cfg.IntakePerMinute, 10*time.Minute)
			r.With(limiter.middleware).Post("/submissions", s.submit)
		}
		if d.Media != nil {
			r.Get("/media/{submissionID}/{mediaID}", s.publicMedia)
		}
		if d.Places != nil {
			r.Get("/places", s.listPlaces)
			r.Get("/places/{placeID}", s.getPlace)
		}

		r.Route("/admin", func(r chi.Router) {
			r.Use(adminAuth(cfg.AdminTokens))
			if d.Reviews != nil {
				r.Get("/submissions", s.listSubmissions)
				r.Get("/submissions/{submissionID}", s.getSubmission)
				r.Post("/submissions/{submissionID}/approve", s.approve)
				r.Post("/submissions/{submissionID}/reject", s.reject)
			}
			if d.Promoter != nil {
				r.Post("/submissions/{submissionID}/promote", s.promote)
			}
			if d.Media != nil {
				r.Get("/media/{submissionID}/{kind}/{mediaID}", s.adminMedia)
			}
		})
	})
	return r
}
