package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/sells-group/venue-registry/internal/model"
)

type errorBody struct {
	Code          model.ErrorCode `json:"code"`
	Message       string          `json:"message"`
	Field         string          `json:"field,omitempty"`
	CurrentStatus model.Status    `json:"currentStatus,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Debug("api: write response", zap.Error(err))
	}
}

// statusFor maps an error code to its HTTP status.
func statusFor(code model.ErrorCode) int {
	switch {
	case code == model.CodeFileTooLarge:
		return http.StatusRequestEntityTooLarge
	case code.Validation():
		return http.StatusBadRequest
	case code == model.CodeNotFound:
		return http.StatusNotFound
	case code == model.CodeConflict:
		return http.StatusConflict
	case code == model.CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var tooBig *http.MaxBytesError
	if errors.As(err, &tooBig) {
		err = model.Errorf(model.CodeFileTooLarge, "request body exceeds %d bytes", tooBig.Limit)
	}

	e, ok := model.AsError(err)
	if !ok {
		zap.L().Error("api: unclassified error",
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err),
		)
		writeJSON(w, http.StatusInternalServerError, map[string]errorBody{
			"error": {Code: "INTERNAL", Message: "internal error"},
		})
		return
	}
	writeJSON(w, statusFor(e.Code), map[string]errorBody{
		"error": {Code: e.Code, Message: e.Message, Field: e.Field, CurrentStatus: e.Current},
	})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
