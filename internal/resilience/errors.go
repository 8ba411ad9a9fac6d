package resilience

import (
	"context"
	"errors"
	"net"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/sells-group/venue-registry/internal/model"
)

// ErrTimeout is reported when a primary-store call loses the timeout race.
var ErrTimeout = errors.New("resilience: primary store timed out")

// SQLSTATE codes that signal a constraint or state conflict.
var conflictStates = map[string]bool{
	"23505": true, // unique_violation
	"23514": true, // check_violation
	"23503": true, // foreign_key_violation
	"40001": true, // serialization_failure
	"40P01": true, // deadlock_detected
}

// IsTransient reports whether err means the primary store could not answer:
// timeouts, refused or reset connections, or server-side resource errors.
func IsTransient(err error) bool {
	if err == nil || model.CodeOf(err).Fatal() {
		return false
	}
	if errors.Is(err, ErrTimeout) || errors.Is(err, ErrBreakerOpen) ||
		errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case strings.HasPrefix(pgErr.Code, "08"), // connection_exception
			strings.HasPrefix(pgErr.Code, "53"), // insufficient_resources
			strings.HasPrefix(pgErr.Code, "57P"): // operator intervention
			return true
		}
		return false
	}
	if pgconn.Timeout(err) || pgconn.SafeToRetry(err) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, p := range []string{
		"connection reset by peer",
		"broken pipe",
		"connection refused",
		"no such host",
		"i/o timeout",
		"failed to connect",
		"closed pool",
		"conn closed",
	} {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// IsConflict reports whether err is a Postgres constraint or serialization
// failure.
func IsConflict(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && conflictStates[pgErr.Code]
}

// Classify maps an error from a transactional store call onto the domain
// taxonomy. Domain errors pass through unchanged; constraint failures become
// CONFLICT; anything else is PRIMARY_STORE_UNAVAILABLE.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := model.AsError(err); ok {
		return err
	}
	if IsConflict(err) {
		return &model.Error{Code: model.CodeConflict, Message: "concurrent change detected", Err: err}
	}
	return model.Unavailable(err, "primary store unavailable")
}
