package resilience

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/venue-registry/internal/model"
)

// Setting selects where reads come from and how writes degrade.
type Setting string

const (
	// SettingAuto tries the primary store and degrades on unavailability.
	SettingAuto Setting = "auto"
	// SettingDB requires the primary store and never degrades.
	SettingDB Setting = "db"
	// SettingJSON serves reads from the snapshot.
	SettingJSON Setting = "json"
)

// ParseSetting validates a configured setting. Empty means auto.
func ParseSetting(s string) (Setting, error) {
	switch Setting(s) {
	case "":
		return SettingAuto, nil
	case SettingAuto, SettingDB, SettingJSON:
		return Setting(s), nil
	}
	return "", eris.Errorf("resilience: unknown data source setting %q", s)
}

// Outcome is the explicit result of one primary-store attempt.
type Outcome int

const (
	// OutcomeSuccess is a non-empty authoritative answer.
	OutcomeSuccess Outcome = iota
	// OutcomeEmpty is an authoritative answer with nothing in it.
	OutcomeEmpty
	// OutcomeUnavailable covers timeouts, errors and an open breaker.
	OutcomeUnavailable
	// OutcomeNotConfigured means no primary store exists at all.
	OutcomeNotConfigured
	// OutcomeFailed is a reachable store that cannot serve the engine, such
	// as one missing a required table. It is surfaced, never degraded.
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeEmpty:
		return "empty"
	case OutcomeUnavailable:
		return "unavailable"
	case OutcomeNotConfigured:
		return "not_configured"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Source names where a response came from.
type Source string

const (
	SourcePrimary  Source = "db"
	SourceSnapshot Source = "json"
)

// Decision is how a read is answered.
type Decision struct {
	Source  Source
	Limited bool
	// Fail means the caller must surface the primary error:
	// PRIMARY_STORE_UNAVAILABLE, or the fatal error itself.
	Fail bool
}

// Decide maps a setting and an attempt outcome onto a read decision. It is
// the only place read degradation is decided.
func Decide(setting Setting, outcome Outcome) Decision {
	if outcome == OutcomeFailed && setting != SettingJSON {
		return Decision{Source: SourcePrimary, Fail: true}
	}
	switch setting {
	case SettingJSON:
		return Decision{Source: SourceSnapshot, Limited: true}
	case SettingDB:
		if outcome == OutcomeSuccess || outcome == OutcomeEmpty {
			return Decision{Source: SourcePrimary}
		}
		return Decision{Source: SourcePrimary, Fail: true}
	default:
		if outcome == OutcomeSuccess || outcome == OutcomeEmpty {
			return Decision{Source: SourcePrimary}
		}
		return Decision{Source: SourceSnapshot, Limited: true}
	}
}

// WriteAction is how an intake write is handled.
type WriteAction int

const (
	// WriteCommitted means the primary store accepted the write.
	WriteCommitted WriteAction = iota
	// WriteQueue means the write goes to the durable local queue.
	WriteQueue
	// WriteFail means the caller must surface the primary error.
	WriteFail
)

// DecideWrite maps a setting and a write outcome onto a write action. Writes
// always try the primary store when one is configured; only db refuses to
// queue.
func DecideWrite(setting Setting, outcome Outcome) WriteAction {
	if outcome == OutcomeSuccess || outcome == OutcomeEmpty {
		return WriteCommitted
	}
	if setting == SettingDB || outcome == OutcomeFailed {
		return WriteFail
	}
	return WriteQueue
}

// GuardConfig configures a Guard.
type GuardConfig struct {
	Setting Setting
	// Timeout bounds each primary attempt. Default: 2s.
	Timeout time.Duration
	// AbandonAfter bounds a call that lost the timeout race. Default: 30s.
	AbandonAfter time.Duration
	// Configured is false when no primary store exists.
	Configured bool
	Breaker    *Breaker
}

// Guard wraps primary-store calls with the timeout race and breaker and
// turns each call into an Outcome.
type Guard struct {
	setting    Setting
	timeout    time.Duration
	abandon    time.Duration
	configured bool
	breaker    *Breaker
}

// NewGuard creates a Guard.
func NewGuard(cfg GuardConfig) *Guard {
	if cfg.Setting == "" {
		cfg.Setting = SettingAuto
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Second
	}
	if cfg.AbandonAfter < cfg.Timeout {
		cfg.AbandonAfter = 30 * time.Second
		if cfg.AbandonAfter < cfg.Timeout {
			cfg.AbandonAfter = cfg.Timeout
		}
	}
	return &Guard{
		setting:    cfg.Setting,
		timeout:    cfg.Timeout,
		abandon:    cfg.AbandonAfter,
		configured: cfg.Configured,
		breaker:    cfg.Breaker,
	}
}

// Setting returns the configured data source setting.
func (g *Guard) Setting() Setting { return g.setting }

// Breaker returns the guard's breaker, which may be nil.
func (g *Guard) Breaker() *Breaker { return g.breaker }

type attemptResult[T any] struct {
	val T
	err error
}

// Attempt runs fn against the primary store, racing it against the guard's
// timeout. When the timeout wins the call is abandoned, not cancelled: fn
// runs on a context detached from the caller's cancellation and bounded only
// by AbandonAfter, and its result is dropped into a buffered channel nobody
// reads. A NOT_FOUND error is an authoritative empty answer.
func Attempt[T any](ctx context.Context, g *Guard, fn func(ctx context.Context) (T, error), empty func(T) bool) (T, Outcome, error) {
	var zero T
	if !g.configured {
		return zero, OutcomeNotConfigured, nil
	}
	if g.breaker != nil {
		if err := g.breaker.Allow(); err != nil {
			return zero, OutcomeUnavailable, err
		}
	}

	done := make(chan attemptResult[T], 1)
	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.abandon)
	go func() {
		defer cancel()
		val, err := fn(callCtx)
		done <- attemptResult[T]{val: val, err: err}
	}()

	timer := time.NewTimer(g.timeout)
	defer timer.Stop()

	var res attemptResult[T]
	select {
	case res = <-done:
	case <-timer.C:
		res.err = ErrTimeout
	case <-ctx.Done():
		res.err = ctx.Err()
	}

	outcome := outcomeOf(res, empty)
	if g.breaker != nil && ctx.Err() == nil {
		g.breaker.Record(outcome == OutcomeUnavailable)
	}
	if outcome == OutcomeUnavailable {
		zap.L().Warn("resilience: primary store unavailable", zap.Error(res.err))
	}
	return res.val, outcome, res.err
}

func outcomeOf[T any](res attemptResult[T], empty func(T) bool) Outcome {
	switch {
	case res.err == nil:
		if empty != nil && empty(res.val) {
			return OutcomeEmpty
		}
		return OutcomeSuccess
	case model.CodeOf(res.err).Fatal():
		return OutcomeFailed
	case model.IsCode(res.err, model.CodeNotFound):
		return OutcomeEmpty
	case model.CodeOf(res.err).Validation(), model.IsCode(res.err, model.CodeConflict):
		// Answered, just not with data; the store is reachable.
		return OutcomeEmpty
	default:
		return OutcomeUnavailable
	}
}

// Result is a read answer tagged with where it came from.
type Result[T any] struct {
	Data    T      `json:"data"`
	Source  Source `json:"source"`
	Limited bool   `json:"limited"`
}

// Read answers a read through Decide. primary may be nil when no store is
// configured; fallback serves the snapshot.
func Read[T any](ctx context.Context, g *Guard, primary, fallback func(ctx context.Context) (T, error), empty func(T) bool) (Result[T], error) {
	outcome := OutcomeNotConfigured
	var val T
	var err error
	if g.setting != SettingJSON && primary != nil {
		val, outcome, err = Attempt(ctx, g, primary, empty)
	}

	d := Decide(g.setting, outcome)
	switch {
	case d.Fail && outcome == OutcomeFailed:
		return Result[T]{Source: SourcePrimary}, err
	case d.Fail:
		return Result[T]{Source: SourcePrimary}, model.Unavailable(err, "primary store unavailable")
	case d.Source == SourcePrimary:
		return Result[T]{Data: val, Source: SourcePrimary}, err
	}

	data, ferr := fallback(ctx)
	if ferr != nil {
		return Result[T]{Source: SourceSnapshot, Limited: true}, ferr
	}
	return Result[T]{Data: data, Source: SourceSnapshot, Limited: d.Limited}, nil
}

// Write runs fn against the primary store and reports the write action.
// WriteCommitted carries fn's domain error, if any; WriteQueue and WriteFail
// carry the unavailability cause.
func Write(ctx context.Context, g *Guard, fn func(ctx context.Context) error) (WriteAction, error) {
	_, outcome, err := Attempt(ctx, g, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	}, nil)
	action := DecideWrite(g.setting, outcome)
	if outcome == OutcomeFailed {
		return action, err
	}
	if action == WriteFail {
		return action, model.Unavailable(err, "primary store unavailable")
	}
	return action, err
}
