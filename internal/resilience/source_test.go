package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/venue-registry/internal/model"
)

func TestDecide(t *testing.T) {
	tests := []struct {
		setting Setting
		outcome Outcome
		want    Decision
	}{
		{SettingJSON, OutcomeSuccess, Decision{Source: SourceSnapshot, Limited: true}},
		{SettingJSON, OutcomeNotConfigured, Decision{Source: SourceSnapshot, Limited: true}},
		{SettingDB, OutcomeSuccess, Decision{Source: SourcePrimary}},
		{SettingDB, OutcomeEmpty, Decision{Source: SourcePrimary}},
		{SettingDB, OutcomeUnavailable, Decision{Source: SourcePrimary, Fail: true}},
		{SettingDB, OutcomeNotConfigured, Decision{Source: SourcePrimary, Fail: true}},
		{SettingAuto, OutcomeSuccess, Decision{Source: SourcePrimary}},
		{SettingAuto, OutcomeEmpty, Decision{Source: SourcePrimary}},
		{SettingAuto, OutcomeUnavailable, Decision{Source: SourceSnapshot, Limited: true}},
		{SettingAuto, OutcomeNotConfigured, Decision{Source: SourceSnapshot, Limited: true}},
	}
	for _, tt := range tests {
		t.Run(string(tt.setting)+"/"+tt.outcome.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, Decide(tt.setting, tt.outcome))
		})
	}
}

func TestDecideWrite(t *testing.T) {
	assert.Equal(t, WriteCommitted, DecideWrite(SettingDB, OutcomeSuccess))
	assert.Equal(t, WriteFail, DecideWrite(SettingDB, OutcomeUnavailable))
	assert.Equal(t, WriteQueue, DecideWrite(SettingAuto, OutcomeUnavailable))
	assert.Equal(t, WriteQueue, DecideWrite(SettingJSON, OutcomeNotConfigured))
}

func TestParseSetting(t *testing.T) {
	s, err := ParseSetting("")
	require.NoError(t, err)
	assert.Equal(t, SettingAuto, s)

	s, err = ParseSetting("json")
	require.NoError(t, err)
	assert.Equal(t, SettingJSON, s)

	_, err = ParseSetting("sqlite")
	assert.Error(t, err)
}

func snapshot(v []string) func(context.Context) ([]string, error) {
	return func(context.Context) ([]string, error) { return v, nil }
}

func isEmpty(v []string) bool { return len(v) == 0 }

func TestRead_TimeoutFallsBackLimited(t *testing.T) {
	g := NewGuard(GuardConfig{Setting: SettingAuto, Timeout: 20 * time.Millisecond, Configured: true})

	release := make(chan struct{})
	defer close(release)
	slow := func(ctx context.Context) ([]string, error) {
		<-release
		return []string{"primary"}, nil
	}

	start := time.Now()
	res, err := Read(context.Background(), g, slow, snapshot([]string{"snap"}), isEmpty)
	require.NoError(t, err)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, []string{"snap"}, res.Data)
	assert.Equal(t, SourceSnapshot, res.Source)
	assert.True(t, res.Limited)
}

func TestRead_EmptyPrimaryIsAuthoritative(t *testing.T) {
	g := NewGuard(GuardConfig{Setting: SettingAuto, Timeout: time.Second, Configured: true})
	empty := func(context.Context) ([]string, error) { return []string{}, nil }

	res, err := Read(context.Background(), g, empty, snapshot([]string{"snap"}), isEmpty)
	require.NoError(t, err)
	assert.Empty(t, res.Data)
	assert.Equal(t, SourcePrimary, res.Source)
	assert.False(t, res.Limited)
}

func TestRead_NotFoundIsAuthoritative(t *testing.T) {
	g := NewGuard(GuardConfig{Setting: SettingAuto, Timeout: time.Second, Configured: true})
	missing := func(context.Context) (string, error) { return "", model.NotFound("place", "p1") }
	fallback := func(context.Context) (string, error) { return "snap", nil }

	res, err := Read(context.Background(), g, missing, fallback, nil)
	assert.Equal(t, model.CodeNotFound, model.CodeOf(err))
	assert.Equal(t, SourcePrimary, res.Source)
}

func TestRead_DBSettingSurfacesUnavailable(t *testing.T) {
	g := NewGuard(GuardConfig{Setting: SettingDB, Timeout: time.Second, Configured: true})
	failing := func(context.Context) ([]string, error) { return nil, errors.New("conn closed") }

	_, err := Read(context.Background(), g, failing, snapshot([]string{"snap"}), isEmpty)
	assert.Equal(t, model.CodeUnavailable, model.CodeOf(err))
}

func TestRead_JSONNeverTouchesPrimary(t *testing.T) {
	g := NewGuard(GuardConfig{Setting: SettingJSON, Configured: true})
	primary := func(context.Context) ([]string, error) {
		t.Fatal("primary must not be called")
		return nil, nil
	}

	res, err := Read(context.Background(), g, primary, snapshot([]string{"snap"}), isEmpty)
	require.NoError(t, err)
	assert.True(t, res.Limited)
}

func TestRead_UnconfiguredFallsBack(t *testing.T) {
	g := NewGuard(GuardConfig{Setting: SettingAuto})
	res, err := Read(context.Background(), g, nil, snapshot([]string{"snap"}), isEmpty)
	require.NoError(t, err)
	assert.Equal(t, SourceSnapshot, res.Source)
}

func TestAttempt_OpenBreakerFailsFast(t *testing.T) {
	b := NewBreaker(BreakerConfig{FailureThreshold: 1, ResetTimeout: time.Hour})
	g := NewGuard(GuardConfig{Setting: SettingAuto, Timeout: time.Second, Configured: true, Breaker: b})

	failing := func(context.Context) (int, error) { return 0, errors.New("conn closed") }
	_, outcome, _ := Attempt(context.Background(), g, failing, nil)
	require.Equal(t, OutcomeUnavailable, outcome)

	called := false
	_, outcome, err := Attempt(context.Background(), g, func(context.Context) (int, error) {
		called = true
		return 1, nil
	}, nil)
	assert.Equal(t, OutcomeUnavailable, outcome)
	assert.ErrorIs(t, err, ErrBreakerOpen)
	assert.False(t, called)
}

func TestAttempt_NotFoundDoesNotTripBreaker(t *testing.T) {
	b := NewBreaker(BreakerConfig{FailureThreshold: 1})
	g := NewGuard(GuardConfig{Configured: true, Breaker: b})

	_, outcome, _ := Attempt(context.Background(), g, func(context.Context) (int, error) {
		return 0, model.NotFound("place", "x")
	}, nil)
	assert.Equal(t, OutcomeEmpty, outcome)
	assert.Equal(t, BreakerClosed, b.State())
}

func TestWrite_QueuesUnderAuto(t *testing.T) {
	g := NewGuard(GuardConfig{Setting: SettingAuto, Timeout: 10 * time.Millisecond, Configured: true})
	release := make(chan struct{})
	defer close(release)

	action, err := Write(context.Background(), g, func(context.Context) error {
		<-release
		return nil
	})
	assert.Equal(t, WriteQueue, action)
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestWrite_FailsUnderDB(t *testing.T) {
	g := NewGuard(GuardConfig{Setting: SettingDB, Configured: true})
	action, err := Write(context.Background(), g, func(context.Context) error {
		return errors.New("conn closed")
	})
	assert.Equal(t, WriteFail, action)
	assert.Equal(t, model.CodeUnavailable, model.CodeOf(err))
}

func TestWrite_CommittedCarriesDomainError(t *testing.T) {
	g := NewGuard(GuardConfig{Setting: SettingAuto, Configured: true})
	action, err := Write(context.Background(), g, func(context.Context) error {
		return model.Conflict("", "duplicate")
	})
	assert.Equal(t, WriteCommitted, action)
	assert.Equal(t, model.CodeConflict, model.CodeOf(err))
}

func TestAttempt_AbandonedCallOutlivesCaller(t *testing.T) {
	g := NewGuard(GuardConfig{Setting: SettingAuto, Timeout: 10 * time.Millisecond, Configured: true})

	release := make(chan struct{})
	seen := make(chan error, 1)
	slow := func(ctx context.Context) (int, error) {
		<-release
		seen <- ctx.Err()
		return 1, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	_, outcome, err := Attempt(ctx, g, slow, nil)
	assert.Equal(t, OutcomeUnavailable, outcome)
	assert.ErrorIs(t, err, ErrTimeout)

	// The request finishes and its context is cancelled; the abandoned call
	// must keep running.
	cancel()
	close(release)

	select {
	case cerr := <-seen:
		assert.NoError(t, cerr)
	case <-time.After(time.Second):
		t.Fatal("abandoned call never finished")
	}
}

func TestNewGuard_AbandonBoundNeverBelowTimeout(t *testing.T) {
	g := NewGuard(GuardConfig{Timeout: time.Minute})
	assert.Equal(t, time.Minute, g.abandon)

	g = NewGuard(GuardConfig{})
	assert.Equal(t, 30*time.Second, g.abandon)
}

func incompatible() error {
	return model.Incompatible(errors.New("schema: places"), "database is missing required tables")
}

func TestDecide_FailedIsSurfaced(t *testing.T) {
	assert.Equal(t, Decision{Source: SourcePrimary, Fail: true}, Decide(SettingAuto, OutcomeFailed))
	assert.Equal(t, Decision{Source: SourcePrimary, Fail: true}, Decide(SettingDB, OutcomeFailed))
	assert.Equal(t, WriteFail, DecideWrite(SettingAuto, OutcomeFailed))
	assert.Equal(t, WriteFail, DecideWrite(SettingJSON, OutcomeFailed))
}

func TestRead_MissingTableIsNotDegraded(t *testing.T) {
	g := NewGuard(GuardConfig{Setting: SettingAuto, Timeout: time.Second, Configured: true})
	broken := func(context.Context) ([]string, error) { return nil, incompatible() }
	fallback := func(context.Context) ([]string, error) {
		t.Fatal("snapshot must not answer for a broken schema")
		return nil, nil
	}

	res, err := Read(context.Background(), g, broken, fallback, isEmpty)
	require.Error(t, err)
	assert.Equal(t, model.CodeSchemaIncompatible, model.CodeOf(err))
	assert.Equal(t, SourcePrimary, res.Source)
	assert.False(t, res.Limited)
}

func TestWrite_MissingTableIsNotQueued(t *testing.T) {
	b := NewBreaker(BreakerConfig{FailureThreshold: 1})
	g := NewGuard(GuardConfig{Setting: SettingAuto, Configured: true, Breaker: b})

	action, err := Write(context.Background(), g, func(context.Context) error { return incompatible() })
	assert.Equal(t, WriteFail, action)
	assert.Equal(t, model.CodeSchemaIncompatible, model.CodeOf(err))
	assert.Equal(t, BreakerClosed, b.State())
}
