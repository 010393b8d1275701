package revalidate

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/securewatch/securewatch/internal/session"
)

type fakeRefresher struct {
	authenticated atomic.Bool
	calls         atomic.Int32
	err           error
}

func (f *fakeRefresher) Snapshot() session.State {
	s := session.State{HasHydrated: true, IsAuthenticated: f.authenticated.Load()}
	if s.IsAuthenticated {
		s.User = &session.User{ID: "u-1"}
	}
	return s
}

func (f *fakeRefresher) GetCurrentUser(ctx context.Context) error {
	f.calls.Add(1)
	if errors.Is(f.err, &session.Error{Kind: session.SessionExpired}) {
		f.authenticated.Store(false)
	}
	return f.err
}

func TestParseSchedule(t *testing.T) {
	for _, expr := range []string{"*/15 * * * *", "0 * * * *", "@hourly", "@every 5m"} {
		_, err := ParseSchedule(expr)
		assert.NoError(t, err, expr)
	}

	_, err := ParseSchedule("every now and then")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid revalidation schedule")
}

func TestNew_DefaultSchedule(t *testing.T) {
	s, err := New(&fakeRefresher{}, "", zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, DefaultSchedule, s.expr)

	_, err = New(&fakeRefresher{}, "61 * * * *", zerolog.Nop())
	assert.Error(t, err)
}

func TestCheckAndRevalidate_FollowsSchedule(t *testing.T) {
	r := &fakeRefresher{}
	r.authenticated.Store(true)

	s, err := New(r, "0 * * * *", zerolog.Nop())
	require.NoError(t, err)

	now := time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	s.nextAt = s.schedule.Next(now)
	require.Equal(t, time.Date(2026, 3, 1, 11, 0, 0, 0, time.UTC), s.nextAt)

	assert.False(t, s.checkAndRevalidate(context.Background()))
	assert.Zero(t, r.calls.Load())

	now = now.Add(30 * time.Minute)
	assert.True(t, s.checkAndRevalidate(context.Background()))
	assert.Equal(t, int32(1), r.calls.Load())
	assert.Equal(t, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), s.nextAt)

	// same minute again is not due
	assert.False(t, s.checkAndRevalidate(context.Background()))
	assert.Equal(t, int32(1), r.calls.Load())
}

func TestCheckAndRevalidate_SkipsAnonymous(t *testing.T) {
	r := &fakeRefresher{}
	s, err := New(r, "@every 1m", zerolog.Nop())
	require.NoError(t, err)

	assert.False(t, s.checkAndRevalidate(context.Background()))
	assert.Zero(t, r.calls.Load())
	assert.False(t, s.nextAt.IsZero(), "schedule still advances")
}

func TestCheckAndRevalidate_ErrorsAdvanceSchedule(t *testing.T) {
	r := &fakeRefresher{err: &session.Error{Kind: session.NetworkFailure, Message: "down"}}
	r.authenticated.Store(true)

	s, err := New(r, "@every 1m", zerolog.Nop())
	require.NoError(t, err)
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	assert.True(t, s.checkAndRevalidate(context.Background()))
	assert.False(t, s.checkAndRevalidate(context.Background()))
	assert.Equal(t, int32(1), r.calls.Load())
}

func TestRun_StopsOnContextDone(t *testing.T) {
	r := &fakeRefresher{err: &session.Error{Kind: session.SessionExpired}}
	r.authenticated.Store(true)

	s, err := New(r, "@every 1s", zerolog.Nop())
	require.NoError(t, err)
	s.tick = 5 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool { return r.calls.Load() == 1 }, 3*time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return !r.authenticated.Load() }, time.Second, time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
	assert.Equal(t, int32(1), r.calls.Load(), "expired session is not revalidated again")
}
