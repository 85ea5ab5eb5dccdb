package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var errBoom = errors.New("boom")

func testConfig() Config {
	return Config{
		MaxHalfOpen:      1,
		Interval:         time.Minute,
		Cooldown:         50 * time.Millisecond,
		FailureThreshold: 3,
		SuccessThreshold: 2,
	}
}

func fail() error    { return errBoom }
func succeed() error { return nil }

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	b := New("test", testConfig(), zap.NewNop())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		assert.Equal(t, errBoom, b.Execute(ctx, fail))
	}
	assert.Equal(t, StateOpen, b.State())

	// Open circuit rejects without invoking fn.
	called := false
	err := b.Execute(ctx, func() error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)
}

func TestBreakerSuccessResetsFailureStreak(t *testing.T) {
	b := New("test", testConfig(), zap.NewNop())
	ctx := context.Background()

	require.Error(t, b.Execute(ctx, fail))
	require.Error(t, b.Execute(ctx, fail))
	require.NoError(t, b.Execute(ctx, succeed))
	require.Error(t, b.Execute(ctx, fail))
	require.Error(t, b.Execute(ctx, fail))

	assert.Equal(t, StateClosed, b.State())
}

func TestBreakerHalfOpenProbeAndRecovery(t *testing.T) {
	b := New("test", testConfig(), zap.NewNop())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.Error(t, b.Execute(ctx, fail))
	}
	require.Equal(t, StateOpen, b.State())

	time.Sleep(60 * time.Millisecond)
	require.Equal(t, StateHalfOpen, b.State())

	// Two probe successes close the circuit.
	require.NoError(t, b.Execute(ctx, succeed))
	require.NoError(t, b.Execute(ctx, succeed))
	assert.Equal(t, StateClosed, b.State())
}

func TestBreakerHalfOpenProbeBudgetIsInFlight(t *testing.T) {
	b := New("test", testConfig(), zap.NewNop())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.Error(t, b.Execute(ctx, fail))
	}
	time.Sleep(60 * time.Millisecond)
	require.Equal(t, StateHalfOpen, b.State())

	// A second probe while one is still in flight is rejected.
	started := make(chan struct{})
	release := make(chan struct{})
	inner := make(chan error, 1)
	go func() {
		inner <- b.Execute(ctx, func() error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started
	assert.ErrorIs(t, b.Execute(ctx, succeed), ErrTooManyRequests)

	// Once it settles, the slot frees up for the next sequential probe.
	close(release)
	require.NoError(t, <-inner)
	require.Equal(t, StateHalfOpen, b.State())
	require.NoError(t, b.Execute(ctx, succeed))
	assert.Equal(t, StateClosed, b.State())
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	b := New("test", testConfig(), zap.NewNop())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.Error(t, b.Execute(ctx, fail))
	}
	time.Sleep(60 * time.Millisecond)
	require.Equal(t, StateHalfOpen, b.State())

	require.Error(t, b.Execute(ctx, fail))
	assert.Equal(t, StateOpen, b.State())
}

func TestBreakerClassifierSkipsNonFailures(t *testing.T) {
	b := New("test", testConfig(), zap.NewNop())
	ctx := context.Background()

	notCounted := func(error) bool { return false }
	for i := 0; i < 10; i++ {
		assert.Equal(t, errBoom, b.ExecuteClassified(ctx, fail, notCounted))
	}
	assert.Equal(t, StateClosed, b.State())
}
