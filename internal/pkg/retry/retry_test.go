package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recordSleeps(waits *[]time.Duration) func(context.Context, time.Duration) error {
	return func(_ context.Context, d time.Duration) error {
		*waits = append(*waits, d)
		return nil
	}
}

func TestDoSucceedsAfterFailures(t *testing.T) {
	var waits []time.Duration
	p := Policy{Name: "stats", Attempts: 3, Delay: 2 * time.Second, Sleep: recordSleeps(&waits)}

	calls := 0
	res := p.Do(context.Background(), func(ctx context.Context, attempt int) error {
		calls++
		if attempt < 3 {
			return errors.New("not ready")
		}
		return nil
	})

	require.True(t, res.OK())
	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{2 * time.Second, 2 * time.Second}, waits, "delay must be fixed")
}

func TestDoExhausted(t *testing.T) {
	var waits []time.Duration
	p := Policy{Attempts: 2, Delay: time.Second, Sleep: recordSleeps(&waits)}
	boom := errors.New("boom")

	res := p.Do(context.Background(), func(context.Context, int) error { return boom })

	assert.ErrorIs(t, res.Err, boom)
	assert.Equal(t, 2, res.Attempts)
	assert.Len(t, waits, 1)
}

func TestDoStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := Policy{Attempts: 5, Delay: time.Hour}

	res := p.Do(ctx, func(context.Context, int) error {
		cancel()
		return errors.New("fail")
	})
	assert.Equal(t, 1, res.Attempts)
	assert.Error(t, res.Err)
}

func TestZeroAttemptsRunsOnce(t *testing.T) {
	calls := 0
	res := Policy{}.Do(context.Background(), func(context.Context, int) error { calls++; return nil })
	assert.True(t, res.OK())
	assert.Equal(t, 1, calls)
}

func TestValue(t *testing.T) {
	v, res := Value(context.Background(), Policy{Attempts: 2}, func(_ context.Context, attempt int) (string, error) {
		if attempt == 1 {
			return "", errors.New("flaky")
		}
		return "ok", nil
	})
	require.True(t, res.OK())
	assert.Equal(t, "ok", v)
}
