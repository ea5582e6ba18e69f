package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var errFlaky = errors.New("flaky")

func always(error) bool { return true }

func fast(attempts int) Policy {
	return Policy{Attempts: attempts, Initial: time.Millisecond, Max: 2 * time.Millisecond, Multiplier: 2}
}

func TestDoSucceedsAfterRetries(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fast(3), always, func(context.Context, int) error {
		calls++
		if calls < 3 {
			return errFlaky
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoStopsAtAttemptBound(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fast(3), always, func(context.Context, int) error {
		calls++
		return errFlaky
	})
	assert.ErrorIs(t, err, errFlaky)
	assert.Equal(t, 3, calls)
}

func TestDoDoesNotRetryPermanentErrors(t *testing.T) {
	permanent := errors.New("permanent")
	calls := 0
	err := Do(context.Background(), fast(5), func(err error) bool { return errors.Is(err, errFlaky) }, func(context.Context, int) error {
		calls++
		return permanent
	})
	assert.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, calls)
}

func TestDoHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Do(ctx, Policy{Attempts: 10, Initial: time.Hour}, always, func(context.Context, int) error {
		calls++
		cancel()
		return errFlaky
	})
	assert.ErrorIs(t, err, errFlaky)
	assert.Equal(t, 1, calls)
}

func TestNextCapsAtMax(t *testing.T) {
	p := Policy{Initial: 10 * time.Millisecond, Max: 15 * time.Millisecond, Multiplier: 2}
	assert.Equal(t, 15*time.Millisecond, next(10*time.Millisecond, p))
	assert.Equal(t, 10*time.Millisecond, next(10*time.Millisecond, Policy{Multiplier: 0}))
}
