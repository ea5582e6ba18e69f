package retry

import (
	"context"
	"time"
)

// Policy bounds how often and how quickly an operation is re-attempted.
type Policy struct {
	Attempts   int
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
}

func DefaultPolicy(attempts int) Policy {
	return Policy{
		Attempts:   attempts,
		Initial:    20 * time.Millisecond,
		Max:        500 * time.Millisecond,
		Multiplier: 2,
	}
}

// Do calls fn until it succeeds, returns an error retryable rejects, the
// attempts are exhausted, or ctx is done. The last error from fn is returned.
func Do(ctx context.Context, p Policy, retryable func(error) bool, fn func(ctx context.Context, attempt int) error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}
	delay := p.Initial

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = fn(ctx, attempt)
		if err == nil || !retryable(err) || attempt == attempts {
			return err
		}

		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return err
		case <-t.C:
		}
		delay = next(delay, p)
	}
	return err
}

func next(d time.Duration, p Policy) time.Duration {
	m := p.Multiplier
	if m < 1 {
		m = 1
	}
	d = time.Duration(float64(d) * m)
	if p.Max > 0 && d > p.Max {
		d = p.Max
	}
	return d
}
