package backoff

import (
	"context"
	"time"
)

// Policy maps a consecutive-failure count to the delay before the next
// attempt. Delays grow exponentially from Initial up to Max.
type Policy struct {
	Initial time.Duration
	Max     time.Duration
	Factor  float64
}

func DefaultPolicy() Policy {
	return Policy{
		Initial: time.Second,
		Max:     2 * time.Minute,
		Factor:  2,
	}
}

// Delay returns the wait before attempt n (n starts at 0).
func (p Policy) Delay(attempt int) time.Duration {
	if attempt <= 0 {
		return p.Initial
	}
	d := float64(p.Initial)
	for i := 0; i < attempt; i++ {
		d *= p.Factor
		if time.Duration(d) >= p.Max {
			return p.Max
		}
	}
	return time.Duration(d)
}

// Sleep blocks for the attempt's delay or until ctx is done.
func (p Policy) Sleep(ctx context.Context, attempt int) error {
	t := time.NewTimer(p.Delay(attempt))
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Retry runs fn up to maxAttempts times, sleeping between attempts.
// retryable decides whether an error is worth another attempt; a nil
// retryable retries everything. The last error is returned when attempts
// are exhausted.
func Retry(ctx context.Context, p Policy, maxAttempts int, fn func() error, retryable func(error) bool) error {
	var err error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if retryable != nil && !retryable(err) {
			return err
		}
		if attempt == maxAttempts-1 {
			break
		}
		if serr := p.Sleep(ctx, attempt); serr != nil {
			return err
		}
	}
	return err
}
