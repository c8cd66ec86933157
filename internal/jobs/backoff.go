package jobs

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy gives the wait before retrying after the attempt-th upstream error
// of a query. attempt starts at 1.
type Policy interface {
	Delay(attempt int) time.Duration
}

// LinearBackoff waits attempt × Step: 60s, 120s, 180s... with no cap.
type LinearBackoff struct {
	Step time.Duration
}

// Delay returns attempt × Step; attempts below 1 count as 1.
func (b LinearBackoff) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return time.Duration(attempt) * b.Step
}

// ExponentialBackoff grows by Multiplier from Initial up to Max, with
// ±Jitter randomization.
type ExponentialBackoff struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
	Jitter     float64
}

// Delay replays the exponential sequence up to attempt and returns its last
// value, so the same attempt always lands in the same jittered band.
func (b ExponentialBackoff) Delay(attempt int) time.Duration {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = b.Initial
	eb.MaxInterval = b.Max
	eb.Multiplier = b.Multiplier
	eb.RandomizationFactor = b.Jitter
	eb.MaxElapsedTime = 0
	eb.Reset()
	d := eb.NextBackOff()
	for i := 1; i < attempt; i++ {
		d = eb.NextBackOff()
	}
	return d
}
