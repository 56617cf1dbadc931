package realtime

import (
	"time"

	"github.com/cenkalti/backoff/v5"
)

// backoffPolicy yields reconnect delays: base, doubling per attempt,
// capped at max, without jitter.
type backoffPolicy struct {
	exp      *backoff.ExponentialBackOff
	attempts int
}

func newBackoffPolicy(base, max time.Duration) *backoffPolicy {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = base
	exp.MaxInterval = max
	exp.Multiplier = 2
	exp.RandomizationFactor = 0
	exp.Reset()
	return &backoffPolicy{exp: exp}
}

// Next returns the delay before the next attempt and advances the counter.
func (b *backoffPolicy) Next() time.Duration {
	b.attempts++
	return b.exp.NextBackOff()
}

// Reset returns the policy to the base delay.
func (b *backoffPolicy) Reset() {
	b.attempts = 0
	b.exp.Reset()
}
