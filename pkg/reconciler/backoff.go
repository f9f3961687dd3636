package reconciler

import (
	"time"

	"github.com/cenkalti/backoff/v4"
	"k8s.io/utils/clock"
)

// retryPolicy decides when a failed cycle is retried automatically.
type retryPolicy struct {
	backoff *backoff.ExponentialBackOff
}

func newRetryPolicy(initial, max time.Duration, c clock.PassiveClock) *retryPolicy {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = initial
	b.MaxInterval = max
	// Never stop retrying.
	b.MaxElapsedTime = 0
	b.Clock = c
	b.Reset()
	return &retryPolicy{backoff: b}
}

// next returns the wait before the next retry, growing with every call.
func (p *retryPolicy) next() time.Duration {
	return p.backoff.NextBackOff()
}

// reset starts over after a successful cycle.
func (p *retryPolicy) reset() {
	p.backoff.Reset()
}

// restore fast-forwards the policy past failures counted before a restart.
func (p *retryPolicy) restore(failures int) {
	p.reset()
	for i := 0; i < failures-1; i++ {
		p.next()
	}
}
