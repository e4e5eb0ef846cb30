package workflow

import (
	"context"

	"golang.org/x/time/rate"
)

// providerThrottle spaces calls to one upstream provider so concurrent
// stages stay inside its rate limits. Burst equals the configured
// per-provider concurrency.
type providerThrottle struct {
	limiter *rate.Limiter
}

func newProviderThrottle(requestsPerSecond float64, concurrency int) *providerThrottle {
	if requestsPerSecond <= 0 {
		requestsPerSecond = 2
	}
	if concurrency <= 0 {
		concurrency = 1
	}
	return &providerThrottle{
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), concurrency),
	}
}

func (t *providerThrottle) wait(ctx context.Context) error {
	return t.limiter.Wait(ctx)
}
