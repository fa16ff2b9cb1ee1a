package llm

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimited wraps a Client with a client-side token bucket so a burst of
// planner calls backs off before the provider returns a rate-limited error,
// rather than after.
type RateLimited struct {
	next    Client
	limiter *rate.Limiter
}

// NewRateLimited wraps next with a limiter allowing rps requests per second
// and up to burst in a single burst.
func NewRateLimited(next Client, rps float64, burst int) *RateLimited {
	return &RateLimited{next: next, limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

// Complete waits for a token from the limiter, then delegates to the wrapped
// client. If ctx is cancelled while waiting, it returns a KindLLMCancelled
// error without ever reaching the provider.
func (r *RateLimited) Complete(ctx context.Context, prompt string, opts Options) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", cancelledError(err)
	}
	return r.next.Complete(ctx, prompt, opts)
}
