package throttle

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"
)

// Rate is a Throttle backed by a time/rate token bucket.
type Rate struct {
	limiter *rate.Limiter
	rps     int
	burst   int
	logFn   func() *slog.Logger
}

// NewRate returns a token-bucket throttle allowing rps activations per
// second with the given burst. logFn lazily resolves the logger at
// activation time, making option ordering irrelevant. A nil-returning
// logFn skips the calls to *Limiter.Allow().
func NewRate(rps, burst int, logFn func() *slog.Logger) (*Rate, error) {
	if rps <= 0 || burst <= 0 {
		return nil, fmt.Errorf("rps[%d] and burst[%d] %w", rps, burst, ErrMustNotBeZero)
	}
	if logFn == nil {
		logFn = func() *slog.Logger { return nil }
	}

	r := &Rate{
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		rps:     rps,
		burst:   burst,
		logFn:   logFn,
	}

	return r, nil
}

// Activate blocks until a token is available or ctx ends. A wait that
// fails because of ctx is not reported here; the request that follows
// observes the same ctx.
func (r *Rate) Activate(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	logger := r.logFn()
	if logger != nil {
		if r.limiter.Allow() {
			return
		}

		logger.Info("throttle tokens exhausted", "rate", r.rps, "burst", r.burst)

		start := time.Now()
		defer func() {
			logger.Info("throttle wait complete", "waited", time.Since(start).String(), "rate", r.rps, "burst", r.burst)
		}()
	}

	if err := r.limiter.Wait(ctx); err != nil && logger != nil {
		logger.Debug("throttle wait aborted", "error", err)
	}
}
