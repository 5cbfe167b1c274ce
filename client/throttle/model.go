package throttle

import (
	"context"
	"errors"
	"time"
)

var (
	ErrMustNotBeZero = errors.New("must be greater than zero")
	ErrNegativePause = errors.New("pause must not be negative")
)

// Throttle is activated once per request attempt, before the
// request is sent. Activate may block; it returns early when ctx
// is done.
type Throttle interface {
	Activate(ctx context.Context)
}

// sleepFn pauses for d or until ctx ends.
type sleepFn func(ctx context.Context, d time.Duration)
