// Package throttle provides the delay gates a [client.Client] activates
// before every request attempt.
//
// # Delay
//
// [Delay] counts activations and pauses the caller on every Nth one:
//
//	d, err := throttle.NewDelay(10, time.Second) // pause 1s every 10 requests
//
// # Rate
//
// [Rate] blocks until a token is available from a token-bucket limiter
// built on [golang.org/x/time/rate]:
//
//	r, err := throttle.NewRate(5, 1, func() *slog.Logger { return slog.Default() })
//
// [Noop] disables throttling and is the default for a client.
//
// A throttle holds mutable state and must not be shared between
// goroutines without external synchronisation.
package throttle
