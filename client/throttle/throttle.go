package throttle

import (
	"context"
	"fmt"
	"time"
)

// Delay pauses the caller for a fixed duration on every step-th
// activation. The first pause happens on activation number step.
type Delay struct {
	count int
	step  int
	pause time.Duration
	sleep sleepFn
}

// NewDelay returns a Delay that pauses for pause after every step
// activations.
func NewDelay(step int, pause time.Duration) (*Delay, error) {
	if step <= 0 {
		return nil, fmt.Errorf("step[%d] %w", step, ErrMustNotBeZero)
	}
	if pause < 0 {
		return nil, fmt.Errorf("pause[%s]: %w", pause, ErrNegativePause)
	}

	d := &Delay{
		step:  step,
		pause: pause,
		sleep: sleep,
	}

	return d, nil
}

// Activate records one activation and pauses if the new count is a
// multiple of the step.
func (d *Delay) Activate(ctx context.Context) {
	d.count++
	if d.count%d.step == 0 {
		d.sleep(ctx, d.pause)
	}
}

// Count reports how many times Activate has been called.
func (d *Delay) Count() int {
	return d.count
}

// Step reports the activation interval.
func (d *Delay) Step() int {
	return d.step
}

// Pause reports the pause duration.
func (d *Delay) Pause() time.Duration {
	return d.pause
}

// Noop never pauses.
type Noop struct{}

func (Noop) Activate(context.Context) {}

func sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}
