package timectrl

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Mode describes how the loop is paced against the wall clock.
type Mode int

const (
	// RealTime sleeps out the remainder of each period.
	RealTime Mode = iota
	// Accelerated runs ticks back to back.
	Accelerated
)

func (m Mode) String() string {
	if m == Accelerated {
		return "accelerated"
	}
	return "realtime"
}

// ParseMode accepts "realtime" or "accelerated".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "realtime", "real-time", "":
		return RealTime, nil
	case "accelerated", "fast":
		return Accelerated, nil
	default:
		return 0, fmt.Errorf("unknown pacing mode %q", s)
	}
}

// Pacer spaces ticks one period apart in wall-clock time. A tick that
// overruns its period is not caught up; the next one starts immediately.
type Pacer struct {
	Mode   Mode
	Period time.Duration

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewPacer returns a pacer using the system clock.
func NewPacer(mode Mode, period time.Duration) *Pacer {
	return &Pacer{
		Mode:   mode,
		Period: period,
		now:    time.Now,
		sleep:  sleepContext,
	}
}

// Mark returns the wall-clock time a tick's work starts.
func (p *Pacer) Mark() time.Time { return p.now() }

// Wait sleeps until one period has passed since mark. It returns how long
// the tick's work took and how long it slept. Accelerated mode never sleeps.
func (p *Pacer) Wait(ctx context.Context, mark time.Time) (elapsed, slept time.Duration, err error) {
	elapsed = p.now().Sub(mark)
	if p.Mode == Accelerated {
		return elapsed, 0, ctx.Err()
	}
	remaining := p.Period - elapsed
	if remaining <= 0 {
		return elapsed, 0, ctx.Err()
	}
	if err := p.sleep(ctx, remaining); err != nil {
		return elapsed, 0, err
	}
	return elapsed, remaining, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
