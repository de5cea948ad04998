package adapters

import (
	"context"
	"time"

	ports "github.com/ZanzyTHEbar/video-studio/studio/pipeline/ports"
)

// SleepLatency waits for the full duration unless ctx ends first.
type SleepLatency struct{}

func (SleepLatency) Wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// NoLatency returns immediately. Used by tests and when simulation is off.
type NoLatency struct{}

func (NoLatency) Wait(ctx context.Context, _ time.Duration) error {
	return ctx.Err()
}

var (
	_ ports.Latency = SleepLatency{}
	_ ports.Latency = NoLatency{}
)
