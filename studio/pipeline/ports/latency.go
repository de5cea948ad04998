package pipelineports

import (
	"context"
	"time"
)

// Latency performs (or skips) the simulated wait of a stage service.
type Latency interface {
	Wait(ctx context.Context, d time.Duration) error
}
