package pipelineports

import "context"

// RateLimiter bounds generation work per backend profile.
type RateLimiter interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}
