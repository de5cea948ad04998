package adapters

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	ports "github.com/ZanzyTHEbar/video-studio/studio/pipeline/ports"
)

// ErrRateLimitExceeded is matched by every RateLimitError.
var ErrRateLimitExceeded = errors.New("rate limit exceeded")

// RateLimitError names the key whose bucket ran dry.
type RateLimitError struct {
	Key string
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %q", e.Key)
}

func (e *RateLimitError) Is(target error) bool {
	return target == ErrRateLimitExceeded
}

// TokenBucket keeps one bucket per key (backend profile). Each Acquire
// holds one of capacity permits until release, so at most capacity
// generations run per key. It also spends a start token that is never
// handed back; tokens return at one per refillRate, up to capacity. A
// refillRate of zero or less disables the start tokens.
type TokenBucket struct {
	mu         sync.Mutex
	buckets    map[string]*bucket
	capacity   int
	refillRate time.Duration
	now        func() time.Time
}

type bucket struct {
	tokens     int
	inFlight   int
	lastRefill time.Time
}

// NewTokenBucket creates a limiter with capacity permits per key.
func NewTokenBucket(capacity int, refillRate time.Duration) *TokenBucket {
	if capacity < 1 {
		capacity = 1
	}
	return &TokenBucket{
		buckets:    make(map[string]*bucket),
		capacity:   capacity,
		refillRate: refillRate,
		now:        time.Now,
	}
}

// Acquire takes a permit for key or fails fast with a *RateLimitError.
func (tb *TokenBucket) Acquire(ctx context.Context, key string) (release func(), err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tb.mu.Lock()
	defer tb.mu.Unlock()

	b := tb.bucketLocked(key)
	if tb.availableLocked(b) <= 0 {
		return nil, &RateLimitError{Key: key}
	}
	b.inFlight++
	if tb.refillRate > 0 {
		b.tokens--
	}

	var once sync.Once
	release = func() {
		once.Do(func() {
			tb.mu.Lock()
			defer tb.mu.Unlock()
			b.inFlight--
		})
	}
	return release, nil
}

// Available reports how many Acquire calls for key would succeed now.
func (tb *TokenBucket) Available(key string) int {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	return tb.availableLocked(tb.bucketLocked(key))
}

func (tb *TokenBucket) bucketLocked(key string) *bucket {
	b, ok := tb.buckets[key]
	if !ok {
		b = &bucket{tokens: tb.capacity, lastRefill: tb.now()}
		tb.buckets[key] = b
	}
	return b
}

func (tb *TokenBucket) availableLocked(b *bucket) int {
	free := tb.capacity - b.inFlight
	if tb.refillRate <= 0 {
		return free
	}
	tb.refill(b)
	return min(free, b.tokens)
}

func (tb *TokenBucket) refill(b *bucket) {
	elapsed := tb.now().Sub(b.lastRefill)
	if add := int(elapsed / tb.refillRate); add > 0 {
		b.tokens = min(b.tokens+add, tb.capacity)
		b.lastRefill = b.lastRefill.Add(time.Duration(add) * tb.refillRate)
	}
}

// Ensure TokenBucket implements the RateLimiter interface.
var _ ports.RateLimiter = (*TokenBucket)(nil)
