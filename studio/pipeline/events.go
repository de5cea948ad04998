package pipeline

import (
	"sync"
	"sync/atomic"

	"github.com/ZanzyTHEbar/video-studio/studio/metrics"
)

const defaultSubscriberCapacity = 64

// Subscription is a bounded feed of log events. Events that do not fit
// are dropped; subscribers re-read Messages() to catch up.
type Subscription struct {
	Events  <-chan Event
	dropped *atomic.Uint64
	cancel  func()
}

// Dropped reports how many events were discarded for this subscriber.
func (s Subscription) Dropped() uint64 {
	if s.dropped == nil {
		return 0
	}
	return s.dropped.Load()
}

// Close terminates the subscription and closes Events.
func (s Subscription) Close() {
	if s.cancel != nil {
		s.cancel()
	}
}

// Observe registers fn for every log mutation, delivered synchronously in
// mutation order. fn must not call mutating Orchestrator methods.
func (o *Orchestrator) Observe(fn func(Event)) (cancel func()) {
	return o.log.observe(fn)
}

// Subscribe returns a channel-backed feed of log events.
func (o *Orchestrator) Subscribe(capacity int) Subscription {
	if capacity <= 0 {
		capacity = defaultSubscriberCapacity
	}

	var (
		mu      sync.Mutex
		closed  bool
		dropped atomic.Uint64
	)
	ch := make(chan Event, capacity)

	stop := o.log.observe(func(ev Event) {
		mu.Lock()
		defer mu.Unlock()
		if closed {
			return
		}
		select {
		case ch <- ev:
		default:
			dropped.Add(1)
			metrics.EventsDropped.Inc()
		}
	})
	metrics.EventSubscribers.Inc()

	var once sync.Once
	return Subscription{
		Events:  ch,
		dropped: &dropped,
		cancel: func() {
			once.Do(func() {
				stop()
				mu.Lock()
				closed = true
				close(ch)
				mu.Unlock()
				metrics.EventSubscribers.Dec()
			})
		},
	}
}
