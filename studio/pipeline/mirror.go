package pipeline

import (
	"context"
	"sync"
	"time"

	ports "github.com/ZanzyTHEbar/video-studio/studio/pipeline/ports"
)

const (
	mirrorQueueSize   = 256
	mirrorWriteBudget = 5 * time.Second
)

// mirror copies log events to a MessageSink on a single goroutine, so
// writes for one message id land in mutation order.
type mirror struct {
	sink   ports.MessageSink
	tracer ports.Tracer
	queue  chan Event
	done   chan struct{}
	once   sync.Once
	mu     sync.RWMutex
	closed bool
}

func newMirror(sink ports.MessageSink, tracer ports.Tracer) *mirror {
	m := &mirror{
		sink:   sink,
		tracer: tracer,
		queue:  make(chan Event, mirrorQueueSize),
		done:   make(chan struct{}),
	}
	go m.run()
	return m
}

func (m *mirror) enqueue(ev Event) {
	if ev.Kind == EventReset {
		return
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return
	}
	select {
	case m.queue <- ev:
	default:
		m.tracer.Event(context.Background(), "mirror_dropped", map[string]any{
			"message_id": ev.Message.ID,
			"seq":        ev.Seq,
		})
	}
}

func (m *mirror) run() {
	defer close(m.done)
	for ev := range m.queue {
		ctx, cancel := context.WithTimeout(context.Background(), mirrorWriteBudget)
		if err := m.sink.Record(ctx, ev.SessionID, ev.Message); err != nil {
			// Log but don't fail
			m.tracer.Event(ctx, "mirror_error", map[string]any{
				"message_id": ev.Message.ID,
				"error":      err.Error(),
			})
		}
		cancel()
	}
}

// close drains queued writes, waiting at most until ctx ends.
func (m *mirror) close(ctx context.Context) error {
	m.once.Do(func() {
		m.mu.Lock()
		m.closed = true
		close(m.queue)
		m.mu.Unlock()
	})
	select {
	case <-m.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PingSink checks the log mirror. configured is false when no sink is set.
func (o *Orchestrator) PingSink(ctx context.Context) (configured bool, err error) {
	if o.sink == nil {
		return false, nil
	}
	return true, o.sink.Ping(ctx)
}
