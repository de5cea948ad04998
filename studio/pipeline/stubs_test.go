package pipeline

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ZanzyTHEbar/video-studio/studio/config"
	"github.com/ZanzyTHEbar/video-studio/studio/enhance"
	"github.com/ZanzyTHEbar/video-studio/studio/generation"
	"github.com/ZanzyTHEbar/video-studio/studio/intent"
	"github.com/ZanzyTHEbar/video-studio/studio/pipeline/adapters"
	ports "github.com/ZanzyTHEbar/video-studio/studio/pipeline/ports"
)

var testEpoch = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

// StubClassifier returns a fixed verdict per text, falling back to def.
// A text with a gate blocks until the gate is closed.
type StubClassifier struct {
	def    ports.IntentKind
	byText map[string]ports.IntentKind
	gates  map[string]chan struct{}
	panics bool
}

func (c *StubClassifier) Classify(text string, history []string) ports.Intent {
	if c.panics {
		panic("classifier exploded")
	}
	if gate, ok := c.gates[text]; ok {
		<-gate
	}
	if k, ok := c.byText[text]; ok {
		return ports.Intent{Kind: k}
	}
	return ports.Intent{Kind: c.def}
}

// StubEnhancer counts calls and returns a fixed-shape directive.
type StubEnhancer struct {
	calls  atomic.Int32
	refine atomic.Int32
	err    error
	panics bool
}

func (e *StubEnhancer) Enhance(ctx context.Context, text string, history []string) (ports.Directive, error) {
	e.calls.Add(1)
	if e.panics {
		panic("enhancer exploded")
	}
	if e.err != nil {
		return ports.Directive{}, e.err
	}
	return stubDirective(text), nil
}

func (e *StubEnhancer) Refine(ctx context.Context, original, refinement string, history []string) (ports.Directive, error) {
	e.refine.Add(1)
	if e.err != nil {
		return ports.Directive{}, e.err
	}
	return stubDirective(original + ", " + refinement), nil
}

func stubDirective(text string) ports.Directive {
	return ports.Directive{
		OriginalText:    text,
		EnhancedText:    "Professional " + text,
		Style:           "cinematic",
		DurationSeconds: 5,
		MotionIntensity: "medium",
		Resolution:      "1920x1080",
	}
}

// StubGenerator fails with err, or blocks until block is closed.
type StubGenerator struct {
	calls  atomic.Int32
	err    error
	block  chan struct{}
	panics bool
}

func (g *StubGenerator) Generate(ctx context.Context, d ports.Directive, profile string) (ports.ArtifactResult, error) {
	n := g.calls.Add(1)
	if g.panics {
		panic("generator exploded")
	}
	if g.block != nil {
		select {
		case <-g.block:
		case <-ctx.Done():
			return ports.ArtifactResult{}, fmt.Errorf("%w: %w", ports.ErrGenerationFailed, ctx.Err())
		}
	}
	if g.err != nil {
		return ports.ArtifactResult{}, g.err
	}
	return ports.ArtifactResult{
		ArtifactURL:     "/videos/" + strconv.Itoa(int(n)),
		ThumbnailURL:    "/thumbs/" + strconv.Itoa(int(n)),
		DurationSeconds: d.DurationSeconds,
		Resolution:      d.Resolution,
		Style:           d.Style,
		GeneratedAt:     testEpoch,
	}, nil
}

func (g *StubGenerator) DisplayName(profile string) string { return "Stub" }

func (g *StubGenerator) Profiles() []ports.ProfileInfo {
	return []ports.ProfileInfo{{ID: "stub", DisplayName: "Stub"}}
}

// stubSink records every mirrored message.
type stubSink struct {
	mu      sync.Mutex
	records []ports.Message
	closed  bool
}

func (s *stubSink) Record(ctx context.Context, sessionID string, msg ports.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, msg)
	return nil
}

func (s *stubSink) Ping(ctx context.Context) error { return nil }

func (s *stubSink) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

func (s *stubSink) snapshot() []ports.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ports.Message(nil), s.records...)
}

// sequentialIDs returns "prefix-1", "prefix-2", ...
func sequentialIDs(prefix string) func() string {
	var n atomic.Int64
	return func() string {
		return prefix + "-" + strconv.FormatInt(n.Add(1), 10)
	}
}

func newRealServices() (*intent.Classifier, *enhance.Service, *generation.Service) {
	classifier := intent.NewClassifier(intent.NewLexicon(config.DefaultGenerationVerbs, config.DefaultModificationVerbs))
	enhancer := enhance.NewService(enhance.Config{
		Resolution: "1920x1080",
		Keywords: enhance.Keywords{
			Subjects:     config.DefaultSubjects,
			Actions:      config.DefaultActions,
			Settings:     config.DefaultSettings,
			Abstract:     config.DefaultAbstractKeywords,
			Modification: config.DefaultModificationVerbs,
		},
	}, adapters.NoLatency{}, nil)
	generator := generation.NewService(adapters.NoLatency{},
		generation.WithClock(func() time.Time { return testEpoch }),
		generation.WithIDGenerator(sequentialIDs("art")),
	)
	return classifier, enhancer, generator
}

// newTestOrchestrator wires the real services with zero latency.
func newTestOrchestrator(opts ...Option) *Orchestrator {
	classifier, enhancer, generator := newRealServices()
	base := []Option{
		WithIDGenerator(sequentialIDs("id")),
		WithClock(func() time.Time { return testEpoch }),
	}
	return NewOrchestrator(classifier, enhancer, generator, DefaultPolicy(), append(base, opts...)...)
}

func replyOf(o *Orchestrator, res *TurnResult) ports.Message {
	msg, _ := o.Message(res.ReplyMessageID)
	return msg
}
