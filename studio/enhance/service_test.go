package enhance

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZanzyTHEbar/video-studio/studio/config"
	ports "github.com/ZanzyTHEbar/video-studio/studio/pipeline/ports"
)

// recordingLatency records requested waits without sleeping.
type recordingLatency struct {
	mu    sync.Mutex
	waits []time.Duration
	err   error
}

func (l *recordingLatency) Wait(ctx context.Context, d time.Duration) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.waits = append(l.waits, d)
	if l.err != nil {
		return l.err
	}
	return ctx.Err()
}

func testConfig() Config {
	return Config{
		MinLatency:       500 * time.Millisecond,
		MaxLatency:       1500 * time.Millisecond,
		RefineMinLatency: 400 * time.Millisecond,
		RefineMaxLatency: 1200 * time.Millisecond,
		Resolution:       "1920x1080",
		Keywords: Keywords{
			Subjects:     config.DefaultSubjects,
			Actions:      config.DefaultActions,
			Settings:     config.DefaultSettings,
			Abstract:     config.DefaultAbstractKeywords,
			Modification: config.DefaultModificationVerbs,
		},
	}
}

func newTestService(latency ports.Latency) *Service {
	return NewService(testConfig(), latency, rand.New(rand.NewPCG(1, 2)))
}

func TestEnhance_RealisticSubjectWithAction(t *testing.T) {
	s := newTestService(&recordingLatency{})

	d, err := s.Enhance(context.Background(), "a frog dancing in a forest", nil)

	require.NoError(t, err)
	assert.Equal(t, StyleRealistic, d.Style)
	assert.Equal(t, MotionHigh, d.MotionIntensity)
	assert.Equal(t, 8, d.DurationSeconds)
	assert.Equal(t, "1920x1080", d.Resolution)
	assert.Equal(t, "a frog dancing in a forest", d.OriginalText)
	assert.Equal(t,
		"Cinematic shot of a frog dancing in a forest, professional lighting, smooth motion, vibrant colors, high detail, 4K quality",
		d.EnhancedText)
}

func TestBuild_TemplateSelection(t *testing.T) {
	s := newTestService(&recordingLatency{})

	tests := []struct {
		name     string
		text     string
		style    string
		motion   string
		duration int
		prefix   string
	}{
		{"abstract keyword", "abstract geometric shapes morphing", StyleAbstract, MotionMedium, 5, "Abstract artistic abstract geometric"},
		{"setting only", "cyberpunk city at night", StyleLandscape, MotionLow, 5, "Beautiful cyberpunk city at night, golden hour lighting"},
		{"nothing recognised", "a quiet afternoon", StyleCinematic, MotionMedium, 5, "Professional a quiet afternoon, cinematic quality"},
		{"action without subject", "people running", StyleCinematic, MotionMedium, 8, "Professional people running"},
		{"subject without action", "a lion in the desert", StyleLandscape, MotionLow, 5, "Beautiful a lion in the desert"},
		{"subject and action beat abstract", "abstract cat jumping", StyleRealistic, MotionHigh, 8, "Cinematic shot of abstract cat jumping"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := s.Build(tt.text, nil)
			assert.Equal(t, tt.style, d.Style)
			assert.Equal(t, tt.motion, d.MotionIntensity)
			assert.Equal(t, tt.duration, d.DurationSeconds)
			assert.Contains(t, d.EnhancedText, tt.prefix)
		})
	}
}

func TestBuild_HistoryContributesCategories(t *testing.T) {
	s := newTestService(&recordingLatency{})

	d := s.Build("now at sunset", []string{"a dog", "running fast"})

	assert.Equal(t, StyleRealistic, d.Style)
	assert.Equal(t, 8, d.DurationSeconds)
}

func TestBuild_AbstractIgnoresHistory(t *testing.T) {
	s := newTestService(&recordingLatency{})

	d := s.Build("something calm", []string{"abstract shapes"})

	assert.Equal(t, StyleCinematic, d.Style)
}

func TestBuild_IntegrationClause(t *testing.T) {
	s := newTestService(&recordingLatency{})

	with := s.Build("a red hat", []string{"a frog dancing", "add a cow"})
	assert.True(t, len(with.EnhancedText) > len(integrationClause))
	assert.Equal(t, integrationClause, with.EnhancedText[len(with.EnhancedText)-len(integrationClause):])

	without := s.Build("a red hat", []string{"add a cow", "a frog dancing"})
	assert.NotContains(t, without.EnhancedText, "seamlessly integrated")

	none := s.Build("add a red hat", nil)
	assert.NotContains(t, none.EnhancedText, "seamlessly integrated")
}

func TestEnhance_Deterministic(t *testing.T) {
	s := newTestService(&recordingLatency{})
	history := []string{"make a frog", "add a hat"}

	first, err := s.Enhance(context.Background(), "a cat swimming in the ocean", history)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := s.Enhance(context.Background(), "a cat swimming in the ocean", history)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestEnhance_LatencyWithinRange(t *testing.T) {
	lat := &recordingLatency{}
	s := newTestService(lat)

	for i := 0; i < 50; i++ {
		_, err := s.Enhance(context.Background(), "hello", nil)
		require.NoError(t, err)
	}
	_, err := s.Refine(context.Background(), "a frog", "add a hat", nil)
	require.NoError(t, err)

	require.Len(t, lat.waits, 51)
	for _, d := range lat.waits[:50] {
		assert.GreaterOrEqual(t, d, 500*time.Millisecond)
		assert.LessOrEqual(t, d, 1500*time.Millisecond)
	}
	assert.GreaterOrEqual(t, lat.waits[50], 400*time.Millisecond)
	assert.LessOrEqual(t, lat.waits[50], 1200*time.Millisecond)
}

func TestEnhance_LatencyError(t *testing.T) {
	s := newTestService(&recordingLatency{err: ports.ErrServiceUnavailable})

	_, err := s.Enhance(context.Background(), "make a frog", nil)

	assert.ErrorIs(t, err, ports.ErrServiceUnavailable)
}

func TestEnhance_CancelledContext(t *testing.T) {
	s := newTestService(&recordingLatency{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Enhance(ctx, "make a frog", nil)

	assert.True(t, errors.Is(err, context.Canceled))
}

func TestRefine_CombinesWithOriginal(t *testing.T) {
	s := newTestService(&recordingLatency{})

	d, err := s.Refine(context.Background(), "a frog dancing", "add a tiny hat", []string{"make a frog dancing"})

	require.NoError(t, err)
	assert.Equal(t, "a frog dancing, add a tiny hat", d.OriginalText)
	assert.Equal(t, StyleRealistic, d.Style)
	assert.NotContains(t, d.EnhancedText, "seamlessly integrated", "the last history entry is the original request")
}

func TestDraw_DegenerateRange(t *testing.T) {
	s := NewService(Config{MinLatency: time.Second, MaxLatency: time.Millisecond}, &recordingLatency{}, nil)

	assert.Equal(t, time.Second, s.draw(time.Second, time.Millisecond))
	d := s.draw(0, time.Millisecond)
	assert.LessOrEqual(t, d, time.Millisecond)
}
