package adapters

import (
	"slices"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"

	ports "github.com/ZanzyTHEbar/video-studio/studio/pipeline/ports"
)

// StageSummary aggregates the retained samples of one stage, in milliseconds.
type StageSummary struct {
	Count    int     `json:"count"`
	Failures int     `json:"failures"`
	MeanMs   float64 `json:"meanMs"`
	P50Ms    float64 `json:"p50Ms"`
	P95Ms    float64 `json:"p95Ms"`
	MaxMs    float64 `json:"maxMs"`
}

// LatencyStats keeps a sliding window of stage durations and summarises it.
type LatencyStats struct {
	mu       sync.Mutex
	window   int
	samples  map[string][]float64
	failures map[string]int
	turns    map[ports.IntentKind]int
}

// NewLatencyStats keeps at most window samples per stage.
func NewLatencyStats(window int) *LatencyStats {
	if window < 1 {
		window = 1000
	}
	return &LatencyStats{
		window:   window,
		samples:  make(map[string][]float64),
		failures: make(map[string]int),
		turns:    make(map[ports.IntentKind]int),
	}
}

func (s *LatencyStats) ObserveStage(stage, outcome string, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if outcome != ports.OutcomeOK {
		s.failures[stage]++
	}
	samples := append(s.samples[stage], float64(d)/float64(time.Millisecond))
	if len(samples) > s.window {
		samples = samples[len(samples)-s.window:]
	}
	s.samples[stage] = samples
}

func (s *LatencyStats) CountTurn(intent ports.IntentKind) {
	s.mu.Lock()
	s.turns[intent]++
	s.mu.Unlock()
}

// Summary returns per-stage aggregates.
func (s *LatencyStats) Summary() map[string]StageSummary {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]StageSummary, len(s.samples))
	for stage, samples := range s.samples {
		if len(samples) == 0 {
			continue
		}
		sorted := slices.Clone(samples)
		slices.Sort(sorted)
		out[stage] = StageSummary{
			Count:    len(sorted),
			Failures: s.failures[stage],
			MeanMs:   stat.Mean(sorted, nil),
			P50Ms:    stat.Quantile(0.5, stat.Empirical, sorted, nil),
			P95Ms:    stat.Quantile(0.95, stat.Empirical, sorted, nil),
			MaxMs:    sorted[len(sorted)-1],
		}
	}
	return out
}

// Turns returns the number of turns seen per intent.
func (s *LatencyStats) Turns() map[ports.IntentKind]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[ports.IntentKind]int, len(s.turns))
	for k, v := range s.turns {
		out[k] = v
	}
	return out
}

var _ ports.StageRecorder = (*LatencyStats)(nil)
