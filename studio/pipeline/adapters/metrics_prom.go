package adapters

import (
	"time"

	"github.com/ZanzyTHEbar/video-studio/studio/metrics"
	ports "github.com/ZanzyTHEbar/video-studio/studio/pipeline/ports"
)

// PromRecorder forwards stage observations to the process-wide collectors.
type PromRecorder struct{}

func (PromRecorder) ObserveStage(stage, outcome string, d time.Duration) {
	metrics.StageDuration.WithLabelValues(stage, outcome).Observe(d.Seconds())
	if outcome != ports.OutcomeOK {
		metrics.StageFailures.WithLabelValues(stage, outcome).Inc()
	}
}

func (PromRecorder) CountTurn(intent ports.IntentKind) {
	metrics.TurnsTotal.WithLabelValues(string(intent)).Inc()
}

// MultiRecorder fans observations out to several recorders.
type MultiRecorder []ports.StageRecorder

func (m MultiRecorder) ObserveStage(stage, outcome string, d time.Duration) {
	for _, r := range m {
		r.ObserveStage(stage, outcome, d)
	}
}

func (m MultiRecorder) CountTurn(intent ports.IntentKind) {
	for _, r := range m {
		r.CountTurn(intent)
	}
}

var (
	_ ports.StageRecorder = PromRecorder{}
	_ ports.StageRecorder = MultiRecorder(nil)
)
