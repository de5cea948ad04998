package pipelineports

import "time"

// Outcome labels for StageRecorder observations.
const (
	OutcomeOK      = "ok"
	OutcomeFailed  = "failed"
	OutcomeTimeout = "timeout"
)

// StageRecorder receives per-stage timings and per-turn counts.
type StageRecorder interface {
	ObserveStage(stage string, outcome string, d time.Duration)
	CountTurn(intent IntentKind)
}
