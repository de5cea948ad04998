package pipeline

import (
	"errors"
	"fmt"
)

// Submission errors are returned to the caller; nothing is logged for them.
var (
	ErrEmptyInput   = errors.New("empty input")
	ErrInputTooLong = errors.New("input too long")
	ErrClosed       = errors.New("orchestrator is closed")
)

// Stage failure causes. They never escape Submit; they settle the turn's
// assistant message with a notice and are reported in TurnResult.Failure.
var (
	ErrTimeout          = errors.New("stage timed out")
	ErrRateLimited      = errors.New("backend profile is busy")
	ErrInvalidDirective = errors.New("invalid directive")
)

// Log and edit errors.
var (
	ErrUnknownMessage     = errors.New("unknown message")
	ErrNoArtifact         = errors.New("message has no artifact")
	ErrEditingUnsupported = errors.New("editing is not supported by the generation backend")
	ErrStageRegression    = errors.New("stage regression")
	ErrDuplicateMessageID = errors.New("duplicate message id")
)

// FailedStage names the pipeline step a StageFailure came from.
type FailedStage string

const (
	StageClassify FailedStage = "classify"
	StageEnhance  FailedStage = "enhance"
	StageGenerate FailedStage = "generate"
)

// StageFailure records which stage of a turn failed and why.
type StageFailure struct {
	Stage FailedStage
	Cause error
}

func (e *StageFailure) Error() string {
	return fmt.Sprintf("%s stage failed: %v", e.Stage, e.Cause)
}

func (e *StageFailure) Unwrap() error {
	return e.Cause
}
