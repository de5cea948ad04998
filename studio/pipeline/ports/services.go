package pipelineports

import (
	"context"
	"errors"
)

var (
	// ErrServiceUnavailable is returned by a stage service that cannot take work.
	ErrServiceUnavailable = errors.New("service unavailable")
	// ErrGenerationFailed wraps every generation backend failure.
	ErrGenerationFailed = errors.New("generation failed")
)

// IntentClassifier decides whether an utterance asks for a video.
// Implementations must be pure and safe for concurrent use.
type IntentClassifier interface {
	Classify(text string, history []string) Intent
}

// Enhancer turns free text into a Directive.
type Enhancer interface {
	Enhance(ctx context.Context, text string, history []string) (Directive, error)
	// Refine folds a follow-up request into a previously enhanced prompt.
	Refine(ctx context.Context, original, refinement string, history []string) (Directive, error)
}

// ProfileInfo describes a selectable backend profile.
type ProfileInfo struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Description string `json:"description"`
}

// Generator renders a Directive with a backend profile.
type Generator interface {
	Generate(ctx context.Context, d Directive, profile string) (ArtifactResult, error)
	DisplayName(profile string) string
	Profiles() []ProfileInfo
}
