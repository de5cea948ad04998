package pipelineports

import "time"

// Role identifies who authored a log entry.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system" // pipeline and session status
)

// Stage is the processing state of an assistant message.
type Stage string

const (
	StageNone       Stage = "none"
	StageEnhancing  Stage = "enhancing"
	StageGenerating Stage = "generating"
)

// Rank orders stages along the only legal progression:
// enhancing < generating < none. Unknown stages rank below everything.
func (s Stage) Rank() int {
	switch s {
	case StageEnhancing:
		return 1
	case StageGenerating:
		return 2
	case StageNone:
		return 3
	default:
		return 0
	}
}

// Directive is the structured prompt handed to a generation backend.
type Directive struct {
	OriginalText    string `json:"originalText"`
	EnhancedText    string `json:"enhancedText"`
	Style           string `json:"style"`           // realistic | abstract | landscape | cinematic
	DurationSeconds int    `json:"durationSeconds"` // 5 or 8 for the built-in enhancer
	MotionIntensity string `json:"motionIntensity"` // low | medium | high
	Resolution      string `json:"resolution"`      // WIDTHxHEIGHT
}

// ArtifactResult describes a generated video.
type ArtifactResult struct {
	ArtifactURL     string    `json:"artifactUrl"`
	ThumbnailURL    string    `json:"thumbnailUrl"`
	DurationSeconds int       `json:"durationSeconds"`
	Resolution      string    `json:"resolution"`
	Style           string    `json:"style"`
	GeneratedAt     time.Time `json:"generatedAt"`
}

// Message is one entry of the conversation log.
type Message struct {
	ID             string          `json:"id"`
	TurnID         string          `json:"turnId,omitempty"`
	Role           Role            `json:"role"`
	Text           string          `json:"text"`
	Stage          Stage           `json:"stage"`
	ArtifactRef    string          `json:"artifactRef,omitempty"`
	Artifact       *ArtifactResult `json:"artifact,omitempty"`
	Directive      *Directive      `json:"directive,omitempty"`
	BackendProfile string          `json:"backendProfile,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// Clone returns a deep copy so callers never share mutable state with the log.
func (m Message) Clone() Message {
	if m.Artifact != nil {
		a := *m.Artifact
		m.Artifact = &a
	}
	if m.Directive != nil {
		d := *m.Directive
		m.Directive = &d
	}
	return m
}

// IntentKind is the classifier verdict for one utterance.
type IntentKind string

const (
	IntentConversational IntentKind = "conversational"
	IntentGeneration     IntentKind = "generation"
	IntentRefinement     IntentKind = "refinement"
)

// Intent is the classifier result.
type Intent struct {
	Kind IntentKind `json:"kind"`
}

// IsGeneration reports whether the turn should run the enhance/generate stages.
func (i Intent) IsGeneration() bool {
	return i.Kind == IntentGeneration || i.Kind == IntentRefinement
}
