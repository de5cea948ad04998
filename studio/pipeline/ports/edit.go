package pipelineports

import (
	"context"
	"errors"
)

// ErrInvalidEdit is returned for edits that cannot apply to the source artifact.
var ErrInvalidEdit = errors.New("invalid edit")

// Trim keeps the [Start, End] window of a video, in seconds.
type Trim struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// TextOverlay burns a caption into the video.
type TextOverlay struct {
	Content  string `json:"content"`
	Position string `json:"position"` // top | center | bottom
}

// Edit is the set of post-generation changes the presentation layer can request.
type Edit struct {
	Trim    *Trim              `json:"trim,omitempty"`
	Crop    string             `json:"crop,omitempty"` // aspect ratio, e.g. "16:9"
	Text    *TextOverlay       `json:"text,omitempty"`
	Music   string             `json:"music,omitempty"`
	Filters map[string]float64 `json:"filters,omitempty"`
}

// IsEmpty reports whether the edit changes nothing.
func (e Edit) IsEmpty() bool {
	return e.Trim == nil && e.Crop == "" && e.Text == nil && e.Music == "" && len(e.Filters) == 0
}

// Editor derives a new artifact from an existing one.
type Editor interface {
	ApplyEdit(ctx context.Context, src ArtifactResult, e Edit) (ArtifactResult, error)
}
