package generation

import (
	"context"
	"fmt"
	"math"

	ports "github.com/ZanzyTHEbar/video-studio/studio/pipeline/ports"
)

var (
	cropRatios    = map[string]bool{"16:9": true, "9:16": true, "1:1": true, "4:3": true}
	textPositions = map[string]bool{"top": true, "center": true, "bottom": true}

	// Inclusive slider ranges per filter. Brightness, contrast and saturation
	// are offsets from the unedited video, so 0 leaves it unchanged.
	filterRanges = map[string]filterRange{
		"brightness": {-100, 100},
		"contrast":   {-100, 100},
		"saturation": {-100, 100},
		"hue":        {-180, 180},
		"sharpness":  {0, 100},
	}
)

type filterRange struct {
	min, max float64
}

// ApplyEdit implements ports.Editor. The source artifact is left untouched;
// the result is a new artifact with its own id.
func (s *Service) ApplyEdit(ctx context.Context, src ports.ArtifactResult, e ports.Edit) (ports.ArtifactResult, error) {
	if err := ctx.Err(); err != nil {
		return ports.ArtifactResult{}, err
	}
	if err := validateEdit(src, e); err != nil {
		return ports.ArtifactResult{}, err
	}

	out := src
	id := s.newID()
	out.ArtifactURL = videoURL(id)
	out.ThumbnailURL = thumbnailURL(id)
	out.GeneratedAt = s.now()

	if e.Trim != nil {
		out.DurationSeconds = max(1, int(math.Round(e.Trim.End-e.Trim.Start)))
	}
	return out, nil
}

func validateEdit(src ports.ArtifactResult, e ports.Edit) error {
	if e.IsEmpty() {
		return fmt.Errorf("%w: nothing to apply", ports.ErrInvalidEdit)
	}
	if t := e.Trim; t != nil {
		if t.Start < 0 || t.End <= t.Start || t.End > float64(src.DurationSeconds) {
			return fmt.Errorf("%w: trim [%g, %g] outside 0..%ds", ports.ErrInvalidEdit, t.Start, t.End, src.DurationSeconds)
		}
	}
	if e.Crop != "" && !cropRatios[e.Crop] {
		return fmt.Errorf("%w: unsupported crop %q", ports.ErrInvalidEdit, e.Crop)
	}
	if t := e.Text; t != nil {
		if t.Content == "" {
			return fmt.Errorf("%w: empty text overlay", ports.ErrInvalidEdit)
		}
		if !textPositions[t.Position] {
			return fmt.Errorf("%w: unsupported text position %q", ports.ErrInvalidEdit, t.Position)
		}
	}
	for name, v := range e.Filters {
		r, ok := filterRanges[name]
		if !ok {
			return fmt.Errorf("%w: unknown filter %q", ports.ErrInvalidEdit, name)
		}
		if v < r.min || v > r.max {
			return fmt.Errorf("%w: filter %s=%g outside %g..%g", ports.ErrInvalidEdit, name, v, r.min, r.max)
		}
	}
	return nil
}

var _ ports.Editor = (*Service)(nil)
