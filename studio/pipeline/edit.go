package pipeline

import (
	"context"
	"fmt"

	ports "github.com/ZanzyTHEbar/video-studio/studio/pipeline/ports"
)

// ApplyEdit derives a new video from the artifact of message id and
// appends it as a settled assistant message. The source message is not
// changed.
func (o *Orchestrator) ApplyEdit(ctx context.Context, id string, e ports.Edit) (ports.Message, error) {
	if o.editor == nil {
		return ports.Message{}, ErrEditingUnsupported
	}

	src, ok := o.log.get(id)
	if !ok {
		return ports.Message{}, fmt.Errorf("%w: %s", ErrUnknownMessage, id)
	}
	if src.Artifact == nil {
		return ports.Message{}, fmt.Errorf("%w: %s", ErrNoArtifact, id)
	}
	if e.IsEmpty() {
		return ports.Message{}, fmt.Errorf("%w: nothing to apply", ports.ErrInvalidEdit)
	}

	ctx, finish := o.tracer.StartSpan(ctx, "edit", map[string]any{"source_id": id})
	artifact, err := o.editor.ApplyEdit(ctx, *src.Artifact, e)
	finish(err)
	if err != nil {
		return ports.Message{}, err
	}

	o.sessionMu.RLock()
	defer o.sessionMu.RUnlock()

	now := o.now()
	msg := ports.Message{
		ID:             o.newID(),
		TurnID:         o.newID(),
		Role:           ports.RoleAssistant,
		Text:           editedText,
		Stage:          ports.StageNone,
		ArtifactRef:    artifact.ArtifactURL,
		Artifact:       &artifact,
		Directive:      src.Directive,
		BackendProfile: src.BackendProfile,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := o.log.append(msg); err != nil {
		return ports.Message{}, err
	}
	return msg.Clone(), nil
}
