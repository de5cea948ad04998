package server

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ZanzyTHEbar/video-studio/studio/pipeline"
	ports "github.com/ZanzyTHEbar/video-studio/studio/pipeline/ports"
)

// SubmitRequest is the body of POST /turns.
type SubmitRequest struct {
	Text string `json:"text"`
}

// SubmitTurn admits a turn and returns its receipt; the turn settles in the background.
func (h *Handler) SubmitTurn(w http.ResponseWriter, r *http.Request) {
	var req SubmitRequest
	if !h.decode(w, r, &req) {
		return
	}

	receipt, err := h.orch.SubmitAsync(r.Context(), req.Text)
	switch {
	case errors.Is(err, pipeline.ErrEmptyInput), errors.Is(err, pipeline.ErrInputTooLong):
		h.Error(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, pipeline.ErrClosed):
		h.Error(w, http.StatusServiceUnavailable, "shutting down")
		return
	case err != nil:
		h.logger.Error().Err(err).Msg("submit failed")
		h.Error(w, http.StatusInternalServerError, "internal error")
		return
	}

	h.JSON(w, http.StatusAccepted, receipt)
}

// MessagesResponse is the body of GET /messages.
type MessagesResponse struct {
	SessionID string          `json:"sessionId"`
	Messages  []ports.Message `json:"messages"`
}

func (h *Handler) Messages(w http.ResponseWriter, r *http.Request) {
	h.JSON(w, http.StatusOK, MessagesResponse{
		SessionID: h.orch.SessionID(),
		Messages:  h.orch.Messages(),
	})
}

func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	history := h.orch.History()
	if history == nil {
		history = []string{}
	}
	h.JSON(w, http.StatusOK, map[string]interface{}{"history": history})
}

// ProfilesResponse is the body of GET /profiles.
type ProfilesResponse struct {
	Current  string              `json:"current"`
	Profiles []ports.ProfileInfo `json:"profiles"`
}

func (h *Handler) Profiles(w http.ResponseWriter, r *http.Request) {
	h.JSON(w, http.StatusOK, ProfilesResponse{
		Current:  h.orch.Profile(),
		Profiles: h.orch.Profiles(),
	})
}

// SelectProfileRequest is the body of PUT /profile.
type SelectProfileRequest struct {
	Profile string `json:"profile"`
}

func (h *Handler) SelectProfile(w http.ResponseWriter, r *http.Request) {
	var req SelectProfileRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.Profile == "" {
		h.Error(w, http.StatusBadRequest, "profile is required")
		return
	}

	h.orch.SelectBackendProfile(req.Profile)
	h.JSON(w, http.StatusOK, map[string]string{"profile": h.orch.Profile()})
}

// ApplyEdit handles POST /messages/{id}/edits.
func (h *Handler) ApplyEdit(w http.ResponseWriter, r *http.Request) {
	var edit ports.Edit
	if !h.decode(w, r, &edit) {
		return
	}

	msg, err := h.orch.ApplyEdit(r.Context(), chi.URLParam(r, "id"), edit)
	switch {
	case errors.Is(err, pipeline.ErrUnknownMessage):
		h.Error(w, http.StatusNotFound, "message not found")
		return
	case errors.Is(err, pipeline.ErrNoArtifact):
		h.Error(w, http.StatusConflict, "message has no video to edit")
		return
	case errors.Is(err, ports.ErrInvalidEdit):
		h.Error(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, pipeline.ErrEditingUnsupported):
		h.Error(w, http.StatusNotImplemented, err.Error())
		return
	case err != nil:
		h.logger.Error().Err(err).Msg("edit failed")
		h.Error(w, http.StatusInternalServerError, "internal error")
		return
	}

	h.JSON(w, http.StatusCreated, msg)
}

func (h *Handler) ResetSession(w http.ResponseWriter, r *http.Request) {
	id := h.orch.Reset(r.Context())
	h.JSON(w, http.StatusOK, map[string]string{"sessionId": id})
}
