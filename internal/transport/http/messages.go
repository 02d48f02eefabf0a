package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"fono/internal/auth"
	"fono/internal/service"
	apperrors "fono/pkg/errors"
)

type sendMessageRequest struct {
	ReceiverID  *string `json:"receiverId"`
	Content     string  `json:"content"`
	MessageType string  `json:"messageType"`
}

// sendMessageResponse mirrors the insert's RETURNING set: metadata only, no
// ciphertext and no plaintext.
type sendMessageResponse struct {
	ID          string    `json:"id"`
	SenderID    string    `json:"senderId"`
	ReceiverID  *string   `json:"receiverId"`
	MessageType string    `json:"messageType"`
	CreatedAt   time.Time `json:"createdAt"`
	ReadStatus  bool      `json:"readStatus"`
}

func (h *Handler) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, r, apperrors.Unauthorized("sender not authenticated"))
		return
	}
	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, apperrors.InvalidArg("invalid request body"))
		return
	}

	msg, err := h.messages.Send(r.Context(), principal, service.SendInput{
		ReceiverID:  req.ReceiverID,
		Content:     req.Content,
		MessageType: req.MessageType,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, sendMessageResponse{
		ID:          msg.ID.String(),
		SenderID:    msg.SenderID,
		ReceiverID:  msg.ReceiverID,
		MessageType: msg.MessageType,
		CreatedAt:   msg.CreatedAt,
		ReadStatus:  msg.ReadStatus,
	})
}

func (h *Handler) handleListMessages(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, r, apperrors.Unauthorized("user not authenticated"))
		return
	}

	var peerID *string
	if p := r.URL.Query().Get("participantId"); p != "" {
		peerID = &p
	}
	includeDeleted := false
	switch r.URL.Query().Get("includeDeleted") {
	case "true", "1":
		includeDeleted = true
	}

	list, err := h.messages.List(r.Context(), principal, peerID, includeDeleted)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) messageIDFromPath(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, apperrors.InvalidArg("invalid message id"))
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) handleSoftDeleteMessage(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, r, apperrors.Unauthorized("user not authenticated"))
		return
	}
	id, ok := h.messageIDFromPath(w, r)
	if !ok {
		return
	}
	if err := h.messages.SoftDelete(r.Context(), principal, id); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "message deleted"})
}

func (h *Handler) handleRestoreMessage(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, r, apperrors.Unauthorized("user not authenticated"))
		return
	}
	id, ok := h.messageIDFromPath(w, r)
	if !ok {
		return
	}
	if err := h.messages.Restore(r.Context(), principal, id); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "message restored"})
}

func (h *Handler) handlePurgeMessage(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, r, apperrors.Unauthorized("user not authenticated"))
		return
	}
	id, ok := h.messageIDFromPath(w, r)
	if !ok {
		return
	}
	if err := h.messages.HardDelete(r.Context(), principal, id); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "message permanently deleted"})
}
