package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"fono/internal/auth"
	"fono/internal/channel"
	apperrors "fono/pkg/errors"
)

type channelAuthRequest struct {
	SocketID    string `json:"socket_id"`
	ChannelName string `json:"channel_name"`
}

type typingRequest struct {
	TargetUserID string `json:"targetUserId"`
	Action       string `json:"action"`
}

// handleChannelAuth signs a subscription for the caller's own private channel
// (or the public one). Denials are a bare 403: the response must not reveal
// what the expected channel name would have been.
func (h *Handler) handleChannelAuth(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, r, apperrors.Unauthorized("user not authenticated"))
		return
	}
	var req channelAuthRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, apperrors.InvalidArg("invalid request body"))
		return
	}

	if !channel.AuthorizeSubscription(principal.UserID, req.ChannelName) {
		slog.Warn("channel subscription denied",
			"user_id", principal.UserID,
			"requested_channel", req.ChannelName,
			"expected_channel", channel.PrivateChannelFor(principal.UserID),
		)
		writeJSON(w, http.StatusForbidden, errorBody{Message: "forbidden"})
		return
	}

	resp, err := h.signer.Authorize(req.SocketID, req.ChannelName)
	if err != nil {
		if err == channel.ErrMissingSocketID {
			writeError(w, r, apperrors.InvalidArg("socket_id is required"))
			return
		}
		writeError(w, r, apperrors.Wrap(apperrors.CodeInternal, "channel authorization failed", err))
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleTyping(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, r, apperrors.Unauthorized("user not authenticated"))
		return
	}
	var req typingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, apperrors.InvalidArg("invalid request body"))
		return
	}

	if err := h.dispatcher.Typing(r.Context(), principal.UserID, req.TargetUserID, req.Action); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "typing " + req.Action + " event sent"})
}
