package http

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"fono/internal/auth"
	"fono/internal/store"
	apperrors "fono/pkg/errors"
)

type updateProfileRequest struct {
	DisplayName   *string `json:"display_name"`
	AvatarURL     *string `json:"avatar_url"`
	StatusMessage *string `json:"status_message"`
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

func (h *Handler) handleListUsers(w http.ResponseWriter, r *http.Request) {
	profiles, err := h.store.Profiles().List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profiles)
}

// handleMe returns the caller's profile, creating it from token claims on
// first contact.
func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, r, apperrors.Unauthorized("user not authenticated"))
		return
	}

	email := principal.StringClaim("email")
	if email == "" {
		safe := strings.NewReplacer("|", "-", ".", "-").Replace(principal.UserID)
		email = safe + "@fono.local"
	}
	displayName := principal.StringClaim("name")
	if displayName == "" {
		displayName = principal.StringClaim("nickname")
	}
	if displayName == "" {
		displayName = strings.SplitN(email, "@", 2)[0]
	}
	var avatar *string
	if picture := principal.StringClaim("picture"); picture != "" {
		avatar = &picture
	}

	profile, err := h.store.Profiles().GetOrCreate(r.Context(), &store.UserProfile{
		UserID:      principal.UserID,
		Email:       email,
		DisplayName: displayName,
		AvatarURL:   avatar,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (h *Handler) handleGetUser(w http.ResponseWriter, r *http.Request) {
	// Identity-provider subjects contain '|', so the path segment arrives
	// percent-encoded.
	userID, err := url.PathUnescape(chi.URLParam(r, "userId"))
	if err != nil {
		writeError(w, r, apperrors.InvalidArg("invalid user id"))
		return
	}
	profile, err := h.store.Profiles().Get(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (h *Handler) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, r, apperrors.Unauthorized("user not authenticated"))
		return
	}
	var req updateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, apperrors.InvalidArg("invalid request body"))
		return
	}
	profile, err := h.store.Profiles().UpdateProfile(r.Context(), principal.UserID, store.ProfileUpdate{
		DisplayName:   req.DisplayName,
		AvatarURL:     req.AvatarURL,
		StatusMessage: req.StatusMessage,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (h *Handler) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, r, apperrors.Unauthorized("user not authenticated"))
		return
	}
	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, apperrors.InvalidArg("invalid request body"))
		return
	}
	profile, err := h.store.Profiles().UpdateStatus(r.Context(), principal.UserID, req.Status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}
