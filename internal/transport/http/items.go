package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"fono/internal/auth"
	"fono/internal/store"
	apperrors "fono/pkg/errors"
)

type createItemRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

type updateItemRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
}

func (h *Handler) handleListItems(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, r, apperrors.Unauthorized("user not authenticated"))
		return
	}
	items, err := h.store.Items().ListForUser(r.Context(), principal.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *Handler) handleCreateItem(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, r, apperrors.Unauthorized("user not authenticated"))
		return
	}
	var req createItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, apperrors.InvalidArg("invalid request body"))
		return
	}
	if req.Title == "" {
		writeError(w, r, apperrors.InvalidArg("title is required"))
		return
	}
	item := store.Item{UserID: principal.UserID, Title: req.Title, Description: req.Description}
	if err := h.store.Items().Create(r.Context(), &item); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

func (h *Handler) itemIDFromPath(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, apperrors.InvalidArg("invalid item id"))
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) handleGetItem(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, r, apperrors.Unauthorized("user not authenticated"))
		return
	}
	id, ok := h.itemIDFromPath(w, r)
	if !ok {
		return
	}
	item, err := h.store.Items().GetForUser(r.Context(), id, principal.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (h *Handler) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, r, apperrors.Unauthorized("user not authenticated"))
		return
	}
	id, ok := h.itemIDFromPath(w, r)
	if !ok {
		return
	}
	var req updateItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, apperrors.InvalidArg("invalid request body"))
		return
	}
	if req.Title == nil && req.Description == nil {
		writeError(w, r, apperrors.InvalidArg("no fields to update provided"))
		return
	}
	item, err := h.store.Items().UpdateForUser(r.Context(), id, principal.UserID, store.ItemUpdate{
		Title:       req.Title,
		Description: req.Description,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (h *Handler) handleDeleteItem(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, r, apperrors.Unauthorized("user not authenticated"))
		return
	}
	id, ok := h.itemIDFromPath(w, r)
	if !ok {
		return
	}
	if err := h.store.Items().DeleteForUser(r.Context(), id, principal.UserID); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
