package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/erazemk/itemapi/internal/model"
	"github.com/erazemk/itemapi/internal/store"
)

// ItemStore is the persistence the item endpoints need.
type ItemStore interface {
	List(ctx context.Context) ([]model.Item, error)
	Get(ctx context.Context, id int64) (*model.Item, error)
	Create(ctx context.Context, fields model.ItemFields) (*model.Item, error)
	Update(ctx context.Context, id int64, fields model.ItemFields) (*model.Item, error)
	Delete(ctx context.Context, id int64) error
}

// ItemsHandler handles item CRUD endpoints.
type ItemsHandler struct {
	Store ItemStore
}

// List handles GET /items.
func (h *ItemsHandler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.Store.List(r.Context())
	if err != nil {
		storageError(w, r, "Failed to retrieve items", err)
		return
	}
	if items == nil {
		items = []model.Item{}
	}
	jsonResponse(w, http.StatusOK, items)
}

// Create handles POST /items.
func (h *ItemsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var fields model.ItemFields
	if err := decodeJSON(w, r, &fields); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	item, err := h.Store.Create(r.Context(), fields)
	if err != nil {
		if writeValidation(w, err) {
			return
		}
		storageError(w, r, "Failed to create the item", err)
		return
	}

	jsonResponse(w, http.StatusCreated, item)
}

// Get handles GET /items/{id}.
func (h *ItemsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := itemID(w, r)
	if !ok {
		return
	}

	item, err := h.Store.Get(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		jsonError(w, http.StatusNotFound, "Item not found")
		return
	}
	if err != nil {
		storageError(w, r, "Failed to retrieve the item", err, "id", id)
		return
	}

	jsonResponse(w, http.StatusOK, item)
}

// Update handles PUT /items/{id}.
func (h *ItemsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := itemID(w, r)
	if !ok {
		return
	}

	var fields model.ItemFields
	if err := decodeJSON(w, r, &fields); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	item, err := h.Store.Update(r.Context(), id, fields)
	if errors.Is(err, store.ErrNotFound) {
		jsonError(w, http.StatusNotFound, "Item not found")
		return
	}
	if err != nil {
		if writeValidation(w, err) {
			return
		}
		storageError(w, r, "Failed to update the item", err, "id", id)
		return
	}

	jsonResponse(w, http.StatusOK, item)
}

// Delete handles DELETE /items/{id}.
func (h *ItemsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := itemID(w, r)
	if !ok {
		return
	}

	err := h.Store.Delete(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		jsonError(w, http.StatusNotFound, "Item not found")
		return
	}
	if err != nil {
		storageError(w, r, "Failed to delete the item", err, "id", id)
		return
	}

	jsonResponse(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("Item with id %d deleted successfully.", id),
	})
}

// itemID parses the {id} path value, writing a 400 when it is not an integer.
func itemID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return 0, false
	}
	return id, true
}

// writeValidation writes a 400 listing every problem if err is a validation
// failure, and reports whether it did.
func writeValidation(w http.ResponseWriter, err error) bool {
	var verr *store.ValidationError
	if !errors.As(err, &verr) {
		return false
	}
	jsonErrors(w, http.StatusBadRequest, verr.Messages)
	return true
}

// storageError logs an unexpected failure and answers with a generic 500.
func storageError(w http.ResponseWriter, r *http.Request, message string, err error, attrs ...any) {
	ctx := r.Context()
	args := append([]any{"request_id", RequestID(ctx), "error", err}, attrs...)
	slog.ErrorContext(ctx, message, args...)
	jsonError(w, http.StatusInternalServerError, message)
}
