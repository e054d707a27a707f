package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/chaipoint/api/internal/enum"
	"github.com/chaipoint/api/internal/store"
	"github.com/chaipoint/api/internal/ws"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// MenuStore defines the store methods needed by menu handlers.
// Satisfied by *store.MemoryStore.
type MenuStore interface {
	UpsertMenuItem(ctx context.Context, item store.MenuItem) (store.MenuItem, error)
	GetMenuItem(ctx context.Context, id string) (store.MenuItem, error)
	ListMenu(ctx context.Context) ([]store.MenuItem, error)
	DeleteMenuItem(ctx context.Context, id string) error
}

// MenuHandler handles catalog endpoints. The menu is a plain read/write
// collaborator: no lifecycle semantics, but every mutation broadcasts a
// menu-updated invalidation so browsing tabs refetch out of band.
type MenuHandler struct {
	store MenuStore
	bus   Notifier
}

// NewMenuHandler creates a new MenuHandler.
func NewMenuHandler(store MenuStore, bus Notifier) *MenuHandler {
	return &MenuHandler{store: store, bus: bus}
}

// RegisterPublicRoutes registers the read-only catalog endpoint.
func (h *MenuHandler) RegisterPublicRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
}

// RegisterManagerRoutes registers the catalog mutation endpoints.
// Expected to be mounted inside a MANAGER-only group.
func (h *MenuHandler) RegisterManagerRoutes(r chi.Router) {
	r.Post("/", h.Create)
	r.Put("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
}

// --- Request / Response types ---

type menuItemRequest struct {
	Name      string `json:"name"`
	Price     int64  `json:"price"`
	Category  string `json:"category"`
	Available *bool  `json:"available"`
}

type menuItemResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Price     int64  `json:"price"`
	Category  string `json:"category"`
	Available bool   `json:"available"`
	UpdatedAt int64  `json:"updated_at"` // epoch ms
}

// --- Handlers ---

// List handles GET /menu.
func (h *MenuHandler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.store.ListMenu(r.Context())
	if err != nil {
		log.Printf("ERROR: list menu: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]menuItemResponse, len(items))
	for i, item := range items {
		resp[i] = toMenuItemResponse(item)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Get handles GET /menu/{id}.
func (h *MenuHandler) Get(w http.ResponseWriter, r *http.Request) {
	item, err := h.store.GetMenuItem(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "menu item not found"})
			return
		}
		log.Printf("ERROR: get menu item: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toMenuItemResponse(item))
}

// Create handles POST /menu.
func (h *MenuHandler) Create(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeMenuItemRequest(w, r)
	if !ok {
		return
	}

	available := true
	if req.Available != nil {
		available = *req.Available
	}

	item, err := h.store.UpsertMenuItem(r.Context(), store.MenuItem{
		ID:        uuid.NewString(),
		Name:      req.Name,
		Price:     req.Price,
		Category:  req.Category,
		Available: available,
		UpdatedAt: time.Now(),
	})
	if err != nil {
		log.Printf("ERROR: create menu item: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	h.bus.Broadcast(enum.TopicMenu, ws.Event{Type: enum.EventMenuUpdated})
	writeJSON(w, http.StatusCreated, toMenuItemResponse(item))
}

// Update handles PUT /menu/{id}.
func (h *MenuHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	existing, err := h.store.GetMenuItem(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "menu item not found"})
			return
		}
		log.Printf("ERROR: get menu item for update: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	req, ok := decodeMenuItemRequest(w, r)
	if !ok {
		return
	}

	available := existing.Available
	if req.Available != nil {
		available = *req.Available
	}

	item, err := h.store.UpsertMenuItem(r.Context(), store.MenuItem{
		ID:        id,
		Name:      req.Name,
		Price:     req.Price,
		Category:  req.Category,
		Available: available,
		UpdatedAt: time.Now(),
	})
	if err != nil {
		log.Printf("ERROR: update menu item: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	h.bus.Broadcast(enum.TopicMenu, ws.Event{Type: enum.EventMenuUpdated})
	writeJSON(w, http.StatusOK, toMenuItemResponse(item))
}

// Delete handles DELETE /menu/{id}.
func (h *MenuHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DeleteMenuItem(r.Context(), chi.URLParam(r, "id")); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "menu item not found"})
			return
		}
		log.Printf("ERROR: delete menu item: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	h.bus.Broadcast(enum.TopicMenu, ws.Event{Type: enum.EventMenuUpdated})
	w.WriteHeader(http.StatusNoContent)
}

// --- Helpers ---

func decodeMenuItemRequest(w http.ResponseWriter, r *http.Request) (menuItemRequest, bool) {
	var req menuItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return req, false
	}
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return req, false
	}
	if req.Price < 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "price must be >= 0"})
		return req, false
	}
	return req, true
}

func toMenuItemResponse(item store.MenuItem) menuItemResponse {
	return menuItemResponse{
		ID:        item.ID,
		Name:      item.Name,
		Price:     item.Price,
		Category:  item.Category,
		Available: item.Available,
		UpdatedAt: item.UpdatedAt.UnixMilli(),
	}
}
