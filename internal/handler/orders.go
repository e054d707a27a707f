package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/chaipoint/api/internal/enum"
	"github.com/chaipoint/api/internal/service"
	"github.com/chaipoint/api/internal/store"
	"github.com/chaipoint/api/internal/ws"
	"github.com/go-chi/chi/v5"
)

// OrderServicer defines the lifecycle engine methods needed by order
// handlers. Satisfied by *service.OrderService; narrow interface for
// testability.
type OrderServicer interface {
	CreateOrder(ctx context.Context, req service.CreateOrderRequest) (store.Order, error)
	Transition(ctx context.Context, orderID, next string) (store.Order, error)
	RequestBill(ctx context.Context, orderID string) (store.Order, error)
}

// OrderReader defines the store read methods needed by order handlers.
// Satisfied by *store.MemoryStore.
type OrderReader interface {
	GetOrder(ctx context.Context, id string) (store.Order, error)
	ListOrders(ctx context.Context) ([]store.Order, error)
	ListActiveOrders(ctx context.Context) ([]store.Order, error)
}

// Notifier publishes invalidation events. Satisfied by *ws.Hub.
type Notifier interface {
	Broadcast(topic string, event ws.Event)
}

// OrderHandler handles order endpoints.
type OrderHandler struct {
	svc   OrderServicer
	store OrderReader
	bus   Notifier
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(svc OrderServicer, store OrderReader, bus Notifier) *OrderHandler {
	return &OrderHandler{svc: svc, store: store, bus: bus}
}

// RegisterPublicRoutes registers the customer-facing order endpoints.
// Expected to be mounted at /orders.
func (h *OrderHandler) RegisterPublicRoutes(r chi.Router) {
	r.Post("/", h.Create)
	r.Get("/{id}", h.Get)
	r.Post("/{id}/bill-request", h.RequestBill)
}

// RegisterStaffRoutes registers the kitchen/manager order endpoints.
// Expected to be mounted at /orders inside an authenticated group.
func (h *OrderHandler) RegisterStaffRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Patch("/{id}", h.UpdateStatus)
}

// --- Request / Response types ---

type orderItemRequest struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Price    int64  `json:"price"`
	Quantity int    `json:"quantity"`
}

type createOrderRequest struct {
	TableNumber  int                `json:"table_number"`
	CustomerName string             `json:"customer_name"`
	Items        []orderItemRequest `json:"items"`
	TotalAmount  int64              `json:"total_amount"`
	// Status is accepted for wire compatibility and deliberately ignored:
	// new orders are always PENDING.
	Status string `json:"status"`
}

type orderItemResponse struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Price    int64  `json:"price"`
	Quantity int    `json:"quantity"`
}

type orderResponse struct {
	ID           string              `json:"id"`
	TableNumber  int                 `json:"table_number"`
	CustomerName string              `json:"customer_name"`
	Items        []orderItemResponse `json:"items"`
	TotalAmount  int64               `json:"total_amount"`
	Status       string              `json:"status"`
	CreatedAt    int64               `json:"created_at"` // epoch ms
	UpdatedAt    int64               `json:"updated_at"` // epoch ms
}

type orderListResponse struct {
	Orders []orderResponse `json:"orders"`
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

// --- Handlers ---

// Create handles POST /orders.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	items := make([]store.OrderItem, len(req.Items))
	for i, item := range req.Items {
		items[i] = store.OrderItem{
			ID:       item.ID,
			Name:     item.Name,
			Price:    item.Price,
			Quantity: item.Quantity,
		}
	}

	order, err := h.svc.CreateOrder(r.Context(), service.CreateOrderRequest{
		TableNumber:  req.TableNumber,
		CustomerName: req.CustomerName,
		Items:        items,
		TotalAmount:  req.TotalAmount,
	})
	if err != nil {
		if isOrderValidationError(err) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		log.Printf("ERROR: create order: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	h.bus.Broadcast(enum.TopicOrders, ws.Event{Type: enum.EventOrdersUpdated})
	writeJSON(w, http.StatusCreated, toOrderResponse(order))
}

// Get handles GET /orders/{id}.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	order, err := h.store.GetOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
			return
		}
		log.Printf("ERROR: get order: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

// List handles GET /orders.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	orders, err := h.store.ListOrders(r.Context())
	if err != nil {
		log.Printf("ERROR: list orders: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toOrderListResponse(orders))
}

// Queue handles GET /kitchen/queue: active orders with BILL_REQUESTED
// first, oldest first within each priority group.
func (h *OrderHandler) Queue(w http.ResponseWriter, r *http.Request) {
	orders, err := h.store.ListActiveOrders(r.Context())
	if err != nil {
		log.Printf("ERROR: list active orders: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toOrderListResponse(orders))
}

// UpdateStatus handles PATCH /orders/{id}.
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.Status == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "status is required"})
		return
	}

	order, err := h.svc.Transition(r.Context(), chi.URLParam(r, "id"), req.Status)
	if err != nil {
		h.writeTransitionError(w, err, "update order status")
		return
	}

	h.bus.Broadcast(enum.TopicOrders, ws.Event{Type: enum.EventOrdersUpdated})
	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

// RequestBill handles POST /orders/{id}/bill-request: the customer asks for
// the bill on a READY order.
func (h *OrderHandler) RequestBill(w http.ResponseWriter, r *http.Request) {
	order, err := h.svc.RequestBill(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeTransitionError(w, err, "request bill")
		return
	}

	h.bus.Broadcast(enum.TopicOrders, ws.Event{Type: enum.EventOrdersUpdated})
	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

// --- Helpers ---

func (h *OrderHandler) writeTransitionError(w http.ResponseWriter, err error, op string) {
	var invalid *service.InvalidTransitionError
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
	case errors.Is(err, service.ErrInvalidStatus):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.As(err, &invalid):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case errors.Is(err, store.ErrStatusConflict):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "order status changed, please retry"})
	default:
		log.Printf("ERROR: %s: %v", op, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}

func isOrderValidationError(err error) bool {
	return errors.Is(err, service.ErrEmptyItems) ||
		errors.Is(err, service.ErrInvalidQuantity) ||
		errors.Is(err, service.ErrInvalidPrice) ||
		errors.Is(err, service.ErrInvalidTable)
}

func toOrderResponse(o store.Order) orderResponse {
	items := make([]orderItemResponse, len(o.Items))
	for i, item := range o.Items {
		items[i] = orderItemResponse(item)
	}
	return orderResponse{
		ID:           o.ID,
		TableNumber:  o.TableNumber,
		CustomerName: o.CustomerName,
		Items:        items,
		TotalAmount:  o.TotalAmount,
		Status:       o.Status,
		CreatedAt:    o.CreatedAt.UnixMilli(),
		UpdatedAt:    o.UpdatedAt.UnixMilli(),
	}
}

func toOrderListResponse(orders []store.Order) orderListResponse {
	resp := make([]orderResponse, len(orders))
	for i, o := range orders {
		resp[i] = toOrderResponse(o)
	}
	return orderListResponse{Orders: resp}
}
