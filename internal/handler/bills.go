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

// BillServicer defines the lifecycle engine methods needed by bill handlers.
// Satisfied by *service.OrderService.
type BillServicer interface {
	GenerateBill(ctx context.Context, orderID string) (store.Bill, error)
}

// BillReader defines the store read methods needed by bill handlers.
// Satisfied by *store.MemoryStore.
type BillReader interface {
	GetBill(ctx context.Context, id string) (store.Bill, error)
}

// BillHandler handles bill endpoints.
type BillHandler struct {
	svc   BillServicer
	store BillReader
	bus   Notifier
}

// NewBillHandler creates a new BillHandler.
func NewBillHandler(svc BillServicer, store BillReader, bus Notifier) *BillHandler {
	return &BillHandler{svc: svc, store: store, bus: bus}
}

// RegisterRoutes registers bill endpoints on the given Chi router.
// Expected to be mounted at /bills inside an authenticated group.
func (h *BillHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.Generate)
	r.Get("/{id}", h.Get)
}

// --- Request / Response types ---

type generateBillRequest struct {
	OrderID string `json:"order_id"`
}

type billResponse struct {
	ID           string              `json:"id"`
	OrderID      string              `json:"order_id"`
	TableNumber  int                 `json:"table_number"`
	CustomerName string              `json:"customer_name"`
	Items        []orderItemResponse `json:"items"`
	Subtotal     int64               `json:"subtotal"`
	Tax          int64               `json:"tax"`
	Service      int64               `json:"service"`
	Total        int64               `json:"total"`
	CreatedAt    int64               `json:"created_at"` // epoch ms
}

// --- Handlers ---

// Generate handles POST /bills. Generating a bill completes the order;
// repeating the call for the same order returns the existing bill unchanged.
func (h *BillHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req generateBillRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.OrderID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "order_id is required"})
		return
	}

	bill, err := h.svc.GenerateBill(r.Context(), req.OrderID)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
		case errors.Is(err, service.ErrOrderNotBillable), errors.Is(err, service.ErrOrderCompleted):
			writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		default:
			log.Printf("ERROR: generate bill: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		}
		return
	}

	h.bus.Broadcast(enum.TopicOrders, ws.Event{Type: enum.EventOrdersUpdated})
	h.bus.Broadcast(enum.TopicReports, ws.Event{Type: enum.EventReportsUpdated})
	writeJSON(w, http.StatusOK, toBillResponse(bill))
}

// Get handles GET /bills/{id}.
func (h *BillHandler) Get(w http.ResponseWriter, r *http.Request) {
	bill, err := h.store.GetBill(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "bill not found"})
			return
		}
		log.Printf("ERROR: get bill: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toBillResponse(bill))
}

// --- Helpers ---

func toBillResponse(b store.Bill) billResponse {
	items := make([]orderItemResponse, len(b.Items))
	for i, item := range b.Items {
		items[i] = orderItemResponse(item)
	}
	return billResponse{
		ID:           b.ID,
		OrderID:      b.OrderID,
		TableNumber:  b.TableNumber,
		CustomerName: b.CustomerName,
		Items:        items,
		Subtotal:     b.Subtotal,
		Tax:          b.Tax,
		Service:      b.Service,
		Total:        b.Total,
		CreatedAt:    b.CreatedAt.UnixMilli(),
	}
}
