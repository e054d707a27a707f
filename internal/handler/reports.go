package handler

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/chaipoint/api/internal/store"
	"github.com/go-chi/chi/v5"
)

// ReportsStore defines the store methods needed by report handlers.
// Satisfied by *store.MemoryStore.
type ReportsStore interface {
	ListBillsBetween(ctx context.Context, start, end time.Time) ([]store.Bill, error)
}

// ReportsHandler handles report endpoints.
type ReportsHandler struct {
	store ReportsStore
}

// NewReportsHandler creates a new ReportsHandler.
func NewReportsHandler(store ReportsStore) *ReportsHandler {
	return &ReportsHandler{store: store}
}

// RegisterRoutes registers report endpoints.
// Expected to be mounted at /reports inside a staff-only group.
func (h *ReportsHandler) RegisterRoutes(r chi.Router) {
	r.Get("/daily", h.Daily)
}

// --- Response types ---

type dailyReportResponse struct {
	Date         string `json:"date"`
	BillCount    int    `json:"bill_count"`
	TotalRevenue int64  `json:"total_revenue"`
	TotalTax     int64  `json:"total_tax"`
	TotalService int64  `json:"total_service"`
	AverageBill  int64  `json:"average_bill"`
}

// --- Handlers ---

// Daily returns per-day billed revenue for a given date range.
func (h *ReportsHandler) Daily(w http.ResponseWriter, r *http.Request) {
	startDate, endDate, err := parseDateRange(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	bills, err := h.store.ListBillsBetween(r.Context(), startDate, endDate)
	if err != nil {
		log.Printf("ERROR: list bills for daily report: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	// Bills come back ordered by creation time, so grouping by day keeps
	// chronological order.
	var resp []dailyReportResponse
	index := map[string]int{}
	for _, b := range bills {
		day := b.CreatedAt.Format("2006-01-02")
		i, ok := index[day]
		if !ok {
			i = len(resp)
			index[day] = i
			resp = append(resp, dailyReportResponse{Date: day})
		}
		resp[i].BillCount++
		resp[i].TotalRevenue += b.Total
		resp[i].TotalTax += b.Tax
		resp[i].TotalService += b.Service
	}
	for i := range resp {
		if resp[i].BillCount > 0 {
			resp[i].AverageBill = resp[i].TotalRevenue / int64(resp[i].BillCount)
		}
	}
	if resp == nil {
		resp = []dailyReportResponse{}
	}

	writeJSON(w, http.StatusOK, resp)
}

// --- Helpers ---

// parseDateRange parses start_date and end_date query params.
// Defaults to last 30 days if not provided.
// Returns (startDate, endDate, error) where endDate is exclusive (next day midnight).
func parseDateRange(r *http.Request) (time.Time, time.Time, error) {
	const layout = "2006-01-02"

	loc := time.Local
	now := time.Now().In(loc)

	// Default: last 30 days (midnight to midnight in local time)
	startDate := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc).AddDate(0, 0, -30)
	endDate := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc).AddDate(0, 0, 1) // next day midnight

	if s := r.URL.Query().Get("start_date"); s != "" {
		t, err := time.ParseInLocation(layout, s, loc)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid start_date format: %w", err)
		}
		startDate = t
	}

	if s := r.URL.Query().Get("end_date"); s != "" {
		t, err := time.ParseInLocation(layout, s, loc)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid end_date format: %w", err)
		}
		// Make end_date exclusive by adding 1 day
		endDate = t.AddDate(0, 0, 1)
	}

	if startDate.After(endDate) || startDate.Equal(endDate) {
		return time.Time{}, time.Time{}, fmt.Errorf("start_date must be before end_date")
	}

	return startDate, endDate, nil
}
