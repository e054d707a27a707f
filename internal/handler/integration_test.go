package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/chaipoint/api/internal/config"
	"github.com/chaipoint/api/internal/enum"
	"github.com/chaipoint/api/internal/poll"
	"github.com/chaipoint/api/internal/router"
	"github.com/chaipoint/api/internal/store"
	"github.com/chaipoint/api/internal/ws"
	"github.com/gorilla/websocket"
	"golang.org/x/crypto/bcrypt"
)

// TestIntegrationFlow exercises the full dine-in lifecycle with every layer
// wired together through the router: real store, real lifecycle engine, real
// auth middleware, real hub. Only the process boundary is an httptest server.
func TestIntegrationFlow(t *testing.T) {
	ctx := context.Background()

	cfg := &config.Config{
		Port:      "8081",
		JWTSecret: testJWTSecret,
	}
	st := store.NewMemoryStore(nil)
	seedStaff(t, ctx, st)

	hub := ws.NewHub()
	// NOTE: hub.Run() goroutine leaks on test exit — Hub has no shutdown
	// mechanism. Acceptable for tests.
	go hub.Run()

	server := httptest.NewServer(router.New(cfg, st, hub))
	defer server.Close()

	// --- 1. Login both staff accounts ---
	managerToken := loginAs(t, server, "manager@chaipoint.in", "password123")
	kitchenToken := loginAs(t, server, "kitchen@chaipoint.in", "password123")

	// --- 2. A customer tab subscribes to order invalidations ---
	conn := dialTopic(t, server, "orders")
	defer conn.Close()
	// Let the hub process the registration before anything broadcasts.
	time.Sleep(50 * time.Millisecond)

	// --- 3. Manager publishes a menu item; anonymous browsing sees it ---
	httpPostJSON(t, server, "/menu", map[string]interface{}{
		"name":     "Masala Chai",
		"price":    30,
		"category": enum.CategoryBeverage,
	}, managerToken)

	menuBody := httpGetRaw(t, server, "/menu", "")
	var menu []map[string]interface{}
	if err := json.Unmarshal(menuBody, &menu); err != nil {
		t.Fatalf("decode menu: %v", err)
	}
	if len(menu) != 1 || menu[0]["name"] != "Masala Chai" {
		t.Fatalf("menu after create: %v", menu)
	}

	// --- 4. Ann orders two chai from her table, no token ---
	submittedItems := []map[string]interface{}{
		{"id": "tea-1", "name": "Masala Chai", "price": 30, "quantity": 2},
	}
	orderResp := httpPostJSON(t, server, "/orders", map[string]interface{}{
		"table_number":  12,
		"customer_name": "Ann",
		"items":         submittedItems,
		"total_amount":  60,
	}, "")
	orderID := orderResp["id"].(string)
	if orderResp["status"] != enum.OrderStatusPending {
		t.Fatalf("new order status: got %v, want PENDING", orderResp["status"])
	}

	// --- 5. Reading the order back returns exactly what was submitted ---
	readBack := httpGetJSON(t, server, "/orders/"+orderID, "")
	if readBack["total_amount"].(float64) != 60 {
		t.Fatalf("total_amount round-trip: got %v, want 60", readBack["total_amount"])
	}
	gotItems := readBack["items"].([]interface{})
	if len(gotItems) != 1 {
		t.Fatalf("items round-trip: got %d items, want 1", len(gotItems))
	}
	gotItem := gotItems[0].(map[string]interface{})
	if gotItem["id"] != "tea-1" || gotItem["name"] != "Masala Chai" ||
		gotItem["price"].(float64) != 30 || gotItem["quantity"].(float64) != 2 {
		t.Fatalf("item round-trip: got %v, want submitted item back unchanged", gotItem)
	}

	// --- 6. Ann's tab polls her order; the board pushes it along ---
	agent := poll.NewAgent()
	updates, unsubscribe := agent.Subscribe(ctx, "order:"+orderID, poll.Source{
		Interval: poll.OrderInterval,
		Fetch: func(ctx context.Context) (interface{}, error) {
			return fetchOrderStatus(ctx, server, orderID)
		},
	})
	defer unsubscribe()
	waitForStatus(t, updates, enum.OrderStatusPending)

	httpPatchJSON(t, server, "/orders/"+orderID, map[string]interface{}{
		"status": enum.OrderStatusPreparing,
	}, kitchenToken)
	agent.Invalidate("order:" + orderID)
	waitForStatus(t, updates, enum.OrderStatusPreparing)

	httpPatchJSON(t, server, "/orders/"+orderID, map[string]interface{}{
		"status": enum.OrderStatusReady,
	}, kitchenToken)
	agent.Invalidate("order:" + orderID)
	waitForStatus(t, updates, enum.OrderStatusReady)

	// --- 7. Ann asks for the bill; the order jumps the kitchen queue ---
	billReq := httpPostJSON(t, server, "/orders/"+orderID+"/bill-request", nil, "")
	if billReq["status"] != enum.OrderStatusBillRequested {
		t.Fatalf("after bill-request: got %v, want BILL_REQUESTED", billReq["status"])
	}

	queue := httpGetJSON(t, server, "/kitchen/queue", kitchenToken)
	queued := queue["orders"].([]interface{})
	if len(queued) != 1 || queued[0].(map[string]interface{})["id"] != orderID {
		t.Fatalf("kitchen queue: got %v, want Ann's order", queued)
	}

	// --- 8. Staff settles: 60 subtotal → 3 tax, 1 service, 64 total ---
	bill := httpPostJSON(t, server, "/bills", map[string]interface{}{
		"order_id": orderID,
	}, kitchenToken)
	if bill["subtotal"].(float64) != 60 || bill["tax"].(float64) != 3 ||
		bill["service"].(float64) != 1 || bill["total"].(float64) != 64 {
		t.Fatalf("bill charges: got %v/%v/%v/%v, want 60/3/1/64",
			bill["subtotal"], bill["tax"], bill["service"], bill["total"])
	}
	billID := bill["id"].(string)

	// Settling again returns the same bill, not a second one.
	again := httpPostJSON(t, server, "/bills", map[string]interface{}{
		"order_id": orderID,
	}, managerToken)
	if again["id"] != billID {
		t.Fatalf("repeat settle: got bill %v, want %v", again["id"], billID)
	}

	fetched := httpGetJSON(t, server, "/bills/"+billID, managerToken)
	if fetched["total"].(float64) != 64 {
		t.Fatalf("stored bill total: got %v, want 64", fetched["total"])
	}

	// --- 9. The order is now COMPLETED and off the queue ---
	final := httpGetJSON(t, server, "/orders/"+orderID, "")
	if final["status"] != enum.OrderStatusCompleted {
		t.Fatalf("final status: got %v, want COMPLETED", final["status"])
	}
	queue = httpGetJSON(t, server, "/kitchen/queue", kitchenToken)
	if len(queue["orders"].([]interface{})) != 0 {
		t.Fatalf("queue after settle: got %v, want empty", queue["orders"])
	}

	// --- 10. The customer tab got push invalidations along the way ---
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, frame, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read invalidation: %v", err)
	}
	var event ws.Event
	if err := json.Unmarshal(bytes.SplitN(frame, []byte{'\n'}, 2)[0], &event); err != nil {
		t.Fatalf("decode invalidation: %v", err)
	}
	if event.Type != enum.EventOrdersUpdated {
		t.Fatalf("invalidation type: got %q, want %q", event.Type, enum.EventOrdersUpdated)
	}

	// --- 11. Manager reads the day's report; kitchen may not ---
	reportBody := httpGetRaw(t, server, "/reports/daily", managerToken)
	var report []map[string]interface{}
	if err := json.Unmarshal(reportBody, &report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if len(report) != 1 || report[0]["bill_count"].(float64) != 1 ||
		report[0]["total_revenue"].(float64) != 64 {
		t.Fatalf("daily report: got %v, want one day with 1 bill totalling 64", report)
	}

	if code := httpGetStatus(t, server, "/reports/daily", kitchenToken); code != http.StatusForbidden {
		t.Fatalf("kitchen reading reports: got %d, want 403", code)
	}
}

// --- Setup helpers ---

func seedStaff(t *testing.T, ctx context.Context, st *store.MemoryStore) {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}

	staff := []store.User{
		{ID: "user-manager", FullName: "Asha Manager", Email: "manager@chaipoint.in", Role: enum.UserRoleManager},
		{ID: "user-kitchen", FullName: "Ravi Kitchen", Email: "kitchen@chaipoint.in", Role: enum.UserRoleKitchen},
	}
	for _, u := range staff {
		u.HashedPassword = string(hash)
		u.CreatedAt = time.Now()
		if _, err := st.CreateUser(ctx, u); err != nil {
			t.Fatalf("seed user %s: %v", u.Email, err)
		}
	}
}

func loginAs(t *testing.T, server *httptest.Server, email, password string) string {
	t.Helper()

	resp := httpPostJSON(t, server, "/auth/login", map[string]interface{}{
		"email":    email,
		"password": password,
	}, "")
	token, ok := resp["access_token"].(string)
	if !ok || token == "" {
		t.Fatalf("login as %s: no access_token in response: %v", email, resp)
	}
	return token
}

func dialTopic(t *testing.T, server *httptest.Server, topics string) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws?topics=" + topics
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("websocket dial: %v", err)
	}
	return conn
}

func fetchOrderStatus(ctx context.Context, server *httptest.Server, orderID string) (interface{}, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL+"/orders/"+orderID, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, err
	}
	return body.Status, nil
}

func waitForStatus(t *testing.T, updates <-chan interface{}, want string) {
	t.Helper()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case v := <-updates:
			if v.(string) == want {
				return
			}
		case <-deadline:
			t.Fatalf("poller never observed status %s", want)
		}
	}
}

// --- HTTP helpers ---

func httpPostJSON(t *testing.T, server *httptest.Server, path string, body interface{}, token string) map[string]interface{} {
	t.Helper()
	return httpSendJSON(t, server, http.MethodPost, path, body, token)
}

func httpPatchJSON(t *testing.T, server *httptest.Server, path string, body interface{}, token string) map[string]interface{} {
	t.Helper()
	return httpSendJSON(t, server, http.MethodPatch, path, body, token)
}

func httpSendJSON(t *testing.T, server *httptest.Server, method, path string, body interface{}, token string) map[string]interface{} {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, server.URL+path, reader)
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp map[string]interface{}
		json.NewDecoder(resp.Body).Decode(&errResp)
		t.Fatalf("%s %s: status %d, body: %v", method, path, resp.StatusCode, errResp)
	}

	var result map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return result
}

func httpGetJSON(t *testing.T, server *httptest.Server, path, token string) map[string]interface{} {
	t.Helper()

	var result map[string]interface{}
	if err := json.Unmarshal(httpGetRaw(t, server, path, token), &result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return result
}

func httpGetRaw(t *testing.T, server *httptest.Server, path, token string) []byte {
	t.Helper()

	req, err := http.NewRequest(http.MethodGet, server.URL+path, nil)
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		t.Fatalf("GET %s: status %d", path, resp.StatusCode)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		t.Fatalf("read response: %v", err)
	}
	return buf.Bytes()
}

func httpGetStatus(t *testing.T, server *httptest.Server, path, token string) int {
	t.Helper()

	req, err := http.NewRequest(http.MethodGet, server.URL+path, nil)
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	resp.Body.Close()
	return resp.StatusCode
}
