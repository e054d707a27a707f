package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chaipoint/api/internal/enum"
	"github.com/chaipoint/api/internal/poll"
	"github.com/gorilla/websocket"
)

// Kitchen terminal: polls the queue and the menu on fixed intervals and
// listens for push invalidations to refetch immediately when one changes.

type loginResponse struct {
	AccessToken string `json:"access_token"`
}

type queueResponse struct {
	Orders []struct {
		ID           string `json:"id"`
		TableNumber  int    `json:"table_number"`
		CustomerName string `json:"customer_name"`
		Status       string `json:"status"`
		TotalAmount  int64  `json:"total_amount"`
	} `json:"orders"`
}

type menuItem struct {
	Name      string `json:"name"`
	Price     int64  `json:"price"`
	Category  string `json:"category"`
	Available bool   `json:"available"`
}

func main() {
	baseURL := flag.String("url", getenv("API_URL", "http://localhost:8080"), "API base URL")
	wsURL := flag.String("ws", getenv("WS_URL", "ws://localhost:8080/ws"), "WebSocket base URL")
	email := flag.String("email", getenv("KITCHEN_EMAIL", "kitchen@chaipoint.in"), "Staff email")
	password := flag.String("password", getenv("KITCHEN_PASSWORD", "password123"), "Staff password")
	flag.Parse()

	token, err := login(*baseURL, *email, *password)
	if err != nil {
		log.Fatalf("Login failed: %v", err)
	}
	log.Println("Logged in")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	agent := poll.NewAgent()
	updates, unsubscribe := agent.Subscribe(ctx, "kitchen-queue", poll.Source{
		Interval: poll.QueueInterval,
		Fetch: func(ctx context.Context) (interface{}, error) {
			return fetchQueue(ctx, *baseURL, token)
		},
	})
	defer unsubscribe()

	// The menu board refreshes on a slower cadence; 86'd items matter to
	// the kitchen too.
	menuUpdates, unsubMenu := agent.Subscribe(ctx, "kitchen-menu", poll.Source{
		Interval: poll.MenuInterval,
		Fetch: func(ctx context.Context) (interface{}, error) {
			return fetchMenu(ctx, *baseURL)
		},
	})
	defer unsubMenu()

	// Push channel: an invalidation event forces an immediate refetch, so
	// neither board waits out a full poll interval after a change.
	go listenInvalidations(ctx, *wsURL, token, func(eventType string) {
		switch eventType {
		case enum.EventOrdersUpdated:
			agent.Invalidate("kitchen-queue")
		case enum.EventMenuUpdated:
			agent.Invalidate("kitchen-menu")
		}
	})

	for {
		select {
		case <-ctx.Done():
			log.Println("Shutting down...")
			return
		case v, ok := <-updates:
			if !ok {
				return
			}
			render(v.(queueResponse))
		case v, ok := <-menuUpdates:
			if !ok {
				return
			}
			renderMenu(v.([]menuItem))
		}
	}
}

func login(baseURL, email, password string) (string, error) {
	body, _ := json.Marshal(map[string]string{"email": email, "password": password})
	resp, err := http.Post(baseURL+"/auth/login", "application/json", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("login returned %d", resp.StatusCode)
	}

	var lr loginResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return "", err
	}
	return lr.AccessToken, nil
}

func fetchQueue(ctx context.Context, baseURL, token string) (queueResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/kitchen/queue", nil)
	if err != nil {
		return queueResponse{}, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return queueResponse{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return queueResponse{}, fmt.Errorf("queue returned %d", resp.StatusCode)
	}

	var qr queueResponse
	if err := json.NewDecoder(resp.Body).Decode(&qr); err != nil {
		return queueResponse{}, err
	}
	return qr, nil
}

// fetchMenu loads the catalog; no token needed, browsing is public.
func fetchMenu(ctx context.Context, baseURL string) ([]menuItem, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/menu", nil)
	if err != nil {
		return nil, err
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("menu returned %d", resp.StatusCode)
	}

	var items []menuItem
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		return nil, err
	}
	return items, nil
}

// listenInvalidations keeps a WebSocket subscription to the orders and menu
// topics alive, reconnecting with a flat backoff when the server goes away.
// The hub batches queued events into one frame separated by newlines.
func listenInvalidations(ctx context.Context, wsURL, token string, onEvent func(eventType string)) {
	url := wsURL + "?topics=orders,menu&token=" + token
	for ctx.Err() == nil {
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
		if err != nil {
			log.Printf("WARN: websocket dial: %v", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(5 * time.Second):
			}
			continue
		}

		go func() {
			<-ctx.Done()
			conn.Close()
		}()

		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				conn.Close()
				break
			}
			for _, line := range bytes.Split(msg, []byte{'\n'}) {
				var ev struct {
					Type string `json:"type"`
				}
				if json.Unmarshal(line, &ev) == nil && ev.Type != "" {
					onEvent(ev.Type)
				}
			}
		}
	}
}

func render(q queueResponse) {
	fmt.Printf("\n=== Kitchen queue (%s) ===\n", time.Now().Format("15:04:05"))
	if len(q.Orders) == 0 {
		fmt.Println("(empty)")
		return
	}
	for _, o := range q.Orders {
		fmt.Printf("  table %2d  %-14s  %-8s  %s\n", o.TableNumber, o.Status, fmt.Sprintf("Rs %d", o.TotalAmount), o.CustomerName)
	}
}

func renderMenu(items []menuItem) {
	fmt.Printf("\n=== Menu (%s) ===\n", time.Now().Format("15:04:05"))
	for _, it := range items {
		mark := " "
		if !it.Available {
			mark = "x"
		}
		fmt.Printf("  [%s] %-16s  Rs %d\n", mark, it.Name, it.Price)
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
