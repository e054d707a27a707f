package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chaipoint/api/internal/config"
	"github.com/chaipoint/api/internal/enum"
	"github.com/chaipoint/api/internal/router"
	"github.com/chaipoint/api/internal/store"
	"github.com/chaipoint/api/internal/ws"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

func main() {
	cfg := config.Load()

	// Optional document-store mirror. When configured it must be
	// reachable at startup; shadow writes after that are best-effort.
	var mirror store.Mirror
	if cfg.MirrorURL != "" {
		rm, err := store.NewRedisMirror(cfg.MirrorURL)
		if err != nil {
			log.Fatalf("Invalid mirror URL: %v", err)
		}
		waitCtx, cancel := context.WithTimeout(context.Background(), cfg.MirrorGrace)
		if err := rm.WaitReady(waitCtx); err != nil {
			log.Fatalf("Mirror not ready after %s: %v", cfg.MirrorGrace, err)
		}
		cancel()
		defer rm.Close()
		mirror = rm
		log.Println("Connected to mirror store")
	}

	st := store.NewMemoryStore(mirror)
	if err := seed(context.Background(), st); err != nil {
		log.Fatalf("Failed to seed store: %v", err)
	}

	hub := ws.NewHub()
	go hub.Run()

	r := router.New(cfg, st, hub)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Printf("Starting server on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("ERROR: shutdown: %v", err)
	}
}

// seed loads the default staff accounts and opening menu. The store is
// in-memory, so every boot starts from this baseline.
func seed(ctx context.Context, st *store.MemoryStore) error {
	users := []struct {
		fullName string
		email    string
		password string
		role     string
	}{
		{"Asha Manager", getenv("SEED_MANAGER_EMAIL", "manager@chaipoint.in"), getenv("SEED_MANAGER_PASSWORD", "password123"), enum.UserRoleManager},
		{"Ravi Kitchen", getenv("SEED_KITCHEN_EMAIL", "kitchen@chaipoint.in"), getenv("SEED_KITCHEN_PASSWORD", "password123"), enum.UserRoleKitchen},
	}
	if os.Getenv("SEED_MANAGER_PASSWORD") == "" {
		log.Println("WARNING: Using default password 'password123'. Change immediately in production!")
	}

	now := time.Now()
	for _, u := range users {
		hashed, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			return err
		}
		if _, err := st.CreateUser(ctx, store.User{
			ID:             uuid.NewString(),
			FullName:       u.fullName,
			Email:          u.email,
			HashedPassword: string(hashed),
			Role:           u.role,
			CreatedAt:      now,
		}); err != nil {
			return err
		}
	}

	menu := []store.MenuItem{
		{ID: "tea-1", Name: "Masala Chai", Price: 30, Category: enum.CategoryBeverage},
		{ID: "tea-2", Name: "Ginger Chai", Price: 35, Category: enum.CategoryBeverage},
		{ID: "cof-1", Name: "Filter Coffee", Price: 40, Category: enum.CategoryBeverage},
		{ID: "snk-1", Name: "Samosa", Price: 25, Category: enum.CategorySnack},
		{ID: "snk-2", Name: "Vada Pav", Price: 35, Category: enum.CategorySnack},
		{ID: "dst-1", Name: "Gulab Jamun", Price: 50, Category: enum.CategoryDessert},
	}
	for _, item := range menu {
		item.Available = true
		item.UpdatedAt = now
		if _, err := st.UpsertMenuItem(ctx, item); err != nil {
			return err
		}
	}

	log.Printf("Seeded %d users and %d menu items", len(users), len(menu))
	return nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
