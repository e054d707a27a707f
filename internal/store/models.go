package store

import "time"

// OrderItem is a single line on an order. Price is in whole currency units.
type OrderItem struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Price    int64  `json:"price"`
	Quantity int    `json:"quantity"`
}

// Order is the authoritative order record. Status is only ever written
// through UpdateOrderStatus; Version increments on every status write so
// concurrent writers can detect interleaving.
type Order struct {
	ID           string      `json:"id"`
	TableNumber  int         `json:"table_number"`
	CustomerName string      `json:"customer_name"`
	Items        []OrderItem `json:"items"`
	TotalAmount  int64       `json:"total_amount"`
	Status       string      `json:"status"`
	Version      int64       `json:"version"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

// Bill is an immutable financial snapshot of an order. It copies the order's
// items rather than referencing them; the originating order is recorded by
// OrderID, which also keys bill idempotency.
type Bill struct {
	ID           string      `json:"id"`
	OrderID      string      `json:"order_id"`
	TableNumber  int         `json:"table_number"`
	CustomerName string      `json:"customer_name"`
	Items        []OrderItem `json:"items"`
	Subtotal     int64       `json:"subtotal"`
	Tax          int64       `json:"tax"`
	Service      int64       `json:"service"`
	Total        int64       `json:"total"`
	CreatedAt    time.Time   `json:"created_at"`
}

// MenuItem is a catalog entry.
type MenuItem struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Price     int64     `json:"price"`
	Category  string    `json:"category"`
	Available bool      `json:"available"`
	UpdatedAt time.Time `json:"updated_at"`
}

// User is a staff or customer account.
type User struct {
	ID             string    `json:"id"`
	FullName       string    `json:"full_name"`
	Email          string    `json:"email"`
	HashedPassword string    `json:"-"`
	Role           string    `json:"role"`
	CreatedAt      time.Time `json:"created_at"`
}
