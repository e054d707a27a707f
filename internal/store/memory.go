package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/chaipoint/api/internal/enum"
)

// MemoryStore is the authoritative in-process store. All reads hand out
// copies so callers can never alias internal state; all status writes go
// through a compare-and-swap so a read-then-write pair from two concurrent
// requests cannot both win.
//
// When a Mirror is configured every successful write is shadow-written to it
// asynchronously. Mirror failures are logged and never affect the in-memory
// result.
type MemoryStore struct {
	mu sync.RWMutex

	orders      map[string]*Order
	bills       map[string]*Bill
	billByOrder map[string]string
	menu        map[string]*MenuItem
	usersByID   map[string]*User
	emailIndex  map[string]string

	mirror Mirror
}

// NewMemoryStore creates an empty store. mirror may be nil.
func NewMemoryStore(mirror Mirror) *MemoryStore {
	return &MemoryStore{
		orders:      make(map[string]*Order),
		bills:       make(map[string]*Bill),
		billByOrder: make(map[string]string),
		menu:        make(map[string]*MenuItem),
		usersByID:   make(map[string]*User),
		emailIndex:  make(map[string]string),
		mirror:      mirror,
	}
}

// --- Orders ---

// CreateOrder inserts a new order. The caller (the lifecycle engine) is
// responsible for ID, status, and timestamps.
func (s *MemoryStore) CreateOrder(ctx context.Context, o Order) (Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.orders[o.ID]; exists {
		return Order{}, ErrDuplicate
	}
	stored := copyOrder(&o)
	s.orders[o.ID] = stored

	out := copyOrder(stored)
	shadowWrite(s.mirror, "order:"+o.ID, *out)
	return *out, nil
}

// GetOrder returns the order with the given ID.
func (s *MemoryStore) GetOrder(ctx context.Context, id string) (Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.orders[id]
	if !ok {
		return Order{}, ErrNotFound
	}
	return *copyOrder(o), nil
}

// ListOrders returns every order, oldest first.
func (s *MemoryStore) ListOrders(ctx context.Context) ([]Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Order, 0, len(s.orders))
	for _, o := range s.orders {
		out = append(out, *copyOrder(o))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// ListActiveOrders returns the kitchen queue: every order that is not yet
// COMPLETED, with BILL_REQUESTED orders ahead of everything else and ties
// broken by ascending creation time (oldest first).
func (s *MemoryStore) ListActiveOrders(ctx context.Context) ([]Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Order, 0)
	for _, o := range s.orders {
		if o.Status == enum.OrderStatusCompleted {
			continue
		}
		out = append(out, *copyOrder(o))
	}
	sort.Slice(out, func(i, j int) bool {
		pi := out[i].Status == enum.OrderStatusBillRequested
		pj := out[j].Status == enum.OrderStatusBillRequested
		if pi != pj {
			return pi
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// UpdateOrderStatus moves an order to next only if its current status still
// equals expect. Returns ErrStatusConflict when another writer got there
// first; the caller re-reads and decides whether to retry.
func (s *MemoryStore) UpdateOrderStatus(ctx context.Context, id, expect, next string) (Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[id]
	if !ok {
		return Order{}, ErrNotFound
	}
	if o.Status != expect {
		return Order{}, ErrStatusConflict
	}
	o.Status = next
	o.Version++
	o.UpdatedAt = time.Now()

	out := copyOrder(o)
	shadowWrite(s.mirror, "order:"+id, *out)
	return *out, nil
}

// --- Bills ---

// SaveBill inserts a bill keyed by its order ID. If a bill for the same
// order already exists the existing bill is returned and created is false;
// the insert is atomic, so two concurrent callers can never both create one.
func (s *MemoryStore) SaveBill(ctx context.Context, b Bill) (Bill, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existingID, ok := s.billByOrder[b.OrderID]; ok {
		return *copyBill(s.bills[existingID]), false, nil
	}
	stored := copyBill(&b)
	s.bills[b.ID] = stored
	s.billByOrder[b.OrderID] = b.ID

	out := copyBill(stored)
	shadowWrite(s.mirror, "bill:"+b.ID, *out)
	return *out, true, nil
}

// GetBill returns the bill with the given ID.
func (s *MemoryStore) GetBill(ctx context.Context, id string) (Bill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.bills[id]
	if !ok {
		return Bill{}, ErrNotFound
	}
	return *copyBill(b), nil
}

// GetBillForOrder returns the bill generated for the given order, if any.
func (s *MemoryStore) GetBillForOrder(ctx context.Context, orderID string) (Bill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.billByOrder[orderID]
	if !ok {
		return Bill{}, ErrNotFound
	}
	return *copyBill(s.bills[id]), nil
}

// ListBillsBetween returns bills created in [start, end), oldest first.
// This is the report aggregator's read path.
func (s *MemoryStore) ListBillsBetween(ctx context.Context, start, end time.Time) ([]Bill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Bill, 0)
	for _, b := range s.bills {
		if b.CreatedAt.Before(start) || !b.CreatedAt.Before(end) {
			continue
		}
		out = append(out, *copyBill(b))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// --- Menu ---

// UpsertMenuItem inserts or replaces a catalog entry.
func (s *MemoryStore) UpsertMenuItem(ctx context.Context, item MenuItem) (MenuItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := item
	s.menu[item.ID] = &stored

	shadowWrite(s.mirror, "menu:"+item.ID, stored)
	return stored, nil
}

// GetMenuItem returns a single catalog entry.
func (s *MemoryStore) GetMenuItem(ctx context.Context, id string) (MenuItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.menu[id]
	if !ok {
		return MenuItem{}, ErrNotFound
	}
	return *item, nil
}

// ListMenu returns the catalog sorted by category then name.
func (s *MemoryStore) ListMenu(ctx context.Context) ([]MenuItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]MenuItem, 0, len(s.menu))
	for _, item := range s.menu {
		out = append(out, *item)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

// DeleteMenuItem removes a catalog entry.
func (s *MemoryStore) DeleteMenuItem(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.menu[id]; !ok {
		return ErrNotFound
	}
	delete(s.menu, id)
	return nil
}

// --- Users ---

// CreateUser inserts a user. Emails are unique.
func (s *MemoryStore) CreateUser(ctx context.Context, u User) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.emailIndex[u.Email]; exists {
		return User{}, ErrDuplicate
	}
	stored := u
	s.usersByID[u.ID] = &stored
	s.emailIndex[u.Email] = u.ID
	return stored, nil
}

// GetUserByEmail looks a user up by email.
func (s *MemoryStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.emailIndex[email]
	if !ok {
		return User{}, ErrNotFound
	}
	return *s.usersByID[id], nil
}

// GetUserByID looks a user up by ID.
func (s *MemoryStore) GetUserByID(ctx context.Context, id string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.usersByID[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return *u, nil
}

// --- copy helpers ---

func copyOrder(o *Order) *Order {
	c := *o
	c.Items = make([]OrderItem, len(o.Items))
	copy(c.Items, o.Items)
	return &c
}

func copyBill(b *Bill) *Bill {
	c := *b
	c.Items = make([]OrderItem, len(b.Items))
	copy(c.Items, b.Items)
	return &c
}
