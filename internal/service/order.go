package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chaipoint/api/internal/enum"
	"github.com/chaipoint/api/internal/store"
	"github.com/google/uuid"
)

const maxTransitionRetries = 3

// Errors returned by the order service.
var (
	ErrEmptyItems       = errors.New("items are required")
	ErrInvalidQuantity  = errors.New("quantity must be >= 1")
	ErrInvalidPrice     = errors.New("price must be >= 0")
	ErrInvalidTable     = errors.New("table_number must be between 1 and 40")
	ErrInvalidStatus    = errors.New("unknown order status")
	ErrOrderNotBillable = errors.New("order is not ready for billing")
	ErrOrderCompleted   = errors.New("order is already completed")
)

// InvalidTransitionError reports a rejected lifecycle move. The order is left
// untouched when it is returned.
type InvalidTransitionError struct {
	From, To string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot transition from %s to %s", e.From, e.To)
}

// OrderStore defines the store methods the lifecycle engine needs.
// Satisfied by *store.MemoryStore; narrow interface for testability.
type OrderStore interface {
	CreateOrder(ctx context.Context, o store.Order) (store.Order, error)
	GetOrder(ctx context.Context, id string) (store.Order, error)
	UpdateOrderStatus(ctx context.Context, id, expect, next string) (store.Order, error)
	SaveBill(ctx context.Context, b store.Bill) (store.Bill, bool, error)
	GetBillForOrder(ctx context.Context, orderID string) (store.Bill, error)
}

// allowedTransitions defines the order lifecycle. Key is current status,
// value is the set of statuses it can move to. No backward moves and no
// cancellation exist.
var allowedTransitions = map[string][]string{
	enum.OrderStatusPending:       {enum.OrderStatusPreparing},
	enum.OrderStatusPreparing:     {enum.OrderStatusReady},
	enum.OrderStatusReady:         {enum.OrderStatusCompleted, enum.OrderStatusBillRequested},
	enum.OrderStatusBillRequested: {enum.OrderStatusCompleted},
}

func isKnownStatus(s string) bool {
	switch s {
	case enum.OrderStatusPending, enum.OrderStatusPreparing, enum.OrderStatusReady,
		enum.OrderStatusBillRequested, enum.OrderStatusCompleted:
		return true
	}
	return false
}

func validateTransition(current, next string) error {
	for _, s := range allowedTransitions[current] {
		if s == next {
			return nil
		}
	}
	return &InvalidTransitionError{From: current, To: next}
}

// CreateOrderRequest is the validated input for creating an order. Any
// client-supplied status never reaches this struct; new orders are always
// PENDING.
type CreateOrderRequest struct {
	TableNumber  int
	CustomerName string
	Items        []store.OrderItem
	TotalAmount  int64 // optional; computed from items when zero
}

// OrderService is the order lifecycle engine: the only writer of order
// status, and the only component that generates bills.
type OrderService struct {
	store OrderStore
}

// NewOrderService creates a new OrderService.
func NewOrderService(s OrderStore) *OrderService {
	return &OrderService{store: s}
}

// CreateOrder validates the request and inserts a new PENDING order with a
// server-assigned ID and timestamp.
func (s *OrderService) CreateOrder(ctx context.Context, req CreateOrderRequest) (store.Order, error) {
	if len(req.Items) == 0 {
		return store.Order{}, ErrEmptyItems
	}
	if req.TableNumber < 1 || req.TableNumber > 40 {
		return store.Order{}, ErrInvalidTable
	}

	var computed int64
	for i, item := range req.Items {
		if item.Quantity < 1 {
			return store.Order{}, fmt.Errorf("items[%d]: %w", i, ErrInvalidQuantity)
		}
		if item.Price < 0 {
			return store.Order{}, fmt.Errorf("items[%d]: %w", i, ErrInvalidPrice)
		}
		computed += item.Price * int64(item.Quantity)
	}

	total := req.TotalAmount
	if total == 0 {
		total = computed
	}

	now := time.Now()
	order := store.Order{
		ID:           uuid.NewString(),
		TableNumber:  req.TableNumber,
		CustomerName: req.CustomerName,
		Items:        req.Items,
		TotalAmount:  total,
		Status:       enum.OrderStatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	return s.store.CreateOrder(ctx, order)
}

// Transition moves an order to next, rejecting moves the lifecycle does not
// allow. Retries a bounded number of times when another writer interleaves;
// the transition is re-validated against the fresh status on every attempt.
func (s *OrderService) Transition(ctx context.Context, orderID, next string) (store.Order, error) {
	if !isKnownStatus(next) {
		return store.Order{}, ErrInvalidStatus
	}

	var lastErr error
	for attempt := 0; attempt < maxTransitionRetries; attempt++ {
		current, err := s.store.GetOrder(ctx, orderID)
		if err != nil {
			return store.Order{}, err
		}
		if err := validateTransition(current.Status, next); err != nil {
			return store.Order{}, err
		}
		updated, err := s.store.UpdateOrderStatus(ctx, orderID, current.Status, next)
		if err == nil {
			return updated, nil
		}
		if errors.Is(err, store.ErrStatusConflict) {
			lastErr = err
			continue
		}
		return store.Order{}, err
	}
	return store.Order{}, lastErr
}

// RequestBill is the customer-initiated READY -> BILL_REQUESTED move.
func (s *OrderService) RequestBill(ctx context.Context, orderID string) (store.Order, error) {
	return s.Transition(ctx, orderID, enum.OrderStatusBillRequested)
}

// GenerateBill computes and persists the bill for a READY or BILL_REQUESTED
// order and completes the order as a side effect; billing an order is what
// finishes it. Generation is idempotent per order: a repeat call returns the
// existing bill and leaves revenue untouched. Two concurrent calls produce
// exactly one bill because SaveBill is keyed by order ID.
func (s *OrderService) GenerateBill(ctx context.Context, orderID string) (store.Bill, error) {
	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return store.Bill{}, err
	}

	if order.Status == enum.OrderStatusCompleted {
		bill, err := s.store.GetBillForOrder(ctx, orderID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				// Completed through a plain status patch; there is no bill
				// to return and it is too late to make one.
				return store.Bill{}, ErrOrderCompleted
			}
			return store.Bill{}, err
		}
		return bill, nil
	}

	if order.Status != enum.OrderStatusReady && order.Status != enum.OrderStatusBillRequested {
		return store.Bill{}, ErrOrderNotBillable
	}

	charges := ComputeCharges(order.Items)
	items := make([]store.OrderItem, len(order.Items))
	copy(items, order.Items)

	bill := store.Bill{
		ID:           uuid.NewString(),
		OrderID:      order.ID,
		TableNumber:  order.TableNumber,
		CustomerName: order.CustomerName,
		Items:        items,
		Subtotal:     charges.Subtotal,
		Tax:          charges.Tax,
		Service:      charges.Service,
		Total:        charges.Total,
		CreatedAt:    time.Now(),
	}

	saved, created, err := s.store.SaveBill(ctx, bill)
	if err != nil {
		return store.Bill{}, err
	}
	if !created {
		// Lost the race to a concurrent call; the winner drives the order
		// to COMPLETED.
		return saved, nil
	}

	if err := s.completeOrder(ctx, orderID, order.Status); err != nil {
		return store.Bill{}, err
	}
	return saved, nil
}

// completeOrder drives the order to COMPLETED, tolerating concurrent moves
// between READY and BILL_REQUESTED. An order found already COMPLETED counts
// as success.
func (s *OrderService) completeOrder(ctx context.Context, orderID, observed string) error {
	expect := observed
	var lastErr error
	for attempt := 0; attempt < maxTransitionRetries; attempt++ {
		_, err := s.store.UpdateOrderStatus(ctx, orderID, expect, enum.OrderStatusCompleted)
		if err == nil {
			return nil
		}
		if !errors.Is(err, store.ErrStatusConflict) {
			return err
		}
		current, err := s.store.GetOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if current.Status == enum.OrderStatusCompleted {
			return nil
		}
		expect = current.Status
		lastErr = store.ErrStatusConflict
	}
	return lastErr
}
