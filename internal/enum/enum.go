package enum

// ── Order lifecycle states ──

const (
	OrderStatusPending       = "PENDING"
	OrderStatusPreparing     = "PREPARING"
	OrderStatusReady         = "READY"
	OrderStatusBillRequested = "BILL_REQUESTED"
	OrderStatusCompleted     = "COMPLETED"
)

// ── User roles ──

const (
	UserRoleManager  = "MANAGER"
	UserRoleKitchen  = "KITCHEN"
	UserRoleCustomer = "CUSTOMER"
)

// ── Menu categories (configurable labels, no constraint) ──

const (
	CategoryBeverage = "BEVERAGE"
	CategorySnack    = "SNACK"
	CategoryDessert  = "DESSERT"
)

// ── Invalidation bus topics ──

const (
	TopicOrders  = "orders"
	TopicMenu    = "menu"
	TopicReports = "reports"
)

// ── Invalidation event types ──

const (
	EventOrdersUpdated  = "orders-updated"
	EventMenuUpdated    = "menu-updated"
	EventReportsUpdated = "reports-updated"
)
