package audithook

// Action constants for audit events.
const (
	// Bill actions
	ActionBillCommitted = "bill.committed"
	ActionBillRejected  = "bill.rejected"

	// Drawer actions
	ActionDrawerReconciled = "drawer.reconciled"

	// Catalog actions
	ActionProductSaved  = "product.saved"
	ActionStockDepleted = "product.stock_depleted"
)

// Resource constants for audit events.
const (
	ResourcePurchase = "purchase"
	ResourceDrawer   = "drawer"
	ResourceProduct  = "product"
)

// Category constants for audit events.
const (
	CategoryBilling   = "billing"
	CategoryCash      = "cash"
	CategoryInventory = "inventory"
)

// Severity levels for audit events.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Outcome values for audit events.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)
