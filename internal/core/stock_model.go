package core

import "time"

// StockStatus is derived from on-hand quantity and the product thresholds. It is never stored.
type StockStatus string

const (
	StockOutOfStock StockStatus = "OutOfStock"
	StockCritical   StockStatus = "Critical"
	StockLow        StockStatus = "LowStock"
	StockIn         StockStatus = "InStock"
)

// DeriveStatus classifies on-hand quantity against the minimum and reorder thresholds.
//
//	0                       → OutOfStock
//	0 < onHand ≤ minimum    → Critical
//	minimum < onHand < reorder → LowStock
//	otherwise               → InStock
func DeriveStatus(onHand, minimum, reorder int) StockStatus {
	switch {
	case onHand <= 0:
		return StockOutOfStock
	case onHand <= minimum:
		return StockCritical
	case onHand < reorder:
		return StockLow
	default:
		return StockIn
	}
}

// NeedsAttention reports whether the status should appear on the low-stock list.
func (s StockStatus) NeedsAttention() bool {
	return s != StockIn
}

// StockLevel is a read view of a product's on-hand quantity joined with its thresholds.
type StockLevel struct {
	ProductID    int         `json:"product_id"`
	SKU          string      `json:"sku"`
	Name         string      `json:"name"`
	OnHand       int         `json:"on_hand"`
	MinimumStock int         `json:"minimum_stock"`
	ReorderLevel int         `json:"reorder_level"`
	Status       StockStatus `json:"status"`
	UpdatedAt    *time.Time  `json:"updated_at,omitempty"`
}

// StockMovement is one append-only entry of the stock history.
type StockMovement struct {
	ID          int            `json:"id"`
	ProductID   int            `json:"product_id"`
	Change      int            `json:"change"`
	OnHandAfter int            `json:"on_hand_after"`
	Reason      MovementReason `json:"reason"`
	Reference   string         `json:"reference"`
	CreatedAt   time.Time      `json:"created_at"`
}
