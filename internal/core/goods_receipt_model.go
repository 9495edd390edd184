package core

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// GoodsReceipt records a delivery from a supplier. Stock is only affected on approval.
type GoodsReceipt struct {
	ID            int                `json:"id"`
	ReceiptNumber string             `json:"receipt_number"`
	SupplierID    int                `json:"supplier_id"`
	SupplierName  string             `json:"supplier_name"`
	ReceiptDate   time.Time          `json:"receipt_date"`
	Status        ReceiptStatus      `json:"status"`
	Notes         string             `json:"notes,omitempty"`
	TotalCost     decimal.Decimal    `json:"total_cost"`
	OperatorID    int                `json:"operator_id"`
	ApprovedAt    *time.Time         `json:"approved_at,omitempty"`
	CreatedAt     time.Time          `json:"created_at"`
	Lines         []GoodsReceiptLine `json:"lines,omitempty"`
}

// GoodsReceiptLine is one product delivered on a receipt.
type GoodsReceiptLine struct {
	ID          int             `json:"id"`
	ReceiptID   int             `json:"receipt_id"`
	LineNumber  int             `json:"line_number"`
	ProductID   int             `json:"product_id"`
	SKU         string          `json:"sku"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	UnitCost    decimal.Decimal `json:"unit_cost"`
	LineTotal   decimal.Decimal `json:"line_total"`
}

// GoodsReceiptLineInput references a product by ID or SKU.
type GoodsReceiptLineInput struct {
	ProductID int             `json:"product_id"`
	SKU       string          `json:"sku"`
	Quantity  int             `json:"quantity"`
	UnitCost  decimal.Decimal `json:"unit_cost"`
}

// GoodsReceiptInput carries the fields for CreateReceipt.
type GoodsReceiptInput struct {
	SupplierID  int                     `json:"supplier_id"`
	ReceiptDate time.Time               `json:"receipt_date"`
	Notes       string                  `json:"notes"`
	OperatorID  int                     `json:"-"`
	Lines       []GoodsReceiptLineInput `json:"lines"`
}

func (in GoodsReceiptInput) Validate() error {
	if in.SupplierID <= 0 {
		return validationf("supplier is required")
	}
	if len(in.Lines) == 0 {
		return validationf("goods receipt must have at least one line")
	}
	for i, l := range in.Lines {
		if l.ProductID <= 0 && strings.TrimSpace(l.SKU) == "" {
			return validationf("line %d: product id or SKU is required", i+1)
		}
		if l.Quantity < 1 {
			return validationf("line %d: quantity must be at least 1, got %d", i+1, l.Quantity)
		}
		if l.UnitCost.IsNegative() {
			return validationf("line %d: unit cost cannot be negative, got %s", i+1, l.UnitCost)
		}
		if !fitsCents(l.UnitCost) {
			return validationf("line %d: unit cost has more than 2 decimal places, got %s", i+1, l.UnitCost)
		}
	}
	return nil
}
