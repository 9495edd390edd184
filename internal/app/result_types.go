package app

import (
	"time"

	"bikeshop-pos/internal/core"

	"github.com/shopspring/decimal"
)

// SaleResult is the outcome of CompleteSale.
type SaleResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	// Code classifies failures: VALIDATION, EMPTY_CART, NOT_FOUND, INSUFFICIENT_STOCK,
	// DUPLICATE_KEY or INTERNAL_ERROR. Empty on success.
	Code string `json:"code,omitempty"`

	SaleID        int               `json:"sale_id,omitempty"`
	SaleNumber    string            `json:"sale_number,omitempty"`
	InvoiceID     *int              `json:"invoice_id,omitempty"`
	InvoiceNumber string            `json:"invoice_number,omitempty"`
	Summary       *core.CartSummary `json:"summary,omitempty"`
	AmountPaid    decimal.Decimal   `json:"amount_paid"`
	Change        decimal.Decimal   `json:"change"`
	StockAfter    []core.StockLevel `json:"stock_after,omitempty"`

	// Shortfall is set when the sale failed for lack of stock.
	Shortfall *Shortfall `json:"shortfall,omitempty"`
}

// Shortfall describes the first product that could not be covered by stock.
type Shortfall struct {
	ProductID int    `json:"product_id"`
	SKU       string `json:"sku"`
	Available int    `json:"available"`
	Requested int    `json:"requested"`
}

type ProductListResult struct {
	Products []core.ProductSnapshot `json:"products"`
}

type StockResult struct {
	Levels []core.StockLevel `json:"levels"`
}

type ReceiptListResult struct {
	Receipts []core.GoodsReceipt `json:"receipts"`
}

type SaleListResult struct {
	Sales []core.Sale `json:"sales"`
}

// TokenResult is a freshly minted operator token.
type TokenResult struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      core.User `json:"user"`
}
