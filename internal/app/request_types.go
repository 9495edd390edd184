package app

import (
	"bikeshop-pos/internal/core"

	"github.com/shopspring/decimal"
)

// CompleteSaleRequest is the till's checkout payload.
type CompleteSaleRequest struct {
	Lines           []core.SaleLineInput  `json:"lines"`
	PaymentMethod   string                `json:"payment_method"`
	AmountPaid      decimal.Decimal       `json:"amount_paid"`
	Change          decimal.Decimal       `json:"change"`
	DocumentType    string                `json:"document_type"` // "Receipt" (default) or "Invoice"
	Customer        *core.InvoiceCustomer `json:"customer,omitempty"`
	DiscountPercent decimal.Decimal       `json:"discount_percent"`
	OperatorID      int                   `json:"-"` // taken from the authenticated operator
}

// ListSalesRequest filters ListSales. Dates are YYYY-MM-DD and inclusive; empty means unbounded.
type ListSalesRequest struct {
	Status string
	From   string
	To     string
	Limit  int
}
