package core

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Sale is a completed till transaction. Amounts are frozen at completion; only the
// status may change afterwards (Completed → Cancelled).
type Sale struct {
	ID              int             `json:"id"`
	SaleNumber      string          `json:"sale_number"`
	SoldAt          time.Time       `json:"sold_at"`
	PaymentMethod   PaymentMethod   `json:"payment_method"`
	DocumentType    DocumentType    `json:"document_type"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	TaxAmount       decimal.Decimal `json:"tax_amount"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	DiscountAmount  decimal.Decimal `json:"discount_amount"`
	Total           decimal.Decimal `json:"total"`
	AmountPaid      decimal.Decimal `json:"amount_paid"`
	ChangeAmount    decimal.Decimal `json:"change_amount"`
	Status          SaleStatus      `json:"status"`
	OperatorID      int             `json:"operator_id"`
	CancelledAt     *time.Time      `json:"cancelled_at,omitempty"`
	Lines           []SaleLine      `json:"lines,omitempty"`
	Invoice         *Invoice        `json:"invoice,omitempty"`
}

// SaleLine is one persisted product line of a sale.
type SaleLine struct {
	ID          int             `json:"id"`
	SaleID      int             `json:"sale_id"`
	LineNumber  int             `json:"line_number"`
	ProductID   int             `json:"product_id"`
	SKU         string          `json:"sku"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	TaxRate     decimal.Decimal `json:"tax_rate"`
	TaxAmount   decimal.Decimal `json:"tax_amount"`
	NetAmount   decimal.Decimal `json:"net_amount"`
	LineTotal   decimal.Decimal `json:"line_total"`
}

// Customer is the invoiced party, matched by exact tax number.
type Customer struct {
	ID          int       `json:"id"`
	CompanyName string    `json:"company_name"`
	TaxNumber   string    `json:"tax_number"`
	Address     string    `json:"address,omitempty"`
	City        string    `json:"city,omitempty"`
	PostalCode  string    `json:"postal_code,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Invoice is the optional formal document issued for a sale.
// Subtotal + TaxAmount - Discount = Total.
type Invoice struct {
	ID            int             `json:"id"`
	InvoiceNumber string          `json:"invoice_number"`
	SaleID        int             `json:"sale_id"`
	CustomerID    int             `json:"customer_id"`
	Customer      *Customer       `json:"customer,omitempty"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	TaxAmount     decimal.Decimal `json:"tax_amount"`
	Discount      decimal.Decimal `json:"discount_amount"`
	Total         decimal.Decimal `json:"total"`
	Status        InvoiceStatus   `json:"status"`
	IssuedAt      time.Time       `json:"issued_at"`
}

// SaleLineInput is one requested line. UnitPrice ≤ 0 means "use the catalog price";
// a nil TaxRate means "use the catalog tax rate".
type SaleLineInput struct {
	ProductID int              `json:"product_id"`
	SKU       string           `json:"sku"`
	Quantity  int              `json:"quantity"`
	UnitPrice decimal.Decimal  `json:"unit_price"`
	TaxRate   *decimal.Decimal `json:"tax_rate"`
}

func (in SaleLineInput) ref() (ProductRef, error) {
	if in.ProductID > 0 {
		return ProductRef{ID: in.ProductID}, nil
	}
	if sku := NormalizeSKU(in.SKU); sku != "" {
		return ProductRef{SKU: sku}, nil
	}
	return ProductRef{}, validationf("each sale line needs a product id or SKU")
}

// InvoiceCustomer holds the customer fields required when the document type is Invoice.
type InvoiceCustomer struct {
	CompanyName string `json:"company_name"`
	TaxNumber   string `json:"tax_number"`
	Address     string `json:"address"`
	City        string `json:"city"`
	PostalCode  string `json:"postal_code"`
}

func (c InvoiceCustomer) normalized() InvoiceCustomer {
	return InvoiceCustomer{
		CompanyName: strings.TrimSpace(c.CompanyName),
		TaxNumber:   strings.TrimSpace(c.TaxNumber),
		Address:     strings.TrimSpace(c.Address),
		City:        strings.TrimSpace(c.City),
		PostalCode:  strings.TrimSpace(c.PostalCode),
	}
}

// SaleRequest is everything CompleteSale needs.
type SaleRequest struct {
	Lines           []SaleLineInput
	PaymentMethod   PaymentMethod
	AmountPaid      decimal.Decimal
	Change          decimal.Decimal
	DocumentType    DocumentType
	Customer        *InvoiceCustomer
	DiscountPercent decimal.Decimal
	OperatorID      int
	// At overrides the sale timestamp; zero means now.
	At time.Time
}

// Validate checks the request shape before any storage access.
func (r SaleRequest) Validate() error {
	if len(r.Lines) == 0 {
		return ErrEmptyCart
	}
	if !r.PaymentMethod.Valid() {
		return validationf("unknown payment method %q", r.PaymentMethod)
	}
	if !r.DocumentType.Valid() {
		return validationf("unknown document type %q", r.DocumentType)
	}
	if r.AmountPaid.IsNegative() {
		return validationf("amount paid cannot be negative")
	}
	for _, m := range []struct {
		name  string
		value decimal.Decimal
	}{
		{"amount paid", r.AmountPaid},
		{"change", r.Change},
		{"discount", r.DiscountPercent},
	} {
		if !fitsCents(m.value) {
			return validationf("%s has more than 2 decimal places, got %s", m.name, m.value)
		}
	}
	if r.DocumentType == DocumentInvoice {
		if r.Customer == nil {
			return validationf("invoice requires customer details")
		}
		c := r.Customer.normalized()
		if c.CompanyName == "" {
			return validationf("invoice requires a company name")
		}
		if c.TaxNumber == "" {
			return validationf("invoice requires a tax number")
		}
	}
	for i, l := range r.Lines {
		if l.Quantity < 1 {
			return validationf("line %d: quantity must be at least 1, got %d", i+1, l.Quantity)
		}
		if !fitsCents(l.UnitPrice) {
			return validationf("line %d: unit price has more than 2 decimal places, got %s", i+1, l.UnitPrice)
		}
		if l.TaxRate != nil {
			if err := validateTaxRate(*l.TaxRate); err != nil {
				return err
			}
		}
		if _, err := l.ref(); err != nil {
			return err
		}
	}
	return nil
}

// Settle computes the change owed for a sale total.
//
// Cash: paid must cover total; change = paid - total.
// Card: paid defaults to total and must equal it; change is 0.
// A non-zero reported change must match the computed one.
func Settle(method PaymentMethod, total, paid, reportedChange decimal.Decimal) (amountPaid, change decimal.Decimal, err error) {
	switch method {
	case PaymentCash:
		if paid.LessThan(total) {
			return decimal.Zero, decimal.Zero, validationf("amount paid %s does not cover total %s", paid.StringFixed(2), total.StringFixed(2))
		}
		change = paid.Sub(total)
	case PaymentCard:
		if paid.IsZero() {
			paid = total
		}
		if !paid.Equal(total) {
			return decimal.Zero, decimal.Zero, validationf("card payment %s must equal total %s", paid.StringFixed(2), total.StringFixed(2))
		}
		change = decimal.Zero
	default:
		return decimal.Zero, decimal.Zero, validationf("unknown payment method %q", method)
	}
	if !reportedChange.IsZero() && !reportedChange.Equal(change) {
		return decimal.Zero, decimal.Zero, validationf("reported change %s does not match computed change %s", reportedChange.StringFixed(2), change.StringFixed(2))
	}
	return paid, change, nil
}

// SaleConfirmation is returned by a successful CompleteSale.
type SaleConfirmation struct {
	SaleID        int             `json:"sale_id"`
	SaleNumber    string          `json:"sale_number"`
	InvoiceID     *int            `json:"invoice_id,omitempty"`
	InvoiceNumber string          `json:"invoice_number,omitempty"`
	Summary       CartSummary     `json:"summary"`
	AmountPaid    decimal.Decimal `json:"amount_paid"`
	Change        decimal.Decimal `json:"change"`
	// StockAfter is the post-sale stock level of every product sold.
	StockAfter []StockLevel `json:"stock_after"`
}

// SaleFilter narrows ListSales. Zero values mean "no filter".
type SaleFilter struct {
	Status *SaleStatus
	From   *time.Time
	To     *time.Time
	Limit  int
}
