package core

import "strings"

// PaymentMethod is how the customer settled a sale.
type PaymentMethod string

const (
	PaymentCash PaymentMethod = "Cash"
	PaymentCard PaymentMethod = "Card"
)

func (m PaymentMethod) Valid() bool { return m == PaymentCash || m == PaymentCard }

// ParsePaymentMethod accepts the wire value case-insensitively.
func ParsePaymentMethod(s string) (PaymentMethod, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "cash":
		return PaymentCash, nil
	case "card":
		return PaymentCard, nil
	}
	return "", validationf("unknown payment method %q (expected Cash or Card)", s)
}

// DocumentType selects whether a completed sale produces a plain receipt or an invoice.
type DocumentType string

const (
	DocumentReceipt DocumentType = "Receipt"
	DocumentInvoice DocumentType = "Invoice"
)

func (d DocumentType) Valid() bool { return d == DocumentReceipt || d == DocumentInvoice }

func ParseDocumentType(s string) (DocumentType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "receipt":
		return DocumentReceipt, nil
	case "invoice":
		return DocumentInvoice, nil
	}
	return "", validationf("unknown document type %q (expected Receipt or Invoice)", s)
}

type SaleStatus string

const (
	SaleCompleted SaleStatus = "Completed"
	SaleCancelled SaleStatus = "Cancelled"
)

func ParseSaleStatus(s string) (SaleStatus, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "completed":
		return SaleCompleted, nil
	case "cancelled", "canceled":
		return SaleCancelled, nil
	}
	return "", validationf("unknown sale status %q", s)
}

type InvoiceStatus string

const (
	InvoiceIssued    InvoiceStatus = "Issued"
	InvoiceCancelled InvoiceStatus = "Cancelled"
)

// ReceiptStatus tracks a goods receipt through Draft → Approved, or Draft → Cancelled.
type ReceiptStatus string

const (
	ReceiptDraft     ReceiptStatus = "Draft"
	ReceiptApproved  ReceiptStatus = "Approved"
	ReceiptCancelled ReceiptStatus = "Cancelled"
)

func ParseReceiptStatus(s string) (ReceiptStatus, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "draft":
		return ReceiptDraft, nil
	case "approved":
		return ReceiptApproved, nil
	case "cancelled", "canceled":
		return ReceiptCancelled, nil
	}
	return "", validationf("unknown goods receipt status %q", s)
}

// Role is an operator's permission level.
type Role string

const (
	RoleAdmin   Role = "Admin"
	RoleManager Role = "Manager"
	RoleCashier Role = "Cashier"
)

func (r Role) Valid() bool { return r == RoleAdmin || r == RoleManager || r == RoleCashier }

func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "admin":
		return RoleAdmin, nil
	case "manager":
		return RoleManager, nil
	case "cashier":
		return RoleCashier, nil
	}
	return "", validationf("unknown role %q (expected Admin, Manager or Cashier)", s)
}

// MovementReason explains a stock_movements row.
type MovementReason string

const (
	MovementReceipt    MovementReason = "RECEIPT"
	MovementSale       MovementReason = "SALE"
	MovementSaleCancel MovementReason = "SALE_CANCEL"
)
