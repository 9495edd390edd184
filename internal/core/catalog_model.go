package core

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Category groups products on the till and in reports.
type Category struct {
	ID          int       `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Supplier is a vendor that delivers goods receipts.
type Supplier struct {
	ID        int       `json:"id"`
	Name      string    `json:"name"`
	TaxNumber *string   `json:"tax_number,omitempty"`
	Email     string    `json:"email,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	Address   string    `json:"address,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Product is a sellable catalog item. Products are deactivated, never deleted.
type Product struct {
	ID           int             `json:"id"`
	SKU          string          `json:"sku"`
	Name         string          `json:"name"`
	Description  string          `json:"description,omitempty"`
	CategoryID   *int            `json:"category_id,omitempty"`
	SupplierID   *int            `json:"supplier_id,omitempty"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	TaxRate      decimal.Decimal `json:"tax_rate"`
	MinimumStock int             `json:"minimum_stock"`
	ReorderLevel int             `json:"reorder_level"`
	IsActive     bool            `json:"is_active"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// ProductSnapshot is the result of a catalog lookup: the product plus its current on-hand
// quantity and derived stock status.
type ProductSnapshot struct {
	Product
	OnHand int         `json:"on_hand"`
	Status StockStatus `json:"status"`
}

// ProductRef identifies a product either by numeric ID or by SKU.
// When both are set the ID is tried first.
type ProductRef struct {
	ID  int
	SKU string
}

// ParseProductRef turns free operator input into a ProductRef. An all-digit ref may be
// either an ID or a numeric SKU, so both fields are populated.
func ParseProductRef(raw string) (ProductRef, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ProductRef{}, validationf("product reference is required")
	}
	ref := ProductRef{SKU: NormalizeSKU(s)}
	if id, err := strconv.Atoi(s); err == nil && id > 0 {
		ref.ID = id
	}
	return ref, nil
}

func (r ProductRef) String() string {
	if r.SKU != "" {
		return r.SKU
	}
	return strconv.Itoa(r.ID)
}

// NormalizeSKU trims and upper-cases a SKU; SKUs are stored in that form.
func NormalizeSKU(sku string) string {
	return strings.ToUpper(strings.TrimSpace(sku))
}

// ProductInput carries the fields for CreateProduct.
type ProductInput struct {
	SKU          string          `json:"sku"`
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	CategoryID   *int            `json:"category_id"`
	SupplierID   *int            `json:"supplier_id"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	TaxRate      decimal.Decimal `json:"tax_rate"`
	MinimumStock int             `json:"minimum_stock"`
	ReorderLevel int             `json:"reorder_level"`
}

// Validate checks the invariants shared by create and update.
func (in ProductInput) Validate() error {
	if NormalizeSKU(in.SKU) == "" {
		return validationf("SKU is required")
	}
	if strings.TrimSpace(in.Name) == "" {
		return validationf("product name is required")
	}
	return validatePricing(in.UnitPrice, in.TaxRate, in.MinimumStock, in.ReorderLevel)
}

// ProductUpdate is a partial edit; nil fields are left unchanged.
type ProductUpdate struct {
	Name         *string          `json:"name"`
	Description  *string          `json:"description"`
	CategoryID   *int             `json:"category_id"`
	SupplierID   *int             `json:"supplier_id"`
	UnitPrice    *decimal.Decimal `json:"unit_price"`
	TaxRate      *decimal.Decimal `json:"tax_rate"`
	MinimumStock *int             `json:"minimum_stock"`
	ReorderLevel *int             `json:"reorder_level"`
}

// apply merges the update into p and validates the result.
func (u ProductUpdate) apply(p *Product) error {
	if u.Name != nil {
		if strings.TrimSpace(*u.Name) == "" {
			return validationf("product name cannot be blank")
		}
		p.Name = strings.TrimSpace(*u.Name)
	}
	if u.Description != nil {
		p.Description = *u.Description
	}
	if u.CategoryID != nil {
		p.CategoryID = u.CategoryID
	}
	if u.SupplierID != nil {
		p.SupplierID = u.SupplierID
	}
	if u.UnitPrice != nil {
		p.UnitPrice = *u.UnitPrice
	}
	if u.TaxRate != nil {
		p.TaxRate = *u.TaxRate
	}
	if u.MinimumStock != nil {
		p.MinimumStock = *u.MinimumStock
	}
	if u.ReorderLevel != nil {
		p.ReorderLevel = *u.ReorderLevel
	}
	return validatePricing(p.UnitPrice, p.TaxRate, p.MinimumStock, p.ReorderLevel)
}

func validatePricing(price, rate decimal.Decimal, minimum, reorder int) error {
	if !price.IsPositive() {
		return validationf("unit price must be positive, got %s", price)
	}
	if !fitsCents(price) {
		return validationf("unit price has more than 2 decimal places, got %s", price)
	}
	if err := validateTaxRate(rate); err != nil {
		return err
	}
	if minimum < 0 || reorder < 0 {
		return validationf("stock thresholds cannot be negative")
	}
	if reorder < minimum {
		return validationf("reorder level (%d) cannot be below minimum stock (%d)", reorder, minimum)
	}
	return nil
}

func validateTaxRate(rate decimal.Decimal) error {
	if rate.IsNegative() || rate.GreaterThan(hundred) || !fitsCents(rate) {
		return validationf("tax rate must be between 0 and 100 with at most 2 decimals, got %s", rate)
	}
	return nil
}

// CategoryInput carries the fields for CreateCategory.
type CategoryInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// SupplierInput carries the fields for CreateSupplier.
type SupplierInput struct {
	Name      string `json:"name"`
	TaxNumber string `json:"tax_number"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Address   string `json:"address"`
}

// ProductCache is a read-through cache for the price and tax part of a product, keyed by SKU.
// On-hand quantity is never cached.
type ProductCache interface {
	GetOrLoad(ctx context.Context, sku string, load func(ctx context.Context) (*Product, error)) (*Product, error)
	Invalidate(ctx context.Context, sku string) error
}
