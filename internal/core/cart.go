package core

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// CartLine is one product entry of an in-progress sale. Price and tax rate are snapshots
// taken when the product was added.
type CartLine struct {
	ProductID int             `json:"product_id"`
	SKU       string          `json:"sku"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	TaxRate   decimal.Decimal `json:"tax_rate"`
}

// Validate enforces quantity ≥ 1, price > 0 and a tax rate in [0, 100]. Price and rate
// carry at most two decimals, so every summary amount is exact in cents.
func (l CartLine) Validate() error {
	if l.ProductID <= 0 {
		return validationf("cart line requires a product")
	}
	if l.Quantity < 1 {
		return validationf("quantity for %s must be at least 1, got %d", l.label(), l.Quantity)
	}
	if !l.UnitPrice.IsPositive() {
		return validationf("unit price for %s must be positive, got %s", l.label(), l.UnitPrice)
	}
	if !fitsCents(l.UnitPrice) {
		return validationf("unit price for %s has more than 2 decimal places, got %s", l.label(), l.UnitPrice)
	}
	if l.TaxRate.IsNegative() || l.TaxRate.GreaterThan(hundred) || !fitsCents(l.TaxRate) {
		return validationf("tax rate for %s must be between 0 and 100 with at most 2 decimals, got %s", l.label(), l.TaxRate)
	}
	return nil
}

func (l CartLine) label() string {
	if l.SKU != "" {
		return l.SKU
	}
	return "product"
}

// NetAmount is unit price × quantity.
func (l CartLine) NetAmount() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// TaxAmount is the line tax rounded to cents.
func (l CartLine) TaxAmount() decimal.Decimal {
	return round2(l.NetAmount().Mul(l.TaxRate).Div(hundred))
}

// Total is net plus tax.
func (l CartLine) Total() decimal.Decimal {
	return l.NetAmount().Add(l.TaxAmount())
}

// CartSummary is recomputed from the lines on every call; nothing is cached.
type CartSummary struct {
	LineCount       int             `json:"line_count"`
	TotalUnits      int             `json:"total_units"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	Tax             decimal.Decimal `json:"tax"`
	Gross           decimal.Decimal `json:"gross"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	DiscountAmount  decimal.Decimal `json:"discount_amount"`
	Total           decimal.Decimal `json:"total"`
}

// Cart accumulates lines keyed by product, preserving insertion order.
// A Cart is not safe for concurrent use.
type Cart struct {
	lines    []CartLine
	index    map[int]int
	discount decimal.Decimal
}

func NewCart() *Cart {
	return &Cart{index: make(map[int]int)}
}

// Add appends a line, or increases the quantity of an existing line for the same product.
// The first price and tax snapshot for a product wins.
func (c *Cart) Add(line CartLine) error {
	line.SKU = strings.TrimSpace(line.SKU)
	if err := line.Validate(); err != nil {
		return err
	}
	if i, ok := c.index[line.ProductID]; ok {
		c.lines[i].Quantity += line.Quantity
		return nil
	}
	c.index[line.ProductID] = len(c.lines)
	c.lines = append(c.lines, line)
	return nil
}

// Remove lowers a line's quantity by qty, deleting the line when it would reach zero.
func (c *Cart) Remove(productID, qty int) error {
	if qty < 1 {
		return validationf("quantity to remove must be at least 1, got %d", qty)
	}
	i, ok := c.index[productID]
	if !ok {
		return notFoundf("product id=%d is not in the cart", productID)
	}
	if c.lines[i].Quantity > qty {
		c.lines[i].Quantity -= qty
		return nil
	}

	c.lines = append(c.lines[:i], c.lines[i+1:]...)
	delete(c.index, productID)
	for j := i; j < len(c.lines); j++ {
		c.index[c.lines[j].ProductID] = j
	}
	return nil
}

// SetDiscount sets a flat percentage discount applied to the gross total.
func (c *Cart) SetDiscount(pct decimal.Decimal) error {
	if pct.IsNegative() || pct.GreaterThan(hundred) || !fitsCents(pct) {
		return validationf("discount must be between 0 and 100 percent with at most 2 decimals, got %s", pct)
	}
	c.discount = pct
	return nil
}

func (c *Cart) Len() int { return len(c.lines) }

// Quantity returns the quantity held for a product, 0 when absent.
func (c *Cart) Quantity(productID int) int {
	if i, ok := c.index[productID]; ok {
		return c.lines[i].Quantity
	}
	return 0
}

// Lines returns a copy of the lines in insertion order.
func (c *Cart) Lines() []CartLine {
	out := make([]CartLine, len(c.lines))
	copy(out, c.lines)
	return out
}

// ProductIDs returns the distinct product IDs in ascending order, the order stock rows are locked in.
func (c *Cart) ProductIDs() []int {
	ids := make([]int, 0, len(c.lines))
	for _, l := range c.lines {
		ids = append(ids, l.ProductID)
	}
	sort.Ints(ids)
	return ids
}

func (c *Cart) Clear() {
	c.lines = nil
	c.index = make(map[int]int)
	c.discount = decimal.Zero
}

func (c *Cart) Summary() CartSummary {
	sum := CartSummary{
		LineCount:       len(c.lines),
		Subtotal:        decimal.Zero,
		Tax:             decimal.Zero,
		DiscountPercent: c.discount,
	}
	for _, l := range c.lines {
		sum.TotalUnits += l.Quantity
		sum.Subtotal = sum.Subtotal.Add(l.NetAmount())
		sum.Tax = sum.Tax.Add(l.TaxAmount())
	}
	sum.Gross = sum.Subtotal.Add(sum.Tax)
	sum.DiscountAmount = round2(sum.Gross.Mul(c.discount).Div(hundred))
	sum.Total = sum.Gross.Sub(sum.DiscountAmount)
	return sum
}

func round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// fitsCents reports whether d is representable with two decimal places.
func fitsCents(d decimal.Decimal) bool {
	return d.Equal(d.Round(2))
}
