package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// Dashboard is the set of KPIs shown on the till's start screen.
type Dashboard struct {
	Day            time.Time           `json:"day"`
	ActiveProducts int                 `json:"active_products"`
	StatusCounts   map[StockStatus]int `json:"status_counts"`
	SalesCount     int                 `json:"sales_count"`
	Revenue        decimal.Decimal     `json:"revenue"`
	TaxCollected   decimal.Decimal     `json:"tax_collected"`
	CancelledCount int                 `json:"cancelled_count"`
	PendingDrafts  int                 `json:"pending_goods_receipts"`
}

// LowStockCount is the number of products whose status needs attention.
func (d *Dashboard) LowStockCount() int {
	n := 0
	for status, count := range d.StatusCounts {
		if status.NeedsAttention() {
			n += count
		}
	}
	return n
}
