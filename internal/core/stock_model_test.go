package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeriveStatus_Boundaries(t *testing.T) {
	// minimum 3, reorder 10
	tests := []struct {
		onHand int
		want   StockStatus
	}{
		{0, StockOutOfStock},
		{1, StockCritical},
		{3, StockCritical},
		{4, StockLow},
		{9, StockLow},
		{10, StockIn},
		{25, StockIn},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DeriveStatus(tt.onHand, 3, 10), "on hand %d", tt.onHand)
	}
}

func TestDeriveStatus_ZeroThresholds(t *testing.T) {
	assert.Equal(t, StockOutOfStock, DeriveStatus(0, 0, 0))
	assert.Equal(t, StockIn, DeriveStatus(1, 0, 0))
}

func TestNeedsAttention(t *testing.T) {
	assert.True(t, StockOutOfStock.NeedsAttention())
	assert.True(t, StockCritical.NeedsAttention())
	assert.True(t, StockLow.NeedsAttention())
	assert.False(t, StockIn.NeedsAttention())
}

func TestFilterLowStock_OrdersByUrgency(t *testing.T) {
	levels := []StockLevel{
		{SKU: "LOW-1", Status: StockLow},
		{SKU: "OK-1", Status: StockIn},
		{SKU: "CRIT-1", Status: StockCritical},
		{SKU: "OUT-1", Status: StockOutOfStock},
		{SKU: "LOW-2", Status: StockLow},
	}
	got := FilterLowStock(levels)

	skus := make([]string, len(got))
	for i, l := range got {
		skus[i] = l.SKU
	}
	assert.Equal(t, []string{"OUT-1", "CRIT-1", "LOW-1", "LOW-2"}, skus)
}

func TestDashboard_LowStockCount(t *testing.T) {
	d := &Dashboard{StatusCounts: map[StockStatus]int{
		StockOutOfStock: 1,
		StockCritical:   2,
		StockLow:        3,
		StockIn:         10,
	}}
	assert.Equal(t, 6, d.LowStockCount())
}
