package core

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// InventoryService reports stock levels with their derived status. It never writes;
// all mutations go through the StockLedger.
type InventoryService interface {
	// GetStockLevels returns every active product with its on-hand quantity and status.
	GetStockLevels(ctx context.Context) ([]StockLevel, error)
	// GetLowStock returns the products whose status is not InStock, most urgent first.
	GetLowStock(ctx context.Context) ([]StockLevel, error)
	// GetDashboard aggregates catalog and sales KPIs for the calendar day containing day.
	GetDashboard(ctx context.Context, day time.Time) (*Dashboard, error)
}

type inventoryService struct {
	pool *pgxpool.Pool
}

func NewInventoryService(pool *pgxpool.Pool) InventoryService {
	return &inventoryService{pool: pool}
}

func (s *inventoryService) GetStockLevels(ctx context.Context) ([]StockLevel, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT p.id, p.sku, p.name, COALESCE(sl.on_hand, 0), p.minimum_stock, p.reorder_level, sl.updated_at
		FROM products p
		LEFT JOIN stock_levels sl ON sl.product_id = p.id
		WHERE p.is_active = true
		ORDER BY p.sku`)
	if err != nil {
		return nil, storageErr("query stock levels", err)
	}
	defer rows.Close()

	var levels []StockLevel
	for rows.Next() {
		var sl StockLevel
		if err := rows.Scan(&sl.ProductID, &sl.SKU, &sl.Name, &sl.OnHand, &sl.MinimumStock, &sl.ReorderLevel, &sl.UpdatedAt); err != nil {
			return nil, storageErr("scan stock level", err)
		}
		sl.Status = DeriveStatus(sl.OnHand, sl.MinimumStock, sl.ReorderLevel)
		levels = append(levels, sl)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("iterate stock levels", err)
	}
	return levels, nil
}

func (s *inventoryService) GetLowStock(ctx context.Context) ([]StockLevel, error) {
	levels, err := s.GetStockLevels(ctx)
	if err != nil {
		return nil, err
	}
	return FilterLowStock(levels), nil
}

// FilterLowStock keeps the levels that need attention, ordered OutOfStock, Critical, LowStock
// and by SKU within a status.
func FilterLowStock(levels []StockLevel) []StockLevel {
	var buckets [3][]StockLevel
	for _, sl := range levels {
		switch sl.Status {
		case StockOutOfStock:
			buckets[0] = append(buckets[0], sl)
		case StockCritical:
			buckets[1] = append(buckets[1], sl)
		case StockLow:
			buckets[2] = append(buckets[2], sl)
		}
	}
	out := make([]StockLevel, 0, len(buckets[0])+len(buckets[1])+len(buckets[2]))
	for _, b := range buckets {
		out = append(out, b...)
	}
	return out
}

func (s *inventoryService) GetDashboard(ctx context.Context, day time.Time) (*Dashboard, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	end := start.AddDate(0, 0, 1)

	levels, err := s.GetStockLevels(ctx)
	if err != nil {
		return nil, err
	}
	d := &Dashboard{
		Day:            start,
		ActiveProducts: len(levels),
		StatusCounts: map[StockStatus]int{
			StockOutOfStock: 0,
			StockCritical:   0,
			StockLow:        0,
			StockIn:         0,
		},
	}
	for _, sl := range levels {
		d.StatusCounts[sl.Status]++
	}

	err = s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FILTER (WHERE status = $3),
		       COALESCE(SUM(total) FILTER (WHERE status = $3), 0),
		       COALESCE(SUM(tax_amount) FILTER (WHERE status = $3), 0),
		       COUNT(*) FILTER (WHERE status = $4)
		FROM sales
		WHERE sold_at >= $1 AND sold_at < $2`,
		start, end, string(SaleCompleted), string(SaleCancelled),
	).Scan(&d.SalesCount, &d.Revenue, &d.TaxCollected, &d.CancelledCount)
	if err != nil {
		return nil, storageErr("aggregate daily sales", err)
	}

	err = s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM goods_receipts WHERE status = $1", string(ReceiptDraft)).
		Scan(&d.PendingDrafts)
	if err != nil {
		return nil, storageErr("count draft goods receipts", err)
	}
	return d, nil
}
