package app

import (
	"bikeshop-pos/internal/core"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// NewServices builds the PostgreSQL-backed core services. productCache may be nil.
func NewServices(pool *pgxpool.Pool, productCache core.ProductCache, logger *zap.Logger) Services {
	if logger == nil {
		logger = zap.NewNop()
	}
	catalog := core.NewCatalogService(pool, productCache, logger.Named("catalog"))
	ledger := core.NewStockLedger(pool)
	numbers := core.NewDocumentNumberer(logger.Named("numbering"))

	return Services{
		Catalog:   catalog,
		Inventory: core.NewInventoryService(pool),
		Receipts:  core.NewGoodsReceiptService(pool, catalog, ledger, numbers, logger.Named("receipts")),
		Sales:     core.NewSaleService(pool, catalog, ledger, numbers, logger.Named("sales")),
		Users:     core.NewUserService(pool),
	}
}
