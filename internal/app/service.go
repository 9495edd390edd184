package app

import (
	"context"
	"time"

	"bikeshop-pos/internal/core"
)

// ApplicationService is the single interface all UI adapters (CLI, Web) call.
// It decouples presentation from business logic. Implementations must contain
// no fmt.Println, no ANSI codes, and no display logic of any kind.
type ApplicationService interface {
	// ── Catalog ──────────────────────────────────────────────────────────────

	// ListProducts returns the catalog with on-hand quantities and stock status.
	ListProducts(ctx context.Context, includeInactive bool) (*ProductListResult, error)

	// LookupProduct resolves a product by numeric ID or SKU. Inactive products are not found.
	LookupProduct(ctx context.Context, ref string) (*core.ProductSnapshot, error)

	CreateProduct(ctx context.Context, in core.ProductInput) (*core.Product, error)
	UpdateProduct(ctx context.Context, productID int, upd core.ProductUpdate) (*core.Product, error)
	DeactivateProduct(ctx context.Context, productID int) (*core.Product, error)

	ListCategories(ctx context.Context) ([]core.Category, error)
	CreateCategory(ctx context.Context, in core.CategoryInput) (*core.Category, error)
	ListSuppliers(ctx context.Context) ([]core.Supplier, error)
	CreateSupplier(ctx context.Context, in core.SupplierInput) (*core.Supplier, error)

	// ── Inventory ────────────────────────────────────────────────────────────

	// GetStockLevels returns every active product with its derived stock status.
	GetStockLevels(ctx context.Context) (*StockResult, error)

	// GetLowStock returns the products needing attention, most urgent first.
	GetLowStock(ctx context.Context) (*StockResult, error)

	// GetDashboard returns the KPIs for the calendar day containing day.
	GetDashboard(ctx context.Context, day time.Time) (*core.Dashboard, error)

	// ── Goods receipts ───────────────────────────────────────────────────────

	ListReceipts(ctx context.Context, status string) (*ReceiptListResult, error)
	GetReceipt(ctx context.Context, receiptID int) (*core.GoodsReceipt, error)

	// CreateReceipt records a Draft receipt. Stock changes only on approval.
	CreateReceipt(ctx context.Context, in core.GoodsReceiptInput) (*core.GoodsReceipt, error)

	// ApproveReceipt books every line into the stock ledger.
	ApproveReceipt(ctx context.Context, receiptID, operatorID int) (*core.GoodsReceipt, error)

	CancelReceipt(ctx context.Context, receiptID, operatorID int) (*core.GoodsReceipt, error)

	// ── Sales ────────────────────────────────────────────────────────────────

	// CompleteSale runs the till checkout. It never returns a Go error: every failure is
	// reported through SaleResult with Success=false and an operator-readable message.
	CompleteSale(ctx context.Context, req CompleteSaleRequest) *SaleResult

	// CancelSale reverses a completed sale. ref may be a numeric ID or a sale number.
	CancelSale(ctx context.Context, ref string, operatorID int) (*core.Sale, error)

	// GetSale returns a sale with its lines and invoice. ref may be a numeric ID or a sale number.
	GetSale(ctx context.Context, ref string) (*core.Sale, error)

	ListSales(ctx context.Context, req ListSalesRequest) (*SaleListResult, error)

	// ── Operators ────────────────────────────────────────────────────────────

	ListUsers(ctx context.Context) ([]core.User, error)
	CreateUser(ctx context.Context, in core.UserInput) (*core.User, error)
	GetUser(ctx context.Context, userID int) (*core.User, error)
	GetUserByUsername(ctx context.Context, username string) (*core.User, error)

	// IssueToken mints an API token for an active operator.
	IssueToken(ctx context.Context, username string) (*TokenResult, error)
}
