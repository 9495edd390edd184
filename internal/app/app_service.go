package app

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"bikeshop-pos/internal/auth"
	"bikeshop-pos/internal/core"
	"bikeshop-pos/internal/events"
	"bikeshop-pos/internal/metrics"

	"go.uber.org/zap"
)

// Services bundles the core services the application layer orchestrates.
type Services struct {
	Catalog   core.CatalogService
	Inventory core.InventoryService
	Receipts  core.GoodsReceiptService
	Sales     core.SaleService
	Users     core.UserService
}

// Options carries the optional collaborators. Zero values disable the feature.
type Options struct {
	Publisher events.Publisher
	Metrics   *metrics.Metrics
	Logger    *zap.Logger
	JWTSecret string
	TokenTTL  time.Duration
}

type appService struct {
	catalog   core.CatalogService
	inventory core.InventoryService
	receipts  core.GoodsReceiptService
	sales     core.SaleService
	users     core.UserService

	publisher events.Publisher
	metrics   *metrics.Metrics
	logger    *zap.Logger
	jwtSecret string
	tokenTTL  time.Duration
}

// NewAppService constructs an appService that satisfies ApplicationService.
func NewAppService(svcs Services, opts Options) ApplicationService {
	if opts.Publisher == nil {
		opts.Publisher = events.NopPublisher{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = 12 * time.Hour
	}
	return &appService{
		catalog:   svcs.Catalog,
		inventory: svcs.Inventory,
		receipts:  svcs.Receipts,
		sales:     svcs.Sales,
		users:     svcs.Users,
		publisher: opts.Publisher,
		metrics:   opts.Metrics,
		logger:    opts.Logger,
		jwtSecret: opts.JWTSecret,
		tokenTTL:  opts.TokenTTL,
	}
}

// ── Catalog ──────────────────────────────────────────────────────────────────

func (s *appService) ListProducts(ctx context.Context, includeInactive bool) (*ProductListResult, error) {
	products, err := s.catalog.ListProducts(ctx, includeInactive)
	if err != nil {
		return nil, err
	}
	return &ProductListResult{Products: products}, nil
}

func (s *appService) LookupProduct(ctx context.Context, ref string) (*core.ProductSnapshot, error) {
	pr, err := core.ParseProductRef(ref)
	if err != nil {
		return nil, err
	}
	return s.catalog.Lookup(ctx, pr)
}

func (s *appService) CreateProduct(ctx context.Context, in core.ProductInput) (*core.Product, error) {
	return s.catalog.CreateProduct(ctx, in)
}

func (s *appService) UpdateProduct(ctx context.Context, productID int, upd core.ProductUpdate) (*core.Product, error) {
	return s.catalog.UpdateProduct(ctx, productID, upd)
}

func (s *appService) DeactivateProduct(ctx context.Context, productID int) (*core.Product, error) {
	return s.catalog.DeactivateProduct(ctx, productID)
}

func (s *appService) ListCategories(ctx context.Context) ([]core.Category, error) {
	return s.catalog.ListCategories(ctx)
}

func (s *appService) CreateCategory(ctx context.Context, in core.CategoryInput) (*core.Category, error) {
	return s.catalog.CreateCategory(ctx, in)
}

func (s *appService) ListSuppliers(ctx context.Context) ([]core.Supplier, error) {
	return s.catalog.ListSuppliers(ctx)
}

func (s *appService) CreateSupplier(ctx context.Context, in core.SupplierInput) (*core.Supplier, error) {
	return s.catalog.CreateSupplier(ctx, in)
}

// ── Inventory ────────────────────────────────────────────────────────────────

func (s *appService) GetStockLevels(ctx context.Context) (*StockResult, error) {
	levels, err := s.inventory.GetStockLevels(ctx)
	if err != nil {
		return nil, err
	}
	return &StockResult{Levels: levels}, nil
}

func (s *appService) GetLowStock(ctx context.Context) (*StockResult, error) {
	levels, err := s.inventory.GetLowStock(ctx)
	if err != nil {
		return nil, err
	}
	return &StockResult{Levels: levels}, nil
}

func (s *appService) GetDashboard(ctx context.Context, day time.Time) (*core.Dashboard, error) {
	if day.IsZero() {
		day = time.Now()
	}
	return s.inventory.GetDashboard(ctx, day)
}

// ── Goods receipts ───────────────────────────────────────────────────────────

func (s *appService) ListReceipts(ctx context.Context, status string) (*ReceiptListResult, error) {
	var filter *core.ReceiptStatus
	if strings.TrimSpace(status) != "" {
		st, err := core.ParseReceiptStatus(status)
		if err != nil {
			return nil, err
		}
		filter = &st
	}
	receipts, err := s.receipts.ListReceipts(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &ReceiptListResult{Receipts: receipts}, nil
}

func (s *appService) GetReceipt(ctx context.Context, receiptID int) (*core.GoodsReceipt, error) {
	return s.receipts.GetReceipt(ctx, receiptID)
}

func (s *appService) CreateReceipt(ctx context.Context, in core.GoodsReceiptInput) (*core.GoodsReceipt, error) {
	return s.receipts.CreateReceipt(ctx, in)
}

func (s *appService) ApproveReceipt(ctx context.Context, receiptID, operatorID int) (*core.GoodsReceipt, error) {
	receipt, approved, err := s.receipts.ApproveReceipt(ctx, receiptID, operatorID)
	if err != nil {
		return nil, err
	}
	if !approved {
		return receipt, nil
	}

	s.metrics.ReceiptApproved()
	s.publish(ctx, events.GoodsReceived, events.GoodsReceivedEvent{
		ReceiptID:     receipt.ID,
		ReceiptNumber: receipt.ReceiptNumber,
		SupplierID:    receipt.SupplierID,
		TotalCost:     receipt.TotalCost,
	})
	return receipt, nil
}

func (s *appService) CancelReceipt(ctx context.Context, receiptID, operatorID int) (*core.GoodsReceipt, error) {
	return s.receipts.CancelReceipt(ctx, receiptID, operatorID)
}

// ── Sales ────────────────────────────────────────────────────────────────────

func (s *appService) CompleteSale(ctx context.Context, req CompleteSaleRequest) *SaleResult {
	coreReq, err := toSaleRequest(req)
	if err != nil {
		return s.saleFailure(req, err)
	}

	conf, err := s.sales.CompleteSale(ctx, coreReq)
	if err != nil {
		return s.saleFailure(req, err)
	}

	s.metrics.SaleCompleted(string(coreReq.PaymentMethod), string(coreReq.DocumentType), conf.Summary.Total.InexactFloat64())
	s.publish(ctx, events.SaleCompleted, events.SaleCompletedEvent{
		SaleID:        conf.SaleID,
		SaleNumber:    conf.SaleNumber,
		InvoiceNumber: conf.InvoiceNumber,
		PaymentMethod: string(coreReq.PaymentMethod),
		Total:         conf.Summary.Total,
		Units:         conf.Summary.TotalUnits,
		OperatorID:    req.OperatorID,
	})
	for _, lvl := range conf.StockAfter {
		if lvl.Status.NeedsAttention() {
			s.publish(ctx, events.StockLow, stockLowEvent(lvl))
		}
	}

	summary := conf.Summary
	msg := fmt.Sprintf("Sale %s completed: total %s", conf.SaleNumber, summary.Total.StringFixed(2))
	if conf.InvoiceNumber != "" {
		msg += fmt.Sprintf(", invoice %s", conf.InvoiceNumber)
	}
	return &SaleResult{
		Success:       true,
		Message:       msg,
		SaleID:        conf.SaleID,
		SaleNumber:    conf.SaleNumber,
		InvoiceID:     conf.InvoiceID,
		InvoiceNumber: conf.InvoiceNumber,
		Summary:       &summary,
		AmountPaid:    conf.AmountPaid,
		Change:        conf.Change,
		StockAfter:    conf.StockAfter,
	}
}

// saleFailure converts a CompleteSale error into a failed SaleResult.
func (s *appService) saleFailure(req CompleteSaleRequest, err error) *SaleResult {
	code := ErrorCode(err)
	s.metrics.SaleFailed(strings.ToLower(code))

	res := &SaleResult{Success: false, Code: code, Message: OperatorMessage(err)}
	var short *core.InsufficientStockError
	if errors.As(err, &short) {
		res.Shortfall = &Shortfall{
			ProductID: short.ProductID,
			SKU:       short.SKU,
			Available: short.Available,
			Requested: short.Requested,
		}
	}

	if code == CodeInternal {
		s.logger.Error("sale failed", zap.Int("operator_id", req.OperatorID), zap.Int("lines", len(req.Lines)), zap.Error(err))
	} else {
		s.logger.Info("sale rejected", zap.Int("operator_id", req.OperatorID), zap.String("code", code), zap.String("reason", err.Error()))
	}
	return res
}

func toSaleRequest(req CompleteSaleRequest) (core.SaleRequest, error) {
	if len(req.Lines) == 0 {
		return core.SaleRequest{}, core.ErrEmptyCart
	}
	method, err := core.ParsePaymentMethod(req.PaymentMethod)
	if err != nil {
		return core.SaleRequest{}, err
	}
	docType, err := core.ParseDocumentType(req.DocumentType)
	if err != nil {
		return core.SaleRequest{}, err
	}
	return core.SaleRequest{
		Lines:           req.Lines,
		PaymentMethod:   method,
		AmountPaid:      req.AmountPaid,
		Change:          req.Change,
		DocumentType:    docType,
		Customer:        req.Customer,
		DiscountPercent: req.DiscountPercent,
		OperatorID:      req.OperatorID,
	}, nil
}

func (s *appService) CancelSale(ctx context.Context, ref string, operatorID int) (*core.Sale, error) {
	existing, err := s.GetSale(ctx, ref)
	if err != nil {
		return nil, err
	}
	sale, err := s.sales.CancelSale(ctx, existing.ID, operatorID)
	if err != nil {
		return nil, err
	}

	s.metrics.SaleCancelled()
	s.publish(ctx, events.SaleCancelled, events.SaleCancelledEvent{
		SaleID:     sale.ID,
		SaleNumber: sale.SaleNumber,
		OperatorID: operatorID,
	})
	return sale, nil
}

// GetSale resolves ref as a numeric ID when it is all digits, else as a sale number.
func (s *appService) GetSale(ctx context.Context, ref string) (*core.Sale, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, fmt.Errorf("%w: sale reference is required", core.ErrValidation)
	}
	if id, err := strconv.Atoi(ref); err == nil {
		return s.sales.GetSale(ctx, id)
	}
	return s.sales.GetSaleByNumber(ctx, strings.ToUpper(ref))
}

func (s *appService) ListSales(ctx context.Context, req ListSalesRequest) (*SaleListResult, error) {
	var filter core.SaleFilter
	if strings.TrimSpace(req.Status) != "" {
		st, err := core.ParseSaleStatus(req.Status)
		if err != nil {
			return nil, err
		}
		filter.Status = &st
	}
	if req.From != "" {
		from, err := parseDate("from", req.From)
		if err != nil {
			return nil, err
		}
		filter.From = &from
	}
	if req.To != "" {
		to, err := parseDate("to", req.To)
		if err != nil {
			return nil, err
		}
		// Inclusive: up to the end of the given day.
		end := to.AddDate(0, 0, 1)
		filter.To = &end
	}
	filter.Limit = req.Limit

	sales, err := s.sales.ListSales(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &SaleListResult{Sales: sales}, nil
}

func parseDate(field, v string) (time.Time, error) {
	t, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(v), time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s must be YYYY-MM-DD, got %q", core.ErrValidation, field, v)
	}
	return t, nil
}

// ── Operators ────────────────────────────────────────────────────────────────

func (s *appService) ListUsers(ctx context.Context) ([]core.User, error) {
	return s.users.ListUsers(ctx)
}

func (s *appService) CreateUser(ctx context.Context, in core.UserInput) (*core.User, error) {
	return s.users.CreateUser(ctx, in)
}

func (s *appService) GetUser(ctx context.Context, userID int) (*core.User, error) {
	return s.users.GetByID(ctx, userID)
}

func (s *appService) GetUserByUsername(ctx context.Context, username string) (*core.User, error) {
	return s.users.GetByUsername(ctx, username)
}

func (s *appService) IssueToken(ctx context.Context, username string) (*TokenResult, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, fmt.Errorf("%w: user %q is disabled", core.ErrValidation, user.Username)
	}
	token, err := auth.Issue(s.jwtSecret, user.ID, string(user.Role), s.tokenTTL)
	if err != nil {
		return nil, err
	}
	return &TokenResult{
		Token:     token,
		ExpiresAt: time.Now().Add(s.tokenTTL),
		User:      *user,
	}, nil
}

// ── Events ───────────────────────────────────────────────────────────────────

// publish sends a post-commit event. Failures are logged and counted; the committed
// operation is never rolled back because of them.
func (s *appService) publish(ctx context.Context, routingKey string, payload any) {
	err := s.publisher.Publish(ctx, routingKey, payload)
	s.metrics.EventPublished(routingKey, err)
	if err != nil {
		s.logger.Warn("event publish failed", zap.String("routing_key", routingKey), zap.Error(err))
	}
}

func stockLowEvent(l core.StockLevel) events.StockLowEvent {
	return events.StockLowEvent{
		ProductID:    l.ProductID,
		SKU:          l.SKU,
		Name:         l.Name,
		OnHand:       l.OnHand,
		MinimumStock: l.MinimumStock,
		ReorderLevel: l.ReorderLevel,
		Status:       string(l.Status),
	}
}
