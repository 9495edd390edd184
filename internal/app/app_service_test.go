package app

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bikeshop-pos/internal/auth"
	"bikeshop-pos/internal/core"
	"bikeshop-pos/internal/events"
	"bikeshop-pos/internal/metrics"
)

// ── Fakes ────────────────────────────────────────────────────────────────────

type fakeSales struct {
	core.SaleService
	conf      *core.SaleConfirmation
	err       error
	got       core.SaleRequest
	byID      map[int]*core.Sale
	byNumber  map[string]*core.Sale
	cancelled []int
	filter    core.SaleFilter
}

func (f *fakeSales) CompleteSale(_ context.Context, req core.SaleRequest) (*core.SaleConfirmation, error) {
	f.got = req
	return f.conf, f.err
}

func (f *fakeSales) GetSale(_ context.Context, id int) (*core.Sale, error) {
	if s, ok := f.byID[id]; ok {
		return s, nil
	}
	return nil, fmt.Errorf("%w: sale %d", core.ErrNotFound, id)
}

func (f *fakeSales) GetSaleByNumber(_ context.Context, number string) (*core.Sale, error) {
	if s, ok := f.byNumber[number]; ok {
		return s, nil
	}
	return nil, fmt.Errorf("%w: sale %s", core.ErrNotFound, number)
}

func (f *fakeSales) CancelSale(_ context.Context, id, _ int) (*core.Sale, error) {
	f.cancelled = append(f.cancelled, id)
	s := *f.byID[id]
	s.Status = core.SaleCancelled
	return &s, nil
}

func (f *fakeSales) ListSales(_ context.Context, filter core.SaleFilter) ([]core.Sale, error) {
	f.filter = filter
	return nil, nil
}

type fakeUsers struct {
	core.UserService
	users map[string]*core.User
}

func (f *fakeUsers) GetByUsername(_ context.Context, username string) (*core.User, error) {
	if u, ok := f.users[username]; ok {
		return u, nil
	}
	return nil, fmt.Errorf("%w: user %s", core.ErrNotFound, username)
}

type fakeReceipts struct {
	core.GoodsReceiptService
	receipt  *core.GoodsReceipt
	approved int
}

func (f *fakeReceipts) ApproveReceipt(context.Context, int, int) (*core.GoodsReceipt, bool, error) {
	f.approved++
	changed := f.receipt.Status == core.ReceiptDraft
	f.receipt.Status = core.ReceiptApproved
	r := *f.receipt
	return &r, changed, nil
}

type capturePublisher struct {
	keys []string
	err  error
}

func (p *capturePublisher) Publish(_ context.Context, key string, _ any) error {
	p.keys = append(p.keys, key)
	return p.err
}

func (p *capturePublisher) Close() error { return nil }

func newTestApp(t *testing.T, svcs Services, pub events.Publisher) (ApplicationService, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	return NewAppService(svcs, Options{
		Publisher: pub,
		Metrics:   metrics.New(reg),
		JWTSecret: "test-secret",
	}), reg
}

func confirmation() *core.SaleConfirmation {
	return &core.SaleConfirmation{
		SaleID:     11,
		SaleNumber: "S-2025-001",
		Summary: core.CartSummary{
			LineCount:  1,
			TotalUnits: 1,
			Subtotal:   decimal.RequireFromString("2499.00"),
			Tax:        decimal.RequireFromString("574.77"),
			Total:      decimal.RequireFromString("3073.77"),
		},
		AmountPaid: decimal.RequireFromString("3100.00"),
		Change:     decimal.RequireFromString("26.23"),
		StockAfter: []core.StockLevel{
			{ProductID: 1, SKU: "BIKE-001", OnHand: 4, MinimumStock: 3, ReorderLevel: 10, Status: core.StockLow},
		},
	}
}

// ── CompleteSale ─────────────────────────────────────────────────────────────

func TestCompleteSale_Success(t *testing.T) {
	sales := &fakeSales{conf: confirmation()}
	pub := &capturePublisher{}
	svc, reg := newTestApp(t, Services{Sales: sales}, pub)

	res := svc.CompleteSale(context.Background(), CompleteSaleRequest{
		Lines:         []core.SaleLineInput{{SKU: "BIKE-001", Quantity: 1}},
		PaymentMethod: "cash",
		AmountPaid:    decimal.RequireFromString("3100.00"),
		OperatorID:    3,
	})

	require.True(t, res.Success, res.Message)
	assert.Equal(t, 11, res.SaleID)
	assert.Equal(t, "S-2025-001", res.SaleNumber)
	assert.Equal(t, "26.23", res.Change.StringFixed(2))
	assert.Contains(t, res.Message, "3073.77")

	assert.Equal(t, core.PaymentCash, sales.got.PaymentMethod)
	assert.Equal(t, core.DocumentReceipt, sales.got.DocumentType)
	assert.Equal(t, 3, sales.got.OperatorID)

	assert.Equal(t, []string{events.SaleCompleted, events.StockLow}, pub.keys)
	assert.Equal(t, 1.0, sumCounter(t, reg, "bikeshop_sales_total"))
}

func TestCompleteSale_EmptyCart(t *testing.T) {
	sales := &fakeSales{}
	svc, _ := newTestApp(t, Services{Sales: sales}, nil)

	res := svc.CompleteSale(context.Background(), CompleteSaleRequest{PaymentMethod: "Cash"})
	assert.False(t, res.Success)
	assert.Equal(t, CodeEmptyCart, res.Code)
	assert.Empty(t, sales.got.Lines, "core service must not be called")
}

func TestCompleteSale_UnknownPaymentMethod(t *testing.T) {
	svc, _ := newTestApp(t, Services{Sales: &fakeSales{}}, nil)

	res := svc.CompleteSale(context.Background(), CompleteSaleRequest{
		Lines:         []core.SaleLineInput{{SKU: "X", Quantity: 1}},
		PaymentMethod: "Bitcoin",
	})
	assert.False(t, res.Success)
	assert.Equal(t, CodeValidation, res.Code)
	assert.Contains(t, res.Message, "Bitcoin")
}

func TestCompleteSale_InsufficientStock(t *testing.T) {
	sales := &fakeSales{err: fmt.Errorf("complete sale: %w", &core.InsufficientStockError{
		ProductID: 1, SKU: "BIKE-001", Available: 3, Requested: 5,
	})}
	pub := &capturePublisher{}
	svc, _ := newTestApp(t, Services{Sales: sales}, pub)

	res := svc.CompleteSale(context.Background(), CompleteSaleRequest{
		Lines:         []core.SaleLineInput{{SKU: "BIKE-001", Quantity: 5}},
		PaymentMethod: "Card",
	})
	assert.False(t, res.Success)
	assert.Equal(t, CodeInsufficientStock, res.Code)
	require.NotNil(t, res.Shortfall)
	assert.Equal(t, 3, res.Shortfall.Available)
	assert.Equal(t, 5, res.Shortfall.Requested)
	assert.Empty(t, pub.keys, "failed sales publish nothing")
}

func TestCompleteSale_PersistenceFailureHidesDetail(t *testing.T) {
	sales := &fakeSales{err: fmt.Errorf("%w: failed to insert sale: %w", core.ErrPersistence, errors.New("connection reset by peer"))}
	svc, _ := newTestApp(t, Services{Sales: sales}, nil)

	res := svc.CompleteSale(context.Background(), CompleteSaleRequest{
		Lines:         []core.SaleLineInput{{SKU: "BIKE-001", Quantity: 1}},
		PaymentMethod: "Cash",
	})
	assert.False(t, res.Success)
	assert.Equal(t, CodeInternal, res.Code)
	assert.NotContains(t, res.Message, "connection reset")
}

func TestCompleteSale_PublishFailureKeepsSuccess(t *testing.T) {
	pub := &capturePublisher{err: errors.New("broker unreachable")}
	svc, _ := newTestApp(t, Services{Sales: &fakeSales{conf: confirmation()}}, pub)

	res := svc.CompleteSale(context.Background(), CompleteSaleRequest{
		Lines:         []core.SaleLineInput{{SKU: "BIKE-001", Quantity: 1}},
		PaymentMethod: "Cash",
	})
	assert.True(t, res.Success)
}

// ── Sales lookups ────────────────────────────────────────────────────────────

func TestGetSale_ResolvesIDOrNumber(t *testing.T) {
	sale := &core.Sale{ID: 5, SaleNumber: "S-2025-005", Status: core.SaleCompleted}
	sales := &fakeSales{
		byID:     map[int]*core.Sale{5: sale},
		byNumber: map[string]*core.Sale{"S-2025-005": sale},
	}
	svc, _ := newTestApp(t, Services{Sales: sales}, nil)

	got, err := svc.GetSale(context.Background(), "5")
	require.NoError(t, err)
	assert.Equal(t, 5, got.ID)

	got, err = svc.GetSale(context.Background(), "s-2025-005")
	require.NoError(t, err)
	assert.Equal(t, "S-2025-005", got.SaleNumber)

	_, err = svc.GetSale(context.Background(), "S-2025-999")
	assert.ErrorIs(t, err, core.ErrNotFound)

	_, err = svc.GetSale(context.Background(), "  ")
	assert.ErrorIs(t, err, core.ErrValidation)
}

func TestCancelSale_PublishesEvent(t *testing.T) {
	sale := &core.Sale{ID: 5, SaleNumber: "S-2025-005", Status: core.SaleCompleted}
	sales := &fakeSales{
		byID:     map[int]*core.Sale{5: sale},
		byNumber: map[string]*core.Sale{"S-2025-005": sale},
	}
	pub := &capturePublisher{}
	svc, _ := newTestApp(t, Services{Sales: sales}, pub)

	got, err := svc.CancelSale(context.Background(), "S-2025-005", 2)
	require.NoError(t, err)
	assert.Equal(t, core.SaleCancelled, got.Status)
	assert.Equal(t, []int{5}, sales.cancelled)
	assert.Equal(t, []string{events.SaleCancelled}, pub.keys)
}

func TestListSales_Filters(t *testing.T) {
	sales := &fakeSales{}
	svc, _ := newTestApp(t, Services{Sales: sales}, nil)

	_, err := svc.ListSales(context.Background(), ListSalesRequest{
		Status: "completed", From: "2025-03-01", To: "2025-03-31", Limit: 20,
	})
	require.NoError(t, err)
	require.NotNil(t, sales.filter.Status)
	assert.Equal(t, core.SaleCompleted, *sales.filter.Status)
	assert.Equal(t, "2025-04-01", sales.filter.To.Format("2006-01-02"))
	assert.Equal(t, 20, sales.filter.Limit)

	_, err = svc.ListSales(context.Background(), ListSalesRequest{From: "03/01/2025"})
	assert.ErrorIs(t, err, core.ErrValidation)
}

// ── Receipts ─────────────────────────────────────────────────────────────────

func TestApproveReceipt_PublishesOnce(t *testing.T) {
	receipts := &fakeReceipts{receipt: &core.GoodsReceipt{ID: 1, ReceiptNumber: "PZ/25/03/001", Status: core.ReceiptDraft}}
	pub := &capturePublisher{}
	svc, reg := newTestApp(t, Services{Receipts: receipts}, pub)

	_, err := svc.ApproveReceipt(context.Background(), 1, 2)
	require.NoError(t, err)
	_, err = svc.ApproveReceipt(context.Background(), 1, 2)
	require.NoError(t, err)

	assert.Equal(t, 2, receipts.approved)
	assert.Equal(t, []string{events.GoodsReceived}, pub.keys)
	assert.Equal(t, 1.0, sumCounter(t, reg, "bikeshop_goods_receipts_approved_total"))
}

func TestApproveReceipt_LosingConcurrentApprovalIsSilent(t *testing.T) {
	// Another till approved the receipt between this caller's read and its approval;
	// only the storage layer knows, so nothing is published or counted here.
	receipts := &fakeReceipts{receipt: &core.GoodsReceipt{ID: 1, ReceiptNumber: "PZ/25/03/001", Status: core.ReceiptApproved}}
	pub := &capturePublisher{}
	svc, reg := newTestApp(t, Services{Receipts: receipts}, pub)

	receipt, err := svc.ApproveReceipt(context.Background(), 1, 2)
	require.NoError(t, err)
	assert.Equal(t, core.ReceiptApproved, receipt.Status)
	assert.Empty(t, pub.keys)
	assert.Zero(t, sumCounter(t, reg, "bikeshop_goods_receipts_approved_total"))
}

// ── Tokens ───────────────────────────────────────────────────────────────────

func TestIssueToken(t *testing.T) {
	users := &fakeUsers{users: map[string]*core.User{
		"anna": {ID: 4, Username: "anna", Role: core.RoleCashier, IsActive: true},
		"olek": {ID: 5, Username: "olek", Role: core.RoleCashier, IsActive: false},
	}}
	svc, _ := newTestApp(t, Services{Users: users}, nil)

	res, err := svc.IssueToken(context.Background(), "anna")
	require.NoError(t, err)
	claims, err := auth.Parse("test-secret", res.Token)
	require.NoError(t, err)
	assert.Equal(t, 4, claims.UserID)
	assert.Equal(t, "Cashier", claims.Role)

	_, err = svc.IssueToken(context.Background(), "olek")
	assert.ErrorIs(t, err, core.ErrValidation)

	_, err = svc.IssueToken(context.Background(), "nobody")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

// ── Error codes ──────────────────────────────────────────────────────────────

func TestErrorCode(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{core.ErrEmptyCart, CodeEmptyCart},
		{fmt.Errorf("x: %w", core.ErrNotFound), CodeNotFound},
		{&core.InsufficientStockError{}, CodeInsufficientStock},
		{fmt.Errorf("x: %w", core.ErrDuplicateKey), CodeDuplicateKey},
		{fmt.Errorf("x: %w", core.ErrValidation), CodeValidation},
		{fmt.Errorf("%w: boom", core.ErrPersistence), CodeInternal},
		{pgx.ErrNoRows, CodeInternal},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ErrorCode(tt.err), tt.err.Error())
	}
}

func sumCounter(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	var total float64
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		for _, m := range f.GetMetric() {
			total += m.GetCounter().GetValue()
		}
	}
	return total
}
