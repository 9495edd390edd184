package core_test

import (
	"errors"
	"testing"
	"time"

	"bikeshop-pos/internal/core"

	"github.com/shopspring/decimal"
)

var saleDay = time.Date(2025, 3, 14, 10, 30, 0, 0, time.UTC)

func cashSale(paid string, lines ...core.SaleLineInput) core.SaleRequest {
	return core.SaleRequest{
		Lines:         lines,
		PaymentMethod: core.PaymentCash,
		AmountPaid:    decimal.RequireFromString(paid),
		DocumentType:  core.DocumentReceipt,
		OperatorID:    2,
		At:            saleDay,
	}
}

func TestCompleteSale_CashReceipt(t *testing.T) {
	pool, ctx := setupTestDB(t)
	svc := newTestServices(pool)

	conf, err := svc.sales.CompleteSale(ctx, cashSale("3100.00", core.SaleLineInput{SKU: "bike-001", Quantity: 1}))
	if err != nil {
		t.Fatalf("CompleteSale failed: %v", err)
	}

	if conf.SaleNumber != "S-2025-001" {
		t.Errorf("expected sale number S-2025-001, got %s", conf.SaleNumber)
	}
	if !conf.Summary.Total.Equal(decimal.RequireFromString("3073.77")) {
		t.Errorf("expected total 3073.77, got %s", conf.Summary.Total)
	}
	if !conf.Change.Equal(decimal.RequireFromString("26.23")) {
		t.Errorf("expected change 26.23, got %s", conf.Change)
	}
	if len(conf.StockAfter) != 1 || conf.StockAfter[0].OnHand != 4 || conf.StockAfter[0].Status != core.StockLow {
		t.Errorf("expected BIKE-001 at 4 LowStock after sale, got %+v", conf.StockAfter)
	}
	if conf.InvoiceID != nil {
		t.Errorf("expected no invoice for a receipt sale, got %d", *conf.InvoiceID)
	}

	sale, err := svc.sales.GetSaleByNumber(ctx, conf.SaleNumber)
	if err != nil {
		t.Fatalf("GetSaleByNumber failed: %v", err)
	}
	if sale.Status != core.SaleCompleted || len(sale.Lines) != 1 {
		t.Errorf("expected a Completed sale with 1 line, got %s with %d lines", sale.Status, len(sale.Lines))
	}
	if !sale.Lines[0].UnitPrice.Equal(decimal.RequireFromString("2499.00")) {
		t.Errorf("expected catalog unit price 2499.00, got %s", sale.Lines[0].UnitPrice)
	}
}

func TestCompleteSale_InsufficientStockLeavesNoTrace(t *testing.T) {
	pool, ctx := setupTestDB(t)
	svc := newTestServices(pool)

	if _, err := pool.Exec(ctx, "UPDATE stock_levels SET on_hand = 3 WHERE product_id = 1"); err != nil {
		t.Fatalf("Failed to set stock: %v", err)
	}

	_, err := svc.sales.CompleteSale(ctx, cashSale("20000.00", core.SaleLineInput{ProductID: 1, Quantity: 5}))
	var short *core.InsufficientStockError
	if !errors.As(err, &short) {
		t.Fatalf("expected InsufficientStockError, got %v", err)
	}
	if short.Available != 3 || short.Requested != 5 {
		t.Errorf("expected available 3 requested 5, got %+v", short)
	}

	if got := readOnHand(t, ctx, svc.ledger, 1); got != 3 {
		t.Errorf("expected on hand unchanged at 3, got %d", got)
	}
	var sales int
	if err := pool.QueryRow(ctx, "SELECT COUNT(*) FROM sales").Scan(&sales); err != nil {
		t.Fatalf("count sales: %v", err)
	}
	if sales != 0 {
		t.Errorf("expected no sales rows, got %d", sales)
	}
}

func TestCompleteSale_AllOrNothing(t *testing.T) {
	pool, ctx := setupTestDB(t)
	svc := newTestServices(pool)

	// LOCK-003 has no stock row, so the whole sale must fail.
	_, err := svc.sales.CompleteSale(ctx, cashSale("5000.00",
		core.SaleLineInput{SKU: "BIKE-001", Quantity: 1},
		core.SaleLineInput{SKU: "LOCK-003", Quantity: 1},
	))
	if !errors.Is(err, core.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}

	if got := readOnHand(t, ctx, svc.ledger, 1); got != 5 {
		t.Errorf("expected BIKE-001 still at 5, got %d", got)
	}
	var sales, movements int
	if err := pool.QueryRow(ctx, "SELECT COUNT(*) FROM sales").Scan(&sales); err != nil {
		t.Fatalf("count sales: %v", err)
	}
	if err := pool.QueryRow(ctx, "SELECT COUNT(*) FROM stock_movements").Scan(&movements); err != nil {
		t.Fatalf("count movements: %v", err)
	}
	if sales != 0 || movements != 0 {
		t.Errorf("expected no sales and no movements, got %d sales, %d movements", sales, movements)
	}
}

func TestCompleteSale_NumbersIncrease(t *testing.T) {
	pool, ctx := setupTestDB(t)
	svc := newTestServices(pool)

	want := []string{"S-2025-001", "S-2025-002", "S-2025-003"}
	for i, w := range want {
		conf, err := svc.sales.CompleteSale(ctx, cashSale("200.00", core.SaleLineInput{SKU: "HELM-002", Quantity: 1}))
		if err != nil {
			t.Fatalf("sale %d failed: %v", i+1, err)
		}
		if conf.SaleNumber != w {
			t.Errorf("sale %d: expected %s, got %s", i+1, w, conf.SaleNumber)
		}
	}

	if got := readOnHand(t, ctx, svc.ledger, 2); got != 7 {
		t.Errorf("expected HELM-002 at 7 after three sales, got %d", got)
	}
}

func TestCompleteSale_InvoiceReusesCustomer(t *testing.T) {
	pool, ctx := setupTestDB(t)
	svc := newTestServices(pool)

	req := core.SaleRequest{
		Lines:         []core.SaleLineInput{{SKU: "HELM-002", Quantity: 2}},
		PaymentMethod: core.PaymentCard,
		DocumentType:  core.DocumentInvoice,
		Customer: &core.InvoiceCustomer{
			CompanyName: "Rowerownia Sp. z o.o.",
			TaxNumber:   "7010002222",
			City:        "Warszawa",
		},
		OperatorID: 2,
		At:         saleDay,
	}

	first, err := svc.sales.CompleteSale(ctx, req)
	if err != nil {
		t.Fatalf("first invoice sale failed: %v", err)
	}
	if first.InvoiceID == nil || first.InvoiceNumber != "FV/2025/03/0001" {
		t.Fatalf("expected invoice FV/2025/03/0001, got %q", first.InvoiceNumber)
	}
	if !first.AmountPaid.Equal(first.Summary.Total) || !first.Change.IsZero() {
		t.Errorf("expected card paid = total and zero change, got paid %s change %s", first.AmountPaid, first.Change)
	}

	second, err := svc.sales.CompleteSale(ctx, req)
	if err != nil {
		t.Fatalf("second invoice sale failed: %v", err)
	}
	if second.InvoiceNumber != "FV/2025/03/0002" {
		t.Errorf("expected invoice FV/2025/03/0002, got %q", second.InvoiceNumber)
	}

	var customers int
	if err := pool.QueryRow(ctx, "SELECT COUNT(*) FROM customers").Scan(&customers); err != nil {
		t.Fatalf("count customers: %v", err)
	}
	if customers != 1 {
		t.Errorf("expected the customer to be reused, got %d rows", customers)
	}

	sale, err := svc.sales.GetSale(ctx, second.SaleID)
	if err != nil {
		t.Fatalf("GetSale failed: %v", err)
	}
	if sale.Invoice == nil || sale.Invoice.Status != core.InvoiceIssued {
		t.Errorf("expected an Issued invoice on the sale, got %+v", sale.Invoice)
	}
}

func TestCancelSale_RestoresStock(t *testing.T) {
	pool, ctx := setupTestDB(t)
	svc := newTestServices(pool)

	conf, err := svc.sales.CompleteSale(ctx, cashSale("400.00", core.SaleLineInput{SKU: "HELM-002", Quantity: 2}))
	if err != nil {
		t.Fatalf("CompleteSale failed: %v", err)
	}
	if got := readOnHand(t, ctx, svc.ledger, 2); got != 8 {
		t.Fatalf("expected 8 after sale, got %d", got)
	}

	sale, err := svc.sales.CancelSale(ctx, conf.SaleID, 1)
	if err != nil {
		t.Fatalf("CancelSale failed: %v", err)
	}
	if sale.Status != core.SaleCancelled || sale.CancelledAt == nil {
		t.Errorf("expected Cancelled sale with timestamp, got %s", sale.Status)
	}
	if got := readOnHand(t, ctx, svc.ledger, 2); got != 10 {
		t.Errorf("expected stock restored to 10, got %d", got)
	}

	if _, err := svc.sales.CancelSale(ctx, conf.SaleID, 1); !errors.Is(err, core.ErrValidation) {
		t.Errorf("expected ErrValidation cancelling twice, got %v", err)
	}
	if _, err := svc.sales.CancelSale(ctx, 999, 1); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("expected ErrNotFound for a missing sale, got %v", err)
	}
}

func TestCompleteSale_DisabledOperator(t *testing.T) {
	pool, ctx := setupTestDB(t)
	svc := newTestServices(pool)

	req := cashSale("200.00", core.SaleLineInput{SKU: "HELM-002", Quantity: 1})
	req.OperatorID = 3
	if _, err := svc.sales.CompleteSale(ctx, req); !errors.Is(err, core.ErrValidation) {
		t.Errorf("expected ErrValidation for a disabled operator, got %v", err)
	}
	if got := readOnHand(t, ctx, svc.ledger, 2); got != 10 {
		t.Errorf("expected stock untouched, got %d", got)
	}
}

func TestListSales_FiltersByStatus(t *testing.T) {
	pool, ctx := setupTestDB(t)
	svc := newTestServices(pool)

	var ids []int
	for i := 0; i < 2; i++ {
		conf, err := svc.sales.CompleteSale(ctx, cashSale("200.00", core.SaleLineInput{SKU: "HELM-002", Quantity: 1}))
		if err != nil {
			t.Fatalf("sale %d failed: %v", i+1, err)
		}
		ids = append(ids, conf.SaleID)
	}
	if _, err := svc.sales.CancelSale(ctx, ids[0], 1); err != nil {
		t.Fatalf("CancelSale failed: %v", err)
	}

	status := core.SaleCompleted
	sales, err := svc.sales.ListSales(ctx, core.SaleFilter{Status: &status})
	if err != nil {
		t.Fatalf("ListSales failed: %v", err)
	}
	if len(sales) != 1 || sales[0].ID != ids[1] {
		t.Errorf("expected only sale %d to be Completed, got %+v", ids[1], sales)
	}

	all, err := svc.sales.ListSales(ctx, core.SaleFilter{})
	if err != nil {
		t.Fatalf("ListSales failed: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("expected 2 sales in total, got %d", len(all))
	}
}

func TestCompleteSale_FallbackNumberWhenSequenceFails(t *testing.T) {
	pool, ctx := setupTestDB(t)
	svc := newTestServices(pool)

	// Make every SALE sequence upsert fail; invoices and receipts stay unaffected.
	if _, err := pool.Exec(ctx, `
		ALTER TABLE document_sequences
		ADD CONSTRAINT document_sequences_no_sale CHECK (kind <> 'SALE')`); err != nil {
		t.Fatalf("Failed to block sale sequence: %v", err)
	}
	t.Cleanup(func() {
		_, _ = pool.Exec(ctx, "ALTER TABLE document_sequences DROP CONSTRAINT IF EXISTS document_sequences_no_sale")
	})

	conf, err := svc.sales.CompleteSale(ctx, cashSale("200.00", core.SaleLineInput{SKU: "HELM-002", Quantity: 1}))
	if err != nil {
		t.Fatalf("expected the sale to commit with a fallback number, got %v", err)
	}

	want := core.FallbackDocumentNumber(core.DocSale, saleDay)
	if conf.SaleNumber != want {
		t.Errorf("expected fallback number %s, got %s", want, conf.SaleNumber)
	}

	sale, err := svc.sales.GetSaleByNumber(ctx, want)
	if err != nil {
		t.Fatalf("GetSaleByNumber(%s) failed: %v", want, err)
	}
	if sale.Status != core.SaleCompleted || len(sale.Lines) != 1 {
		t.Errorf("expected a Completed sale with 1 line, got %s with %d lines", sale.Status, len(sale.Lines))
	}
	if got := readOnHand(t, ctx, svc.ledger, 2); got != 9 {
		t.Errorf("expected HELM-002 decremented to 9, got %d", got)
	}

	var sequences int
	if err := pool.QueryRow(ctx, "SELECT COUNT(*) FROM document_sequences WHERE kind = 'SALE'").Scan(&sequences); err != nil {
		t.Fatalf("count sequences: %v", err)
	}
	if sequences != 0 {
		t.Errorf("expected no SALE sequence row, got %d", sequences)
	}
}

func TestCompleteSale_InvoiceCarriesDiscount(t *testing.T) {
	pool, ctx := setupTestDB(t)
	svc := newTestServices(pool)

	conf, err := svc.sales.CompleteSale(ctx, core.SaleRequest{
		Lines:           []core.SaleLineInput{{SKU: "HELM-002", Quantity: 1}},
		PaymentMethod:   core.PaymentCard,
		DocumentType:    core.DocumentInvoice,
		Customer:        &core.InvoiceCustomer{CompanyName: "Rowerownia Sp. z o.o.", TaxNumber: "7010002222"},
		DiscountPercent: decimal.NewFromInt(10),
		OperatorID:      2,
		At:              saleDay,
	})
	if err != nil {
		t.Fatalf("CompleteSale failed: %v", err)
	}

	sale, err := svc.sales.GetSale(ctx, conf.SaleID)
	if err != nil {
		t.Fatalf("GetSale failed: %v", err)
	}
	inv := sale.Invoice
	if inv == nil {
		t.Fatal("expected an invoice on the sale")
	}
	// 199.99 + 46.00 tax = 245.99 gross; 10% discount = 24.60.
	if !inv.Discount.Equal(decimal.RequireFromString("24.60")) {
		t.Errorf("expected invoice discount 24.60, got %s", inv.Discount)
	}
	if !inv.Subtotal.Add(inv.TaxAmount).Sub(inv.Discount).Equal(inv.Total) {
		t.Errorf("invoice does not add up: %s + %s - %s != %s", inv.Subtotal, inv.TaxAmount, inv.Discount, inv.Total)
	}
	if !inv.Total.Equal(sale.Total) {
		t.Errorf("expected invoice total %s to match sale total %s", inv.Total, sale.Total)
	}
}
