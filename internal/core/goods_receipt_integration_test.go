package core_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"bikeshop-pos/internal/core"

	"github.com/shopspring/decimal"
)

func deliveryInput(lines ...core.GoodsReceiptLineInput) core.GoodsReceiptInput {
	return core.GoodsReceiptInput{
		SupplierID:  1,
		ReceiptDate: time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC),
		Notes:       "spring delivery",
		OperatorID:  1,
		Lines:       lines,
	}
}

func TestGoodsReceipt_ApproveIncrementsStock(t *testing.T) {
	pool, ctx := setupTestDB(t)
	svc := newTestServices(pool)

	receipt, err := svc.receipts.CreateReceipt(ctx, deliveryInput(
		core.GoodsReceiptLineInput{SKU: "BIKE-001", Quantity: 4, UnitCost: decimal.RequireFromString("1600.00")},
		core.GoodsReceiptLineInput{SKU: "LOCK-003", Quantity: 6, UnitCost: decimal.RequireFromString("180.50")},
	))
	if err != nil {
		t.Fatalf("CreateReceipt failed: %v", err)
	}
	if receipt.ReceiptNumber != "PZ/25/03/001" {
		t.Errorf("expected PZ/25/03/001, got %s", receipt.ReceiptNumber)
	}
	if receipt.Status != core.ReceiptDraft {
		t.Errorf("expected Draft, got %s", receipt.Status)
	}
	if !receipt.TotalCost.Equal(decimal.RequireFromString("7483.00")) {
		t.Errorf("expected total cost 7483.00, got %s", receipt.TotalCost)
	}

	// A draft does not touch stock.
	if got := readOnHand(t, ctx, svc.ledger, 1); got != 5 {
		t.Errorf("expected BIKE-001 still at 5 while draft, got %d", got)
	}

	approved, changed, err := svc.receipts.ApproveReceipt(ctx, receipt.ID, 1)
	if err != nil {
		t.Fatalf("ApproveReceipt failed: %v", err)
	}
	if !changed {
		t.Error("expected the first approval to report the transition")
	}
	if approved.Status != core.ReceiptApproved || approved.ApprovedAt == nil {
		t.Errorf("expected Approved with timestamp, got %s", approved.Status)
	}
	if got := readOnHand(t, ctx, svc.ledger, 1); got != 9 {
		t.Errorf("expected BIKE-001 at 9, got %d", got)
	}
	if got := readOnHand(t, ctx, svc.ledger, 3); got != 6 {
		t.Errorf("expected LOCK-003 row created at 6, got %d", got)
	}

	// Approving again is a no-op.
	again, changed, err := svc.receipts.ApproveReceipt(ctx, receipt.ID, 1)
	if err != nil {
		t.Fatalf("second ApproveReceipt failed: %v", err)
	}
	if changed || again.Status != core.ReceiptApproved {
		t.Errorf("expected a no-op on repeat approval, got changed=%v status=%s", changed, again.Status)
	}
	if got := readOnHand(t, ctx, svc.ledger, 1); got != 9 {
		t.Errorf("expected BIKE-001 to stay at 9 after repeat approval, got %d", got)
	}

	if _, err := svc.receipts.CancelReceipt(ctx, receipt.ID, 1); !errors.Is(err, core.ErrValidation) {
		t.Errorf("expected ErrValidation cancelling an approved receipt, got %v", err)
	}
}

func TestGoodsReceipt_CancelDraft(t *testing.T) {
	pool, ctx := setupTestDB(t)
	svc := newTestServices(pool)

	receipt, err := svc.receipts.CreateReceipt(ctx, deliveryInput(
		core.GoodsReceiptLineInput{ProductID: 2, Quantity: 3, UnitCost: decimal.RequireFromString("95.00")},
	))
	if err != nil {
		t.Fatalf("CreateReceipt failed: %v", err)
	}

	cancelled, err := svc.receipts.CancelReceipt(ctx, receipt.ID, 1)
	if err != nil {
		t.Fatalf("CancelReceipt failed: %v", err)
	}
	if cancelled.Status != core.ReceiptCancelled {
		t.Errorf("expected Cancelled, got %s", cancelled.Status)
	}

	if _, _, err := svc.receipts.ApproveReceipt(ctx, receipt.ID, 1); !errors.Is(err, core.ErrValidation) {
		t.Errorf("expected ErrValidation approving a cancelled receipt, got %v", err)
	}
	if got := readOnHand(t, ctx, svc.ledger, 2); got != 10 {
		t.Errorf("expected HELM-002 untouched at 10, got %d", got)
	}

	draft := core.ReceiptDraft
	drafts, err := svc.receipts.ListReceipts(ctx, &draft)
	if err != nil {
		t.Fatalf("ListReceipts failed: %v", err)
	}
	if len(drafts) != 0 {
		t.Errorf("expected no drafts left, got %d", len(drafts))
	}
}

func TestGoodsReceipt_ConcurrentApprovalsTransitionOnce(t *testing.T) {
	pool, ctx := setupTestDB(t)
	svc := newTestServices(pool)

	receipt, err := svc.receipts.CreateReceipt(ctx, deliveryInput(
		core.GoodsReceiptLineInput{SKU: "HELM-002", Quantity: 5, UnitCost: decimal.RequireFromString("95.00")},
	))
	if err != nil {
		t.Fatalf("CreateReceipt failed: %v", err)
	}

	const approvers = 4
	results := make(chan bool, approvers)
	errs := make(chan error, approvers)
	var wg sync.WaitGroup
	for i := 0; i < approvers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, changed, err := svc.receipts.ApproveReceipt(ctx, receipt.ID, 1)
			if err != nil {
				errs <- err
				return
			}
			results <- changed
		}()
	}
	wg.Wait()
	close(results)
	close(errs)

	for err := range errs {
		t.Errorf("ApproveReceipt failed: %v", err)
	}
	transitions := 0
	for changed := range results {
		if changed {
			transitions++
		}
	}
	if transitions != 1 {
		t.Errorf("expected exactly one approval to report the transition, got %d", transitions)
	}
	if got := readOnHand(t, ctx, svc.ledger, 2); got != 15 {
		t.Errorf("expected HELM-002 incremented once to 15, got %d", got)
	}
}

func TestGoodsReceipt_Rejections(t *testing.T) {
	pool, ctx := setupTestDB(t)
	svc := newTestServices(pool)

	line := core.GoodsReceiptLineInput{SKU: "HELM-002", Quantity: 1, UnitCost: decimal.RequireFromString("95.00")}

	unknownSupplier := deliveryInput(line)
	unknownSupplier.SupplierID = 42
	if _, err := svc.receipts.CreateReceipt(ctx, unknownSupplier); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("expected ErrNotFound for an unknown supplier, got %v", err)
	}

	if _, err := svc.receipts.CreateReceipt(ctx, deliveryInput(line, line)); !errors.Is(err, core.ErrValidation) {
		t.Errorf("expected ErrValidation for a repeated product, got %v", err)
	}

	if _, err := svc.receipts.CreateReceipt(ctx, deliveryInput()); !errors.Is(err, core.ErrValidation) {
		t.Errorf("expected ErrValidation for an empty receipt, got %v", err)
	}

	var receipts int
	if err := pool.QueryRow(ctx, "SELECT COUNT(*) FROM goods_receipts").Scan(&receipts); err != nil {
		t.Fatalf("count receipts: %v", err)
	}
	if receipts != 0 {
		t.Errorf("expected no receipts persisted, got %d", receipts)
	}
}
