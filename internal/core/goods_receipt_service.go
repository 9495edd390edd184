package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// GoodsReceiptService manages supplier deliveries: Draft → Approved (stock in) or Draft → Cancelled.
type GoodsReceiptService interface {
	// CreateReceipt stores a Draft receipt with its PZ number. Stock is untouched.
	CreateReceipt(ctx context.Context, in GoodsReceiptInput) (*GoodsReceipt, error)
	// ApproveReceipt increments the stock ledger for every line in the same transaction.
	// Approving an already approved receipt is a no-op. The flag reports whether this call
	// performed the Draft → Approved transition; it is decided under the receipt row lock.
	ApproveReceipt(ctx context.Context, receiptID, operatorID int) (*GoodsReceipt, bool, error)
	// CancelReceipt is allowed for Draft receipts only.
	CancelReceipt(ctx context.Context, receiptID, operatorID int) (*GoodsReceipt, error)
	GetReceipt(ctx context.Context, receiptID int) (*GoodsReceipt, error)
	ListReceipts(ctx context.Context, status *ReceiptStatus) ([]GoodsReceipt, error)
}

type goodsReceiptService struct {
	pool    *pgxpool.Pool
	catalog CatalogService
	ledger  StockLedger
	numbers DocumentNumberer
	logger  *zap.Logger
	now     func() time.Time
}

func NewGoodsReceiptService(pool *pgxpool.Pool, catalog CatalogService, ledger StockLedger, numbers DocumentNumberer, logger *zap.Logger) GoodsReceiptService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &goodsReceiptService{
		pool:    pool,
		catalog: catalog,
		ledger:  ledger,
		numbers: numbers,
		logger:  logger,
		now:     time.Now,
	}
}

func (s *goodsReceiptService) CreateReceipt(ctx context.Context, in GoodsReceiptInput) (*GoodsReceipt, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	receiptDate := in.ReceiptDate
	if receiptDate.IsZero() {
		receiptDate = s.now()
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, storageErr("begin transaction", err)
	}
	defer tx.Rollback(ctx)

	if _, err := requireActiveOperator(ctx, tx, in.OperatorID); err != nil {
		return nil, err
	}

	var supplierName string
	if err := tx.QueryRow(ctx, "SELECT name FROM suppliers WHERE id = $1", in.SupplierID).Scan(&supplierName); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFoundf("supplier id=%d not found", in.SupplierID)
		}
		return nil, storageErr("resolve supplier", err)
	}

	// Resolve products; a product may appear on one line only.
	type resolvedLine struct {
		snap     *ProductSnapshot
		quantity int
		unitCost decimal.Decimal
		total    decimal.Decimal
	}
	resolved := make([]resolvedLine, 0, len(in.Lines))
	seen := make(map[int]bool, len(in.Lines))
	totalCost := decimal.Zero
	for i, l := range in.Lines {
		ref := ProductRef{ID: l.ProductID}
		if l.ProductID <= 0 {
			ref = ProductRef{SKU: NormalizeSKU(l.SKU)}
		}
		snap, err := s.catalog.LookupTx(ctx, tx, ref)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i+1, err)
		}
		if seen[snap.ID] {
			return nil, validationf("line %d: product %s appears more than once", i+1, snap.SKU)
		}
		seen[snap.ID] = true
		lineTotal := round2(l.UnitCost.Mul(decimal.NewFromInt(int64(l.Quantity))))
		totalCost = totalCost.Add(lineTotal)
		resolved = append(resolved, resolvedLine{snap: snap, quantity: l.Quantity, unitCost: l.UnitCost, total: lineTotal})
	}

	number, err := s.numbers.NextTx(ctx, tx, DocGoodsReceipt, receiptDate)
	if err != nil {
		return nil, err
	}

	var receiptID int
	err = tx.QueryRow(ctx, `
		INSERT INTO goods_receipts (receipt_number, supplier_id, receipt_date, status, notes, total_cost, operator_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		number, in.SupplierID, receiptDate, string(ReceiptDraft), strings.TrimSpace(in.Notes), totalCost, in.OperatorID,
	).Scan(&receiptID)
	if err != nil {
		return nil, storageErr("insert goods receipt", err)
	}

	for i, r := range resolved {
		_, err := tx.Exec(ctx, `
			INSERT INTO goods_receipt_lines (receipt_id, line_number, product_id, quantity, unit_cost, line_total)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			receiptID, i+1, r.snap.ID, r.quantity, r.unitCost, r.total,
		)
		if err != nil {
			return nil, storageErr(fmt.Sprintf("insert goods receipt line %d", i+1), err)
		}
	}

	receipt, err := fetchReceipt(ctx, tx, receiptID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, storageErr("commit goods receipt", err)
	}

	s.logger.Info("goods receipt created",
		zap.String("receipt_number", number),
		zap.String("supplier", supplierName),
		zap.Int("lines", len(resolved)),
	)
	return receipt, nil
}

func (s *goodsReceiptService) ApproveReceipt(ctx context.Context, receiptID, operatorID int) (*GoodsReceipt, bool, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, false, storageErr("begin transaction", err)
	}
	defer tx.Rollback(ctx)

	if _, err := requireActiveOperator(ctx, tx, operatorID); err != nil {
		return nil, false, err
	}

	number, status, err := lockReceipt(ctx, tx, receiptID)
	if err != nil {
		return nil, false, err
	}
	switch status {
	case ReceiptApproved:
		receipt, err := fetchReceipt(ctx, tx, receiptID)
		return receipt, false, err
	case ReceiptCancelled:
		return nil, false, validationf("goods receipt %s is cancelled and cannot be approved", number)
	}

	lines, err := fetchReceiptLines(ctx, tx, receiptID)
	if err != nil {
		return nil, false, err
	}
	for _, l := range lines {
		if _, err := s.ledger.IncrementTx(ctx, tx, l.ProductID, l.Quantity, MovementReceipt, number); err != nil {
			return nil, false, err
		}
	}

	if _, err := tx.Exec(ctx,
		"UPDATE goods_receipts SET status = $2, approved_at = NOW(), approved_by = $3 WHERE id = $1",
		receiptID, string(ReceiptApproved), operatorID,
	); err != nil {
		return nil, false, storageErr("approve goods receipt", err)
	}

	receipt, err := fetchReceipt(ctx, tx, receiptID)
	if err != nil {
		return nil, false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, false, storageErr("commit goods receipt approval", err)
	}

	s.logger.Info("goods receipt approved", zap.String("receipt_number", number), zap.Int("lines", len(lines)))
	return receipt, true, nil
}

func (s *goodsReceiptService) CancelReceipt(ctx context.Context, receiptID, operatorID int) (*GoodsReceipt, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, storageErr("begin transaction", err)
	}
	defer tx.Rollback(ctx)

	if _, err := requireActiveOperator(ctx, tx, operatorID); err != nil {
		return nil, err
	}

	number, status, err := lockReceipt(ctx, tx, receiptID)
	if err != nil {
		return nil, err
	}
	if status != ReceiptDraft {
		return nil, validationf("goods receipt %s is %s; only Draft receipts can be cancelled", number, status)
	}

	if _, err := tx.Exec(ctx, "UPDATE goods_receipts SET status = $2 WHERE id = $1", receiptID, string(ReceiptCancelled)); err != nil {
		return nil, storageErr("cancel goods receipt", err)
	}

	receipt, err := fetchReceipt(ctx, tx, receiptID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, storageErr("commit goods receipt cancellation", err)
	}
	return receipt, nil
}

func (s *goodsReceiptService) GetReceipt(ctx context.Context, receiptID int) (*GoodsReceipt, error) {
	return fetchReceipt(ctx, s.pool, receiptID)
}

func (s *goodsReceiptService) ListReceipts(ctx context.Context, status *ReceiptStatus) ([]GoodsReceipt, error) {
	query := `
		SELECT ` + receiptColumns + `
		FROM goods_receipts gr
		JOIN suppliers s ON s.id = gr.supplier_id`
	var args []any
	if status != nil {
		query += " WHERE gr.status = $1"
		args = append(args, string(*status))
	}
	query += " ORDER BY gr.receipt_date DESC, gr.id DESC"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, storageErr("query goods receipts", err)
	}
	defer rows.Close()

	var receipts []GoodsReceipt
	for rows.Next() {
		var r GoodsReceipt
		if err := scanReceipt(rows, &r); err != nil {
			return nil, storageErr("scan goods receipt", err)
		}
		receipts = append(receipts, r)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("iterate goods receipts", err)
	}
	return receipts, nil
}

// ── Helpers ───────────────────────────────────────────────────────────────────

const receiptColumns = `gr.id, gr.receipt_number, gr.supplier_id, s.name, gr.receipt_date, gr.status,
	gr.notes, gr.total_cost, gr.operator_id, gr.approved_at, gr.created_at`

func scanReceipt(row pgx.Row, r *GoodsReceipt) error {
	return row.Scan(&r.ID, &r.ReceiptNumber, &r.SupplierID, &r.SupplierName, &r.ReceiptDate, &r.Status,
		&r.Notes, &r.TotalCost, &r.OperatorID, &r.ApprovedAt, &r.CreatedAt)
}

func lockReceipt(ctx context.Context, tx pgx.Tx, receiptID int) (string, ReceiptStatus, error) {
	var number string
	var status ReceiptStatus
	err := tx.QueryRow(ctx, "SELECT receipt_number, status FROM goods_receipts WHERE id = $1 FOR UPDATE", receiptID).
		Scan(&number, &status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", "", notFoundf("goods receipt id=%d not found", receiptID)
		}
		return "", "", storageErr("read goods receipt for update", err)
	}
	return number, status, nil
}

func fetchReceipt(ctx context.Context, q pgxDB, receiptID int) (*GoodsReceipt, error) {
	var r GoodsReceipt
	err := scanReceipt(q.QueryRow(ctx, `
		SELECT `+receiptColumns+`
		FROM goods_receipts gr
		JOIN suppliers s ON s.id = gr.supplier_id
		WHERE gr.id = $1`,
		receiptID,
	), &r)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFoundf("goods receipt id=%d not found", receiptID)
		}
		return nil, storageErr("fetch goods receipt", err)
	}

	lines, err := fetchReceiptLines(ctx, q, receiptID)
	if err != nil {
		return nil, err
	}
	r.Lines = lines
	return &r, nil
}

func fetchReceiptLines(ctx context.Context, q pgxDB, receiptID int) ([]GoodsReceiptLine, error) {
	rows, err := q.Query(ctx, `
		SELECT l.id, l.receipt_id, l.line_number, l.product_id, p.sku, p.name, l.quantity, l.unit_cost, l.line_total
		FROM goods_receipt_lines l
		JOIN products p ON p.id = l.product_id
		WHERE l.receipt_id = $1
		ORDER BY l.product_id`,
		receiptID,
	)
	if err != nil {
		return nil, storageErr("query goods receipt lines", err)
	}
	defer rows.Close()

	var lines []GoodsReceiptLine
	for rows.Next() {
		var l GoodsReceiptLine
		if err := rows.Scan(&l.ID, &l.ReceiptID, &l.LineNumber, &l.ProductID, &l.SKU, &l.ProductName,
			&l.Quantity, &l.UnitCost, &l.LineTotal); err != nil {
			return nil, storageErr("scan goods receipt line", err)
		}
		lines = append(lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("iterate goods receipt lines", err)
	}
	return lines, nil
}
