package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// SaleService completes, corrects and queries till sales.
type SaleService interface {
	// CompleteSale validates stock, persists the sale and its lines, decrements the stock
	// ledger and optionally issues an invoice, all in one transaction. Any failure leaves
	// no trace in storage.
	CompleteSale(ctx context.Context, req SaleRequest) (*SaleConfirmation, error)

	// CancelSale transitions Completed → Cancelled, returns the sold quantities to stock and
	// cancels the invoice, if any.
	CancelSale(ctx context.Context, saleID, operatorID int) (*Sale, error)

	GetSale(ctx context.Context, saleID int) (*Sale, error)
	GetSaleByNumber(ctx context.Context, saleNumber string) (*Sale, error)
	ListSales(ctx context.Context, filter SaleFilter) ([]Sale, error)
}

type saleService struct {
	pool    *pgxpool.Pool
	catalog CatalogService
	ledger  StockLedger
	numbers DocumentNumberer
	logger  *zap.Logger
	now     func() time.Time
}

func NewSaleService(pool *pgxpool.Pool, catalog CatalogService, ledger StockLedger, numbers DocumentNumberer, logger *zap.Logger) SaleService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &saleService{
		pool:    pool,
		catalog: catalog,
		ledger:  ledger,
		numbers: numbers,
		logger:  logger,
		now:     time.Now,
	}
}

// ── Completion ────────────────────────────────────────────────────────────────

func (s *saleService) CompleteSale(ctx context.Context, req SaleRequest) (*SaleConfirmation, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	at := req.At
	if at.IsZero() {
		at = s.now()
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, storageErr("begin transaction", err)
	}
	defer tx.Rollback(ctx)

	if _, err := requireActiveOperator(ctx, tx, req.OperatorID); err != nil {
		return nil, err
	}

	// Resolve lines and build the cart. Duplicate products merge into one line.
	cart := NewCart()
	if err := cart.SetDiscount(req.DiscountPercent); err != nil {
		return nil, err
	}
	products := make(map[int]*ProductSnapshot, len(req.Lines))
	for i, in := range req.Lines {
		ref, err := in.ref()
		if err != nil {
			return nil, err
		}
		snap, err := s.catalog.LookupTx(ctx, tx, ref)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i+1, err)
		}
		price := snap.UnitPrice
		if in.UnitPrice.IsPositive() {
			price = in.UnitPrice
		}
		rate := snap.TaxRate
		if in.TaxRate != nil {
			rate = *in.TaxRate
		}
		if err := cart.Add(CartLine{
			ProductID: snap.ID,
			SKU:       snap.SKU,
			Name:      snap.Name,
			Quantity:  in.Quantity,
			UnitPrice: price,
			TaxRate:   rate,
		}); err != nil {
			return nil, fmt.Errorf("line %d: %w", i+1, err)
		}
		products[snap.ID] = snap
	}

	// Lock stock rows and verify sufficiency before anything is written.
	onHand, err := s.ledger.LockTx(ctx, tx, cart.ProductIDs())
	if err != nil {
		return nil, err
	}
	lines := cart.Lines()
	for _, l := range lines {
		if available := onHand[l.ProductID]; available < l.Quantity {
			return nil, &InsufficientStockError{
				ProductID: l.ProductID,
				SKU:       l.SKU,
				Available: available,
				Requested: l.Quantity,
			}
		}
	}

	summary := cart.Summary()
	paid, change, err := Settle(req.PaymentMethod, summary.Total, req.AmountPaid, req.Change)
	if err != nil {
		return nil, err
	}

	saleNumber, err := s.numbers.NextTx(ctx, tx, DocSale, at)
	if err != nil {
		return nil, err
	}

	var saleID int
	err = tx.QueryRow(ctx, `
		INSERT INTO sales (sale_number, sold_at, payment_method, document_type,
		                   subtotal, tax_amount, discount_percent, discount_amount, total,
		                   amount_paid, change_amount, status, operator_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id`,
		saleNumber, at, string(req.PaymentMethod), string(req.DocumentType),
		summary.Subtotal, summary.Tax, summary.DiscountPercent, summary.DiscountAmount, summary.Total,
		paid, change, string(SaleCompleted), req.OperatorID,
	).Scan(&saleID)
	if err != nil {
		return nil, storageErr("insert sale", err)
	}

	for i, l := range lines {
		_, err := tx.Exec(ctx, `
			INSERT INTO sale_lines (sale_id, line_number, product_id, sku, product_name, quantity,
			                        unit_price, tax_rate, tax_amount, net_amount, line_total)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			saleID, i+1, l.ProductID, l.SKU, l.Name, l.Quantity,
			l.UnitPrice, l.TaxRate, l.TaxAmount(), l.NetAmount(), l.Total(),
		)
		if err != nil {
			return nil, storageErr(fmt.Sprintf("insert sale line %d", i+1), err)
		}
	}

	stockAfter := make([]StockLevel, 0, len(lines))
	for _, l := range lines {
		remaining, err := s.ledger.DecrementTx(ctx, tx, l.ProductID, l.Quantity, MovementSale, saleNumber)
		if err != nil {
			return nil, err
		}
		p := products[l.ProductID]
		stockAfter = append(stockAfter, StockLevel{
			ProductID:    p.ID,
			SKU:          p.SKU,
			Name:         p.Name,
			OnHand:       remaining,
			MinimumStock: p.MinimumStock,
			ReorderLevel: p.ReorderLevel,
			Status:       DeriveStatus(remaining, p.MinimumStock, p.ReorderLevel),
		})
	}

	conf := &SaleConfirmation{
		SaleID:     saleID,
		SaleNumber: saleNumber,
		Summary:    summary,
		AmountPaid: paid,
		Change:     change,
		StockAfter: stockAfter,
	}

	if req.DocumentType == DocumentInvoice {
		customerID, err := resolveCustomerTx(ctx, tx, req.Customer.normalized())
		if err != nil {
			return nil, err
		}
		invoiceNumber, err := s.numbers.NextTx(ctx, tx, DocInvoice, at)
		if err != nil {
			return nil, err
		}
		var invoiceID int
		err = tx.QueryRow(ctx, `
			INSERT INTO invoices (invoice_number, sale_id, customer_id, subtotal, tax_amount,
			                      discount_amount, total, status, issued_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			RETURNING id`,
			invoiceNumber, saleID, customerID, summary.Subtotal, summary.Tax,
			summary.DiscountAmount, summary.Total, string(InvoiceIssued), at,
		).Scan(&invoiceID)
		if err != nil {
			return nil, storageErr("insert invoice", err)
		}
		conf.InvoiceID = &invoiceID
		conf.InvoiceNumber = invoiceNumber
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, storageErr("commit sale", err)
	}

	s.logger.Info("sale completed",
		zap.String("sale_number", saleNumber),
		zap.Int("lines", summary.LineCount),
		zap.String("total", summary.Total.StringFixed(2)),
		zap.String("payment_method", string(req.PaymentMethod)),
		zap.String("invoice_number", conf.InvoiceNumber),
	)
	return conf, nil
}

// resolveCustomerTx returns the customer with the given tax number, creating it when absent.
func resolveCustomerTx(ctx context.Context, tx pgx.Tx, c InvoiceCustomer) (int, error) {
	var id int
	err := tx.QueryRow(ctx, `
		INSERT INTO customers (company_name, tax_number, address, city, postal_code)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (tax_number) DO NOTHING
		RETURNING id`,
		c.CompanyName, c.TaxNumber, c.Address, c.City, c.PostalCode,
	).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, storageErr("create customer", err)
	}

	err = tx.QueryRow(ctx, "SELECT id FROM customers WHERE tax_number = $1", c.TaxNumber).Scan(&id)
	if err != nil {
		return 0, storageErr("resolve customer", err)
	}
	return id, nil
}

// ── Corrections ───────────────────────────────────────────────────────────────

func (s *saleService) CancelSale(ctx context.Context, saleID, operatorID int) (*Sale, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, storageErr("begin transaction", err)
	}
	defer tx.Rollback(ctx)

	if _, err := requireActiveOperator(ctx, tx, operatorID); err != nil {
		return nil, err
	}

	var saleNumber string
	var status SaleStatus
	err = tx.QueryRow(ctx, "SELECT sale_number, status FROM sales WHERE id = $1 FOR UPDATE", saleID).
		Scan(&saleNumber, &status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFoundf("sale id=%d not found", saleID)
		}
		return nil, storageErr("read sale for update", err)
	}
	if status != SaleCompleted {
		return nil, validationf("sale %s is %s and cannot be cancelled", saleNumber, status)
	}

	lines, err := fetchSaleLines(ctx, tx, saleID)
	if err != nil {
		return nil, err
	}
	for _, l := range lines {
		if _, err := s.ledger.IncrementTx(ctx, tx, l.ProductID, l.Quantity, MovementSaleCancel, saleNumber); err != nil {
			return nil, err
		}
	}

	if _, err := tx.Exec(ctx, `
		UPDATE sales SET status = $2, cancelled_at = NOW(), cancelled_by = $3
		WHERE id = $1`,
		saleID, string(SaleCancelled), operatorID,
	); err != nil {
		return nil, storageErr("cancel sale", err)
	}
	if _, err := tx.Exec(ctx, "UPDATE invoices SET status = $2 WHERE sale_id = $1", saleID, string(InvoiceCancelled)); err != nil {
		return nil, storageErr("cancel invoice", err)
	}

	sale, err := fetchSale(ctx, tx, saleID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, storageErr("commit sale cancellation", err)
	}

	s.logger.Info("sale cancelled", zap.String("sale_number", saleNumber), zap.Int("operator_id", operatorID))
	return sale, nil
}

// ── Queries ───────────────────────────────────────────────────────────────────

func (s *saleService) GetSale(ctx context.Context, saleID int) (*Sale, error) {
	return fetchSale(ctx, s.pool, saleID)
}

func (s *saleService) GetSaleByNumber(ctx context.Context, saleNumber string) (*Sale, error) {
	var saleID int
	err := s.pool.QueryRow(ctx, "SELECT id FROM sales WHERE sale_number = $1", strings.TrimSpace(saleNumber)).Scan(&saleID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFoundf("sale %s not found", saleNumber)
		}
		return nil, storageErr("look up sale by number", err)
	}
	return fetchSale(ctx, s.pool, saleID)
}

func (s *saleService) ListSales(ctx context.Context, filter SaleFilter) ([]Sale, error) {
	var (
		conds []string
		args  []any
	)
	if filter.Status != nil {
		args = append(args, string(*filter.Status))
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		conds = append(conds, fmt.Sprintf("sold_at >= $%d", len(args)))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		conds = append(conds, fmt.Sprintf("sold_at < $%d", len(args)))
	}
	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	args = append(args, limit)

	query := "SELECT " + saleColumns + " FROM sales"
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += fmt.Sprintf(" ORDER BY sold_at DESC, id DESC LIMIT $%d", len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, storageErr("query sales", err)
	}
	defer rows.Close()

	var sales []Sale
	for rows.Next() {
		var sale Sale
		if err := scanSale(rows, &sale); err != nil {
			return nil, storageErr("scan sale", err)
		}
		sales = append(sales, sale)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("iterate sales", err)
	}
	return sales, nil
}

const saleColumns = `id, sale_number, sold_at, payment_method, document_type,
	subtotal, tax_amount, discount_percent, discount_amount, total,
	amount_paid, change_amount, status, operator_id, cancelled_at`

func scanSale(row pgx.Row, sale *Sale) error {
	return row.Scan(
		&sale.ID, &sale.SaleNumber, &sale.SoldAt, &sale.PaymentMethod, &sale.DocumentType,
		&sale.Subtotal, &sale.TaxAmount, &sale.DiscountPercent, &sale.DiscountAmount, &sale.Total,
		&sale.AmountPaid, &sale.ChangeAmount, &sale.Status, &sale.OperatorID, &sale.CancelledAt,
	)
}

func fetchSale(ctx context.Context, q pgxDB, saleID int) (*Sale, error) {
	var sale Sale
	if err := scanSale(q.QueryRow(ctx, "SELECT "+saleColumns+" FROM sales WHERE id = $1", saleID), &sale); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFoundf("sale id=%d not found", saleID)
		}
		return nil, storageErr("fetch sale", err)
	}

	lines, err := fetchSaleLines(ctx, q, saleID)
	if err != nil {
		return nil, err
	}
	sale.Lines = lines

	inv, err := fetchInvoice(ctx, q, saleID)
	if err != nil {
		return nil, err
	}
	sale.Invoice = inv
	return &sale, nil
}

func fetchSaleLines(ctx context.Context, q pgxDB, saleID int) ([]SaleLine, error) {
	rows, err := q.Query(ctx, `
		SELECT id, sale_id, line_number, product_id, sku, product_name, quantity,
		       unit_price, tax_rate, tax_amount, net_amount, line_total
		FROM sale_lines
		WHERE sale_id = $1
		ORDER BY line_number`,
		saleID,
	)
	if err != nil {
		return nil, storageErr("query sale lines", err)
	}
	defer rows.Close()

	var lines []SaleLine
	for rows.Next() {
		var l SaleLine
		if err := rows.Scan(&l.ID, &l.SaleID, &l.LineNumber, &l.ProductID, &l.SKU, &l.ProductName, &l.Quantity,
			&l.UnitPrice, &l.TaxRate, &l.TaxAmount, &l.NetAmount, &l.LineTotal); err != nil {
			return nil, storageErr("scan sale line", err)
		}
		lines = append(lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("iterate sale lines", err)
	}
	return lines, nil
}

func fetchInvoice(ctx context.Context, q pgxQuerier, saleID int) (*Invoice, error) {
	var inv Invoice
	var c Customer
	err := q.QueryRow(ctx, `
		SELECT i.id, i.invoice_number, i.sale_id, i.customer_id, i.subtotal, i.tax_amount,
		       i.discount_amount, i.total,
		       i.status, i.issued_at,
		       c.id, c.company_name, c.tax_number, c.address, c.city, c.postal_code, c.created_at
		FROM invoices i
		JOIN customers c ON c.id = i.customer_id
		WHERE i.sale_id = $1`,
		saleID,
	).Scan(
		&inv.ID, &inv.InvoiceNumber, &inv.SaleID, &inv.CustomerID, &inv.Subtotal, &inv.TaxAmount,
		&inv.Discount, &inv.Total,
		&inv.Status, &inv.IssuedAt,
		&c.ID, &c.CompanyName, &c.TaxNumber, &c.Address, &c.City, &c.PostalCode, &c.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr("fetch invoice", err)
	}
	inv.Customer = &c
	return &inv, nil
}
