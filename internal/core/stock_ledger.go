package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// StockLedger is the only writer of stock_levels and stock_movements.
// On-hand quantity never drops below zero.
type StockLedger interface {
	// Read returns the current on-hand quantity, or 0 when no stock row exists.
	Read(ctx context.Context, productID int) (int, error)

	// Increment and Decrement run in their own transaction and return the new on-hand quantity.
	Increment(ctx context.Context, productID, qty int, reason MovementReason, reference string) (int, error)
	Decrement(ctx context.Context, productID, qty int, reason MovementReason, reference string) (int, error)

	// IncrementTx creates the stock row when absent and adds qty.
	IncrementTx(ctx context.Context, tx pgx.Tx, productID, qty int, reason MovementReason, reference string) (int, error)
	// DecrementTx subtracts qty only when on-hand ≥ qty; otherwise it returns
	// *InsufficientStockError and leaves the row untouched.
	DecrementTx(ctx context.Context, tx pgx.Tx, productID, qty int, reason MovementReason, reference string) (int, error)
	// LockTx row-locks the stock rows of the given products in ascending product order and
	// returns their on-hand quantities. Products without a stock row map to 0.
	LockTx(ctx context.Context, tx pgx.Tx, productIDs []int) (map[int]int, error)

	// Movements returns the most recent history entries for a product, newest first.
	Movements(ctx context.Context, productID, limit int) ([]StockMovement, error)
}

type stockLedger struct {
	pool *pgxpool.Pool
}

func NewStockLedger(pool *pgxpool.Pool) StockLedger {
	return &stockLedger{pool: pool}
}

// ── Standalone operations ─────────────────────────────────────────────────────

func (l *stockLedger) Read(ctx context.Context, productID int) (int, error) {
	return readOnHand(ctx, l.pool, productID)
}

func (l *stockLedger) Increment(ctx context.Context, productID, qty int, reason MovementReason, reference string) (int, error) {
	return l.inTx(ctx, func(tx pgx.Tx) (int, error) {
		return l.IncrementTx(ctx, tx, productID, qty, reason, reference)
	})
}

func (l *stockLedger) Decrement(ctx context.Context, productID, qty int, reason MovementReason, reference string) (int, error) {
	return l.inTx(ctx, func(tx pgx.Tx) (int, error) {
		return l.DecrementTx(ctx, tx, productID, qty, reason, reference)
	})
}

func (l *stockLedger) inTx(ctx context.Context, fn func(tx pgx.Tx) (int, error)) (int, error) {
	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return 0, storageErr("begin transaction", err)
	}
	defer tx.Rollback(ctx)

	onHand, err := fn(tx)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, storageErr("commit stock change", err)
	}
	return onHand, nil
}

func (l *stockLedger) Movements(ctx context.Context, productID, limit int) ([]StockMovement, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := l.pool.Query(ctx, `
		SELECT id, product_id, change, on_hand_after, reason, reference, created_at
		FROM stock_movements
		WHERE product_id = $1
		ORDER BY id DESC
		LIMIT $2`,
		productID, limit,
	)
	if err != nil {
		return nil, storageErr("query stock movements", err)
	}
	defer rows.Close()

	var movements []StockMovement
	for rows.Next() {
		var m StockMovement
		if err := rows.Scan(&m.ID, &m.ProductID, &m.Change, &m.OnHandAfter, &m.Reason, &m.Reference, &m.CreatedAt); err != nil {
			return nil, storageErr("scan stock movement", err)
		}
		movements = append(movements, m)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("iterate stock movements", err)
	}
	return movements, nil
}

// ── TX-scoped operations ──────────────────────────────────────────────────────

func (l *stockLedger) IncrementTx(ctx context.Context, tx pgx.Tx, productID, qty int, reason MovementReason, reference string) (int, error) {
	if qty <= 0 {
		return 0, validationf("increment quantity must be positive, got %d", qty)
	}

	var onHand int
	err := tx.QueryRow(ctx, `
		INSERT INTO stock_levels (product_id, on_hand, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (product_id)
		DO UPDATE SET on_hand = stock_levels.on_hand + EXCLUDED.on_hand, updated_at = NOW()
		RETURNING on_hand`,
		productID, qty,
	).Scan(&onHand)
	if err != nil {
		return 0, storageErr(fmt.Sprintf("increment stock for product %d", productID), err)
	}

	if err := recordMovement(ctx, tx, productID, qty, onHand, reason, reference); err != nil {
		return 0, err
	}
	return onHand, nil
}

func (l *stockLedger) DecrementTx(ctx context.Context, tx pgx.Tx, productID, qty int, reason MovementReason, reference string) (int, error) {
	if qty <= 0 {
		return 0, validationf("decrement quantity must be positive, got %d", qty)
	}

	var onHand int
	err := tx.QueryRow(ctx, `
		UPDATE stock_levels
		SET on_hand = on_hand - $2, updated_at = NOW()
		WHERE product_id = $1 AND on_hand >= $2
		RETURNING on_hand`,
		productID, qty,
	).Scan(&onHand)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, shortfall(ctx, tx, productID, qty)
	}
	if err != nil {
		return 0, storageErr(fmt.Sprintf("decrement stock for product %d", productID), err)
	}

	if err := recordMovement(ctx, tx, productID, -qty, onHand, reason, reference); err != nil {
		return 0, err
	}
	return onHand, nil
}

func (l *stockLedger) LockTx(ctx context.Context, tx pgx.Tx, productIDs []int) (map[int]int, error) {
	levels := make(map[int]int, len(productIDs))
	if len(productIDs) == 0 {
		return levels, nil
	}
	for _, id := range productIDs {
		levels[id] = 0
	}

	rows, err := tx.Query(ctx, `
		SELECT product_id, on_hand
		FROM stock_levels
		WHERE product_id = ANY($1)
		ORDER BY product_id
		FOR UPDATE`,
		productIDs,
	)
	if err != nil {
		return nil, storageErr("lock stock rows", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, onHand int
		if err := rows.Scan(&id, &onHand); err != nil {
			return nil, storageErr("scan locked stock row", err)
		}
		levels[id] = onHand
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("lock stock rows", err)
	}
	return levels, nil
}

// ── Helpers ───────────────────────────────────────────────────────────────────

func readOnHand(ctx context.Context, q pgxQuerier, productID int) (int, error) {
	var onHand int
	err := q.QueryRow(ctx, "SELECT on_hand FROM stock_levels WHERE product_id = $1", productID).Scan(&onHand)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, storageErr(fmt.Sprintf("read stock for product %d", productID), err)
	}
	return onHand, nil
}

// shortfall builds the InsufficientStockError for a failed conditional decrement.
func shortfall(ctx context.Context, q pgxQuerier, productID, requested int) error {
	var sku string
	var available int
	err := q.QueryRow(ctx, `
		SELECT p.sku, COALESCE(sl.on_hand, 0)
		FROM products p
		LEFT JOIN stock_levels sl ON sl.product_id = p.id
		WHERE p.id = $1`,
		productID,
	).Scan(&sku, &available)
	if errors.Is(err, pgx.ErrNoRows) {
		return notFoundf("product id=%d not found", productID)
	}
	if err != nil {
		return storageErr(fmt.Sprintf("read stock for product %d", productID), err)
	}
	return &InsufficientStockError{ProductID: productID, SKU: sku, Available: available, Requested: requested}
}

func recordMovement(ctx context.Context, tx pgx.Tx, productID, change, onHandAfter int, reason MovementReason, reference string) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO stock_movements (product_id, change, on_hand_after, reason, reference)
		VALUES ($1, $2, $3, $4, $5)`,
		productID, change, onHandAfter, string(reason), reference,
	)
	if err != nil {
		return storageErr("record stock movement", err)
	}
	return nil
}
