package core

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// DocumentKind selects the numbering series.
type DocumentKind string

const (
	DocSale         DocumentKind = "SALE"
	DocInvoice      DocumentKind = "INVOICE"
	DocGoodsReceipt DocumentKind = "GOODS_RECEIPT"
)

// DocumentNumberer issues period-scoped sequential document numbers:
//
//	Sale          S-<yyyy>-<NNN>
//	Invoice       FV/<yyyy>/<MM>/<NNNN>
//	GoodsReceipt  PZ/<yy>/<MM>/<NNN>
type DocumentNumberer interface {
	// NextTx returns the next number for kind in the period containing at. The sequence row
	// is locked until tx ends, so numbers within a period are gapless and strictly increasing.
	// If the sequence cannot be advanced, a timestamp-based fallback number is returned instead.
	NextTx(ctx context.Context, tx pgx.Tx, kind DocumentKind, at time.Time) (string, error)
}

type documentNumberer struct {
	logger *zap.Logger
}

func NewDocumentNumberer(logger *zap.Logger) DocumentNumberer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &documentNumberer{logger: logger}
}

func (n *documentNumberer) NextTx(ctx context.Context, tx pgx.Tx, kind DocumentKind, at time.Time) (string, error) {
	if _, err := documentPrefix(kind); err != nil {
		return "", err
	}
	period := PeriodKey(kind, at)

	// Savepoint: a failed upsert must not poison the caller's transaction.
	sp, err := tx.Begin(ctx)
	if err != nil {
		return n.fallback(kind, at, err), nil
	}

	var last int64
	err = sp.QueryRow(ctx, `
		INSERT INTO document_sequences (kind, period, last_number)
		VALUES ($1, $2, 1)
		ON CONFLICT (kind, period)
		DO UPDATE SET last_number = document_sequences.last_number + 1
		RETURNING last_number`,
		string(kind), period,
	).Scan(&last)
	if err != nil {
		_ = sp.Rollback(ctx)
		return n.fallback(kind, at, err), nil
	}
	if err := sp.Commit(ctx); err != nil {
		return n.fallback(kind, at, err), nil
	}
	return FormatDocumentNumber(kind, at, last), nil
}

func (n *documentNumberer) fallback(kind DocumentKind, at time.Time, cause error) string {
	number := FallbackDocumentNumber(kind, at)
	n.logger.Warn("document sequence unavailable, using fallback number",
		zap.String("kind", string(kind)),
		zap.String("number", number),
		zap.Error(cause),
	)
	return number
}

// PeriodKey is the sequence partition a number belongs to.
func PeriodKey(kind DocumentKind, at time.Time) string {
	switch kind {
	case DocInvoice:
		return at.Format("2006-01")
	case DocGoodsReceipt:
		return at.Format("06-01")
	default:
		return at.Format("2006")
	}
}

// FormatDocumentNumber renders sequence value n for the period containing at.
func FormatDocumentNumber(kind DocumentKind, at time.Time, n int64) string {
	switch kind {
	case DocInvoice:
		return fmt.Sprintf("FV/%04d/%02d/%04d", at.Year(), int(at.Month()), n)
	case DocGoodsReceipt:
		return fmt.Sprintf("PZ/%02d/%02d/%03d", at.Year()%100, int(at.Month()), n)
	default:
		return fmt.Sprintf("S-%04d-%03d", at.Year(), n)
	}
}

// FallbackDocumentNumber is the timestamp-based number used when the sequence cannot be advanced.
func FallbackDocumentNumber(kind DocumentKind, at time.Time) string {
	prefix, _ := documentPrefix(kind)
	return fmt.Sprintf("%sT%d", prefix, at.UnixMilli())
}

func documentPrefix(kind DocumentKind) (string, error) {
	switch kind {
	case DocSale:
		return "S-", nil
	case DocInvoice:
		return "FV/", nil
	case DocGoodsReceipt:
		return "PZ/", nil
	}
	return "", validationf("unknown document kind %q", kind)
}
