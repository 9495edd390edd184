package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Error taxonomy. Every error returned by a service matches exactly one of these
// via errors.Is, so adapters can map failures without string comparisons.
var (
	ErrNotFound          = errors.New("not found")
	ErrValidation        = errors.New("validation failed")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrEmptyCart         = errors.New("cart is empty")
	ErrDuplicateKey      = errors.New("duplicate key")
	ErrPersistence       = errors.New("storage failure")
)

// PostgreSQL SQLSTATE codes inspected when classifying storage errors.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
)

// InsufficientStockError reports the first product whose on-hand quantity could not
// cover the requested quantity.
type InsufficientStockError struct {
	ProductID int
	SKU       string
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	name := e.SKU
	if name == "" {
		name = fmt.Sprintf("id=%d", e.ProductID)
	}
	return fmt.Sprintf("insufficient stock for product %s: available %d, requested %d", name, e.Available, e.Requested)
}

// Is makes errors.Is(err, ErrInsufficientStock) hold for the typed error.
func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

// domainError carries an operator-readable message while unwrapping to a taxonomy sentinel.
type domainError struct {
	kind error
	msg  string
}

func (e *domainError) Error() string { return e.msg }
func (e *domainError) Unwrap() error { return e.kind }

func validationf(format string, args ...any) error {
	return &domainError{kind: ErrValidation, msg: fmt.Sprintf(format, args...)}
}

func notFoundf(format string, args ...any) error {
	return &domainError{kind: ErrNotFound, msg: fmt.Sprintf(format, args...)}
}

func duplicatef(format string, args ...any) error {
	return &domainError{kind: ErrDuplicateKey, msg: fmt.Sprintf(format, args...)}
}

// IsDomainError reports whether err belongs to the expected-outcome part of the
// taxonomy (everything except ErrPersistence).
func IsDomainError(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInsufficientStock) ||
		errors.Is(err, ErrEmptyCart) ||
		errors.Is(err, ErrDuplicateKey)
}

// storageErr classifies an error coming back from pgx. Domain errors pass through
// with context; constraint violations become duplicate/validation/not-found errors;
// anything else is wrapped as ErrPersistence.
func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if IsDomainError(err) {
		return fmt.Errorf("%s: %w", op, err)
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return &domainError{kind: ErrNotFound, msg: op + ": no matching row"}
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return duplicatef("%s: %s already exists", op, constraintSubject(pgErr))
		case pgForeignKeyViolation:
			return notFoundf("%s: referenced record does not exist (%s)", op, pgErr.ConstraintName)
		case pgCheckViolation:
			return validationf("%s: value rejected by constraint %s", op, pgErr.ConstraintName)
		}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s: %w", ErrPersistence, op, err)
	}
	return fmt.Errorf("%w: failed to %s: %w", ErrPersistence, op, err)
}

func constraintSubject(pgErr *pgconn.PgError) string {
	if pgErr.ConstraintName != "" {
		return pgErr.ConstraintName
	}
	return "record"
}
