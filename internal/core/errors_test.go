package core

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestInsufficientStockError(t *testing.T) {
	err := fmt.Errorf("complete sale: %w", &InsufficientStockError{ProductID: 1, SKU: "BIKE-001", Available: 3, Requested: 5})

	assert.ErrorIs(t, err, ErrInsufficientStock)
	var short *InsufficientStockError
	assert.True(t, errors.As(err, &short))
	assert.Equal(t, 3, short.Available)
	assert.Contains(t, err.Error(), "available 3, requested 5")

	noSKU := &InsufficientStockError{ProductID: 9, Available: 0, Requested: 1}
	assert.Contains(t, noSKU.Error(), "id=9")
}

func TestStorageErr_Classification(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"no rows", pgx.ErrNoRows, ErrNotFound},
		{"unique violation", &pgconn.PgError{Code: "23505", ConstraintName: "products_sku_key"}, ErrDuplicateKey},
		{"foreign key", &pgconn.PgError{Code: "23503"}, ErrNotFound},
		{"check violation", &pgconn.PgError{Code: "23514"}, ErrValidation},
		{"other pg error", &pgconn.PgError{Code: "40001"}, ErrPersistence},
		{"plain error", errors.New("connection reset"), ErrPersistence},
		{"context", context.DeadlineExceeded, ErrPersistence},
		{"domain error passes through", validationf("bad"), ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, storageErr("op", tt.err), tt.want)
		})
	}
	assert.NoError(t, storageErr("op", nil))
}

func TestStorageErr_DuplicateMentionsConstraint(t *testing.T) {
	err := storageErr("create product", &pgconn.PgError{Code: "23505", ConstraintName: "products_sku_key"})
	assert.Contains(t, err.Error(), "products_sku_key")
}

func TestIsDomainError(t *testing.T) {
	assert.True(t, IsDomainError(notFoundf("x")))
	assert.True(t, IsDomainError(ErrEmptyCart))
	assert.True(t, IsDomainError(&InsufficientStockError{}))
	assert.False(t, IsDomainError(errors.New("boom")))
	assert.False(t, IsDomainError(fmt.Errorf("%w: boom", ErrPersistence)))
}

func TestParseEnums(t *testing.T) {
	pm, err := ParsePaymentMethod(" CARD ")
	assert.NoError(t, err)
	assert.Equal(t, PaymentCard, pm)

	dt, err := ParseDocumentType("")
	assert.NoError(t, err)
	assert.Equal(t, DocumentReceipt, dt)

	st, err := ParseSaleStatus("canceled")
	assert.NoError(t, err)
	assert.Equal(t, SaleCancelled, st)

	role, err := ParseRole("manager")
	assert.NoError(t, err)
	assert.Equal(t, RoleManager, role)

	_, err = ParseReceiptStatus("Posted")
	assert.ErrorIs(t, err, ErrValidation)
	_, err = ParseRole("root")
	assert.ErrorIs(t, err, ErrValidation)
}
