package app

import (
	"errors"

	"bikeshop-pos/internal/core"
)

// Error codes shared by SaleResult and the HTTP error envelope.
const (
	CodeValidation        = "VALIDATION"
	CodeEmptyCart         = "EMPTY_CART"
	CodeNotFound          = "NOT_FOUND"
	CodeInsufficientStock = "INSUFFICIENT_STOCK"
	CodeDuplicateKey      = "DUPLICATE_KEY"
	CodeInternal          = "INTERNAL_ERROR"
)

// persistenceMessage replaces storage error details in operator-facing messages.
const persistenceMessage = "the operation could not be saved, please try again"

// ErrorCode classifies err into one of the Code constants.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, core.ErrEmptyCart):
		return CodeEmptyCart
	case errors.Is(err, core.ErrInsufficientStock):
		return CodeInsufficientStock
	case errors.Is(err, core.ErrNotFound):
		return CodeNotFound
	case errors.Is(err, core.ErrDuplicateKey):
		return CodeDuplicateKey
	case errors.Is(err, core.ErrValidation):
		return CodeValidation
	}
	return CodeInternal
}

// OperatorMessage returns the text an operator may see for err. Domain errors are shown
// verbatim; anything else is replaced with a generic message.
func OperatorMessage(err error) string {
	if ErrorCode(err) == CodeInternal {
		return persistenceMessage
	}
	return err.Error()
}
