package core

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatDocumentNumber(t *testing.T) {
	at := time.Date(2025, time.March, 14, 10, 30, 0, 0, time.UTC)

	assert.Equal(t, "S-2025-001", FormatDocumentNumber(DocSale, at, 1))
	assert.Equal(t, "S-2025-1234", FormatDocumentNumber(DocSale, at, 1234))
	assert.Equal(t, "FV/2025/03/0007", FormatDocumentNumber(DocInvoice, at, 7))
	assert.Equal(t, "PZ/25/03/012", FormatDocumentNumber(DocGoodsReceipt, at, 12))
}

func TestPeriodKey(t *testing.T) {
	at := time.Date(2025, time.November, 2, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, "2025", PeriodKey(DocSale, at))
	assert.Equal(t, "2025-11", PeriodKey(DocInvoice, at))
	assert.Equal(t, "25-11", PeriodKey(DocGoodsReceipt, at))
}

func TestFallbackDocumentNumber(t *testing.T) {
	at := time.UnixMilli(1741948200000)

	got := FallbackDocumentNumber(DocInvoice, at)
	assert.Equal(t, "FV/T1741948200000", got)
	assert.True(t, strings.HasPrefix(FallbackDocumentNumber(DocSale, at), "S-T"))
	assert.True(t, strings.HasPrefix(FallbackDocumentNumber(DocGoodsReceipt, at), "PZ/T"))
}

func TestDocumentPrefix_Unknown(t *testing.T) {
	_, err := documentPrefix("CREDIT_NOTE")
	assert.ErrorIs(t, err, ErrValidation)
}
