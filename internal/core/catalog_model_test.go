package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseProductRef(t *testing.T) {
	ref, err := ParseProductRef(" 42 ")
	require.NoError(t, err)
	assert.Equal(t, 42, ref.ID)
	assert.Equal(t, "42", ref.SKU, "numeric input may also be a SKU")

	ref, err = ParseProductRef("bike-001")
	require.NoError(t, err)
	assert.Equal(t, 0, ref.ID)
	assert.Equal(t, "BIKE-001", ref.SKU)

	_, err = ParseProductRef("   ")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestProductInput_Validate(t *testing.T) {
	valid := ProductInput{SKU: "BIKE-001", Name: "Trek Marlin 5", UnitPrice: dec("2499.00"), TaxRate: dec("23"), MinimumStock: 3, ReorderLevel: 10}
	assert.NoError(t, valid.Validate())

	tests := []struct {
		name string
		mod  func(*ProductInput)
	}{
		{"blank sku", func(in *ProductInput) { in.SKU = " " }},
		{"blank name", func(in *ProductInput) { in.Name = "" }},
		{"zero price", func(in *ProductInput) { in.UnitPrice = dec("0") }},
		{"tax rate over 100", func(in *ProductInput) { in.TaxRate = dec("101") }},
		{"sub-cent price", func(in *ProductInput) { in.UnitPrice = dec("19.999") }},
		{"sub-cent tax rate", func(in *ProductInput) { in.TaxRate = dec("8.125") }},
		{"negative minimum", func(in *ProductInput) { in.MinimumStock = -1 }},
		{"reorder below minimum", func(in *ProductInput) { in.ReorderLevel = 2 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := valid
			tt.mod(&in)
			assert.ErrorIs(t, in.Validate(), ErrValidation)
		})
	}
}

func TestProductUpdate_Apply(t *testing.T) {
	p := &Product{Name: "Old", UnitPrice: dec("10"), TaxRate: dec("23"), MinimumStock: 1, ReorderLevel: 5}

	name := "  New name "
	price := dec("12.50")
	require.NoError(t, ProductUpdate{Name: &name, UnitPrice: &price}.apply(p))
	assert.Equal(t, "New name", p.Name)
	assert.Equal(t, "12.50", p.UnitPrice.StringFixed(2))
	assert.Equal(t, 5, p.ReorderLevel, "nil fields are untouched")

	reorder := 0
	assert.ErrorIs(t, ProductUpdate{ReorderLevel: &reorder}.apply(p), ErrValidation)

	blank := " "
	assert.ErrorIs(t, ProductUpdate{Name: &blank}.apply(p), ErrValidation)
}

func TestNormalizeSKU(t *testing.T) {
	assert.Equal(t, "HELM-002", NormalizeSKU("  helm-002\t"))
}
