package service

import (
	"testing"

	"github.com/andresuchdata/warenbestand/internal/domain"
	"github.com/andresuchdata/warenbestand/internal/pipeline/coverage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLedgerTable(t *testing.T) {
	records, failures, err := ParseLedgerTable([][]string{
		{"SKU", "Stock", "Ordered Quantity", "Arrival Date"},
		{"80522", "100", "50", "2024-03-11"},
		{"80530", "12.0", "", ""},
		{"", "", "", ""},
		{"80540", "1.200", "0", "01.04.2024"},
		{"80550", "viele", "1", ""},
		{"80560", "1", "-2", ""},
		{"80570", "12.5", "0", ""},
		{"80580", "20.00", "0", ""},
		{"80590", "3", "1.50", ""},
		{"80600", "12,5", "0", ""},
	}, coverage.DecimalComma)
	require.NoError(t, err)

	assert.Equal(t, []domain.LedgerRecord{
		{SKU: "80522", Stock: 100, OrderedQuantity: 50, ArrivalDate: "2024-03-11"},
		{SKU: "80530", Stock: 12},
		{SKU: "80540", Stock: 1200, ArrivalDate: "01.04.2024"},
		{SKU: "80560", Stock: 1, OrderedQuantity: -2},
	}, records)

	failed := make([]string, 0, len(failures))
	for _, f := range failures {
		failed = append(failed, f.SKU)
	}
	assert.Equal(t, []string{"80550", "80570", "80580", "80590", "80600"}, failed)
	assert.Contains(t, failures[0].Error, "row 6")
	assert.Contains(t, failures[3].Error, "ordered quantity")
}

func TestParseLedgerTableDecimalPoint(t *testing.T) {
	records, failures, err := ParseLedgerTable([][]string{
		{"SKU", "Stock", "Ordered"},
		{"1", "1,200", "0"},
		{"2", "1.200", "0"},
	}, coverage.DecimalPoint)
	require.NoError(t, err)

	require.Len(t, records, 1)
	assert.Equal(t, 1200, records[0].Stock)
	require.Len(t, failures, 1)
	assert.Equal(t, "2", failures[0].SKU)
}

func TestParseLedgerTableColumns(t *testing.T) {
	_, _, err := ParseLedgerTable(nil, coverage.DecimalComma)
	assert.ErrorIs(t, err, domain.ErrEmptyTable)

	_, _, err = ParseLedgerTable([][]string{{"SKU", "Menge"}}, coverage.DecimalComma)
	assert.ErrorIs(t, err, domain.ErrMissingColumn)

	records, _, err := ParseLedgerTable([][]string{{"sku", "stock", "ordered"}, {"1", "2", "3"}}, coverage.DecimalComma)
	require.NoError(t, err)
	assert.Equal(t, 3, records[0].OrderedQuantity)
}
