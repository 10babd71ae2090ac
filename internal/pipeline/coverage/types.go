package coverage

import (
	"fmt"
	"strings"

	"github.com/andresuchdata/warenbestand/internal/domain"
	"github.com/shopspring/decimal"
)

// NormalizationMode selects how a raw SKU cell is turned into a canonical code
type NormalizationMode string

const (
	// ModePrefix5 keeps the first 5 digits of the first run of at least 5 digits
	ModePrefix5 NormalizationMode = "prefix5"
	// ModeFull keeps the whole cell, cut at the first decimal point
	ModeFull NormalizationMode = "full"
)

// ParseMode validates a configured mode name
func ParseMode(s string) (NormalizationMode, error) {
	switch NormalizationMode(strings.ToLower(strings.TrimSpace(s))) {
	case ModePrefix5:
		return ModePrefix5, nil
	case ModeFull:
		return ModeFull, nil
	}
	return "", fmt.Errorf("%w: %q (expected %q or %q)", domain.ErrInvalidMode, s, ModePrefix5, ModeFull)
}

// Conversion holds per-SKU quantity multipliers
type Conversion struct {
	CartonMultiplier decimal.Decimal // units per counted unit; zero means 1
	PalletQuantity   decimal.Decimal // units per pallet; zero means pallets are not counted
}

// Group defines a named set of SKUs that gets a subtotal row
type Group struct {
	Name     string
	SKUs     []string
	Prefixes []string
}

// Columns names the source columns. A value of the form "#3" addresses the
// third column by position instead of by header name.
type Columns struct {
	SKU      string
	Quantity string
	Pallets  string // optional
}

// Config holds configuration for the coverage pipeline
type Config struct {
	Mode        NormalizationMode
	SkipRows    int // leading non-data rows before the header row
	Columns     Columns
	WindowDays  int // length of the sales window the export covers, 30 by convention
	// DecimalSeparator of quantity cells, DecimalComma or DecimalPoint.
	// The other character is read as the thousands separator.
	DecimalSeparator byte
	Conversions map[string]Conversion
	Groups      []Group

	// IncludeIdleLedgerSKUs adds ledger SKUs without sales in the current export with zero quantity
	IncludeIdleLedgerSKUs bool

	// IntermediateDir is the root for per-run CSV layers:
	//   1_aggregated/  - aggregated quantities per canonical SKU
	//   2_projection/  - projection rows with coverage metrics
	IntermediateDir    string
	PersistDebugLayers bool
}

// DefaultConfig returns the conventions of the observed sales exports
func DefaultConfig() Config {
	return Config{
		Mode:             ModeFull,
		SkipRows:         7,
		WindowDays:       30,
		DecimalSeparator: DecimalComma,
		Columns: Columns{
			SKU:      "Artikelnummer",
			Quantity: "Anzahl",
		},
	}
}

// SourceRow holds the resolved fields of one data row of the export
type SourceRow struct {
	Row     int // 1-based row in the source file
	RawSKU  string
	Units   string
	Pallets string
}

// Stats counts what happened to the data rows of a run
type Stats struct {
	DataRows       int `json:"data_rows"`
	BlankRows      int `json:"blank_rows"`
	ParsedRows     int `json:"parsed_rows"`
	SkippedRows    int `json:"skipped_rows"`
	ExcludedRows   int `json:"excluded_rows"`
	AggregatedSKUs int `json:"aggregated_skus"`
	LedgerMisses   int `json:"ledger_misses"`
}

// Result is the output of one pipeline run
type Result struct {
	Rows     []domain.ProjectionRow `json:"rows"`
	Groups   []domain.GroupSubtotal `json:"groups"`
	Warnings []domain.Warning       `json:"warnings"`
	Stats    Stats                  `json:"stats"`
}
