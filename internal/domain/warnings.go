package domain

import "fmt"

// WarningKind classifies row-level issues collected during a run
type WarningKind string

const (
	WarningParse            WarningKind = "parse"
	WarningExclusion        WarningKind = "exclusion"
	WarningLedgerMissing    WarningKind = "ledger_missing"
	WarningLedgerDate       WarningKind = "ledger_date"
	WarningMappingDuplicate WarningKind = "mapping_duplicate"
)

// Warning is a non-fatal issue. Row is the 1-based row in the source file, 0 when not tied to a row.
type Warning struct {
	Kind    WarningKind `json:"kind"`
	Row     int         `json:"row,omitempty"`
	SKU     string      `json:"sku,omitempty"`
	Message string      `json:"message"`
}

func (w Warning) String() string {
	if w.Row > 0 {
		return fmt.Sprintf("[%s] row %d: %s", w.Kind, w.Row, w.Message)
	}
	return fmt.Sprintf("[%s] %s", w.Kind, w.Message)
}

// CountWarnings returns the number of warnings per kind
func CountWarnings(warnings []Warning) map[WarningKind]int {
	counts := make(map[WarningKind]int)
	for _, w := range warnings {
		counts[w.Kind]++
	}
	return counts
}
