package coverage

import (
	"fmt"
	"strings"

	"github.com/andresuchdata/warenbestand/internal/domain"
)

const (
	colOriginalSKU = "Original_SKU"
	colMappedSKU   = "Mapped_SKU"
	colExclude     = "Exclude"
)

// Mapper resolves normalized SKUs through the mapping table.
// Unknown SKUs pass through unchanged; the table is a partial override, not a registry.
type Mapper struct {
	index    map[string]domain.MappingEntry
	warnings []domain.Warning
}

// NewMapper indexes the entries by original SKU. The first entry for a key wins;
// later duplicates are kept out of the index and reported by Warnings.
func NewMapper(entries []domain.MappingEntry) *Mapper {
	m := &Mapper{index: make(map[string]domain.MappingEntry, len(entries))}
	for _, e := range entries {
		key := coerceCell(e.OriginalSKU)
		if key == "" {
			continue
		}
		if first, ok := m.index[key]; ok {
			m.warnings = append(m.warnings, domain.Warning{
				Kind: domain.WarningMappingDuplicate,
				SKU:  key,
				Message: fmt.Sprintf("duplicate mapping for SKU %s ignored (keeping %q, dropping %q)",
					key, first.MappedSKU, e.MappedSKU),
			})
			continue
		}
		e.OriginalSKU = key
		e.MappedSKU = coerceCell(e.MappedSKU)
		m.index[key] = e
	}
	return m
}

// Resolve returns the final SKU and whether the SKU is excluded by a mapping rule
func (m *Mapper) Resolve(sku string) (string, bool) {
	if m == nil {
		return sku, false
	}
	e, ok := m.index[sku]
	if !ok {
		return sku, false
	}
	if e.Exclude {
		return sku, true
	}
	if e.MappedSKU == "" {
		return sku, false
	}
	return e.MappedSKU, false
}

// Len returns the number of distinct mapping keys
func (m *Mapper) Len() int {
	if m == nil {
		return 0
	}
	return len(m.index)
}

// Warnings returns load-time issues such as duplicate keys
func (m *Mapper) Warnings() []domain.Warning {
	if m == nil {
		return nil
	}
	return m.warnings
}

// ParseMappingTable reads mapping entries from a table whose first non-blank row is the header
func ParseMappingTable(table [][]string) ([]domain.MappingEntry, error) {
	start := -1
	for i, row := range table {
		if !isBlankRow(row) {
			start = i
			break
		}
	}
	if start < 0 {
		return nil, fmt.Errorf("mapping table: %w", domain.ErrEmptyTable)
	}

	header := table[start]
	idxOrig := columnIndex(header, colOriginalSKU)
	if idxOrig < 0 {
		return nil, fmt.Errorf("mapping table: %w: %s", domain.ErrMissingColumn, colOriginalSKU)
	}
	idxMapped := columnIndex(header, colMappedSKU)
	if idxMapped < 0 {
		return nil, fmt.Errorf("mapping table: %w: %s", domain.ErrMissingColumn, colMappedSKU)
	}
	idxExclude := columnIndex(header, colExclude)

	entries := make([]domain.MappingEntry, 0, len(table)-start-1)
	for _, row := range table[start+1:] {
		orig := cell(row, idxOrig)
		if orig == "" {
			continue
		}
		entries = append(entries, domain.MappingEntry{
			OriginalSKU: orig,
			MappedSKU:   cell(row, idxMapped),
			Exclude:     parseExcludeFlag(cell(row, idxExclude)),
		})
	}
	return entries, nil
}

func parseExcludeFlag(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "yes", "y", "ja", "true", "1", "x":
		return true
	}
	return false
}
