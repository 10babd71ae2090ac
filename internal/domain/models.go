// internal/domain/models.go
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// MappingEntry is one row of the SKU mapping table
type MappingEntry struct {
	OriginalSKU string `json:"original_sku"`
	MappedSKU   string `json:"mapped_sku"`
	Exclude     bool   `json:"exclude"`
}

// AggregatedRow holds the summed quantity for one canonical SKU
type AggregatedRow struct {
	SKU      string          `json:"sku"`
	Quantity decimal.Decimal `json:"quantity"`
}

// LedgerRecord is the persisted stock state of a SKU.
// ArrivalDate is kept as the stored ISO-8601 string; empty means no known arrival.
type LedgerRecord struct {
	SKU             string    `json:"sku" db:"sku"`
	Stock           int       `json:"stock" db:"stock"`
	OrderedQuantity int       `json:"ordered_quantity" db:"ordered_quantity"`
	ArrivalDate     string    `json:"arrival_date,omitempty" db:"arrival_date"`
	UpdatedAt       time.Time `json:"updated_at,omitempty" db:"updated_at"`
}

// ProjectionRow is the derived, non-persisted coverage projection for one SKU
type ProjectionRow struct {
	SKU                     string          `json:"sku"`
	Quantity30d             decimal.Decimal `json:"quantity_30d"`
	Stock                   int             `json:"stock"`
	OrderedQuantity         int             `json:"ordered_quantity"`
	ArrivalDate             *time.Time      `json:"arrival_date"`
	ConsumptionPerDay       float64         `json:"consumption_per_day"`
	ConsumptionUntilArrival float64         `json:"consumption_until_arrival"`
	StockAtArrival          float64         `json:"stock_at_arrival"`
	CoverageDays            int             `json:"coverage_days"`
	InLedger                bool            `json:"in_ledger"`
}

// GroupSubtotal summarizes the projection rows of one configured SKU group
type GroupSubtotal struct {
	Name              string          `json:"name"`
	SKUCount          int             `json:"sku_count"`
	Quantity30d       decimal.Decimal `json:"quantity_30d"`
	Stock             int             `json:"stock"`
	OrderedQuantity   int             `json:"ordered_quantity"`
	ConsumptionPerDay float64         `json:"consumption_per_day"`
	StockAtArrival    float64         `json:"stock_at_arrival"`
	CoverageDays      int             `json:"coverage_days"`
}

// SKUError reports a failed write for a single SKU
type SKUError struct {
	SKU   string `json:"sku"`
	Error string `json:"error"`
}

// SaveResult is the outcome of a confirmed ledger batch write.
// Writes are applied one record at a time; Saved entries stay applied even when others fail.
type SaveResult struct {
	Saved  []string   `json:"saved"`
	Failed []SKUError `json:"failed"`
}

// RunStatus is the state of a reconciliation run
type RunStatus string

const (
	RunStatusPending    RunStatus = "pending"
	RunStatusProcessing RunStatus = "processing"
	RunStatusCompleted  RunStatus = "completed"
	RunStatusFailed     RunStatus = "failed"
)

// ReconcileRun tracks one execution of the pipeline over an uploaded export
type ReconcileRun struct {
	ID             int64      `json:"id" db:"id"`
	SourceName     string     `json:"source_name" db:"source_name"`
	Status         RunStatus  `json:"status" db:"status"`
	TotalRows      int        `json:"total_rows" db:"total_rows"`
	AggregatedRows int        `json:"aggregated_rows" db:"aggregated_rows"`
	WarningCount   int        `json:"warning_count" db:"warning_count"`
	StartedAt      time.Time  `json:"started_at" db:"started_at"`
	CompletedAt    *time.Time `json:"completed_at" db:"completed_at"`
	ErrorMessage   string     `json:"error_message,omitempty" db:"error_message"`
}
