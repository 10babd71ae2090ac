package domain

import "errors"

// Structural errors abort a run; row-level problems are reported as Warning values instead.
var (
	ErrMissingColumn       = errors.New("missing required column")
	ErrEmptyTable          = errors.New("table has no rows")
	ErrUnsupportedFormat   = errors.New("unsupported file format")
	ErrSourceNotConfigured = errors.New("source not configured")
	ErrInvalidMode         = errors.New("invalid normalization mode")
	ErrInvalidLedgerRecord = errors.New("invalid ledger record")
	ErrNotFound            = errors.New("not found")
)
