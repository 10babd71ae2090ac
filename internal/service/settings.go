package service

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/andresuchdata/warenbestand/internal/config"
	"github.com/andresuchdata/warenbestand/internal/pipeline/coverage"
	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

// BuildPipelineConfig combines the environment settings with the catalog tables
func BuildPipelineConfig(pc config.PipelineConfig, catalog *config.Catalog) (coverage.Config, error) {
	mode := coverage.ModeFull
	if strings.TrimSpace(pc.Mode) != "" {
		m, err := coverage.ParseMode(pc.Mode)
		if err != nil {
			return coverage.Config{}, err
		}
		mode = m
	}
	sep, err := coverage.ParseDecimalSeparator(pc.DecimalSeparator)
	if err != nil {
		return coverage.Config{}, err
	}

	cfg := coverage.Config{
		Mode:     mode,
		SkipRows: pc.SkipRows,
		Columns: coverage.Columns{
			SKU:      pc.SKUColumn,
			Quantity: pc.QuantityColumn,
			Pallets:  pc.PalletsColumn,
		},
		WindowDays:            pc.WindowDays,
		DecimalSeparator:      sep,
		IncludeIdleLedgerSKUs: pc.IncludeIdleSKUs,
		IntermediateDir:       pc.IntermediateDir,
		PersistDebugLayers:    pc.PersistDebugLayers,
	}
	if catalog == nil {
		return cfg, nil
	}

	if len(catalog.Conversions) > 0 {
		cfg.Conversions = make(map[string]coverage.Conversion, len(catalog.Conversions))
	}
	for _, c := range catalog.Conversions {
		carton, err := parseFactor(c.Carton)
		if err != nil {
			return coverage.Config{}, fmt.Errorf("conversion %s: carton: %w", c.SKU, err)
		}
		pallet, err := parseFactor(c.Pallet)
		if err != nil {
			return coverage.Config{}, fmt.Errorf("conversion %s: pallet: %w", c.SKU, err)
		}
		cfg.Conversions[strings.TrimSpace(c.SKU)] = coverage.Conversion{
			CartonMultiplier: carton,
			PalletQuantity:   pallet,
		}
	}

	for _, g := range catalog.Groups {
		cfg.Groups = append(cfg.Groups, coverage.Group{
			Name:     g.Name,
			SKUs:     g.SKUs,
			Prefixes: g.Prefixes,
		})
	}
	return cfg, nil
}

func parseFactor(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, err
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("must not be negative, got %s", s)
	}
	return d, nil
}

// LoadLocation resolves the reporting time zone, defaulting to UTC
func LoadLocation(name string) (*time.Location, error) {
	if strings.TrimSpace(name) == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", name, err)
	}
	return loc, nil
}

// ResolveAsOf returns the reference date of a run: the yyyy-mm-dd override when set, otherwise now in loc
func ResolveAsOf(override string, loc *time.Location, now time.Time) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	override = strings.TrimSpace(override)
	if override == "" {
		return now.In(loc), nil
	}
	t, err := time.ParseInLocation(dateLayout, override, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid as-of date %q, expected yyyy-mm-dd", override)
	}
	return t, nil
}
