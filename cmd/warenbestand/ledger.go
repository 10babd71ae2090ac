package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/andresuchdata/warenbestand/internal/domain"
	"github.com/andresuchdata/warenbestand/internal/ingest"
	"github.com/andresuchdata/warenbestand/internal/repository/postgres"
	"github.com/urfave/cli/v2"
)

func ledgerCommand() *cli.Command {
	return &cli.Command{
		Name:  "ledger",
		Usage: "Inspect and edit the stock ledger",
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "Print all ledger records",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "json", Usage: "Print JSON instead of a table"},
				},
				Action: ledgerList,
			},
			{
				Name:  "set",
				Usage: "Write a single ledger record, replacing all its fields",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "sku", Required: true},
					&cli.IntFlag{Name: "stock", Required: true},
					&cli.IntFlag{Name: "ordered"},
					&cli.StringFlag{Name: "arrival", Usage: "Arrival date yyyy-mm-dd or dd.mm.yyyy"},
				},
				Action: ledgerSet,
			},
			{
				Name:      "import",
				Usage:     "Write ledger records from a CSV or XLSX file (SKU, Stock, Ordered_Quantity, Arrival_Date)",
				ArgsUsage: "<file>",
				Action:    ledgerImport,
			},
		},
	}
}

func ledgerList(c *cli.Context) error {
	records, err := appFrom(c).Service.Ledger(c.Context)
	if err != nil {
		return err
	}

	if c.Bool("json") {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SKU\tSTOCK\tORDERED\tARRIVAL\tUPDATED")
	for _, r := range records {
		updated := ""
		if !r.UpdatedAt.IsZero() {
			updated = r.UpdatedAt.Format("2006-01-02 15:04")
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t%s\t%s\n", r.SKU, r.Stock, r.OrderedQuantity, r.ArrivalDate, updated)
	}
	return tw.Flush()
}

func ledgerSet(c *cli.Context) error {
	res, err := appFrom(c).Service.SaveLedger(c.Context, []domain.LedgerRecord{{
		SKU:             c.String("sku"),
		Stock:           c.Int("stock"),
		OrderedQuantity: c.Int("ordered"),
		ArrivalDate:     c.String("arrival"),
	}})
	if err != nil {
		return err
	}
	return reportSave(res, nil)
}

func ledgerImport(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("expected exactly one file")
	}
	table, err := ingest.ReadFile(c.Context, c.Args().First())
	if err != nil {
		return err
	}
	svc := appFrom(c).Service
	records, failures, err := svc.ParseLedgerTable(table)
	if err != nil {
		return err
	}

	res, err := svc.SaveLedger(c.Context, records)
	if err != nil {
		return err
	}
	return reportSave(res, failures)
}

func reportSave(res *domain.SaveResult, parseFailures []domain.SKUError) error {
	failed := append(parseFailures, res.Failed...)
	fmt.Printf("saved %d record(s)\n", len(res.Saved))
	for _, f := range failed {
		fmt.Printf("  failed %s: %s\n", f.SKU, f.Error)
	}
	if len(failed) > 0 {
		return fmt.Errorf("%d record(s) not saved", len(failed))
	}
	return nil
}

func runMigrate(c *cli.Context) error {
	a := appFrom(c)
	if a.DB == nil {
		return fmt.Errorf("migrate needs the postgres ledger backend")
	}
	if err := postgres.Migrate(c.Context, a.DB); err != nil {
		return err
	}
	fmt.Println("migrations applied")
	return nil
}
