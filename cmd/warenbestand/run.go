package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/andresuchdata/warenbestand/internal/domain"
	"github.com/andresuchdata/warenbestand/internal/drive"
	"github.com/andresuchdata/warenbestand/internal/ingest"
	"github.com/andresuchdata/warenbestand/internal/pipeline"
	"github.com/andresuchdata/warenbestand/internal/pipeline/coverage"
	"github.com/andresuchdata/warenbestand/internal/service"
	"github.com/andresuchdata/warenbestand/internal/storage"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
)

func runCommand() *cli.Command {
	return &cli.Command{
		Name:      "run",
		Usage:     "Reconcile one or more sales exports",
		ArgsUsage: "[file...]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "s3-prefix",
				Usage: "Also process every CSV/XLSX export below this object storage prefix",
			},
			&cli.StringFlag{
				Name:    "drive-folder",
				Usage:   "Also process every export in this Google Drive folder ID",
				EnvVars: []string{"GOOGLE_DRIVE_FOLDER_ID"},
			},
			&cli.StringFlag{
				Name:  "out-dir",
				Usage: "Write one workbook per export into this directory",
			},
			&cli.StringFlag{
				Name:  "format",
				Usage: "Output format for --out-dir: xlsx or csv",
				Value: "xlsx",
			},
			&cli.StringFlag{
				Name:  "mode",
				Usage: "Normalization mode: full or prefix5",
			},
			&cli.IntFlag{
				Name:  "skip-rows",
				Usage: "Leading rows before the header row",
				Value: -1,
			},
			&cli.StringFlag{
				Name:  "as-of",
				Usage: "Reference date yyyy-mm-dd",
			},
			&cli.IntFlag{
				Name:  "workers",
				Usage: "Files processed in parallel",
			},
			&cli.BoolFlag{
				Name:  "refresh-mapping",
				Usage: "Drop the cached mapping table and fetch it again",
			},
		},
		Action: runReconcile,
	}
}

func runReconcile(c *cli.Context) error {
	a := appFrom(c)
	ctx := c.Context

	format := strings.ToLower(c.String("format"))
	if format != "xlsx" && format != "csv" {
		return fmt.Errorf("format must be xlsx or csv, got %q", format)
	}

	files := c.Args().Slice()

	if prefix := c.String("s3-prefix"); prefix != "" {
		if a.Storage == nil {
			return fmt.Errorf("%w: --s3-prefix needs STORAGE_BACKEND", domain.ErrSourceNotConfigured)
		}
		dir, err := os.MkdirTemp("", "warenbestand-s3-")
		if err != nil {
			return err
		}
		defer os.RemoveAll(dir)
		paths, err := storage.DownloadPrefix(ctx, a.Storage, storage.ResolveObjectKey(a.Config.Storage.Prefix, prefix), dir, ".csv", ".xlsx")
		if err != nil {
			return err
		}
		files = append(files, paths...)
	}

	if folder := c.String("drive-folder"); folder != "" {
		if a.Drive == nil {
			return fmt.Errorf("%w: --drive-folder needs Google Drive credentials", domain.ErrSourceNotConfigured)
		}
		dir, err := os.MkdirTemp("", "warenbestand-drive-")
		if err != nil {
			return err
		}
		defer os.RemoveAll(dir)
		paths, err := drive.NewDownloader(a.Drive).DownloadFolder(ctx, drive.DownloadOptions{FolderID: folder, DownloadDir: dir})
		if err != nil {
			return err
		}
		files = append(files, paths...)
	}

	if len(files) == 0 {
		return fmt.Errorf("no input files, pass paths or --s3-prefix / --drive-folder")
	}

	opts := service.RunOptions{Mode: c.String("mode"), AsOf: c.String("as-of"), RefreshMapping: c.Bool("refresh-mapping")}
	if n := c.Int("skip-rows"); n >= 0 {
		opts.SkipRows = &n
	}
	prepared, err := a.Service.Prepare(ctx, opts)
	if err != nil {
		return err
	}
	pcfg := prepared.Pipeline.Config()
	log.Info().
		Str("mode", string(pcfg.Mode)).
		Int("skip_rows", pcfg.SkipRows).
		Str("decimal_separator", string(pcfg.DecimalSeparator)).
		Int("files", len(files)).
		Msg("starting reconcile run")

	workerCfg := pipeline.DefaultWorkerConfig()
	if a.Config.Pipeline.WorkerCount > 0 {
		workerCfg.WorkerCount = a.Config.Pipeline.WorkerCount
	}
	if n := c.Int("workers"); n > 0 {
		workerCfg.WorkerCount = n
	}

	worker := pipeline.NewWorker(prepared.Pipeline, ingest.ReadFile, a.Service.Tracker(), workerCfg)
	results := worker.ProcessBatch(ctx, files, prepared.Snapshot, prepared.AsOf)

	failed := 0
	for _, fr := range results {
		if fr.Err != nil {
			failed++
			fmt.Printf("FAIL  %s: %v\n", fr.Path, fr.Err)
			continue
		}
		fmt.Printf("OK    %s: %d SKUs, %d warnings (%s)\n", fr.Path, len(fr.Result.Rows), len(fr.Result.Warnings), fr.Duration.Round(time.Millisecond))
		for _, w := range fr.Result.Warnings {
			log.Debug().Str("file", fr.Path).Msg(w.String())
		}

		if dir := c.String("out-dir"); dir != "" {
			out, err := writeExport(dir, fr.Path, format, fr.Result)
			if err != nil {
				return err
			}
			fmt.Printf("      -> %s\n", out)
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(results))
	}
	return nil
}

func writeExport(dir, source, format string, res *coverage.Result) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	base := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source)) + "_coverage." + format

	var buf bytes.Buffer
	var err error
	if format == "csv" {
		err = ingest.WriteCSV(&buf, res.Rows)
	} else {
		err = ingest.WriteXLSX(&buf, res)
	}
	if err != nil {
		return "", fmt.Errorf("render %s: %w", base, err)
	}

	out := filepath.Join(dir, base)
	if err := os.WriteFile(out, buf.Bytes(), 0644); err != nil {
		return "", fmt.Errorf("write %s: %w", out, err)
	}
	return out, nil
}
