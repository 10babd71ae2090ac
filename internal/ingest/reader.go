package ingest

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/andresuchdata/warenbestand/internal/domain"
	"github.com/xuri/excelize/v2"
)

// Format is the container format of an uploaded table
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

var zipMagic = []byte("PK\x03\x04")

// DetectFormat picks the format from the file extension, falling back to sniffing the content
func DetectFormat(name string, data []byte) (Format, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".txt":
		return FormatCSV, nil
	case ".xlsx", ".xlsm":
		return FormatXLSX, nil
	case ".xls":
		return "", fmt.Errorf("%w: legacy .xls, save the file as .xlsx", domain.ErrUnsupportedFormat)
	}
	if bytes.HasPrefix(data, zipMagic) {
		return FormatXLSX, nil
	}
	if len(data) > 0 && isText(data) {
		return FormatCSV, nil
	}
	return "", fmt.Errorf("%w: %s", domain.ErrUnsupportedFormat, name)
}

// ReadTable parses the raw rows of a CSV or XLSX export. For XLSX only the first sheet is read.
func ReadTable(name string, data []byte) ([][]string, error) {
	format, err := DetectFormat(name, data)
	if err != nil {
		return nil, err
	}

	var rows [][]string
	switch format {
	case FormatXLSX:
		rows, err = readXLSX(data)
	default:
		rows, err = readCSV(data)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%s: %w", name, domain.ErrEmptyTable)
	}
	return rows, nil
}

// ReadFile reads a table from the local filesystem
func ReadFile(_ context.Context, path string) ([][]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read input file %s: %w", path, err)
	}
	return ReadTable(filepath.Base(path), data)
}

func readXLSX(data []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to open xlsx: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("xlsx has no sheets")
	}

	// Raw values keep codes like 80522 from being rendered with a number format
	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read rows from sheet %s: %w", sheets[0], err)
	}
	return rows, nil
}

func readCSV(data []byte) ([][]string, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = sniffDelimiter(data)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	var rows [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		rows = append(rows, record)
	}
	return rows, nil
}

// sniffDelimiter picks the most frequent of ';', '\t' and ',' in the first lines.
// German spreadsheet exports use ';' because ',' is the decimal separator.
func sniffDelimiter(data []byte) rune {
	sample := data
	if len(sample) > 4096 {
		sample = sample[:4096]
	}
	best, bestCount := ',', 0
	for _, d := range []rune{';', '\t', ','} {
		if n := bytes.Count(sample, []byte(string(d))); n > bestCount {
			best, bestCount = d, n
		}
	}
	return best
}

func isText(data []byte) bool {
	sample := data
	if len(sample) > 512 {
		sample = sample[:512]
	}
	return !bytes.ContainsRune(sample, 0)
}
