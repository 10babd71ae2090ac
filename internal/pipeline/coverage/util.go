package coverage

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// SourceRowNumber maps a 0-based data row index to the 1-based row number a user sees in the file:
// skipRows leading rows, then the header row, then the data.
func SourceRowNumber(dataIndex, skipRows int) int {
	if skipRows < 0 {
		skipRows = 0
	}
	return skipRows + 1 + dataIndex + 1
}

var columnNameSanitizer = strings.NewReplacer(" ", "", "_", "", ".", "", "-", "", "/", "")

func normalizeColumnName(name string) string {
	name = strings.TrimSpace(strings.ToLower(name))
	return columnNameSanitizer.Replace(name)
}

// columnIndex finds a column by header name, or by 1-based position when name is "#<n>"
func columnIndex(header []string, name string) int {
	name = strings.TrimSpace(name)
	if name == "" {
		return -1
	}
	if strings.HasPrefix(name, "#") {
		pos, err := strconv.Atoi(name[1:])
		if err != nil || pos < 1 || pos > len(header) {
			return -1
		}
		return pos - 1
	}
	target := normalizeColumnName(name)
	for i, h := range header {
		if normalizeColumnName(h) == target {
			return i
		}
	}
	return -1
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func isBlankRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

var quantitySpaces = strings.NewReplacer(" ", "", "\u00a0", "", "'", "")

const (
	DecimalComma = ','
	DecimalPoint = '.'
)

var groupedNumber = map[byte]*regexp.Regexp{
	DecimalComma: regexp.MustCompile(`^[+-]?\d{1,3}(\.\d{3})+$`),
	DecimalPoint: regexp.MustCompile(`^[+-]?\d{1,3}(,\d{3})+$`),
}

// ParseDecimalSeparator validates a configured decimal separator; empty means comma
func ParseDecimalSeparator(s string) (byte, error) {
	switch strings.TrimSpace(s) {
	case "", ",":
		return DecimalComma, nil
	case ".":
		return DecimalPoint, nil
	}
	return 0, fmt.Errorf("decimal separator must be \",\" or \".\", got %q", s)
}

// ParseNumber reads a number written with decimalSep as the decimal separator
// and the other one as the thousands separator. When both appear, the last one
// is the decimal separator. A lone thousands separator that does not form
// 3-digit groups ("12.5" with a decimal comma) is read as a decimal point,
// which is how spreadsheet tools write numeric cells. Empty input is zero.
func ParseNumber(raw string, decimalSep byte) (decimal.Decimal, error) {
	s := quantitySpaces.Replace(strings.TrimSpace(raw))
	if s == "" {
		return decimal.Zero, nil
	}
	if decimalSep != DecimalPoint {
		decimalSep = DecimalComma
	}
	groupSep := byte(DecimalPoint)
	if decimalSep == DecimalPoint {
		groupSep = DecimalComma
	}

	dec := strings.LastIndexByte(s, decimalSep)
	grp := strings.LastIndexByte(s, groupSep)
	switch {
	case dec >= 0 && grp >= 0:
		if dec < grp {
			decimalSep, groupSep = groupSep, decimalSep
		}
		s = strings.ReplaceAll(s, string(groupSep), "")
		s = strings.Replace(s, string(decimalSep), ".", 1)
	case dec >= 0:
		if strings.Count(s, string(decimalSep)) > 1 {
			return decimal.Zero, fmt.Errorf("not a number: %q", raw)
		}
		s = strings.Replace(s, string(decimalSep), ".", 1)
	case grp >= 0:
		if groupedNumber[decimalSep].MatchString(s) {
			s = strings.ReplaceAll(s, string(groupSep), "")
		} else if strings.Count(s, string(groupSep)) == 1 {
			s = strings.Replace(s, string(groupSep), ".", 1)
		} else {
			return decimal.Zero, fmt.Errorf("not a number: %q", raw)
		}
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("not a number: %q", raw)
	}
	return d, nil
}

// FormatDE formats a number the way the German exports do: dot for thousands,
// comma for decimals, decimals omitted when they round to zero.
// 1234.5 (2 decimals) => "1.234,50"; 1000.0 => "1.000".
func FormatDE(v float64, decimals int) string {
	if decimals < 0 {
		decimals = 0
	}
	d := decimal.NewFromFloat(v).Round(int32(decimals))
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Neg()
	}

	intPart := d.Truncate(0)
	frac := d.Sub(intPart)

	digits := intPart.String()
	var b strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}

	if decimals == 0 || frac.IsZero() {
		return sign + b.String()
	}
	fracDigits := frac.StringFixed(int32(decimals))
	return sign + b.String() + "," + strings.TrimPrefix(fracDigits, "0.")
}

// ColumnIndex finds a column by normalized header name or "#<n>" position; -1 when absent
func ColumnIndex(header []string, name string) int {
	return columnIndex(header, name)
}
