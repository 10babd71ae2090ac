package coverage

import (
	"regexp"
	"strings"
)

var digitRun = regexp.MustCompile(`[0-9]{5,}`)

// Normalizer extracts canonical product codes from raw SKU cells
type Normalizer struct {
	mode NormalizationMode
}

// NewNormalizer creates a normalizer for the given mode; an empty mode means ModeFull
func NewNormalizer(mode NormalizationMode) *Normalizer {
	if mode == "" {
		mode = ModeFull
	}
	return &Normalizer{mode: mode}
}

// Mode returns the active normalization mode
func (n *Normalizer) Mode() NormalizationMode {
	return n.mode
}

// Normalize returns the canonical code for raw, or false when none can be extracted
func (n *Normalizer) Normalize(raw string) (string, bool) {
	switch n.mode {
	case ModePrefix5:
		return prefix5(raw)
	default:
		return fullTrimmed(raw)
	}
}

// prefix5 finds the first run of 5+ digits and keeps its first 5.
// "Art. 805221 Eimer" -> "80522", "80522.0" -> "80522".
func prefix5(raw string) (string, bool) {
	run := digitRun.FindString(raw)
	if run == "" {
		return "", false
	}
	return run[:5], true
}

// fullTrimmed drops the ".0"-style suffix spreadsheet tools add when a code is stored as a number
func fullTrimmed(raw string) (string, bool) {
	s := coerceCell(raw)
	if s == "" {
		return "", false
	}
	return s, true
}

// coerceCell trims a cell and cuts it at the first decimal point
func coerceCell(raw string) string {
	s := strings.TrimSpace(raw)
	if i := strings.IndexByte(s, '.'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}
