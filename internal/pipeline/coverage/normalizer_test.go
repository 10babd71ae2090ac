package coverage

import (
	"errors"
	"testing"

	"github.com/andresuchdata/warenbestand/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePrefix5(t *testing.T) {
	n := NewNormalizer(ModePrefix5)

	cases := []struct {
		raw  string
		want string
		ok   bool
	}{
		{"80522", "80522", true},
		{"80522.0", "80522", true},
		{"805221", "80522", true},
		{"Art. 805221 Eimer", "80522", true},
		{"12-34567-8", "34567", true},
		{"1234", "", false},
		{"Eimer", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, ok := n.Normalize(tc.raw)
		assert.Equal(t, tc.ok, ok, tc.raw)
		assert.Equal(t, tc.want, got, tc.raw)
	}
}

func TestNormalizeFull(t *testing.T) {
	n := NewNormalizer(ModeFull)

	cases := []struct {
		raw  string
		want string
		ok   bool
	}{
		{"80522", "80522", true},
		{"80522.0", "80522", true},
		{" 805221 ", "805221", true},
		{"AB-77", "AB-77", true},
		{"", "", false},
		{"   ", "", false},
		{".5", "", false},
	}
	for _, tc := range cases {
		got, ok := n.Normalize(tc.raw)
		assert.Equal(t, tc.ok, ok, tc.raw)
		assert.Equal(t, tc.want, got, tc.raw)
	}
}

func TestNormalizeIsIdempotentForFiveDigitCodes(t *testing.T) {
	for _, mode := range []NormalizationMode{ModePrefix5, ModeFull} {
		n := NewNormalizer(mode)
		for _, code := range []string{"80522", "00017", "99999"} {
			once, ok := n.Normalize(code)
			require.True(t, ok)
			twice, ok := n.Normalize(once)
			require.True(t, ok)
			assert.Equal(t, code, once, "mode %s", mode)
			assert.Equal(t, once, twice, "mode %s", mode)
		}
	}
}

func TestNewNormalizerDefaultsToFull(t *testing.T) {
	assert.Equal(t, ModeFull, NewNormalizer("").Mode())
}

func TestParseMode(t *testing.T) {
	mode, err := ParseMode(" Prefix5 ")
	require.NoError(t, err)
	assert.Equal(t, ModePrefix5, mode)

	mode, err = ParseMode("full")
	require.NoError(t, err)
	assert.Equal(t, ModeFull, mode)

	_, err = ParseMode("prefix6")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInvalidMode))
}
