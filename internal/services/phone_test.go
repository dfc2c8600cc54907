package services

import (
	"testing"

	"github.com/Kelompok-1-ODP-IT-343/KPR-Form-Verify/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	waTypes "go.mau.fi/whatsmeow/types"
)

func TestStripDevicePart(t *testing.T) {
	cases := []struct {
		in  string
		out string
	}{
		{"62812345:12", "62812345"},
		{"62812345", "62812345"},
		{"", ""},
	}

	for _, c := range cases {
		got := stripDevicePart(c.in)
		if got != c.out {
			t.Fatalf("stripDevicePart(%q)=%q; want %q", c.in, got, c.out)
		}
	}
}

func TestNormalizePhoneDigits(t *testing.T) {
	cases := []struct {
		in  string
		out string
	}{
		{"62812345@s.whatsapp.net", "62812345"},
		{"62812345:12@s.whatsapp.net", "62812345"},
		{"+62 812-345", "62812345"},
		{"  62812345  ", "62812345"},
		{"", ""},
	}

	for _, c := range cases {
		got := normalizePhone(c.in)
		if got != c.out {
			t.Fatalf("normalizePhone(%q)=%q; want %q", c.in, got, c.out)
		}
	}
}

func TestJIDFromNormalizedPhone(t *testing.T) {
	p := normalizePhone("62812345@s.whatsapp.net")
	if p != "62812345" {
		t.Fatalf("normalizePhone -> %q; want 62812345", p)
	}
	jid := waTypes.NewJID(p, waTypes.DefaultUserServer)
	if jid.String() != "62812345@s.whatsapp.net" {
		t.Fatalf("jid.String()=%q; want %q", jid.String(), "62812345@s.whatsapp.net")
	}
}

func TestNormalizePhone(t *testing.T) {
	p, err := NormalizePhone("0812-3456-7890")
	require.NoError(t, err)
	assert.Equal(t, "6281234567890", p)

	p, err = NormalizePhone("+62 812 3456 7890")
	require.NoError(t, err)
	assert.Equal(t, "6281234567890", p)

	_, err = NormalizePhone("12345")
	assert.ErrorIs(t, err, domain.ErrInvalidPhone)

	_, err = NormalizePhone("")
	assert.ErrorIs(t, err, domain.ErrInvalidPhone)
}

func TestParseCode(t *testing.T) {
	code, err := ParseCode("1234", nil)
	require.NoError(t, err)
	assert.Equal(t, "1234", code)

	code, err = ParseCode("", []string{"9", "0", "1", "2"})
	require.NoError(t, err)
	assert.Equal(t, "9012", code)

	for _, bad := range []string{"", "123", "12345", "12a4"} {
		_, err := ParseCode(bad, nil)
		assert.ErrorIs(t, err, domain.ErrInvalidCode, "code %q", bad)
	}

	_, err = ParseCode("", []string{"1", "2", "3"})
	assert.ErrorIs(t, err, domain.ErrInvalidCode)

	code, err = ParseCode("", []string{" 1", "2 ", "3", "4"})
	require.NoError(t, err)
	assert.Equal(t, "1234", code)
}

func TestParseCodeRejectsMalformedDigits(t *testing.T) {
	cases := map[string][]string{
		"two per box":   {"12", "34"},
		"empty box":     {"1", "", "23", "4"},
		"five boxes":    {"1", "2", "3", "4", "5"},
		"one long box":  {"1234"},
		"letter in box": {"1", "b", "3", "4"},
	}
	for name, digits := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseCode("", digits)
			assert.ErrorIs(t, err, domain.ErrInvalidCode)
		})
	}
}
