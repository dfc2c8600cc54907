package services

import (
	"fmt"
	"strings"

	"github.com/Kelompok-1-ODP-IT-343/KPR-Form-Verify/internal/domain"
)

const (
	minPhoneDigits = 9
	maxPhoneDigits = 15
)

// stripDevicePart drops the ":device" suffix of a WhatsApp user part
func stripDevicePart(user string) string {
	if i := strings.IndexByte(user, ':'); i != -1 {
		return user[:i]
	}
	return user
}

// normalizePhone reduces a phone or JID to its digits
func normalizePhone(in string) string {
	s := strings.TrimSpace(in)
	if i := strings.IndexByte(s, '@'); i != -1 {
		s = s[:i]
	}
	s = stripDevicePart(s)

	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NormalizePhone returns the international digits form of an Indonesian or
// international number. A local "08" prefix becomes "628".
func NormalizePhone(in string) (string, error) {
	p := normalizePhone(in)
	if strings.HasPrefix(p, "0") {
		p = "62" + strings.TrimPrefix(p, "0")
	}
	if len(p) < minPhoneDigits || len(p) > maxPhoneDigits {
		return "", fmt.Errorf("%w: %q", domain.ErrInvalidPhone, in)
	}
	return p, nil
}

// ParseCode joins either a code string or the four entered digits into a code
func ParseCode(code string, digits []string) (string, error) {
	if code == "" {
		// one entry per input box
		if len(digits) != otpCodeLength {
			return "", domain.ErrInvalidCode
		}
		var sb strings.Builder
		for _, d := range digits {
			d = strings.TrimSpace(d)
			if len(d) != 1 {
				return "", domain.ErrInvalidCode
			}
			sb.WriteString(d)
		}
		code = sb.String()
	}
	code = strings.TrimSpace(code)
	if len(code) != otpCodeLength {
		return "", domain.ErrInvalidCode
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return "", domain.ErrInvalidCode
		}
	}
	return code, nil
}
