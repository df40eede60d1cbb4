package whatsapp

import (
	"errors"
	"strings"
)

// ErrInvalidPhone is returned for numbers that cannot be turned into E.164 digits
var ErrInvalidPhone = errors.New("invalid phone number")

// NormalizePhone returns the number as E.164 digits without the leading "+".
// Ten-digit national numbers (optionally with a trunk "0") get countryCode prepended.
func NormalizePhone(phone, countryCode string) (string, error) {
	trimmed := strings.TrimSpace(phone)
	trimmed = strings.TrimPrefix(trimmed, "whatsapp:")
	international := strings.HasPrefix(trimmed, "+") || strings.HasPrefix(trimmed, "00")

	var b strings.Builder
	for _, c := range trimmed {
		if c >= '0' && c <= '9' {
			b.WriteRune(c)
		}
	}
	digits := b.String()

	switch {
	case strings.HasPrefix(trimmed, "00"):
		digits = strings.TrimPrefix(digits, "00")
	case !international && len(digits) == 11 && digits[0] == '0':
		digits = countryCode + digits[1:]
	case !international && len(digits) == 10:
		digits = countryCode + digits
	}

	if len(digits) < 8 || len(digits) > 15 || digits[0] == '0' {
		return "", ErrInvalidPhone
	}
	return digits, nil
}
