package guests

import (
	"strings"
	"unicode"
)

// NormalizePhone strips formatting from a phone number, keeping a
// leading "+" and the digits. Numbers written without a country code
// but with a Brazilian area code (10 or 11 digits) get +55 prefixed.
func NormalizePhone(phone string) string {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return ""
	}

	var b strings.Builder
	for i, r := range phone {
		switch {
		case r == '+' && i == 0:
			b.WriteRune(r)
		case unicode.IsDigit(r):
			b.WriteRune(r)
		}
	}
	out := b.String()
	if strings.TrimPrefix(out, "+") == "" {
		return ""
	}

	if !strings.HasPrefix(out, "+") {
		switch {
		case strings.HasPrefix(out, "55") && (len(out) == 12 || len(out) == 13):
			out = "+" + out
		case len(out) == 10 || len(out) == 11:
			out = "+55" + out
		default:
			out = "+" + out
		}
	}
	return out
}

// PhoneVariants returns the forms under which a number may be stored.
// Brazilian mobiles gained a leading 9 after the area code, so guest
// lists often hold the old 8-digit form: +55 DD 9XXXXXXXX is also tried
// as +55 DD XXXXXXXX and the reverse.
func PhoneVariants(phone string) []string {
	p := NormalizePhone(phone)
	if p == "" {
		return nil
	}
	variants := []string{p}
	if !strings.HasPrefix(p, "+55") {
		return variants
	}

	switch len(p) {
	case 14: // +55 DD 9XXXXXXXX
		if p[5] == '9' {
			variants = append(variants, p[:5]+p[6:])
		}
	case 13: // +55 DD XXXXXXXX
		if first := p[5]; first >= '6' && first <= '9' {
			variants = append(variants, p[:5]+"9"+p[5:])
		}
	}
	return variants
}
