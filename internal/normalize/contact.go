package normalize

import (
	"strings"
)

var personalProviders = map[string]bool{
	"gmail.com": true, "googlemail.com": true, "yahoo.com": true, "hotmail.com": true,
	"outlook.com": true, "live.com": true, "aol.com": true, "icloud.com": true,
	"me.com": true, "msn.com": true, "protonmail.com": true, "ymail.com": true,
}

// IsPersonalDomain reports whether domain belongs to a consumer mail provider.
func IsPersonalDomain(domain string) bool {
	return personalProviders[strings.ToLower(domain)]
}

// Email lowercases the address. When several are packed into one value
// (separated by , ; or |) the first business-domain address wins, falling
// back to the first address.
func Email(raw string) string {
	parts := strings.FieldsFunc(strings.ToLower(raw), func(r rune) bool {
		return r == ',' || r == ';' || r == '|'
	})

	var emails []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			emails = append(emails, p)
		}
	}
	if len(emails) == 0 {
		return ""
	}
	for _, e := range emails {
		if d := EmailDomain(e); d != "" && !IsPersonalDomain(d) {
			return e
		}
	}
	return emails[0]
}

// PhoneResult is a normalized phone number. When Valid is false Value holds
// the raw input unchanged.
type PhoneResult struct {
	Value string
	Valid bool
}

// Phone strips non-digits and prefixes a US country code on 10-digit
// numbers. Results outside 10 to 15 digits are flagged invalid.
func Phone(raw string) PhoneResult {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if len(digits) == 10 {
		digits = "1" + digits
	}
	if len(digits) < 10 || len(digits) > 15 {
		return PhoneResult{Value: raw}
	}
	return PhoneResult{Value: digits, Valid: true}
}
