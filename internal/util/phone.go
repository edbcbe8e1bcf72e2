package util

import (
	"regexp"
	"strings"
)

var phoneShapedRegex = regexp.MustCompile(`^\+?[0-9][0-9 ().-]{4,}$`)

// IsPhoneShaped reports whether s looks like a phone number rather than a
// human display name. Transports often fall back to the raw number when a
// profile name is missing; such values must not be stored as display names.
func IsPhoneShaped(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	return phoneShapedRegex.MatchString(s)
}

// PhoneFromAddress extracts the phone portion of a protocol address
// ("4915512345678@s.whatsapp.net" -> "4915512345678"). Addresses without a
// server suffix are returned unchanged.
func PhoneFromAddress(addr string) string {
	if i := strings.IndexByte(addr, '@'); i >= 0 {
		return addr[:i]
	}
	return addr
}

// FormatPhone renders a protocol address as a dialable number for display.
// This is the read-time fallback used when a contact has no display name.
func FormatPhone(addr string) string {
	phone := PhoneFromAddress(addr)
	if phone == "" {
		return addr
	}
	if strings.HasPrefix(phone, "+") {
		return phone
	}
	return "+" + phone
}
