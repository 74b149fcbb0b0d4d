package chromaffi

import (
	"strings"
)

// RepairUTF8 replaces every invalid UTF-8 sequence with U+FFFD.
func RepairUTF8(s string) string {
	return strings.ToValidUTF8(s, "\uFFFD")
}

// HasNul reports whether s contains an embedded nul byte and therefore has
// no C string form.
func HasNul(s string) bool {
	return strings.IndexByte(s, 0) >= 0
}

// CheckOutgoing fails with MemoryError for strings that cannot cross the
// boundary.
func CheckOutgoing(source string, ss ...string) error {
	for i, s := range ss {
		if HasNul(s) {
			return Errorf(MemoryError, source, MsgInvalidString, "String at index %d contains an embedded nul byte", i)
		}
	}
	return nil
}

// optional treats nil and empty strings alike.
func optional(s *string) (string, bool) {
	if s == nil || *s == "" {
		return "", false
	}
	return *s, true
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
