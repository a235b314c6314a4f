package textutil

import "unicode/utf8"

// Truncate caps s at max bytes and appends suffix when anything was cut.
// The cut never lands inside a multi-byte UTF-8 sequence, so the result
// stays valid UTF-8 whenever s is.
func Truncate(s string, max int, suffix string) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max] + suffix
}
