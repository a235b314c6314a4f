package textutil

import "strings"

// FirstLine returns everything before the first newline in s, without a
// trailing carriage return.
func FirstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSuffix(s, "\r")
}
