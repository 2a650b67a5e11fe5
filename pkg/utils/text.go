package utils

import "unicode/utf8"

const ellipsis = "..."

// Truncate shortens s to at most limit runes, ending in "..." when cut. It
// never splits a multi-byte character.
func Truncate(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	if limit <= len(ellipsis) {
		return ellipsis[:limit]
	}

	keep := limit - len(ellipsis)
	for i := range s {
		if keep == 0 {
			return s[:i] + ellipsis
		}
		keep--
	}

	return s
}
