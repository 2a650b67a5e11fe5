package utils

import (
	"strings"
	"unicode"
)

const untitled = "untitled"

// illegalNameChars are rejected by at least one of the common filesystems.
const illegalNameChars = `<>:"/\|?*`

// SanitizeFileName replaces characters that are illegal in path components
// with an underscore. When nothing usable remains the fallback is returned,
// and when the fallback is unusable too the result is "untitled".
func SanitizeFileName(name, fallback string) string {
	if safe := sanitize(name); safe != "" {
		return safe
	}
	if safe := sanitize(fallback); safe != "" {
		return safe
	}
	return untitled
}

func sanitize(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		if strings.ContainsRune(illegalNameChars, r) || unicode.IsControl(r) {
			b.WriteRune('_')
			continue
		}
		b.WriteRune(r)
	}

	// Windows refuses names ending in a dot or a space.
	safe := strings.TrimRight(strings.TrimSpace(b.String()), ". ")
	if safe == "" || safe == "." || safe == ".." {
		return ""
	}
	return safe
}

// IDPrefix returns a short identifier-derived name such as "page_0-abc123".
func IDPrefix(kind, id string) string {
	if len(id) > 8 {
		id = id[:8]
	}
	if id == "" {
		return ""
	}
	return kind + "_" + id
}
