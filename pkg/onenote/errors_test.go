package onenote

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestAPICallErrorTruncatesBody(t *testing.T) {
	err := &APICallError{
		URL:        "https://graph.microsoft.com/v1.0/me/onenote/notebooks",
		StatusCode: 400,
		Body:       "  " + strings.Repeat("ё", 600) + "\n",
		Attempts:   1,
	}

	msg := err.Error()
	if !utf8.ValidString(msg) {
		t.Fatal("Error() returned invalid UTF-8")
	}

	_, body, ok := strings.Cut(msg, "): ")
	if !ok {
		t.Fatalf("Error() = %q, want a body suffix", msg)
	}
	if n := utf8.RuneCountInString(body); n != 512 {
		t.Errorf("body length = %d runes, want 512", n)
	}
	if !strings.HasPrefix(body, "ёё") || !strings.HasSuffix(body, "...") {
		t.Errorf("body = %q, want trimmed and cut", body)
	}
}
