package markdown

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/romanzh1/onenote-export/pkg/onenote"
)

type fakeFetcher struct {
	files map[string]string
	calls []string
}

func (f *fakeFetcher) FetchMedia(_ context.Context, mediaURL, _ string) onenote.MediaResult {
	f.calls = append(f.calls, mediaURL)

	name, ok := f.files[mediaURL]
	if !ok {
		return onenote.MediaResult{
			URL: mediaURL,
			Err: &onenote.MediaDownloadError{URL: mediaURL, Err: errors.New("connection reset")},
		}
	}

	return onenote.MediaResult{URL: mediaURL, Filename: name, Bytes: 3}
}

func TestToMarkdownReplacesRepeatedURL(t *testing.T) {
	const src = "https://ex.com/a.png"
	fetcher := &fakeFetcher{files: map[string]string{src: "a.png"}}
	tr := NewTransformer(fetcher, nil)

	page := `<html><body><p><img src="https://ex.com/a.png" alt="first"></p><p><img alt="second" src='https://ex.com/a.png'/></p></body></html>`

	result, err := tr.ToMarkdown(context.Background(), page, t.TempDir())
	if err != nil {
		t.Fatalf("ToMarkdown() error = %v", err)
	}

	if strings.Contains(result.Markdown, src) {
		t.Errorf("markdown still references %s:\n%s", src, result.Markdown)
	}
	if got := strings.Count(result.Markdown, "(a.png)"); got != 2 {
		t.Errorf("local references = %d, want 2:\n%s", got, result.Markdown)
	}
	if len(fetcher.calls) != 1 {
		t.Errorf("downloads = %d, want 1", len(fetcher.calls))
	}
	if result.Localized() != 1 || result.Failed() != 0 {
		t.Errorf("Localized() = %d, Failed() = %d, want 1 and 0", result.Localized(), result.Failed())
	}
}

func TestToMarkdownFailedDownloadKeepsURL(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	fetcher := &fakeFetcher{}
	tr := NewTransformer(fetcher, zap.New(core))

	page := `<body><img src="https://ex.com/missing.png"></body>`

	result, err := tr.ToMarkdown(context.Background(), page, t.TempDir())
	if err != nil {
		t.Fatalf("ToMarkdown() error = %v", err)
	}
	if !strings.Contains(result.Markdown, "https://ex.com/missing.png") {
		t.Errorf("markdown lost the remote url:\n%s", result.Markdown)
	}
	if result.Failed() != 1 {
		t.Errorf("Failed() = %d, want 1", result.Failed())
	}
	if logs.FilterField(zap.String("url", "https://ex.com/missing.png")).Len() != 1 {
		t.Errorf("expected one warning for the failed url, got %d entries", logs.Len())
	}
}

func TestToMarkdownSkipsNonRemoteSources(t *testing.T) {
	fetcher := &fakeFetcher{}
	tr := NewTransformer(fetcher, nil)

	page := `<body><img src="local.png"><img src="data:image/png;base64,AAAA"><img src="//cdn.ex.com/x.png"><img src=""></body>`

	if _, err := tr.ToMarkdown(context.Background(), page, t.TempDir()); err != nil {
		t.Fatalf("ToMarkdown() error = %v", err)
	}
	if len(fetcher.calls) != 0 {
		t.Errorf("downloads = %v, want none", fetcher.calls)
	}
}

func TestToMarkdownEscapedURL(t *testing.T) {
	const src = "https://graph.microsoft.com/v1.0/resources/1/$value?a=1&b=2"
	fetcher := &fakeFetcher{files: map[string]string{src: "image_1.png"}}
	tr := NewTransformer(fetcher, nil)

	page := `<body><img src="https://graph.microsoft.com/v1.0/resources/1/$value?a=1&amp;b=2"></body>`

	result, err := tr.ToMarkdown(context.Background(), page, t.TempDir())
	if err != nil {
		t.Fatalf("ToMarkdown() error = %v", err)
	}
	if !strings.Contains(result.Markdown, "image_1.png") {
		t.Errorf("markdown does not reference local file:\n%s", result.Markdown)
	}
	if strings.Contains(result.Markdown, "graph.microsoft.com") {
		t.Errorf("markdown still references the remote url:\n%s", result.Markdown)
	}
}

func TestToMarkdownConversion(t *testing.T) {
	tr := NewTransformer(&fakeFetcher{}, nil)

	page := `<html><head><title>T</title><style>p{}</style></head><body>` +
		`<h1>Q1 Plan</h1><p>Some <b>bold</b> and <i>italic</i> with a <a href="https://ex.com">link</a>.</p>` +
		`<script>alert(1)</script></body></html>`

	result, err := tr.ToMarkdown(context.Background(), page, t.TempDir())
	if err != nil {
		t.Fatalf("ToMarkdown() error = %v", err)
	}

	for _, want := range []string{"# Q1 Plan", "**bold**", "_italic_", "[link](https://ex.com)"} {
		if !strings.Contains(result.Markdown, want) {
			t.Errorf("markdown missing %q:\n%s", want, result.Markdown)
		}
	}
	for _, unwanted := range []string{"alert(1)", "p{}"} {
		if strings.Contains(result.Markdown, unwanted) {
			t.Errorf("markdown contains %q:\n%s", unwanted, result.Markdown)
		}
	}
}

func TestReplaceURLsLongestFirst(t *testing.T) {
	localized := map[string]string{
		"https://ex.com/a":     "short.png",
		"https://ex.com/a/b.x": "long.png",
	}

	got := replaceURLs(`<img src="https://ex.com/a/b.x"><img src="https://ex.com/a">`, localized)
	want := `<img src="long.png"><img src="short.png">`
	if got != want {
		t.Errorf("replaceURLs() = %q, want %q", got, want)
	}
}

func TestToMarkdownEscapesLocalName(t *testing.T) {
	const src = "https://ex.com/x/my%20photo.png"
	fetcher := &fakeFetcher{files: map[string]string{src: "my photo.png"}}

	result, err := NewTransformer(fetcher, nil).ToMarkdown(context.Background(), `<img src="`+src+`">`, t.TempDir())
	if err != nil {
		t.Fatalf("ToMarkdown() error = %v", err)
	}

	if !strings.Contains(result.Markdown, "![](my%20photo.png)") {
		t.Errorf("markdown = %q, want escaped local reference", result.Markdown)
	}
	if result.Media[0].Filename != "my photo.png" {
		t.Errorf("Filename = %q, want the on-disk name", result.Media[0].Filename)
	}
}

func TestImageSourcesOrderAndDedup(t *testing.T) {
	page := `<img src="https://b.com/2.png"><img src="https://a.com/1.png"><img src="https://b.com/2.png">`

	got, err := imageSources(page)
	if err != nil {
		t.Fatalf("imageSources() error = %v", err)
	}
	want := []string{"https://b.com/2.png", "https://a.com/1.png"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("imageSources() = %v, want %v", got, want)
	}
}
