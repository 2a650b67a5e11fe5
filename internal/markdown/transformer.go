// Package markdown turns OneNote page HTML into Markdown, downloading the
// images a page references and pointing the output at the local copies.
package markdown

import (
	"context"
	"fmt"
	"html"
	"net/url"
	"sort"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/romanzh1/onenote-export/pkg/onenote"
)

type MediaFetcher interface {
	FetchMedia(ctx context.Context, mediaURL, destDir string) onenote.MediaResult
}

type Result struct {
	Markdown string
	Media    []onenote.MediaResult
}

func (r Result) Localized() int {
	n := 0
	for _, m := range r.Media {
		if m.OK() {
			n++
		}
	}
	return n
}

func (r Result) Failed() int {
	return len(r.Media) - r.Localized()
}

type Transformer struct {
	fetcher   MediaFetcher
	converter *md.Converter
	logger    *zap.Logger
}

func NewTransformer(fetcher MediaFetcher, logger *zap.Logger) *Transformer {
	if logger == nil {
		logger = zap.NewNop()
	}

	converter := md.NewConverter("", true, &md.Options{
		HeadingStyle:     "atx",
		CodeBlockStyle:   "fenced",
		BulletListMarker: "-",
	})
	converter.Use(plugin.GitHubFlavored())
	converter.Remove("head", "script", "style")

	return &Transformer{
		fetcher:   fetcher,
		converter: converter,
		logger:    logger,
	}
}

// ToMarkdown downloads every absolute image source into destDir, rewrites all
// occurrences of each downloaded URL to the local filename and converts the
// result. Images that fail to download keep their remote URL.
func (t *Transformer) ToMarkdown(ctx context.Context, pageHTML, destDir string) (Result, error) {
	sources, err := imageSources(pageHTML)
	if err != nil {
		return Result{}, err
	}

	var (
		result    Result
		localized = make(map[string]string, len(sources))
	)
	for _, src := range sources {
		media := t.fetcher.FetchMedia(ctx, src, destDir)
		result.Media = append(result.Media, media)

		if !media.OK() {
			t.logger.Warn("keeping remote media reference", zap.String("url", src), zap.Error(media.Err))
			continue
		}
		localized[src] = media.Filename
	}

	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	markdown, err := t.converter.ConvertString(replaceURLs(pageHTML, localized))
	if err != nil {
		return Result{}, fmt.Errorf("convert html to markdown: %w", err)
	}
	result.Markdown = markdown

	return result, nil
}

// imageSources lists absolute http(s) img sources in document order, once each.
func imageSources(pageHTML string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(pageHTML))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	var (
		sources []string
		seen    = make(map[string]struct{})
	)
	doc.Find("img[src]").Each(func(_ int, s *goquery.Selection) {
		src := strings.TrimSpace(s.AttrOr("src", ""))
		if !isRemote(src) {
			return
		}
		if _, ok := seen[src]; ok {
			return
		}
		seen[src] = struct{}{}
		sources = append(sources, src)
	})

	return sources, nil
}

func isRemote(src string) bool {
	u, err := url.Parse(src)
	if err != nil {
		return false
	}

	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// replaceURLs substitutes each URL, in raw and HTML-escaped form, everywhere in
// the document. Longer URLs go first so a URL that prefixes another one does
// not clobber it.
func replaceURLs(pageHTML string, localized map[string]string) string {
	if len(localized) == 0 {
		return pageHTML
	}

	urls := make([]string, 0, len(localized))
	for u := range localized {
		urls = append(urls, u)
	}
	sort.Slice(urls, func(i, j int) bool {
		if len(urls[i]) != len(urls[j]) {
			return len(urls[i]) > len(urls[j])
		}
		return urls[i] < urls[j]
	})

	pairs := make([]string, 0, len(urls)*4)
	for _, u := range urls {
		local := url.PathEscape(localized[u])
		pairs = append(pairs, u, local)
		if escaped := html.EscapeString(u); escaped != u {
			pairs = append(pairs, escaped, local)
		}
	}

	return strings.NewReplacer(pairs...).Replace(pageHTML)
}
