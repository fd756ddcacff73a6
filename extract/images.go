// Package extract turns rendered page markup into the inputs the curation
// pipeline needs: an ordered list of image candidates, an asset-type
// classification, and AI-extracted article metadata.
package extract

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// MinImageDimension is the default small-icon threshold: images declaring a
// width or height below this many pixels are dropped.
const MinImageDimension = 250

// containerSelectors are tried in order when locating the main content
// container; the densest match wins.
var containerSelectors = []string{
	"article",
	"main",
	"[role='main']",
	"#content",
	".content",
	".article-body",
	".article__content",
	".post-content",
	".entry-content",
}

// skipKeywords marks image URLs that are almost certainly page chrome rather
// than article content.
var skipKeywords = []string{
	"logo",
	"icon",
	"avatar",
	"banner",
	"badge",
	"sprite",
	"placeholder",
	"pixel",
	"spacer",
	"tracking",
	"blank",
	"transparent",
}

var (
	backgroundImageRe = regexp.MustCompile(`background(?:-image)?\s*:\s*url\(\s*['"]?([^'")]+)['"]?\s*\)`)
	embeddedImageRe   = regexp.MustCompile(`https?://[^\s"'\\<>]+?\.(?:jpe?g|png|webp|gif)(?:\?[^\s"'\\<>]*)?`)
)

// ExtractImageCandidates runs the layered discovery pipeline over rendered
// markup: content-container detection, img tag collection with chrome
// filtering, inline-style and embedded-script URL mining, then
// path-normalized deduplication preserving first-seen document order. Every
// surviving URL is absolute, resolved against base. A page with no usable
// images yields an empty list, not an error.
func ExtractImageCandidates(pageHTML string, base *url.URL) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(pageHTML))
	if err != nil {
		return nil, fmt.Errorf("parse markup: %w", err)
	}

	container := findContentContainer(doc)

	candidates := collectImgSources(container)
	candidates = append(candidates, mineStyleURLs(container)...)
	candidates = append(candidates, mineScriptURLs(doc)...)

	return dedupeAndResolve(base, candidates), nil
}

// MergeCandidates combines several candidate lists (e.g. the model-reported
// image URLs and the markup-mined ones) into a single deduplicated,
// order-preserving list of absolute URLs.
func MergeCandidates(base *url.URL, lists ...[]string) []string {
	var combined []string
	for _, list := range lists {
		combined = append(combined, list...)
	}
	return dedupeAndResolve(base, combined)
}

// findContentContainer picks the most text-dense structural container among
// the candidate selectors, falling back to the whole document when nothing
// matches.
func findContentContainer(doc *goquery.Document) *goquery.Selection {
	var best *goquery.Selection
	bestLen := 0

	for _, sel := range containerSelectors {
		doc.Find(sel).Each(func(_ int, s *goquery.Selection) {
			if l := len(strings.TrimSpace(s.Text())); l > bestLen {
				best = s
				bestLen = l
			}
		})
	}

	if best != nil {
		return best
	}
	if body := doc.Find("body"); body.Length() > 0 {
		return body
	}
	return doc.Selection
}

// collectImgSources gathers img sources in document order, dropping data
// URIs, vector images, chrome-keyword URLs, and declared-small images.
func collectImgSources(container *goquery.Selection) []string {
	var sources []string
	container.Find("img").Each(func(_ int, img *goquery.Selection) {
		src, ok := img.Attr("src")
		if !ok || src == "" {
			// Lazy-loading libraries park the real source in data-src.
			src, _ = img.Attr("data-src")
		}
		if !keepImageURL(src) {
			return
		}
		if belowDimensionThreshold(img) {
			return
		}
		sources = append(sources, src)
	})
	return sources
}

func keepImageURL(src string) bool {
	if src == "" || strings.HasPrefix(src, "data:") {
		return false
	}
	srcLower := strings.ToLower(src)
	if strings.Contains(srcLower, ".svg") {
		return false
	}
	for _, kw := range skipKeywords {
		if strings.Contains(srcLower, kw) {
			return false
		}
	}
	return true
}

// belowDimensionThreshold reports whether an explicit width or height
// attribute declares the image smaller than the icon threshold. Images
// without parseable dimensions are kept.
func belowDimensionThreshold(img *goquery.Selection) bool {
	for _, attr := range []string{"width", "height"} {
		raw, ok := img.Attr(attr)
		if !ok {
			continue
		}
		raw = strings.TrimSuffix(strings.TrimSpace(raw), "px")
		if v, err := strconv.Atoi(raw); err == nil && v > 0 && v < MinImageDimension {
			return true
		}
	}
	return false
}

// mineStyleURLs pulls image URLs out of inline background-image declarations
// within the content container.
func mineStyleURLs(container *goquery.Selection) []string {
	var urls []string
	container.Find("[style]").Each(func(_ int, s *goquery.Selection) {
		style, _ := s.Attr("style")
		for _, m := range backgroundImageRe.FindAllStringSubmatch(style, -1) {
			if keepImageURL(m[1]) {
				urls = append(urls, m[1])
			}
		}
	})
	return urls
}

// mineScriptURLs scans script bodies (JSON-LD payloads, gallery configs) for
// direct image URLs. Scripts frequently carry the full-resolution variants
// that lazy loaders never put in the DOM.
func mineScriptURLs(doc *goquery.Document) []string {
	var urls []string
	doc.Find("script").Each(func(_ int, s *goquery.Selection) {
		// JSON payloads escape slashes; undo that before matching.
		text := strings.ReplaceAll(s.Text(), `\/`, "/")
		for _, m := range embeddedImageRe.FindAllString(text, -1) {
			if keepImageURL(m) {
				urls = append(urls, m)
			}
		}
	})
	return urls
}

// dedupeAndResolve resolves every candidate against the page base URL and
// collapses duplicates by host+path, ignoring the query string, keeping the
// first-seen entry.
func dedupeAndResolve(base *url.URL, candidates []string) []string {
	result := []string{}
	seen := make(map[string]bool)

	for _, raw := range candidates {
		parsed, err := url.Parse(strings.TrimSpace(raw))
		if err != nil {
			continue
		}
		resolved := parsed
		if base != nil {
			resolved = base.ResolveReference(parsed)
		}
		if resolved.Scheme != "http" && resolved.Scheme != "https" {
			continue
		}
		key := strings.ToLower(resolved.Host) + resolved.Path
		if seen[key] {
			continue
		}
		seen[key] = true
		result = append(result, resolved.String())
	}

	return result
}
