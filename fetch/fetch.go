// Package fetch downloads admitted image candidates to local disk, working
// through a fallback chain when the direct URL is blocked or stale: strip CMS
// size suffixes from the filename, then follow the candidate's parent anchor
// in the page markup.
package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rwcarlsen/goexif/exif"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"

	"github.com/diegosardonpro/runa-curator/models"
)

// ErrExhausted is returned when every strategy in the fallback chain failed
// for a candidate.
var ErrExhausted = errors.New("all fetch strategies exhausted")

const (
	defaultMaxImageBytes = 20 * 1024 * 1024
	defaultFetchTimeout  = 30 * time.Second

	browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
	imageAccept      = "image/avif,image/webp,image/apng,image/*,*/*;q=0.8"
)

// WordPress-style size suffixes appended to upload filenames. Stripping them
// recovers the original full-resolution file.
var sizeSuffixRes = []*regexp.Regexp{
	regexp.MustCompile(`-\d{2,4}x\d{2,4}(\.[a-zA-Z]{3,4})$`), // -300x200.jpg
	regexp.MustCompile(`-scaled(\.[a-zA-Z]{3,4})$`),          // -scaled.jpg
	regexp.MustCompile(`-e\d+(\.[a-zA-Z]{3,4})$`),            // -e1612345678.jpg
}

// Config contains fetcher configuration.
type Config struct {
	OutputDir     string
	MaxImageBytes int64
	Timeout       time.Duration
}

// Request describes one image download.
type Request struct {
	ImageURL string
	PageURL  *url.URL // page the candidate came from; used as Referer and anchor base
	PageHTML string   // rendered markup, consulted for the parent-anchor fallback
	AssetID  int64
	Order    int // appearance order within the asset, drives the filename
}

// Result describes a completed download.
type Result struct {
	LocalPath   string
	FetchedURL  string // URL that actually succeeded, after fallbacks
	ContentType string
	Bytes       int64
	Width       int
	Height      int
	EXIF        *models.EXIFData
}

// Fetcher downloads images with browser-like headers and a fallback chain.
type Fetcher struct {
	client    *http.Client
	outputDir string
	maxBytes  int64
	logger    *slog.Logger
}

// NewFetcher builds a fetcher writing into cfg.OutputDir, creating it if
// needed.
func NewFetcher(cfg Config, logger *slog.Logger) (*Fetcher, error) {
	if cfg.OutputDir == "" {
		cfg.OutputDir = filepath.Join(os.TempDir(), "runa-images")
	}
	if cfg.MaxImageBytes == 0 {
		cfg.MaxImageBytes = defaultMaxImageBytes
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultFetchTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	return &Fetcher{
		client: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		outputDir: cfg.OutputDir,
		maxBytes:  cfg.MaxImageBytes,
		logger:    logger,
	}, nil
}

// Fetch runs the fallback chain for one candidate and writes the winning
// bytes to disk. Returns ErrExhausted (wrapped with the last cause) when no
// strategy produced an image.
func (f *Fetcher) Fetch(ctx context.Context, req Request) (*Result, error) {
	var lastErr error
	for _, target := range f.strategyURLs(req) {
		data, contentType, err := f.download(ctx, target, req.PageURL)
		if err != nil {
			lastErr = err
			f.logger.Debug("image fetch attempt failed", "url", target, "error", err)
			continue
		}
		return f.store(req, target, data, contentType)
	}
	if lastErr == nil {
		lastErr = errors.New("no fetchable URL")
	}
	return nil, fmt.Errorf("%w: %v", ErrExhausted, lastErr)
}

// strategyURLs builds the ordered list of URLs to try: the candidate itself,
// its size-suffix-stripped variant, and the href of the anchor wrapping it in
// the page markup.
func (f *Fetcher) strategyURLs(req Request) []string {
	urls := []string{req.ImageURL}

	if cleaned := stripSizeSuffix(req.ImageURL); cleaned != req.ImageURL {
		urls = append(urls, cleaned)
	}
	if anchor := anchorTarget(req.PageHTML, req.ImageURL, req.PageURL); anchor != "" {
		urls = append(urls, anchor)
	}

	// An anchor target may equal an earlier strategy; keep first occurrence.
	seen := make(map[string]bool, len(urls))
	out := urls[:0]
	for _, u := range urls {
		if !seen[u] {
			seen[u] = true
			out = append(out, u)
		}
	}
	return out
}

// stripSizeSuffix removes CMS thumbnail suffixes from the URL's filename.
// Returns the input unchanged when no suffix matches.
func stripSizeSuffix(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	dir, file := path.Split(parsed.Path)
	for _, re := range sizeSuffixRes {
		if re.MatchString(file) {
			parsed.Path = dir + re.ReplaceAllString(file, "$1")
			return parsed.String()
		}
	}
	return rawURL
}

// anchorTarget finds an <a> wrapping an <img> whose src matches the
// candidate and returns its resolved href, but only when the href itself
// looks like an image file. Galleries commonly link thumbnails to the
// full-size original this way.
func anchorTarget(pageHTML, imageURL string, base *url.URL) string {
	if pageHTML == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(pageHTML))
	if err != nil {
		return ""
	}

	imgPath := urlPath(imageURL)
	var target string
	doc.Find("a").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, ok := a.Attr("href")
		if !ok || href == "" {
			return true
		}
		match := false
		a.Find("img").EachWithBreak(func(_ int, img *goquery.Selection) bool {
			src, _ := img.Attr("src")
			if src == "" {
				src, _ = img.Attr("data-src")
			}
			if src != "" && urlPath(src) == imgPath {
				match = true
				return false
			}
			return true
		})
		if !match {
			return true
		}
		if !looksLikeImageFile(href) {
			return true
		}
		if base != nil {
			if parsed, err := url.Parse(href); err == nil {
				href = base.ResolveReference(parsed).String()
			}
		}
		target = href
		return false
	})
	return target
}

func urlPath(rawURL string) string {
	if parsed, err := url.Parse(strings.TrimSpace(rawURL)); err == nil && parsed.Path != "" {
		return parsed.Path
	}
	return rawURL
}

func looksLikeImageFile(href string) bool {
	p := strings.ToLower(urlPath(href))
	for _, ext := range []string{".jpg", ".jpeg", ".png", ".gif", ".webp"} {
		if strings.HasSuffix(p, ext) {
			return true
		}
	}
	return false
}

// download performs a single GET with browser-like headers and returns the
// body bytes and content type.
func (f *Fetcher) download(ctx context.Context, target string, referer *url.URL) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("User-Agent", browserUserAgent)
	req.Header.Set("Accept", imageAccept)
	if referer != nil {
		req.Header.Set("Referer", referer.String())
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("HTTP error: %s", resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("read body: %w", err)
	}
	if int64(len(data)) > f.maxBytes {
		return nil, "", fmt.Errorf("image exceeds %d bytes", f.maxBytes)
	}
	if len(data) == 0 {
		return nil, "", errors.New("empty body")
	}

	contentType := resp.Header.Get("Content-Type")
	if idx := strings.Index(contentType, ";"); idx >= 0 {
		contentType = contentType[:idx]
	}
	return data, strings.TrimSpace(contentType), nil
}

// store writes the downloaded bytes under the deterministic per-asset name
// and probes dimensions and EXIF.
func (f *Fetcher) store(req Request, fetchedURL string, data []byte, contentType string) (*Result, error) {
	name := fmt.Sprintf("%d_%d%s", req.AssetID, req.Order, extensionFor(contentType))
	localPath := filepath.Join(f.outputDir, name)
	if err := os.WriteFile(localPath, data, 0o644); err != nil {
		return nil, fmt.Errorf("write image file: %w", err)
	}

	res := &Result{
		LocalPath:   localPath,
		FetchedURL:  fetchedURL,
		ContentType: contentType,
		Bytes:       int64(len(data)),
	}

	if cfg, _, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
		res.Width = cfg.Width
		res.Height = cfg.Height
	}
	res.EXIF = probeEXIF(data)

	f.logger.Info("image downloaded",
		"asset_id", req.AssetID,
		"order", req.Order,
		"url", fetchedURL,
		"bytes", res.Bytes,
		"path", localPath,
	)
	return res, nil
}

// extensionFor maps a content type to a file extension, defaulting to .jpg
// the way most article photography is served.
func extensionFor(contentType string) string {
	switch strings.ToLower(contentType) {
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	default:
		return ".jpg"
	}
}

// probeEXIF extracts the few camera fields the catalog stores. Most web
// images have EXIF stripped; absence is normal.
func probeEXIF(data []byte) *models.EXIFData {
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return nil
	}
	out := &models.EXIFData{}
	found := false
	if t, err := x.DateTime(); err == nil {
		out.DateTimeOriginal = t.Format(time.RFC3339)
		found = true
	}
	if tag, err := x.Get(exif.Make); err == nil {
		if v, err := tag.StringVal(); err == nil {
			out.Make = strings.TrimSpace(v)
			found = true
		}
	}
	if tag, err := x.Get(exif.Model); err == nil {
		if v, err := tag.StringVal(); err == nil {
			out.Model = strings.TrimSpace(v)
			found = true
		}
	}
	if !found {
		return nil
	}
	return out
}
