// Package vision gates image candidates on a model verdict before any
// download or storage work is spent on them. The filter never propagates an
// error: every failure mode collapses into a skip decision for the caller.
package vision

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/diegosardonpro/runa-curator/gemini"
	"github.com/diegosardonpro/runa-curator/models"
)

const classificationPrompt = `Actúa como un curador visual para el proyecto Runa. Analiza la imagen adjunta y devuelve un único objeto JSON, sin texto adicional ni markdown, con esta estructura:
{
  "tipo": "(uno de: fotografia_principal, fotografia_secundaria, logo_o_banner, irrelevante)",
  "es_relevante": (true si la imagen aporta valor editorial al artículo, false si es decorativa o publicitaria),
  "descripcion_ia": "(Una descripción objetiva de la imagen en una o dos frases)",
  "tags_visuales_ia": ["(3 a 5 etiquetas visuales en minúsculas)"]
}`

// Same request shape as the image fetcher so hotlink-protected candidates
// are not rejected here before its fallback chain ever gets a chance.
const (
	browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
	imageAccept      = "image/avif,image/webp,image/apng,image/*,*/*;q=0.8"
)

// Config contains filter configuration.
type Config struct {
	MaxImageBytes int64         // cap on downloaded candidate size; default 10MB
	FetchTimeout  time.Duration // per candidate download; default 15s
}

// ImageClassifier is the slice of the LLM client the filter needs.
type ImageClassifier interface {
	ClassifyImage(ctx context.Context, data []byte, mimeType, prompt string) (string, error)
}

// Filter classifies image candidates through the vision model.
type Filter struct {
	llm         ImageClassifier
	httpClient  *http.Client
	maxBytes    int64
	timeout     time.Duration
	logger      *slog.Logger
	rejectTypes map[string]bool
}

// NewFilter builds a vision filter.
func NewFilter(cfg Config, llm ImageClassifier, logger *slog.Logger) *Filter {
	if cfg.MaxImageBytes == 0 {
		cfg.MaxImageBytes = 10 * 1024 * 1024
	}
	if cfg.FetchTimeout == 0 {
		cfg.FetchTimeout = 15 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Filter{
		llm: llm,
		httpClient: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		maxBytes: cfg.MaxImageBytes,
		timeout:  cfg.FetchTimeout,
		logger:   logger,
		rejectTypes: map[string]bool{
			models.VisionTypeLogoBanner: true,
			models.VisionTypeIrrelevant: true,
		},
	}
}

// Classify downloads the candidate's bytes and asks the vision model for a
// verdict. The second return value is the admission decision; when it is
// false the verdict may be nil (no verdict could be obtained).
func (f *Filter) Classify(ctx context.Context, imageURL string) (*models.VisionVerdict, bool) {
	data, mimeType, err := f.fetchBytes(ctx, imageURL)
	if err != nil {
		f.logger.Warn("vision candidate download failed, skipping", "image_url", imageURL, "error", err)
		return nil, false
	}
	return f.classifyBytes(ctx, imageURL, data, mimeType)
}

// ClassifyFile classifies an already-downloaded image from disk. Used when
// the download-first policy is active.
func (f *Filter) ClassifyFile(ctx context.Context, path, contentType string) (*models.VisionVerdict, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		f.logger.Warn("vision candidate read failed, skipping", "path", path, "error", err)
		return nil, false
	}
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	return f.classifyBytes(ctx, path, data, contentType)
}

func (f *Filter) classifyBytes(ctx context.Context, ref string, data []byte, mimeType string) (*models.VisionVerdict, bool) {
	raw, err := f.llm.ClassifyImage(ctx, data, mimeType, classificationPrompt)
	if err != nil {
		f.logger.Warn("vision classification failed, skipping", "image", ref, "error", err)
		return nil, false
	}

	var verdict models.VisionVerdict
	if err := gemini.UnmarshalResponse(raw, &verdict); err != nil {
		f.logger.Warn("vision verdict unparsable, skipping", "image", ref, "error", err)
		return nil, false
	}

	admit := verdict.IsRelevant && !f.rejectTypes[verdict.Type]
	if !admit {
		f.logger.Info("vision filter rejected image",
			"image", ref,
			"type", verdict.Type,
			"relevant", verdict.IsRelevant,
		)
	}
	return &verdict, admit
}

// fetchBytes downloads candidate bytes with a bounded size and timeout.
func (f *Filter) fetchBytes(ctx context.Context, imageURL string) ([]byte, string, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("User-Agent", browserUserAgent)
	req.Header.Set("Accept", imageAccept)
	if origin := originOf(imageURL); origin != "" {
		req.Header.Set("Referer", origin)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("HTTP error: %s", resp.Status)
	}
	if resp.ContentLength > f.maxBytes {
		return nil, "", fmt.Errorf("image too large: %d bytes", resp.ContentLength)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("read image body: %w", err)
	}
	if int64(len(data)) > f.maxBytes {
		return nil, "", fmt.Errorf("image exceeds %d bytes", f.maxBytes)
	}

	mimeType := resp.Header.Get("Content-Type")
	if idx := strings.Index(mimeType, ";"); idx >= 0 {
		mimeType = mimeType[:idx]
	}
	mimeType = strings.TrimSpace(mimeType)
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}
	return data, mimeType, nil
}

// originOf returns the scheme://host/ origin of a URL, the usual Referer a
// browser would send for an image embedded on the same site.
func originOf(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return ""
	}
	return parsed.Scheme + "://" + parsed.Host + "/"
}
