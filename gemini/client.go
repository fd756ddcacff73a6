// Package gemini is a minimal client for the Gemini generateContent REST API,
// covering the two calls the pipeline needs: text completion and image
// classification. Model selection is an explicit ordered list tried in
// sequence; every attempt is logged with its outcome.
package gemini

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// DefaultBaseURL is the public Gemini API endpoint.
const DefaultBaseURL = "https://generativelanguage.googleapis.com"

// DefaultModels is the production primary/fallback pair.
var DefaultModels = []string{"gemini-2.5-pro", "gemini-2.5-flash"}

// Config contains client configuration.
type Config struct {
	APIKey     string
	BaseURL    string        // defaults to DefaultBaseURL
	Models     []string      // ordered, first is primary; defaults to DefaultModels
	Timeout    time.Duration // per HTTP request; defaults to 60s
	OnFallback func()        // optional hook fired when a non-primary model answers
}

// Client calls the Gemini API.
type Client struct {
	apiKey     string
	baseURL    string
	models     []string
	httpClient *http.Client
	logger     *slog.Logger
	onFallback func()
}

// NewClient builds a client from configuration.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if len(cfg.Models) == 0 {
		cfg.Models = DefaultModels
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		models:  cfg.Models,
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger:     logger,
		onFallback: cfg.OnFallback,
	}
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inline_data,omitempty"`
}

type inlineData struct {
	MIMEType string `json:"mime_type"`
	Data     string `json:"data"` // base64
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Complete sends a text prompt and returns the raw model text. The configured
// models are tried in order; the first success wins.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	return c.generate(ctx, []part{{Text: prompt}})
}

// ClassifyImage sends image bytes plus a classification prompt to the vision
// models and returns the raw model text.
func (c *Client) ClassifyImage(ctx context.Context, data []byte, mimeType, prompt string) (string, error) {
	return c.generate(ctx, []part{
		{Text: prompt},
		{InlineData: &inlineData{
			MIMEType: mimeType,
			Data:     base64.StdEncoding.EncodeToString(data),
		}},
	})
}

func (c *Client) generate(ctx context.Context, parts []part) (string, error) {
	if c.apiKey == "" {
		return "", fmt.Errorf("gemini: API key not configured")
	}

	var lastErr error
	for i, model := range c.models {
		text, err := c.generateWithModel(ctx, model, parts)
		if err != nil {
			c.logger.Warn("model attempt failed", "model", model, "error", err)
			lastErr = err
			if ctx.Err() != nil {
				break
			}
			continue
		}
		c.logger.Debug("model attempt succeeded", "model", model)
		if i > 0 && c.onFallback != nil {
			c.onFallback()
		}
		return text, nil
	}
	return "", fmt.Errorf("gemini: all %d models failed: %w", len(c.models), lastErr)
}

func (c *Client) generateWithModel(ctx context.Context, model string, parts []part) (string, error) {
	body, err := json.Marshal(generateRequest{
		Contents: []content{{Parts: parts}},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent", c.baseURL, model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("call %s: %w", model, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("%s returned %s: %s", model, resp.Status, strings.TrimSpace(string(payload)))
	}

	var parsed generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode response from %s: %w", model, err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("%s error %d: %s", model, parsed.Error.Code, parsed.Error.Message)
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("%s returned no candidates", model)
	}

	return parsed.Candidates[0].Content.Parts[0].Text, nil
}
