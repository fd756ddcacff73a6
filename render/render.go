// Package render drives a headless browser to produce fully executed page
// markup. Articles in the backlog lean heavily on client-side templating and
// lazy loading; raw HTTP bodies miss most of their content and images.
package render

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/chromedp/chromedp"
)

// Config contains renderer configuration.
type Config struct {
	Timeout     time.Duration // hard cap per page; default 90s
	SettleDelay time.Duration // wait after load for late scripts; default 5s
	Scroll      bool          // sweep the page to trigger lazy loaders; default on via DefaultConfig
	ScrollSteps int           // number of viewport-height increments; default 8
}

// DefaultConfig returns production rendering defaults.
func DefaultConfig() Config {
	return Config{
		Timeout:     90 * time.Second,
		SettleDelay: 5 * time.Second,
		Scroll:      true,
		ScrollSteps: 8,
	}
}

// Renderer renders pages in headless Chrome. A fresh browser context is
// created per page so one hung site cannot poison the next.
type Renderer struct {
	cfg    Config
	logger *slog.Logger
}

// NewRenderer builds a renderer.
func NewRenderer(cfg Config, logger *slog.Logger) *Renderer {
	if cfg.Timeout == 0 {
		cfg.Timeout = 90 * time.Second
	}
	if cfg.SettleDelay == 0 {
		cfg.SettleDelay = 5 * time.Second
	}
	if cfg.ScrollSteps == 0 {
		cfg.ScrollSteps = 8
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Renderer{cfg: cfg, logger: logger}
}

// Render navigates to pageURL, lets scripts settle, optionally sweeps the
// page to fire lazy loaders, and returns the resulting outer HTML.
func (r *Renderer) Render(ctx context.Context, pageURL string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, chromedp.DefaultExecAllocatorOptions[:]...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	start := time.Now()
	actions := []chromedp.Action{
		chromedp.Navigate(pageURL),
		chromedp.Sleep(r.cfg.SettleDelay),
	}
	if r.cfg.Scroll {
		actions = append(actions, r.scrollSweep())
	}

	var html string
	actions = append(actions, chromedp.OuterHTML("html", &html))

	if err := chromedp.Run(browserCtx, actions...); err != nil {
		return "", fmt.Errorf("render %s: %w", pageURL, err)
	}

	r.logger.Info("page rendered",
		"url", pageURL,
		"bytes", len(html),
		"duration", time.Since(start).Round(time.Millisecond),
	)
	return html, nil
}

// scrollSweep scrolls down the page in viewport-height steps with short
// pauses so lazy-loading observers fire, then returns to the top.
func (r *Renderer) scrollSweep() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		for i := 0; i < r.cfg.ScrollSteps; i++ {
			err := chromedp.Run(ctx,
				chromedp.Evaluate(`window.scrollBy(0, window.innerHeight)`, nil),
				chromedp.Sleep(500*time.Millisecond),
			)
			if err != nil {
				return err
			}
		}
		return chromedp.Run(ctx,
			chromedp.Evaluate(`window.scrollTo(0, 0)`, nil),
			chromedp.Sleep(time.Second),
		)
	})
}
