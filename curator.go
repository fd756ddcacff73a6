// Package curator orchestrates the content curation pipeline: it drains the
// pending URL backlog, renders each page, extracts article metadata and image
// candidates with the LLM, filters and downloads images, publishes them to
// object storage, and records everything in the catalog.
//
// Failure handling follows a strict taxonomy. An individual image failing is
// local: the image row documents the attempt and the asset continues. Any
// step before or during metadata persistence failing is fatal for that URL:
// it is marked with the error and the run moves on. Only catalog writes
// failing abort the whole run.
package curator

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/diegosardonpro/runa-curator/extract"
	"github.com/diegosardonpro/runa-curator/fetch"
	"github.com/diegosardonpro/runa-curator/metrics"
	"github.com/diegosardonpro/runa-curator/models"
	"github.com/diegosardonpro/runa-curator/slug"
	"github.com/diegosardonpro/runa-curator/storage"
)

// Store is the catalog surface the orchestrator writes through.
type Store interface {
	ListPendingURLs(limit int) ([]models.SourceURL, error)
	SetURLStatus(id int64, status string) error
	SetURLError(id int64, cause string) error
	InsertAsset(asset *models.CuratedAsset) (int64, error)
	UpdateAssetMetadata(assetID int64, meta *models.ArticleMetadata) error
	SetAssetStatus(assetID int64, status string) error
	InsertImage(img *models.CuratedImage) (int64, error)
	RecordRunStart(run *models.ExecutionRun) error
	RecordRunEnd(run *models.ExecutionRun) error
}

// Renderer produces fully executed page markup.
type Renderer interface {
	Render(ctx context.Context, pageURL string) (string, error)
}

// MetadataExtractor turns rendered markup into article metadata.
type MetadataExtractor interface {
	Extract(ctx context.Context, pageURL, pageHTML string) (*models.ArticleMetadata, error)
}

// VisionFilter decides whether an image candidate is worth keeping. Both
// methods report a skip as a false admission, never as an error.
type VisionFilter interface {
	Classify(ctx context.Context, imageURL string) (*models.VisionVerdict, bool)
	ClassifyFile(ctx context.Context, path, contentType string) (*models.VisionVerdict, bool)
}

// ImageFetcher downloads one admitted candidate to local disk.
type ImageFetcher interface {
	Fetch(ctx context.Context, req fetch.Request) (*fetch.Result, error)
}

// Publisher pushes a local image to object storage. A nil Publisher in Deps
// leaves storage URLs empty; images stay on local disk.
type Publisher interface {
	Upload(ctx context.Context, localPath, key, contentType string) (string, error)
}

// Config tunes a Curator.
type Config struct {
	BatchSize            int  // max URLs per run; 0 drains the whole backlog
	MaxImagesPerAsset    int  // max image rows per asset; 0 is unlimited
	FilterBeforeDownload bool // classify candidates before downloading them
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		BatchSize:            10,
		MaxImagesPerAsset:    10,
		FilterBeforeDownload: true,
	}
}

// Deps carries the pipeline's collaborators.
type Deps struct {
	Store     Store
	Renderer  Renderer
	Metadata  MetadataExtractor
	Vision    VisionFilter
	Fetcher   ImageFetcher
	Publisher Publisher // optional
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
}

// Curator runs the pipeline.
type Curator struct {
	cfg     Config
	store   Store
	render  Renderer
	meta    MetadataExtractor
	vision  VisionFilter
	fetcher ImageFetcher
	pub     Publisher
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// New builds a Curator. Store, Renderer, Metadata, Vision and Fetcher are
// required.
func New(cfg Config, deps Deps) (*Curator, error) {
	if deps.Store == nil {
		return nil, fmt.Errorf("curator: Store is required")
	}
	if deps.Renderer == nil {
		return nil, fmt.Errorf("curator: Renderer is required")
	}
	if deps.Metadata == nil {
		return nil, fmt.Errorf("curator: Metadata extractor is required")
	}
	if deps.Vision == nil {
		return nil, fmt.Errorf("curator: Vision filter is required")
	}
	if deps.Fetcher == nil {
		return nil, fmt.Errorf("curator: Fetcher is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Curator{
		cfg:     cfg,
		store:   deps.Store,
		render:  deps.Renderer,
		meta:    deps.Metadata,
		vision:  deps.Vision,
		fetcher: deps.Fetcher,
		pub:     deps.Publisher,
		metrics: deps.Metrics,
		logger:  logger.With("component", "curator"),
	}, nil
}

// Run drains up to BatchSize pending URLs and returns the audit record. The
// returned error is non-nil only for batch-fatal conditions (catalog writes
// failing or the context being cancelled); per-URL failures are reflected in
// the run outcome instead.
func (c *Curator) Run(ctx context.Context) (*models.ExecutionRun, error) {
	run := &models.ExecutionRun{
		RunID:     uuid.NewString(),
		StartedAt: time.Now().UTC(),
	}
	if err := c.store.RecordRunStart(run); err != nil {
		return nil, fmt.Errorf("record run start: %w", err)
	}

	urls, err := c.store.ListPendingURLs(c.cfg.BatchSize)
	if err != nil {
		return nil, c.finishRun(run, 0, 0, fmt.Errorf("list pending urls: %w", err))
	}

	c.logger.Info("run started", "run_id", run.RunID, "pending_urls", len(urls))

	completed := 0
	for i, u := range urls {
		if err := ctx.Err(); err != nil {
			return run, c.finishRun(run, i, completed, err)
		}
		ok, err := c.processURL(ctx, u)
		if err != nil {
			return run, c.finishRun(run, i, completed, err)
		}
		if ok {
			completed++
		}
	}

	return run, c.finishRun(run, len(urls), completed, nil)
}

// finishRun writes the audit tail and records run metrics. The fatal error,
// if any, is folded into the outcome and returned for the caller.
func (c *Curator) finishRun(run *models.ExecutionRun, processed, completed int, fatal error) error {
	run.EndedAt = time.Now().UTC()
	run.ProcessedCount = processed
	run.Summary = fmt.Sprintf("%d of %d URLs curated successfully", completed, processed)

	switch {
	case fatal != nil:
		run.Outcome = models.RunOutcomeFailed
		run.Summary = fmt.Sprintf("%s; aborted: %v", run.Summary, fatal)
	case completed == processed:
		run.Outcome = models.RunOutcomeSuccess
	default:
		run.Outcome = models.RunOutcomePartial
	}

	c.metrics.RunCompleted(run.EndedAt.Sub(run.StartedAt))
	c.logger.Info("run finished",
		"run_id", run.RunID,
		"outcome", run.Outcome,
		"summary", run.Summary,
	)

	if err := c.store.RecordRunEnd(run); err != nil {
		if fatal != nil {
			return fatal
		}
		return fmt.Errorf("record run end: %w", err)
	}
	return fatal
}

// processURL curates one URL to a terminal status. The bool reports whether
// it completed; the error is non-nil only when the catalog itself is broken.
func (c *Curator) processURL(ctx context.Context, source models.SourceURL) (bool, error) {
	logger := c.logger.With("url", source.URL, "url_id", source.ID)

	if err := c.store.SetURLStatus(source.ID, models.URLStatusInProgress); err != nil {
		return false, fmt.Errorf("mark url in progress: %w", err)
	}

	assetType := extract.ClassifyURL(source.URL)

	if assetType != models.AssetTypeArticle {
		logger.Info("url unsupported", "asset_type", assetType)
		// The asset row documents the classification but is born terminal;
		// nothing will ever curate it.
		_, err := c.store.InsertAsset(&models.CuratedAsset{
			SourceURLID:    source.ID,
			AssetType:      assetType,
			OriginalURL:    source.URL,
			CurationStatus: models.AssetStatusFailed,
		})
		if err != nil {
			return false, fmt.Errorf("insert unsupported asset: %w", err)
		}
		if err := c.store.SetURLStatus(source.ID, models.URLStatusUnsupported); err != nil {
			return false, fmt.Errorf("mark url unsupported: %w", err)
		}
		c.metrics.URLProcessed(models.URLStatusUnsupported)
		return false, nil
	}

	assetID, err := c.store.InsertAsset(&models.CuratedAsset{
		SourceURLID:    source.ID,
		AssetType:      assetType,
		OriginalURL:    source.URL,
		CurationStatus: models.AssetStatusPending,
	})
	if err != nil {
		return false, fmt.Errorf("insert asset: %w", err)
	}

	// fail marks the URL and asset failed with the cause. Catalog write
	// errors escalate to batch-fatal.
	fail := func(cause error) (bool, error) {
		logger.Error("url curation failed", "error", cause)
		if err := c.store.SetURLError(source.ID, cause.Error()); err != nil {
			return false, fmt.Errorf("record url error: %w", err)
		}
		if err := c.store.SetAssetStatus(assetID, models.AssetStatusFailed); err != nil {
			return false, fmt.Errorf("mark asset failed: %w", err)
		}
		c.metrics.URLProcessed(models.URLStatusError)
		return false, nil
	}

	renderStart := time.Now()
	pageHTML, err := c.render.Render(ctx, source.URL)
	if err != nil {
		return fail(fmt.Errorf("render: %w", err))
	}
	c.metrics.RenderCompleted(time.Since(renderStart))

	meta, err := c.meta.Extract(ctx, source.URL, pageHTML)
	if err != nil {
		return fail(fmt.Errorf("extract metadata: %w", err))
	}
	if err := c.store.UpdateAssetMetadata(assetID, meta); err != nil {
		return false, fmt.Errorf("persist metadata: %w", err)
	}

	base, err := url.Parse(source.URL)
	if err != nil {
		return fail(fmt.Errorf("parse url: %w", err))
	}

	mined, err := extract.ExtractImageCandidates(pageHTML, base)
	if err != nil {
		return fail(fmt.Errorf("extract image candidates: %w", err))
	}
	candidates := extract.MergeCandidates(base, meta.ImageURLs, mined)
	logger.Info("image candidates discovered", "count", len(candidates))

	if err := c.processImages(ctx, logger, assetID, meta.Title, base, pageHTML, candidates); err != nil {
		return false, err
	}

	if err := c.store.SetAssetStatus(assetID, models.AssetStatusCompleted); err != nil {
		return false, fmt.Errorf("mark asset completed: %w", err)
	}
	if err := c.store.SetURLStatus(source.ID, models.URLStatusCompleted); err != nil {
		return false, fmt.Errorf("mark url completed: %w", err)
	}
	c.metrics.URLProcessed(models.URLStatusCompleted)
	logger.Info("url curated", "asset_id", assetID, "title", meta.Title)
	return true, nil
}

// processImages runs the per-candidate sub-pipeline. Nothing here fails the
// asset; every candidate either becomes a row, is rejected, or is skipped.
// The returned error is batch-fatal only (catalog writes or cancellation).
func (c *Curator) processImages(ctx context.Context, logger *slog.Logger, assetID int64, title string, base *url.URL, pageHTML string, candidates []string) error {
	assetSlug := slug.GenerateWithFallback(title, base.Host)
	order := 0

	for _, candidate := range candidates {
		if c.cfg.MaxImagesPerAsset > 0 && order >= c.cfg.MaxImagesPerAsset {
			logger.Info("image cap reached", "cap", c.cfg.MaxImagesPerAsset)
			break
		}
		// A cancelled run must not fall through and mark the URL completed
		// with candidates never attempted.
		if err := ctx.Err(); err != nil {
			return err
		}

		inserted, err := c.processImage(ctx, logger, assetID, assetSlug, base, pageHTML, candidate, order)
		if err != nil {
			return err
		}
		if inserted {
			order++
		}
	}
	return nil
}

// processImage handles one candidate. The bool reports whether a row was
// inserted, which is what advances the appearance order.
func (c *Curator) processImage(ctx context.Context, logger *slog.Logger, assetID int64, assetSlug string, base *url.URL, pageHTML, candidate string, order int) (bool, error) {
	row := models.CuratedImage{
		AssetID:          assetID,
		OriginalImageURL: candidate,
		AppearanceOrder:  order,
	}

	var verdict *models.VisionVerdict
	if c.cfg.FilterBeforeDownload {
		v, admit := c.vision.Classify(ctx, candidate)
		if !admit {
			c.metrics.ImageRejected()
			return false, nil
		}
		verdict = v
		c.metrics.ImageAdmitted()
	}

	result, err := c.fetcher.Fetch(ctx, fetch.Request{
		ImageURL: candidate,
		PageURL:  base,
		PageHTML: pageHTML,
		AssetID:  assetID,
		Order:    order,
	})
	if err != nil {
		if !c.cfg.FilterBeforeDownload {
			// Nothing was classified and nothing was stored; skip quietly.
			logger.Warn("image download failed, skipping", "image_url", candidate, "error", err)
			return false, nil
		}
		// Admitted but undownloadable: the row documents the attempt.
		logger.Warn("admitted image failed to download", "image_url", candidate, "error", err)
		c.metrics.ImageFailure()
		applyVerdict(&row, verdict)
		if _, err := c.store.InsertImage(&row); err != nil {
			return false, fmt.Errorf("insert failed image row: %w", err)
		}
		return true, nil
	}

	if verdict == nil {
		v, admit := c.vision.ClassifyFile(ctx, result.LocalPath, result.ContentType)
		if !admit {
			c.metrics.ImageRejected()
			// Rejected after download; the local file has no further use.
			if err := os.Remove(result.LocalPath); err != nil {
				logger.Warn("failed to remove rejected image", "path", result.LocalPath, "error", err)
			}
			return false, nil
		}
		verdict = v
		c.metrics.ImageAdmitted()
	}

	row.LocalPath = result.LocalPath
	row.Width = result.Width
	row.Height = result.Height
	row.EXIF = result.EXIF
	applyVerdict(&row, verdict)

	if c.pub != nil {
		key := storage.ImageKey(assetSlug, assetID, order, filepath.Ext(result.LocalPath))
		publicURL, err := c.pub.Upload(ctx, result.LocalPath, key, result.ContentType)
		if err != nil {
			// Upload failure is local too: keep the row with the local path
			// so a later pass can retry the publish.
			logger.Warn("image upload failed", "image_url", candidate, "error", err)
			c.metrics.ImageFailure()
		} else {
			row.StorageURL = publicURL
		}
	}

	if _, err := c.store.InsertImage(&row); err != nil {
		return false, fmt.Errorf("insert image row: %w", err)
	}
	return true, nil
}

func applyVerdict(row *models.CuratedImage, verdict *models.VisionVerdict) {
	if verdict == nil {
		return
	}
	row.AIDescription = verdict.Description
	row.AITags = verdict.Tags
}
