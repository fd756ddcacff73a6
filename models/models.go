package models

import "time"

// SourceURL statuses. Within a single run a URL only ever moves
// pending -> in_progress -> {completed, error, unsupported}; going back to
// pending requires an external backlog reset.
const (
	URLStatusPending     = "pending"
	URLStatusInProgress  = "in_progress"
	URLStatusCompleted   = "completed"
	URLStatusError       = "error"
	URLStatusUnsupported = "unsupported"
)

// CuratedAsset curation statuses.
const (
	AssetStatusPending   = "pending"
	AssetStatusCompleted = "completed"
	AssetStatusFailed    = "failed"
)

// AssetTypeArticle is the only asset type the pipeline curates today. Other
// classifications (media, document, image) are registered but unsupported.
const (
	AssetTypeArticle  = "article"
	AssetTypeMedia    = "media"
	AssetTypeDocument = "document"
	AssetTypeImage    = "image"
)

// SourceURL is a discovered page waiting for (or finished with) curation.
type SourceURL struct {
	ID        int64     `json:"id"`
	URL       string    `json:"url"`
	Status    string    `json:"status"`
	LastError string    `json:"last_error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CuratedAsset is the curated output unit derived from one SourceURL.
type CuratedAsset struct {
	ID             int64     `json:"id"`
	SourceURLID    int64     `json:"source_url_id"`
	AssetType      string    `json:"asset_type"`
	OriginalURL    string    `json:"original_url"`
	Title          string    `json:"title,omitempty"`
	Summary        string    `json:"summary,omitempty"`
	HTMLContent    string    `json:"html_content,omitempty"`
	Tags           string    `json:"tags,omitempty"`
	CurationStatus string    `json:"curation_status"`
	CreatedAt      time.Time `json:"created_at"`
}

// CuratedImage records one admitted image candidate. A row exists only when
// the image passed the vision filter and a download was at least attempted;
// LocalPath and StorageURL stay empty on partial failure but the row itself
// documents the attempt.
type CuratedImage struct {
	ID               int64     `json:"id"`
	AssetID          int64     `json:"asset_id"`
	OriginalImageURL string    `json:"original_image_url"`
	LocalPath        string    `json:"local_path,omitempty"`
	StorageURL       string    `json:"storage_url,omitempty"`
	AIDescription    string    `json:"ai_description,omitempty"`
	AITags           []string  `json:"ai_tags,omitempty"`
	AppearanceOrder  int       `json:"appearance_order"`
	Width            int       `json:"width,omitempty"`
	Height           int       `json:"height,omitempty"`
	EXIF             *EXIFData `json:"exif,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// EXIFData is the subset of EXIF metadata kept from downloaded images.
type EXIFData struct {
	DateTimeOriginal string `json:"date_time_original,omitempty"`
	Make             string `json:"make,omitempty"`
	Model            string `json:"model,omitempty"`
}

// ExecutionRun is a write-once audit record per orchestrator invocation.
// The pipeline never reads it back.
type ExecutionRun struct {
	RunID          string    `json:"run_id"`
	StartedAt      time.Time `json:"started_at"`
	EndedAt        time.Time `json:"ended_at"`
	Outcome        string    `json:"outcome"`
	ProcessedCount int       `json:"processed_count"`
	Summary        string    `json:"summary"`
}

// ExecutionRun outcomes.
const (
	RunOutcomeSuccess = "success"
	RunOutcomePartial = "partial"
	RunOutcomeFailed  = "failed"
)

// ArticleMetadata is the JSON contract returned by the text model. The keys
// are the Spanish ones the production prompt has always used; changing them
// invalidates the prompt contract, not just this struct.
type ArticleMetadata struct {
	Title       string   `json:"titulo"`
	Summary     string   `json:"resumen"`
	HTMLContent string   `json:"contenido_html"`
	Tags        string   `json:"tags"`
	ImageURLs   []string `json:"urls_imagenes"`
}

// VisionVerdict is the JSON contract returned by the vision model for one
// image candidate. Same Spanish-key caveat as ArticleMetadata.
type VisionVerdict struct {
	Type        string   `json:"tipo"`
	IsRelevant  bool     `json:"es_relevante"`
	Description string   `json:"descripcion_ia"`
	Tags        []string `json:"tags_visuales_ia"`
}

// Vision verdict types that always reject a candidate regardless of the
// relevance flag.
const (
	VisionTypeMainPhoto  = "fotografia_principal"
	VisionTypeSupporting = "fotografia_secundaria"
	VisionTypeLogoBanner = "logo_o_banner"
	VisionTypeIrrelevant = "irrelevante"
)
