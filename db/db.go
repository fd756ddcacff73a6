// Package db persists the curation catalog in PostgreSQL: the URL backlog,
// curated assets and their images, and per-run audit records.
package db

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/diegosardonpro/runa-curator/models"
)

// DB wraps the database connection and provides data access methods
type DB struct {
	conn *sql.DB
}

// Config contains database configuration
type Config struct {
	DSN string // PostgreSQL connection string
}

// New creates a new database connection. It does not migrate; schema setup
// is an explicit operator action (see the -setup-schema flag).
func New(config Config) (*DB, error) {
	conn, err := sql.Open("postgres", config.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test connection
	if err := conn.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Configure connection pool
	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	return &DB{conn: conn}, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// DB returns the underlying database connection for metrics collection
func (db *DB) DB() *sql.DB {
	return db.conn
}

// Setup runs all pending schema migrations.
func (db *DB) Setup() error {
	return Migrate(db.conn)
}

// AddURL registers a URL in the backlog as pending. Re-adding a known URL is
// a no-op; the returned bool reports whether a new row was inserted.
func (db *DB) AddURL(url string) (bool, error) {
	res, err := db.conn.Exec(`
		INSERT INTO source_urls (url, status)
		VALUES ($1, $2)
		ON CONFLICT (url) DO NOTHING
	`, url, models.URLStatusPending)
	if err != nil {
		return false, fmt.Errorf("failed to add url: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n > 0, nil
}

// ListPendingURLs returns up to limit pending URLs in insertion order. A
// limit of zero means no limit.
func (db *DB) ListPendingURLs(limit int) ([]models.SourceURL, error) {
	query := `
		SELECT id, url, status, COALESCE(last_error, ''), created_at, updated_at
		FROM source_urls
		WHERE status = $1
		ORDER BY id
	`
	args := []any{models.URLStatusPending}
	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending urls: %w", err)
	}
	defer rows.Close()

	var urls []models.SourceURL
	for rows.Next() {
		var u models.SourceURL
		if err := rows.Scan(&u.ID, &u.URL, &u.Status, &u.LastError, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan url row: %w", err)
		}
		urls = append(urls, u)
	}
	return urls, rows.Err()
}

// SetURLStatus moves a URL to a new status, clearing any previous error.
func (db *DB) SetURLStatus(id int64, status string) error {
	_, err := db.conn.Exec(`
		UPDATE source_urls
		SET status = $1, last_error = NULL, updated_at = NOW()
		WHERE id = $2
	`, status, id)
	if err != nil {
		return fmt.Errorf("failed to set url status: %w", err)
	}
	return nil
}

// SetURLError marks a URL as failed and records the cause.
func (db *DB) SetURLError(id int64, cause string) error {
	_, err := db.conn.Exec(`
		UPDATE source_urls
		SET status = $1, last_error = $2, updated_at = NOW()
		WHERE id = $3
	`, models.URLStatusError, cause, id)
	if err != nil {
		return fmt.Errorf("failed to set url error: %w", err)
	}
	return nil
}

// InsertAsset creates the asset row for a URL being processed and returns its
// generated ID.
func (db *DB) InsertAsset(asset *models.CuratedAsset) (int64, error) {
	var id int64
	err := db.conn.QueryRow(`
		INSERT INTO curated_assets (source_url_id, asset_type, original_url, curation_status)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, asset.SourceURLID, asset.AssetType, asset.OriginalURL, asset.CurationStatus).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert asset: %w", err)
	}
	return id, nil
}

// UpdateAssetMetadata stores the extracted article metadata on an asset.
func (db *DB) UpdateAssetMetadata(assetID int64, meta *models.ArticleMetadata) error {
	_, err := db.conn.Exec(`
		UPDATE curated_assets
		SET title = $1, summary = $2, html_content = $3, tags = $4
		WHERE id = $5
	`, meta.Title, meta.Summary, meta.HTMLContent, meta.Tags, assetID)
	if err != nil {
		return fmt.Errorf("failed to update asset metadata: %w", err)
	}
	return nil
}

// SetAssetStatus updates an asset's curation status.
func (db *DB) SetAssetStatus(assetID int64, status string) error {
	_, err := db.conn.Exec(`
		UPDATE curated_assets SET curation_status = $1 WHERE id = $2
	`, status, assetID)
	if err != nil {
		return fmt.Errorf("failed to set asset status: %w", err)
	}
	return nil
}

// InsertImage records one image outcome for an asset. Empty LocalPath or
// StorageURL are stored as NULL; a row with both NULL documents an attempted
// image that failed locally.
func (db *DB) InsertImage(img *models.CuratedImage) (int64, error) {
	var tagsJSON []byte
	if len(img.AITags) > 0 {
		var err error
		tagsJSON, err = json.Marshal(img.AITags)
		if err != nil {
			return 0, fmt.Errorf("failed to marshal image tags: %w", err)
		}
	}

	var exifJSON []byte
	if img.EXIF != nil {
		var err error
		exifJSON, err = json.Marshal(img.EXIF)
		if err != nil {
			return 0, fmt.Errorf("failed to marshal exif data: %w", err)
		}
	}

	var id int64
	err := db.conn.QueryRow(`
		INSERT INTO curated_images (
			asset_id, original_image_url, local_path, storage_url,
			ai_description, ai_tags, appearance_order, width, height, exif_data
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`,
		img.AssetID,
		img.OriginalImageURL,
		nullString(img.LocalPath),
		nullString(img.StorageURL),
		nullString(img.AIDescription),
		tagsJSON,
		img.AppearanceOrder,
		nullInt(img.Width),
		nullInt(img.Height),
		exifJSON,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert image: %w", err)
	}
	return id, nil
}

// ListImagesByAsset returns an asset's images in appearance order.
func (db *DB) ListImagesByAsset(assetID int64) ([]models.CuratedImage, error) {
	rows, err := db.conn.Query(`
		SELECT id, asset_id, original_image_url,
		       COALESCE(local_path, ''), COALESCE(storage_url, ''),
		       COALESCE(ai_description, ''), ai_tags,
		       appearance_order, COALESCE(width, 0), COALESCE(height, 0),
		       exif_data, created_at
		FROM curated_images
		WHERE asset_id = $1
		ORDER BY appearance_order
	`, assetID)
	if err != nil {
		return nil, fmt.Errorf("failed to list images: %w", err)
	}
	defer rows.Close()

	var images []models.CuratedImage
	for rows.Next() {
		var img models.CuratedImage
		var tagsJSON, exifJSON []byte
		err := rows.Scan(
			&img.ID, &img.AssetID, &img.OriginalImageURL,
			&img.LocalPath, &img.StorageURL,
			&img.AIDescription, &tagsJSON,
			&img.AppearanceOrder, &img.Width, &img.Height,
			&exifJSON, &img.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan image row: %w", err)
		}
		if len(tagsJSON) > 0 {
			if err := json.Unmarshal(tagsJSON, &img.AITags); err != nil {
				return nil, fmt.Errorf("failed to unmarshal image tags: %w", err)
			}
		}
		if len(exifJSON) > 0 {
			img.EXIF = &models.EXIFData{}
			if err := json.Unmarshal(exifJSON, img.EXIF); err != nil {
				return nil, fmt.Errorf("failed to unmarshal exif data: %w", err)
			}
		}
		images = append(images, img)
	}
	return images, rows.Err()
}

// RecordRunStart writes the audit row for a run beginning.
func (db *DB) RecordRunStart(run *models.ExecutionRun) error {
	_, err := db.conn.Exec(`
		INSERT INTO execution_runs (run_id, started_at)
		VALUES ($1, $2)
	`, run.RunID, run.StartedAt)
	if err != nil {
		return fmt.Errorf("failed to record run start: %w", err)
	}
	return nil
}

// RecordRunEnd finalizes a run's audit row.
func (db *DB) RecordRunEnd(run *models.ExecutionRun) error {
	_, err := db.conn.Exec(`
		UPDATE execution_runs
		SET ended_at = $1, outcome = $2, processed_count = $3, summary = $4
		WHERE run_id = $5
	`, run.EndedAt, run.Outcome, run.ProcessedCount, run.Summary, run.RunID)
	if err != nil {
		return fmt.Errorf("failed to record run end: %w", err)
	}
	return nil
}

// ResetBacklog deletes all curated output and returns every URL to pending.
// Destructive; only the explicit reset flag calls it.
func (db *DB) ResetBacklog() error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// curated_images rows cascade with their assets.
	if _, err := tx.Exec("DELETE FROM curated_assets"); err != nil {
		return fmt.Errorf("failed to delete assets: %w", err)
	}
	if _, err := tx.Exec(`
		UPDATE source_urls
		SET status = $1, last_error = NULL, updated_at = NOW()
	`, models.URLStatusPending); err != nil {
		return fmt.Errorf("failed to reset urls: %w", err)
	}

	return tx.Commit()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt(v int) sql.NullInt64 {
	return sql.NullInt64{Int64: int64(v), Valid: v != 0}
}
