package db

import (
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/diegosardonpro/runa-curator/models"
)

// setupTestDB connects to the database named by TEST_DATABASE_URL and
// migrates it. Tests are skipped when the variable is unset so the suite
// stays runnable without PostgreSQL.
func setupTestDB(t *testing.T) *DB {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	store, err := New(Config{DSN: dsn})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	if err := store.Setup(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if err := store.ResetBacklog(); err != nil {
		t.Fatalf("reset: %v", err)
	}
	return store
}

func TestURLLifecycle(t *testing.T) {
	store := setupTestDB(t)

	url := "https://example.com/articulo-" + uuid.NewString()
	isNew, err := store.AddURL(url)
	if err != nil {
		t.Fatalf("AddURL() error = %v", err)
	}
	if !isNew {
		t.Error("AddURL() new = false for a fresh url")
	}

	// Re-adding is a no-op.
	isNew, err = store.AddURL(url)
	if err != nil {
		t.Fatalf("AddURL() second call error = %v", err)
	}
	if isNew {
		t.Error("AddURL() new = true for a known url")
	}

	pending, err := store.ListPendingURLs(0)
	if err != nil {
		t.Fatalf("ListPendingURLs() error = %v", err)
	}
	var found *models.SourceURL
	for i := range pending {
		if pending[i].URL == url {
			found = &pending[i]
		}
	}
	if found == nil {
		t.Fatalf("url %q not in pending list", url)
	}

	if err := store.SetURLError(found.ID, "render timeout"); err != nil {
		t.Fatalf("SetURLError() error = %v", err)
	}
	pending, err = store.ListPendingURLs(0)
	if err != nil {
		t.Fatal(err)
	}
	for _, u := range pending {
		if u.ID == found.ID {
			t.Error("errored url still listed as pending")
		}
	}
}

func TestAssetAndImagePersistence(t *testing.T) {
	store := setupTestDB(t)

	url := "https://example.com/articulo-" + uuid.NewString()
	if _, err := store.AddURL(url); err != nil {
		t.Fatal(err)
	}
	pending, err := store.ListPendingURLs(1)
	if err != nil || len(pending) == 0 {
		t.Fatalf("ListPendingURLs() = %v, %v", pending, err)
	}
	source := pending[0]

	assetID, err := store.InsertAsset(&models.CuratedAsset{
		SourceURLID:    source.ID,
		AssetType:      models.AssetTypeArticle,
		OriginalURL:    source.URL,
		CurationStatus: models.AssetStatusPending,
	})
	if err != nil {
		t.Fatalf("InsertAsset() error = %v", err)
	}

	err = store.UpdateAssetMetadata(assetID, &models.ArticleMetadata{
		Title:       "Tejidos de Taquile",
		Summary:     "resumen",
		HTMLContent: "<p>texto</p>",
		Tags:        "textil, puno",
	})
	if err != nil {
		t.Fatalf("UpdateAssetMetadata() error = %v", err)
	}

	// One full image, one failed attempt with empty paths.
	_, err = store.InsertImage(&models.CuratedImage{
		AssetID:          assetID,
		OriginalImageURL: "https://example.com/img/a.jpg",
		LocalPath:        "/tmp/1_0.jpg",
		StorageURL:       "https://cdn.example.com/images/t/1_0.jpg",
		AIDescription:    "tejedora en telar",
		AITags:           []string{"telar", "textil"},
		AppearanceOrder:  0,
		Width:            800,
		Height:           600,
		EXIF:             &models.EXIFData{Make: "Canon"},
	})
	if err != nil {
		t.Fatalf("InsertImage() error = %v", err)
	}
	_, err = store.InsertImage(&models.CuratedImage{
		AssetID:          assetID,
		OriginalImageURL: "https://example.com/img/b.jpg",
		AppearanceOrder:  1,
	})
	if err != nil {
		t.Fatalf("InsertImage() failed-attempt row error = %v", err)
	}

	images, err := store.ListImagesByAsset(assetID)
	if err != nil {
		t.Fatalf("ListImagesByAsset() error = %v", err)
	}
	if len(images) != 2 {
		t.Fatalf("got %d images, want 2", len(images))
	}
	first := images[0]
	if len(first.AITags) != 2 || first.EXIF == nil || first.EXIF.Make != "Canon" {
		t.Errorf("first image = %+v, want tags and exif round-tripped", first)
	}
	second := images[1]
	if second.LocalPath != "" || second.StorageURL != "" {
		t.Errorf("failed attempt = %+v, want empty paths", second)
	}
}

func TestRunAuditRecord(t *testing.T) {
	store := setupTestDB(t)

	run := &models.ExecutionRun{
		RunID:     uuid.NewString(),
		StartedAt: time.Now().UTC().Truncate(time.Second),
	}
	if err := store.RecordRunStart(run); err != nil {
		t.Fatalf("RecordRunStart() error = %v", err)
	}

	run.EndedAt = run.StartedAt.Add(42 * time.Second)
	run.Outcome = models.RunOutcomePartial
	run.ProcessedCount = 2
	run.Summary = "1 of 2 URLs curated successfully"
	if err := store.RecordRunEnd(run); err != nil {
		t.Fatalf("RecordRunEnd() error = %v", err)
	}
}
