package db

// postgresMigrations contains all PostgreSQL migrations for the curation
// catalog, in order.
var postgresMigrations = []Migration{
	{
		Version: 1,
		Name:    "create_curation_tables",
		Up: `
			CREATE TABLE IF NOT EXISTS source_urls (
				id SERIAL PRIMARY KEY,
				url TEXT NOT NULL UNIQUE,
				status TEXT NOT NULL DEFAULT 'pending',
				last_error TEXT,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			);
			CREATE INDEX IF NOT EXISTS idx_source_urls_status ON source_urls(status);

			CREATE TABLE IF NOT EXISTS curated_assets (
				id SERIAL PRIMARY KEY,
				source_url_id INTEGER NOT NULL REFERENCES source_urls(id),
				asset_type TEXT NOT NULL,
				original_url TEXT NOT NULL,
				title TEXT,
				summary TEXT,
				html_content TEXT,
				tags TEXT,
				curation_status TEXT NOT NULL DEFAULT 'pending',
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			);
			CREATE INDEX IF NOT EXISTS idx_curated_assets_source_url ON curated_assets(source_url_id);
			CREATE INDEX IF NOT EXISTS idx_curated_assets_status ON curated_assets(curation_status);

			CREATE TABLE IF NOT EXISTS curated_images (
				id SERIAL PRIMARY KEY,
				asset_id INTEGER NOT NULL REFERENCES curated_assets(id) ON DELETE CASCADE,
				original_image_url TEXT NOT NULL,
				local_path TEXT,
				storage_url TEXT,
				ai_description TEXT,
				ai_tags JSONB,
				appearance_order INTEGER NOT NULL DEFAULT 0,
				width INTEGER,
				height INTEGER,
				exif_data JSONB,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			);
			CREATE INDEX IF NOT EXISTS idx_curated_images_asset ON curated_images(asset_id);

			CREATE TABLE IF NOT EXISTS execution_runs (
				run_id TEXT PRIMARY KEY,
				started_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				ended_at TIMESTAMPTZ,
				outcome TEXT,
				processed_count INTEGER NOT NULL DEFAULT 0,
				summary TEXT
			);
		`,
		Down: `
			DROP TABLE IF EXISTS execution_runs;
			DROP TABLE IF EXISTS curated_images;
			DROP TABLE IF EXISTS curated_assets;
			DROP TABLE IF EXISTS source_urls;
		`,
	},
}
