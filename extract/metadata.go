package extract

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/diegosardonpro/runa-curator/gemini"
	"github.com/diegosardonpro/runa-curator/models"
)

// maxMarkupBytes bounds how much rendered markup is embedded in the prompt.
// Pages past this size get truncated; the main article body of every site in
// the backlog fits comfortably.
const maxMarkupBytes = 200_000

// metadataPromptTemplate is the production extraction contract. The model
// must answer with a single JSON object using these exact keys; see
// models.ArticleMetadata.
const metadataPromptTemplate = `Actúa como un curador de activos digitales experto para el proyecto Runa. Analiza el contenido del siguiente artículo y devuelve un único objeto JSON. La respuesta debe ser solo el JSON, sin texto introductorio, explicaciones, ni markdown.

URL del artículo: %s

La estructura del JSON debe ser la siguiente:
{
  "titulo": "(El título principal del artículo)",
  "resumen": "(Un resumen conciso y bien redactado del contenido en un solo párrafo)",
  "contenido_html": "(El texto completo del artículo, formateado en párrafos HTML. Cada párrafo debe estar envuelto en etiquetas <p>)",
  "tags": "(Una cadena de 5 a 7 palabras clave relevantes, separadas por comas)",
  "urls_imagenes": ["(Las URLs completas y directas de las imágenes relevantes del artículo, en orden de aparición. Si no hay ninguna, devuelve una lista vacía)"]
}

Contenido HTML renderizado de la página:
%s`

// TextCompleter is the slice of the LLM client the metadata extractor needs.
type TextCompleter interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// MetadataExtractor asks the text model for structured article metadata.
type MetadataExtractor struct {
	llm    TextCompleter
	logger *slog.Logger
}

// NewMetadataExtractor wires the LLM client.
func NewMetadataExtractor(llm TextCompleter, logger *slog.Logger) *MetadataExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &MetadataExtractor{llm: llm, logger: logger}
}

// Extract sends the page to the text model and parses the metadata contract.
// A malformed or empty response is an error; the orchestrator treats it as
// fatal for the URL. There are no retries here beyond the client's own model
// fallback.
func (m *MetadataExtractor) Extract(ctx context.Context, pageURL, pageHTML string) (*models.ArticleMetadata, error) {
	markup := pageHTML
	if len(markup) > maxMarkupBytes {
		markup = markup[:maxMarkupBytes]
	}

	raw, err := m.llm.Complete(ctx, fmt.Sprintf(metadataPromptTemplate, pageURL, markup))
	if err != nil {
		return nil, fmt.Errorf("metadata completion: %w", err)
	}

	var meta models.ArticleMetadata
	if err := gemini.UnmarshalResponse(raw, &meta); err != nil {
		return nil, fmt.Errorf("parse metadata response: %w", err)
	}

	if strings.TrimSpace(meta.Title) == "" {
		return nil, fmt.Errorf("metadata response missing title")
	}

	m.logger.Info("article metadata extracted",
		"url", pageURL,
		"title", meta.Title,
		"model_image_urls", len(meta.ImageURLs),
	)
	return &meta, nil
}
