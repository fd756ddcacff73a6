package extract

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type fakeCompleter struct {
	response  string
	err       error
	gotPrompt string
}

func (f *fakeCompleter) Complete(_ context.Context, prompt string) (string, error) {
	f.gotPrompt = prompt
	return f.response, f.err
}

func TestMetadataExtract(t *testing.T) {
	llm := &fakeCompleter{response: "```json\n" + `{
		"titulo": "Tejidos de Taquile",
		"resumen": "Un recorrido por el arte textil de la isla.",
		"contenido_html": "<p>Texto del articulo.</p>",
		"tags": "textil, taquile, puno, artesania, cultura",
		"urls_imagenes": ["https://example.com/img/tejido.jpg"]
	}` + "\n```"}

	extractor := NewMetadataExtractor(llm, nil)
	meta, err := extractor.Extract(context.Background(), "https://example.com/articulo", "<html>...</html>")
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if meta.Title != "Tejidos de Taquile" {
		t.Errorf("Title = %q, want %q", meta.Title, "Tejidos de Taquile")
	}
	if len(meta.ImageURLs) != 1 {
		t.Errorf("ImageURLs = %v, want one entry", meta.ImageURLs)
	}
	if !strings.Contains(llm.gotPrompt, "https://example.com/articulo") {
		t.Error("prompt does not embed the article URL")
	}
	if !strings.Contains(llm.gotPrompt, "<html>...</html>") {
		t.Error("prompt does not embed the rendered markup")
	}
}

func TestMetadataExtractTruncatesMarkup(t *testing.T) {
	llm := &fakeCompleter{response: `{"titulo":"T","resumen":"","contenido_html":"","tags":"","urls_imagenes":[]}`}
	extractor := NewMetadataExtractor(llm, nil)

	huge := strings.Repeat("x", maxMarkupBytes+5000)
	if _, err := extractor.Extract(context.Background(), "https://example.com/a", huge); err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(llm.gotPrompt) > maxMarkupBytes+len(metadataPromptTemplate)+100 {
		t.Errorf("prompt length %d, want markup truncated to %d", len(llm.gotPrompt), maxMarkupBytes)
	}
}

func TestMetadataExtractMissingTitle(t *testing.T) {
	llm := &fakeCompleter{response: `{"titulo":"  ","resumen":"algo"}`}
	extractor := NewMetadataExtractor(llm, nil)

	if _, err := extractor.Extract(context.Background(), "https://example.com/a", "<html></html>"); err == nil {
		t.Fatal("Extract() error = nil, want missing-title error")
	}
}

func TestMetadataExtractMalformedResponse(t *testing.T) {
	llm := &fakeCompleter{response: "no puedo procesar esta pagina"}
	extractor := NewMetadataExtractor(llm, nil)

	if _, err := extractor.Extract(context.Background(), "https://example.com/a", "<html></html>"); err == nil {
		t.Fatal("Extract() error = nil, want parse error")
	}
}

func TestMetadataExtractCompleterError(t *testing.T) {
	llm := &fakeCompleter{err: errors.New("all models failed")}
	extractor := NewMetadataExtractor(llm, nil)

	if _, err := extractor.Extract(context.Background(), "https://example.com/a", "<html></html>"); err == nil {
		t.Fatal("Extract() error = nil, want completion error")
	}
}
