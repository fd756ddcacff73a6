package extract

import (
	"fmt"
	"net/url"
	"strings"
	"testing"
)

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse %q: %v", raw, err)
	}
	return u
}

func TestExtractImageCandidatesFiltersChrome(t *testing.T) {
	// Ten images in document order, three of them page chrome.
	var b strings.Builder
	b.WriteString("<html><body><article>")
	b.WriteString(`<img src="/img/photo-1.jpg">`)
	b.WriteString(`<img src="/img/site-logo.png">`)
	b.WriteString(`<img src="/img/photo-2.jpg">`)
	b.WriteString(`<img src="/img/photo-3.jpg">`)
	b.WriteString(`<img src="/img/social-icon.png">`)
	b.WriteString(`<img src="/img/photo-4.jpg">`)
	b.WriteString(`<img src="/img/photo-5.jpg">`)
	b.WriteString(`<img src="/img/header-banner.jpg">`)
	b.WriteString(`<img src="/img/photo-6.jpg">`)
	b.WriteString(`<img src="/img/photo-7.jpg">`)
	b.WriteString("<p>")
	b.WriteString(strings.Repeat("texto del articulo ", 50))
	b.WriteString("</p></article></body></html>")

	base := mustParse(t, "https://example.com/articulo")
	got, err := ExtractImageCandidates(b.String(), base)
	if err != nil {
		t.Fatalf("ExtractImageCandidates() error = %v", err)
	}

	want := []string{
		"https://example.com/img/photo-1.jpg",
		"https://example.com/img/photo-2.jpg",
		"https://example.com/img/photo-3.jpg",
		"https://example.com/img/photo-4.jpg",
		"https://example.com/img/photo-5.jpg",
		"https://example.com/img/photo-6.jpg",
		"https://example.com/img/photo-7.jpg",
	}
	if len(got) != len(want) {
		t.Fatalf("got %d candidates %v, want %d", len(got), got, len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("candidate[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestExtractImageCandidatesDedupesByPath(t *testing.T) {
	html := `<html><body><article>
		<img src="https://example.com/img/a.jpg?w=300">
		<img src="https://example.com/img/a.jpg?w=1200">
		<img src="https://EXAMPLE.com/img/a.jpg">
		<img src="https://example.com/img/b.jpg">
	</article></body></html>`

	got, err := ExtractImageCandidates(html, mustParse(t, "https://example.com/"))
	if err != nil {
		t.Fatalf("ExtractImageCandidates() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d candidates %v, want 2 (query-string variants collapsed)", len(got), got)
	}
	// First-seen wins, query string and all.
	if got[0] != "https://example.com/img/a.jpg?w=300" {
		t.Errorf("candidate[0] = %q, want first-seen variant kept", got[0])
	}
}

func TestExtractImageCandidatesSkipsDataURIsAndSVG(t *testing.T) {
	html := `<html><body><article>
		<img src="data:image/png;base64,iVBORw0KGgo=">
		<img src="/img/vector.svg">
		<img src="/img/real.jpg">
	</article></body></html>`

	got, err := ExtractImageCandidates(html, mustParse(t, "https://example.com/"))
	if err != nil {
		t.Fatalf("ExtractImageCandidates() error = %v", err)
	}
	if len(got) != 1 || got[0] != "https://example.com/img/real.jpg" {
		t.Errorf("got %v, want only the raster image", got)
	}
}

func TestExtractImageCandidatesDimensionThreshold(t *testing.T) {
	html := `<html><body><article>
		<img src="/img/thumb.jpg" width="100" height="100">
		<img src="/img/hero.jpg" width="1200" height="800">
		<img src="/img/unknown.jpg">
		<img src="/img/tall.jpg" width="80px">
	</article></body></html>`

	got, err := ExtractImageCandidates(html, mustParse(t, "https://example.com/"))
	if err != nil {
		t.Fatalf("ExtractImageCandidates() error = %v", err)
	}
	want := []string{
		"https://example.com/img/hero.jpg",
		"https://example.com/img/unknown.jpg",
	}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("candidate[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestExtractImageCandidatesLazyLoadFallback(t *testing.T) {
	html := `<html><body><article>
		<img data-src="/img/lazy.jpg">
	</article></body></html>`

	got, err := ExtractImageCandidates(html, mustParse(t, "https://example.com/"))
	if err != nil {
		t.Fatalf("ExtractImageCandidates() error = %v", err)
	}
	if len(got) != 1 || got[0] != "https://example.com/img/lazy.jpg" {
		t.Errorf("got %v, want the data-src image", got)
	}
}

func TestExtractImageCandidatesMinesInlineStyles(t *testing.T) {
	html := `<html><body><article>
		<div style="background-image: url('/img/bg-photo.jpg'); color: red"></div>
		<div style="background:url(https://example.com/img/cover.png)"></div>
	</article></body></html>`

	got, err := ExtractImageCandidates(html, mustParse(t, "https://example.com/"))
	if err != nil {
		t.Fatalf("ExtractImageCandidates() error = %v", err)
	}
	want := []string{
		"https://example.com/img/bg-photo.jpg",
		"https://example.com/img/cover.png",
	}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestExtractImageCandidatesMinesScripts(t *testing.T) {
	html := `<html><body>
		<article><p>` + strings.Repeat("contenido ", 40) + `</p></article>
		<script type="application/ld+json">
			{"image":"https:\/\/example.com\/img\/gallery-1.jpg"}
		</script>
		<script>var cfg = {hero: "https://example.com/img/hero-full.webp?v=2"};</script>
	</body></html>`

	got, err := ExtractImageCandidates(html, mustParse(t, "https://example.com/"))
	if err != nil {
		t.Fatalf("ExtractImageCandidates() error = %v", err)
	}
	found := map[string]bool{}
	for _, u := range got {
		found[u] = true
	}
	if !found["https://example.com/img/gallery-1.jpg"] {
		t.Errorf("escaped JSON-LD image missing from %v", got)
	}
	if !found["https://example.com/img/hero-full.webp?v=2"] {
		t.Errorf("script config image missing from %v", got)
	}
}

func TestExtractImageCandidatesNoContainerFallsBackToBody(t *testing.T) {
	html := `<html><body>
		<div><img src="/img/loose.jpg"></div>
	</body></html>`

	got, err := ExtractImageCandidates(html, mustParse(t, "https://example.com/"))
	if err != nil {
		t.Fatalf("ExtractImageCandidates() error = %v", err)
	}
	if len(got) != 1 || got[0] != "https://example.com/img/loose.jpg" {
		t.Errorf("got %v, want body fallback to find the image", got)
	}
}

func TestExtractImageCandidatesEmptyPage(t *testing.T) {
	got, err := ExtractImageCandidates("<html><body></body></html>", mustParse(t, "https://example.com/"))
	if err != nil {
		t.Fatalf("ExtractImageCandidates() error = %v", err)
	}
	if got == nil {
		t.Fatal("got nil, want empty non-nil slice")
	}
	if len(got) != 0 {
		t.Errorf("got %v, want no candidates", got)
	}
}

func TestExtractImageCandidatesPicksDensestContainer(t *testing.T) {
	sidebar := `<div class="content"><img src="/img/sidebar.jpg"><p>corto</p></div>`
	main := fmt.Sprintf(`<article><img src="/img/main.jpg"><p>%s</p></article>`,
		strings.Repeat("parrafo largo del articulo ", 30))
	html := "<html><body>" + sidebar + main + "</body></html>"

	got, err := ExtractImageCandidates(html, mustParse(t, "https://example.com/"))
	if err != nil {
		t.Fatalf("ExtractImageCandidates() error = %v", err)
	}
	if len(got) != 1 || got[0] != "https://example.com/img/main.jpg" {
		t.Errorf("got %v, want only the dense container's image", got)
	}
}

func TestMergeCandidates(t *testing.T) {
	base := mustParse(t, "https://example.com/articulo")
	model := []string{"https://example.com/img/a.jpg", "/img/b.jpg"}
	mined := []string{"https://example.com/img/a.jpg?w=600", "https://example.com/img/c.jpg"}

	got := MergeCandidates(base, model, mined)
	want := []string{
		"https://example.com/img/a.jpg",
		"https://example.com/img/b.jpg",
		"https://example.com/img/c.jpg",
	}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("merged[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
