package feed

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

const rssFixture = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Noticias Culturales</title>
    <item>
      <title>Tejidos de Taquile</title>
      <link>https://example.com/articulo-1</link>
    </item>
    <item>
      <title>Cerámica de Chulucanas</title>
      <link>https://example.com/articulo-2</link>
    </item>
    <item>
      <title>Sin enlace</title>
    </item>
  </channel>
</rss>`

type memoryRegistrar struct {
	mu   sync.Mutex
	seen map[string]bool
	err  error
}

func (m *memoryRegistrar) AddURL(url string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	if m.seen == nil {
		m.seen = make(map[string]bool)
	}
	if m.seen[url] {
		return false, nil
	}
	m.seen[url] = true
	return true, nil
}

func TestIngest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, rssFixture)
	}))
	defer server.Close()

	store := &memoryRegistrar{}
	watcher := NewWatcher(store, nil)

	added, err := watcher.Ingest(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if added != 2 {
		t.Errorf("added = %d, want 2 (item without link skipped)", added)
	}
	if !store.seen["https://example.com/articulo-1"] || !store.seen["https://example.com/articulo-2"] {
		t.Errorf("registered urls = %v, want both article links", store.seen)
	}
}

func TestIngestDeduplicatesAcrossPolls(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, rssFixture)
	}))
	defer server.Close()

	store := &memoryRegistrar{}
	watcher := NewWatcher(store, nil)

	if _, err := watcher.Ingest(context.Background(), server.URL); err != nil {
		t.Fatal(err)
	}
	added, err := watcher.Ingest(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("second Ingest() error = %v", err)
	}
	if added != 0 {
		t.Errorf("second poll added = %d, want 0", added)
	}
}

func TestIngestBadFeed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "this is not xml")
	}))
	defer server.Close()

	watcher := NewWatcher(&memoryRegistrar{}, nil)
	if _, err := watcher.Ingest(context.Background(), server.URL); err == nil {
		t.Fatal("Ingest() error = nil, want parse failure")
	}
}

func TestIngestAllContinuesPastFailures(t *testing.T) {
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, rssFixture)
	}))
	defer good.Close()
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer bad.Close()

	store := &memoryRegistrar{}
	watcher := NewWatcher(store, nil)

	added, err := watcher.IngestAll(context.Background(), []string{bad.URL, good.URL})
	if err == nil {
		t.Error("IngestAll() error = nil, want the bad feed's error surfaced")
	}
	if added != 2 {
		t.Errorf("added = %d, want the good feed's 2 urls despite the bad feed", added)
	}
}
