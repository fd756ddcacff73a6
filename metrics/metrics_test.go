package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	// None of these may panic when metrics are not wired.
	m.URLProcessed("completed")
	m.ImageAdmitted()
	m.ImageRejected()
	m.ImageFailure()
	m.RunCompleted(time.Second)
	m.RenderCompleted(time.Second)
	m.ModelFallback()
}

func TestHandlerExposesCounters(t *testing.T) {
	m := New()
	m.URLProcessed("completed")
	m.URLProcessed("error")
	m.ImageAdmitted()

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, req)

	body := rec.Body.String()
	if !strings.Contains(body, `curator_urls_processed_total{status="completed"} 1`) {
		t.Errorf("scrape output missing completed counter:\n%s", body)
	}
	if !strings.Contains(body, "curator_images_admitted_total 1") {
		t.Errorf("scrape output missing admitted counter:\n%s", body)
	}
}
