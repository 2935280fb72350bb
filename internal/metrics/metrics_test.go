package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func TestCompressDurationRecordsObservation(t *testing.T) {
	start := time.Now()
	time.Sleep(5 * time.Millisecond)
	ObserveCompress(start, "ok")

	mfs, err := Registry.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	found := false
	for _, mf := range mfs {
		if mf.GetName() != "chunkarchive_compress_duration_ms" {
			continue
		}
		found = true
		if len(mf.Metric) == 0 {
			t.Fatalf("compress_duration_ms metric has no samples")
		}
		if got := mf.Metric[0].GetHistogram().GetSampleCount(); got == 0 {
			t.Fatalf("expected histogram sample count > 0, got %d", got)
		}
	}
	if !found {
		t.Fatalf("chunkarchive_compress_duration_ms not found")
	}
}

func TestObserveChunkUpdatesDedupRatio(t *testing.T) {
	ObserveChunk(false)
	ObserveChunk(true)

	mfs, err := Registry.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	found := false
	for _, mf := range mfs {
		if mf.GetName() != "chunkarchive_chunk_dedup_ratio" {
			continue
		}
		found = true
		if len(mf.Metric) == 0 || mf.Metric[0].GetGauge().GetValue() <= 0 {
			t.Fatalf("expected positive dedup ratio, metric: %+v", mf.Metric)
		}
	}
	if !found {
		t.Fatalf("chunkarchive_chunk_dedup_ratio not found")
	}
}

func TestMetricsEndpointExposesCoreMetrics(t *testing.T) {
	ObserveCompress(time.Now(), "ok")
	ObserveCloneSource("archive", 1024)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	promhttp.HandlerFor(Registry, promhttp.HandlerOpts{EnableOpenMetrics: true}).ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("unexpected status code: %d", w.Code)
	}

	body := w.Body.String()
	if !strings.Contains(body, "chunkarchive_compress_duration_ms_bucket") {
		t.Fatalf("expected compress_duration_ms histogram buckets, body: %s", body)
	}
	if !strings.Contains(body, "chunkarchive_clone_source_bytes_total") {
		t.Fatalf("expected clone_source_bytes_total counter, body: %s", body)
	}
	if !strings.Contains(body, "chunkarchive_up") {
		t.Fatalf("expected up gauge, body: %s", body)
	}
}
