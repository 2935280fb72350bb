package metrics

import (
	"context"
	"errors"
	"log"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "chunkarchive"

var (
	// Registry is a dedicated Prometheus registry for all chunkarchive metrics.
	Registry = prometheus.NewRegistry()

	// CompressDuration measures time spent producing an archive from a source.
	CompressDuration = promauto.With(Registry).NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "compress_duration_ms",
			Help:      "Duration of archive creation operations in milliseconds",
			Buckets:   []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000},
		},
	)

	// CompressTotal counts archive creation attempts and their outcomes.
	CompressTotal = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "compress_total",
			Help:      "Total number of archive creation operations",
		},
		[]string{"outcome"}, // ok | error
	)

	// CloneDuration measures time spent reconstructing a source from an archive.
	CloneDuration = promauto.With(Registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "clone_duration_ms",
			Help:      "Duration of clone (reconstruction) operations in milliseconds",
			Buckets:   []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000},
		},
		[]string{"outcome"}, // ok | error
	)

	// ChunkTotal counts chunks encountered during compression, by outcome.
	ChunkTotal = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunk_total",
			Help:      "Total chunks processed during archive creation",
		},
		[]string{"outcome"}, // new | reuse
	)

	// ChunkDedupRatio reports the running dedup ratio across chunk captures.
	ChunkDedupRatio = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "chunk_dedup_ratio",
			Help:      "Fraction of processed chunks that were already present in the dictionary",
		},
	)

	// CloneSourceTotal breaks down the bytes a clone session reconstructed
	// by where they came from.
	CloneSourceTotal = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "clone_source_bytes_total",
			Help:      "Bytes supplied to clone targets, by source",
		},
		[]string{"source"}, // in_place | seed | archive
	)

	// ArchiveSizeBytes reports the compressed size of the most recently
	// created archive.
	ArchiveSizeBytes = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "archive_size_bytes",
			Help:      "Compressed size in bytes of the most recently created archive",
		},
	)

	// HTTPRetryTotal counts retried range requests made by a remote archive reader.
	HTTPRetryTotal = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_retry_total",
			Help:      "Total number of retried HTTP range requests",
		},
	)

	// BuildInfo exposes static information about the running binary.
	BuildInfo = promauto.With(Registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "build_info",
			Help:      "Static information about the running binary",
		},
		[]string{"os", "arch", "version"},
	)

	// Up is a liveness gauge for the process.
	Up = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "up",
			Help:      "1 if the process is running and healthy",
		},
	)
)

var (
	chunkTotalCount atomic.Int64
	chunkReuseCount atomic.Int64
)

func init() {
	Registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	Registry.MustRegister(prometheus.NewGoCollector())
	Up.Set(1)
}

// SetBuildInfo publishes a single info metric for the running binary.
func SetBuildInfo(osName, arch, version string) {
	if osName == "" {
		osName = runtime.GOOS
	}
	if arch == "" {
		arch = runtime.GOARCH
	}
	if version == "" {
		version = "dev"
	}
	BuildInfo.WithLabelValues(osName, arch, version).Set(1)
}

// ObserveCompress records timing and outcome for an archive creation run.
func ObserveCompress(start time.Time, outcome string) {
	elapsed := float64(time.Since(start)) / float64(time.Millisecond)
	CompressDuration.Observe(elapsed)
	CompressTotal.WithLabelValues(outcome).Inc()
}

// ObserveClone records timing and outcome for a clone (reconstruction) run.
func ObserveClone(start time.Time, outcome string) {
	elapsed := float64(time.Since(start)) / float64(time.Millisecond)
	CloneDuration.WithLabelValues(outcome).Observe(elapsed)
}

// ObserveChunk records a chunk outcome and updates the running dedup ratio.
func ObserveChunk(reused bool) {
	count := chunkTotalCount.Add(1)
	outcome := "new"
	reusedCount := chunkReuseCount.Load()
	if reused {
		outcome = "reuse"
		reusedCount = chunkReuseCount.Add(1)
	}
	ChunkDedupRatio.Set(float64(reusedCount) / float64(count))
	ChunkTotal.WithLabelValues(outcome).Inc()
}

// ObserveCloneSource accumulates the bytes a clone session pulled from a
// given source.
func ObserveCloneSource(source string, bytesWritten uint64) {
	if bytesWritten == 0 {
		return
	}
	CloneSourceTotal.WithLabelValues(source).Add(float64(bytesWritten))
}

// SetArchiveSize reports the compressed size of the archive just written.
func SetArchiveSize(sizeBytes int64) {
	if sizeBytes < 0 {
		return
	}
	ArchiveSizeBytes.Set(float64(sizeBytes))
}

// RecordHTTPRetry increments the range-request retry counter.
func RecordHTTPRetry() {
	HTTPRetryTotal.Inc()
}

// SetUp toggles the liveness gauge.
func SetUp(healthy bool) {
	if healthy {
		Up.Set(1)
		return
	}
	Up.Set(0)
}

// Serve starts the /metrics HTTP endpoint on the provided address.
func Serve(ctx context.Context, addr string, logger *log.Logger) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if logger == nil {
		logger = log.Default()
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(Registry, promhttp.HandlerOpts{EnableOpenMetrics: true}))

	srv := &http.Server{Addr: addr, Handler: mux}

	idleClosed := make(chan struct{})
	go func() {
		defer close(idleClosed)
		<-ctx.Done()
		_ = srv.Shutdown(context.Background())
	}()

	logger.Printf("[Metrics] Prometheus endpoint listening on %s", addr)
	err := srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		<-idleClosed
		return nil
	}

	return err
}
