// Package metrics exposes Prometheus counters and histograms for the
// pipeline stages, for the --metrics-addr flag's optional scrape
// endpoint. Runs are typically one-shot CLI invocations, so these exist
// mainly for long-lived wrapper services that shell out to pperf
// repeatedly and want to track its behavior over time.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ReportsParsed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pperf_reports_parsed_total",
		Help: "Number of perf report files successfully parsed.",
	}, []string{"command"})

	ParseErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pperf_parse_errors_total",
		Help: "Number of perf report files that failed to parse.",
	}, []string{"command"})

	ParseDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pperf_parse_duration_seconds",
		Help:    "Time spent parsing all perf report files of one run.",
		Buckets: prometheus.DefBuckets,
	}, []string{"command"})

	RelationsFound = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pperf_hierarchy_relations_found",
		Help:    "Number of caller/callee relations found per --hierarchy run.",
		Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100, 250},
	})
)

// Serve starts a Prometheus scrape endpoint on addr and blocks until ctx
// is canceled, at which point it shuts the server down.
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		return srv.Shutdown(context.Background())
	case err := <-errCh:
		return err
	}
}
