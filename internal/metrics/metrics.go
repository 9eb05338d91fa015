// Package metrics exposes Prometheus counters for the fetch pipeline.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder holds the pipeline's collectors on a private registry.
type Recorder struct {
	reg           *prometheus.Registry
	fetchTotal    *prometheus.CounterVec
	records       *prometheus.CounterVec
	monthRecords  *prometheus.GaugeVec
	fetchDuration prometheus.Histogram
	layerFeatures *prometheus.GaugeVec
}

// New creates a Recorder and registers its collectors.
func New() *Recorder {
	r := &Recorder{reg: prometheus.NewRegistry()}

	r.fetchTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "stopsearch",
		Name:      "fetch_total",
		Help:      "Monthly fetches by result",
	}, []string{"status"})
	r.records = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "stopsearch",
		Name:      "records_total",
		Help:      "Raw records by normalization result",
	}, []string{"result"})
	r.monthRecords = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "stopsearch",
		Name:      "month_records",
		Help:      "Normalized records contributed per month of the last run",
	}, []string{"month"})
	r.fetchDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "stopsearch",
		Name:      "fetch_duration_seconds",
		Help:      "Time spent fetching one month including retries",
		Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
	})

	r.layerFeatures = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "stopsearch",
		Name:      "layer_features",
		Help:      "Features in each served layer",
	}, []string{"layer"})

	r.reg.MustRegister(r.fetchTotal, r.records, r.monthRecords, r.fetchDuration, r.layerFeatures)
	return r
}

// Registry returns the registry for promhttp.
func (r *Recorder) Registry() *prometheus.Registry { return r.reg }

// ObserveFetch records one monthly fetch.
func (r *Recorder) ObserveFetch(month int, d time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	r.fetchTotal.WithLabelValues(status).Inc()
	r.fetchDuration.Observe(d.Seconds())
}

// ObserveBatch records normalization counts for one month.
func (r *Recorder) ObserveBatch(month, normalized, skipped int) {
	r.records.WithLabelValues("normalized").Add(float64(normalized))
	r.records.WithLabelValues("skipped").Add(float64(skipped))
	r.monthRecords.WithLabelValues(strconv.Itoa(month)).Set(float64(normalized))
}

// ResetMonths clears the per-month gauge before a new run is recorded.
func (r *Recorder) ResetMonths() {
	r.monthRecords.Reset()
}

// ObserveLayer records the feature count of a served layer.
func (r *Recorder) ObserveLayer(name string, features int) {
	r.layerFeatures.WithLabelValues(name).Set(float64(features))
}
