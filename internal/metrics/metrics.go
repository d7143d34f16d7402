package metrics

import (
    "net/http"
    "time"

    "github.com/prometheus/client_golang/prometheus"
    "github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
    mergeReqs = prometheus.NewCounterVec(
        prometheus.CounterOpts{
            Namespace: "pdfmerge",
            Name:      "merge_requests_total",
            Help:      "Total merge requests by result (success or error kind)",
        },
        []string{"result"},
    )

    mergeDuration = prometheus.NewHistogram(
        prometheus.HistogramOpts{
            Namespace: "pdfmerge",
            Name:      "merge_duration_seconds",
            Help:      "End-to-end duration of merge requests",
            Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
        },
    )

    toolInvocations = prometheus.NewCounterVec(
        prometheus.CounterOpts{
            Namespace: "pdfmerge",
            Name:      "tool_invocations_total",
            Help:      "External tool invocations by tool, operation and result",
        },
        []string{"tool", "op", "result"},
    )

    toolDuration = prometheus.NewHistogramVec(
        prometheus.HistogramOpts{
            Namespace: "pdfmerge",
            Name:      "tool_duration_seconds",
            Help:      "Duration of external tool invocations by tool and operation",
            Buckets:   prometheus.DefBuckets,
        },
        []string{"tool", "op"},
    )

    activeWorkAreas = prometheus.NewGauge(
        prometheus.GaugeOpts{
            Namespace: "pdfmerge",
            Name:      "active_work_areas",
            Help:      "Work areas currently allocated to in-flight requests",
        },
    )

    uploadBytes = prometheus.NewCounter(
        prometheus.CounterOpts{
            Namespace: "pdfmerge",
            Name:      "upload_bytes_total",
            Help:      "Total bytes accepted from uploaded source documents",
        },
    )
)

// Init registers collectors.
func Init() {
    prometheus.MustRegister(mergeReqs, mergeDuration, toolInvocations, toolDuration, activeWorkAreas, uploadBytes)
}

// Handler returns the http.Handler for /metrics
func Handler() http.Handler { return promhttp.Handler() }

func ObserveMerge(result string, dur time.Duration) {
    mergeReqs.WithLabelValues(result).Inc()
    mergeDuration.Observe(dur.Seconds())
}

func ObserveTool(tool, op, result string, dur time.Duration) {
    toolInvocations.WithLabelValues(tool, op, result).Inc()
    toolDuration.WithLabelValues(tool, op).Observe(dur.Seconds())
}

func WorkAreaAcquired() { activeWorkAreas.Inc() }
func WorkAreaReleased() { activeWorkAreas.Dec() }

func AddUploadBytes(n int64) { uploadBytes.Add(float64(n)) }
