package core

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	workbooksExported = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reportsheets_workbooks_exported_total",
		Help: "Workbooks generated, by kind.",
	}, []string{"kind"})

	workbooksImported = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reportsheets_workbooks_imported_total",
		Help: "Workbook imports, by outcome.",
	}, []string{"outcome"})

	recordsSubmitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reportsheets_records_submitted_total",
		Help: "Records accepted by the backend after an import.",
	})

	codecDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "reportsheets_codec_duration_seconds",
		Help:    "Time spent building or parsing one workbook.",
		Buckets: prometheus.DefBuckets,
	}, []string{"op"})

	codecActiveJobs = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "reportsheets_codec_active_jobs",
		Help: "Workbooks currently being built or parsed.",
	})

	templateCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reportsheets_template_cache_hits_total",
		Help: "Template lookups served from the cache.",
	})

	templateCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reportsheets_template_cache_misses_total",
		Help: "Template lookups that went to the source.",
	})
)

// Import outcomes.
const (
	outcomeOK       = "ok"
	outcomeHeader   = "unknown_columns"
	outcomeRejected = "rejected"
	outcomeFailed   = "failed"
)
