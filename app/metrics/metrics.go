package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FeedsParsed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "feedkit",
		Name:      "feeds_parsed_total",
		Help:      "Feed documents parsed into the unified model, by source format.",
	}, []string{"format"})

	ParseFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "feedkit",
		Name:      "parse_failures_total",
		Help:      "Feed documents rejected by the parser.",
	})

	FeedsRendered = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "feedkit",
		Name:      "feeds_rendered_total",
		Help:      "Feeds rendered from the unified model, by target format.",
	}, []string{"format"})

	EntriesImported = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "feedkit",
		Name:      "entries_imported_total",
		Help:      "Entries stored by import tasks.",
	}, []string{"feed"})

	EntriesFiltered = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "feedkit",
		Name:      "entries_filtered_total",
		Help:      "Entries dropped by feed filters.",
	}, []string{"feed"})

	ImportDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "feedkit",
		Name:      "import_duration_seconds",
		Help:      "Duration of feed import tasks.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"status"})
)
