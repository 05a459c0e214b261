package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RecordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "visit_linker", Name: "records_total", Help: "Match records emitted by classification"},
		[]string{"classification"},
	)
	LegsConsumed    = promauto.NewCounter(prometheus.CounterOpts{Namespace: "visit_linker", Name: "legs_consumed_total", Help: "Trip legs claimed as a match start"})
	DayMatchLatency = promauto.NewHistogram(prometheus.HistogramOpts{Namespace: "visit_linker", Name: "day_match_seconds", Help: "Time spent matching one day cohort"})
	RunsTotal       = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "visit_linker", Name: "runs_total", Help: "Linker runs by source and outcome"},
		[]string{"source", "outcome"},
	)
	RejectedRecords = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "visit_linker", Name: "rejected_records_total", Help: "Input records dropped by validation"},
		[]string{"kind"},
	)

	ConsumerMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "visit_linker", Name: "consumer_messages_total", Help: "Kafka messages consumed by topic and result"},
		[]string{"topic", "result"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "visit_linker", Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "visit_linker",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
