package observability

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const namespace = "ngwarden"

var (
	Registry = prometheus.NewRegistry()

	violationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "violations_total",
			Help:      "Detected rule violations by category",
		},
		[]string{"category"},
	)

	punishmentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "punishments_total",
			Help:      "Punishment actions taken",
		},
		[]string{"action"},
	)

	classifierVerdictsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "classifier_verdicts_total",
			Help:      "Classifier outcomes",
		},
		[]string{"result"},
	)

	pendingReviews = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pending_reviews",
			Help:      "Media items waiting for a reviewer decision",
		},
	)

	updateDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "update_duration_seconds",
			Help:      "Time spent processing updates",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"status"},
	)

	lastUpdateUnix atomic.Int64

	tracer trace.Tracer = otel.Tracer(namespace)
)

func init() {
	Registry.MustRegister(
		violationsTotal,
		punishmentsTotal,
		classifierVerdictsTotal,
		pendingReviews,
		updateDuration,
		collectors.NewGoCollector(),
	)
}

// InitTracing installs an SDK tracer provider and returns its shutdown func.
func InitTracing() func(context.Context) error {
	tp := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(tp)
	tracer = tp.Tracer(namespace)
	return tp.Shutdown
}

func StartSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return tracer.Start(ctx, name)
}

func RecordViolation(category string) {
	violationsTotal.WithLabelValues(category).Inc()
}

func RecordPunishment(action string) {
	punishmentsTotal.WithLabelValues(action).Inc()
}

func RecordVerdict(result string) {
	classifierVerdictsTotal.WithLabelValues(result).Inc()
}

func SetPendingReviews(n int) {
	pendingReviews.Set(float64(n))
}

func AddPendingReviews(delta int) {
	pendingReviews.Add(float64(delta))
}

// StartUpdateProcessing returns a function to record update processing duration
func StartUpdateProcessing() func(status string) {
	start := time.Now()
	return func(status string) {
		updateDuration.WithLabelValues(status).Observe(time.Since(start).Seconds())
	}
}

func MarkUpdateProcessed(t time.Time) {
	lastUpdateUnix.Store(t.Unix())
}

// LastUpdate returns the zero time until the first update is processed.
func LastUpdate() time.Time {
	ts := lastUpdateUnix.Load()
	if ts == 0 {
		return time.Time{}
	}
	return time.Unix(ts, 0)
}
