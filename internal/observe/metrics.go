// Package observe provides application-wide observability primitives:
// OpenTelemetry metrics, distributed tracing, structured logging, and HTTP
// middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all metrics.
const meterName = "github.com/bigear-ai/bigear"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use; the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms per pipeline stage ---

	// STTDuration tracks speech-to-text transcription latency.
	STTDuration metric.Float64Histogram

	// OCRDuration tracks screen text extraction latency.
	OCRDuration metric.Float64Histogram

	// LLMDuration tracks LLM analysis latency (first request to stream end).
	LLMDuration metric.Float64Histogram

	// EmbedDuration tracks embedding computation latency.
	EmbedDuration metric.Float64Histogram

	// --- Counters ---

	// Utterances counts completed speech utterances by audio source.
	// Use with attribute.String("source", ...).
	Utterances metric.Int64Counter

	// Transcripts counts transcript items dispatched downstream. Use with
	// attribute.String("source", ...).
	Transcripts metric.Int64Counter

	// QuestionsDetected counts transcripts classified as questions. Use with
	// attribute.String("source", ...).
	QuestionsDetected metric.Int64Counter

	// AutoAnswers counts auto-answer runs. Use with
	// attribute.String("status", ...) where status is one of
	// "fired", "cooldown", "error".
	AutoAnswers metric.Int64Counter

	// MemoryAdds counts records written to long-term memory. Use with
	// attribute.String("source", ...).
	MemoryAdds metric.Int64Counter

	// MemoryQueries counts long-term memory retrievals.
	MemoryQueries metric.Int64Counter

	// --- Error counters ---

	// ProviderErrors counts provider errors. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...)
	ProviderErrors metric.Int64Counter

	// --- Gauges ---

	// ActiveListeners tracks the number of running per-device audio listeners.
	ActiveListeners metric.Int64UpDownCounter

	// ActiveSubscribers tracks the number of connected event subscribers.
	ActiveSubscribers metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) optimised
// for capture-pipeline latencies.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.STTDuration, err = m.Float64Histogram("bigear.stt.duration",
		metric.WithDescription("Latency of speech-to-text transcription."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.OCRDuration, err = m.Float64Histogram("bigear.ocr.duration",
		metric.WithDescription("Latency of screen text extraction."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.LLMDuration, err = m.Float64Histogram("bigear.llm.duration",
		metric.WithDescription("Latency of LLM analysis."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.EmbedDuration, err = m.Float64Histogram("bigear.embed.duration",
		metric.WithDescription("Latency of embedding computation."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.Utterances, err = m.Int64Counter("bigear.audio.utterances",
		metric.WithDescription("Total completed speech utterances by source."),
	); err != nil {
		return nil, err
	}
	if met.Transcripts, err = m.Int64Counter("bigear.transcripts",
		metric.WithDescription("Total transcript items dispatched by source."),
	); err != nil {
		return nil, err
	}
	if met.QuestionsDetected, err = m.Int64Counter("bigear.questions.detected",
		metric.WithDescription("Total transcripts classified as questions by source."),
	); err != nil {
		return nil, err
	}
	if met.AutoAnswers, err = m.Int64Counter("bigear.auto_answers",
		metric.WithDescription("Total auto-answer runs by status."),
	); err != nil {
		return nil, err
	}
	if met.MemoryAdds, err = m.Int64Counter("bigear.memory.adds",
		metric.WithDescription("Total records written to long-term memory by source."),
	); err != nil {
		return nil, err
	}
	if met.MemoryQueries, err = m.Int64Counter("bigear.memory.queries",
		metric.WithDescription("Total long-term memory retrievals."),
	); err != nil {
		return nil, err
	}

	// Error counters.
	if met.ProviderErrors, err = m.Int64Counter("bigear.provider.errors",
		metric.WithDescription("Total provider errors by provider and kind."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveListeners, err = m.Int64UpDownCounter("bigear.active_listeners",
		metric.WithDescription("Number of running per-device audio listeners."),
	); err != nil {
		return nil, err
	}
	if met.ActiveSubscribers, err = m.Int64UpDownCounter("bigear.active_subscribers",
		metric.WithDescription("Number of connected event subscribers."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("bigear.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordUtterance records a completed utterance for the given audio source.
func (m *Metrics) RecordUtterance(ctx context.Context, source string) {
	m.Utterances.Add(ctx, 1,
		metric.WithAttributes(attribute.String("source", source)),
	)
}

// RecordTranscript records a dispatched transcript item for the given source.
func (m *Metrics) RecordTranscript(ctx context.Context, source string) {
	m.Transcripts.Add(ctx, 1,
		metric.WithAttributes(attribute.String("source", source)),
	)
}

// RecordQuestion records a question detection for the given source.
func (m *Metrics) RecordQuestion(ctx context.Context, source string) {
	m.QuestionsDetected.Add(ctx, 1,
		metric.WithAttributes(attribute.String("source", source)),
	)
}

// RecordAutoAnswer records an auto-answer run outcome. Status is one of
// "fired", "cooldown", "error".
func (m *Metrics) RecordAutoAnswer(ctx context.Context, status string) {
	m.AutoAnswers.Add(ctx, 1,
		metric.WithAttributes(attribute.String("status", status)),
	)
}

// RecordMemoryAdd records n memory writes for the given source.
func (m *Metrics) RecordMemoryAdd(ctx context.Context, source string, n int64) {
	m.MemoryAdds.Add(ctx, n,
		metric.WithAttributes(attribute.String("source", source)),
	)
}

// RecordProviderError records a provider error counter increment.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}
