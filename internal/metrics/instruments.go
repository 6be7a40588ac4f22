package metrics

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const meterName = "github.com/nikhilbhutani/orpheusvoice"

// Instruments holds the OpenTelemetry instruments recorded by the service.
type Instruments struct {
	// TTSRequests counts synthesis attempts per backend and status.
	TTSRequests metric.Int64Counter
	// TTSDuration is the latency of successful syntheses per backend.
	TTSDuration metric.Float64Histogram
	// TTSFallbacks counts primary failures that moved to the secondary,
	// labelled with the failure kind.
	TTSFallbacks metric.Int64Counter
	// ActiveStreams mirrors the in-flight synthesis gauge.
	ActiveStreams metric.Int64UpDownCounter

	// ChatRequests counts chat completions per provider, mode and status.
	ChatRequests metric.Int64Counter
	ChatDuration metric.Float64Histogram

	// HTTPRequestDuration is recorded by the request logging middleware.
	HTTPRequestDuration metric.Float64Histogram
}

var latencyBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 3, 5, 10, 20, 45}

// NewInstruments creates every instrument on mp.
func NewInstruments(mp metric.MeterProvider) (*Instruments, error) {
	m := mp.Meter(meterName)
	in := &Instruments{}
	var err error

	if in.TTSRequests, err = m.Int64Counter("orpheus.tts.requests",
		metric.WithDescription("Text-to-speech synthesis attempts."),
	); err != nil {
		return nil, err
	}
	if in.TTSDuration, err = m.Float64Histogram("orpheus.tts.duration",
		metric.WithDescription("Latency of successful text-to-speech synthesis."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if in.TTSFallbacks, err = m.Int64Counter("orpheus.tts.fallbacks",
		metric.WithDescription("Primary synthesis failures served by the secondary backend."),
	); err != nil {
		return nil, err
	}
	if in.ActiveStreams, err = m.Int64UpDownCounter("orpheus.tts.active_streams",
		metric.WithDescription("Syntheses currently in flight."),
	); err != nil {
		return nil, err
	}
	if in.ChatRequests, err = m.Int64Counter("orpheus.chat.requests",
		metric.WithDescription("Chat completion calls."),
	); err != nil {
		return nil, err
	}
	if in.ChatDuration, err = m.Float64Histogram("orpheus.chat.duration",
		metric.WithDescription("Latency of chat completion calls."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if in.HTTPRequestDuration, err = m.Float64Histogram("orpheus.http.request.duration",
		metric.WithDescription("HTTP request processing time."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	return in, nil
}

// Global returns instruments on the globally registered meter provider.
func Global() (*Instruments, error) {
	return NewInstruments(otel.GetMeterProvider())
}

// Noop returns instruments that record nothing.
func Noop() *Instruments {
	in, err := NewInstruments(noop.NewMeterProvider())
	if err != nil {
		panic(err)
	}
	return in
}

func (in *Instruments) RecordTTS(ctx context.Context, backend, status string, elapsed time.Duration) {
	in.TTSRequests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("backend", backend),
		attribute.String("status", status),
	))
	if status == "ok" {
		in.TTSDuration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(attribute.String("backend", backend)))
	}
}

func (in *Instruments) RecordFallback(ctx context.Context, reason string) {
	in.TTSFallbacks.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

func (in *Instruments) RecordChat(ctx context.Context, provider, mode, status string, elapsed time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("mode", mode),
		attribute.String("status", status),
	)
	in.ChatRequests.Add(ctx, 1, attrs)
	in.ChatDuration.Record(ctx, elapsed.Seconds(), attrs)
}

func (in *Instruments) RecordHTTP(ctx context.Context, method, route string, status int, elapsed time.Duration) {
	in.HTTPRequestDuration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("route", route),
		attribute.Int("status", status),
	))
}
