package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/Anyuluo996/BotShepherd/logger"
)

// MeterConfig carries the meter provider settings. Config.MeterConfig
// derives one from the observability section of global.yaml.
type MeterConfig struct {
	ServiceName    string
	ServiceVersion string
	// Environment tags every metric (production, development).
	Environment string
	// Endpoint is the OTLP HTTP collector host:port.
	Endpoint string
	// Insecure switches the exporter to plain HTTP.
	Insecure bool
	// Interval is the export interval; zero keeps the SDK default.
	Interval time.Duration
}

// InitMeter sets the global meter provider to one exporting OTLP over
// HTTP. The returned provider must be shut down on exit so the final
// readings flush.
func InitMeter(ctx context.Context, config *MeterConfig) (*sdkmetric.MeterProvider, error) {
	opts := []otlpmetrichttp.Option{
		otlpmetrichttp.WithEndpoint(config.Endpoint),
	}
	if config.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}

	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}

	res, err := newResource(config.ServiceName, config.ServiceVersion, config.Environment)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	readerOpts := []sdkmetric.PeriodicReaderOption{}
	if config.Interval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(config.Interval))
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, readerOpts...)),
		sdkmetric.WithResource(res),
	)

	otel.SetMeterProvider(mp)

	logger.Info("meter initialized", logger.Fields(
		"service", config.ServiceName,
		"endpoint", config.Endpoint,
		"interval", config.Interval.String(),
	))

	return mp, nil
}

// Meter returns a named meter from the global provider.
func Meter(name string) metric.Meter {
	return otel.Meter(name)
}

// Metrics holds OpenTelemetry metric instruments for the service: the
// admin API request set plus the proxy data plane.
type Metrics struct {
	requestTotal    metric.Int64Counter
	requestDuration metric.Float64Histogram
	requestActive   metric.Int64UpDownCounter
	errorTotal      metric.Int64Counter

	eventsForwarded    metric.Int64Counter
	apiCalls           metric.Int64Counter
	apiResponsesRouted metric.Int64Counter
	reconnects         metric.Int64Counter
	sessionsActive     metric.Int64UpDownCounter
	messagesDropped    metric.Int64Counter
}

// NewMetrics creates metric instruments on the given meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	requestTotal, err := meter.Int64Counter("request.total",
		metric.WithDescription("Total number of requests"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating request.total counter: %w", err)
	}

	requestDuration, err := meter.Float64Histogram("request.duration",
		metric.WithDescription("Duration of requests in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating request.duration histogram: %w", err)
	}

	requestActive, err := meter.Int64UpDownCounter("request.active",
		metric.WithDescription("Number of currently active requests"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating request.active gauge: %w", err)
	}

	errorTotal, err := meter.Int64Counter("error.total",
		metric.WithDescription("Total errors by type and component"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating error.total counter: %w", err)
	}

	eventsForwarded, err := meter.Int64Counter("proxy.events.forwarded",
		metric.WithDescription("Events forwarded from clients to targets"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating proxy.events.forwarded counter: %w", err)
	}

	apiCalls, err := meter.Int64Counter("proxy.api.calls",
		metric.WithDescription("API calls forwarded from targets to clients"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating proxy.api.calls counter: %w", err)
	}

	apiResponsesRouted, err := meter.Int64Counter("proxy.api.responses.routed",
		metric.WithDescription("API responses routed back to their originating target"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating proxy.api.responses.routed counter: %w", err)
	}

	reconnects, err := meter.Int64Counter("proxy.reconnects",
		metric.WithDescription("Reconnect attempts to target endpoints"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating proxy.reconnects counter: %w", err)
	}

	sessionsActive, err := meter.Int64UpDownCounter("proxy.sessions.active",
		metric.WithDescription("Currently connected client sessions"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating proxy.sessions.active gauge: %w", err)
	}

	messagesDropped, err := meter.Int64Counter("proxy.messages.dropped",
		metric.WithDescription("Messages dropped by reason"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating proxy.messages.dropped counter: %w", err)
	}

	return &Metrics{
		requestTotal:       requestTotal,
		requestDuration:    requestDuration,
		requestActive:      requestActive,
		errorTotal:         errorTotal,
		eventsForwarded:    eventsForwarded,
		apiCalls:           apiCalls,
		apiResponsesRouted: apiResponsesRouted,
		reconnects:         reconnects,
		sessionsActive:     sessionsActive,
		messagesDropped:    messagesDropped,
	}, nil
}

// RecordRequestStart increments the active request count.
func (m *Metrics) RecordRequestStart(ctx context.Context) {
	m.requestActive.Add(ctx, 1)
}

// RecordRequestEnd decrements active requests and records the completed request.
func (m *Metrics) RecordRequestEnd(ctx context.Context, service, method, status string, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("service", service),
		attribute.String("method", method),
		attribute.String("status", status),
	)
	m.requestActive.Add(ctx, -1)
	m.requestTotal.Add(ctx, 1, attrs)
	m.requestDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("service", service),
		attribute.String("method", method),
	))
}

// RecordError records an error by type and component.
func (m *Metrics) RecordError(ctx context.Context, errType, component string) {
	m.errorTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("type", errType),
		attribute.String("component", component),
	))
}

// RecordEventForwarded counts one event delivered to a target.
func (m *Metrics) RecordEventForwarded(ctx context.Context, connectionID string, targetIndex int) {
	m.eventsForwarded.Add(ctx, 1, metric.WithAttributes(
		attribute.String("connection", connectionID),
		attribute.Int("target", targetIndex),
	))
}

// RecordAPICall counts one API request forwarded to the client.
func (m *Metrics) RecordAPICall(ctx context.Context, connectionID, action string) {
	m.apiCalls.Add(ctx, 1, metric.WithAttributes(
		attribute.String("connection", connectionID),
		attribute.String("action", action),
	))
}

// RecordAPIResponseRouted counts one API response returned to its target.
func (m *Metrics) RecordAPIResponseRouted(ctx context.Context, connectionID string) {
	m.apiResponsesRouted.Add(ctx, 1, metric.WithAttributes(
		attribute.String("connection", connectionID),
	))
}

// RecordReconnect counts one reconnect attempt against a target.
func (m *Metrics) RecordReconnect(ctx context.Context, connectionID string, targetIndex int) {
	m.reconnects.Add(ctx, 1, metric.WithAttributes(
		attribute.String("connection", connectionID),
		attribute.Int("target", targetIndex),
	))
}

// SessionStarted increments the active session gauge.
func (m *Metrics) SessionStarted(ctx context.Context, connectionID string) {
	m.sessionsActive.Add(ctx, 1, metric.WithAttributes(
		attribute.String("connection", connectionID),
	))
}

// SessionEnded decrements the active session gauge.
func (m *Metrics) SessionEnded(ctx context.Context, connectionID string) {
	m.sessionsActive.Add(ctx, -1, metric.WithAttributes(
		attribute.String("connection", connectionID),
	))
}

// RecordDropped counts a dropped message with a reason
// (e.g. "unauthenticated", "target_down", "slow_target").
func (m *Metrics) RecordDropped(ctx context.Context, connectionID, reason string) {
	m.messagesDropped.Add(ctx, 1, metric.WithAttributes(
		attribute.String("connection", connectionID),
		attribute.String("reason", reason),
	))
}
