// Package observability provides OpenTelemetry tracing and metrics for
// the proxy data plane and the admin API.
//
// Providers are built from the observability section of global.yaml:
//
//	tp, err := observability.InitTracer(ctx, cfg.Observability.TracerConfig(version))
//	defer tp.Shutdown(ctx)
//
//	ctx, span := observability.StartSpan(ctx, observability.SpanEventForward)
//	defer span.End()
//
// Metrics:
//
//	mp, err := observability.InitMeter(ctx, cfg.Observability.MeterConfig(version))
//	defer mp.Shutdown(ctx)
//
//	metrics, err := observability.NewMetrics(observability.Meter("botshepherd"))
//	metrics.RecordEventForwarded(ctx, "main", 0)
package observability
