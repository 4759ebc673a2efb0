package middleware

import (
	"net/http"
	"strconv"

	"github.com/gorilla/websocket"

	"github.com/Anyuluo996/BotShepherd/observability"
)

// Observability returns middleware that opens a span for every request and
// records request metrics. Metrics may be nil when telemetry is disabled;
// spans then land on the no-op tracer and cost nothing. Health probes and
// WebSocket upgrades are skipped: probes fire constantly and say nothing,
// and an upgrade's span would stay open for the life of the session.
func Observability(serviceName string, metrics *observability.Metrics) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isHealthEndpoint(r.URL.Path) || websocket.IsWebSocketUpgrade(r) {
				next.ServeHTTP(w, r)
				return
			}

			operation := r.Method + " " + r.URL.Path
			oc := observability.NewOperationContext(serviceName, operation, r.Header.Get("X-Request-Id"), metrics)
			ctx, span := oc.StartSpanForOperation(r.Context(), observability.SpanHTTPRequest)
			ctx = observability.WithOperationContext(ctx, oc)

			sw := newStatusWriter(w)
			next.ServeHTTP(sw, r.WithContext(ctx))

			status := strconv.Itoa(sw.status)
			oc.EndOperation(ctx, span, status, nil)
			if metrics != nil && sw.status >= http.StatusInternalServerError {
				metrics.RecordError(ctx, "http_"+status, "server")
			}
		})
	}
}
