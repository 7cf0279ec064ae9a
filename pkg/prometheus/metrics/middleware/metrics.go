package middleware

import (
	"strconv"
	"time"

	"github.com/Borislavv/notion-widget-cache/pkg/prometheus/metrics"
	"github.com/fasthttp/router"
	"github.com/valyala/fasthttp"
)

const unmatchedPath = "unmatched"

type PrometheusMetrics struct {
	metrics metrics.Meter
}

func NewPrometheusMetrics(metrics metrics.Meter) *PrometheusMetrics {
	return &PrometheusMetrics{metrics: metrics}
}

// Middleware labels by the matched route pattern (e.g. /embed/{slug}) to keep cardinality bounded,
// so the router must be built with SaveMatchedRoutePath.
func (m *PrometheusMetrics) Middleware(next fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		from := time.Now()

		next(ctx)

		path, ok := ctx.UserValue(router.MatchedRoutePathParam).(string)
		if !ok || path == "" {
			path = unmatchedPath
		}
		method := string(ctx.Method())
		status := strconv.Itoa(ctx.Response.StatusCode())

		m.metrics.IncTotal(path, method, "")
		m.metrics.IncStatus(path, method, status)
		m.metrics.IncTotal(path, method, status)
		m.metrics.ObserveResponseTime(path, method, time.Since(from))
	}
}
