package metrics

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// probeRoutes are scraped constantly and would drown the API series.
var probeRoutes = map[string]struct{}{
	"/health": {},
	"/ready":  {},
}

// HTTPMetricsMiddleware counts requests and observes their latency labelled
// by method, route pattern and status class. Probe routes are skipped.
// Artifact and resource ids never reach a label since only the matched
// route pattern is used.
func HTTPMetricsMiddleware(meterProvider metric.MeterProvider, namespace string) gin.HandlerFunc {
	meter := meterProvider.Meter(namespace)

	requests, errCounter := meter.Int64Counter(
		fmt.Sprintf("%s_http_requests_total", namespace),
		metric.WithDescription("HTTP requests by route and status class"),
		metric.WithUnit("{request}"),
	)
	latency, errHisto := meter.Float64Histogram(
		fmt.Sprintf("%s_http_request_duration_seconds", namespace),
		metric.WithDescription("HTTP request latency in seconds"),
		metric.WithUnit("s"),
	)
	if errCounter != nil || errHisto != nil {
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		if _, skip := probeRoutes[c.FullPath()]; skip {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		attrs := metric.WithAttributes(
			attribute.String("method", c.Request.Method),
			attribute.String("route", routeLabel(c.FullPath())),
			attribute.String("status_class", statusClass(c.Writer.Status())),
		)
		requests.Add(c.Request.Context(), 1, attrs)
		latency.Record(c.Request.Context(), time.Since(start).Seconds(), attrs)
	}
}

// routeLabel returns the matched route pattern, or "unmatched".
func routeLabel(fullPath string) string {
	if fullPath == "" {
		return "unmatched"
	}
	return fullPath
}

// statusClass collapses a status code to "2xx", "4xx" and so on.
func statusClass(status int) string {
	if status < 100 || status > 599 {
		return strconv.Itoa(status)
	}
	return strconv.Itoa(status/100) + "xx"
}
