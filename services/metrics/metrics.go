// Package metrics exposes the Prometheus collectors of the API.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/trezcool/elimu/core/attachment"
)

var (
	Requests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "elimu", Name: "http_requests_total", Help: "Handled HTTP requests",
	}, []string{"method", "route", "status"})
	RequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "elimu", Name: "http_request_duration_seconds", Help: "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})
	Files = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "elimu", Name: "uploaded_files_total", Help: "Uploaded file lifecycle events",
	}, []string{"field", "event"})
)

func init() {
	prometheus.MustRegister(Requests, RequestDuration, Files)
}

func Handler() http.Handler { return promhttp.Handler() }

// Middleware records the count and latency of every request, labelled by route pattern.
func Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			status := c.Response().Status
			if err != nil {
				if he, ok := err.(*echo.HTTPError); ok {
					status = he.Code
				} else if !c.Response().Committed {
					status = http.StatusInternalServerError
				}
			}
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			Requests.WithLabelValues(c.Request().Method, route, strconv.Itoa(status)).Inc()
			RequestDuration.WithLabelValues(c.Request().Method, route).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

// FileObserver counts the staged, discarded and orphaned files per upload field.
type FileObserver struct{}

var _ attachment.Observer = FileObserver{} // interface compliance check

func (FileObserver) Staged(field string)        { Files.WithLabelValues(field, "staged").Inc() }
func (FileObserver) Discarded(field string)     { Files.WithLabelValues(field, "discarded").Inc() }
func (FileObserver) CleanupFailed(field string) { Files.WithLabelValues(field, "cleanup_failed").Inc() }
