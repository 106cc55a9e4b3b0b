package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMiddleware(t *testing.T) {
	e := echo.New()
	e.Use(Middleware())
	e.GET("/api/courses/:id", func(c echo.Context) error {
		if c.Param("id") == "missing" {
			return echo.NewHTTPError(http.StatusNotFound)
		}
		return c.NoContent(http.StatusOK)
	})

	okBefore := testutil.ToFloat64(Requests.WithLabelValues(http.MethodGet, "/api/courses/:id", "200"))
	nfBefore := testutil.ToFloat64(Requests.WithLabelValues(http.MethodGet, "/api/courses/:id", "404"))

	for _, id := range []string{"a", "b", "missing"} {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/courses/"+id, nil))
	}

	assert.Equal(t, okBefore+2, testutil.ToFloat64(Requests.WithLabelValues(http.MethodGet, "/api/courses/:id", "200")))
	assert.Equal(t, nfBefore+1, testutil.ToFloat64(Requests.WithLabelValues(http.MethodGet, "/api/courses/:id", "404")))
}

func TestFileObserver(t *testing.T) {
	obs := FileObserver{}
	before := testutil.ToFloat64(Files.WithLabelValues("course_file", "cleanup_failed"))
	obs.Staged("course_file")
	obs.CleanupFailed("course_file")
	assert.Equal(t, before+1, testutil.ToFloat64(Files.WithLabelValues("course_file", "cleanup_failed")))
}
