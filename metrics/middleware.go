package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collect records the HTTP counters and response time. The route label is
// the chi route pattern, so invoked paths do not create new series.
func Collect(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		defer func() {
			route := routePattern(r)
			if route == "/metrics" {
				return
			}
			code := strconv.Itoa(ww.Status())
			totalHTTPRequests.WithLabelValues(code, r.Method, route).Inc()
			responseTime.WithLabelValues(route).Observe(time.Since(start).Seconds())
		}()

		next.ServeHTTP(ww, r)
	})
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}

// Handler serves the default registry.
func Handler() http.Handler { return promhttp.Handler() }
