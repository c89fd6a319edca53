package metrics

import (
	"net/http"
	"time"
)

// statusRecorder captures the status code written by the handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (rw *statusRecorder) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// HTTPMiddleware returns middleware that records HTTP metrics. Requests
// are labeled by the ServeMux pattern that matched them, so path values
// such as job ids do not create new series.
func HTTPMiddleware(reg *Registry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reg.InFlightInc()
			defer reg.InFlightDec()

			start := time.Now()
			rw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rw, r)

			reg.RecordRequest(r.Method, routeLabel(r), rw.status, time.Since(start).Seconds())
		})
	}
}

// routeLabel returns the matched pattern without its method prefix, or the
// raw path when no mux routed the request.
func routeLabel(r *http.Request) string {
	p := r.Pattern
	if p == "" {
		return r.URL.Path
	}
	for i := 0; i < len(p); i++ {
		if p[i] == ' ' {
			return p[i+1:]
		}
	}
	return p
}
