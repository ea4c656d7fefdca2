package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/insightdeck/insightdeck/pkg/httperr"
)

// statusWriter records the response status and whether anything was written,
// so middleware can log outcomes and backfill timeout responses.
type statusWriter struct {
	http.ResponseWriter
	status int
	wrote  bool
}

func (sw *statusWriter) WriteHeader(status int) {
	if !sw.wrote {
		sw.status = status
		sw.wrote = true
	}
	sw.ResponseWriter.WriteHeader(status)
}

func (sw *statusWriter) Write(b []byte) (int, error) {
	if !sw.wrote {
		sw.status = http.StatusOK
		sw.wrote = true
	}
	return sw.ResponseWriter.Write(b)
}

// limitMiddleware enforces runtime limits per request: it acquires a request
// slot with a bounded wait and applies the operation timeout to the handler.
func (s *Server) limitMiddleware(next http.Handler) http.Handler {
	limits := s.ctrl.LimitsSnapshot()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		acquireCtx := r.Context()
		if limits.AcquireRequestTimeout > 0 {
			var cancel context.CancelFunc
			acquireCtx, cancel = context.WithTimeout(acquireCtx, limits.AcquireRequestTimeout)
			defer cancel()
		}
		if err := s.ctrl.AcquireRequest(acquireCtx); err != nil {
			httperr.Write(w, httperr.BusyResource,
				fmt.Sprintf("concurrent request limit reached (max=%d); retry shortly", limits.MaxConcurrentRequests))
			return
		}
		defer s.ctrl.ReleaseRequest()

		callCtx := r.Context()
		cancel := func() {}
		if limits.OperationTimeout > 0 {
			callCtx, cancel = context.WithTimeout(callCtx, limits.OperationTimeout)
		}
		defer cancel()

		sw := &statusWriter{ResponseWriter: w}
		next.ServeHTTP(sw, r.WithContext(callCtx))

		// Backfill a timeout response when the handler gave up without writing.
		if callCtx.Err() == context.DeadlineExceeded && !sw.wrote {
			httperr.Write(sw, httperr.Timeout, "")
		}
	})
}

// logMiddleware emits one zerolog entry per request.
func (s *Server) logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w}
		next.ServeHTTP(sw, r)

		status := sw.status
		if !sw.wrote {
			status = http.StatusOK
		}
		evt := s.logger.Info()
		if status >= http.StatusInternalServerError {
			evt = s.logger.Error()
		}
		evt.Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Dur("duration", time.Since(start)).
			Msg("request served")
	})
}

// recoverMiddleware converts handler panics into 500 responses.
func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error().Interface("panic", rec).Str("path", r.URL.Path).Msg("handler panic")
				httperr.Write(w, httperr.Internal, "")
			}
		}()
		next.ServeHTTP(w, r)
	})
}
