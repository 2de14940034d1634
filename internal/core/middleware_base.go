package core

import (
	"context"
	"fmt"
	"net/http"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"gymdesk/internal/types"
)

// statusWriter captures the status code written by downstream handlers so
// the logging and metrics middleware can observe it after the chain runs.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (sw *statusWriter) WriteHeader(code int) {
	if sw.status == 0 {
		sw.status = code
	}
	sw.ResponseWriter.WriteHeader(code)
}

func (sw *statusWriter) Write(b []byte) (int, error) {
	if sw.status == 0 {
		sw.status = http.StatusOK
	}
	return sw.ResponseWriter.Write(b)
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (sw *statusWriter) Unwrap() http.ResponseWriter {
	return sw.ResponseWriter
}

func (sw *statusWriter) statusCode() int {
	if sw.status == 0 {
		return http.StatusOK
	}
	return sw.status
}

// routePattern returns the chi route pattern matched by the request, or
// the raw path when routing never matched (404s). Patterns keep metric and
// log cardinality bounded: /v1/members/{memberID} instead of one series
// per member.
func routePattern(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if pattern := rc.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return r.URL.Path
}

// actorSink carries the resolved actor back up to the request logger.
// Authentication runs deeper in the chain than logging, so the logger
// plants a sink in the context and the auth middleware fills it.
type actorSink struct {
	actor *types.Actor
}

type actorSinkKey struct{}

// noteActor records the resolved actor in the sink, when one was planted.
func noteActor(r *http.Request, actor *types.Actor) {
	if sink, ok := r.Context().Value(actorSinkKey{}).(*actorSink); ok {
		sink.actor = actor
	}
}

// Recoverer catches panics in the handler chain, logs the stack trace, and
// answers with the standard 500 envelope. It MUST be the outermost
// middleware so nothing escapes it.
func (s *Server) Recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rvr := recover()
			if rvr == nil {
				return
			}

			s.Logger.Error("panic recovered",
				"method", r.Method,
				"path", r.URL.Path,
				"panic", fmt.Sprintf("%v", rvr),
				"stack", string(debug.Stack()),
			)

			// The panic value never reaches the client.
			Error(w, r, types.NewAppError(
				types.ErrCodeInternalUnexpected,
				"an unexpected error occurred",
				nil,
			))
		}()

		next.ServeHTTP(w, r)
	})
}

// RequestLogger emits one structured line per request: method, matched
// route, status, duration, and the tenant and actor when the request is
// authenticated. Header values are never logged.
func (s *Server) RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w}
		sink := &actorSink{}
		r = r.WithContext(context.WithValue(r.Context(), actorSinkKey{}, sink))

		next.ServeHTTP(sw, r)

		status := sw.statusCode()
		args := []any{
			"method", r.Method,
			"route", routePattern(r),
			"status", status,
			"duration_ms", time.Since(start).Milliseconds(),
		}
		if reqID := types.GetRequestID(r.Context()); reqID != "" {
			args = append(args, "request_id", reqID)
		}
		if sink.actor != nil {
			args = append(args, "tenant_id", sink.actor.TenantID, "actor_id", sink.actor.ID)
		}

		switch {
		case status >= 500:
			s.Logger.Error("request completed", args...)
		case status >= 400:
			s.Logger.Warn("request completed", args...)
		default:
			s.Logger.Info("request completed", args...)
		}
	})
}

// MetricsMiddleware records request count and latency per matched route.
// A nil collector disables recording.
func (s *Server) MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.Metrics == nil {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		sw := &statusWriter{ResponseWriter: w}

		next.ServeHTTP(sw, r)

		s.Metrics.RecordRequest(r.Method, routePattern(r), strconv.Itoa(sw.statusCode()), time.Since(start))
	})
}

// SecurityHeadersMiddleware sets the standard hardening headers on every
// response, before any downstream handler can fail.
func (s *Server) SecurityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-XSS-Protection", "1; mode=block")
		next.ServeHTTP(w, r)
	})
}
