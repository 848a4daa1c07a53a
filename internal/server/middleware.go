package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/xtxerr/streamscope/internal/api"
	"github.com/xtxerr/streamscope/internal/errors"
	"github.com/xtxerr/streamscope/internal/logging"
)

// handlerFunc is a route handler. A returned error is written as a JSON
// error document with the status errors.HTTPStatus maps it to.
type handlerFunc func(w http.ResponseWriter, r *http.Request) error

// handle registers h under pattern with request ID, logging, metrics and,
// for protected routes, authentication.
func (s *Server) handle(pattern, route string, protected bool, h handlerFunc) {
	s.mux.Handle(pattern, s.instrument(route, protected, h))
}

func (s *Server) instrument(route string, protected bool, h handlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := s.now()

		id := requestID(r)
		w.Header().Set(api.HeaderRequestID, id)

		ctx := logging.ContextWithRequestID(r.Context(), id)
		ctx = logging.ContextWithRoute(ctx, route)
		r = r.WithContext(ctx)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		var err error
		if protected {
			err = s.authorize(r)
		}
		if err == nil {
			err = h(rec, r)
		}
		if err != nil {
			s.writeError(rec, r, id, err)
		}

		elapsed := s.now().Sub(start)
		s.metrics.RecordHTTPRequest(route, strconv.Itoa(rec.status), elapsed.Seconds())
		logging.WithContext(ctx).Debug("request",
			"method", r.Method,
			"status", rec.status,
			"duration", elapsed,
		)
	})
}

// requestID returns the caller's request ID if it is a UUID, or a new one.
func requestID(r *http.Request) string {
	if id := r.Header.Get(api.HeaderRequestID); id != "" {
		if parsed, err := uuid.Parse(id); err == nil {
			return parsed.String()
		}
	}
	return uuid.NewString()
}

// authorize checks the bearer token of a protected route. It is a no-op
// when no secret is configured.
func (s *Server) authorize(r *http.Request) error {
	if s.auth == nil {
		return nil
	}

	ip := extractIP(r.RemoteAddr)
	if s.limiter.IsBlocked(ip) {
		log.Warn("blocked due to too many failed auth attempts", "remote", ip)
		return fmt.Errorf("client %s: %w", ip, errors.ErrRateLimited)
	}

	if err := s.auth.Verify(r); err != nil {
		s.limiter.RecordFailure(ip)
		log.Warn("auth failed", "remote", ip,
			"failure_count", s.limiter.GetFailureCount(ip))
		return err
	}

	s.limiter.Reset(ip)
	return nil
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, id string, err error) {
	status := errors.HTTPStatus(err)
	msg := err.Error()

	if status >= http.StatusInternalServerError {
		logging.WithContext(r.Context()).Error("request failed", "error", err)
		if status == http.StatusInternalServerError {
			msg = "internal server error"
		}
	}
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", `Bearer realm="streamscope"`)
	}

	writeJSON(w, status, api.ErrorResponse{Error: msg, RequestID: id})
}

// writeJSON writes v as JSON with the given status code. Nothing is
// written when v cannot be encoded, so the caller can still send an error.
func writeJSON(w http.ResponseWriter, status int, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode response: %w", err)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, err = w.Write(append(body, '\n'))
	return err
}

// statusRecorder captures the status code for metrics and logs.
type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (r *statusRecorder) WriteHeader(code int) {
	if !r.wroteHeader {
		r.status = code
		r.wroteHeader = true
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if !r.wroteHeader {
		r.wroteHeader = true
	}
	return r.ResponseWriter.Write(b)
}
