package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"tipjar/internal/logging"
	"tipjar/internal/relay"
)

const headerRequestID = "X-Request-Id"

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(headerRequestID)
		if id == "" {
			id = fmt.Sprintf("%d", time.Now().UnixNano())
			r.Header.Set(headerRequestID, id)
		}
		w.Header().Set(headerRequestID, id)
		next.ServeHTTP(w, r)
	})
}

// recoveryMiddleware answers a panicking handler with a bare 500. The stack
// goes to the log only.
func (s *Server) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logging.Recover(s.logger, logging.ComponentServer, func() {
			next.ServeHTTP(w, r)
		}, func(any) {
			writeError(w, relay.NewError(relay.CodeInternal, nil))
		})()
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) accessLogMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := "unmatched"
		if m := mux.CurrentRoute(r); m != nil {
			if tpl, err := m.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		s.metrics.incHTTP(route, rec.status)
		s.logger.Debug().
			Str(logging.FieldRequestID, r.Header.Get(headerRequestID)).
			Str(logging.FieldMethod, r.Method).
			Str(logging.FieldPath, r.URL.Path).
			Int(logging.FieldStatus, rec.status).
			Dur(logging.FieldDuration, time.Since(start)).
			Msg("http request")
	})
}
