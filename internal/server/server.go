package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"tipjar/internal/config"
	"tipjar/internal/escrow"
	"tipjar/internal/hmacauth"
	"tipjar/internal/logging"
	"tipjar/internal/relay"
)

const maxBodyBytes = 64 << 10

type Server struct {
	cfg         *config.AppConfig
	relay       *relay.Service
	admin       *hmacauth.Verifier
	httpServer  *http.Server
	metrics     *Metrics
	logger      logging.Logger
	rpcHealthFn func(context.Context) error
}

func NewServer(cfg *config.AppConfig, svc *relay.Service, esc escrow.Client, metrics *Metrics, logger logging.Logger) *Server {
	if metrics == nil {
		metrics = NewMetrics()
	}

	s := &Server{
		cfg:     cfg,
		relay:   svc,
		metrics: metrics,
		logger:  logging.ForComponent(logger, logging.ComponentServer),
	}
	if checker, ok := esc.(escrow.HealthChecker); ok {
		s.rpcHealthFn = checker.Ping
	}

	r := mux.NewRouter()
	r.HandleFunc("/api/relay-tip", s.handleRelayTip).Methods(http.MethodPost)
	r.HandleFunc("/api/relay-tip/nonce/{fan}", s.handleNonce).Methods(http.MethodGet)
	r.HandleFunc("/api/health", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.handler()).Methods(http.MethodGet)

	if cfg.Service.AdminHMACSecret != "" {
		s.admin = hmacauth.NewVerifier(cfg.Service.AdminHMACSecret, cfg.Service.AdminClockSkew)
		s.admin.OnError = s.handleAdminAuthError
		r.Handle("/api/admin/relay-logs", s.admin.Middleware(http.HandlerFunc(s.handleRelayLogs))).Methods(http.MethodGet)
	}

	r.MethodNotAllowedHandler = http.HandlerFunc(s.handleMethodNotAllowed)
	r.Use(s.accessLogMiddleware)

	s.httpServer = &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.Service.HTTPPort),
		Handler:           requestIDMiddleware(s.recoveryMiddleware(r)),
		ReadHeaderTimeout: 15 * time.Second,
	}
	return s
}

// Handler exposes the routed handler chain, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) Start() error {
	s.logger.Info().Str(logging.FieldAddr, s.httpServer.Addr).Msg("API listening")
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops accepting requests, then drains pending confirmation waits.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	s.relay.Close()
	return err
}

type errorResponse struct {
	Error   relay.Code `json:"error"`
	Message string     `json:"message"`
	Details string     `json:"details,omitempty"`
}

type successResponse struct {
	Success bool          `json:"success"`
	Message string        `json:"message"`
	Data    *relay.Result `json:"data"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, e *relay.Error) {
	if e.RetryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(e.RetryAfter.Seconds()))))
	}
	writeJSON(w, e.Code.HTTPStatus(), errorResponse{
		Error:   e.Code,
		Message: e.Message,
		Details: e.Details,
	})
}

func (s *Server) handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeError(w, s.relay.Reject(clientIP(r), relay.NewError(relay.CodeMethodNotAllowed, fmt.Errorf("%s %s", r.Method, r.URL.Path))))
}

func (s *Server) handleRelayTip(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, s.relay.Reject(clientIP(r), relay.NewError(relay.CodeInvalidJSON, err)))
		return
	}

	res, rerr := s.relay.Relay(r.Context(), clientIP(r), body)
	if rerr != nil {
		writeError(w, rerr)
		return
	}
	writeJSON(w, http.StatusOK, successResponse{
		Success: true,
		Message: "Tip processed successfully",
		Data:    res,
	})
}

func (s *Server) handleNonce(w http.ResponseWriter, r *http.Request) {
	fan := mux.Vars(r)["fan"]
	nonce, rerr := s.relay.Nonce(r.Context(), fan)
	if rerr != nil {
		writeError(w, rerr)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Fan   string `json:"fan"`
		Nonce string `json:"nonce"`
	}{Fan: fan, Nonce: nonce.String()})
}

func (s *Server) handleRelayLogs(w http.ResponseWriter, r *http.Request) {
	entries := s.relay.Requests()
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n >= 0 && n < len(entries) {
			entries = entries[len(entries)-n:]
		}
	}
	writeJSON(w, http.StatusOK, struct {
		Count   int              `json:"count"`
		Entries []relay.LogEntry `json:"entries"`
	}{Count: len(entries), Entries: entries})
}

func (s *Server) handleAdminAuthError(w http.ResponseWriter, r *http.Request, err error) {
	s.logger.Warn().
		Err(err).
		Str(logging.FieldClientIP, clientIP(r)).
		Str(logging.FieldPath, r.URL.Path).
		Msg("admin request rejected")
	writeJSON(w, http.StatusUnauthorized, struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}{Error: "UNAUTHORIZED", Message: err.Error()})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	overallHealthy := true

	rpcInfo := struct {
		Connected bool    `json:"connected"`
		LatencyMs float64 `json:"latency_ms"`
		Error     string  `json:"error,omitempty"`
	}{}

	if s.rpcHealthFn != nil {
		start := time.Now()
		rpcCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := s.rpcHealthFn(rpcCtx); err != nil {
			rpcInfo.Error = err.Error()
			overallHealthy = false
		} else {
			rpcInfo.Connected = true
			rpcInfo.LatencyMs = float64(time.Since(start).Microseconds()) / 1000.0
		}
	} else {
		rpcInfo.Connected = true
	}

	limiterInfo := struct {
		Connected bool   `json:"connected"`
		Error     string `json:"error,omitempty"`
	}{Connected: true}

	limitCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := s.relay.Limiter().Ping(limitCtx); err != nil {
		limiterInfo.Connected = false
		limiterInfo.Error = err.Error()
		overallHealthy = false
	}

	status := "healthy"
	if !overallHealthy {
		status = "degraded"
	}

	resp := struct {
		Status    string      `json:"status"`
		ChainMode string      `json:"chain_mode"`
		ChainID   int64       `json:"chain_id"`
		RPC       interface{} `json:"rpc"`
		RateLimit interface{} `json:"rate_limit_store"`
	}{
		Status:    status,
		ChainMode: s.cfg.Chain.Mode,
		ChainID:   s.cfg.Chain.ChainID,
		RPC:       rpcInfo,
		RateLimit: limiterInfo,
	}

	code := http.StatusOK
	if !overallHealthy {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, resp)
}
