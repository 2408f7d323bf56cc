// Package server exposes the bridge activity reconciliation over HTTP and
// hosts the service's health, metrics and control-plane surfaces.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/ChainSafe/canton-middleware-sub001/auth"
	"github.com/ChainSafe/canton-middleware-sub001/config"
	"github.com/ChainSafe/canton-middleware-sub001/processor"
)

// Server is the HTTP front of the service. Every activity request runs one
// full reconciliation pass; concurrent requests share only the credential
// provider and the processor's metrics, both of which are safe for that.
type Server struct {
	cfg       *config.Config
	logger    *zap.Logger
	proc      *processor.BridgeProcessor
	provider  *auth.TokenProvider
	startTime time.Time

	httpServer *http.Server
}

// NewServer wires the routes and builds the HTTP server.
func NewServer(cfg *config.Config, logger *zap.Logger, proc *processor.BridgeProcessor, provider *auth.TokenProvider) *Server {
	s := &Server{
		cfg:       cfg,
		logger:    logger,
		proc:      proc,
		provider:  provider,
		startTime: time.Now(),
	}

	router := mux.NewRouter()
	router.HandleFunc("/api/v1/activity", s.handleActivity).Methods("GET")
	router.HandleFunc("/api/v1/holdings", s.handleHoldings).Methods("GET")
	router.HandleFunc("/health", s.handleHealth).Methods("GET")
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Service.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Service.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.Service.WriteTimeoutSeconds) * time.Second,
	}

	return s
}

// Start serves HTTP until Shutdown. Blocks.
func (s *Server) Start() error {
	s.logger.Info("API server listening", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	runID := uuid.New().String()
	logger := s.logger.With(zap.String("run_id", runID))

	lookback, limit, debug, format, err := s.parseActivityParams(r)
	if err != nil {
		observeActivityRequest("bad_request", time.Since(started))
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), time.Duration(s.cfg.Service.RequestTimeoutSeconds)*time.Second)
	defer cancel()

	authCtx, err := s.provider.Context(ctx)
	if err != nil {
		s.writeActivityError(w, logger, started, err)
		return
	}
	setTokenRefreshes(s.provider.Refreshes())

	ledgerEnd, err := s.proc.LedgerEnd(authCtx)
	if err != nil {
		s.writeActivityError(w, logger, started, err)
		return
	}

	resp := &ActivityResponse{
		RunID:        runID,
		Network:      s.cfg.Canton.RPCURL,
		Party:        s.proc.Party(),
		LedgerOffset: ledgerEnd,
		JWTSubject:   s.provider.Subject(),
		GeneratedAt:  time.Now().UTC(),
		Deposits:     []DepositView{},
		Withdrawals:  []WithdrawalView{},
		Holdings:     []processor.HoldingInfo{},
	}

	if ledgerEnd == 0 {
		resp.LedgerEmpty = true
		resp.Summary = buildSummary(resp.Deposits, resp.Withdrawals, resp.Holdings)
		resp.ElapsedMS = time.Since(started).Milliseconds()
		observeActivityRequest("empty", time.Since(started))
		s.writeActivityResponse(w, format, resp)
		return
	}

	startOffset := ledgerEnd - lookback
	if startOffset < 0 {
		startOffset = 0
	}

	logger.Info("activity request",
		zap.Int64("ledger_end", ledgerEnd),
		zap.Int64("begin_exclusive", startOffset),
		zap.Int64("lookback", lookback),
		zap.Int("limit", limit))

	result, err := s.proc.CollectActivity(authCtx, processor.ActivityRequest{
		BeginExclusive: startOffset,
		EndInclusive:   ledgerEnd,
		Limit:          limit,
		CaptureFields:  debug,
	})
	if err != nil {
		s.writeActivityError(w, logger, started, err)
		return
	}

	holdings, holdingDumps, err := s.proc.CollectHoldings(authCtx, ledgerEnd, debug)
	if err != nil {
		s.writeActivityError(w, logger, started, err)
		return
	}

	resp.Deposits = depositViews(result.Deposits)
	resp.Withdrawals = withdrawalViews(result.Withdrawals)
	resp.Holdings = holdings
	resp.Summary = buildSummary(resp.Deposits, resp.Withdrawals, resp.Holdings)
	resp.TruncatedByDeadline = result.Truncated
	if debug {
		resp.TemplateCounts = result.TemplateCounts
		resp.EventDumps = append(result.FieldDumps, holdingDumps...)
	}
	resp.ElapsedMS = time.Since(started).Milliseconds()

	updateRunMetrics(result.EventsSeen, len(resp.Deposits), len(resp.Withdrawals), len(holdings), ledgerEnd)
	observeActivityRequest("ok", time.Since(started))

	s.writeActivityResponse(w, format, resp)
}

func (s *Server) handleHoldings(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "json"
	}
	if format != "json" && format != "text" {
		observeHoldingsRequest("bad_request")
		writeError(w, http.StatusBadRequest, "format must be json or text")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), time.Duration(s.cfg.Service.RequestTimeoutSeconds)*time.Second)
	defer cancel()

	authCtx, err := s.provider.Context(ctx)
	if err != nil {
		s.writeHoldingsError(w, err)
		return
	}
	setTokenRefreshes(s.provider.Refreshes())

	ledgerEnd, err := s.proc.LedgerEnd(authCtx)
	if err != nil {
		s.writeHoldingsError(w, err)
		return
	}

	holdings := []processor.HoldingInfo{}
	if ledgerEnd > 0 {
		holdings, _, err = s.proc.CollectHoldings(authCtx, ledgerEnd, false)
		if err != nil {
			s.writeHoldingsError(w, err)
			return
		}
	}

	resp := &HoldingsResponse{
		Network:      s.cfg.Canton.RPCURL,
		Party:        s.proc.Party(),
		LedgerOffset: ledgerEnd,
		GeneratedAt:  time.Now().UTC(),
		Holdings:     holdings,
	}
	resp.HoldingCount = len(holdings)
	resp.TotalHeld = buildSummary(nil, nil, holdings).TotalHeld

	outcome := "ok"
	if ledgerEnd == 0 {
		outcome = "empty"
	}
	observeHoldingsRequest(outcome)
	setHoldingsLastRun(len(holdings))

	if format == "text" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		writeTextHoldingsReport(w, resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	metrics := s.proc.GetMetrics()
	health := map[string]interface{}{
		"status":          "healthy",
		"service":         "canton-bridge-activity",
		"uptime":          time.Since(s.startTime).String(),
		"party":           s.proc.Party(),
		"metrics":         metrics,
		"token_refreshes": s.provider.Refreshes(),
	}
	if subject := s.provider.Subject(); subject != "" {
		health["jwt_subject"] = subject
	}
	writeJSON(w, http.StatusOK, health)
}

// parseActivityParams validates the query parameters of an activity request,
// falling back to the configured defaults.
func (s *Server) parseActivityParams(r *http.Request) (lookback int64, limit int, debug bool, format string, err error) {
	q := r.URL.Query()

	lookback = s.cfg.Service.DefaultLookback
	if v := q.Get("lookback"); v != "" {
		lookback, err = strconv.ParseInt(v, 10, 64)
		if err != nil || lookback <= 0 {
			return 0, 0, false, "", fmt.Errorf("lookback must be a positive integer")
		}
	}

	limit = s.cfg.Service.DefaultLimit
	if v := q.Get("limit"); v != "" {
		limit, err = strconv.Atoi(v)
		if err != nil || limit <= 0 {
			return 0, 0, false, "", fmt.Errorf("limit must be a positive integer")
		}
	}
	if limit > s.cfg.Service.MaxLimit {
		limit = s.cfg.Service.MaxLimit
	}

	debug = q.Get("debug") == "1" || q.Get("debug") == "true"

	format = q.Get("format")
	if format == "" {
		format = "json"
	}
	if format != "json" && format != "text" {
		return 0, 0, false, "", fmt.Errorf("format must be json or text")
	}

	return lookback, limit, debug, format, nil
}

// queryErrorStatus maps the error taxonomy onto an HTTP status and a metrics
// outcome: credential and ledger failures are upstream problems (502),
// anything else is internal.
func queryErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, auth.ErrAuthentication):
		return http.StatusBadGateway, "auth_error"
	case errors.Is(err, processor.ErrStream):
		return http.StatusBadGateway, "stream_error"
	default:
		return http.StatusInternalServerError, "error"
	}
}

func (s *Server) writeActivityError(w http.ResponseWriter, logger *zap.Logger, started time.Time, err error) {
	status, outcome := queryErrorStatus(err)
	if outcome == "stream_error" {
		incrementStreamErrors()
	}
	observeActivityRequest(outcome, time.Since(started))
	logger.Error("activity request failed", zap.String("outcome", outcome), zap.Error(err))
	writeError(w, status, err.Error())
}

func (s *Server) writeHoldingsError(w http.ResponseWriter, err error) {
	status, outcome := queryErrorStatus(err)
	if outcome == "stream_error" {
		incrementStreamErrors()
	}
	observeHoldingsRequest(outcome)
	s.logger.Error("holdings request failed", zap.String("outcome", outcome), zap.Error(err))
	writeError(w, status, err.Error())
}

func (s *Server) writeActivityResponse(w http.ResponseWriter, format string, resp *ActivityResponse) {
	if format == "text" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		writeTextReport(w, resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
