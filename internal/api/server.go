// Package api exposes the hyper engine over REST. Handlers decode input, delegate to the
// position, orchestrator and prediction packages and map their errors to status codes.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/jluxury929-hash/hyper/internal/aggregate"
	"github.com/jluxury929-hash/hyper/internal/apperror"
	"github.com/jluxury929-hash/hyper/internal/circuitbreaker"
	"github.com/jluxury929-hash/hyper/internal/config"
	"github.com/jluxury929-hash/hyper/internal/model"
	"github.com/jluxury929-hash/hyper/internal/notify"
	"github.com/jluxury929-hash/hyper/internal/orchestrator"
	"github.com/jluxury929-hash/hyper/internal/position"
	"github.com/jluxury929-hash/hyper/internal/prediction"
)

// Version is reported by the health endpoints
const Version = "3.0.0"

// maxBodyBytes bounds request bodies
const maxBodyBytes = 1 << 20

// Deps are the components the server delegates to. Breaker and Exporter are optional.
type Deps struct {
	Reader       *position.Reader
	Orchestrator *orchestrator.Orchestrator
	Prediction   *prediction.Client
	Breaker      *circuitbreaker.CircuitBreaker
	Exporter     *notify.Exporter
}

// Server is the HTTP surface of the service
type Server struct {
	config    config.Config
	deps      Deps
	router    *mux.Router
	metrics   *serverMetrics
	limiter   *rateLimiter
	server    *http.Server
	startTime time.Time
}

// NewServer builds the router and middleware chain
func NewServer(cfg config.Config, deps Deps) *Server {
	s := &Server{
		config:    cfg,
		deps:      deps,
		router:    mux.NewRouter(),
		metrics:   registerMetrics(deps.Breaker),
		startTime: time.Now(),
	}
	s.limiter = newRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, s.metrics.rateLimited.Inc)
	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.router
	r.Use(loggingMiddleware, metricsMiddleware(s.metrics), corsMiddleware(s.config.CORSAllowedOrigin))

	r.HandleFunc("/", s.handleRoot).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/circuit", s.handleCircuit).Methods(http.MethodGet, http.MethodPost, http.MethodOptions)
	r.Handle("/metrics", promhttp.HandlerFor(s.metrics.registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	hyper := r.PathPrefix("/api/hyper").Subrouter()
	if s.config.RateLimitRPS > 0 {
		hyper.Use(s.limiter.middleware)
	}
	hyper.HandleFunc("/metrics", s.handleMetrics).Methods(http.MethodGet, http.MethodOptions)
	hyper.HandleFunc("/deposit", s.handleDeposit).Methods(http.MethodPost, http.MethodOptions)
	hyper.HandleFunc("/withdraw", s.handleWithdraw).Methods(http.MethodPost, http.MethodOptions)
	hyper.HandleFunc("/rebalance", s.handleRebalance).Methods(http.MethodPost, http.MethodOptions)
	hyper.HandleFunc("/predict", s.handlePredict).Methods(http.MethodGet, http.MethodOptions)
}

// Handler returns the root handler, for tests and custom listeners
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens on the configured port until Shutdown is called
func (s *Server) Start() error {
	// The write timeout has to outlast the confirmation wait of write requests
	writeTimeout := s.config.ConfirmTimeout + 30*time.Second
	if writeTimeout < s.config.RequestTimeout+15*time.Second {
		writeTimeout = s.config.RequestTimeout + 15*time.Second
	}

	s.server = &http.Server{
		Addr:         ":" + s.config.Port,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: writeTimeout,
		IdleTimeout:  60 * time.Second,
	}

	logrus.Infof("Server starting on port %s", s.config.Port)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("error starting server: %w", err)
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// handleRoot reports liveness and the contracts in use
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "online",
		"message":   "Hyper Earning Engine Backend",
		"version":   Version,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"contracts": map[string]string{
			"hyperEngine": s.config.HyperEngineAddress,
			"aiOptimizer": s.config.AIOptimizerAddress,
		},
	})
}

// handleHealth is a simple health check endpoint
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "OK",
		"version":   Version,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// handleStatus provides detailed service status information
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"status":  "operational",
		"uptime":  time.Since(s.startTime).String(),
		"version": Version,
		"configuration": map[string]interface{}{
			"strategy_count":  s.config.StrategyCount,
			"asset_decimals":  s.config.AssetDecimals,
			"min_deposit":     s.config.MinDeposit.String(),
			"confirm_timeout": s.config.ConfirmTimeout.String(),
			"request_timeout": s.config.RequestTimeout.String(),
			"rate_limit_rps":  s.config.RateLimitRPS,
		},
	}
	if s.deps.Breaker != nil {
		status["circuit_breaker"] = s.deps.Breaker.Snapshot()
	}
	if s.deps.Exporter != nil {
		status["webhook"] = s.deps.Exporter.Status()
	}
	writeJSON(w, http.StatusOK, status)
}

// handleCircuit shows the ledger circuit breaker and resets it on POST ?action=reset
func (s *Server) handleCircuit(w http.ResponseWriter, r *http.Request) {
	if s.deps.Breaker == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "Circuit breaker not enabled"})
		return
	}

	response := map[string]interface{}{}
	if r.Method == http.MethodPost && r.URL.Query().Get("action") == "reset" {
		s.deps.Breaker.Reset()
		logrus.Info("Circuit breaker reset via API")
		response["message"] = "Circuit breaker reset"
	}
	response["state"] = s.deps.Breaker.GetState().String()
	response["details"] = s.deps.Breaker.Snapshot()
	writeJSON(w, http.StatusOK, response)
}

// handleMetrics returns the user's normalized position and reward projections
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.readContext(r)
	defer cancel()

	snapshot, err := s.deps.Reader.ReadSnapshot(ctx, r.URL.Query().Get("userAddress"))
	if err != nil {
		s.errorResponse(w, r, "Failed to fetch metrics", err)
		return
	}
	writeJSON(w, http.StatusOK, newMetricsResponse(aggregate.ComputeMetrics(snapshot)))
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	var req depositRequest
	if !s.decode(w, r, &req) {
		return
	}

	res, err := s.deps.Orchestrator.Deposit(r.Context(), req.WalletAddress, req.Amount)
	s.recordTx(model.TxDeposit, err)
	if err != nil {
		s.errorResponse(w, r, "Failed to deposit", err)
		return
	}
	writeJSON(w, http.StatusOK, newTxResponse(res, "Deposit confirmed"))
}

// handleWithdraw withdraws amount, or the whole principal when amount is omitted or null.
// An explicit amount must be positive: {"amount": 0} is a 400, not a full withdrawal.
func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	var req withdrawRequest
	if !s.decode(w, r, &req) {
		return
	}

	res, err := s.deps.Orchestrator.Withdraw(r.Context(), req.WalletAddress, req.Amount)
	s.recordTx(model.TxWithdraw, err)
	if err != nil {
		s.errorResponse(w, r, "Failed to withdraw", err)
		return
	}
	writeJSON(w, http.StatusOK, newTxResponse(res, "Withdrawal confirmed"))
}

func (s *Server) handleRebalance(w http.ResponseWriter, r *http.Request) {
	var req rebalanceRequest
	if !s.decode(w, r, &req) {
		return
	}

	res, err := s.deps.Orchestrator.Rebalance(r.Context(), req.WalletAddress)
	s.recordTx(model.TxRebalance, err)
	if err != nil {
		s.errorResponse(w, r, "Failed to rebalance", err)
		return
	}
	writeJSON(w, http.StatusOK, rebalanceResponse{
		Success:         true,
		ID:              res.ID,
		Message:         "AI rebalanced portfolio",
		TransactionHash: res.TxHash.Hex(),
		BlockNumber:     res.BlockNumber,
		NewAPY:          res.NewAPY.InexactFloat64(),
		Optimization:    "Maximum yield achieved",
	})
}

// handlePredict returns projected returns; a missing, non-numeric or non-positive days
// parameter means 30 days
func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.readContext(r)
	defer cancel()

	days, err := strconv.Atoi(r.URL.Query().Get("days"))
	if err != nil {
		days = 0
	}

	p, err := s.deps.Prediction.Predict(ctx, r.URL.Query().Get("userAddress"), days)
	if err != nil {
		s.errorResponse(w, r, "Failed to predict", err)
		return
	}
	writeJSON(w, http.StatusOK, newPredictResponse(p))
}

// readContext bounds read-only requests by the configured request timeout
func (s *Server) readContext(r *http.Request) (context.Context, context.CancelFunc) {
	if s.config.RequestTimeout <= 0 {
		return context.WithCancel(r.Context())
	}
	return context.WithTimeout(r.Context(), s.config.RequestTimeout)
}

// decode reads a JSON body into dst, answering 400 itself when the body is unusable
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst); err != nil {
		s.errorResponse(w, r, "Invalid request body", apperror.Validation("invalid request body: %v", err))
		return false
	}
	return true
}

func (s *Server) recordTx(kind model.TxKind, err error) {
	outcome := "confirmed"
	if err != nil {
		outcome = string(apperror.KindOf(err))
	}
	s.metrics.txOutcomes.WithLabelValues(string(kind), outcome).Inc()
}

// errorResponse writes a classified error. Validation details are returned as the error
// message itself; other failures keep the operation summary and put the cause in details.
func (s *Server) errorResponse(w http.ResponseWriter, r *http.Request, summary string, err error) {
	kind := apperror.KindOf(err)
	status := apperror.HTTPStatus(kind)
	if errors.Is(err, circuitbreaker.ErrOpen) {
		status = http.StatusServiceUnavailable
	}

	resp := errorResponse{
		Success: false,
		Error:   summary,
		Kind:    string(kind),
		Details: err.Error(),
	}
	var appErr *apperror.Error
	if errors.As(err, &appErr) {
		resp.Details = appErr.Detail
		resp.TransactionHash = appErr.TxHash
		if kind == apperror.KindValidation {
			resp.Error = appErr.Detail
		}
	}

	s.metrics.errorKinds.WithLabelValues(string(kind)).Inc()
	logrus.WithFields(logrus.Fields{
		"request_id": requestID(r.Context()),
		"path":       r.URL.Path,
		"kind":       kind,
		"status":     status,
		"error":      err,
	}).Warn(summary)

	writeJSON(w, status, resp)
}
