package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"dspacegw/internal/application"
	"dspacegw/internal/config"
	"dspacegw/internal/domain"
	"dspacegw/internal/infrastructure/ratelimit"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const maxBodyBytes = 1 << 20

// JournalStore is the read side of the activity journal.
type JournalStore interface {
	application.JournalReader
	Ping(ctx context.Context) error
}

type ChainStatus interface {
	BlockNumber(ctx context.Context) (uint64, error)
}

type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
}

type ServerConfig struct {
	Config    config.Config
	Account   domain.Account
	Ops       application.Operations
	Chain     ChainStatus
	Journal   JournalStore
	Metrics   *Metrics
	Limiter   *ratelimit.PeerLimiter
	BuildInfo BuildInfo
	Logger    *slog.Logger

	// ReceiptFormat names the renderer behind Receipt, reported by /state.
	ReceiptFormat string
}

type Server struct {
	cfg       config.Config
	account   domain.Account
	ops       application.Operations
	chain     ChainStatus
	journal   JournalStore
	metrics   *Metrics
	limiter   *ratelimit.PeerLimiter
	buildInfo BuildInfo
	logger    *slog.Logger

	receiptFormat string
}

func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Ops == nil || cfg.Chain == nil {
		return nil, errors.New("http server dependencies must not be nil")
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = NewMetrics()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		cfg:       cfg.Config,
		account:   cfg.Account,
		ops:       cfg.Ops,
		chain:     cfg.Chain,
		journal:   cfg.Journal,
		metrics:   metrics,
		limiter:   cfg.Limiter,
		buildInfo: cfg.BuildInfo,
		logger:    logger,

		receiptFormat: cfg.ReceiptFormat,
	}, nil
}

func (s *Server) MetricsObserver() *Metrics {
	return s.metrics
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)
	mux.HandleFunc("/state", s.handleState)
	mux.HandleFunc("/transactions", s.handleTransactions)
	mux.Handle("/metrics", promhttp.HandlerFor(s.metrics.Registry(), promhttp.HandlerOpts{}))
	mux.HandleFunc("/version", s.handleVersion)
	mux.Handle("/v1/call", s.operation("Call", s.handleCall))
	mux.Handle("/v1/send", s.operation("Send", s.handleSend))
	mux.Handle("/v1/receipt", s.operation("Receipt", s.handleReceipt))
	mux.Handle("/v1/accounts", s.operation("CreateAccount", s.handleCreateAccount))
	return mux
}

// Serve handles requests on lis until ctx is done.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	server := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	if err := server.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if _, err := s.chain.BlockNumber(ctx); err != nil {
		respondError(w, http.StatusServiceUnavailable, "chain not ready")
		return
	}
	if s.journal != nil {
		if err := s.journal.Ping(ctx); err != nil {
			respondError(w, http.StatusServiceUnavailable, "journal not ready")
			return
		}
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	snap := s.metrics.Snapshot()
	respondJSON(w, http.StatusOK, map[string]any{
		"account": map[string]string{
			"name":    s.account.Name,
			"address": s.account.Address.Hex(),
			"crypto":  s.account.Crypto,
		},
		"uptime_seconds":   int64(time.Since(snap.StartTime).Seconds()),
		"bridge_in_flight": snap.BridgeInFlight,
		"config": map[string]any{
			"rpc_addr":       s.cfg.RPCAddr,
			"executor_addr":  s.cfg.ExecutorAddr,
			"grpc_addr":      s.cfg.GRPCAddr,
			"http_addr":      s.cfg.HTTPAddr,
			"features":       s.cfg.Features(),
			"bridge_timeout": s.cfg.BridgeTimeout.String(),
			"receipt_cache":  s.cfg.RedisAddr != "",
			"receipt_format": s.receiptFormat,
			"journal":        s.journal != nil,
			"kafka_topic":    kafkaTopic(s.cfg),
		},
	})
}

func kafkaTopic(cfg config.Config) string {
	if len(cfg.KafkaBrokers) == 0 {
		return ""
	}
	return cfg.KafkaTopic
}

type submissionView struct {
	TxHash      string    `json:"tx_hash"`
	From        string    `json:"from"`
	To          string    `json:"to"`
	Value       string    `json:"value"`
	DataSize    int       `json:"data_size"`
	SubmittedAt time.Time `json:"submitted_at"`
}

func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		respondError(w, http.StatusNotFound, "journal disabled")
		return
	}
	filter, err := parseSubmissionFilter(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	submissions, err := s.journal.QuerySubmissions(r.Context(), filter)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "query failed")
		return
	}
	views := make([]submissionView, 0, len(submissions))
	for _, submission := range submissions {
		views = append(views, submissionView(submission))
	}
	respondJSON(w, http.StatusOK, views)
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.buildInfo)
}

type callBody struct {
	To   string `json:"to"`
	Data string `json:"data"`
}

type sendBody struct {
	To    string `json:"to"`
	Data  string `json:"data"`
	Value string `json:"value"`
}

type receiptBody struct {
	TxHash string `json:"tx_hash"`
}

type accountBody struct {
	ID string `json:"id"`
}

func (s *Server) handleCall(r *http.Request) (string, error) {
	var body callBody
	if err := decodeBody(r, &body); err != nil {
		return "", err
	}
	return s.ops.Call(r.Context(), application.CallRequest{To: body.To, Data: body.Data})
}

func (s *Server) handleSend(r *http.Request) (string, error) {
	var body sendBody
	if err := decodeBody(r, &body); err != nil {
		return "", err
	}
	return s.ops.Send(r.Context(), application.SendRequest{To: body.To, Data: body.Data, Value: body.Value})
}

func (s *Server) handleReceipt(r *http.Request) (string, error) {
	var body receiptBody
	if err := decodeBody(r, &body); err != nil {
		return "", err
	}
	return s.ops.Receipt(r.Context(), application.ReceiptRequest{TxHash: body.TxHash})
}

func (s *Server) handleCreateAccount(r *http.Request) (string, error) {
	var body accountBody
	if err := decodeBody(r, &body); err != nil {
		return "", err
	}
	return s.ops.CreateAccount(r.Context(), application.CreateAccountRequest{ID: body.ID})
}

type badRequestError struct {
	msg string
}

func (e *badRequestError) Error() string {
	return e.msg
}

func decodeBody(r *http.Request, dst any) error {
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return &badRequestError{msg: "invalid request body: " + err.Error()}
	}
	return nil
}

// operation wraps a gateway operation with method, rate limit, logging and
// metrics handling.
func (s *Server) operation(op string, handle func(*http.Request) (string, error)) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		code := s.serveOperation(w, r, handle)
		elapsed := time.Since(started)
		s.metrics.OnRequest("http", op, strconv.Itoa(code), elapsed)
		if code >= http.StatusBadRequest {
			s.logger.Warn("http request failed", "op", op, "peer", r.RemoteAddr, "status", code, "duration", elapsed)
		} else {
			s.logger.Debug("http request", "op", op, "peer", r.RemoteAddr, "duration", elapsed)
		}
	})
}

func (s *Server) serveOperation(w http.ResponseWriter, r *http.Request, handle func(*http.Request) (string, error)) (code int) {
	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Error("http handler panic", "path", r.URL.Path, "panic", rec)
			code = http.StatusInternalServerError
			respondError(w, code, "internal error")
		}
	}()
	if r.Method != http.MethodPost {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return http.StatusMethodNotAllowed
	}
	if !s.limiter.Allow(r.RemoteAddr) {
		respondError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return http.StatusTooManyRequests
	}
	result, err := handle(r)
	if err != nil {
		code = statusFor(err)
		respondError(w, code, err.Error())
		return code
	}
	respondJSON(w, http.StatusOK, map[string]string{"result": result})
	return http.StatusOK
}

func statusFor(err error) int {
	var badRequest *badRequestError
	if errors.As(err, &badRequest) {
		return http.StatusBadRequest
	}
	switch application.Classify(err) {
	case application.KindInvalidInput:
		return http.StatusBadRequest
	case application.KindNotFound:
		return http.StatusNotFound
	case application.KindConflict:
		return http.StatusConflict
	case application.KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func parseSubmissionFilter(r *http.Request) (application.SubmissionQueryFilter, error) {
	query := r.URL.Query()
	limit, err := parseLimit(r)
	if err != nil {
		return application.SubmissionQueryFilter{}, err
	}
	since, err := parseTimeParam(query.Get("since"), "since")
	if err != nil {
		return application.SubmissionQueryFilter{}, err
	}
	until, err := parseTimeParam(query.Get("until"), "until")
	if err != nil {
		return application.SubmissionQueryFilter{}, err
	}
	return application.SubmissionQueryFilter{
		From:   strings.ToLower(query.Get("from")),
		To:     strings.ToLower(query.Get("to")),
		TxHash: strings.ToLower(query.Get("tx_hash")),
		Since:  since,
		Until:  until,
		Limit:  application.NormalizeLimit(limit),
	}, nil
}

func parseLimit(r *http.Request) (int, error) {
	if raw := r.URL.Query().Get("limit"); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value < 0 {
			return 0, errors.New("invalid limit")
		}
		return value, nil
	}
	return 100, nil
}

// parseTimeParam accepts RFC 3339 timestamps or unix seconds.
func parseTimeParam(raw, key string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	if seconds, err := strconv.ParseInt(raw, 10, 64); err == nil {
		value := time.Unix(seconds, 0).UTC()
		return &value, nil
	}
	value, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, errors.New("invalid " + key)
	}
	return &value, nil
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
