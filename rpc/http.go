package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"stakepool/core"
	"stakepool/core/types"
	"stakepool/observability"
	telemetry "stakepool/observability/otel"
	"stakepool/rpc/middleware"
	"stakepool/storage/eventlog"
)

const (
	maxRequestBytes = 1 << 20 // 1 MiB
	shutdownTimeout = 10 * time.Second
)

// EventLog is the read side of the event journal.
type EventLog interface {
	List(ctx context.Context, filter eventlog.Filter) ([]eventlog.EventRecord, error)
	Receipt(ctx context.Context, txHash string) (*types.Receipt, error)
}

type ServerConfig struct {
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	Auth           middleware.AuthConfig
	RateLimit      middleware.RateLimit
	AllowedOrigins []string
}

type methodHandler func(r *http.Request, params []json.RawMessage) (interface{}, *methodError)

type method struct {
	handler methodHandler
	write   bool
}

// Server exposes the node over JSON-RPC 2.0 and streams committed events over
// websockets.
type Server struct {
	node    *core.Node
	journal EventLog
	hub     *Hub
	cfg     ServerConfig
	auth    *middleware.Authenticator
	limiter *middleware.RateLimiter
	logger  *slog.Logger
	tracer  trace.Tracer
	methods map[string]method
	handler http.Handler

	serverMu   sync.Mutex
	httpServer *http.Server
}

// NewServer wires the RPC surface around node. journal may be nil, in which
// case the history methods report the journal as unavailable.
func NewServer(node *core.Node, journal EventLog, cfg ServerConfig, logger *slog.Logger) (*Server, error) {
	if node == nil {
		return nil, errors.New("rpc: node required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Auth.Enabled && cfg.Auth.HMACSecret == "" {
		return nil, middleware.ErrAuthNotConfigured
	}
	s := &Server{
		node:    node,
		journal: journal,
		hub:     NewHub(logger),
		cfg:     cfg,
		auth:    middleware.NewAuthenticator(cfg.Auth, logger),
		logger:  logger,
		tracer:  telemetry.Tracer(),
	}
	s.limiter = middleware.NewRateLimiter(cfg.RateLimit, s.rejectThrottled)
	s.methods = map[string]method{
		"staking_sendTransaction":  {handler: s.handleSendTransaction, write: true},
		"staking_getPool":          {handler: s.handleGetPool},
		"staking_getStake":         {handler: s.handleGetStake},
		"staking_previewRewards":   {handler: s.handlePreviewRewards},
		"staking_getReserve":       {handler: s.handleGetReserve},
		"staking_getBalance":       {handler: s.handleGetBalance},
		"staking_getNonce":         {handler: s.handleGetNonce},
		"staking_programAddresses": {handler: s.handleProgramAddresses},
		"staking_listEvents":       {handler: s.handleListEvents},
		"staking_getReceipt":       {handler: s.handleGetReceipt},
	}
	s.handler = s.buildRouter()
	return s, nil
}

// Hub returns the websocket fan-out. Register it as a node emitter to stream
// committed events.
func (s *Server) Hub() *Hub { return s.hub }

// Handler exposes the configured HTTP router.
func (s *Server) Handler() http.Handler { return s.handler }

func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(middleware.RequestLogger(s.logger))
	r.Use(middleware.CORS(middleware.CORSConfig{AllowedOrigins: s.cfg.AllowedOrigins}))

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/ws", s.handleEventsWS)
	r.Group(func(rpc chi.Router) {
		rpc.Use(s.limiter.Middleware)
		rpc.Post("/", s.handle)
		rpc.Post("/rpc", s.handle)
	})
	return otelhttp.NewHandler(r, "stakingd.rpc")
}

// Serve accepts connections on listener until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadTimeout:       s.cfg.ReadTimeout,
		ReadHeaderTimeout: s.cfg.ReadTimeout,
		WriteTimeout:      s.cfg.WriteTimeout,
		IdleTimeout:       s.cfg.IdleTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	s.serverMu.Lock()
	s.httpServer = srv
	s.serverMu.Unlock()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(listener)
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		s.hub.Close()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("rpc: shutdown: %w", err)
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "ok",
		"chainId": s.node.ChainID(),
	})
}

func (s *Server) rejectThrottled(w http.ResponseWriter, _ *http.Request) {
	observability.RPCMetrics().RecordThrottle("rate_limit")
	w.Header().Set("Content-Type", "application/json")
	writeError(w, http.StatusTooManyRequests, nil, codeRateLimited, "rate limit exceeded", nil)
}

// handle is the main request handler that routes to specific handlers.
func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	reader := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	defer func() {
		_ = reader.Close()
	}()

	w.Header().Set("Content-Type", "application/json")

	body, err := io.ReadAll(reader)
	if err != nil {
		status := http.StatusBadRequest
		message := "failed to read request body"
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			status = http.StatusRequestEntityTooLarge
			message = fmt.Sprintf("request body exceeds %d bytes", maxRequestBytes)
		}
		writeError(w, status, nil, codeInvalidRequest, message, err.Error())
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		writeError(w, http.StatusBadRequest, nil, codeInvalidRequest, "request body required", nil)
		return
	}

	req := &RPCRequest{}
	if err := json.Unmarshal(body, req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON payload", err.Error())
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "unsupported jsonrpc version", req.JSONRPC)
		return
	}
	if req.Method == "" {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "method required", nil)
		return
	}
	m, ok := s.methods[req.Method]
	if !ok {
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, fmt.Sprintf("unknown method %s", req.Method), nil)
		return
	}

	start := time.Now()
	ctx, span := s.tracer.Start(r.Context(), req.Method, trace.WithAttributes(
		attribute.String("rpc.system", "jsonrpc"),
		attribute.String("rpc.method", req.Method),
	))
	defer span.End()
	r = r.WithContext(ctx)

	var (
		result interface{}
		failed *methodError
	)
	if m.write {
		if authErr := s.auth.Verify(r); authErr != nil {
			failed = newMethodError(http.StatusUnauthorized, codeUnauthorized, authErr.Error(), nil)
		}
	}
	if failed == nil {
		result, failed = m.handler(r, req.Params)
	}

	errCode := 0
	if failed != nil {
		errCode = failed.err.Code
		span.SetStatus(codes.Error, failed.err.Message)
		span.SetAttributes(attribute.Int("rpc.jsonrpc.error_code", errCode))
	}
	observability.RPCMetrics().Observe(req.Method, errCode, time.Since(start))
	if failed != nil {
		writeError(w, failed.status, req.ID, failed.err.Code, failed.err.Message, failed.err.Data)
		return
	}
	writeResult(w, req.ID, result)
}
