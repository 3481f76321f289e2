package webserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"gatewarden/internal/config"
	"gatewarden/internal/metrics"
	"gatewarden/internal/policy"
	"gatewarden/internal/token"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

type Server struct {
	cfg     config.IngestConfig
	engine  *policy.Engine
	tokens  *token.Manager
	limiter *rateLimiter
	logger  *zap.Logger
}

func New(cfg config.IngestConfig, engine *policy.Engine, tokens *token.Manager, logger *zap.Logger) *Server {
	return &Server{
		cfg:     cfg,
		engine:  engine,
		tokens:  tokens,
		limiter: newRateLimiter(cfg.RatePerMinute, cfg.Burst),
		logger:  logger,
	}
}

type verifyRequest struct {
	HWID        string  `json:"hwid"`
	IP          string  `json:"ip"`
	VPNScore    float64 `json:"vpn_score"`
	Username    string  `json:"username"`
	DisplayName string  `json:"display_name"`
}

type verifyResponse struct {
	RequestID string `json:"request_id"`
	Decision  string `json:"decision,omitempty"`
	Message   string `json:"message,omitempty"`
	Error     string `json:"error,omitempty"`
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/verify", s.handleVerify)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())
	return mux
}

func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("ingest server started", zap.String("addr", s.cfg.Addr))
	err := server.ListenAndServe()
	s.limiter.Stop()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("ingest server: %w", err)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	defer func() {
		metrics.IngestRequestDuration.WithLabelValues("verify").Observe(time.Since(started).Seconds())
	}()

	requestID := uuid.NewString()
	clientIP := s.clientIP(r)

	if !s.limiter.allow(clientIP) {
		metrics.IngestRateLimited.WithLabelValues("verify").Inc()
		w.Header().Set("Retry-After", "60")
		s.respond(w, http.StatusTooManyRequests, verifyResponse{RequestID: requestID, Error: "rate limit exceeded"})
		return
	}

	if s.tokens == nil {
		s.respond(w, http.StatusServiceUnavailable, verifyResponse{RequestID: requestID, Error: "verification links are not configured"})
		return
	}
	claims, err := s.tokens.Verify(bearerToken(r))
	if err != nil {
		s.respond(w, http.StatusUnauthorized, verifyResponse{RequestID: requestID, Error: "invalid or expired token"})
		return
	}

	var req verifyRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respond(w, http.StatusBadRequest, verifyResponse{RequestID: requestID, Error: "invalid JSON body"})
		return
	}
	if req.HWID == "" {
		s.respond(w, http.StatusBadRequest, verifyResponse{RequestID: requestID, Error: "hwid is required"})
		return
	}
	ip := req.IP
	if ip == "" {
		ip = clientIP
	}

	outcome, err := s.engine.Submit(r.Context(), policy.Submission{
		GuildID:     claims.GuildID,
		UserID:      claims.UserID,
		HWID:        req.HWID,
		IP:          ip,
		VPNScore:    req.VPNScore,
		Username:    req.Username,
		DisplayName: req.DisplayName,
	})
	if err != nil {
		if errors.Is(err, policy.ErrStorageIO) {
			s.logger.Error("verification submit failed", zap.String("request_id", requestID), zap.Error(err))
			s.respond(w, http.StatusServiceUnavailable, verifyResponse{RequestID: requestID, Error: "temporarily unavailable"})
			return
		}
		s.respond(w, http.StatusBadRequest, verifyResponse{RequestID: requestID, Error: err.Error()})
		return
	}

	metrics.SubmissionsTotal.WithLabelValues(string(outcome.Decision)).Inc()
	s.logger.Info("verification processed",
		zap.String("request_id", requestID),
		zap.String("guild_id", outcome.GuildID),
		zap.String("user_id", outcome.UserID),
		zap.String("decision", string(outcome.Decision)),
	)
	s.respond(w, http.StatusOK, verifyResponse{
		RequestID: requestID,
		Decision:  string(outcome.Decision),
		Message:   outcome.Message,
	})
}

func (s *Server) respond(w http.ResponseWriter, status int, payload verifyResponse) {
	metrics.IngestRequestsTotal.WithLabelValues(strconv.Itoa(status)).Inc()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func (s *Server) clientIP(r *http.Request) string {
	if s.cfg.TrustForwardedFor {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			if idx := strings.IndexByte(xff, ','); idx != -1 {
				return strings.TrimSpace(xff[:idx])
			}
			return strings.TrimSpace(xff)
		}
		if xri := r.Header.Get("X-Real-IP"); xri != "" {
			return strings.TrimSpace(xri)
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return header[len(prefix):]
	}
	return ""
}
