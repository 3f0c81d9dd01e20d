package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	holderlottery "holderdrop/contexts/treasury-rewards/holder-lottery"
	domainerrors "holderdrop/contexts/treasury-rewards/holder-lottery/domain/errors"
	lotteryhttp "holderdrop/contexts/treasury-rewards/holder-lottery/transport/http"

	httpSwagger "github.com/swaggo/http-swagger"
	"golang.org/x/time/rate"
	_ "holderdrop/internal/platform/httpserver/docs"
)

const DefaultTriggerMinInterval = 10 * time.Second

type Options struct {
	// TriggerMinInterval spaces trigger invocations that reach the
	// orchestrator. Zero uses DefaultTriggerMinInterval; negative disables it.
	TriggerMinInterval time.Duration
}

type Server struct {
	mux            *http.ServeMux
	httpServer     *http.Server
	logger         *slog.Logger
	addr           string
	lottery        holderlottery.Module
	triggerLimiter *rate.Limiter
}

func New(
	lottery holderlottery.Module,
	logger *slog.Logger,
	addr string,
	opts Options,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if addr == "" {
		addr = ":8080"
	}

	s := &Server{
		mux:     http.NewServeMux(),
		logger:  logger,
		addr:    addr,
		lottery: lottery,
	}
	switch interval := opts.TriggerMinInterval; {
	case interval == 0:
		s.triggerLimiter = rate.NewLimiter(rate.Every(DefaultTriggerMinInterval), 1)
	case interval > 0:
		s.triggerLimiter = rate.NewLimiter(rate.Every(interval), 1)
	}
	s.registerRoutes()
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) Start() error {
	s.logger.Info("http server starting",
		"event", "http_server_starting",
		"module", "internal/platform/httpserver",
		"layer", "platform",
		"addr", s.addr,
	)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) registerRoutes() {
	s.mux.Handle("/swagger/", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))
	s.mux.HandleFunc("GET /healthz", s.handleHealth)

	s.mux.Handle("POST /v1/distributions/trigger", s.limitTrigger(http.HandlerFunc(s.handleTrigger)))
	s.mux.HandleFunc("GET /v1/distributions/status", s.handleStatus)

	// Legacy claim route: GET runs the trigger, POST is read-only status.
	s.mux.Handle("GET /api/claim", s.limitTrigger(http.HandlerFunc(s.handleTrigger)))
	s.mux.HandleFunc("POST /api/claim", s.handleStatus)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleTrigger(w http.ResponseWriter, r *http.Request) {
	resp, err := s.lottery.Handler.TriggerHandler(r.Context())
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp, err := s.lottery.Handler.StatusHandler(r.Context())
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) limitTrigger(next http.Handler) http.Handler {
	if s.triggerLimiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.triggerLimiter.Allow() {
			s.logger.Warn("trigger rate limited",
				"event", "http_trigger_rate_limited",
				"module", "internal/platform/httpserver",
				"layer", "platform",
				"remote_addr", r.RemoteAddr,
			)
			s.writeError(w, http.StatusTooManyRequests, "rate_limited", "trigger called too frequently")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domainerrors.ErrMalformedResponse):
		s.writeError(w, http.StatusBadGateway, "malformed_upstream_response", err.Error())
	case errors.Is(err, domainerrors.ErrUpstreamUnavailable):
		s.writeError(w, http.StatusBadGateway, "upstream_unavailable", err.Error())
	case errors.Is(err, domainerrors.ErrSubmissionFailed):
		s.writeError(w, http.StatusBadGateway, "submission_failed", err.Error())
	case errors.Is(err, domainerrors.ErrInsufficientFunds):
		s.writeError(w, http.StatusInternalServerError, "insufficient_funds", err.Error())
	case errors.Is(err, domainerrors.ErrConfirmationTimeout):
		s.writeError(w, http.StatusGatewayTimeout, "confirmation_timeout", err.Error())
	case errors.Is(err, domainerrors.ErrDuplicateWindowRecord):
		s.writeError(w, http.StatusInternalServerError, "reconciliation_required", err.Error())
	case errors.Is(err, domainerrors.ErrInvalidConfiguration):
		s.writeError(w, http.StatusInternalServerError, "invalid_configuration", err.Error())
	case errors.Is(err, domainerrors.ErrWindowInProgress):
		s.writeError(w, http.StatusConflict, "in_progress", err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		s.writeError(w, http.StatusServiceUnavailable, "request_cancelled", err.Error())
	default:
		s.writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, code string, message string) {
	timing := s.lottery.Handler.WindowTiming()
	writeJSON(w, status, lotteryhttp.ErrorResponse{
		Success:      false,
		Error:        message,
		Code:         code,
		WindowTiming: &timing,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
