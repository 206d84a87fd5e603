package etsignage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/julienschmidt/httprouter"

	"github.com/Retexc/ETSignage/formatter"
	"github.com/Retexc/ETSignage/internal/logging"
)

// Server exposes the service over HTTP.
type Server struct {
	svc     *Service
	http    *http.Server
	logger  *slog.Logger
	metrics http.Handler
}

// NewServer routes the API on addr. metrics may be nil to disable /metrics.
func NewServer(addr string, svc *Service, metrics http.Handler, logger *slog.Logger) *Server {
	s := &Server{svc: svc, logger: logging.OrDefault(logger), metrics: metrics}
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Routes returns the API handler.
func (s *Server) Routes() http.Handler {
	router := httprouter.New()
	router.GET("/api/health", s.handleHealth)
	router.GET("/api/data", s.handleData)
	router.GET("/api/arrivals/:feed", s.handleFeedArrivals)
	if s.metrics != nil {
		router.Handler(http.MethodGet, "/metrics", s.metrics)
	}
	return s.logRequests(router)
}

// Start serves in the background.
func (s *Server) Start() {
	go func() {
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.LogError(s.logger, "Server error", err)
			os.Exit(1)
		}
	}()
	s.logger.Info("Server listening", slog.String("addr", s.http.Addr))
}

// HandleGracefulShutdown blocks until SIGINT or SIGTERM, then cancels stop and
// drains open connections for up to 10 seconds.
func (s *Server) HandleGracefulShutdown(stop context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	s.logger.Info("Shutdown signal received")
	if stop != nil {
		stop()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.http.Shutdown(ctx); err != nil {
		logging.LogError(s.logger, "Server shutdown error", err)
	} else {
		s.logger.Info("Server shut down successfully")
	}
}

func (s *Server) handleData(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	snap, err := s.svc.Snapshot(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	buf, err := formatter.NewResponseBuilder().BuildJSON(snap.Board)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, buf)
}

func (s *Server) handleFeedArrivals(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	feed := ps.ByName("feed")
	q := r.URL.Query()
	filter := formatter.ArrivalFilter{
		Route:     q.Get("route"),
		Stop:      q.Get("stop"),
		Direction: q.Get("direction"),
	}

	snap, err := s.svc.Snapshot(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	buf, ok, err := formatter.NewResponseBuilder().BuildFeedJSON(snap.Board, feed, filter)
	switch {
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
	case !ok:
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown feed %q", feed))
	default:
		writeJSON(w, http.StatusOK, buf)
	}
}

func writeJSON(w http.ResponseWriter, status int, buf []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(buf)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	buf, _ := json.Marshal(struct {
		Error string `json:"error"`
	}{msg})
	writeJSON(w, status, buf)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r.WithContext(logging.WithLogger(r.Context(), s.logger)))
		logging.LogHTTPRequest(s.logger, r.Method, r.URL.Path, rec.status,
			float64(time.Since(start).Microseconds())/1000)
	})
}
