package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"oproz-billing/internal/config"
	apiv1 "oproz-billing/internal/infra/api/apiv1"
)

// Server owns the HTTP listener: middleware stack, health and metrics
// endpoints, and the mounted v1 API.
type Server struct {
	httpSrv *http.Server
	log     *zerolog.Logger
}

func NewServer(cfg config.APIConfig, v1 *apiv1.Server, logger *zerolog.Logger) *Server {
	r := chi.NewRouter()

	auth := RequireServiceToken(cfg.JWTSecret, logger)
	apiv1.RegisterAPIV1(r, v1, auth)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	handler := Chain(r,
		TraceID(),
		RequestLog(logger),
		Recover(logger),
		Timeout(30*time.Second),
	)

	return &Server{
		httpSrv: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
		},
		log: logger,
	}
}

// Start blocks until the listener stops.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.httpSrv.Addr).Msg("http server listening")
	if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}
