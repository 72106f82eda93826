// Package server exposes invoice building, validation, QR, signing,
// verification and submission over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/rezonia/fatoora/internal/metrics"
	"github.com/rezonia/fatoora/internal/signature"
	"github.com/rezonia/fatoora/internal/submission"
)

// Config holds server configuration
type Config struct {
	Address      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	Debug        bool

	// Gateway used by /api/v1/submit. GatewayURL overrides Environment.
	Environment    submission.Environment
	GatewayURL     string
	GatewayTimeout time.Duration
	Credentials    submission.Credentials

	Logger zerolog.Logger

	// Registry receives the server's collectors and backs /metrics.
	// A fresh registry with the Go and process collectors is used when nil.
	Registry *prometheus.Registry

	// Clock is the time source for issue and signing times
	Clock func() time.Time
}

// Server represents the HTTP API server
type Server struct {
	config   *Config
	router   *gin.Engine
	logger   zerolog.Logger
	registry *prometheus.Registry
	metrics  *metrics.Metrics

	signer   *signature.Signer
	verifier *signature.Verifier
	// signingErr is non-nil when this process has no signing capability
	signingErr error

	gatewayOpts []submission.Option
	gateway     *submission.Client
}

// NewServer creates a new API server
func NewServer(config *Config) *Server {
	if !config.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	if config.Clock == nil {
		config.Clock = time.Now
	}

	registry := config.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	m := metrics.New(registry)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestID())
	router.Use(requestLogger(config.Logger, m))

	s := &Server{
		config:   config,
		router:   router,
		logger:   config.Logger,
		registry: registry,
		metrics:  m,
	}

	s.signer, s.signingErr = signature.NewSigner(
		signature.WithLogger(config.Logger.With().Str("component", "signature").Logger()),
		signature.WithClock(config.Clock),
	)
	if s.signingErr == nil {
		s.verifier, s.signingErr = signature.NewVerifier(signature.WithLogger(config.Logger))
	}
	if s.signingErr != nil {
		s.logger.Warn().Err(s.signingErr).Msg("signing disabled; build, validation and QR endpoints remain available")
	}

	s.gatewayOpts = []submission.Option{
		submission.WithLogger(config.Logger.With().Str("component", "submission").Logger()),
		submission.WithMetrics(m),
	}
	if config.Environment != "" {
		s.gatewayOpts = append(s.gatewayOpts, submission.WithEnvironment(config.Environment))
	}
	if config.GatewayURL != "" {
		s.gatewayOpts = append(s.gatewayOpts, submission.WithBaseURL(config.GatewayURL))
	}
	if config.GatewayTimeout > 0 {
		s.gatewayOpts = append(s.gatewayOpts, submission.WithTimeout(config.GatewayTimeout))
	}
	s.gateway = submission.NewClient(config.Credentials, s.gatewayOpts...)

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))

	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/invoices", s.handleBuild)
		v1.POST("/validate", s.handleValidate)

		v1.POST("/qr/encode", s.handleQREncode)
		v1.POST("/qr/decode", s.handleQRDecode)

		v1.POST("/csr", s.handleCSR)
		v1.POST("/sign", s.handleSign)
		v1.POST("/verify", s.handleVerify)

		v1.POST("/submit", s.handleSubmit)
	}
}

// ShutdownTimeout bounds how long Run waits for in-flight requests
const ShutdownTimeout = 10 * time.Second

// Run starts the HTTP server and shuts it down when ctx is done
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.config.Address,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("address", s.config.Address).Msg("listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Handler returns the http.Handler for use with custom servers
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"signing": s.signingErr == nil,
	})
}
