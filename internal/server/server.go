// Package server serves the upload form and returns converted CSV downloads over HTTP.
package server

import (
	"context"
	"fmt"
	"html/template"
	"net"
	"time"

	"logcsv/internal/config"
	"logcsv/internal/logger"
	"logcsv/internal/normalizer"

	"github.com/valyala/fasthttp"
	"golang.org/x/time/rate"
)

// Route paths.
const (
	PathIndex   = "/"
	PathConvert = "/convert"
	PathHealth  = "/healthz"
)

// multipartSlack covers multipart framing and form fields on top of the file itself.
const multipartSlack = 1 << 20

// Server is the HTTP front end for the normalizer.
type Server struct {
	cfg       *config.Config
	processor *normalizer.Processor
	log       *logger.Logger
	limiter   *rate.Limiter
	index     *template.Template
	comma     rune
	server    *fasthttp.Server
	startTime time.Time
}

// New creates a server from a validated configuration.
func New(cfg *config.Config, log *logger.Logger) (*Server, error) {
	comma, err := cfg.Output.Comma()
	if err != nil {
		return nil, err
	}

	index, err := template.New("index").Parse(indexTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse index template: %w", err)
	}

	s := &Server{
		cfg:       cfg,
		processor: normalizer.NewProcessor(cfg.Normalizer, log),
		log:       log.With("component", "http_server"),
		index:     index,
		comma:     comma,
		startTime: time.Now(),
	}

	if cfg.Server.RateLimit.Enabled {
		s.limiter = rate.NewLimiter(rate.Limit(cfg.Server.RateLimit.RequestsPerSecond), cfg.Server.RateLimit.Burst)
	}

	s.server = &fasthttp.Server{
		Handler:            s.Handler,
		ErrorHandler:       s.handleRequestError,
		Name:               "logcsv",
		MaxRequestBodySize: cfg.Server.MaxUploadBytes() + multipartSlack,
		ReadTimeout:        60 * time.Second,
		WriteTimeout:       60 * time.Second,
		CloseOnShutdown:    true,
	}

	return s, nil
}

// ListenAndServe blocks serving on addr until Shutdown is called.
func (s *Server) ListenAndServe(addr string) error {
	s.log.Info("HTTP server starting", "addr", addr, "max_upload_mb", s.cfg.Server.MaxUploadMb)

	if err := s.server.ListenAndServe(addr); err != nil {
		return fmt.Errorf("http server failed: %w", err)
	}

	return nil
}

// Serve serves connections accepted from ln until Shutdown is called.
func (s *Server) Serve(ln net.Listener) error {
	s.log.Info("HTTP server starting", "addr", ln.Addr().String(), "max_upload_mb", s.cfg.Server.MaxUploadMb)

	if err := s.server.Serve(ln); err != nil {
		return fmt.Errorf("http server failed: %w", err)
	}

	return nil
}

// Shutdown stops accepting connections and waits for in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Stopping HTTP server")

	return s.server.ShutdownWithContext(ctx)
}

// Handler routes a request.
func (s *Server) Handler(ctx *fasthttp.RequestCtx) {
	switch string(ctx.Path()) {
	case PathIndex:
		if !ctx.IsGet() {
			s.methodNotAllowed(ctx, fasthttp.MethodGet)
			return
		}

		s.handleIndex(ctx)

	case PathHealth:
		if !ctx.IsGet() {
			s.methodNotAllowed(ctx, fasthttp.MethodGet)
			return
		}

		s.handleHealth(ctx)

	case PathConvert:
		if !ctx.IsPost() {
			s.methodNotAllowed(ctx, fasthttp.MethodPost)
			return
		}

		if s.limiter != nil && !s.limiter.Allow() {
			s.log.Warn("Rate limit exceeded", "remote", ctx.RemoteIP().String())
			writeJSON(ctx, fasthttp.StatusTooManyRequests, map[string]string{
				"error": "Rate limit exceeded",
			})

			return
		}

		s.handleConvert(ctx)

	default:
		writeJSON(ctx, fasthttp.StatusNotFound, map[string]string{
			"error": "Not Found",
			"hint":  fmt.Sprintf("POST a JSON export to %s", PathConvert),
		})
	}
}

func (s *Server) methodNotAllowed(ctx *fasthttp.RequestCtx, allow string) {
	ctx.Response.Header.Set(fasthttp.HeaderAllow, allow)
	writeJSON(ctx, fasthttp.StatusMethodNotAllowed, map[string]string{
		"error": "Method not allowed",
	})
}
