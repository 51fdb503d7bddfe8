// Package server provides the HTTP server and Echo setup for health, metrics and webhook delivery.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// Server is the HTTP server (Echo) with registered handlers.
type Server struct {
	echo     *echo.Echo
	addr     string
	certFile string
	keyFile  string
	logger   *slog.Logger
}

// Handler registers routes on the Echo instance.
type Handler interface {
	Register(e *echo.Echo)
}

// quietPaths are probe endpoints left out of the request log.
var quietPaths = map[string]bool{
	"/ping":    true,
	"/health":  true,
	"/metrics": true,
}

// NewServer builds the Echo server with recovery, request logging and the given handlers.
func NewServer(log *slog.Logger, addr string, handlers ...Handler) *Server {
	if log == nil {
		log = slog.Default()
	}
	if addr == "" {
		addr = ":8080"
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		Skipper: func(c echo.Context) bool {
			return quietPaths[c.Request().URL.Path]
		},
		LogStatus: true,
		LogURI:    true,
		LogMethod: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			log.Info("request",
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
				slog.String("remote_ip", c.RealIP()),
			)
			return nil
		},
	}))

	for _, h := range handlers {
		if h != nil {
			h.Register(e)
		}
	}

	return &Server{
		echo:   e,
		addr:   addr,
		logger: log.With(slog.String("component", "server")),
	}
}

// WithTLS makes Start serve HTTPS with the given certificate pair.
func (s *Server) WithTLS(certFile, keyFile string) *Server {
	s.certFile, s.keyFile = certFile, keyFile
	return s
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return s.addr
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start starts the HTTP server (blocks until shutdown). A graceful shutdown returns nil.
func (s *Server) Start() error {
	s.logger.Info("listening", slog.String("addr", s.addr), slog.Bool("tls", s.certFile != ""))
	var err error
	if s.certFile != "" && s.keyFile != "" {
		err = s.echo.StartTLS(s.addr, s.certFile, s.keyFile)
	} else {
		err = s.echo.Start(s.addr)
	}
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Stop gracefully shuts down the server using the given context.
func (s *Server) Stop(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
