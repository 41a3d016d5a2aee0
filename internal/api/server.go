package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"cymatics/internal/logging"
	"cymatics/internal/services"
)

// Options configures a Server.
type Options struct {
	Bind         string
	MaxUploadMiB int
	Version      string
	Logger       *slog.Logger
}

// Server serves the HTTP surface.
type Server struct {
	backend Backend
	opts    Options
	logger  *slog.Logger
	echo    *echo.Echo

	listener net.Listener
	server   *http.Server
}

// NewServer wires routes and middleware. Call Start to begin listening.
func NewServer(backend Backend, opts Options) *Server {
	s := &Server{
		backend: backend,
		opts:    opts,
		logger:  logging.NewComponentLogger(opts.Logger, "api"),
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = s.handleError

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogError:     true,
		LogRequestID: true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			ctx := services.WithRequestID(c.Request().Context(), v.RequestID)
			attrs := []logging.Attr{
				logging.String("method", v.Method),
				logging.String("uri", v.URI),
				logging.Int("status", v.Status),
				logging.Duration("latency", v.Latency),
			}
			if v.Error != nil {
				attrs = append(attrs, logging.Error(v.Error))
			}
			logging.WithContext(ctx, s.logger).Debug("http request", logging.Args(attrs...)...)
			return nil
		},
	}))
	if opts.MaxUploadMiB > 0 {
		e.Use(middleware.BodyLimit(fmt.Sprintf("%dM", opts.MaxUploadMiB)))
	}

	e.GET("/health", s.health)
	v1 := e.Group("/v1")
	v1.POST("/transcribe", s.transcribe)
	v1.GET("/cycle/status", s.cycleStatus)
	v1.GET("/jobs", s.jobs)
	v1.POST("/model/unload", s.unloadModel)

	s.echo = e
	return s
}

// Handler returns the routed handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start listens on the configured bind address and serves in the background.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.opts.Bind)
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "api", "listen", s.opts.Bind, err)
	}
	s.listener = listener
	s.server = &http.Server{
		Handler:           s.echo,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	s.logger.Info("api server listening",
		logging.String("address", listener.Addr().String()),
		logging.String(logging.FieldEventType, "api_started"),
	)
	return nil
}

// Addr returns the bound address once Start has succeeded.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Shutdown stops accepting requests and waits for in-flight ones until ctx
// is done.
func (s *Server) Shutdown(ctx context.Context) error {
	if s == nil || s.server == nil {
		return nil
	}
	err := s.server.Shutdown(ctx)
	s.server = nil
	s.listener = nil
	return err
}

func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	code := http.StatusInternalServerError
	detail := err.Error()
	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		detail = fmt.Sprint(he.Message)
	}
	if code >= http.StatusInternalServerError {
		logging.WithContext(c.Request().Context(), s.logger).Error("request failed",
			logging.Error(err),
			logging.String("uri", c.Request().RequestURI),
		)
	}
	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(code)
		return
	}
	_ = c.JSON(code, ErrorResponse{Detail: detail})
}
