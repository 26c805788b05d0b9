package http

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strconv"

	"userapi/config"
	"userapi/internal/delivery"
	httpmiddleware "userapi/internal/delivery/http/middleware"
	"userapi/internal/delivery/http/router"
	"userapi/internal/delivery/http/validator"
	"userapi/internal/delivery/middleware"
	"userapi/internal/domain/lifecycle"
	"userapi/internal/errors"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"go.uber.org/fx"
	"golang.org/x/net/http2"
)

type HTTPParams struct {
	fx.In
	fx.Lifecycle

	Config       *config.Config
	Logger       *slog.Logger
	RouterParams router.RouterParams
}

type httpServer struct {
	cfg    *config.Config
	logger *slog.Logger
	server *echo.Echo
}

func NewServer(params HTTPParams) (delivery.Delivery, error) {
	echoServer, err := newEcho(params.Config, params.Logger, router.NewRouter(params.RouterParams))
	if err != nil {
		return nil, err
	}

	srv := &httpServer{
		cfg:    params.Config,
		logger: params.Logger,
		server: echoServer,
	}

	params.Append(fx.Hook{
		OnStop: srv.stop,
	})

	return srv, nil
}

type routeRegistrar interface {
	RegisterRoutes(e *echo.Echo)
}

// newEcho assembles the middleware chain, error handler and validator around routes.
func newEcho(cfg *config.Config, logger *slog.Logger, routes routeRegistrar) (*echo.Echo, error) {
	echoServer := echo.New()
	echoServer.HideBanner = true
	echoServer.HidePort = true
	echoServer.Server.ReadTimeout = cfg.HTTP.Timeouts.ReadTimeout
	echoServer.Server.ReadHeaderTimeout = cfg.HTTP.Timeouts.ReadHeaderTimeout
	echoServer.Server.WriteTimeout = cfg.HTTP.Timeouts.WriteTimeout
	echoServer.Server.IdleTimeout = cfg.HTTP.Timeouts.IdleTimeout

	// /users/ and /users route to the same handler.
	echoServer.Pre(echomiddleware.RemoveTrailingSlash())

	// Recover first so panics in later middleware are caught.
	echoServer.Use(echomiddleware.Recover())
	// Request ID before the access log so log lines carry it.
	echoServer.Use(middleware.NewRequestIDMiddleware(logger).Process)
	echoServer.Use(middleware.NewLoggerMiddleware(logger, cfg).Handle)
	echoServer.Use(echomiddleware.CORS())
	echoServer.Use(echomiddleware.BodyLimit(cfg.HTTP.MaxRequestBodySize))

	echoServer.HTTPErrorHandler = httpmiddleware.NewErrorMiddleware(logger).HandleHTTPError

	v, err := validator.New()
	if err != nil {
		return nil, errors.Wrap(err, "failed to build request validator")
	}
	echoServer.Validator = v

	routes.RegisterRoutes(echoServer)

	return echoServer, nil
}

func (s *httpServer) Serve(ctx context.Context) error {
	hostPort := net.JoinHostPort("0.0.0.0", strconv.Itoa(s.cfg.HTTP.Port))
	s.logger.Info("Starting HTTP server", slog.String("host_port", hostPort))

	h2Server := &http2.Server{
		IdleTimeout: s.cfg.HTTP.Timeouts.IdleTimeout,
	}
	if err := s.server.StartH2CServer(hostPort, h2Server); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "failed to serve http")
	}

	return nil
}

func (s *httpServer) stop(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, lifecycle.DefaultTimeout)
	defer cancel()

	s.logger.Info("Shutting down HTTP server")

	return errors.WithStack(s.server.Shutdown(shutdownCtx))
}
