package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gomantics/gitwatch/api/channels"
	apicommands "github.com/gomantics/gitwatch/api/commands"
	"github.com/gomantics/gitwatch/api/health"
	"github.com/gomantics/gitwatch/api/repositories"
	"github.com/gomantics/gitwatch/config"
	"github.com/gomantics/gitwatch/domains/commands"
	"github.com/gomantics/gitwatch/domains/watcher"
	"github.com/gomantics/gitwatch/libs/chat"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Run serves the chat gateway API for the lifetime of the application.
func Run(lc fx.Lifecycle, l *zap.Logger, w *watcher.Watcher, svc *commands.Service, reg *chat.Registry) error {
	e := NewServer(l, w, svc, reg)

	server := &http.Server{
		Addr:              fmt.Sprintf("0.0.0.0:%d", config.Server.Port()),
		Handler:           e,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// log waits on the repository lock, which a slow fetch can hold.
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  time.Minute,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				l.Info("gateway listening", zap.String("addr", server.Addr))
				if err := e.StartServer(server); err != nil && !errors.Is(err, http.ErrServerClosed) {
					l.Error("gateway stopped unexpectedly", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			l.Info("shutting down gateway")
			return e.Shutdown(ctx)
		},
	})

	return nil
}

// NewServer builds the echo instance with middleware and routes.
func NewServer(l *zap.Logger, w *watcher.Watcher, svc *commands.Service, reg *chat.Registry) *echo.Echo {
	e := echo.New()

	if !config.IsDev() {
		e.HideBanner = true
		e.HidePort = true
	}

	configureMiddleware(e, l)
	configureRoutes(e, l, w, svc, reg)
	return e
}

func configureMiddleware(e *echo.Echo, l *zap.Logger) {
	e.Use(middleware.RequestID())
	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		StackSize: 4 << 10,
		LogErrorFunc: func(c echo.Context, err error, stack []byte) error {
			l.Error("handler panicked",
				zap.Error(err),
				zap.ByteString("stack", stack),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)
			return nil
		},
	}))
	// Chat lines are short; anything larger is not a gateway request.
	e.Use(middleware.BodyLimit("64K"))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogLatency:    true,
		LogMethod:     true,
		LogURI:        true,
		LogRequestID:  true,
		LogStatus:     true,
		LogValuesFunc: logRequest(l),
	}))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: config.Server.CorsAllowedOrigins(),
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{echo.HeaderContentType, echo.HeaderXRequestID},
		MaxAge:       int(time.Hour.Seconds()),
	}))
}

// logRequest logs health probes at debug so they do not drown poll output.
func logRequest(l *zap.Logger) func(echo.Context, middleware.RequestLoggerValues) error {
	return func(c echo.Context, v middleware.RequestLoggerValues) error {
		level := zap.InfoLevel
		if c.Path() == "/v1/health" && v.Status == http.StatusOK {
			level = zap.DebugLevel
		}
		l.Log(level, "request",
			zap.String("method", v.Method),
			zap.String("uri", v.URI),
			zap.Int("status", v.Status),
			zap.Duration("latency", v.Latency),
			zap.String("request_id", v.RequestID),
		)
		return nil
	}
}

func configureRoutes(e *echo.Echo, l *zap.Logger, w *watcher.Watcher, svc *commands.Service, reg *chat.Registry) {
	health.Configure(e, l, w)
	repositories.Configure(e, l, w)
	apicommands.Configure(e, l, svc)
	channels.Configure(e, l, reg, config.Chat.Connection())
}
