package web

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// Context is the echo context handed to gateway handlers, carrying a logger
// scoped to the request.
type Context struct {
	echo.Context
	L *zap.Logger
}

type HandlerFunc func(ctx Context) error

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

// Wrap adapts h to echo, tagging its logger with the request id and route.
func Wrap(h HandlerFunc, l *zap.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		return h(Context{
			Context: c,
			L: l.With(
				zap.String("request_id", requestID(c)),
				zap.String("route", c.Path()),
			),
		})
	}
}

func requestID(c echo.Context) string {
	return c.Response().Header().Get(echo.HeaderXRequestID)
}

// Ctx is the request context; it ends when the client goes away.
func (c Context) Ctx() context.Context {
	return c.Request().Context()
}

func (c Context) Error(status int, message string) error {
	return c.JSON(status, ErrorResponse{Error: message, RequestID: requestID(c.Context)})
}

func (c Context) BadRequest(message string) error {
	return c.Error(http.StatusBadRequest, message)
}

func (c Context) NotFound(message string) error {
	return c.Error(http.StatusNotFound, message)
}

// Unavailable reports a repository that stayed locked for the whole request.
func (c Context) Unavailable(message string) error {
	return c.Error(http.StatusServiceUnavailable, message)
}

func (c Context) InternalError(message string) error {
	return c.Error(http.StatusInternalServerError, message)
}

func (c Context) OK(data any) error {
	return c.JSON(http.StatusOK, data)
}

func (c Context) NoContent() error {
	return c.Context.NoContent(http.StatusNoContent)
}
