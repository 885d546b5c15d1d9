package channels

import (
	"github.com/gomantics/gitwatch/api/web"
	"github.com/gomantics/gitwatch/libs/chat"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

type handler struct {
	reg  *chat.Registry
	conn string
}

// Configure registers join/part bookkeeping for the connection named conn.
func Configure(e *echo.Echo, l *zap.Logger, reg *chat.Registry, conn string) {
	h := handler{reg: reg, conn: conn}
	e.GET("/v1/channels", web.Wrap(h.List, l))
	e.PUT("/v1/channels/:name", web.Wrap(h.Join, l))
	e.DELETE("/v1/channels/:name", web.Wrap(h.Part, l))
}
