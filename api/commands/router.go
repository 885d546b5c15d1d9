package commands

import (
	"github.com/gomantics/gitwatch/api/web"
	"github.com/gomantics/gitwatch/domains/commands"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

type handler struct {
	svc *commands.Service
}

func Configure(e *echo.Echo, l *zap.Logger, svc *commands.Service) {
	h := handler{svc: svc}
	e.POST("/v1/commands", web.Wrap(h.Execute, l))
	e.POST("/v1/messages", web.Wrap(h.Message, l))
}
