package health

import (
	"github.com/gomantics/gitwatch/api/web"
	"github.com/gomantics/gitwatch/api/repositories"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

type handler struct {
	src repositories.Source
}

func Configure(e *echo.Echo, l *zap.Logger, src repositories.Source) {
	h := handler{src: src}
	e.GET("/v1/health", web.Wrap(h.Get, l))
}
