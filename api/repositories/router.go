package repositories

import (
	"github.com/gomantics/gitwatch/api/web"
	"github.com/gomantics/gitwatch/domains/repos"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// Source provides the active repository set.
type Source interface {
	Repositories() []*repos.Repository
}

type handler struct {
	src Source
}

func Configure(e *echo.Echo, l *zap.Logger, src Source) {
	h := handler{src: src}
	e.GET("/v1/repositories", web.Wrap(h.List, l))
	e.GET("/v1/repositories/:name", web.Wrap(h.Get, l))
}
