package health

import (
	"errors"

	"github.com/gomantics/gitwatch/api/web"
	"github.com/gomantics/gitwatch/db"
)

// GetResponse is the health check response
type GetResponse struct {
	Status       string `json:"status"`
	Database     string `json:"database"`
	Repositories int    `json:"repositories"`
}

// Get handles GET /v1/health
func (h handler) Get(c web.Context) error {
	ctx := c.Ctx()

	dbStatus := "ok"
	if err := db.Ping(ctx); errors.Is(err, db.ErrDisabled) {
		dbStatus = "disabled"
	} else if err != nil {
		dbStatus = "error: " + err.Error()
	}

	return c.OK(GetResponse{
		Status:       "ok",
		Database:     dbStatus,
		Repositories: len(h.src.Repositories()),
	})
}
