package channels

import (
	"net/url"

	"github.com/gomantics/gitwatch/api/web"
	"go.uber.org/zap"
)

// ListResponse lists the joined channels
type ListResponse struct {
	Connection string   `json:"connection"`
	Channels   []string `json:"channels"`
}

// List handles GET /v1/channels
func (h handler) List(c web.Context) error {
	joined := h.reg.Joined(h.conn)
	if joined == nil {
		joined = []string{}
	}
	return c.OK(ListResponse{Connection: h.conn, Channels: joined})
}

// Join handles PUT /v1/channels/:name
func (h handler) Join(c web.Context) error {
	name, err := url.PathUnescape(c.Param("name"))
	if err != nil || name == "" {
		return c.BadRequest("invalid channel name")
	}
	if err := h.reg.Join(h.conn, name); err != nil {
		c.L.Error("failed to join channel", zap.String("channel", name), zap.Error(err))
		return c.InternalError("failed to join channel")
	}
	c.L.Info("channel joined", zap.String("channel", name))
	return c.NoContent()
}

// Part handles DELETE /v1/channels/:name
func (h handler) Part(c web.Context) error {
	name, err := url.PathUnescape(c.Param("name"))
	if err != nil || name == "" {
		return c.BadRequest("invalid channel name")
	}
	if err := h.reg.Part(h.conn, name); err != nil {
		c.L.Error("failed to part channel", zap.String("channel", name), zap.Error(err))
		return c.InternalError("failed to part channel")
	}
	c.L.Info("channel parted", zap.String("channel", name))
	return c.NoContent()
}
