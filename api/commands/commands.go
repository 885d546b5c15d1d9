package commands

import (
	"errors"
	"strings"

	"github.com/gomantics/gitwatch/api/web"
	"github.com/gomantics/gitwatch/domains/commands"
	"go.uber.org/zap"
)

// Request is a chat line seen in a channel
type Request struct {
	Channel string `json:"channel"`
	Text    string `json:"text"`
}

// Response carries the reply lines, one chat message each
type Response struct {
	Lines []string `json:"lines"`
}

func (r Request) validate() string {
	if strings.TrimSpace(r.Channel) == "" {
		return "channel is required"
	}
	if strings.TrimSpace(r.Text) == "" {
		return "text is required"
	}
	return ""
}

// Execute handles POST /v1/commands
func (h handler) Execute(c web.Context) error {
	var req Request
	if err := c.Bind(&req); err != nil {
		return c.BadRequest("invalid request body")
	}
	if msg := req.validate(); msg != "" {
		return c.BadRequest(msg)
	}

	lines, err := h.svc.Execute(c.Ctx(), req.Channel, req.Text)
	if errors.Is(err, commands.ErrUnknownCommand) {
		return c.BadRequest(err.Error())
	}
	if err != nil {
		c.L.Error("command failed", zap.String("text", req.Text), zap.Error(err))
		return c.InternalError("command failed")
	}

	return c.OK(Response{Lines: nonNil(lines)})
}

// Message handles POST /v1/messages
func (h handler) Message(c web.Context) error {
	var req Request
	if err := c.Bind(&req); err != nil {
		return c.BadRequest("invalid request body")
	}
	if msg := req.validate(); msg != "" {
		return c.BadRequest(msg)
	}

	lines, err := h.svc.Snarf(c.Ctx(), req.Channel, req.Text)
	if err != nil {
		c.L.Error("snarf failed", zap.Error(err))
		return c.InternalError("failed to look up commit")
	}

	return c.OK(Response{Lines: nonNil(lines)})
}

func nonNil(lines []string) []string {
	if lines == nil {
		return []string{}
	}
	return lines
}
