package portal

import (
	"context"
	"net/http"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"go.uber.org/zap"

	"github.com/cory-johannsen/portal/internal/telnet"
)

// GameHandler is the in-game portal mode: player input is relayed to the
// backend, backend output is rendered back to the client, and GMCP flows
// through in both directions.
type GameHandler struct {
	logger *zap.Logger
}

// NewGameHandler creates the in-game mode.
func NewGameHandler(logger *zap.Logger) *GameHandler {
	return &GameHandler{logger: logger}
}

// Name implements Handler.
func (h *GameHandler) Name() string { return "game" }

// Enter announces the mode switch.
func (h *GameHandler) Enter(ctx context.Context, c *Client) error {
	c.SendMarkup("@gYou step through the portal.@n")
	return nil
}

// HandleLine relays one command line to the backend and renders the
// response lines to the client.
func (h *GameHandler) HandleLine(ctx context.Context, c *Client, line string) error {
	cmd, _ := TrimCommand(line)
	if cmd == "quit" {
		c.SendMarkup("@cYou step back out of the portal.@n")
		return c.Pop(ctx)
	}

	body, _ := sjson.Set("", "command", line)
	status, payload, err := c.Backend(ctx, http.MethodPost, "/game/command", []byte(body))
	if err != nil {
		h.logger.Warn("command relay failed", zap.Error(err))
		c.SendMarkup("@rThe world does not answer.@n")
		return nil
	}
	if status == http.StatusUnauthorized {
		c.SendMarkup("@rYour session expired. Please log in again.@n")
		return c.Pop(ctx)
	}
	if status != http.StatusOK {
		c.SendMarkup("@rThe world does not answer.@n")
		return nil
	}

	gjson.GetBytes(payload, "lines").ForEach(func(_, value gjson.Result) bool {
		c.SendMarkup(value.String())
		return true
	})
	return nil
}

// HandleGmcp relays a client GMCP message to the backend.
func (h *GameHandler) HandleGmcp(ctx context.Context, c *Client, msg telnet.Gmcp) error {
	body, _ := sjson.Set("", "package", msg.Package)
	if len(msg.Data) > 0 {
		body, _ = sjson.SetRaw(body, "data", string(msg.Data))
	}
	if _, _, err := c.Backend(ctx, http.MethodPost, "/game/gmcp", []byte(body)); err != nil {
		h.logger.Debug("gmcp relay failed",
			zap.String("package", msg.Package),
			zap.Error(err),
		)
	}
	return nil
}
