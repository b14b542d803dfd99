package portal

import (
	"context"
	"errors"

	"github.com/tidwall/sjson"
	"go.uber.org/zap"

	"github.com/cory-johannsen/portal/internal/telnet"
)

const welcomeBanner = `
@C -= V O L C A N O =-@n

@wA text world behind this portal.@n

  Type @glogin <username> <password>@n to connect.
  Type @gregister <username> <password>@n to create an account.
  Type @gquit@n to disconnect.`

// LoginHandler is the first portal mode: it collects credentials,
// exchanges them with the backend for a bearer token, and pushes the
// in-game mode on success.
type LoginHandler struct {
	logger *zap.Logger
}

// NewLoginHandler creates the login mode.
func NewLoginHandler(logger *zap.Logger) *LoginHandler {
	return &LoginHandler{logger: logger}
}

// Name implements Handler.
func (h *LoginHandler) Name() string { return "login" }

// Enter shows the banner and prompt.
func (h *LoginHandler) Enter(ctx context.Context, c *Client) error {
	c.SendMarkup(welcomeBanner)
	c.SendMarkup("@W>@n")
	return nil
}

// HandleLine processes one authentication command.
func (h *LoginHandler) HandleLine(ctx context.Context, c *Client, line string) error {
	cmd, rest := TrimCommand(line)
	switch cmd {
	case "":
	case "quit", "exit":
		c.SendMarkup("@cGoodbye!@n")
		return c.Pop(ctx)

	case "login":
		h.handleLogin(ctx, c, rest)

	case "register":
		h.handleRegister(ctx, c, rest)

	case "help":
		c.SendMarkup("Commands: @glogin <user> <pass>@n, @gregister <user> <pass>@n, @gquit@n")

	default:
		c.SendMarkup("@rUnknown command: " + cmd + ". Type 'help' for available commands.@n")
	}

	c.SendMarkup("@W>@n")
	return nil
}

func (h *LoginHandler) handleLogin(ctx context.Context, c *Client, rest string) {
	username, password := TrimCommand(rest)
	if username == "" || password == "" {
		c.SendMarkup("@rUsage: login <username> <password>@n")
		return
	}

	claims, err := c.Authenticate(ctx, username, password)
	if err != nil {
		if errors.Is(err, ErrUnauthorized) {
			c.SendMarkup("@rLogin failed.@n")
		} else {
			h.logger.Error("login error", zap.Error(err))
			c.SendMarkup("@rAn internal error occurred. Please try again.@n")
		}
		return
	}

	c.SendMarkup("@GWelcome back, " + username + "!@n")
	h.logger.Info("player logged in",
		zap.String("username", username),
		zap.String("account_id", claims.AccountID()),
	)
	if err := c.Push(ctx, NewGameHandler(h.logger)); err != nil {
		h.logger.Error("entering game mode", zap.Error(err))
	}
}

func (h *LoginHandler) handleRegister(ctx context.Context, c *Client, rest string) {
	username, password := TrimCommand(rest)
	if username == "" || password == "" {
		c.SendMarkup("@rUsage: register <username> <password>@n")
		return
	}
	if len(username) < 3 || len(username) > 32 {
		c.SendMarkup("@rUsername must be 3-32 characters.@n")
		return
	}
	if len(password) < 6 {
		c.SendMarkup("@rPassword must be at least 6 characters.@n")
		return
	}

	body, _ := sjson.Set("", "username", username)
	body, _ = sjson.Set(body, "password", password)
	status, _, err := c.Backend(ctx, "POST", "/auth/register", []byte(body))
	if err != nil {
		h.logger.Error("register error", zap.Error(err))
		c.SendMarkup("@rAn internal error occurred. Please try again.@n")
		return
	}
	switch status {
	case 200, 201:
		c.SendMarkup("@GAccount created. You may now 'login'.@n")
	case 409:
		c.SendMarkup("@rThat username is already taken.@n")
	default:
		c.SendMarkup("@rRegistration failed.@n")
	}
}

// HandleGmcp ignores GMCP traffic before authentication.
func (h *LoginHandler) HandleGmcp(ctx context.Context, c *Client, msg telnet.Gmcp) error {
	return nil
}
