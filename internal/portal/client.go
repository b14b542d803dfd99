package portal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"go.uber.org/zap"

	"github.com/cory-johannsen/portal/internal/ansi"
	"github.com/cory-johannsen/portal/internal/colorcode"
	"github.com/cory-johannsen/portal/internal/httppool"
	"github.com/cory-johannsen/portal/internal/telnet"
)

// userAgent identifies the portal on every backend request.
const userAgent = "volcano-portal/1.0"

// Handler is one mode of the portal client's state machine: login,
// in-game, and so on. The top of the handler stack receives every line
// and GMCP message from the client.
type Handler interface {
	Name() string
	Enter(ctx context.Context, c *Client) error
	HandleLine(ctx context.Context, c *Client, line string) error
	HandleGmcp(ctx context.Context, c *Client, msg telnet.Gmcp) error
}

// Config tunes a portal client.
type Config struct {
	// RefreshMargin is how long before token expiry a refresh is issued.
	RefreshMargin time.Duration
}

// DefaultConfig returns the standard client tuning.
func DefaultConfig() Config {
	return Config{RefreshMargin: time.Minute}
}

// Client owns one telnet link. It bridges the link's to-game channel into
// the active mode handler, relays handler output back over the link, and
// keeps a bearer token for backend requests refreshed.
type Client struct {
	ID   uuid.UUID
	link *telnet.Link

	http     *httppool.Client
	verifier *TokenVerifier
	cfg      Config
	logger   *zap.Logger

	handlers []Handler
	caps     telnet.ClientData

	token    string
	tokenExp time.Time
}

// NewClient creates a portal client for a negotiated link.
//
// Precondition: link, httpClient, verifier, and logger must be non-nil.
func NewClient(link *telnet.Link, httpClient *httppool.Client, verifier *TokenVerifier, cfg Config, logger *zap.Logger) *Client {
	return &Client{
		ID:       uuid.New(),
		link:     link,
		http:     httpClient,
		verifier: verifier,
		cfg:      cfg,
		logger: logger.With(
			zap.Int64("connection_id", link.ConnectionID),
			zap.String("remote_addr", link.RemoteAddr.String()),
		),
		caps: link.ClientData,
	}
}

// Link returns the owned telnet link.
func (c *Client) Link() *telnet.Link {
	return c.link
}

// Capabilities returns the client's current capability view.
func (c *Client) Capabilities() telnet.ClientData {
	return c.caps
}

// Run pushes the initial handler and processes link messages until the
// link dies or the context is cancelled.
func (c *Client) Run(ctx context.Context, initial Handler) error {
	start := time.Now()
	if err := c.Push(ctx, initial); err != nil {
		return err
	}

	for {
		var refreshCh <-chan time.Time
		var refreshTimer *time.Timer
		if c.token != "" && !c.tokenExp.IsZero() {
			wait := time.Until(c.tokenExp.Add(-c.cfg.RefreshMargin))
			if wait < 0 {
				wait = 0
			}
			refreshTimer = time.NewTimer(wait)
			refreshCh = refreshTimer.C
		}

		select {
		case <-ctx.Done():
			stopTimer(refreshTimer)
			return ctx.Err()

		case msg, ok := <-c.link.ToGame:
			stopTimer(refreshTimer)
			if !ok {
				return nil
			}
			if done, err := c.dispatch(ctx, msg); done || err != nil {
				c.logger.Info("portal session ended",
					zap.Duration("duration", time.Since(start)),
					zap.Error(err),
				)
				return err
			}

		case <-refreshCh:
			if err := c.refreshToken(ctx); err != nil {
				c.logger.Warn("token refresh failed", zap.Error(err))
				c.tokenExp = time.Now().Add(c.cfg.RefreshMargin)
			}
		}
	}
}

func stopTimer(t *time.Timer) {
	if t != nil {
		t.Stop()
	}
}

// dispatch routes one game-bound message into the active handler.
func (c *Client) dispatch(ctx context.Context, msg telnet.ToGame) (done bool, err error) {
	switch m := msg.(type) {
	case telnet.AppData:
		if handler := c.active(); handler != nil {
			return false, handler.HandleLine(ctx, c, string(m.Data))
		}

	case telnet.Gmcp:
		if handler := c.active(); handler != nil {
			return false, handler.HandleGmcp(ctx, c, m)
		}

	case telnet.ChangeCapabilities:
		// the delta holds only the changed fields
		if err := json.Unmarshal(m.Capabilities, &c.caps); err != nil {
			c.logger.Warn("bad capability delta", zap.Error(err))
		}

	case telnet.Disconnect:
		c.logger.Info("link disconnected", zap.String("reason", m.Reason.String()))
		// echo the disconnect back so the telnet side tears down too
		c.Disconnect(m.Reason)
		return true, nil
	}
	return false, nil
}

// Push enters a new mode handler on top of the stack.
func (c *Client) Push(ctx context.Context, handler Handler) error {
	c.handlers = append(c.handlers, handler)
	c.logger.Debug("handler pushed", zap.String("handler", handler.Name()))
	return handler.Enter(ctx, c)
}

// Pop leaves the current mode. The handler below re-enters; popping the
// last handler disconnects the session.
func (c *Client) Pop(ctx context.Context) error {
	if len(c.handlers) == 0 {
		return nil
	}
	leaving := c.handlers[len(c.handlers)-1]
	c.handlers = c.handlers[:len(c.handlers)-1]
	c.logger.Debug("handler popped", zap.String("handler", leaving.Name()))

	if next := c.active(); next != nil {
		return next.Enter(ctx, c)
	}
	c.Disconnect(telnet.ReasonClientDisconnect)
	return nil
}

func (c *Client) active() Handler {
	if len(c.handlers) == 0 {
		return nil
	}
	return c.handlers[len(c.handlers)-1]
}

// colorMode maps the negotiated color level to a render mode.
func (c *Client) colorMode() ansi.Mode {
	switch c.caps.Color {
	case telnet.ColorAnsi16:
		return ansi.ModeAnsi16
	case telnet.ColorXterm256:
		return ansi.ModeXterm256
	case telnet.ColorTrueColor:
		return ansi.ModeTrueColor
	}
	return ansi.ModeNone
}

// Send writes a plain line to the client.
func (c *Client) Send(line string) {
	c.link.ToTelnet <- telnet.AppData{Data: []byte(line + "\r\n")}
}

// SendMarkup transliterates @-markup and renders it at the client's
// color depth before sending.
func (c *Client) SendMarkup(line string) {
	rendered := colorcode.Process(line, c.colorMode(), nil)
	c.link.ToTelnet <- telnet.AppData{Data: []byte(rendered + "\r\n")}
}

// SendGmcp sends a GMCP message to the client.
func (c *Client) SendGmcp(command string, data json.RawMessage) {
	c.link.ToTelnet <- telnet.Gmcp{Package: command, Data: data}
}

// Disconnect asks the telnet side to close the session.
func (c *Client) Disconnect(reason telnet.DisconnectReason) {
	c.link.ToTelnet <- telnet.Disconnect{Reason: reason}
}

// Authenticate exchanges credentials for a bearer token, verifies it, and
// stores it for subsequent requests.
func (c *Client) Authenticate(ctx context.Context, username, password string) (*Claims, error) {
	body, _ := sjson.Set("", "username", username)
	body, _ = sjson.Set(body, "password", password)

	resp, err := c.do(ctx, http.MethodPost, "/auth/login", []byte(body))
	if err != nil {
		return nil, err
	}
	payload, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("reading login response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, ErrUnauthorized
	}

	token := gjson.GetBytes(payload, "token").String()
	if token == "" {
		return nil, ErrUnauthorized
	}
	return c.adoptToken(token)
}

// refreshToken exchanges the held token for a fresh one before expiry.
func (c *Client) refreshToken(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodPost, "/auth/refresh", nil)
	if err != nil {
		return err
	}
	payload, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return fmt.Errorf("reading refresh response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return ErrUnauthorized
	}

	token := gjson.GetBytes(payload, "token").String()
	if token == "" {
		return ErrUnauthorized
	}
	_, err = c.adoptToken(token)
	return err
}

func (c *Client) adoptToken(token string) (*Claims, error) {
	claims, err := c.verifier.Verify(token)
	if err != nil {
		return nil, err
	}
	c.token = token
	c.tokenExp = claims.ExpiresAt()
	return claims, nil
}

// do issues one backend request with the portal's standard headers:
// User-Agent, X-Forwarded-For, and the bearer token when held.
func (c *Client) do(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	target := c.http.Target()
	url := fmt.Sprintf("%s://%s%s", target.Scheme, target.Host(), path)

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("X-Forwarded-For", c.caps.ClientAddress)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	return c.http.Request(ctx, req, 0)
}

// Backend issues an authenticated request against an arbitrary backend
// path on behalf of a mode handler.
func (c *Client) Backend(ctx context.Context, method, path string, body []byte) (int, []byte, error) {
	resp, err := c.do(ctx, method, path, body)
	if err != nil {
		return 0, nil, err
	}
	payload, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("reading response: %w", err)
	}
	return resp.StatusCode, payload, nil
}

// TrimCommand normalizes one input line into a command word and its
// argument rest.
func TrimCommand(line string) (cmd, rest string) {
	line = strings.TrimSpace(line)
	cmd, rest, _ = strings.Cut(line, " ")
	return strings.ToLower(cmd), strings.TrimSpace(rest)
}
