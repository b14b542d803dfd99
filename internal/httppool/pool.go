// Package httppool provides per-target pools of keep-alive HTTP sessions.
// Portal clients talking to the same backend share a bounded set of
// authenticated connections instead of dialing per request.
package httppool

import (
	"bufio"
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Scheme is the transport scheme of a target.
type Scheme int

const (
	SchemeHTTP Scheme = iota
	SchemeHTTPS
)

// String returns the URL scheme name.
func (s Scheme) String() string {
	if s == SchemeHTTPS {
		return "https"
	}
	return "http"
}

// ErrTimeout reports that a request phase exceeded its deadline. The
// session is closed when this is returned.
var ErrTimeout = errors.New("httppool: timed out")

// Target identifies one backend endpoint. Address is the resolved host
// (IP literal or resolver result); HostHeader preserves the original
// name, with IPv6 brackets and an explicit port only when non-default.
type Target struct {
	Scheme     Scheme
	Address    string
	Port       uint16
	HostHeader string
}

// Host returns the value for the Host header.
func (t Target) Host() string {
	if t.HostHeader != "" {
		return t.HostHeader
	}
	return t.Address
}

// hostPort returns the dial address.
func (t Target) hostPort() string {
	return net.JoinHostPort(t.Address, strconv.Itoa(int(t.Port)))
}

// key is the pool-table identity of a target: scheme, address, and port.
type key struct {
	scheme  Scheme
	address string
	port    uint16
}

func (t Target) key() key {
	return key{scheme: t.Scheme, address: t.Address, port: t.Port}
}

// ParseTarget parses an http or https URL into a Target. Hostnames are
// resolved through the default resolver; the first endpoint wins.
func ParseTarget(ctx context.Context, raw string) (Target, error) {
	parsed, err := url.Parse(raw)
	if err != nil {
		return Target{}, fmt.Errorf("invalid url %q: %w", raw, err)
	}

	var scheme Scheme
	switch parsed.Scheme {
	case "http":
		scheme = SchemeHTTP
	case "https":
		scheme = SchemeHTTPS
	default:
		return Target{}, fmt.Errorf("unsupported url scheme %q", parsed.Scheme)
	}

	host := parsed.Hostname()
	if host == "" {
		return Target{}, fmt.Errorf("url %q has no host", raw)
	}

	port := uint16(80)
	if scheme == SchemeHTTPS {
		port = 443
	}
	defaultPort := port
	if p := parsed.Port(); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil || n < 1 || n > 65535 {
			return Target{}, fmt.Errorf("invalid url port %q", p)
		}
		port = uint16(n)
	}

	hostHeader := host
	if ip := net.ParseIP(host); ip != nil && ip.To4() == nil {
		hostHeader = "[" + host + "]"
	}
	if port != defaultPort {
		hostHeader += ":" + strconv.Itoa(int(port))
	}

	address := host
	if net.ParseIP(host) == nil {
		addrs, err := net.DefaultResolver.LookupIPAddr(ctx, host)
		if err != nil {
			return Target{}, fmt.Errorf("resolving %q: %w", host, err)
		}
		if len(addrs) == 0 {
			return Target{}, fmt.Errorf("resolving %q: no addresses", host)
		}
		address = addrs[0].IP.String()
	}

	return Target{Scheme: scheme, Address: address, Port: port, HostHeader: hostHeader}, nil
}

// sniHost strips brackets and any explicit port from a host header.
func sniHost(hostHeader string) string {
	host := hostHeader
	if strings.HasPrefix(host, "[") {
		if end := strings.IndexByte(host, ']'); end > 0 {
			return host[1:end]
		}
	}
	if colon := strings.LastIndexByte(host, ':'); colon >= 0 && strings.Count(host, ":") == 1 {
		if _, err := strconv.Atoi(host[colon+1:]); err == nil {
			return host[:colon]
		}
	}
	return host
}

// Session owns one stream to a target. It connects lazily, performs one
// request/response at a time, and stays open for reuse while the peer
// honors keep-alive.
type Session struct {
	target    Target
	tlsConfig *tls.Config
	conn      net.Conn
	reader    *bufio.Reader
}

// NewSession creates an unconnected session. tlsConfig may be nil; HTTPS
// targets then use a default verifying config.
func NewSession(target Target, tlsConfig *tls.Config) *Session {
	return &Session{target: target, tlsConfig: tlsConfig}
}

// IsOpen reports whether the session holds a live stream.
func (s *Session) IsOpen() bool {
	return s.conn != nil
}

// Close shuts the underlying stream.
func (s *Session) Close() {
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
		s.reader = nil
	}
}

func (s *Session) connect(timeout time.Duration) error {
	if s.IsOpen() {
		return nil
	}

	dialer := &net.Dialer{Timeout: timeout}
	var (
		conn net.Conn
		err  error
	)
	if s.target.Scheme == SchemeHTTPS {
		cfg := s.tlsConfig
		if cfg == nil {
			cfg = &tls.Config{}
		} else {
			cfg = cfg.Clone()
		}
		if cfg.ServerName == "" {
			cfg.ServerName = sniHost(s.target.Host())
		}
		conn, err = tls.DialWithDialer(dialer, "tcp", s.target.hostPort(), cfg)
	} else {
		conn, err = dialer.Dial("tcp", s.target.hostPort())
	}
	if err != nil {
		if isTimeout(err) {
			return ErrTimeout
		}
		return fmt.Errorf("connecting to %s: %w", s.target.hostPort(), err)
	}

	s.conn = conn
	s.reader = bufio.NewReader(conn)
	return nil
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// Request connects if needed, writes one request, and reads one response.
// Connect, write, and read each observe the same timeout; on timeout the
// stream is cancelled, the session closed, and ErrTimeout returned. The
// response body is fully read so the session is immediately reusable.
func (s *Session) Request(req *http.Request, timeout time.Duration) (*http.Response, error) {
	if err := s.connect(timeout); err != nil {
		s.Close()
		return nil, err
	}

	req.Proto = "HTTP/1.1"
	req.ProtoMajor = 1
	req.ProtoMinor = 1
	if req.Host == "" {
		req.Host = s.target.Host()
	}
	if req.Header.Get("Connection") == "" {
		req.Header.Set("Connection", "keep-alive")
	}

	if timeout > 0 {
		_ = s.conn.SetDeadline(time.Now().Add(timeout))
	}

	if err := req.Write(s.conn); err != nil {
		s.Close()
		if isTimeout(err) {
			return nil, ErrTimeout
		}
		return nil, fmt.Errorf("writing request: %w", err)
	}

	resp, err := http.ReadResponse(s.reader, req)
	if err != nil {
		s.Close()
		if isTimeout(err) {
			return nil, ErrTimeout
		}
		return nil, fmt.Errorf("reading response: %w", err)
	}

	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		s.Close()
		if isTimeout(err) {
			return nil, ErrTimeout
		}
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	resp.Body = io.NopCloser(bytes.NewReader(body))

	_ = s.conn.SetDeadline(time.Time{})

	if resp.Close {
		s.Close()
	}
	return resp, nil
}

// PoolOptions tunes a session pool.
type PoolOptions struct {
	MaxSessions    int
	TLSConfig      *tls.Config
	RequestTimeout time.Duration
}

// DefaultPoolOptions returns the standard pool tuning.
func DefaultPoolOptions() PoolOptions {
	return PoolOptions{
		MaxSessions:    8,
		RequestTimeout: 30 * time.Second,
	}
}

// Pool bounds the sessions for one target: the sum of in-flight and idle
// sessions never exceeds MaxSessions.
type Pool struct {
	target Target
	opts   PoolOptions

	mu      sync.Mutex
	created int
	idle    chan *Session
}

// NewPool creates a pool for the target.
func NewPool(target Target, opts PoolOptions) *Pool {
	if opts.MaxSessions < 1 {
		opts.MaxSessions = 1
	}
	return &Pool{
		target: target,
		opts:   opts,
		idle:   make(chan *Session, opts.MaxSessions),
	}
}

// Target returns the pool's endpoint.
func (p *Pool) Target() Target {
	return p.target
}

// Options returns the pool tuning.
func (p *Pool) Options() PoolOptions {
	return p.opts
}

// Acquire returns a fresh session while under the cap, otherwise waits
// for an idle one.
func (p *Pool) Acquire(ctx context.Context) (*Session, error) {
	p.mu.Lock()
	if p.created < p.opts.MaxSessions {
		p.created++
		p.mu.Unlock()
		return NewSession(p.target, p.opts.TLSConfig), nil
	}
	p.mu.Unlock()

	select {
	case session := <-p.idle:
		return session, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("httppool: acquiring session: %w", ctx.Err())
	}
}

// Release returns a session to the pool. Closed sessions, and open ones
// that do not fit the idle queue, give their slot back to the counter.
func (p *Pool) Release(session *Session) {
	if session == nil || !session.IsOpen() {
		p.drop()
		return
	}
	select {
	case p.idle <- session:
	default:
		session.Close()
		p.drop()
	}
}

func (p *Pool) drop() {
	p.mu.Lock()
	if p.created > 0 {
		p.created--
	}
	p.mu.Unlock()
}

// Directory shares pools across clients keyed by target identity.
type Directory struct {
	mu    sync.Mutex
	pools map[key]*Pool
}

// NewDirectory creates an empty pool directory.
func NewDirectory() *Directory {
	return &Directory{pools: map[key]*Pool{}}
}

// PoolFor returns the shared pool for a target, creating it on first use.
func (d *Directory) PoolFor(target Target, opts PoolOptions) *Pool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if pool, ok := d.pools[target.key()]; ok {
		return pool
	}
	pool := NewPool(target, opts)
	d.pools[target.key()] = pool
	return pool
}

// defaultDirectory is the process-wide pool directory. It has a single
// init point and no teardown.
var defaultDirectory = NewDirectory()

// SharedPool returns the process-wide pool for a target.
func SharedPool(target Target, opts PoolOptions) *Pool {
	return defaultDirectory.PoolFor(target, opts)
}

// Client issues requests through a pool, always restoring the session
// accounting.
type Client struct {
	pool *Pool
}

// NewClient creates a client over an existing pool.
func NewClient(pool *Pool) *Client {
	return &Client{pool: pool}
}

// NewClientForTarget creates a client over the shared pool for target.
func NewClientForTarget(target Target, opts PoolOptions) *Client {
	return &Client{pool: SharedPool(target, opts)}
}

// Target returns the client's endpoint.
func (c *Client) Target() Target {
	return c.pool.target
}

// Request acquires a session, dispatches the request, and releases the
// session. Failed sessions are closed before release so the pool slot is
// reclaimed.
func (c *Client) Request(ctx context.Context, req *http.Request, timeout time.Duration) (*http.Response, error) {
	if timeout <= 0 {
		timeout = c.pool.opts.RequestTimeout
	}

	session, err := c.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := session.Request(req, timeout)
	if err != nil {
		session.Close()
	}
	c.pool.Release(session)
	return resp, err
}
