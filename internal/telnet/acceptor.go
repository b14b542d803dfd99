package telnet

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"
)

// AcceptorConfig holds the listener addresses and per-connection tuning.
type AcceptorConfig struct {
	// Addr is the plain TCP listen address.
	Addr string
	// TLSAddr is the TLS listen address; empty disables the TLS listener.
	TLSAddr string
	// TLSConfig supplies certificates for the TLS listener.
	TLSConfig *tls.Config
	// Conn tunes every accepted connection.
	Conn ConnConfig
}

// Acceptor listens for telnet connections and runs a Conn per accepted
// socket. Negotiated sessions surface on the process-wide link channel.
type Acceptor struct {
	cfg    AcceptorConfig
	logger *zap.Logger

	mu        sync.Mutex
	listeners []net.Listener
	running   bool
	quit      chan struct{}
	wg        sync.WaitGroup
}

// NewAcceptor creates an acceptor with the given configuration.
//
// Precondition: cfg.Addr must be a valid listen address; logger must be
// non-nil.
func NewAcceptor(cfg AcceptorConfig, logger *zap.Logger) *Acceptor {
	return &Acceptor{
		cfg:    cfg,
		logger: logger,
		quit:   make(chan struct{}),
	}
}

// ListenAndServe starts the TCP listener (and the TLS listener when
// configured) and accepts connections until Stop is called. It blocks
// until the acceptor is stopped.
func (a *Acceptor) ListenAndServe() error {
	start := time.Now()

	plain, err := net.Listen("tcp", a.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", a.cfg.Addr, err)
	}

	listeners := []net.Listener{plain}
	if a.cfg.TLSAddr != "" {
		if a.cfg.TLSConfig == nil {
			plain.Close()
			return fmt.Errorf("tls listener %s requires a tls config", a.cfg.TLSAddr)
		}
		secure, err := tls.Listen("tcp", a.cfg.TLSAddr, a.cfg.TLSConfig)
		if err != nil {
			plain.Close()
			return fmt.Errorf("listening on %s: %w", a.cfg.TLSAddr, err)
		}
		listeners = append(listeners, secure)
	}

	a.mu.Lock()
	a.listeners = listeners
	a.running = true
	a.mu.Unlock()

	a.logger.Info("telnet acceptor listening",
		zap.String("addr", plain.Addr().String()),
		zap.Bool("tls", a.cfg.TLSAddr != ""),
		zap.Duration("startup", time.Since(start)),
	)

	var serveWg sync.WaitGroup
	for i, listener := range listeners {
		tlsActive := i > 0
		serveWg.Add(1)
		go func(l net.Listener) {
			defer serveWg.Done()
			a.serve(l, tlsActive)
		}(listener)
	}
	serveWg.Wait()
	return nil
}

func (a *Acceptor) serve(listener net.Listener, tlsActive bool) {
	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-a.quit:
				return
			default:
				a.logger.Error("accepting connection", zap.Error(err))
				continue
			}
		}

		a.wg.Add(1)
		go a.handleConn(conn, tlsActive)
	}
}

func (a *Acceptor) handleConn(raw net.Conn, tlsActive bool) {
	defer a.wg.Done()
	start := time.Now()
	addr := raw.RemoteAddr().String()

	a.logger.Info("client connected",
		zap.String("remote_addr", addr),
		zap.Bool("tls", tlsActive),
	)

	conn := NewConn(raw, tlsActive, a.cfg.Conn, a.logger)
	defer raw.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-a.quit:
			cancel()
		case <-ctx.Done():
		}
	}()

	reason := conn.Run(ctx)
	a.logger.Info("session ended",
		zap.String("remote_addr", addr),
		zap.String("reason", reason.String()),
		zap.Duration("duration", time.Since(start)),
	)
}

// Stop closes the listeners and waits for active sessions to finish.
func (a *Acceptor) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.running {
		return
	}
	a.running = false

	close(a.quit)
	for _, listener := range a.listeners {
		listener.Close()
	}
	a.wg.Wait()

	a.logger.Info("telnet acceptor stopped")
}

// Addr returns the plain listener's address, or empty before listening.
func (a *Acceptor) Addr() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.listeners) > 0 {
		return a.listeners[0].Addr().String()
	}
	return ""
}
