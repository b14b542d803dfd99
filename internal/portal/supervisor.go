package portal

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/cory-johannsen/portal/internal/httppool"
	"github.com/cory-johannsen/portal/internal/telnet"
)

// Supervisor consumes negotiated telnet links and runs a portal client
// per session against a shared backend pool.
type Supervisor struct {
	links    <-chan *telnet.Link
	http     *httppool.Client
	verifier *TokenVerifier
	cfg      Config
	logger   *zap.Logger

	cancel context.CancelFunc
	done   chan struct{}
	wg     sync.WaitGroup
}

// NewSupervisor creates a supervisor over the given link source.
func NewSupervisor(links <-chan *telnet.Link, httpClient *httppool.Client, verifier *TokenVerifier, cfg Config, logger *zap.Logger) *Supervisor {
	return &Supervisor{
		links:    links,
		http:     httpClient,
		verifier: verifier,
		cfg:      cfg,
		logger:   logger,
		done:     make(chan struct{}),
	}
}

// Start blocks consuming links until Stop is called.
func (s *Supervisor) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	defer close(s.done)

	for {
		select {
		case <-ctx.Done():
			s.wg.Wait()
			return nil
		case link := <-s.links:
			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				s.runClient(ctx, link)
			}()
		}
	}
}

func (s *Supervisor) runClient(ctx context.Context, link *telnet.Link) {
	client := NewClient(link, s.http, s.verifier, s.cfg, s.logger)
	s.logger.Info("portal client started",
		zap.Int64("connection_id", link.ConnectionID),
		zap.String("client_id", client.ID.String()),
	)
	if err := client.Run(ctx, NewLoginHandler(s.logger)); err != nil && ctx.Err() == nil {
		s.logger.Warn("portal client failed",
			zap.Int64("connection_id", link.ConnectionID),
			zap.Error(err),
		)
	}
}

// Stop cancels every client and waits for them to unwind.
func (s *Supervisor) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	<-s.done
}
