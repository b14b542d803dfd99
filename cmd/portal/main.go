// Package main provides the portal front door: it terminates telnet
// sessions, negotiates protocol options, and bridges authenticated
// sessions to the game backend over pooled HTTP clients.
package main

import (
	"context"
	"crypto/tls"
	"log"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/cory-johannsen/portal/internal/config"
	"github.com/cory-johannsen/portal/internal/httppool"
	"github.com/cory-johannsen/portal/internal/observability"
	"github.com/cory-johannsen/portal/internal/portal"
	"github.com/cory-johannsen/portal/internal/server"
	"github.com/cory-johannsen/portal/internal/telnet"
)

func main() {
	start := time.Now()

	configPath := pflag.String("config", "configs/dev.yaml", "path to configuration file")
	pflag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("starting volcano portal",
		zap.String("telnet_addr", cfg.Telnet.Addr()),
		zap.String("backend_url", cfg.Backend.URL),
	)

	ctx := context.Background()

	target, err := httppool.ParseTarget(ctx, cfg.Backend.URL)
	if err != nil {
		logger.Fatal("parsing backend url", zap.Error(err))
	}
	poolOpts := httppool.DefaultPoolOptions()
	poolOpts.MaxSessions = cfg.Backend.MaxSessions
	poolOpts.RequestTimeout = cfg.Backend.RequestTimeout
	backendClient := httppool.NewClientForTarget(target, poolOpts)

	var tlsConfig *tls.Config
	if cfg.Telnet.TLSPort != 0 {
		cert, err := tls.LoadX509KeyPair(cfg.TLS.CertFile, cfg.TLS.KeyFile)
		if err != nil {
			logger.Fatal("loading tls material", zap.Error(err))
		}
		tlsConfig = &tls.Config{Certificates: []tls.Certificate{cert}}
	}

	connCfg := telnet.DefaultConnConfig()
	connCfg.NegotiationTimeout = cfg.Telnet.NegotiationTimeout
	connCfg.KeepAliveInterval = cfg.Telnet.KeepAliveInterval
	connCfg.Limits = telnet.Limits{
		MaxMessageBuffer: cfg.Telnet.MaxMessageBuffer,
		MaxAppdataBuffer: cfg.Telnet.MaxAppdataBuffer,
	}

	acceptor := telnet.NewAcceptor(telnet.AcceptorConfig{
		Addr:      cfg.Telnet.Addr(),
		TLSAddr:   cfg.Telnet.TLSAddr(),
		TLSConfig: tlsConfig,
		Conn:      connCfg,
	}, logger)

	verifier := portal.NewTokenVerifier([]byte(cfg.Auth.JWTSecret))
	portalCfg := portal.DefaultConfig()
	portalCfg.RefreshMargin = cfg.Auth.RefreshMargin
	supervisor := portal.NewSupervisor(telnet.Links(), backendClient, verifier, portalCfg, logger)

	lifecycle := server.NewLifecycle(logger)
	lifecycle.Add("portal-clients", &server.FuncService{
		StartFn: supervisor.Start,
		StopFn:  supervisor.Stop,
	})
	lifecycle.Add("telnet", &server.FuncService{
		StartFn: acceptor.ListenAndServe,
		StopFn:  acceptor.Stop,
	})

	logger.Info("portal initialized",
		zap.Duration("startup", time.Since(start)),
	)

	if err := lifecycle.Run(ctx); err != nil {
		logger.Fatal("portal error", zap.Error(err))
	}
}
