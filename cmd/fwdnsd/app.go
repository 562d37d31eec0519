package main

import (
	"context"
	"fmt"

	"github.com/fwdns/fwdns/internal/dns/common/clock"
	"github.com/fwdns/fwdns/internal/dns/common/log"
	"github.com/fwdns/fwdns/internal/dns/config"
	"github.com/fwdns/fwdns/internal/dns/gateways/transport"
	"github.com/fwdns/fwdns/internal/dns/gateways/upstream"
	"github.com/fwdns/fwdns/internal/dns/gateways/wire"
	"github.com/fwdns/fwdns/internal/dns/repos/msgcache"
	"github.com/fwdns/fwdns/internal/dns/services/relay"
)

// Application wires the proxy together: config, the UDP transport, and the
// relay service behind it.
type Application struct {
	config    *config.AppConfig
	transport *transport.UDPTransport
	handler   relay.PacketHandler
}

// buildApplication constructs all components and connects them.
func buildApplication(cfg *config.AppConfig) (*Application, error) {
	clk := clock.RealClock{}
	logger := log.GetLogger()
	codec := wire.NewRawCodec()

	cache := msgcache.New(clk)

	forwarder, err := upstream.NewForwarder(upstream.Options{
		Addr:    cfg.Upstream,
		Timeout: cfg.UpstreamTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create forwarder: %w", err)
	}

	relayService, err := relay.New(relay.Options{
		Cache:     cache,
		Forwarder: forwarder,
		Codec:     codec,
		Clock:     clk,
		Logger:    logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create relay service: %w", err)
	}

	udpTransport := transport.NewUDPTransport(cfg.ListenAddr(), codec, logger)

	return &Application{
		config:    cfg,
		transport: udpTransport,
		handler:   relayService,
	}, nil
}

// Start binds the listening socket and begins serving. A bind failure is
// fatal to the caller; ports below 1024 need elevated privileges.
func (app *Application) Start(ctx context.Context) error {
	if err := app.transport.Start(ctx, app.handler); err != nil {
		if app.config.Port < 1024 {
			return fmt.Errorf("%w (binding port %d requires elevated privileges; run as root or choose a port >= 1024)", err, app.config.Port)
		}
		return err
	}
	return nil
}

// Wait blocks until the context is cancelled, then stops the transport.
func (app *Application) Wait(ctx context.Context) {
	<-ctx.Done()
	log.Info(nil, "Shutdown initiated")
	if err := app.transport.Stop(); err != nil {
		log.Warn(map[string]any{"error": err.Error()}, "Error during transport shutdown")
	}
}
