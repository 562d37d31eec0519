package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fwdns/fwdns/internal/dns/config"
)

func testConfig() *config.AppConfig {
	return &config.AppConfig{
		Host:            "127.0.0.1",
		Port:            0, // ephemeral port for tests
		Upstream:        "127.0.0.1:5300",
		UpstreamTimeout: time.Second,
		Env:             "dev",
		LogLevel:        "error",
	}
}

func TestBuildApplication(t *testing.T) {
	app, err := buildApplication(testConfig())
	require.NoError(t, err)
	assert.NotNil(t, app.transport)
	assert.NotNil(t, app.handler)
}

func TestBuildApplication_BadUpstream(t *testing.T) {
	cfg := testConfig()
	cfg.Upstream = ""
	_, err := buildApplication(cfg)
	assert.Error(t, err)
}

func TestApplication_StartAndShutdown(t *testing.T) {
	app, err := buildApplication(testConfig())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, app.Start(ctx))

	done := make(chan struct{})
	go func() {
		app.Wait(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("shutdown did not complete")
	}
}
