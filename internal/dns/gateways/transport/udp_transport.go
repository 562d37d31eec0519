// Package transport owns the client-facing UDP socket: it receives query
// datagrams, dispatches each to a concurrent handler invocation, and writes
// replies back to the source address.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/fwdns/fwdns/internal/dns/common/log"
	"github.com/fwdns/fwdns/internal/dns/domain"
	"github.com/fwdns/fwdns/internal/dns/gateways/wire"
	"github.com/fwdns/fwdns/internal/dns/services/relay"
)

// queryBufferSize is the classic 512-byte UDP DNS query limit (RFC 1035).
const queryBufferSize = 512

// UDPTransport listens for DNS queries over UDP. Each received datagram is
// handled in its own goroutine; the receive loop itself never blocks on
// handler work. Concurrency is unbounded, matching the proxy's documented
// no-backpressure model.
type UDPTransport struct {
	addr   string
	conn   *net.UDPConn
	codec  wire.Codec
	logger log.Logger

	mu      sync.RWMutex
	running bool
	stopCh  chan struct{}
}

// NewUDPTransport creates a transport bound to addr once Start is called.
func NewUDPTransport(addr string, codec wire.Codec, logger log.Logger) *UDPTransport {
	return &UDPTransport{
		addr:   addr,
		codec:  codec,
		logger: logger,
		stopCh: make(chan struct{}),
	}
}

// Start binds the UDP socket and launches the receive loop. A bind failure is
// returned to the caller, which treats it as fatal - binding port 53 needs
// elevated privileges and there is no fallback port.
func (t *UDPTransport) Start(ctx context.Context, handler relay.PacketHandler) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.running {
		return fmt.Errorf("UDP transport already running")
	}

	udpAddr, err := net.ResolveUDPAddr("udp", t.addr)
	if err != nil {
		return fmt.Errorf("failed to resolve UDP address %s: %w", t.addr, err)
	}

	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return fmt.Errorf("failed to bind UDP socket on %s: %w", t.addr, err)
	}

	t.conn = conn
	t.running = true

	t.logger.Info(map[string]any{
		"transport": "udp",
		"address":   conn.LocalAddr().String(),
	}, "DNS proxy listening")

	go t.listenLoop(ctx, handler)

	return nil
}

// Stop closes the socket and ends the receive loop.
func (t *UDPTransport) Stop() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.running {
		return nil
	}

	close(t.stopCh)

	var closeErr error
	if t.conn != nil {
		closeErr = t.conn.Close()
	}
	t.running = false

	t.logger.Info(map[string]any{
		"transport": "udp",
		"address":   t.addr,
	}, "DNS proxy stopped")

	return closeErr
}

// Address returns the address the transport is actually bound to. Useful when
// the configured port is 0.
func (t *UDPTransport) Address() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.conn != nil {
		return t.conn.LocalAddr().String()
	}
	return t.addr
}

// listenLoop receives datagrams one at a time and hands each to a new
// goroutine, resuming the receive immediately.
func (t *UDPTransport) listenLoop(ctx context.Context, handler relay.PacketHandler) {
	buffer := make([]byte, queryBufferSize)

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.stopCh:
			return
		default:
			n, clientAddr, err := t.conn.ReadFromUDP(buffer)
			if err != nil {
				t.mu.RLock()
				running := t.running
				t.mu.RUnlock()
				if !running {
					return
				}
				t.logger.Warn(map[string]any{
					"error": err.Error(),
				}, "Failed to read UDP packet")
				continue
			}

			packet := make([]byte, n)
			copy(packet, buffer[:n])
			go t.handlePacket(ctx, packet, clientAddr, handler)
		}
	}
}

// handlePacket runs one query through the relay pipeline. Every failure is
// contained here: the query is dropped, the client receives nothing, and the
// receive loop is unaffected.
func (t *UDPTransport) handlePacket(ctx context.Context, data []byte, clientAddr *net.UDPAddr, handler relay.PacketHandler) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error(map[string]any{
				"client": clientAddr.String(),
				"panic":  fmt.Sprintf("%v", r),
			}, "Handler panicked; query dropped")
		}
	}()

	question, err := t.codec.DecodeQuestion(data)
	if err != nil {
		t.logger.Warn(map[string]any{
			"client": clientAddr.String(),
			"size":   len(data),
			"error":  err.Error(),
		}, "Dropping undecodable query")
		return
	}

	reply, err := handler.HandleQuery(ctx, question, data)
	if err != nil {
		// A timed-out forward mirrors silent packet loss: the client
		// retries on its own timer, so no failure reply is synthesized.
		switch {
		case errors.Is(err, domain.ErrUpstreamTimeout):
			t.logger.Debug(map[string]any{
				"client": clientAddr.String(),
				"name":   question.Name,
				"type":   question.Type.String(),
			}, "Upstream timed out; query dropped")
		case errors.Is(err, domain.ErrBadUpstreamResponse):
			t.logger.Warn(map[string]any{
				"client": clientAddr.String(),
				"name":   question.Name,
				"error":  err.Error(),
			}, "Unparseable upstream reply; query dropped")
		default:
			t.logger.Error(map[string]any{
				"client": clientAddr.String(),
				"name":   question.Name,
				"error":  err.Error(),
			}, "Failed to handle query; dropped")
		}
		return
	}

	if _, err := t.conn.WriteToUDP(reply, clientAddr); err != nil {
		t.logger.Error(map[string]any{
			"client": clientAddr.String(),
			"error":  err.Error(),
		}, "Failed to send reply")
		return
	}

	t.logger.Debug(map[string]any{
		"client": clientAddr.String(),
		"name":   question.Name,
		"type":   question.Type.String(),
		"id":     question.ID,
		"size":   len(reply),
	}, "Sent reply")
}
