// Package upstream relays raw query packets to the fixed upstream resolver
// over UDP.
package upstream

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/fwdns/fwdns/internal/dns/domain"
	"github.com/fwdns/fwdns/internal/dns/services/relay"
)

const (
	// Upstream replies may exceed the 512-byte query limit (EDNS), so the
	// read buffer is larger than the listener's.
	responseBufferSize = 4096

	defaultTimeout = 3 * time.Second
)

// DialFunc creates the per-call network connection. Injected so tests can
// substitute an in-memory conn.
type DialFunc func(ctx context.Context, network, address string) (net.Conn, error)

// Forwarder sends each query on a fresh UDP socket to one fixed upstream
// address and waits a bounded time for exactly one reply datagram. There is
// no pooling, no retry, and no failover.
type Forwarder struct {
	addr    string
	timeout time.Duration
	dial    DialFunc
}

// Options configures a Forwarder.
type Options struct {
	// Addr is the upstream resolver in ip:port form. Required.
	Addr string

	// Timeout bounds the wait for a reply. Defaults to 3 seconds.
	Timeout time.Duration

	// Dial overrides the connection factory. Defaults to net.Dialer.
	Dial DialFunc
}

// NewForwarder creates a Forwarder for the given upstream address.
func NewForwarder(opts Options) (*Forwarder, error) {
	if opts.Addr == "" {
		return nil, fmt.Errorf("upstream address is required")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.Dial == nil {
		opts.Dial = (&net.Dialer{}).DialContext
	}
	return &Forwarder{
		addr:    opts.Addr,
		timeout: opts.Timeout,
		dial:    opts.Dial,
	}, nil
}

// Forward sends raw unmodified to the upstream resolver and returns the raw
// reply. The socket is closed on every exit path. A missed deadline returns
// domain.ErrUpstreamTimeout; callers treat that as an ordinary drop.
func (f *Forwarder) Forward(ctx context.Context, raw []byte) ([]byte, error) {
	conn, err := f.dial(ctx, "udp", f.addr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to upstream %s: %w", f.addr, err)
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(f.timeout)); err != nil {
		return nil, fmt.Errorf("failed to set upstream deadline: %w", err)
	}

	if _, err := conn.Write(raw); err != nil {
		return nil, fmt.Errorf("failed to write query upstream: %w", err)
	}

	buffer := make([]byte, responseBufferSize)
	n, err := conn.Read(buffer)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return nil, fmt.Errorf("%w after %v", domain.ErrUpstreamTimeout, f.timeout)
		}
		return nil, fmt.Errorf("failed to read upstream reply: %w", err)
	}

	response := make([]byte, n)
	copy(response, buffer[:n])
	return response, nil
}

var _ relay.Forwarder = (*Forwarder)(nil)
