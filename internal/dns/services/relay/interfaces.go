package relay

import (
	"context"
	"time"

	"github.com/fwdns/fwdns/internal/dns/domain"
)

// Cache stores raw response packets by cache key with an absolute expiry.
type Cache interface {
	// Lookup returns the cached bytes for key if present and unexpired.
	Lookup(key string) ([]byte, bool)

	// Store replaces any entry for key with raw, valid until expiresAt.
	Store(key string, raw []byte, expiresAt time.Time)
}

// Forwarder relays one raw query to the fixed upstream resolver and returns
// the raw reply. A timeout surfaces as domain.ErrUpstreamTimeout.
type Forwarder interface {
	Forward(ctx context.Context, raw []byte) ([]byte, error)
}

// PacketHandler processes one decoded query and returns the raw bytes to send
// back to the client. A non-nil error means the query is dropped and the
// client receives nothing. Implemented by Service, consumed by the transport.
type PacketHandler interface {
	HandleQuery(ctx context.Context, q domain.Question, raw []byte) ([]byte, error)
}
