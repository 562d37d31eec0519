// Package wire reads just enough of the RFC 1035 wire format for the proxy to
// do its job: the question section of a query, the transaction id, and the
// answer TTLs of a response. Packets are otherwise relayed as opaque bytes.
package wire

import (
	"time"

	"github.com/fwdns/fwdns/internal/dns/domain"
)

// DefaultTTL is the cache lifetime applied to upstream replies that carry no
// answer records.
const DefaultTTL = 60 * time.Second

// Codec decodes the minimum the proxy needs from raw DNS packets.
type Codec interface {
	// DecodeQuestion parses the header and first question of a query.
	DecodeQuestion(data []byte) (domain.Question, error)

	// PatchID overwrites the transaction id field of a packet in place.
	PatchID(data []byte, id uint16)

	// MinimumTTL returns the smallest TTL across a response's answer
	// records, or DefaultTTL if it has none.
	MinimumTTL(data []byte) (time.Duration, error)
}
