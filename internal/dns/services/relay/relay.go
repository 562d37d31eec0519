// Package relay implements the per-query pipeline: cache lookup, forward on
// miss, cache population, and the raw bytes to reply with.
package relay

import (
	"context"
	"fmt"

	"github.com/fwdns/fwdns/internal/dns/common/clock"
	"github.com/fwdns/fwdns/internal/dns/common/log"
	"github.com/fwdns/fwdns/internal/dns/domain"
	"github.com/fwdns/fwdns/internal/dns/gateways/wire"
)

// Service orchestrates one query end to end. All state is local to a single
// HandleQuery call except the injected cache.
type Service struct {
	cache     Cache
	forwarder Forwarder
	codec     wire.Codec
	clock     clock.Clock
	logger    log.Logger
}

// Options holds the dependencies for a relay Service.
type Options struct {
	Cache     Cache
	Forwarder Forwarder
	Codec     wire.Codec
	Clock     clock.Clock
	Logger    log.Logger
}

// New constructs a relay Service. All dependencies are required.
func New(opts Options) (*Service, error) {
	if opts.Cache == nil {
		return nil, fmt.Errorf("cache is required")
	}
	if opts.Forwarder == nil {
		return nil, fmt.Errorf("forwarder is required")
	}
	if opts.Codec == nil {
		return nil, fmt.Errorf("codec is required")
	}
	if opts.Clock == nil {
		return nil, fmt.Errorf("clock is required")
	}
	if opts.Logger == nil {
		opts.Logger = log.NewNoopLogger()
	}
	return &Service{
		cache:     opts.Cache,
		forwarder: opts.Forwarder,
		codec:     opts.Codec,
		clock:     opts.Clock,
		logger:    opts.Logger,
	}, nil
}

// HandleQuery resolves one query. On a cache hit it replays the stored bytes
// with only the transaction id rewritten to the caller's; answer TTLs are
// replayed as stored, not decremented. On a miss it forwards the caller's own
// raw bytes upstream, caches a successful reply for the minimum answer TTL
// (60s when there are no answers), and returns the reply unmodified - the
// upstream already echoed the caller's transaction id. A returned error means
// the query is dropped: nothing is sent to the client and nothing is cached.
func (s *Service) HandleQuery(ctx context.Context, q domain.Question, raw []byte) ([]byte, error) {
	key := q.CacheKey()

	if cached, ok := s.cache.Lookup(key); ok {
		reply := make([]byte, len(cached))
		copy(reply, cached)
		s.codec.PatchID(reply, q.ID)

		s.logger.Debug(map[string]any{
			"name": q.Name,
			"type": q.Type.String(),
			"id":   q.ID,
		}, "Cache hit")
		return reply, nil
	}

	response, err := s.forwarder.Forward(ctx, raw)
	if err != nil {
		return nil, err
	}

	ttl, err := s.codec.MinimumTTL(response)
	if err != nil {
		return nil, err
	}

	s.cache.Store(key, response, s.clock.Now().Add(ttl))

	s.logger.Debug(map[string]any{
		"name": q.Name,
		"type": q.Type.String(),
		"id":   q.ID,
		"ttl":  ttl.Seconds(),
		"size": len(response),
	}, "Cache miss forwarded and stored")

	return response, nil
}

var _ PacketHandler = (*Service)(nil)
