package domain

import "errors"

// Error kinds distinguished by the request pipeline. All of them terminate a
// single request with a silent drop; none of them reach the listener.
var (
	// ErrBadQuery marks an inbound datagram that could not be decoded as a
	// DNS query.
	ErrBadQuery = errors.New("malformed DNS query")

	// ErrUpstreamTimeout marks a forward attempt that got no reply within
	// the configured window. This is an expected outcome, not a fault; the
	// client retries on its own timer.
	ErrUpstreamTimeout = errors.New("upstream timed out")

	// ErrBadUpstreamResponse marks an upstream reply that could not be
	// parsed. Such replies are never cached or relayed.
	ErrBadUpstreamResponse = errors.New("malformed upstream response")
)
