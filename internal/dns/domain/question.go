// Package domain holds the value types shared across the proxy: the decoded
// question section of a query, the cache key derived from it, and the error
// kinds the pipeline distinguishes.
package domain

import "fmt"

// Question is the decoded question section of one inbound query, together
// with the transaction id from the header. It lives only for the duration of
// a single request.
type Question struct {
	ID   uint16
	Name string
	Type RRType
}

// CacheKey derives the cache key for this question. Responses are cached per
// (name, type) pair exactly as the wire parser yields the name, with no extra
// case or trailing-dot normalization.
func (q Question) CacheKey() string {
	return fmt.Sprintf("%s|%s", q.Name, q.Type)
}
