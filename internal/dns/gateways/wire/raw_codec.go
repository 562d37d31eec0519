package wire

import (
	"encoding/binary"
	"fmt"
	"strings"
	"time"

	"github.com/fwdns/fwdns/internal/dns/domain"
)

const headerLen = 12

// rawCodec implements Codec directly on the wire bytes, without building a
// full message model. The proxy never rewrites anything but the id field.
type rawCodec struct{}

// NewRawCodec returns a Codec for plain DNS over UDP packets.
func NewRawCodec() *rawCodec {
	return &rawCodec{}
}

// DecodeQuestion parses a DNS query message and returns its transaction id,
// question name, and question type.
func (c *rawCodec) DecodeQuestion(data []byte) (domain.Question, error) {
	if len(data) < headerLen {
		return domain.Question{}, fmt.Errorf("%w: packet too short (%d bytes)", domain.ErrBadQuery, len(data))
	}
	id := binary.BigEndian.Uint16(data[0:2])
	qdCount := binary.BigEndian.Uint16(data[4:6])
	if qdCount != 1 {
		return domain.Question{}, fmt.Errorf("%w: expected exactly one question, got %d", domain.ErrBadQuery, qdCount)
	}

	name, offset, err := decodeName(data, headerLen)
	if err != nil {
		return domain.Question{}, fmt.Errorf("%w: %v", domain.ErrBadQuery, err)
	}
	if offset+4 > len(data) {
		return domain.Question{}, fmt.Errorf("%w: truncated question", domain.ErrBadQuery)
	}
	qtype := binary.BigEndian.Uint16(data[offset : offset+2])

	return domain.Question{
		ID:   id,
		Name: name,
		Type: domain.RRType(qtype),
	}, nil
}

// PatchID overwrites the two-byte transaction id at the start of the packet.
// Callers replaying cached bytes must pass a copy, not the cached slice.
func (c *rawCodec) PatchID(data []byte, id uint16) {
	if len(data) < 2 {
		return
	}
	binary.BigEndian.PutUint16(data[0:2], id)
}

// MinimumTTL walks the answer section of a response and returns the smallest
// TTL found, or DefaultTTL when the response has no answers.
func (c *rawCodec) MinimumTTL(data []byte) (time.Duration, error) {
	if len(data) < headerLen {
		return 0, fmt.Errorf("%w: packet too short (%d bytes)", domain.ErrBadUpstreamResponse, len(data))
	}
	qdCount := binary.BigEndian.Uint16(data[4:6])
	anCount := binary.BigEndian.Uint16(data[6:8])

	offset := headerLen
	for i := 0; i < int(qdCount); i++ {
		next, err := skipName(data, offset)
		if err != nil {
			return 0, fmt.Errorf("%w: %v", domain.ErrBadUpstreamResponse, err)
		}
		offset = next + 4 // QTYPE + QCLASS
		if offset > len(data) {
			return 0, fmt.Errorf("%w: truncated question section", domain.ErrBadUpstreamResponse)
		}
	}

	if anCount == 0 {
		return DefaultTTL, nil
	}

	minTTL := uint32(0)
	for i := 0; i < int(anCount); i++ {
		next, err := skipName(data, offset)
		if err != nil {
			return 0, fmt.Errorf("%w: answer %d: %v", domain.ErrBadUpstreamResponse, i, err)
		}
		offset = next
		if offset+10 > len(data) {
			return 0, fmt.Errorf("%w: truncated answer %d", domain.ErrBadUpstreamResponse, i)
		}
		ttl := binary.BigEndian.Uint32(data[offset+4 : offset+8])
		rdLen := binary.BigEndian.Uint16(data[offset+8 : offset+10])
		offset += 10 + int(rdLen)
		if offset > len(data) {
			return 0, fmt.Errorf("%w: truncated rdata in answer %d", domain.ErrBadUpstreamResponse, i)
		}
		if i == 0 || ttl < minTTL {
			minTTL = ttl
		}
	}

	return time.Duration(minTTL) * time.Second, nil
}

// decodeName decodes a domain name at offset, following compression pointers
// as defined in RFC 1035. Returns the name and the offset just past it.
func decodeName(data []byte, offset int) (string, int, error) {
	var labels []string
	for {
		if offset >= len(data) {
			return "", 0, fmt.Errorf("name offset out of bounds")
		}
		length := int(data[offset])
		if length == 0 {
			offset++
			break
		}
		if length&0xC0 == 0xC0 {
			if offset+1 >= len(data) {
				return "", 0, fmt.Errorf("compression pointer out of bounds")
			}
			ptr := int(binary.BigEndian.Uint16(data[offset:offset+2]) & 0x3FFF)
			if ptr >= offset {
				return "", 0, fmt.Errorf("forward compression pointer")
			}
			suffix, _, err := decodeName(data, ptr)
			if err != nil {
				return "", 0, err
			}
			labels = append(labels, suffix)
			offset += 2
			return strings.Join(labels, "."), offset, nil
		}
		offset++
		if offset+length > len(data) {
			return "", 0, fmt.Errorf("label length out of bounds")
		}
		labels = append(labels, string(data[offset:offset+length]))
		offset += length
	}
	return strings.Join(labels, "."), offset, nil
}

// skipName advances past a (possibly compressed) name without decoding it.
func skipName(data []byte, offset int) (int, error) {
	for {
		if offset >= len(data) {
			return 0, fmt.Errorf("name offset out of bounds")
		}
		length := int(data[offset])
		if length == 0 {
			return offset + 1, nil
		}
		if length&0xC0 == 0xC0 {
			if offset+1 >= len(data) {
				return 0, fmt.Errorf("compression pointer out of bounds")
			}
			return offset + 2, nil
		}
		offset += 1 + length
	}
}

var _ Codec = (*rawCodec)(nil)
