// Package protocol implements the wire framing and message schema for
// the tank arena server: a 4-byte big-endian length prefix followed by
// an opaque payload, and the tagged union of client/server messages
// carried inside that payload.
package protocol

import (
	"encoding/binary"
	"fmt"
)

// FrameHeaderSize is the size in bytes of the length prefix.
const FrameHeaderSize = 4

// DefaultMaxFrameSize is the default ceiling on a single frame's
// declared payload length, matching spec.md's 64 KiB example.
const DefaultMaxFrameSize = 64 * 1024

// ErrFrameTooLarge is returned by Decoder.Extract when a peer declares
// a frame length exceeding the configured maximum. The connection
// worker treats this as a fatal frame error (spec.md §4.1 / §7.3).
type ErrFrameTooLarge struct {
	Declared int
	Max      int
}

func (e *ErrFrameTooLarge) Error() string {
	return fmt.Sprintf("frame length %d exceeds maximum %d", e.Declared, e.Max)
}

// Encode writes the length-prefixed frame for payload into a fresh
// byte slice: 4-byte big-endian length followed by payload.
func Encode(payload []byte) []byte {
	buf := make([]byte, FrameHeaderSize+len(payload))
	binary.BigEndian.PutUint32(buf[:FrameHeaderSize], uint32(len(payload)))
	copy(buf[FrameHeaderSize:], payload)
	return buf
}

// Decoder accumulates bytes from a stream and extracts complete
// frames, tolerating arbitrary fragmentation and coalescing of reads.
// Not safe for concurrent use — one Decoder per connection, owned by
// that connection's read loop only.
type Decoder struct {
	buf         []byte
	maxPayload  int
}

// NewDecoder creates a streaming frame decoder. maxPayload <= 0 uses
// DefaultMaxFrameSize.
func NewDecoder(maxPayload int) *Decoder {
	if maxPayload <= 0 {
		maxPayload = DefaultMaxFrameSize
	}
	return &Decoder{maxPayload: maxPayload}
}

// Feed appends newly-read bytes to the decoder's internal buffer.
func (d *Decoder) Feed(chunk []byte) {
	d.buf = append(d.buf, chunk...)
}

// Extract removes and returns the next complete frame's payload, if
// one is fully buffered. ok is false when more bytes are needed (not
// an error — the caller should read more and call Feed again). A
// non-nil error is always fatal: the declared length exceeded the
// configured maximum and the connection must be closed.
//
// Extract may be called repeatedly after a single Feed to drain
// multiple frames that arrived coalesced in one read.
func (d *Decoder) Extract() (payload []byte, ok bool, err error) {
	if len(d.buf) < FrameHeaderSize {
		return nil, false, nil
	}

	n := int(binary.BigEndian.Uint32(d.buf[:FrameHeaderSize]))
	if n > d.maxPayload {
		return nil, false, &ErrFrameTooLarge{Declared: n, Max: d.maxPayload}
	}

	total := FrameHeaderSize + n
	if len(d.buf) < total {
		return nil, false, nil
	}

	payload = make([]byte, n)
	copy(payload, d.buf[FrameHeaderSize:total])

	remaining := len(d.buf) - total
	copy(d.buf, d.buf[total:])
	d.buf = d.buf[:remaining]

	return payload, true, nil
}

// Buffered reports how many bytes are currently held awaiting a
// complete frame. Exposed for tests and diagnostics.
func (d *Decoder) Buffered() int {
	return len(d.buf)
}
