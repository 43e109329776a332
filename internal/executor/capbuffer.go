package executor

import "bytes"

// CapBuffer is a writer that retains at most Cap bytes and discards the
// rest, so a program flooding stdout can never grow broker memory beyond
// the configured limit. Writes never fail; overflow is counted, not
// buffered.
type CapBuffer struct {
	buf     bytes.Buffer
	cap     int
	dropped int64
}

// NewCapBuffer returns a buffer that keeps the first cap bytes written.
func NewCapBuffer(cap int) *CapBuffer {
	return &CapBuffer{cap: cap}
}

func (b *CapBuffer) Write(p []byte) (int, error) {
	room := b.cap - b.buf.Len()
	if room <= 0 {
		b.dropped += int64(len(p))
		return len(p), nil
	}
	if len(p) > room {
		b.buf.Write(p[:room])
		b.dropped += int64(len(p) - room)
		return len(p), nil
	}
	b.buf.Write(p)
	return len(p), nil
}

// String returns the retained bytes.
func (b *CapBuffer) String() string {
	return b.buf.String()
}

// Truncated reports whether any bytes were discarded.
func (b *CapBuffer) Truncated() bool {
	return b.dropped > 0
}
