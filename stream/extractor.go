// Package stream - MJPEG frame extraction, the chunked capture loop and the
// HTTP byte source feeding it.
package stream

import (
	"bytes"

	"github.com/pkg/errors"
)

// DefaultMaxBuffer is the default cap on bytes held while waiting for an end
// of image marker.
const DefaultMaxBuffer = 8 << 20

var (
	soi = []byte{0xFF, 0xD8}
	eoi = []byte{0xFF, 0xD9}
)

// ErrUnboundedBuffer is returned by Feed when the pending bytes exceed the
// buffer cap. The buffer has already been reset when it is returned.
var ErrUnboundedBuffer = errors.New("stream: buffer exceeded cap without a complete frame")

// Extractor splits a concatenated JPEG byte stream into frame payloads.
// It is not safe for concurrent use.
type Extractor struct {
	buf       []byte
	maxBuffer int
}

// NewExtractor creates an extractor.
//
// Arguments:
//   - maxBuffer: The largest number of pending bytes kept between calls to
//     Feed. Values <= 0 select DefaultMaxBuffer.
//
// Returns:
//   - *Extractor: The extractor.
func NewExtractor(maxBuffer int) *Extractor {
	if maxBuffer <= 0 {
		maxBuffer = DefaultMaxBuffer
	}
	return &Extractor{maxBuffer: maxBuffer}
}

// Feed appends chunk and returns every complete payload now available, in
// stream order. A payload runs from a start marker through the first end
// marker after it, both inclusive, and does not alias the internal buffer.
//
// Arguments:
//   - chunk: The next bytes read from the stream.
//
// Returns:
//   - [][]byte: The extracted payloads, possibly none.
//   - error: ErrUnboundedBuffer if the remaining bytes exceed the cap.
func (e *Extractor) Feed(chunk []byte) ([][]byte, error) {
	e.buf = append(e.buf, chunk...)

	var (
		frames   [][]byte
		consumed int
	)
	for {
		rest := e.buf[consumed:]
		start := bytes.Index(rest, soi)
		if start < 0 {
			break
		}
		end := bytes.Index(rest[start+len(soi):], eoi)
		if end < 0 {
			break
		}
		end += start + len(soi) + len(eoi)

		frame := make([]byte, end-start)
		copy(frame, rest[start:end])
		frames = append(frames, frame)
		consumed += end
	}
	if consumed > 0 {
		e.buf = append([]byte(nil), e.buf[consumed:]...)
	}

	if len(e.buf) > e.maxBuffer {
		e.Reset()
		return frames, ErrUnboundedBuffer
	}
	return frames, nil
}

// Reset discards all pending bytes.
func (e *Extractor) Reset() {
	e.buf = nil
}

// Buffered returns the number of pending bytes.
func (e *Extractor) Buffered() int {
	return len(e.buf)
}
