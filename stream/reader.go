package stream

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/nvr-ai/go-east/images"
)

// DefaultChunkSize is the number of bytes requested per read.
const DefaultChunkSize = 1024

// NetworkError is a failure of the underlying byte source. It ends the
// capture loop.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("stream: %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *NetworkError) Unwrap() error { return e.Err }

// Cause returns the underlying error for github.com/pkg/errors.
func (e *NetworkError) Cause() error { return e.Err }

// FrameHandler receives decoded frames in arrival order. A non-nil error
// stops Run and is returned from it.
type FrameHandler func(ctx context.Context, frame images.Frame) error

type runOptions struct {
	chunkSize int
	logger    *zap.SugaredLogger
	stats     *Stats
	now       func() time.Time
}

// RunOption configures Run.
type RunOption func(*runOptions)

// WithChunkSize sets the read size. Values <= 0 are ignored.
func WithChunkSize(n int) RunOption {
	return func(o *runOptions) {
		if n > 0 {
			o.chunkSize = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.SugaredLogger) RunOption {
	return func(o *runOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithStats sets the counters updated by the loop.
func WithStats(s *Stats) RunOption {
	return func(o *runOptions) {
		if s != nil {
			o.stats = s
		}
	}
}

// Run reads r in chunks until end of stream, extracting, decoding and
// handing each frame to handle in order.
//
// Arguments:
//   - ctx: Checked before every read; cancellation returns ctx.Err().
//   - r: The byte source.
//   - ex: The extractor holding the pending bytes.
//   - dec: The payload decoder. Payloads failing with ErrDecodeFailure are
//     counted and skipped.
//   - handle: Called for every decoded frame.
//   - opts: Optional settings.
//
// Returns:
//   - error: nil at end of stream, ctx.Err() on cancellation, a
//     *NetworkError on read failure, or the first handler or decoder error.
func Run(ctx context.Context, r io.Reader, ex *Extractor, dec Decoder, handle FrameHandler, opts ...RunOption) error {
	o := runOptions{
		chunkSize: DefaultChunkSize,
		logger:    zap.NewNop().Sugar(),
		stats:     &Stats{},
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}

	var seq uint64
	chunk := make([]byte, o.chunkSize)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, readErr := r.Read(chunk)
		if n > 0 {
			o.stats.BytesRead.Add(int64(n))

			payloads, err := ex.Feed(chunk[:n])
			if errors.Is(err, ErrUnboundedBuffer) {
				o.stats.BufferOverflows.Inc()
				o.logger.Warnw("discarded stream buffer", "max_buffer", ex.maxBuffer)
			}

			for _, payload := range payloads {
				img, err := dec.Decode(payload)
				if errors.Is(err, ErrDecodeFailure) {
					o.stats.DecodeFailures.Inc()
					o.logger.Debugw("skipping undecodable frame", "bytes", len(payload), "error", err)
					continue
				}
				if err != nil {
					return err
				}

				if err := ctx.Err(); err != nil {
					return err
				}
				seq++
				o.stats.Frames.Inc()
				frame := images.Frame{Seq: seq, Image: img, Timestamp: o.now()}
				if err := handle(ctx, frame); err != nil {
					return err
				}
			}
		}

		switch {
		case readErr == nil:
		case errors.Is(readErr, io.EOF):
			return nil
		case ctx.Err() != nil:
			return ctx.Err()
		default:
			return &NetworkError{Op: "read", Err: readErr}
		}
	}
}
