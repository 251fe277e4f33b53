// Package controller - The capture loop: frames from a source are detected
// and the latest result is published for readers.
package controller

import (
	"context"
	"image"
	"io"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/nvr-ai/go-east/images"
	"github.com/nvr-ai/go-east/models/east"
	"github.com/nvr-ai/go-east/pipeline"
	"github.com/nvr-ai/go-east/slot"
	"github.com/nvr-ai/go-east/stream"
)

// Source opens the byte stream to read frames from.
type Source interface {
	Open(ctx context.Context) (io.ReadCloser, error)
}

// Detector runs detection on a frame.
type Detector interface {
	Detect(ctx context.Context, frame images.Frame) (*pipeline.Result, error)
}

// Config configures the capture loop.
type Config struct {
	// ChunkSize is the stream read size.
	ChunkSize int
	// MaxBuffer caps the bytes held while waiting for a frame to complete.
	MaxBuffer int
	// RetryDelay is the wait before reopening the source after a network
	// error. Zero returns the error instead.
	RetryDelay time.Duration
}

// DefaultConfig returns the default capture settings.
func DefaultConfig() Config {
	return Config{
		ChunkSize:  stream.DefaultChunkSize,
		MaxBuffer:  stream.DefaultMaxBuffer,
		RetryDelay: 2 * time.Second,
	}
}

// Controller owns the capture loop. It is the only writer of Results.
type Controller struct {
	Source   Source
	Decoder  stream.Decoder
	Detector Detector
	Results  *slot.Slot[pipeline.Result]
	Config   Config
	Logger   *zap.SugaredLogger
	// Stats counts stream events; it may be registered with a profiler.
	Stats *stream.Stats

	skipped atomic.Int64
}

// New creates a controller publishing to a new slot.
//
// Arguments:
//   - source: The frame byte source, or nil for still images only.
//   - decoder: The payload decoder.
//   - detector: The detection pipeline.
//   - cfg: Capture settings.
//   - logger: The logger; nil disables logging.
//
// Returns:
//   - *Controller: The controller.
func New(source Source, decoder stream.Decoder, detector Detector, cfg Config, logger *zap.SugaredLogger) *Controller {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Controller{
		Source:   source,
		Decoder:  decoder,
		Detector: detector,
		Results:  slot.New[pipeline.Result](),
		Config:   cfg,
		Logger:   logger,
		Stats:    &stream.Stats{},
	}
}

// Skipped returns the number of frames dropped because of malformed
// detector output.
func (c *Controller) Skipped() int64 {
	return c.skipped.Load()
}

// CollectMetrics reports the stream counters and skipped frames.
func (c *Controller) CollectMetrics() map[string]float64 {
	m := c.Stats.CollectMetrics()
	m["frames_skipped"] = float64(c.skipped.Load())
	m["results_published"] = float64(c.Results.Version())
	return m
}

// Run reads the source until it ends or ctx is done, publishing a Result
// for every processed frame.
//
// Arguments:
//   - ctx: Stops the loop; cancellation is a clean shutdown.
//
// Returns:
//   - error: nil at end of stream or shutdown, a *stream.NetworkError when
//     the source fails and retries are disabled, or a detector error.
func (c *Controller) Run(ctx context.Context) error {
	if c.Source == nil {
		return errors.New("controller has no source")
	}
	ex := stream.NewExtractor(c.Config.MaxBuffer)

	for {
		err := c.runOnce(ctx, ex)
		if ctx.Err() != nil {
			c.Logger.Infow("capture loop stopped", "frames", c.Stats.Frames.Load())
			return nil
		}

		var netErr *stream.NetworkError
		if !errors.As(err, &netErr) || c.Config.RetryDelay <= 0 {
			if err == nil {
				c.Logger.Infow("stream ended", "frames", c.Stats.Frames.Load())
			}
			return err
		}

		c.Logger.Warnw("stream failed, reconnecting", "error", err, "delay", c.Config.RetryDelay)
		ex.Reset()
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(c.Config.RetryDelay):
		}
	}
}

func (c *Controller) runOnce(ctx context.Context, ex *stream.Extractor) error {
	body, err := c.Source.Open(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := body.Close(); err != nil {
			c.Logger.Debugw("closing stream", "error", err)
		}
	}()

	c.Logger.Infow("stream opened")
	return stream.Run(ctx, body, ex, c.Decoder, c.handle,
		stream.WithChunkSize(c.Config.ChunkSize),
		stream.WithLogger(c.Logger),
		stream.WithStats(c.Stats),
	)
}

// handle detects one frame and publishes the result.
func (c *Controller) handle(ctx context.Context, frame images.Frame) error {
	res, err := c.Detector.Detect(ctx, frame)
	switch {
	case err == nil:
	case errors.Is(err, east.ErrShapeMismatch):
		c.skipped.Inc()
		c.Logger.Warnw("skipping frame", "seq", frame.Seq, "error", err)
		return nil
	default:
		return errors.Wrapf(err, "frame %d", frame.Seq)
	}

	version := c.Results.Publish(res)
	c.Logger.Debugw("published result", "seq", frame.Seq, "version", version, "detections", len(res.Detections))
	return nil
}

// ProcessImage runs detection on a still image and publishes the result.
//
// Arguments:
//   - ctx: Passed to the detector.
//   - img: The image.
//
// Returns:
//   - *pipeline.Result: The published result.
//   - error: The detector error.
func (c *Controller) ProcessImage(ctx context.Context, img image.Image) (*pipeline.Result, error) {
	res, err := c.Detector.Detect(ctx, images.Frame{Image: img, Timestamp: time.Now()})
	if err != nil {
		return nil, err
	}
	c.Results.Publish(res)
	return res, nil
}
