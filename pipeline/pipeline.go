// Package pipeline - Text region detection over single frames: EAST blob,
// inference, geometry decoding, suppression, rescaling and cropping.
package pipeline

import (
	"context"
	"image"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorgonia.org/tensor"

	"github.com/nvr-ai/go-east/images"
	"github.com/nvr-ai/go-east/models/east"
	"github.com/nvr-ai/go-east/models/postprocess"
	"github.com/nvr-ai/go-east/profiler"
	"github.com/nvr-ai/go-east/recognition"
)

// Stage names reported to the profiler.
const (
	StagePreprocess = "preprocess"
	StageInference  = "inference"
	StageDecode     = "decode"
	StageNMS        = "nms"
	StageCrop       = "crop"
	StageRecognize  = "recognize"
)

// Config holds the detection thresholds.
type Config struct {
	// ScoreThreshold is the minimum cell score decoded into a candidate.
	ScoreThreshold float32
	// NMS configures overlap suppression.
	NMS postprocess.NMSConfig
	// Annotate enables the annotated copy in Result.
	Annotate bool
	// RecognitionThreshold is the exclusive confidence floor for recognized
	// lines.
	RecognitionThreshold float64
}

// DefaultConfig returns the standard EAST thresholds with annotation on.
func DefaultConfig() Config {
	return Config{
		ScoreThreshold:       east.DefaultScoreThreshold,
		NMS:                  postprocess.DefaultNMSConfig(),
		Annotate:             true,
		RecognitionThreshold: recognition.DefaultThreshold,
	}
}

// Validate checks that every threshold is in range.
func (c Config) Validate() error {
	if c.ScoreThreshold < 0 || c.ScoreThreshold > 1 {
		return errors.Errorf("score threshold must be in [0,1], got %v", c.ScoreThreshold)
	}
	if c.NMS.IoUThreshold < 0 || c.NMS.IoUThreshold > 1 {
		return errors.Errorf("iou threshold must be in [0,1], got %v", c.NMS.IoUThreshold)
	}
	if c.NMS.ScoreThreshold < 0 || c.NMS.ScoreThreshold > 1 {
		return errors.Errorf("nms score threshold must be in [0,1], got %v", c.NMS.ScoreThreshold)
	}
	if c.NMS.MaxCandidates < 0 {
		return errors.Errorf("max candidates must not be negative, got %d", c.NMS.MaxCandidates)
	}
	if c.RecognitionThreshold < 0 || c.RecognitionThreshold > 1 {
		return errors.Errorf("recognition threshold must be in [0,1], got %v", c.RecognitionThreshold)
	}
	return nil
}

// Engine is the inference collaborator. inference.Engine satisfies it.
type Engine interface {
	// Options describes the model input the engine expects.
	Options() east.Options
	// Infer returns [1,1,R,C] scores and [1,5,R,C] geometry for blob.
	Infer(ctx context.Context, blob *tensor.Dense) (scores, geometry *tensor.Dense, err error)
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithProfiler records stage timings and detection counts on rp.
func WithProfiler(rp *profiler.RuntimeProfiler) Option {
	return func(p *Pipeline) { p.profiler = rp }
}

// WithRecognizer runs r over every detected region.
func WithRecognizer(r recognition.Recognizer) Option {
	return func(p *Pipeline) { p.recognizer = r }
}

// Pipeline detects text regions in frames. It holds no per-frame state, so
// Detect may be called concurrently if the engine allows it.
type Pipeline struct {
	engine     Engine
	model      east.Options
	config     Config
	logger     *zap.SugaredLogger
	profiler   *profiler.RuntimeProfiler
	recognizer recognition.Recognizer
}

// New creates a pipeline around engine.
//
// Arguments:
//   - engine: The inference collaborator; its Options fix the input size
//     and tensor layout.
//   - cfg: Detection thresholds.
//   - opts: Optional logger, profiler and recognizer.
//
// Returns:
//   - *Pipeline: The pipeline.
//   - error: An error if cfg or the engine options are invalid.
func New(engine Engine, cfg Config, opts ...Option) (*Pipeline, error) {
	if engine == nil {
		return nil, errors.New("engine is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid pipeline config")
	}
	model := engine.Options()
	if err := model.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid engine options")
	}

	p := &Pipeline{
		engine: engine,
		model:  model,
		config: cfg,
		logger: zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Detect finds the text regions in frame.
//
// Arguments:
//   - ctx: Cancels the call between stages.
//   - frame: The frame to analyze; it is not modified.
//
// Returns:
//   - *Result: The detections, possibly none.
//   - error: east.ErrShapeMismatch (wrapped) for malformed engine output,
//     ctx.Err() on cancellation, or the engine or recognizer error.
func (p *Pipeline) Detect(ctx context.Context, frame images.Frame) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if frame.Image == nil || frame.Image.Bounds().Empty() {
		return nil, errors.New("frame has no pixels")
	}

	done := p.profiler.StartOperation(StagePreprocess)
	blob, err := east.Blob(frame.Image, p.model.InputSize, p.model.Layout)
	done()
	if err != nil {
		return nil, errors.Wrap(err, "preprocess")
	}

	done = p.profiler.StartOperation(StageInference)
	scores, geometry, err := p.engine.Infer(ctx, blob)
	done()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, errors.Wrap(err, "inference")
	}

	done = p.profiler.StartOperation(StageDecode)
	candidates, err := p.decode(scores, geometry)
	done()
	if err != nil {
		return nil, errors.Wrap(err, "decode")
	}

	done = p.profiler.StartOperation(StageNMS)
	keep := postprocess.SuppressIndices(candidates, p.config.NMS)
	done()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	done = p.profiler.StartOperation(StageCrop)
	result := p.crop(frame, candidates, keep)
	done()

	if p.recognizer != nil && len(result.Detections) > 0 {
		done = p.profiler.StartOperation(StageRecognize)
		result.Recognized, err = recognition.RecognizeAll(ctx, p.recognizer, regions(result.Detections), p.config.RecognitionThreshold)
		done()
		if err != nil {
			return nil, errors.Wrap(err, "recognize")
		}
	}

	p.profiler.RecordMetric("candidates", float64(candidates.Len()))
	p.profiler.RecordMetric("detections", float64(len(result.Detections)))
	p.logger.Debugw("frame processed",
		"seq", frame.Seq,
		"candidates", candidates.Len(),
		"detections", len(result.Detections),
	)
	return result, nil
}

// decode checks the maps against the model grid and decodes candidates in
// detector-input coordinates.
func (p *Pipeline) decode(scores, geometry *tensor.Dense) (postprocess.Candidates, error) {
	rows, cols, err := east.CheckShapes(scores, geometry)
	if err != nil {
		return postprocess.Candidates{}, err
	}
	if wantRows, wantCols := p.model.OutputGrid(); rows != wantRows || cols != wantCols {
		return postprocess.Candidates{}, errors.Wrapf(east.ErrShapeMismatch,
			"output grid %dx%d, want %dx%d for input %v", rows, cols, wantRows, wantCols, p.model.InputSize)
	}
	return east.Decode(scores, geometry, p.config.ScoreThreshold)
}

// crop rescales the kept candidates into frame space and copies each region
// from the original frame.
func (p *Pipeline) crop(frame images.Frame, c postprocess.Candidates, keep []int) *Result {
	rescaler := east.NewRescaler(frame.Size(), p.model.InputSize)

	result := &Result{Frame: frame, Detections: make([]Detection, 0, len(keep))}
	for _, i := range keep {
		box := rescaler.Rescale(c.Boxes[i])
		result.Detections = append(result.Detections, Detection{
			Box:        box,
			Region:     images.Crop(frame.Image, box),
			Confidence: c.Scores[i],
		})
	}
	if p.config.Annotate {
		result.Annotated = images.Annotate(frame.Image, result.Boxes())
	}
	return result
}

func regions(ds []Detection) []image.Image {
	out := make([]image.Image, len(ds))
	for i, d := range ds {
		out[i] = d.Region
	}
	return out
}
