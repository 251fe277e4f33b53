package main

import (
	"image"

	"github.com/nvr-ai/go-east/config"
	"github.com/nvr-ai/go-east/controller"
	"github.com/nvr-ai/go-east/images"
	"github.com/nvr-ai/go-east/images/mats"
	"github.com/nvr-ai/go-east/inference"
	"github.com/nvr-ai/go-east/inference/providers"
	"github.com/nvr-ai/go-east/models/east"
	"github.com/nvr-ai/go-east/models/model"
	"github.com/nvr-ai/go-east/models/postprocess"
	"github.com/nvr-ai/go-east/pipeline"
	"github.com/nvr-ai/go-east/stream"
)

// modelOptions starts from the layer names of the selected backend's model
// format and applies the configured overrides.
func modelOptions(cfg config.Config) east.Options {
	opts := east.ONNXOptions()
	if inference.Backend(cfg.Inference.Backend) == inference.BackendOpenCV {
		opts = east.DefaultOptions()
	}
	opts.Path = cfg.Inference.ModelPath
	opts.InputSize = image.Pt(cfg.Detection.InputWidth, cfg.Detection.InputHeight)
	if cfg.Inference.Layout != "" {
		opts.Layout = model.Layout(cfg.Inference.Layout)
	}
	if len(cfg.Inference.Inputs) > 0 {
		opts.Inputs = cfg.Inference.Inputs
	}
	if len(cfg.Inference.Outputs) > 0 {
		opts.Outputs = cfg.Inference.Outputs
	}
	return opts
}

func providerConfig(cfg config.Config) providers.Config {
	return providers.Config{
		Backend:           providers.Backend(cfg.Inference.Provider),
		DeviceID:          cfg.Inference.DeviceID,
		IntraOpThreads:    cfg.Inference.IntraOpThreads,
		InterOpThreads:    cfg.Inference.InterOpThreads,
		SharedLibraryPath: cfg.Inference.SharedLibrary,
	}
}

func pipelineConfig(cfg config.Config) pipeline.Config {
	d := cfg.Detection
	return pipeline.Config{
		ScoreThreshold: float32(d.ScoreThreshold),
		NMS: postprocess.NMSConfig{
			IoUThreshold:   float32(d.IoUThreshold),
			ScoreThreshold: float32(d.NMSScoreThreshold),
			MaxCandidates:  d.MaxCandidates,
		},
		Annotate:             d.Annotate,
		RecognitionThreshold: cfg.Recognition.Threshold,
	}
}

func controllerConfig(cfg config.Config) controller.Config {
	return controller.Config{
		ChunkSize:  cfg.Stream.ChunkSize,
		MaxBuffer:  cfg.Stream.MaxBuffer,
		RetryDelay: cfg.Stream.RetryDelay,
	}
}

func frameSize(cfg config.Config) image.Point {
	return image.Pt(cfg.Stream.FrameWidth, cfg.Stream.FrameHeight)
}

// loadImage reads a still image with the decoder backend used for streams.
func loadImage(path string, backend stream.DecoderBackend) (image.Image, error) {
	if backend == stream.DecoderOpenCV {
		return mats.Read(path)
	}
	return images.Load(path)
}
