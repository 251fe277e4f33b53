package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/nvr-ai/go-east/config"
	"github.com/nvr-ai/go-east/controller"
	"github.com/nvr-ai/go-east/images"
	"github.com/nvr-ai/go-east/inference"
	"github.com/nvr-ai/go-east/inference/providers"
	"github.com/nvr-ai/go-east/logging"
	"github.com/nvr-ai/go-east/pipeline"
	"github.com/nvr-ai/go-east/profiler"
	"github.com/nvr-ai/go-east/recognition/tesseract"
	"github.com/nvr-ai/go-east/server"
	"github.com/nvr-ai/go-east/stream"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) (err error) {
	opts, err := parseFlags(args)
	if err != nil {
		return err
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	opts.apply(&cfg)
	if err := cfg.Validate(); err != nil {
		return errors.Wrap(err, "invalid configuration")
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	var rp *profiler.RuntimeProfiler
	if cfg.Profiler.Enabled {
		rp = profiler.NewRuntimeProfiler(profiler.ProfilingOptions{
			ReportInterval: cfg.Profiler.ReportInterval,
			Logger:         logging.Named(logger, "profiler"),
		})
		rp.Start()
		defer rp.Stop()
	}

	engine, err := inference.NewEngineBuilder().
		WithBackend(inference.Backend(cfg.Inference.Backend)).
		WithModel(modelOptions(cfg)).
		WithProvider(providerConfig(cfg)).
		Build()
	if err != nil {
		return errors.Wrap(err, "failed to create inference engine")
	}
	defer func() { err = multierr.Append(err, engine.Close()) }()
	if inference.Backend(cfg.Inference.Backend) == inference.BackendONNXRuntime {
		defer func() { err = multierr.Append(err, providers.DestroyEnvironment()) }()
	}
	logger.Infow("inference engine ready", "backend", cfg.Inference.Backend, "model", cfg.Inference.ModelPath)

	pipelineOpts := []pipeline.Option{
		pipeline.WithLogger(logging.Named(logger, "pipeline")),
		pipeline.WithProfiler(rp),
	}
	if cfg.Recognition.Enabled {
		tess, terr := tesseract.New(cfg.Recognition.Languages...)
		if terr != nil {
			return terr
		}
		defer func() { err = multierr.Append(err, tess.Close()) }()
		pipelineOpts = append(pipelineOpts, pipeline.WithRecognizer(tess))
	}

	p, err := pipeline.New(engine, pipelineConfig(cfg), pipelineOpts...)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Stream.Image != "" {
		return processImage(ctx, cfg, p, opts.output, logger)
	}
	return serveStream(ctx, cfg, p, rp, logger)
}

// processImage runs detection on a still image and writes the annotated
// result when an output path is given.
func processImage(ctx context.Context, cfg config.Config, p *pipeline.Pipeline, output string, logger *zap.SugaredLogger) error {
	img, err := loadImage(cfg.Stream.Image, stream.DecoderBackend(cfg.Stream.Decoder))
	if err != nil {
		return err
	}

	ctrl := controller.New(nil, nil, p, controllerConfig(cfg), logging.Named(logger, "controller"))
	res, err := ctrl.ProcessImage(ctx, img)
	if err != nil {
		return errors.Wrap(err, "detection failed")
	}

	for i, d := range res.Detections {
		fields := []interface{}{"index", i, "box", d.Box, "confidence", d.Confidence}
		if i < len(res.Recognized) {
			fields = append(fields, "lines", res.Recognized[i])
		}
		logger.Infow("text region", fields...)
	}
	logger.Infow("detection complete", "image", cfg.Stream.Image, "detections", len(res.Detections))

	if output == "" {
		return nil
	}
	return writeImage(output, res.Display())
}

// serveStream runs the capture loop and the export server until the stream
// ends with the server disabled, an error occurs, or a signal arrives.
func serveStream(ctx context.Context, cfg config.Config, p *pipeline.Pipeline, rp *profiler.RuntimeProfiler, logger *zap.SugaredLogger) error {
	url, err := stream.NormalizeURL(cfg.Stream.URL)
	if err != nil {
		return err
	}
	decoder, err := stream.NewDecoder(stream.DecoderBackend(cfg.Stream.Decoder), frameSize(cfg))
	if err != nil {
		return err
	}

	ctrl := controller.New(stream.HTTPSource{URL: url}, decoder, p, controllerConfig(cfg), logging.Named(logger, "controller"))
	rp.AddMetricsCollector(ctrl)
	logger.Infow("starting capture", "url", url)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return ctrl.Run(gctx)
	})
	if cfg.Server.Enabled {
		srv := server.New(ctrl.Results,
			server.WithLogger(logging.Named(logger, "server")),
			server.WithProfiler(rp),
			server.WithFPS(cfg.Server.FPS),
		)
		g.Go(func() error {
			return srv.Run(gctx, cfg.Server.Listen)
		})
	}
	return g.Wait()
}

func writeImage(path string, img image.Image) (err error) {
	format, err := images.ParseFormat(filepath.Ext(path))
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "failed to create %s", path)
	}
	defer func() { err = multierr.Append(err, f.Close()) }()
	return images.Encode(f, img, format)
}

type flags struct {
	configPath string
	output     string
	set        map[string]bool

	url, image, model, backend, listen, logLevel string
	recognize, profile, noServer                 bool
}

func parseFlags(args []string) (*flags, error) {
	f := &flags{set: map[string]bool{}}
	fs := flag.NewFlagSet("go-east", flag.ContinueOnError)
	fs.StringVar(&f.configPath, "config", "", "Path to a YAML or JSON config file")
	fs.StringVar(&f.output, "output", "", "Write the annotated still image to this path (.jpg or .png)")
	fs.StringVar(&f.url, "url", "", "MJPEG camera URL; /video is appended when missing")
	fs.StringVar(&f.image, "image", "", "Process a single image instead of a stream")
	fs.StringVar(&f.model, "model", "", "Path to the EAST model (.onnx or frozen .pb)")
	fs.StringVar(&f.backend, "backend", "", "Inference backend: onnxruntime or opencv")
	fs.StringVar(&f.listen, "listen", "", "Export server listen address")
	fs.StringVar(&f.logLevel, "log-level", "", "Log level")
	fs.BoolVar(&f.recognize, "recognize", false, "Run Tesseract on detected regions")
	fs.BoolVar(&f.profile, "profile", false, "Log periodic runtime reports")
	fs.BoolVar(&f.noServer, "no-server", false, "Disable the export server")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	fs.Visit(func(fl *flag.Flag) { f.set[fl.Name] = true })
	return f, nil
}

// apply overrides cfg with the flags given on the command line.
func (f *flags) apply(cfg *config.Config) {
	if f.set["url"] {
		cfg.Stream.URL = f.url
	}
	if f.set["image"] {
		cfg.Stream.Image = f.image
	}
	if f.set["model"] {
		cfg.Inference.ModelPath = f.model
	}
	if f.set["backend"] {
		cfg.Inference.Backend = f.backend
	}
	if f.set["listen"] {
		cfg.Server.Listen = f.listen
	}
	if f.set["log-level"] {
		cfg.Log.Level = f.logLevel
	}
	if f.set["recognize"] {
		cfg.Recognition.Enabled = f.recognize
	}
	if f.set["profile"] {
		cfg.Profiler.Enabled = f.profile
	}
	if f.set["no-server"] {
		cfg.Server.Enabled = !f.noServer
	}
}
