// Package config - Application configuration: defaults, file and environment
// loading, and validation.
package config

import (
	"time"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap/zapcore"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "EAST"

// Config is the complete application configuration.
type Config struct {
	Detection   DetectionConfig   `yaml:"detection" json:"detection"`
	Recognition RecognitionConfig `yaml:"recognition" json:"recognition"`
	Stream      StreamConfig      `yaml:"stream" json:"stream"`
	Inference   InferenceConfig   `yaml:"inference" json:"inference"`
	Server      ServerConfig      `yaml:"server" json:"server"`
	Log         LogConfig         `yaml:"log" json:"log"`
	Profiler    ProfilerConfig    `yaml:"profiler" json:"profiler"`
}

// DetectionConfig holds the detector input size and thresholds.
type DetectionConfig struct {
	InputWidth        int     `yaml:"input_width" json:"input_width"`
	InputHeight       int     `yaml:"input_height" json:"input_height"`
	ScoreThreshold    float64 `yaml:"score_threshold" json:"score_threshold"`
	NMSScoreThreshold float64 `yaml:"nms_score_threshold" json:"nms_score_threshold"`
	IoUThreshold      float64 `yaml:"iou_threshold" json:"iou_threshold"`
	MaxCandidates     int     `yaml:"max_candidates" json:"max_candidates"`
	Annotate          bool    `yaml:"annotate" json:"annotate"`
}

// RecognitionConfig controls optional text recognition of detected regions.
type RecognitionConfig struct {
	Enabled   bool     `yaml:"enabled" json:"enabled"`
	Languages []string `yaml:"languages" json:"languages"`
	Threshold float64  `yaml:"threshold" json:"threshold"`
}

// StreamConfig describes the frame source. Exactly one of URL and Image is
// used; Image wins when both are set.
type StreamConfig struct {
	URL         string `yaml:"url" json:"url"`
	Image       string `yaml:"image" json:"image"`
	ChunkSize   int    `yaml:"chunk_size" json:"chunk_size"`
	MaxBuffer   int    `yaml:"max_buffer" json:"max_buffer"`
	FrameWidth  int    `yaml:"frame_width" json:"frame_width"`
	FrameHeight int    `yaml:"frame_height" json:"frame_height"`
	// Decoder is "imaging" or "opencv".
	Decoder string `yaml:"decoder" json:"decoder"`
	// RetryDelay is the wait before reopening a failed stream. Zero disables
	// reconnecting.
	RetryDelay time.Duration `yaml:"retry_delay" json:"retry_delay"`
}

// InferenceConfig selects and configures the inference engine.
type InferenceConfig struct {
	// Backend is "onnxruntime" or "opencv".
	Backend       string `yaml:"backend" json:"backend"`
	ModelPath     string `yaml:"model_path" json:"model_path"`
	SharedLibrary string `yaml:"shared_library" json:"shared_library"`
	// Provider is the ONNX Runtime execution provider.
	Provider       string `yaml:"provider" json:"provider"`
	DeviceID       int    `yaml:"device_id" json:"device_id"`
	IntraOpThreads int    `yaml:"intra_op_threads" json:"intra_op_threads"`
	InterOpThreads int    `yaml:"inter_op_threads" json:"inter_op_threads"`
	// Layout, Inputs and Outputs override the model defaults when set.
	Layout  string   `yaml:"layout" json:"layout"`
	Inputs  []string `yaml:"inputs" json:"inputs"`
	Outputs []string `yaml:"outputs" json:"outputs"`
}

// ServerConfig configures the HTTP export server.
type ServerConfig struct {
	Enabled bool    `yaml:"enabled" json:"enabled"`
	Listen  string  `yaml:"listen" json:"listen"`
	FPS     float64 `yaml:"fps" json:"fps"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level       string `yaml:"level" json:"level"`
	Development bool   `yaml:"development" json:"development"`
}

// ProfilerConfig configures periodic runtime reports.
type ProfilerConfig struct {
	Enabled        bool          `yaml:"enabled" json:"enabled"`
	ReportInterval time.Duration `yaml:"report_interval" json:"report_interval"`
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		Detection: DetectionConfig{
			InputWidth:        320,
			InputHeight:       320,
			ScoreThreshold:    0.5,
			NMSScoreThreshold: 0.5,
			IoUThreshold:      0.4,
			MaxCandidates:     4096,
			Annotate:          true,
		},
		Recognition: RecognitionConfig{
			Languages: []string{"eng"},
			Threshold: 0.5,
		},
		Stream: StreamConfig{
			ChunkSize:   1024,
			MaxBuffer:   8 << 20,
			FrameWidth:  640,
			FrameHeight: 480,
			Decoder:     "imaging",
			RetryDelay:  2 * time.Second,
		},
		Inference: InferenceConfig{
			Backend:  "onnxruntime",
			Provider: "cpu",
		},
		Server: ServerConfig{
			Enabled: true,
			Listen:  ":8080",
			FPS:     10,
		},
		Log: LogConfig{
			Level: "info",
		},
		Profiler: ProfilerConfig{
			ReportInterval: 30 * time.Second,
		},
	}
}

// Load builds the configuration from the defaults, the optional file at
// path and EAST_* environment variables, in that order of precedence.
// The result is not validated.
//
// Arguments:
//   - path: A .yaml, .yml or .json file, or "" for none.
//
// Returns:
//   - Config: The merged configuration.
//   - error: An error if the file or an environment value cannot be parsed.
func Load(path string) (Config, error) {
	cfg := Default()
	l := NewLoader(EnvPrefix)
	if err := l.LoadFromFile(path, &cfg); err != nil {
		return Config{}, err
	}
	if err := l.LoadFromEnv(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func inUnit(name string, v float64) error {
	if v < 0 || v > 1 {
		return errors.Errorf("%s must be in [0,1], got %v", name, v)
	}
	return nil
}

// Validate reports every invalid setting.
//
// Returns:
//   - error: The combined validation errors, or nil.
func (c Config) Validate() error {
	var err error

	d := c.Detection
	if d.InputWidth <= 0 || d.InputHeight <= 0 || d.InputWidth%32 != 0 || d.InputHeight%32 != 0 {
		err = multierr.Append(err, errors.Errorf("detection input size must be a positive multiple of 32, got %dx%d", d.InputWidth, d.InputHeight))
	}
	err = multierr.Combine(err,
		inUnit("detection.score_threshold", d.ScoreThreshold),
		inUnit("detection.nms_score_threshold", d.NMSScoreThreshold),
		inUnit("detection.iou_threshold", d.IoUThreshold),
		inUnit("recognition.threshold", c.Recognition.Threshold),
	)
	if d.MaxCandidates < 0 {
		err = multierr.Append(err, errors.Errorf("detection.max_candidates must not be negative, got %d", d.MaxCandidates))
	}

	s := c.Stream
	if s.URL == "" && s.Image == "" {
		err = multierr.Append(err, errors.New("one of stream.url or stream.image is required"))
	}
	if s.ChunkSize <= 0 {
		err = multierr.Append(err, errors.Errorf("stream.chunk_size must be positive, got %d", s.ChunkSize))
	}
	if s.MaxBuffer < s.ChunkSize {
		err = multierr.Append(err, errors.Errorf("stream.max_buffer must be at least chunk_size, got %d", s.MaxBuffer))
	}
	if s.FrameWidth < 0 || s.FrameHeight < 0 {
		err = multierr.Append(err, errors.Errorf("stream frame size must not be negative, got %dx%d", s.FrameWidth, s.FrameHeight))
	}
	if s.Decoder != "imaging" && s.Decoder != "opencv" {
		err = multierr.Append(err, errors.Errorf("stream.decoder must be imaging or opencv, got %q", s.Decoder))
	}
	if s.RetryDelay < 0 {
		err = multierr.Append(err, errors.Errorf("stream.retry_delay must not be negative, got %v", s.RetryDelay))
	}

	if c.Inference.ModelPath == "" {
		err = multierr.Append(err, errors.New("inference.model_path is required"))
	}
	if b := c.Inference.Backend; b != "onnxruntime" && b != "opencv" {
		err = multierr.Append(err, errors.Errorf("inference.backend must be onnxruntime or opencv, got %q", b))
	}

	if c.Server.Enabled {
		if c.Server.Listen == "" {
			err = multierr.Append(err, errors.New("server.listen is required when the server is enabled"))
		}
		if c.Server.FPS <= 0 {
			err = multierr.Append(err, errors.Errorf("server.fps must be positive, got %v", c.Server.FPS))
		}
	}

	if _, lerr := zapcore.ParseLevel(c.Log.Level); lerr != nil {
		err = multierr.Append(err, errors.Wrap(lerr, "log.level"))
	}
	if c.Profiler.Enabled && c.Profiler.ReportInterval <= 0 {
		err = multierr.Append(err, errors.Errorf("profiler.report_interval must be positive, got %v", c.Profiler.ReportInterval))
	}
	return err
}
