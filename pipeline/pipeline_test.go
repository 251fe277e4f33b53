package pipeline

import (
	"context"
	"image"
	"image/color"
	"image/draw"
	"math"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/tensor"

	"github.com/nvr-ai/go-east/images"
	"github.com/nvr-ai/go-east/models/east"
	"github.com/nvr-ai/go-east/profiler"
	"github.com/nvr-ai/go-east/recognition"
)

// textBlock is a bright rectangle in detector-input coordinates that the
// block engine reports with the given score.
type textBlock struct {
	rect  image.Rectangle
	score float32
}

// blockEngine marks every output cell whose sample point is bright and
// inside a known block, with geometry pointing at the block edges.
type blockEngine struct {
	opts   east.Options
	blocks []textBlock
	calls  int
}

func (e *blockEngine) Options() east.Options { return e.opts }

func (e *blockEngine) Infer(ctx context.Context, blob *tensor.Dense) (*tensor.Dense, *tensor.Dense, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	e.calls++

	data := blob.Data().([]float32)
	w := e.opts.InputSize.X
	rows, cols := e.opts.OutputGrid()
	plane := rows * cols
	scores := make([]float32, plane)
	geometry := make([]float32, 5*plane)

	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			x, y := c*east.Stride, r*east.Stride
			red := data[y*w+x]
			for _, b := range e.blocks {
				if red <= 0 || !image.Pt(x, y).In(b.rect) {
					continue
				}
				i := r*cols + c
				scores[i] = b.score
				geometry[i] = float32(y - b.rect.Min.Y)
				geometry[plane+i] = float32(b.rect.Max.X - x)
				geometry[2*plane+i] = float32(b.rect.Max.Y - y)
				geometry[3*plane+i] = float32(x - b.rect.Min.X)
			}
		}
	}

	s, err := east.NewScores(rows, cols, scores)
	if err != nil {
		return nil, nil, err
	}
	g, err := east.NewGeometry(rows, cols, geometry)
	if err != nil {
		return nil, nil, err
	}
	return s, g, nil
}

// funcEngine returns fixed tensors.
type funcEngine struct {
	opts  east.Options
	infer func() (*tensor.Dense, *tensor.Dense, error)
}

func (e funcEngine) Options() east.Options { return e.opts }

func (e funcEngine) Infer(context.Context, *tensor.Dense) (*tensor.Dense, *tensor.Dense, error) {
	return e.infer()
}

func scene(w, h int, white ...image.Rectangle) images.Frame {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.Black), image.Point{}, draw.Src)
	for _, r := range white {
		draw.Draw(img, r, image.NewUniform(color.White), image.Point{}, draw.Src)
	}
	return images.Frame{Seq: 7, Image: img}
}

// toInput maps a source-space rectangle into detector-input space, rounding
// outward so the block covers every input pixel the rectangle touches.
func toInput(r image.Rectangle, src, input image.Point) image.Rectangle {
	sx := float64(input.X) / float64(src.X)
	sy := float64(input.Y) / float64(src.Y)
	return image.Rect(
		int(math.Ceil(float64(r.Min.X)*sx)),
		int(math.Ceil(float64(r.Min.Y)*sy)),
		int(math.Ceil(float64(r.Max.X)*sx)),
		int(math.Ceil(float64(r.Max.Y)*sy)),
	)
}

func TestToInput(t *testing.T) {
	src, input := image.Pt(640, 480), image.Pt(320, 320)
	assert.Equal(t, image.Rect(80, 80, 240, 160), toInput(image.Rect(160, 120, 480, 240), src, input))
	assert.Equal(t, image.Rect(20, 214, 100, 267), toInput(image.Rect(40, 320, 200, 400), src, input))
}

func TestDetect_EndToEnd(t *testing.T) {
	signA := image.Rect(160, 120, 480, 240)
	signB := image.Rect(40, 320, 200, 400)
	frame := scene(640, 480, signA, signB)

	opts := east.DefaultOptions()
	engine := &blockEngine{
		opts: opts,
		blocks: []textBlock{
			{rect: toInput(signA, frame.Size(), opts.InputSize), score: 0.9},
			{rect: toInput(signB, frame.Size(), opts.InputSize), score: 0.8},
		},
	}
	rp := profiler.NewRuntimeProfiler(profiler.ProfilingOptions{})

	p, err := New(engine, DefaultConfig(), WithProfiler(rp))
	require.NoError(t, err)

	res, err := p.Detect(context.Background(), frame)
	require.NoError(t, err)
	require.Len(t, res.Detections, 2)
	assert.Equal(t, 1, engine.calls)
	assert.Equal(t, uint64(7), res.Frame.Seq)

	for i, want := range []image.Rectangle{signA, signB} {
		d := res.Detections[i]
		iou := images.CalculateIoU(images.RectFrom(d.Box), images.RectFrom(want))
		assert.Greater(t, iou, float32(0.5), "detection %d: %v vs %v", i, d.Box, want)
		assert.True(t, d.Box.In(frame.Image.Bounds()))
		assert.Equal(t, d.Box.Size(), d.Region.Bounds().Size())
	}
	assert.Equal(t, float32(0.9), res.Detections[0].Confidence)
	assert.Equal(t, float32(0.8), res.Detections[1].Confidence)

	// Regions come from the original frame, not the annotated copy.
	region := res.Detections[0].Region
	c := region.Bounds().Min
	r, g, b, _ := region.At(c.X, c.Y).RGBA()
	assert.Equal(t, [3]uint32{0xffff, 0xffff, 0xffff}, [3]uint32{r, g, b})

	require.NotNil(t, res.Annotated)
	box := res.Detections[0].Box
	assert.Equal(t, color.NRGBAModel.Convert(images.AnnotationColor), res.Annotated.At(box.Min.X, box.Min.Y))
	assert.Equal(t, color.RGBA{A: 0xff}, frame.Image.At(box.Min.X-5, box.Min.Y-5))
	r, g, b, _ = frame.Image.At(box.Min.X, box.Min.Y).RGBA()
	assert.Equal(t, [3]uint32{0xffff, 0xffff, 0xffff}, [3]uint32{r, g, b}, "frame must not be drawn on")

	ops := rp.Snapshot().Operations
	for _, stage := range []string{StagePreprocess, StageInference, StageDecode, StageNMS, StageCrop} {
		assert.Equal(t, int64(1), ops[stage].Count, stage)
	}
	assert.Equal(t, 2.0, rp.Snapshot().Metrics["detections"].Last)
}

func TestDetect_ZeroDetections(t *testing.T) {
	engine := &blockEngine{opts: east.DefaultOptions()}
	cfg := DefaultConfig()
	cfg.Annotate = false

	p, err := New(engine, cfg)
	require.NoError(t, err)

	res, err := p.Detect(context.Background(), scene(200, 100))
	require.NoError(t, err)
	assert.Empty(t, res.Detections)
	assert.Nil(t, res.Annotated)
	assert.Equal(t, res.Frame.Image, res.Display())
	assert.Nil(t, res.Recognized)
}

func TestDetect_ShapeMismatch(t *testing.T) {
	opts := east.DefaultOptions()
	tests := []struct {
		name  string
		infer func() (*tensor.Dense, *tensor.Dense, error)
	}{
		{
			name: "grid disagrees between maps",
			infer: func() (*tensor.Dense, *tensor.Dense, error) {
				s, _ := east.NewScores(80, 80, make([]float32, 80*80))
				g, _ := east.NewGeometry(40, 40, make([]float32, 5*40*40))
				return s, g, nil
			},
		},
		{
			name: "grid does not match the input size",
			infer: func() (*tensor.Dense, *tensor.Dense, error) {
				s, _ := east.NewScores(40, 40, make([]float32, 40*40))
				g, _ := east.NewGeometry(40, 40, make([]float32, 5*40*40))
				return s, g, nil
			},
		},
		{
			name: "missing geometry",
			infer: func() (*tensor.Dense, *tensor.Dense, error) {
				s, _ := east.NewScores(80, 80, make([]float32, 80*80))
				return s, nil, nil
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := New(funcEngine{opts: opts, infer: tt.infer}, DefaultConfig())
			require.NoError(t, err)

			res, err := p.Detect(context.Background(), scene(64, 64))
			assert.Nil(t, res)
			assert.ErrorIs(t, err, east.ErrShapeMismatch)
		})
	}
}

func TestDetect_EngineError(t *testing.T) {
	boom := errors.New("device lost")
	p, err := New(funcEngine{
		opts:  east.DefaultOptions(),
		infer: func() (*tensor.Dense, *tensor.Dense, error) { return nil, nil, boom },
	}, DefaultConfig())
	require.NoError(t, err)

	_, err = p.Detect(context.Background(), scene(64, 64))
	assert.ErrorIs(t, err, boom)
}

func TestDetect_Cancelled(t *testing.T) {
	engine := &blockEngine{opts: east.DefaultOptions()}
	p, err := New(engine, DefaultConfig())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := p.Detect(ctx, scene(64, 64))
	assert.Nil(t, res)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, engine.calls)
}

func TestDetect_EmptyFrame(t *testing.T) {
	p, err := New(&blockEngine{opts: east.DefaultOptions()}, DefaultConfig())
	require.NoError(t, err)

	_, err = p.Detect(context.Background(), images.Frame{})
	assert.Error(t, err)
}

type widthRecognizer struct{}

func (widthRecognizer) Recognize(_ context.Context, img image.Image) ([]recognition.Line, error) {
	if img.Bounds().Dx() > 200 {
		return []recognition.Line{{Text: " OPEN ", Confidence: 0.87}, {Text: "smudge", Confidence: 0.1}}, nil
	}
	return []recognition.Line{{Text: "24h", Confidence: 0.5}}, nil
}

func TestDetect_Recognition(t *testing.T) {
	signA, signB := image.Rect(160, 120, 480, 240), image.Rect(40, 320, 200, 400)
	frame := scene(640, 480, signA, signB)
	opts := east.DefaultOptions()
	engine := &blockEngine{
		opts: opts,
		blocks: []textBlock{
			{rect: toInput(signA, frame.Size(), opts.InputSize), score: 0.9},
			{rect: toInput(signB, frame.Size(), opts.InputSize), score: 0.8},
		},
	}
	p, err := New(engine, DefaultConfig(), WithRecognizer(widthRecognizer{}))
	require.NoError(t, err)

	res, err := p.Detect(context.Background(), frame)
	require.NoError(t, err)
	require.Len(t, res.Recognized, 2)
	assert.Equal(t, []recognition.Line{{Text: "OPEN", Confidence: 0.87}}, res.Recognized[0])
	assert.Empty(t, res.Recognized[1])
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil, DefaultConfig())
	assert.Error(t, err)

	cfg := DefaultConfig()
	cfg.NMS.IoUThreshold = 1.5
	_, err = New(&blockEngine{opts: east.DefaultOptions()}, cfg)
	assert.Error(t, err)

	bad := east.DefaultOptions()
	bad.InputSize = image.Pt(100, 100)
	_, err = New(&blockEngine{opts: bad}, DefaultConfig())
	assert.Error(t, err)
}
