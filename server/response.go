package server

import (
	"time"

	"github.com/nvr-ai/go-east/pipeline"
	"github.com/nvr-ai/go-east/recognition"
)

// Box is a detection in frame pixel coordinates.
type Box struct {
	X1         int                `json:"x1"`
	Y1         int                `json:"y1"`
	X2         int                `json:"x2"`
	Y2         int                `json:"y2"`
	Confidence float32            `json:"confidence"`
	Lines      []recognition.Line `json:"lines,omitempty"`
}

// DetectionsResponse is the body of GET /detections.
type DetectionsResponse struct {
	Version    uint64    `json:"version"`
	Seq        uint64    `json:"seq"`
	Timestamp  time.Time `json:"timestamp"`
	Width      int       `json:"width"`
	Height     int       `json:"height"`
	Detections []Box     `json:"detections"`
}

func newDetectionsResponse(res *pipeline.Result, version uint64) DetectionsResponse {
	size := res.Frame.Size()
	out := DetectionsResponse{
		Version:    version,
		Seq:        res.Frame.Seq,
		Timestamp:  res.Frame.Timestamp,
		Width:      size.X,
		Height:     size.Y,
		Detections: make([]Box, 0, len(res.Detections)),
	}
	for i, d := range res.Detections {
		b := Box{
			X1:         d.Box.Min.X,
			Y1:         d.Box.Min.Y,
			X2:         d.Box.Max.X,
			Y2:         d.Box.Max.Y,
			Confidence: d.Confidence,
		}
		if i < len(res.Recognized) {
			b.Lines = res.Recognized[i]
		}
		out.Detections = append(out.Detections, b)
	}
	return out
}
