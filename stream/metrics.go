package stream

import (
	"go.uber.org/atomic"
)

// Stats counts capture loop events. It is safe for concurrent use and
// implements profiler.MetricsCollector.
type Stats struct {
	BytesRead       atomic.Int64
	Frames          atomic.Int64
	DecodeFailures  atomic.Int64
	BufferOverflows atomic.Int64
}

// CollectMetrics returns the current counter values.
func (s *Stats) CollectMetrics() map[string]float64 {
	return map[string]float64{
		"stream_bytes_read":       float64(s.BytesRead.Load()),
		"stream_frames":           float64(s.Frames.Load()),
		"stream_decode_failures":  float64(s.DecodeFailures.Load()),
		"stream_buffer_overflows": float64(s.BufferOverflows.Load()),
	}
}
