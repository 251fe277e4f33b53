// Package server - HTTP export of the latest detection result: annotated
// snapshots, an MJPEG stream and JSON detections.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/nvr-ai/go-east/images"
	"github.com/nvr-ai/go-east/pipeline"
	"github.com/nvr-ai/go-east/profiler"
)

// Boundary separates parts of the MJPEG response.
const Boundary = "frame"

// DefaultFPS is the MJPEG frame rate cap.
const DefaultFPS = 10

// Results is the read side of the shared result slot.
type Results interface {
	LoadVersion() (*pipeline.Result, uint64)
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithProfiler exposes rp on /stats.
func WithProfiler(rp *profiler.RuntimeProfiler) Option {
	return func(s *Server) { s.profiler = rp }
}

// WithFPS caps the MJPEG stream frame rate. Values <= 0 are ignored.
func WithFPS(fps float64) Option {
	return func(s *Server) {
		if fps > 0 {
			s.fps = fps
		}
	}
}

// Server serves the latest result. It only reads the slot.
type Server struct {
	results  Results
	router   *mux.Router
	logger   *zap.SugaredLogger
	profiler *profiler.RuntimeProfiler
	fps      float64

	mu      sync.Mutex
	cached  *images.Image
	version uint64
}

// New creates the server and registers its routes.
//
// Arguments:
//   - results: The slot written by the capture loop.
//   - opts: Optional logger, profiler and frame rate.
//
// Returns:
//   - *Server: The server.
func New(results Results, opts ...Option) *Server {
	s := &Server{
		results: results,
		router:  mux.NewRouter(),
		logger:  zap.NewNop().Sugar(),
		fps:     DefaultFPS,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/snapshot.jpg", s.handleSnapshot).Methods(http.MethodGet)
	s.router.HandleFunc("/detections", s.handleDetections).Methods(http.MethodGet)
	s.router.HandleFunc("/stream.mjpg", s.handleStream).Methods(http.MethodGet)
	s.router.HandleFunc("/stats", s.handleStats).Methods(http.MethodGet)
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is done, then shuts down gracefully.
//
// Arguments:
//   - ctx: Stops the server.
//   - addr: The listen address, for example ":8080".
//
// Returns:
//   - error: nil after a clean shutdown, otherwise the listen or shutdown
//     error.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Infow("export server listening", "addr", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return errors.Wrap(err, "export server failed")
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "export server shutdown")
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "export server failed")
	}
	return nil
}

// ErrorResponse is the JSON body of failed requests.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Debugw("writing response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, code, message string) {
	s.writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	_, version := s.results.LoadVersion()
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"status": "ok", "version": version})
}

// encoded returns the JPEG of the current result. The cache only moves
// forward, so each version is encoded at most once while it is current.
func (s *Server) encoded() (*images.Image, uint64, error) {
	res, version := s.results.LoadVersion()
	if res == nil {
		return nil, 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cached != nil && s.version == version {
		return s.cached, version, nil
	}
	img, err := images.EncodeImage(res.Display(), images.FormatJPEG)
	if err != nil {
		return nil, 0, err
	}
	// A reader that loaded an older version must not evict a newer cache entry.
	if s.cached == nil || version > s.version {
		s.cached, s.version = img, version
	}
	return img, version, nil
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	format, err := images.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_format", err.Error())
		return
	}

	var img *images.Image
	if format == images.FormatJPEG {
		img, _, err = s.encoded()
	} else if res, _ := s.results.LoadVersion(); res != nil {
		img, err = images.EncodeImage(res.Display(), format)
	}
	if err != nil {
		s.logger.Warnw("encoding snapshot", "error", err)
		s.writeError(w, http.StatusInternalServerError, "encode_failed", err.Error())
		return
	}
	if img == nil {
		s.writeError(w, http.StatusServiceUnavailable, "no_frame", "no frame has been processed yet")
		return
	}

	w.Header().Set("Content-Type", img.Format.ContentType())
	w.Header().Set("Content-Length", fmt.Sprint(len(img.Data)))
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(img.Data)
}

func (s *Server) handleDetections(w http.ResponseWriter, _ *http.Request) {
	res, version := s.results.LoadVersion()
	if res == nil {
		s.writeError(w, http.StatusServiceUnavailable, "no_frame", "no frame has been processed yet")
		return
	}
	s.writeJSON(w, http.StatusOK, newDetectionsResponse(res, version))
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	if s.profiler == nil {
		s.writeError(w, http.StatusNotFound, "profiler_disabled", "profiling is not enabled")
		return
	}
	s.writeJSON(w, http.StatusOK, s.profiler.Snapshot())
}

// handleStream writes a new part whenever a new result is published, at
// most fps times per second, until the client goes away.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, http.StatusInternalServerError, "streaming_unsupported", "response writer cannot flush")
		return
	}

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary="+Boundary)
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ctx := r.Context()
	limiter := rate.NewLimiter(rate.Limit(s.fps), 1)
	var last uint64
	for {
		if err := limiter.Wait(ctx); err != nil {
			return
		}
		img, version, err := s.encoded()
		if err != nil {
			s.logger.Warnw("encoding stream frame", "error", err)
			continue
		}
		if img == nil || version == last {
			continue
		}
		last = version

		if _, err := fmt.Fprintf(w, "--%s\r\nContent-Type: %s\r\nContent-Length: %d\r\n\r\n",
			Boundary, img.Format.ContentType(), len(img.Data)); err != nil {
			return
		}
		if _, err := w.Write(img.Data); err != nil {
			return
		}
		if _, err := w.Write([]byte("\r\n")); err != nil {
			return
		}
		flusher.Flush()
	}
}
