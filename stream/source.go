package stream

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/pkg/errors"
)

// VideoPath is the path suffix under which camera apps serve MJPEG.
const VideoPath = "/video"

// NormalizeURL validates raw and appends VideoPath to its path when missing.
//
// Arguments:
//   - raw: A camera URL such as http://192.168.1.5:8080.
//
// Returns:
//   - string: The stream URL.
//   - error: An error if raw is not an absolute http(s) URL.
func NormalizeURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", errors.Wrapf(err, "invalid stream url %q", raw)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", errors.Errorf("stream url must be http or https, got %q", raw)
	}
	if u.Host == "" {
		return "", errors.Errorf("stream url has no host: %q", raw)
	}
	path := strings.TrimRight(u.Path, "/")
	if !strings.HasSuffix(path, VideoPath) {
		path += VideoPath
	}
	u.Path = path
	return u.String(), nil
}

// HTTPSource opens an MJPEG stream over HTTP.
type HTTPSource struct {
	URL    string
	Client *http.Client
}

// Open issues the request and returns the response body. The body is bound
// to ctx, so a blocked read returns once ctx is done.
//
// Arguments:
//   - ctx: Bounds the whole stream, not just the request.
//
// Returns:
//   - io.ReadCloser: The stream body; the caller closes it.
//   - error: A *NetworkError if the request fails or the status is not 2xx.
func (s HTTPSource) Open(ctx context.Context) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid stream url %q", s.URL)
	}

	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, &NetworkError{Op: "open", Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_ = resp.Body.Close()
		return nil, &NetworkError{Op: "open", Err: errors.Errorf("unexpected status %s from %s", resp.Status, s.URL)}
	}
	return resp.Body, nil
}
