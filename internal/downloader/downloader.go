// Package downloader manages HTTP downloads with bounded parallelism,
// optional authentication and progress reporting.
package downloader

import (
	"context"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// ProgressCallback is called as a download progresses.
// totalBytes is -1 when the server doesn't report a Content-Length.
// eof is true on the final call, after the last byte was written.
type ProgressCallback func(downloadedBytes, totalBytes int64, eof bool)

// DefaultMaxParallel is the default limit of simultaneous downloads per Manager.
const DefaultMaxParallel = 4

// Manager coordinates downloads: it caps the number of simultaneous
// transfers and attaches the configured auth token to every request.
//
// Configuration methods (MaxParallel, WithAuthToken) must be called before
// the first Download.
type Manager struct {
	client      *http.Client
	maxParallel int
	authToken   string
	semaphore   chan struct{}
}

// New creates a Manager with default settings.
func New() *Manager {
	return &Manager{
		client:      &http.Client{Timeout: 0}, // Large files, no global timeout; use the context instead.
		maxParallel: DefaultMaxParallel,
		semaphore:   make(chan struct{}, DefaultMaxParallel),
	}
}

// MaxParallel sets the maximum number of simultaneous downloads.
// Values < 1 reset to DefaultMaxParallel. It returns the updated Manager.
func (m *Manager) MaxParallel(n int) *Manager {
	if n < 1 {
		n = DefaultMaxParallel
	}
	m.maxParallel = n
	m.semaphore = make(chan struct{}, n)
	return m
}

// WithAuthToken sets a bearer token attached to every request, e.g. a
// HuggingFace access token for gated datasets. Empty means no auth.
// It returns the updated Manager.
func (m *Manager) WithAuthToken(token string) *Manager {
	m.authToken = token
	return m
}

func (m *Manager) acquire() {
	m.semaphore <- struct{}{}
}

func (m *Manager) release() {
	<-m.semaphore
}

// Download fetches url into filePath, creating or truncating it.
// It blocks while more than MaxParallel downloads are in flight.
// progress may be nil.
func (m *Manager) Download(ctx context.Context, url, filePath string, progress ProgressCallback) error {
	m.acquire()
	defer m.release()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return errors.Wrapf(err, "failed to create request for %q", url)
	}
	if m.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+m.authToken)
	}
	// Request id lets one correlate client and server logs when debugging
	// flaky mirrors.
	requestID := uuid.NewString()
	req.Header.Set("X-Request-Id", requestID)

	start := time.Now()
	resp, err := m.client.Do(req)
	if err != nil {
		return errors.Wrapf(err, "failed to GET %q", url)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("GET %q returned status %q (request id %s)", url, resp.Status, requestID)
	}

	f, err := os.Create(filePath)
	if err != nil {
		return errors.Wrapf(err, "failed to create %q", filePath)
	}
	written, err := copyWithProgress(f, resp.Body, resp.ContentLength, progress)
	if err != nil {
		_ = f.Close()
		return errors.Wrapf(err, "failed while downloading %q to %q", url, filePath)
	}
	if err = f.Close(); err != nil {
		return errors.Wrapf(err, "failed to close %q", filePath)
	}
	klog.V(1).Infof("downloaded %q (%d bytes) in %s", url, written, time.Since(start))
	return nil
}

// copyWithProgress copies src to dst, invoking progress every chunk.
func copyWithProgress(dst io.Writer, src io.Reader, totalBytes int64, progress ProgressCallback) (int64, error) {
	const chunkSize = 1 << 20
	buf := make([]byte, chunkSize)
	var written int64
	for {
		n, readErr := src.Read(buf)
		if n > 0 {
			if _, writeErr := dst.Write(buf[:n]); writeErr != nil {
				return written, writeErr
			}
			written += int64(n)
			if progress != nil {
				progress(written, totalBytes, false)
			}
		}
		if readErr == io.EOF {
			if progress != nil {
				progress(written, totalBytes, true)
			}
			return written, nil
		}
		if readErr != nil {
			return written, readErr
		}
	}
}
