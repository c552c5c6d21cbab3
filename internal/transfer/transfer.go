// Package transfer downloads one URL to one destination path with staging
// semantics: bytes land in a ".partial" file, resumable after interruption,
// and the final name only ever appears after the byte count has been
// verified against the remote size.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"teachable-dl/internal/retry"
)

// StagingSuffix is appended to the destination path while bytes are in flight.
const StagingSuffix = ".partial"

// ErrMissingURL reports a task with no resolvable location. Not a network
// failure; nothing was attempted.
var ErrMissingURL = errors.New("transfer: missing url")

// SizeMismatchError reports a completed stream whose byte count does not
// match the server-declared size. The staging file is left in place.
type SizeMismatchError struct {
	Expected int64
	Actual   int64
}

func (e *SizeMismatchError) Error() string {
	return fmt.Sprintf("transfer: size mismatch: got %d bytes, expected %d", e.Actual, e.Expected)
}

// HTTPError is a terminal status >= 400 on the probe or data request.
type HTTPError struct {
	StatusCode int
	Status     string
	URL        string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("transfer: %s: %s", e.URL, e.Status)
}

// Config carries the transfer tunables. Zero fields fall back to defaults
// matching typical course media sizes.
type Config struct {
	SmallFileThreshold int64
	ResumeMargin       int64
	ChunkSize          int64
	ProgressInterval   int64
	ConnectTimeout     time.Duration
	Timeout            time.Duration
	Retry              retry.Policy
	Logger             *logrus.Logger
}

// Result reports what one transfer actually did.
type Result struct {
	BytesWritten int64
	ExpectedSize int64
	Skipped      bool
	Resumed      bool
	ResumeOffset int64
}

// Transferrer executes resumable downloads. Safe for concurrent use.
type Transferrer struct {
	cfg    Config
	client *http.Client
}

func New(cfg Config) *Transferrer {
	if cfg.SmallFileThreshold <= 0 {
		cfg.SmallFileThreshold = 1 << 20
	}
	if cfg.ResumeMargin <= 0 {
		cfg.ResumeMargin = 1 << 20
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 4 << 20
	}
	if cfg.ProgressInterval <= 0 {
		cfg.ProgressInterval = 32 << 20
	}
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = 15 * time.Second
	}
	if cfg.Timeout == 0 {
		// large media over slow links; the connect timeout fails fast,
		// the total timeout just has to outlast the biggest file
		cfg.Timeout = time.Hour
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = retry.Policy{MaxAttempts: 3, InitialDelay: 2 * time.Second, Factor: 2}
	}

	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout: cfg.ConnectTimeout,
		}).DialContext,
		DisableCompression: true, // raw bytes; sizes must match Content-Length
	}
	return &Transferrer{
		cfg: cfg,
		client: &http.Client{
			Transport: transport,
			Timeout:   cfg.Timeout,
		},
	}
}

type remoteInfo struct {
	size          int64
	acceptsRanges bool
}

// Transfer downloads url to destPath. Re-running against an already complete
// destination performs zero data transfer. On failure the staging file is
// preserved whenever its contents may still be useful for a later resume.
func (t *Transferrer) Transfer(ctx context.Context, url, destPath string) (*Result, error) {
	if url == "" {
		return nil, ErrMissingURL
	}

	info, err := t.probe(ctx, url)
	if err != nil {
		return nil, err
	}

	// fast path: destination already holds the complete file
	if fi, err := os.Stat(destPath); err == nil && info.size > 0 && fi.Size() == info.size {
		t.cfg.Logger.WithField("path", filepath.Base(destPath)).Info("already complete, skipping")
		return &Result{ExpectedSize: info.size, Skipped: true}, nil
	}

	var result *Result
	err = t.cfg.Retry.Do(ctx, func() error {
		var passErr error
		result, passErr = t.pass(ctx, url, destPath, info)
		return passErr
	}, retryableTransferErr)
	if err != nil {
		return result, err
	}
	return result, nil
}

// retryableTransferErr distinguishes transient transport failures from
// terminal ones. Size mismatches and HTTP errors are never retried within a
// run; cancellation propagates immediately.
func retryableTransferErr(err error) bool {
	var httpErr *HTTPError
	var sizeErr *SizeMismatchError
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return false
	case errors.As(err, &httpErr), errors.As(err, &sizeErr):
		return false
	case errors.Is(err, ErrMissingURL):
		return false
	}
	return true
}

// pass performs one full download attempt, resuming from the staging file
// when the preconditions hold.
func (t *Transferrer) pass(ctx context.Context, url, destPath string, info remoteInfo) (*Result, error) {
	staging := destPath + StagingSuffix
	result := &Result{ExpectedSize: info.size}

	offset := int64(0)
	if fi, err := os.Stat(staging); err == nil {
		switch {
		case info.acceptsRanges && info.size > t.cfg.SmallFileThreshold && fi.Size() > t.cfg.ResumeMargin:
			// the trailing margin may hold torn bytes from an interrupted
			// write; drop it and continue from there
			offset = fi.Size() - t.cfg.ResumeMargin
			if err := os.Truncate(staging, offset); err != nil {
				return nil, fmt.Errorf("truncate staging file: %w", err)
			}
			result.Resumed = true
			result.ResumeOffset = offset
		default:
			// small files restart in full; the bookkeeping is not worth it
			if err := os.Remove(staging); err != nil && !os.IsNotExist(err) {
				return nil, fmt.Errorf("discard staging file: %w", err)
			}
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if offset > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", offset))
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return result, fmt.Errorf("data request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case offset > 0 && resp.StatusCode == http.StatusPartialContent:
	case resp.StatusCode == http.StatusOK:
		if offset > 0 {
			// server ignored the range; start over
			offset = 0
			result.Resumed = false
			result.ResumeOffset = 0
			if err := os.Remove(staging); err != nil && !os.IsNotExist(err) {
				return nil, fmt.Errorf("discard staging file: %w", err)
			}
		}
	default:
		return result, &HTTPError{StatusCode: resp.StatusCode, Status: resp.Status, URL: url}
	}

	flags := os.O_CREATE | os.O_WRONLY
	if offset > 0 {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	out, err := os.OpenFile(staging, flags, 0o644)
	if err != nil {
		return result, fmt.Errorf("open staging file: %w", err)
	}

	written, streamErr := t.stream(ctx, out, resp.Body, destPath, offset)
	result.BytesWritten = written
	if closeErr := out.Close(); streamErr == nil && closeErr != nil {
		streamErr = fmt.Errorf("close staging file: %w", closeErr)
	}
	if streamErr != nil {
		// staging file stays for a later resume
		return result, streamErr
	}

	fi, err := os.Stat(staging)
	if err != nil {
		return result, fmt.Errorf("stat staging file: %w", err)
	}
	if info.size > 0 && fi.Size() != info.size {
		return result, &SizeMismatchError{Expected: info.size, Actual: fi.Size()}
	}

	if err := os.Rename(staging, destPath); err != nil {
		return result, fmt.Errorf("promote staging file: %w", err)
	}
	return result, nil
}

// stream copies the response body to the staging file in large chunks,
// logging progress on a coarse byte interval.
func (t *Transferrer) stream(ctx context.Context, out *os.File, body io.Reader, destPath string, offset int64) (int64, error) {
	buf := make([]byte, t.cfg.ChunkSize)
	var written int64
	nextLog := t.cfg.ProgressInterval

	for {
		if err := ctx.Err(); err != nil {
			return written, err
		}

		n, readErr := body.Read(buf)
		if n > 0 {
			if _, writeErr := out.Write(buf[:n]); writeErr != nil {
				return written, fmt.Errorf("write staging file: %w", writeErr)
			}
			written += int64(n)
			if written >= nextLog {
				t.cfg.Logger.WithFields(logrus.Fields{
					"path":  filepath.Base(destPath),
					"bytes": offset + written,
				}).Info("download progress")
				nextLog += t.cfg.ProgressInterval
			}
		}
		if readErr == io.EOF {
			return written, nil
		}
		if readErr != nil {
			return written, fmt.Errorf("read response: %w", readErr)
		}
	}
}

// probe discovers the remote size and whether the server honors ranged
// requests.
func (t *Transferrer) probe(ctx context.Context, url string) (remoteInfo, error) {
	var info remoteInfo
	err := t.cfg.Retry.Do(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
		if err != nil {
			return err
		}
		resp, err := t.client.Do(req)
		if err != nil {
			return fmt.Errorf("probe: %w", err)
		}
		resp.Body.Close()

		if resp.StatusCode >= 400 {
			return &HTTPError{StatusCode: resp.StatusCode, Status: resp.Status, URL: url}
		}

		info = remoteInfo{
			size:          resp.ContentLength,
			acceptsRanges: resp.Header.Get("Accept-Ranges") == "bytes",
		}
		return nil
	}, retryableTransferErr)
	return info, err
}
