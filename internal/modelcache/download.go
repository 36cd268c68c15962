package modelcache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"voicetransor/internal/domain"
	"voicetransor/internal/eventlog"
)

// Download statuses.
const (
	StatusDownloading = "downloading"
	StatusCompleted   = "completed"
	StatusFailed      = "failed"
)

const progressByteStep = 1 << 20

// DownloadProgress is one observable step of a model transfer.
type DownloadProgress struct {
	DownloadID string  `json:"downloadId"`
	Model      string  `json:"model"`
	Status     string  `json:"status"`
	BytesDone  int64   `json:"bytesDone"`
	BytesTotal int64   `json:"bytesTotal"`
	Fraction   float64 `json:"fraction"`
	LocalPath  string  `json:"localPath,omitempty"`
	Error      string  `json:"error,omitempty"`
}

// Download tracks one model transfer. Several callers may share it.
type Download struct {
	ID     string
	Model  string
	target string

	events *eventlog.Log[DownloadProgress]
	done   chan struct{}

	mu  sync.Mutex
	err error
}

func newDownload(model, target string) *Download {
	return &Download{
		ID:     uuid.NewString(),
		Model:  model,
		target: target,
		events: eventlog.New[DownloadProgress](0),
		done:   make(chan struct{}),
	}
}

// Subscribe replays progress so far and follows until the transfer ends.
func (d *Download) Subscribe(ctx context.Context) <-chan DownloadProgress {
	return d.events.Follow(ctx, 1)
}

// Done is closed when the transfer has finished.
func (d *Download) Done() <-chan struct{} {
	return d.done
}

// Wait blocks until the transfer ends and returns its error.
func (d *Download) Wait(ctx context.Context) error {
	select {
	case <-d.done:
		d.mu.Lock()
		defer d.mu.Unlock()
		return d.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// LocalPath is where the model lands once the transfer completes.
func (d *Download) LocalPath() string {
	return d.target
}

func (d *Download) progress(done, total int64) {
	fraction := 0.0
	if total > 0 {
		fraction = float64(done) / float64(total)
	}
	d.events.Publish(DownloadProgress{
		DownloadID: d.ID,
		Model:      d.Model,
		Status:     StatusDownloading,
		BytesDone:  done,
		BytesTotal: total,
		Fraction:   fraction,
	})
}

func (d *Download) finish(err error) {
	final := DownloadProgress{
		DownloadID: d.ID,
		Model:      d.Model,
		Status:     StatusCompleted,
		Fraction:   1,
		LocalPath:  d.target,
	}
	if last, _, ok := d.events.Last(); ok {
		final.BytesDone = last.BytesDone
		final.BytesTotal = last.BytesTotal
	}
	if err != nil {
		final.Status = StatusFailed
		final.Fraction = 0
		final.LocalPath = ""
		final.Error = err.Error()
	}

	d.mu.Lock()
	d.err = err
	d.mu.Unlock()

	d.events.Publish(final)
	d.events.Close()
	close(d.done)
}

// progressWriter reports bytes written at most once per percent or MiB.
type progressWriter struct {
	total    int64
	written  int64
	reported int64
	report   func(done, total int64)
}

func (w *progressWriter) Write(p []byte) (int, error) {
	w.written += int64(len(p))

	step := int64(progressByteStep)
	if w.total > 0 && w.total/100 < step {
		step = max(w.total/100, 1)
	}
	if w.written-w.reported >= step || w.written == w.total {
		w.reported = w.written
		w.report(w.written, w.total)
	}
	return len(p), nil
}

func downloadURLToFile(ctx context.Context, client *http.Client, destinationPath, sourceURL string, report func(done, total int64)) error {
	if err := os.MkdirAll(filepath.Dir(destinationPath), 0o755); err != nil {
		return fmt.Errorf("%w: prepare destination directory: %w", domain.ErrIO, err)
	}

	tmpPath := destinationPath + ".download"
	if err := os.Remove(tmpPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: remove stale temp file: %w", domain.ErrIO, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "voicetransor")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: request download: %w", domain.ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: unexpected HTTP status: %s", domain.ErrServiceUnavailable, resp.Status)
	}

	file, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("%w: create temporary file: %w", domain.ErrIO, err)
	}

	counter := &progressWriter{total: resp.ContentLength, report: report}
	report(0, resp.ContentLength)
	_, copyErr := io.Copy(io.MultiWriter(file, counter), resp.Body)
	closeErr := file.Close()
	if copyErr != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("%w: write destination file: %w", domain.ErrIO, copyErr)
	}
	if closeErr != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("%w: close destination file: %w", domain.ErrIO, closeErr)
	}

	if err := os.Rename(tmpPath, destinationPath); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("%w: move downloaded file into place: %w", domain.ErrIO, err)
	}
	return nil
}
