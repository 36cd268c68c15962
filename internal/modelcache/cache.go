// Package modelcache answers whether a speech model is present locally and
// fetches it on explicit request.
package modelcache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"voicetransor/internal/domain"
)

// DefaultDownloadTimeout bounds a single model transfer.
const DefaultDownloadTimeout = 45 * time.Minute

// Cache resolves models against one local directory and tracks downloads.
type Cache struct {
	dir     string
	catalog []domain.WhisperModelOption
	client  *http.Client
	timeout time.Duration
	logger  *slog.Logger
	stat    func(string) (os.FileInfo, error)

	baseCtx context.Context
	stop    context.CancelFunc

	mu       sync.Mutex
	inflight map[string]*Download
}

// New creates a cache over dir using the built-in catalog.
func New(dir string, timeout time.Duration, logger *slog.Logger) *Cache {
	return newCache(dir, DefaultCatalog, http.DefaultClient, timeout, logger)
}

// NewForTests creates a cache with an injectable catalog and HTTP client.
func NewForTests(dir string, catalog []domain.WhisperModelOption, client *http.Client) *Cache {
	return newCache(dir, catalog, client, time.Minute, nil)
}

func newCache(dir string, catalog []domain.WhisperModelOption, client *http.Client, timeout time.Duration, logger *slog.Logger) *Cache {
	if timeout <= 0 {
		timeout = DefaultDownloadTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	if client == nil {
		client = http.DefaultClient
	}

	ctx, stop := context.WithCancel(context.Background())
	return &Cache{
		dir:      dir,
		catalog:  catalog,
		client:   client,
		timeout:  timeout,
		logger:   logger,
		stat:     os.Stat,
		baseCtx:  ctx,
		stop:     stop,
		inflight: make(map[string]*Download),
	}
}

// Dir returns the local model directory.
func (c *Cache) Dir() string {
	return c.dir
}

// Lookup returns the catalog entry for a model name.
func (c *Cache) Lookup(name string) (domain.WhisperModelOption, bool) {
	id := strings.TrimSpace(name)
	for _, model := range c.catalog {
		if model.ID == id {
			return model, true
		}
	}
	return domain.WhisperModelOption{}, false
}

// CheckAvailability reports whether the model file exists locally. It only
// touches the filesystem.
func (c *Cache) CheckAvailability(name string) (domain.ModelAvailability, error) {
	model, found := c.Lookup(name)
	if !found {
		return domain.ModelAvailability{ModelName: name, CacheDir: c.dir}, fmt.Errorf("model %q: %w", name, domain.ErrNotFound)
	}

	availability := domain.ModelAvailability{
		ModelName: model.ID,
		CacheDir:  c.dir,
	}
	candidate := filepath.Join(c.dir, model.FileName)
	info, err := c.stat(candidate)
	if err == nil && !info.IsDir() && info.Size() > 0 {
		availability.IsCached = true
		availability.LocalPath = candidate
	}
	return availability, nil
}

// Models returns the catalog with downloaded flags filled in.
func (c *Cache) Models() []domain.WhisperModelOption {
	models := make([]domain.WhisperModelOption, len(c.catalog))
	copy(models, c.catalog)

	for i := range models {
		availability, err := c.CheckAvailability(models[i].ID)
		if err != nil || !availability.IsCached {
			continue
		}
		models[i].Downloaded = true
		models[i].LocalPath = availability.LocalPath
	}
	return models
}

// RequestDownload starts fetching the model, or returns the transfer already
// in flight for it. Callers must confirm with the user before calling.
func (c *Cache) RequestDownload(name string) (*Download, error) {
	model, found := c.Lookup(name)
	if !found {
		return nil, fmt.Errorf("model %q: %w", name, domain.ErrNotFound)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.inflight[model.ID]; ok {
		return existing, nil
	}
	if err := c.baseCtx.Err(); err != nil {
		return nil, fmt.Errorf("model cache closed: %w", err)
	}

	target := filepath.Join(c.dir, model.FileName)
	download := newDownload(model.ID, target)

	if availability, err := c.CheckAvailability(model.ID); err == nil && availability.IsCached {
		download.finish(nil)
		return download, nil
	}

	c.inflight[model.ID] = download
	go c.run(download, model)
	return download, nil
}

// Close cancels in-flight downloads.
func (c *Cache) Close() {
	c.stop()
}

func (c *Cache) run(download *Download, model domain.WhisperModelOption) {
	ctx, cancel := context.WithTimeout(c.baseCtx, c.timeout)
	defer cancel()

	c.logger.Info("model download started", "model", model.ID, "url", model.URL, "target", download.target)
	err := downloadURLToFile(ctx, c.client, download.target, model.URL, download.progress)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			err = fmt.Errorf("download cancelled: %w", err)
		}
		c.logger.Warn("model download failed", "model", model.ID, "error", err)
	} else {
		c.logger.Info("model download completed", "model", model.ID, "target", download.target)
	}

	c.mu.Lock()
	delete(c.inflight, model.ID)
	c.mu.Unlock()

	download.finish(err)
}
