package source

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/seoulfie/drivegallery/internal/cache"
	"github.com/seoulfie/drivegallery/internal/logging"
	"github.com/seoulfie/drivegallery/internal/metrics"
	"github.com/seoulfie/drivegallery/internal/models"
	"github.com/seoulfie/drivegallery/internal/retry"
)

const (
	opFolderName  = "folder_name"
	opListFolders = "list_folders"
	opListImages  = "list_images"
	opDownload    = "download"
)

// Cached memoizes Source reads. Name and list results expire after the
// configured TTL; downloaded bytes are immutable and cached for the process
// lifetime, or until an explicit Clear. Downloads additionally run through
// the bounded retry policy; name and list calls are not retried, since
// repeated failure there means a bad id or missing permission.
type Cached struct {
	src      Source
	store    *cache.Store
	listTTL  time.Duration
	download retry.Policy
}

// NewCached wraps src with the memoizing cache.
func NewCached(src Source, store *cache.Store, listTTL time.Duration) *Cached {
	policy := retry.DownloadPolicy()
	policy.OnRetry = func(attempt int, err error) {
		metrics.RecordDownloadRetry()
		logging.Warn("download failed, retrying",
			zap.Int("attempt", attempt),
			zap.Bool("transport_error", retry.IsTransportError(err)),
			zap.Error(err))
	}

	return &Cached{
		src:      src,
		store:    store,
		listTTL:  listTTL,
		download: policy,
	}
}

// FolderName resolves a folder name, hitting the backend at most once per
// TTL window for a given id.
func (c *Cached) FolderName(ctx context.Context, folderID string) (string, error) {
	key := cache.Key(opFolderName, folderID)
	if v, ok := c.store.Get(key); ok {
		metrics.RecordCacheHit(opFolderName)
		return v.(string), nil
	}
	metrics.RecordCacheMiss(opFolderName)

	name, err := c.src.FolderName(ctx, folderID)
	if err != nil {
		return "", err
	}
	c.put(key, name, c.listTTL)
	return name, nil
}

// ListFolders lists subfolders, cached per parent id.
func (c *Cached) ListFolders(ctx context.Context, parentID string) ([]models.Folder, error) {
	key := cache.Key(opListFolders, parentID)
	if v, ok := c.store.Get(key); ok {
		metrics.RecordCacheHit(opListFolders)
		return v.([]models.Folder), nil
	}
	metrics.RecordCacheMiss(opListFolders)

	folders, err := c.src.ListFolders(ctx, parentID)
	if err != nil {
		return nil, err
	}
	c.put(key, folders, c.listTTL)
	return folders, nil
}

// ListImages lists images, cached per parent id.
func (c *Cached) ListImages(ctx context.Context, parentID string) ([]models.ImageDescriptor, error) {
	key := cache.Key(opListImages, parentID)
	if v, ok := c.store.Get(key); ok {
		metrics.RecordCacheHit(opListImages)
		return v.([]models.ImageDescriptor), nil
	}
	metrics.RecordCacheMiss(opListImages)

	images, err := c.src.ListImages(ctx, parentID)
	if err != nil {
		return nil, err
	}
	c.put(key, images, c.listTTL)
	return images, nil
}

// DownloadBytes returns the content of one file, cached indefinitely.
// On a miss the download is attempted up to the retry limit; after
// exhaustion the last error is returned wrapped in *models.DownloadError.
func (c *Cached) DownloadBytes(ctx context.Context, fileID string) ([]byte, error) {
	key := cache.Key(opDownload, fileID)
	if v, ok := c.store.Get(key); ok {
		metrics.RecordCacheHit(opDownload)
		return v.([]byte), nil
	}
	metrics.RecordCacheMiss(opDownload)

	data, err := retry.DoWithResult(ctx, c.download, func() ([]byte, error) {
		return c.src.DownloadBytes(ctx, fileID)
	})
	if err != nil {
		metrics.RecordDownloadFailure()
		return nil, &models.DownloadError{FileID: fileID, Err: err}
	}

	c.put(key, data, 0)
	return data, nil
}

// Clear empties every cache entry regardless of kind.
func (c *Cached) Clear() int {
	n := c.store.Clear()
	metrics.RecordCacheClear()
	metrics.SetCacheEntries(0)
	logging.Info("cache cleared", zap.Int("entries", n))
	return n
}

// Close closes the underlying source.
func (c *Cached) Close() error { return c.src.Close() }

func (c *Cached) put(key string, v any, ttl time.Duration) {
	c.store.Put(key, v, ttl)
	metrics.SetCacheEntries(c.store.Len())
}
