// Package source defines the remote file-source interface consumed by the
// gallery and provides the cached query layer that wraps it.
package source

import (
	"context"
	"fmt"

	"github.com/seoulfie/drivegallery/internal/config"
	"github.com/seoulfie/drivegallery/internal/models"
	"github.com/seoulfie/drivegallery/internal/source/drive"
	s3source "github.com/seoulfie/drivegallery/internal/source/s3"
)

// Source is a single authenticated handle to the storage backend.
// Implementations are constructed once per process and shared; all methods
// are safe for concurrent use.
type Source interface {
	// FolderName resolves a folder id to its display name.
	// Fails with models.ErrNotFound if the id does not exist or is not
	// accessible under the service credential.
	FolderName(ctx context.Context, folderID string) (string, error)

	// ListFolders returns the subfolders of parentID, name-ascending,
	// excluding trashed entries. Result capped at the backend page size.
	ListFolders(ctx context.Context, parentID string) ([]models.Folder, error)

	// ListImages returns the images directly under parentID,
	// name-ascending, excluding trashed entries.
	ListImages(ctx context.Context, parentID string) ([]models.ImageDescriptor, error)

	// DownloadBytes accumulates the full binary content of one file.
	DownloadBytes(ctx context.Context, fileID string) ([]byte, error)

	// Close releases any resources held by the source.
	Close() error
}

// New creates a Source from the configured backend type.
func New(ctx context.Context, cfg *config.Config) (Source, error) {
	switch cfg.SourceBackend {
	case "drive":
		return drive.New(drive.Config{
			CredentialsFile: cfg.DriveCredentialsFile,
		})
	case "s3":
		return s3source.New(ctx, s3source.Config{
			Endpoint:  cfg.S3Endpoint,
			Bucket:    cfg.S3Bucket,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Region:    cfg.S3Region,
			UseSSL:    cfg.S3UseSSL,
		})
	default:
		return nil, fmt.Errorf("unknown source backend: %s", cfg.SourceBackend)
	}
}
