// Package s3 implements the remote source against an S3-compatible bucket.
// Folder ids are key prefixes ending in "/"; sessions are the common
// prefixes one level below a studio prefix.
package s3

import (
	"context"
	"fmt"
	"io"
	"mime"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	"github.com/seoulfie/drivegallery/internal/logging"
	"github.com/seoulfie/drivegallery/internal/metrics"
	"github.com/seoulfie/drivegallery/internal/models"
)

// Config holds S3 connection settings.
type Config struct {
	Endpoint  string
	Bucket    string
	AccessKey string
	SecretKey string
	Region    string
	UseSSL    bool
}

const listMaxKeys = 1000

// Client implements the remote source over S3/MinIO.
type Client struct {
	client *awss3.Client
	bucket string
}

// New creates an S3 source client.
func New(ctx context.Context, cfg Config) (*Client, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		),
	)
	if err != nil {
		return nil, &models.AuthError{Err: fmt.Errorf("load aws config: %w", err)}
	}

	client := awss3.NewFromConfig(awsCfg, func(o *awss3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(endpointURL(cfg.Endpoint, cfg.UseSSL))
		}
		o.UsePathStyle = true
	})

	c := &Client{client: client, bucket: cfg.Bucket}

	// A credential that cannot list the bucket is unusable; fail now
	// rather than on the first user interaction.
	if _, err := c.client.HeadBucket(ctx, &awss3.HeadBucketInput{
		Bucket: aws.String(cfg.Bucket),
	}); err != nil {
		return nil, &models.AuthError{Err: fmt.Errorf("head bucket %s: %w", cfg.Bucket, err)}
	}

	return c, nil
}

// FolderName returns the last path element of the prefix. The prefix must
// hold at least one object to count as existing.
func (c *Client) FolderName(ctx context.Context, folderID string) (string, error) {
	start := time.Now()
	prefix := normalizePrefix(folderID)

	out, err := c.client.ListObjectsV2(ctx, &awss3.ListObjectsV2Input{
		Bucket:  aws.String(c.bucket),
		Prefix:  aws.String(prefix),
		MaxKeys: aws.Int32(1),
	})
	if err != nil {
		metrics.RecordSourceOperation("folder_name", time.Since(start), false)
		return "", fmt.Errorf("list prefix %s: %w", prefix, err)
	}
	if out.KeyCount == nil || *out.KeyCount == 0 {
		metrics.RecordSourceOperation("folder_name", time.Since(start), false)
		return "", fmt.Errorf("prefix %s: %w", prefix, models.ErrNotFound)
	}

	metrics.RecordSourceOperation("folder_name", time.Since(start), true)
	return path.Base(strings.TrimSuffix(prefix, "/")), nil
}

// ListFolders returns the common prefixes one level below parentID,
// name-ascending.
func (c *Client) ListFolders(ctx context.Context, parentID string) ([]models.Folder, error) {
	start := time.Now()
	prefix := normalizePrefix(parentID)

	out, err := c.client.ListObjectsV2(ctx, &awss3.ListObjectsV2Input{
		Bucket:    aws.String(c.bucket),
		Prefix:    aws.String(prefix),
		Delimiter: aws.String("/"),
		MaxKeys:   aws.Int32(listMaxKeys),
	})
	if err != nil {
		metrics.RecordSourceOperation("list_folders", time.Since(start), false)
		return nil, fmt.Errorf("list folders under %s: %w", prefix, err)
	}

	folders := make([]models.Folder, 0, len(out.CommonPrefixes))
	for _, cp := range out.CommonPrefixes {
		if cp.Prefix == nil {
			continue
		}
		folders = append(folders, models.Folder{
			ID:   *cp.Prefix,
			Name: path.Base(strings.TrimSuffix(*cp.Prefix, "/")),
		})
	}
	sort.Slice(folders, func(i, j int) bool { return folders[i].Name < folders[j].Name })

	metrics.RecordSourceOperation("list_folders", time.Since(start), true)
	return folders, nil
}

// ListImages returns the image objects directly under parentID,
// name-ascending. Images are recognized by file extension.
func (c *Client) ListImages(ctx context.Context, parentID string) ([]models.ImageDescriptor, error) {
	start := time.Now()
	prefix := normalizePrefix(parentID)

	out, err := c.client.ListObjectsV2(ctx, &awss3.ListObjectsV2Input{
		Bucket:    aws.String(c.bucket),
		Prefix:    aws.String(prefix),
		Delimiter: aws.String("/"),
		MaxKeys:   aws.Int32(listMaxKeys),
	})
	if err != nil {
		metrics.RecordSourceOperation("list_images", time.Since(start), false)
		return nil, fmt.Errorf("list images under %s: %w", prefix, err)
	}

	images := make([]models.ImageDescriptor, 0, len(out.Contents))
	for _, obj := range out.Contents {
		if obj.Key == nil || *obj.Key == prefix {
			continue
		}
		name := path.Base(*obj.Key)
		mimeType := mime.TypeByExtension(strings.ToLower(path.Ext(name)))
		if !strings.HasPrefix(mimeType, "image/") {
			continue
		}
		images = append(images, models.ImageDescriptor{
			ID:       *obj.Key,
			Name:     name,
			MIMEType: mimeType,
		})
	}
	sort.Slice(images, func(i, j int) bool { return images[i].Name < images[j].Name })

	metrics.RecordSourceOperation("list_images", time.Since(start), true)
	return images, nil
}

// DownloadBytes accumulates the full content of one object.
func (c *Client) DownloadBytes(ctx context.Context, fileID string) ([]byte, error) {
	start := time.Now()

	out, err := c.client.GetObject(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(fileID),
	})
	if err != nil {
		metrics.RecordSourceOperation("download", time.Since(start), false)
		return nil, fmt.Errorf("get object %s: %w", fileID, err)
	}
	defer out.Body.Close()

	body, err := io.ReadAll(out.Body)
	if err != nil {
		metrics.RecordSourceOperation("download", time.Since(start), false)
		return nil, fmt.Errorf("read object %s: %w", fileID, err)
	}

	metrics.RecordSourceOperation("download", time.Since(start), true)
	metrics.RecordDownload(int64(len(body)))
	logging.Debug("s3 download",
		zap.String("key", fileID),
		zap.Int("bytes", len(body)),
		zap.Duration("duration", time.Since(start)))
	return body, nil
}

// Close is a no-op for S3 clients.
func (c *Client) Close() error { return nil }

// endpointURL completes a scheme-less endpoint using the SSL setting.
// Endpoints that already carry a scheme are passed through unchanged.
func endpointURL(endpoint string, useSSL bool) string {
	if strings.Contains(endpoint, "://") {
		return endpoint
	}
	if useSSL {
		return "https://" + endpoint
	}
	return "http://" + endpoint
}

func normalizePrefix(id string) string {
	if id == "" || strings.HasSuffix(id, "/") {
		return id
	}
	return id + "/"
}
