// Package drive implements the remote source against the Google Drive v3
// REST API using a read-only service-account credential.
package drive

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/seoulfie/drivegallery/internal/logging"
	"github.com/seoulfie/drivegallery/internal/metrics"
	"github.com/seoulfie/drivegallery/internal/models"
)

const (
	defaultBaseURL = "https://www.googleapis.com/drive/v3"
	folderMIMEType = "application/vnd.google-apps.folder"

	// listPageSize caps every listing call. Folders holding more entries
	// than this are a known limitation; no page cursor is followed.
	listPageSize = 1000
)

// Config holds Drive client settings.
type Config struct {
	CredentialsFile string
	BaseURL         string // override for tests; default is the public API
	TokenURL        string // override for tests
	Timeout         time.Duration
}

// Client talks to the Drive API. Construct once per process and reuse;
// it is safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     *tokenSource
}

// New creates a Drive client from a service-account credentials file.
// Credential problems surface as *models.AuthError.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}

	httpClient := &http.Client{
		Timeout: cfg.Timeout,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   10 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:        100,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
		},
	}

	tokens, err := newTokenSource(cfg.CredentialsFile, httpClient)
	if err != nil {
		return nil, err
	}
	if cfg.TokenURL != "" {
		tokens.creds.TokenURI = cfg.TokenURL
	}

	return &Client{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		httpClient: httpClient,
		tokens:     tokens,
	}, nil
}

type fileResource struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	MIMEType string `json:"mimeType"`
}

type fileList struct {
	Files []fileResource `json:"files"`
}

// FolderName returns the display name of a folder.
func (c *Client) FolderName(ctx context.Context, folderID string) (string, error) {
	start := time.Now()

	query := url.Values{"fields": {"name"}, "supportsAllDrives": {"true"}}
	body, err := c.get(ctx, "/files/"+url.PathEscape(folderID), query)
	if err != nil {
		metrics.RecordSourceOperation("folder_name", time.Since(start), false)
		return "", err
	}

	var res fileResource
	if err := json.Unmarshal(body, &res); err != nil {
		metrics.RecordSourceOperation("folder_name", time.Since(start), false)
		return "", fmt.Errorf("parse folder metadata: %w", err)
	}

	metrics.RecordSourceOperation("folder_name", time.Since(start), true)
	return res.Name, nil
}

// ListFolders returns the non-trashed subfolders of parentID, name-ascending.
func (c *Client) ListFolders(ctx context.Context, parentID string) ([]models.Folder, error) {
	q := fmt.Sprintf("'%s' in parents and mimeType='%s' and trashed=false",
		escapeQuery(parentID), folderMIMEType)

	files, err := c.list(ctx, "list_folders", q, "files(id, name)")
	if err != nil {
		return nil, err
	}

	folders := make([]models.Folder, 0, len(files))
	for _, f := range files {
		folders = append(folders, models.Folder{ID: f.ID, Name: f.Name})
	}
	return folders, nil
}

// ListImages returns the non-trashed images directly under parentID,
// name-ascending.
func (c *Client) ListImages(ctx context.Context, parentID string) ([]models.ImageDescriptor, error) {
	q := fmt.Sprintf("'%s' in parents and (mimeType contains 'image/') and trashed=false",
		escapeQuery(parentID))

	files, err := c.list(ctx, "list_images", q, "files(id, name, mimeType)")
	if err != nil {
		return nil, err
	}

	images := make([]models.ImageDescriptor, 0, len(files))
	for _, f := range files {
		images = append(images, models.ImageDescriptor{ID: f.ID, Name: f.Name, MIMEType: f.MIMEType})
	}
	return images, nil
}

// DownloadBytes accumulates the full binary content of one file.
func (c *Client) DownloadBytes(ctx context.Context, fileID string) ([]byte, error) {
	start := time.Now()

	query := url.Values{"alt": {"media"}, "supportsAllDrives": {"true"}}
	body, err := c.get(ctx, "/files/"+url.PathEscape(fileID), query)
	if err != nil {
		metrics.RecordSourceOperation("download", time.Since(start), false)
		return nil, err
	}

	metrics.RecordSourceOperation("download", time.Since(start), true)
	metrics.RecordDownload(int64(len(body)))
	logging.Debug("drive download",
		zap.String("file_id", fileID),
		zap.Int("bytes", len(body)),
		zap.Duration("duration", time.Since(start)))
	return body, nil
}

// Close is a no-op; the Drive client holds no resources beyond the
// shared HTTP transport.
func (c *Client) Close() error { return nil }

func (c *Client) list(ctx context.Context, op, q, fields string) ([]fileResource, error) {
	start := time.Now()

	query := url.Values{
		"q":                 {q},
		"fields":            {fields},
		"orderBy":           {"name"},
		"pageSize":          {strconv.Itoa(listPageSize)},
		"supportsAllDrives": {"true"},
	}
	body, err := c.get(ctx, "/files", query)
	if err != nil {
		metrics.RecordSourceOperation(op, time.Since(start), false)
		return nil, err
	}

	var res fileList
	if err := json.Unmarshal(body, &res); err != nil {
		metrics.RecordSourceOperation(op, time.Since(start), false)
		return nil, fmt.Errorf("parse file list: %w", err)
	}

	metrics.RecordSourceOperation(op, time.Since(start), true)
	return res.Files, nil
}

// get performs an authenticated GET and maps API status codes onto the
// shared error taxonomy.
func (c *Client) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
		return body, nil
	case http.StatusUnauthorized:
		// Token may have been revoked mid-flight; drop it so the next
		// call re-authenticates instead of replaying a dead token.
		c.tokens.invalidate()
		return nil, &models.AuthError{Err: fmt.Errorf("drive returned 401: %s", errorSnippet(body))}
	case http.StatusForbidden, http.StatusNotFound:
		return nil, fmt.Errorf("%s: %w", errorSnippet(body), models.ErrNotFound)
	default:
		return nil, fmt.Errorf("drive returned %d: %s", resp.StatusCode, errorSnippet(body))
	}
}

// escapeQuery escapes a value interpolated into a Drive query string.
func escapeQuery(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `'`, `\'`)
}

func errorSnippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		s = s[:200]
	}
	if s == "" {
		return "(empty body)"
	}
	return s
}
