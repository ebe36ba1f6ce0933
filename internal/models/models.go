// Package models defines shared data types for the gallery.
package models

import (
	"errors"
	"fmt"
)

// Folder is a studio (root) or session (child of a root) folder.
// Identity is ID; immutable once fetched.
type Folder struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ImageDescriptor identifies one listed image, not its bytes.
type ImageDescriptor struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	MIMEType string `json:"mimeType"`
}

// ErrNotFound indicates a folder or file id that does not resolve to an
// accessible entry under the service credential.
var ErrNotFound = errors.New("not found")

// AuthError indicates an invalid or expired credential. Fatal at startup.
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed: %v", e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// DownloadError is returned after all download attempts fail.
// It carries the last underlying cause.
type DownloadError struct {
	FileID string
	Err    error
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("download %s failed after retries: %v", e.FileID, e.Err)
}

func (e *DownloadError) Unwrap() error { return e.Err }
