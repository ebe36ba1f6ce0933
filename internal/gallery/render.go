// Package gallery renders pages of images into a thumbnail grid.
package gallery

import (
	"bytes"
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/seoulfie/drivegallery/internal/cache"
	"github.com/seoulfie/drivegallery/internal/logging"
	"github.com/seoulfie/drivegallery/internal/models"
)

// Fetcher retrieves image bytes, normally the cached source layer.
type Fetcher interface {
	DownloadBytes(ctx context.Context, fileID string) ([]byte, error)
}

// Cell is one grid position. Either the thumbnail fields or Err is set.
type Cell struct {
	Index  int    `json:"index"`
	Column int    `json:"column"`
	ID     string `json:"id"`
	Name   string `json:"name"`

	Width   int    `json:"width,omitempty"`
	Height  int    `json:"height,omitempty"`
	Caption string `json:"caption,omitempty"`

	Err string `json:"error,omitempty"`
}

// Grid is a rendered page of cells.
type Grid struct {
	Columns int    `json:"columns"`
	Cells   []Cell `json:"cells"`
}

// Renderer fetches, decodes, and downscales images for display.
// Generated thumbnails are kept in the shared cache store so an explicit
// cache clear also drops them.
type Renderer struct {
	fetcher Fetcher
	store   *cache.Store
	maxW    int
	maxH    int
}

// NewRenderer creates a renderer bounded by the given maximum display
// dimensions.
func NewRenderer(fetcher Fetcher, store *cache.Store, maxW, maxH int) *Renderer {
	return &Renderer{fetcher: fetcher, store: store, maxW: maxW, maxH: maxH}
}

// RenderPage builds the grid for one page of descriptors. Cells are
// assigned to columns round-robin in list order. Each image is processed
// independently: a fetch or decode failure yields an error cell carrying
// the image name and error text, and never aborts the rest of the page.
func (r *Renderer) RenderPage(ctx context.Context, descriptors []models.ImageDescriptor, columns int) Grid {
	if columns < 1 {
		columns = 1
	}

	grid := Grid{Columns: columns, Cells: make([]Cell, 0, len(descriptors))}
	for i, d := range descriptors {
		cell := Cell{Index: i, Column: i % columns, ID: d.ID, Name: d.Name}

		_, w, h, caption, err := r.thumb(ctx, d.ID)
		if err != nil {
			cell.Err = err.Error()
			logging.Warn("image failed to render",
				zap.String("name", d.Name),
				zap.String("id", d.ID),
				zap.Error(err))
		} else {
			cell.Width = w
			cell.Height = h
			cell.Caption = caption
		}

		grid.Cells = append(grid.Cells, cell)
	}
	return grid
}

// ThumbJPEG returns the thumbnail bytes for one image, generating and
// caching them on first use.
func (r *Renderer) ThumbJPEG(ctx context.Context, fileID string) ([]byte, error) {
	data, _, _, _, err := r.thumb(ctx, fileID)
	return data, err
}

type thumbEntry struct {
	jpeg    []byte
	width   int
	height  int
	caption string
}

func (r *Renderer) thumb(ctx context.Context, fileID string) ([]byte, int, int, string, error) {
	key := cache.Key("thumb", fileID,
		fmt.Sprintf("%dx%d", r.maxW, r.maxH))
	if v, ok := r.store.Get(key); ok {
		e := v.(thumbEntry)
		return e.jpeg, e.width, e.height, e.caption, nil
	}

	raw, err := r.fetcher.DownloadBytes(ctx, fileID)
	if err != nil {
		return nil, 0, 0, "", err
	}

	jpegBytes, w, h, err := Thumbnail(raw, r.maxW, r.maxH)
	if err != nil {
		return nil, 0, 0, "", fmt.Errorf("decode image: %w", err)
	}

	e := thumbEntry{jpeg: jpegBytes, width: w, height: h, caption: captionFor(raw)}
	r.store.Put(key, e, 0)
	return e.jpeg, e.width, e.height, e.caption, nil
}

func captionFor(raw []byte) string {
	meta := ExtractMeta(bytes.NewReader(raw))
	caption := ""
	if meta.CameraMake != "" || meta.CameraModel != "" {
		caption = joinNonEmpty(meta.CameraMake, meta.CameraModel)
	}
	if meta.DateTaken != nil {
		caption = joinNonEmpty(caption, meta.DateTaken.Format("2006-01-02 15:04"))
	}
	return caption
}

func joinNonEmpty(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	default:
		return a + " · " + b
	}
}
