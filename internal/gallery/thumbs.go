package gallery

import (
	"bytes"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"time"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/seoulfie/drivegallery/internal/metrics"
)

// ThumbQuality is the JPEG quality for generated thumbnails.
const ThumbQuality = 80

// Thumbnail decodes an image, applies EXIF orientation correction, and
// shrinks it so neither dimension exceeds maxW x maxH, preserving aspect
// ratio. Images already within bounds are never upscaled. Returns the JPEG
// bytes and the final dimensions.
func Thumbnail(data []byte, maxW, maxH int) ([]byte, int, int, error) {
	start := time.Now()

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		metrics.RecordThumbnail(time.Since(start), false)
		return nil, 0, 0, err
	}

	meta := ExtractMeta(bytes.NewReader(data))
	img = applyOrientation(img, meta.Orientation)

	// Fit only shrinks; smaller images pass through at original size.
	thumb := imaging.Fit(img, maxW, maxH, imaging.Lanczos)

	bounds := thumb.Bounds()
	w := bounds.Dx()
	h := bounds.Dy()

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, thumb, &jpeg.Options{Quality: ThumbQuality}); err != nil {
		metrics.RecordThumbnail(time.Since(start), false)
		return nil, 0, 0, err
	}

	metrics.RecordThumbnail(time.Since(start), true)
	return buf.Bytes(), w, h, nil
}

// applyOrientation transforms an image according to EXIF orientation value.
func applyOrientation(img image.Image, orientation int) image.Image {
	switch orientation {
	case 2:
		return imaging.FlipH(img)
	case 3:
		return imaging.Rotate180(img)
	case 4:
		return imaging.FlipV(img)
	case 5:
		return imaging.Transpose(img)
	case 6:
		return imaging.Rotate270(img)
	case 7:
		return imaging.Transverse(img)
	case 8:
		return imaging.Rotate90(img)
	default:
		return img
	}
}
