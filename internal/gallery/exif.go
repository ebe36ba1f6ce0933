package gallery

import (
	"io"
	"time"

	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/tiff"
)

// Meta holds the EXIF fields used for orientation correction and captions.
type Meta struct {
	Orientation int
	CameraMake  string
	CameraModel string
	DateTaken   *time.Time
}

// ExtractMeta reads EXIF metadata from an image reader. Images without
// EXIF yield a Meta with the identity orientation, not an error.
func ExtractMeta(r io.Reader) *Meta {
	m := &Meta{Orientation: 1}

	x, err := exif.Decode(r)
	if err != nil {
		return m
	}

	m.CameraMake = tagString(x, exif.Make)
	m.CameraModel = tagString(x, exif.Model)

	if dt, err := x.DateTime(); err == nil {
		m.DateTaken = &dt
	}

	if orient, err := x.Get(exif.Orientation); err == nil {
		if v, err := orient.Int(0); err == nil && v >= 1 && v <= 8 {
			m.Orientation = v
		}
	}

	return m
}

func tagString(x *exif.Exif, f exif.FieldName) string {
	tag, err := x.Get(f)
	if err != nil {
		return ""
	}
	if tag.Format() == tiff.StringVal {
		s, _ := tag.StringVal()
		return s
	}
	return tag.String()
}
