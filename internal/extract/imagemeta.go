package extract

import (
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/rwcarlsen/goexif/exif"
)

// ImageMeta holds the dimensions and GPS coordinates recoverable from an
// image file. Fields are zero when the file carries no usable metadata.
type ImageMeta struct {
	Width  int
	Height int
	GPSLat *float64
	GPSLon *float64
}

// ReadImageMeta decodes image dimensions and, for JPEG and TIFF files, any
// embedded EXIF GPS position. Undecodable files yield an empty ImageMeta
// rather than an error: metadata is an enrichment, not a requirement.
func ReadImageMeta(path string) ImageMeta {
	meta := ImageMeta{}

	if file, err := os.Open(path); err == nil {
		if cfg, _, err := image.DecodeConfig(file); err == nil {
			meta.Width = cfg.Width
			meta.Height = cfg.Height
		}
		file.Close()
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg", ".tif", ".tiff":
	default:
		return meta
	}

	file, err := os.Open(path)
	if err != nil {
		return meta
	}
	defer file.Close()

	parsed, err := exif.Decode(file)
	if err != nil {
		return meta
	}
	lat, lon, err := parsed.LatLong()
	if err != nil {
		return meta
	}
	meta.GPSLat = &lat
	meta.GPSLon = &lon
	return meta
}
