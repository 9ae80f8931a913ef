package extract

import (
	"path/filepath"
	"strings"

	"gazetteer/internal/catalog"
)

var kindByExtension = map[string]catalog.MediaKind{
	".jpg":  catalog.KindImage,
	".jpeg": catalog.KindImage,
	".png":  catalog.KindImage,
	".gif":  catalog.KindImage,
	".webp": catalog.KindImage,
	".bmp":  catalog.KindImage,
	".tif":  catalog.KindImage,
	".tiff": catalog.KindImage,
	".svg":  catalog.KindImage,
	".avif": catalog.KindImage,
	".mp4":  catalog.KindVideo,
	".m4v":  catalog.KindVideo,
	".webm": catalog.KindVideo,
	".mov":  catalog.KindVideo,
	".mkv":  catalog.KindVideo,
	".avi":  catalog.KindVideo,
	".pdf":  catalog.KindDocument,
}

// Classify maps a file name to a media kind by extension. The second return
// is false for files the extractor does not promote (markup, scripts,
// stylesheets, everything else a page capture drags in).
func Classify(name string) (catalog.MediaKind, bool) {
	ext := strings.ToLower(filepath.Ext(name))
	kind, ok := kindByExtension[ext]
	return kind, ok
}

// IsPage reports whether a file holds captured page markup.
func IsPage(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".html", ".htm":
		return true
	}
	return false
}
