package extract

import (
	"fmt"
	"os"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// PageInfo holds details parsed out of captured page markup.
type PageInfo struct {
	Title       string
	Description string
	MediaRefs   int
}

// ParsePage extracts the title, description, and referenced media count from
// a captured HTML file.
func ParsePage(path string) (PageInfo, error) {
	file, err := os.Open(path)
	if err != nil {
		return PageInfo{}, fmt.Errorf("open page %s: %w", path, err)
	}
	defer file.Close()

	doc, err := goquery.NewDocumentFromReader(file)
	if err != nil {
		return PageInfo{}, fmt.Errorf("parse page %s: %w", path, err)
	}

	info := PageInfo{
		Title: strings.TrimSpace(doc.Find("title").First().Text()),
	}
	if desc, ok := doc.Find(`meta[name="description"]`).First().Attr("content"); ok {
		info.Description = strings.TrimSpace(desc)
	}
	info.MediaRefs = doc.Find("img[src], video[src], video source[src], audio[src]").Length()
	return info, nil
}
