package catalog

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Status is the lifecycle state of a capture task.
type Status string

const (
	// StatusPending marks a task awaiting an archive attempt.
	StatusPending Status = "pending"
	// StatusArchiving marks a task whose snapshot exists and is ready for
	// media extraction. Terminal for the archive worker.
	StatusArchiving Status = "archiving"
	// StatusFailed marks a task that exhausted its retry budget.
	StatusFailed Status = "failed"
)

// ParseStatus validates a user-supplied status string.
func ParseStatus(value string) (Status, error) {
	switch Status(strings.ToLower(strings.TrimSpace(value))) {
	case StatusPending:
		return StatusPending, nil
	case StatusArchiving:
		return StatusArchiving, nil
	case StatusFailed:
		return StatusFailed, nil
	}
	return "", fmt.Errorf("unknown status %q", value)
}

// MediaKind classifies an extracted file.
type MediaKind string

const (
	KindImage    MediaKind = "image"
	KindVideo    MediaKind = "video"
	KindDocument MediaKind = "document"
)

// ParseMediaKind validates a user-supplied kind string.
func ParseMediaKind(value string) (MediaKind, error) {
	switch MediaKind(strings.ToLower(strings.TrimSpace(value))) {
	case KindImage:
		return KindImage, nil
	case KindVideo:
		return KindVideo, nil
	case KindDocument:
		return KindDocument, nil
	}
	return "", fmt.Errorf("unknown media kind %q", value)
}

// Location is a named real-world place that media and captures attach to.
type Location struct {
	ID           string
	Name         string
	Jurisdiction string
	Category     string
	Subcategory  string
	GPSLat       *float64
	GPSLon       *float64
	GPSSource    string
	Author       string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// HasGPS reports whether both coordinates are recorded.
func (l *Location) HasGPS() bool {
	return l != nil && l.GPSLat != nil && l.GPSLon != nil
}

// Task is a capture task: one URL to archive for one location.
type Task struct {
	ID             string
	LocationID     string
	URL            string
	Title          string
	Description    string
	Status         Status
	SnapshotID     string
	RetryCount     int
	ExtractedCount int
	ClaimedAt      *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Media is one extracted file promoted into the catalog.
type Media struct {
	ID                 string
	LocationID         string
	Kind               MediaKind
	ContentFingerprint string
	FileName           string
	SizeBytes          int64
	Width              int
	Height             int
	DurationSeconds    float64
	GPSLat             *float64
	GPSLon             *float64
	AssetID            string
	SourceTaskID       string
	CreatedAt          time.Time
}

// HasGPS reports whether both coordinates are recorded.
func (m *Media) HasGPS() bool {
	return m != nil && m.GPSLat != nil && m.GPSLon != nil
}

// HealthSummary aggregates task counts for status output.
type HealthSummary struct {
	Total     int
	Pending   int
	Archiving int
	Failed    int
	Media     int
	Locations int
}

// ValidateURL rejects capture URLs that are not absolute http or https.
func ValidateURL(raw string) error {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return fmt.Errorf("url is empty")
	}
	parsed, err := url.Parse(trimmed)
	if err != nil {
		return fmt.Errorf("parse url %q: %w", raw, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("url %q must use http or https", raw)
	}
	if parsed.Host == "" {
		return fmt.Errorf("url %q has no host", raw)
	}
	return nil
}
