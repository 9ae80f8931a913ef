package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"gazetteer/internal/identity"
)

// ErrDuplicateMedia indicates a media row with the same kind and content
// fingerprint already exists.
var ErrDuplicateMedia = errors.New("duplicate media")

// InsertMedia promotes one extracted file into the catalog. Deduplication is
// global per kind: a second file with the same content fingerprint is
// rejected with ErrDuplicateMedia no matter which task produced it.
func (s *Store) InsertMedia(ctx context.Context, media *Media) (*Media, error) {
	if media == nil {
		return nil, errors.New("media is nil")
	}
	if media.ContentFingerprint == "" {
		return nil, errors.New("media content fingerprint is empty")
	}
	if _, err := ParseMediaKind(string(media.Kind)); err != nil {
		return nil, err
	}

	existing, err := s.FindMediaByFingerprint(ctx, media.Kind, media.ContentFingerprint)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: %s %s", ErrDuplicateMedia, media.Kind, media.ContentFingerprint)
	}

	id, err := identity.UniqueRandom(ctx, identity.RandomLength, s.MediaIDExists)
	if err != nil {
		return nil, fmt.Errorf("mint media id: %w", err)
	}

	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO media (
            id, loc_id, kind, content_fingerprint, file_name, size_bytes,
            width, height, duration_seconds, gps_lat, gps_lon,
            asset_id, source_url, created_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id,
		media.LocationID,
		media.Kind,
		media.ContentFingerprint,
		media.FileName,
		media.SizeBytes,
		nullableInt(media.Width),
		nullableInt(media.Height),
		nullableDuration(media.DurationSeconds),
		nullableFloat(media.GPSLat),
		nullableFloat(media.GPSLon),
		nullableString(media.AssetID),
		nullableString(media.SourceTaskID),
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("insert media: %w", err)
	}
	return s.GetMedia(ctx, id)
}

// GetMedia fetches a media row by identifier.
func (s *Store) GetMedia(ctx context.Context, id string) (*Media, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+mediaColumns+` FROM media WHERE id = ?`, id)
	media, err := scanMedia(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get media: %w", err)
	}
	return media, nil
}

// FindMediaByFingerprint returns the media row matching a kind and content
// fingerprint, or nil.
func (s *Store) FindMediaByFingerprint(ctx context.Context, kind MediaKind, fingerprint string) (*Media, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+mediaColumns+` FROM media WHERE kind = ? AND content_fingerprint = ? LIMIT 1`,
		kind,
		fingerprint,
	)
	media, err := scanMedia(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find media by fingerprint: %w", err)
	}
	return media, nil
}

// MediaForLocation returns all media attached to a location, newest first.
func (s *Store) MediaForLocation(ctx context.Context, locationID string) ([]*Media, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+mediaColumns+` FROM media WHERE loc_id = ? ORDER BY created_at DESC`,
		locationID,
	)
	if err != nil {
		return nil, fmt.Errorf("media for location: %w", err)
	}
	defer rows.Close()

	var items []*Media
	for rows.Next() {
		media, err := scanMedia(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, media)
	}
	return items, rows.Err()
}

// MediaForTask returns all media promoted from a task's snapshot.
func (s *Store) MediaForTask(ctx context.Context, taskID string) ([]*Media, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+mediaColumns+` FROM media WHERE source_url = ? ORDER BY created_at`,
		taskID,
	)
	if err != nil {
		return nil, fmt.Errorf("media for task: %w", err)
	}
	defer rows.Close()

	var items []*Media
	for rows.Next() {
		media, err := scanMedia(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, media)
	}
	return items, rows.Err()
}

const mediaColumns = "id, loc_id, kind, content_fingerprint, file_name, size_bytes, width, height, duration_seconds, gps_lat, gps_lon, asset_id, source_url, created_at"

func scanMedia(scanner interface{ Scan(dest ...any) error }) (*Media, error) {
	var (
		id          string
		locID       string
		kindStr     string
		fingerprint string
		fileName    string
		sizeBytes   int64
		width       sql.NullInt64
		height      sql.NullInt64
		duration    sql.NullFloat64
		gpsLat      sql.NullFloat64
		gpsLon      sql.NullFloat64
		assetID     sql.NullString
		sourceTask  sql.NullString
		createdRaw  sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&locID,
		&kindStr,
		&fingerprint,
		&fileName,
		&sizeBytes,
		&width,
		&height,
		&duration,
		&gpsLat,
		&gpsLon,
		&assetID,
		&sourceTask,
		&createdRaw,
	); err != nil {
		return nil, err
	}

	media := &Media{
		ID:                 id,
		LocationID:         locID,
		Kind:               MediaKind(kindStr),
		ContentFingerprint: fingerprint,
		FileName:           fileName,
		SizeBytes:          sizeBytes,
		Width:              int(width.Int64),
		Height:             int(height.Int64),
		DurationSeconds:    duration.Float64,
		AssetID:            assetID.String,
		SourceTaskID:       sourceTask.String,
	}
	if gpsLat.Valid {
		v := gpsLat.Float64
		media.GPSLat = &v
	}
	if gpsLon.Valid {
		v := gpsLon.Float64
		media.GPSLon = &v
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		media.CreatedAt = created
	}
	return media, nil
}

func nullableDuration(value float64) any {
	if value == 0 {
		return nil
	}
	return value
}
