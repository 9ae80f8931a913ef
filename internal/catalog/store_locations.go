package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"gazetteer/internal/identity"
	"gazetteer/internal/textutil"
)

// NewLocation registers a location and mints its identifier. Jurisdiction,
// category, and subcategory are normalized to lowercase hyphenated codes
// before storage; the display name is kept as entered.
func (s *Store) NewLocation(ctx context.Context, location *Location) (*Location, error) {
	if location == nil {
		return nil, errors.New("location is nil")
	}
	name := strings.TrimSpace(location.Name)
	jurisdiction := textutil.Slug(location.Jurisdiction)
	category := textutil.Slug(location.Category)
	subcategory := textutil.Slug(location.Subcategory)
	if name == "" {
		return nil, errors.New("location name is empty")
	}
	if jurisdiction == "" {
		return nil, errors.New("location jurisdiction is empty")
	}
	if category == "" {
		return nil, errors.New("location category is empty")
	}

	id, err := identity.UniqueRandom(ctx, identity.RandomLength, s.LocationIDExists)
	if err != nil {
		return nil, fmt.Errorf("mint location id: %w", err)
	}

	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO locations (
            id, name, jurisdiction, category, subcategory,
            gps_lat, gps_lon, gps_source, author, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id,
		name,
		jurisdiction,
		category,
		nullableString(subcategory),
		nullableFloat(location.GPSLat),
		nullableFloat(location.GPSLon),
		nullableString(location.GPSSource),
		nullableString(location.Author),
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert location: %w", err)
	}
	return s.GetLocation(ctx, id)
}

// GetLocation fetches a location by identifier.
func (s *Store) GetLocation(ctx context.Context, id string) (*Location, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+locationColumns+` FROM locations WHERE id = ?`, id)
	location, err := scanLocation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get location: %w", err)
	}
	return location, nil
}

// FindLocation returns the first location matching a name within a
// jurisdiction. The jurisdiction is normalized the same way NewLocation
// stores it, so callers may pass the operator's raw form.
func (s *Store) FindLocation(ctx context.Context, name, jurisdiction string) (*Location, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+locationColumns+` FROM locations WHERE name = ? AND jurisdiction = ? ORDER BY created_at LIMIT 1`,
		strings.TrimSpace(name),
		textutil.Slug(jurisdiction),
	)
	location, err := scanLocation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find location: %w", err)
	}
	return location, nil
}

// ListLocations returns all locations ordered by jurisdiction then name.
func (s *Store) ListLocations(ctx context.Context) ([]*Location, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+locationColumns+` FROM locations ORDER BY jurisdiction, name`)
	if err != nil {
		return nil, fmt.Errorf("list locations: %w", err)
	}
	defer rows.Close()

	var locations []*Location
	for rows.Next() {
		location, err := scanLocation(rows)
		if err != nil {
			return nil, err
		}
		locations = append(locations, location)
	}
	return locations, rows.Err()
}

// BackfillLocationGPS records derived coordinates on a location that has
// none. Coordinates already present, whatever their source, are never
// overwritten. Returns true when the location was updated.
func (s *Store) BackfillLocationGPS(ctx context.Context, id string, lat, lon float64, source string) (bool, error) {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE locations
         SET gps_lat = ?, gps_lon = ?, gps_source = ?, updated_at = ?
         WHERE id = ? AND gps_lat IS NULL AND gps_lon IS NULL`,
		lat,
		lon,
		nullableString(source),
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
	)
	if err != nil {
		return false, fmt.Errorf("backfill location gps: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

const locationColumns = "id, name, jurisdiction, category, subcategory, gps_lat, gps_lon, gps_source, author, created_at, updated_at"

func scanLocation(scanner interface{ Scan(dest ...any) error }) (*Location, error) {
	var (
		id           string
		name         string
		jurisdiction string
		category     string
		subcategory  sql.NullString
		gpsLat       sql.NullFloat64
		gpsLon       sql.NullFloat64
		gpsSource    sql.NullString
		author       sql.NullString
		createdRaw   sql.NullString
		updatedRaw   sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&name,
		&jurisdiction,
		&category,
		&subcategory,
		&gpsLat,
		&gpsLon,
		&gpsSource,
		&author,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	location := &Location{
		ID:           id,
		Name:         name,
		Jurisdiction: jurisdiction,
		Category:     category,
		Subcategory:  subcategory.String,
		GPSSource:    gpsSource.String,
		Author:       author.String,
	}
	if gpsLat.Valid {
		v := gpsLat.Float64
		location.GPSLat = &v
	}
	if gpsLon.Valid {
		v := gpsLon.Float64
		location.GPSLon = &v
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		location.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		location.UpdatedAt = updated
	}
	return location, nil
}
