// Package extract walks archived snapshots, promotes media files into the
// catalog with content-based deduplication, uploads them to the asset store,
// and backfills page and GPS details discovered along the way.
package extract
