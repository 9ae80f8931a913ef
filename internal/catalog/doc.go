// Package catalog persists locations, capture tasks, and extracted media in
// SQLite. It owns the task state machine columns and the deduplication
// constraint that the archive and extract workers rely on.
package catalog
