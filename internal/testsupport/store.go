package testsupport

import (
	"context"
	"testing"

	"gazetteer/internal/catalog"
	"gazetteer/internal/config"
)

// MustOpenStore opens a catalog.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *catalog.Store {
	t.Helper()

	store, err := catalog.Open(cfg)
	if err != nil {
		t.Fatalf("catalog.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewLocation creates a location for tests using the provided store.
func NewLocation(t testing.TB, store *catalog.Store, name, jurisdiction, category string) *catalog.Location {
	t.Helper()

	location, err := store.NewLocation(context.Background(), &catalog.Location{
		Name:         name,
		Jurisdiction: jurisdiction,
		Category:     category,
	})
	if err != nil {
		t.Fatalf("store.NewLocation: %v", err)
	}
	return location
}

// NewTask enqueues a capture task for tests using the provided store.
func NewTask(t testing.TB, store *catalog.Store, locationID, url string) *catalog.Task {
	t.Helper()

	task, err := store.NewTask(context.Background(), locationID, url, "", "")
	if err != nil {
		t.Fatalf("store.NewTask: %v", err)
	}
	return task
}
