package assetstore_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"gazetteer/internal/assetstore"
	"gazetteer/internal/services"
	"gazetteer/internal/testsupport"
)

func writeSample(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "photo.jpg")
	if err := os.WriteFile(path, []byte("jpeg bytes"), 0o644); err != nil {
		t.Fatalf("write sample: %v", err)
	}
	return path
}

func TestUploadReturnsAssetID(t *testing.T) {
	var gotAuth string
	var gotFileName string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/assets" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("form file: %v", err)
		} else {
			gotFileName = header.Filename
			_, _ = io.Copy(io.Discard, file)
			file.Close()
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"asset-42"}`))
	}))
	defer server.Close()

	cfg := testsupport.NewConfig(t, testsupport.WithAssetStore(server.URL))
	cfg.AssetStore.Token = "secret"
	client := assetstore.New(cfg)

	assetID, err := client.Upload(context.Background(), writeSample(t))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if assetID != "asset-42" {
		t.Fatalf("asset id = %q", assetID)
	}
	if gotAuth != "Bearer secret" {
		t.Fatalf("authorization header = %q", gotAuth)
	}
	if gotFileName != "photo.jpg" {
		t.Fatalf("file name = %q", gotFileName)
	}
}

func TestUploadTagsServerErrorsUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	cfg := testsupport.NewConfig(t, testsupport.WithAssetStore(server.URL))
	client := assetstore.New(cfg)

	_, err := client.Upload(context.Background(), writeSample(t))
	if !errors.Is(err, services.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestUploadTagsConnectionErrorsUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	cfg := testsupport.NewConfig(t, testsupport.WithAssetStore(url))
	client := assetstore.New(cfg)

	_, err := client.Upload(context.Background(), writeSample(t))
	if !errors.Is(err, services.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestUploadDisabled(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	client := assetstore.New(cfg)
	if client.Enabled() {
		t.Fatal("client should be disabled")
	}
	if _, err := client.Upload(context.Background(), writeSample(t)); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
}

func TestPing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/healthz" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	cfg := testsupport.NewConfig(t, testsupport.WithAssetStore(server.URL))
	client := assetstore.New(cfg)
	if err := client.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}

	disabled := assetstore.New(testsupport.NewConfig(t))
	if err := disabled.Ping(context.Background()); err != nil {
		t.Fatalf("disabled Ping should be a no-op: %v", err)
	}
}
