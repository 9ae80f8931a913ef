package assetstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gazetteer/internal/config"
	"gazetteer/internal/services"
)

// Uploader describes the behaviour required by the media extractor.
type Uploader interface {
	Enabled() bool
	Upload(ctx context.Context, path string) (assetID string, err error)
}

// HTTPDoer describes the HTTP client used by the asset store service.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client talks to the asset store over HTTP.
type Client struct {
	baseURL string
	token   string
	enabled bool
	client  HTTPDoer
}

// New constructs an asset store client from configuration. A disabled asset
// store yields a client whose Enabled reports false.
func New(cfg *config.Config) *Client {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.AssetStore.URL), "/")
	enabled := cfg.AssetStore.Enabled && baseURL != ""
	timeout := time.Duration(cfg.AssetStore.RequestTimeout) * time.Second
	return &Client{
		baseURL: baseURL,
		token:   strings.TrimSpace(cfg.AssetStore.Token),
		enabled: enabled,
		client:  &http.Client{Timeout: timeout},
	}
}

// NewWithDoer constructs a client against an injected HTTP doer, for tests.
func NewWithDoer(baseURL, token string, doer HTTPDoer) *Client {
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		token:   strings.TrimSpace(token),
		enabled: baseURL != "",
		client:  doer,
	}
}

// Enabled reports whether uploads are configured.
func (c *Client) Enabled() bool {
	return c != nil && c.enabled
}

type uploadResponse struct {
	ID string `json:"id"`
}

// Upload sends one file to the asset store and returns its asset identifier.
// Connection failures and server errors are tagged ErrUnavailable so the
// caller can degrade to cataloging without an asset reference.
func (c *Client) Upload(ctx context.Context, path string) (string, error) {
	if !c.Enabled() {
		return "", services.Wrap(services.ErrConfiguration, "extract", "upload", "asset store disabled", nil)
	}

	file, err := os.Open(path)
	if err != nil {
		return "", services.Wrap(services.ErrValidation, "extract", "upload", fmt.Sprintf("open %s", path), err)
	}
	defer file.Close()

	body, contentType, err := multipartBody(filepath.Base(path), file)
	if err != nil {
		return "", services.Wrap(services.ErrTransient, "extract", "upload", "build request body", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/assets", body)
	if err != nil {
		return "", services.Wrap(services.ErrTransient, "extract", "upload", "build request", err)
	}
	req.Header.Set("Content-Type", contentType)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", services.Wrap(services.ErrUnavailable, "extract", "upload", "asset store unreachable", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= http.StatusInternalServerError:
		return "", services.Wrap(services.ErrUnavailable, "extract", "upload", fmt.Sprintf("asset store returned %d", resp.StatusCode), nil)
	case resp.StatusCode >= http.StatusMultipleChoices:
		return "", services.Wrap(services.ErrTransient, "extract", "upload", fmt.Sprintf("asset store returned %d", resp.StatusCode), nil)
	}

	var decoded uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", services.Wrap(services.ErrTransient, "extract", "upload", "decode response", err)
	}
	if decoded.ID == "" {
		return "", services.Wrap(services.ErrTransient, "extract", "upload", "asset store returned no id", nil)
	}
	return decoded.ID, nil
}

// Ping verifies the asset store answers requests, for preflight checks.
func (c *Client) Ping(ctx context.Context) error {
	if !c.Enabled() {
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthz", nil)
	if err != nil {
		return fmt.Errorf("build health request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return services.Wrap(services.ErrUnavailable, "preflight", "ping", "asset store unreachable", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusInternalServerError {
		return services.Wrap(services.ErrUnavailable, "preflight", "ping", fmt.Sprintf("asset store returned %d", resp.StatusCode), nil)
	}
	return nil
}

func multipartBody(fileName string, content io.Reader) (io.Reader, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", fileName)
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(part, content); err != nil {
		return nil, "", err
	}
	if err := writer.Close(); err != nil {
		return nil, "", err
	}
	return &buf, writer.FormDataContentType(), nil
}
