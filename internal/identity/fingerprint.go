package identity

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
)

const (
	// ContentLength is the conventional truncation for content fingerprints
	// used as entity identity (48 bits; collision-safe at catalog scale).
	ContentLength = 12
	// RandomLength is the conventional truncation for random fingerprints.
	RandomLength = 12
	// FullContentLength is the length of an untruncated SHA-256 hex digest,
	// used for media deduplication.
	FullContentLength = 64

	maxRandomLength = 32
	hashChunkSize   = 64 * 1024
	maxUniqueTries  = 100
)

var (
	// ErrNotFound indicates the file to fingerprint does not exist.
	ErrNotFound = errors.New("fingerprint source not found")
	// ErrInvalidLength indicates a requested fingerprint length outside the
	// supported range.
	ErrInvalidLength = errors.New("invalid fingerprint length")
	// ErrExhausted indicates the collision-checked generator gave up. At the
	// true collision probability this points at a store problem, not bad
	// luck, so it is surfaced as a hard failure.
	ErrExhausted = errors.New("random fingerprint attempts exhausted")
)

// Content computes a truncated SHA-256 fingerprint of the file at path.
// The file is streamed in fixed-size chunks so memory use stays constant
// regardless of file size. length selects the hex-digest prefix, 1 to 64.
func Content(path string, length int) (string, error) {
	if length < 1 || length > FullContentLength {
		return "", fmt.Errorf("%w: content length %d not in [1,%d]", ErrInvalidLength, length, FullContentLength)
	}

	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	h := sha256.New()
	buf := make([]byte, hashChunkSize)
	if _, err := io.CopyBuffer(h, file, buf); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil))[:length], nil
}

// Random returns a truncated random identifier derived from a version 4
// UUID with hyphens stripped. length must be between 1 and 32.
func Random(length int) (string, error) {
	if length < 1 || length > maxRandomLength {
		return "", fmt.Errorf("%w: random length %d not in [1,%d]", ErrInvalidLength, length, maxRandomLength)
	}
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return id[:length], nil
}

// ExistsFunc reports whether a candidate fingerprint is already taken.
type ExistsFunc func(ctx context.Context, fingerprint string) (bool, error)

// UniqueRandom generates a random fingerprint that the provided exists check
// does not know yet. It retries on collision and fails hard after a bounded
// number of attempts.
func UniqueRandom(ctx context.Context, length int, exists ExistsFunc) (string, error) {
	if exists == nil {
		return Random(length)
	}
	for attempt := 0; attempt < maxUniqueTries; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		candidate, err := Random(length)
		if err != nil {
			return "", err
		}
		taken, err := exists(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("check fingerprint existence: %w", err)
		}
		if !taken {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w after %d attempts", ErrExhausted, maxUniqueTries)
}
