package object

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"
)

// ErrInvalidKey is returned for keys that escape the store root.
var ErrInvalidKey = errors.New("invalid storage key")

// ObjectStore defines the contract for saving and retrieving binary objects.
type ObjectStore interface {
	SaveWithKey(ctx context.Context, storageKey string, contentType string, r io.Reader) (int64, error)
	Open(ctx context.Context, storageKey string) (io.ReadCloser, error)
}

// CleanKey normalizes a slash separated key and rejects traversal.
func CleanKey(storageKey string) (string, error) {
	if strings.Contains(storageKey, "\\") {
		return "", ErrInvalidKey
	}
	clean := path.Clean("/" + strings.TrimSpace(storageKey))
	clean = strings.TrimPrefix(clean, "/")
	if clean == "" || clean == "." || strings.Contains(storageKey, "..") {
		return "", ErrInvalidKey
	}
	return clean, nil
}
