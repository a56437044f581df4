package repository

import (
	"context"
	"errors"
	"strings"
)

// ErrEmptyKey is returned when a store is asked for an empty key.
var ErrEmptyKey = errors.New("repository: empty key")

// Store persists opaque analysis artifacts keyed by map identity.
type Store interface {
	// Save stores data under key, replacing any previous value.
	Save(ctx context.Context, key string, data []byte) error
	// Load returns the data stored under key, or nil, nil when absent.
	Load(ctx context.Context, key string) ([]byte, error)
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// Keys lists the stored keys of one artifact kind.
	Keys(ctx context.Context, kind string) ([]string, error)
}

// Key kinds for the artifacts of one map.
const (
	KindLines    = "lines"
	KindAnalysis = "analysis"
)

// Key builds the storage key of an artifact kind for a map identity.
func Key(kind, mapID string) string {
	return kind + ":" + mapID
}

// MapID returns the map identity of a key built by Key.
func MapID(key string) string {
	_, id, _ := strings.Cut(key, ":")
	return id
}
