// Package persist defines the key/value blob storage the stores save their snapshots to.
package persist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Keys of the independently persisted snapshots.
const (
	FlashcardsKey      = "passdrill-flashcards-v1"
	QuestionsKey       = "passdrill-questions-v1"
	ProgressKey        = "passdrill-progress-v1"
	NotificationsKey   = "passdrill-notifications"
	LastUpdateCheckKey = "passdrill-last-update-check"
)

// ErrUnavailable is returned by backends that cannot reach their underlying service.
var ErrUnavailable = errors.New("persist: storage unavailable")

// Storage is a key/value store of opaque blobs.
type Storage interface {
	// Get returns the blob stored under key. ok is false when the key has never been set.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte) error
}

// LoadJSON decodes the blob under key into v. It reports false, leaving v untouched, when the key is absent.
func LoadJSON(ctx context.Context, s Storage, key string, v interface{}) (bool, error) {
	data, ok, err := s.Get(ctx, key)
	if err != nil {
		return false, fmt.Errorf("failed to read %s: %w", key, err)
	}
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return true, nil
}

// SaveJSON encodes v and stores it under key.
func SaveJSON(ctx context.Context, s Storage, key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	if err := s.Set(ctx, key, data); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}
