package search

import (
	"errors"
	"fmt"

	"github.com/runnerr0/wereyouhere/internal/storage"
)

var (
	// ErrBadInput marks a malformed query argument.
	ErrBadInput = errors.New("bad input")
	// ErrStorage marks a failed read of the visit store.
	ErrStorage = errors.New("storage error")
	// ErrStoreNotFound is storage.ErrStoreNotFound, re-exported for callers
	// that only import search.
	ErrStoreNotFound = storage.ErrStoreNotFound
)

// classify wraps a storage-layer error so that callers can tell a missing
// store from a failed read without inspecting driver errors.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, storage.ErrStoreNotFound) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrStorage, err)
}
