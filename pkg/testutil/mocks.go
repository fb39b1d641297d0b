// Package testutil provides common testing utilities and mock implementations.
package testutil

import (
	"context"
	"sync"

	"github.com/HelixVault/agent_layer/internal/app/storage"
)

// FlakyContentStore wraps a content store and fails selected operations,
// for exercising failure paths.
type FlakyContentStore struct {
	mu        sync.Mutex
	inner     storage.ContentStore
	FetchErr  error
	UploadErr error
	fetches   int
}

// NewFlakyContentStore wraps inner.
func NewFlakyContentStore(inner storage.ContentStore) *FlakyContentStore {
	return &FlakyContentStore{inner: inner}
}

// Fetches reports how many fetches were attempted, including failed ones.
func (s *FlakyContentStore) Fetches() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetches
}

func (s *FlakyContentStore) Fetch(ctx context.Context, contentID string) ([]byte, error) {
	s.mu.Lock()
	s.fetches++
	err := s.FetchErr
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return s.inner.Fetch(ctx, contentID)
}

func (s *FlakyContentStore) Upload(ctx context.Context, data []byte, name string, metadata map[string]string) (storage.UploadResult, error) {
	s.mu.Lock()
	err := s.UploadErr
	s.mu.Unlock()
	if err != nil {
		return storage.UploadResult{}, err
	}
	return s.inner.Upload(ctx, data, name, metadata)
}

func (s *FlakyContentStore) Stat(ctx context.Context, contentID string) (storage.ObjectInfo, error) {
	return s.inner.Stat(ctx, contentID)
}

func (s *FlakyContentStore) Delete(ctx context.Context, contentID string) error {
	return s.inner.Delete(ctx, contentID)
}
