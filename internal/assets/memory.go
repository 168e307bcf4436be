package assets

import (
	"context"
	"fmt"
	"io"
	"sync"
)

type memoryEntry struct {
	contentType string
	size        int64
	url         string
}

// MemoryStorage keeps asset metadata in memory. It backs local development
// when no Cloudinary account is configured, and tests.
type MemoryStorage struct {
	mu      sync.RWMutex
	files   map[string]memoryEntry
	baseURL string
}

// NewMemoryStorage creates an empty in-memory store whose URLs are rooted
// at baseURL.
func NewMemoryStorage(baseURL string) *MemoryStorage {
	return &MemoryStorage{
		files:   make(map[string]memoryEntry),
		baseURL: baseURL,
	}
}

// Upload implements Storage. The data is drained but not kept.
func (s *MemoryStorage) Upload(_ context.Context, input *UploadInput) (*UploadResult, error) {
	n, err := io.Copy(io.Discard, input.Data)
	if err != nil {
		return nil, fmt.Errorf("read upload %s: %w", input.Key, err)
	}

	url := fmt.Sprintf("%s/assets/%s", s.baseURL, input.Key)

	s.mu.Lock()
	s.files[input.Key] = memoryEntry{contentType: input.ContentType, size: n, url: url}
	s.mu.Unlock()

	return &UploadResult{Key: input.Key, URL: url}, nil
}

// Delete implements Storage.
func (s *MemoryStorage) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.files[key]; !ok {
		return fmt.Errorf("file not found: %s", key)
	}
	delete(s.files, key)
	return nil
}

// GetURL implements Storage.
func (s *MemoryStorage) GetURL(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.files[key]
	if !ok {
		return "", fmt.Errorf("file not found: %s", key)
	}
	return e.url, nil
}

// Size returns the stored size of key, or -1 if it does not exist.
func (s *MemoryStorage) Size(key string) int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if e, ok := s.files[key]; ok {
		return e.size
	}
	return -1
}
