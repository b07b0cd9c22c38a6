// Package blobstore stores generated documents by key. The memory driver
// serves development and tests; the s3 driver serves deployments.
package blobstore

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"
)

var (
	ErrNotFound    = errors.New("blob not found")
	ErrTooLarge    = errors.New("blob exceeds maximum allowed size")
	ErrInvalidKey  = errors.New("blob key is invalid")
	ErrUnsupported = errors.New("operation not supported by driver")
)

// MaxSize bounds a single stored document (25 MB).
const MaxSize = 25 * 1024 * 1024

// Info describes a stored object.
type Info struct {
	Key          string    `json:"key"`
	ContentType  string    `json:"content_type"`
	Size         int64     `json:"size"`
	Hash         string    `json:"hash,omitempty"`
	LastModified time.Time `json:"last_modified"`
}

// Store is the contract every driver satisfies. Put overwrites existing keys.
type Store interface {
	Put(ctx context.Context, key string, content io.Reader, contentType string) (Info, error)
	Get(ctx context.Context, key string) (Info, io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	// URL returns a time-limited download link, or ErrUnsupported when the
	// driver cannot hand out direct links.
	URL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

func validKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "..") {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}

type storedBlob struct {
	info    Info
	content []byte
}

// MemoryStore is a thread-safe in-process Store.
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[string]*storedBlob
	now   func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[string]*storedBlob), now: time.Now}
}

func (s *MemoryStore) Put(_ context.Context, key string, content io.Reader, contentType string) (Info, error) {
	if err := validKey(key); err != nil {
		return Info{}, err
	}
	data, err := io.ReadAll(io.LimitReader(content, MaxSize+1))
	if err != nil {
		return Info{}, fmt.Errorf("read content: %w", err)
	}
	if int64(len(data)) > MaxSize {
		return Info{}, ErrTooLarge
	}

	sum := sha256.Sum256(data)
	info := Info{
		Key:          key,
		ContentType:  contentType,
		Size:         int64(len(data)),
		Hash:         hex.EncodeToString(sum[:]),
		LastModified: s.now().UTC(),
	}

	s.mu.Lock()
	s.blobs[key] = &storedBlob{info: info, content: data}
	s.mu.Unlock()
	return info, nil
}

func (s *MemoryStore) Get(_ context.Context, key string) (Info, io.ReadCloser, error) {
	s.mu.RLock()
	b, ok := s.blobs[key]
	s.mu.RUnlock()
	if !ok {
		return Info{}, nil, ErrNotFound
	}
	return b.info, io.NopCloser(bytes.NewReader(b.content)), nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.blobs[key]; !ok {
		return ErrNotFound
	}
	delete(s.blobs, key)
	return nil
}

func (s *MemoryStore) URL(context.Context, string, time.Duration) (string, error) {
	return "", ErrUnsupported
}

// Keys lists stored keys with the given prefix, sorted.
func (s *MemoryStore) Keys(prefix string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var keys []string
	for k := range s.blobs {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}
