package objectstore

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"sync"
	"time"
)

type memoryObject struct {
	meta Object
	data []byte
}

// MemoryStore keeps objects in process memory. Thread-safe.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]*memoryObject
	base    string
	bucket  string
	maxSize int64
}

func NewMemoryStore(baseURL, bucket string, maxSize int64) *MemoryStore {
	return &MemoryStore{
		objects: make(map[string]*memoryObject),
		base:    baseURL,
		bucket:  bucket,
		maxSize: maxSize,
	}
}

func (s *MemoryStore) Put(_ context.Context, key, contentType string, body io.Reader, _ int64) (*Object, error) {
	if key == "" {
		return nil, ErrEmptyKey
	}

	data, err := io.ReadAll(io.LimitReader(body, s.maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("read object body: %w", err)
	}
	if int64(len(data)) > s.maxSize {
		return nil, ErrTooLarge
	}

	sum := sha256.Sum256(data)
	meta := Object{
		Key:         key,
		ContentType: contentType,
		Size:        int64(len(data)),
		SHA256:      hex.EncodeToString(sum[:]),
		CreatedAt:   time.Now().UTC(),
	}

	s.mu.Lock()
	s.objects[key] = &memoryObject{meta: meta, data: data}
	s.mu.Unlock()

	out := meta
	return &out, nil
}

func (s *MemoryStore) Get(_ context.Context, key string) (io.ReadCloser, *Object, error) {
	s.mu.RLock()
	obj, ok := s.objects[key]
	s.mu.RUnlock()
	if !ok {
		return nil, nil, ErrNotFound
	}
	meta := obj.meta
	return io.NopCloser(bytes.NewReader(obj.data)), &meta, nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objects[key]; !ok {
		return ErrNotFound
	}
	delete(s.objects, key)
	return nil
}

func (s *MemoryStore) URL(key string) string {
	return PublicURL(s.base, s.bucket, key)
}

// Len returns the number of stored objects.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}
