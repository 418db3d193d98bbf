// Package blob is the object store storyengine writes media and rendered
// stories to. Objects are addressed by bucket and key and later served from
// a CDN as {cdnBase}{key}.
package blob

import (
	"context"
	"errors"
	"sync"
)

// ErrNotConfigured is returned by stores that were built without a backend.
var ErrNotConfigured = errors.New("blob: store not configured")

// Store writes objects.
type Store interface {
	Put(ctx context.Context, bucket, key string, body []byte, contentType string) error
}

// Stater is implemented by stores that can report whether a key exists.
type Stater interface {
	Exists(ctx context.Context, bucket, key string) (bool, error)
}

// Object is a stored blob as kept by MemoryStore.
type Object struct {
	Body        []byte
	ContentType string
}

// MemoryStore keeps objects in process memory. Used by tests and dry runs.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]Object
	puts    int
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string]Object)}
}

func memKey(bucket, key string) string { return bucket + "/" + key }

func (m *MemoryStore) Put(_ context.Context, bucket, key string, body []byte, contentType string) error {
	cp := make([]byte, len(body))
	copy(cp, body)
	m.mu.Lock()
	m.objects[memKey(bucket, key)] = Object{Body: cp, ContentType: contentType}
	m.puts++
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Exists(_ context.Context, bucket, key string) (bool, error) {
	m.mu.RLock()
	_, ok := m.objects[memKey(bucket, key)]
	m.mu.RUnlock()
	return ok, nil
}

// Get returns a stored object.
func (m *MemoryStore) Get(bucket, key string) (Object, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[memKey(bucket, key)]
	return obj, ok
}

// Puts reports how many Put calls succeeded.
func (m *MemoryStore) Puts() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.puts
}

// Nop accepts nothing; every Put fails with ErrNotConfigured.
type Nop struct{}

func (Nop) Put(context.Context, string, string, []byte, string) error { return ErrNotConfigured }
