package storage

import (
	"context"
	"sync"

	"github.com/jdziat/durable-training-queue/pkg/core"
)

// BlobStore holds opaque objects, each tagged with an integer version.
//
// A version of 0 means the object does not exist. PutIf must fail with
// core.ErrStaleQueue when the stored version differs from expected.
type BlobStore interface {
	// Get returns the object and its version, or core.ErrObjectNotFound.
	Get(ctx context.Context, key string) (data []byte, version int64, err error)

	// Version returns the stored version without fetching the object.
	Version(ctx context.Context, key string) (int64, error)

	// Put writes the object unconditionally.
	Put(ctx context.Context, key string, data []byte, version int64) error

	// PutIf writes the object only if its stored version equals expected.
	PutIf(ctx context.Context, key string, data []byte, version, expected int64) error
}

type memoryBlob struct {
	data    []byte
	version int64
}

// MemoryBlobStore is a process-local BlobStore. It is safe for concurrent use.
type MemoryBlobStore struct {
	mu    sync.Mutex
	blobs map[string]memoryBlob
}

// NewMemoryBlobStore creates an empty in-memory store.
func NewMemoryBlobStore() *MemoryBlobStore {
	return &MemoryBlobStore{blobs: make(map[string]memoryBlob)}
}

// Get implements BlobStore.
func (s *MemoryBlobStore) Get(_ context.Context, key string) ([]byte, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.blobs[key]
	if !ok {
		return nil, 0, core.ErrObjectNotFound
	}
	out := make([]byte, len(b.data))
	copy(out, b.data)
	return out, b.version, nil
}

// Version implements BlobStore.
func (s *MemoryBlobStore) Version(_ context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.blobs[key].version, nil
}

// Put implements BlobStore.
func (s *MemoryBlobStore) Put(_ context.Context, key string, data []byte, version int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.store(key, data, version)
	return nil
}

// PutIf implements BlobStore.
func (s *MemoryBlobStore) PutIf(_ context.Context, key string, data []byte, version, expected int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.blobs[key].version != expected {
		return core.ErrStaleQueue
	}
	s.store(key, data, version)
	return nil
}

func (s *MemoryBlobStore) store(key string, data []byte, version int64) {
	cp := make([]byte, len(data))
	copy(cp, data)
	s.blobs[key] = memoryBlob{data: cp, version: version}
}
