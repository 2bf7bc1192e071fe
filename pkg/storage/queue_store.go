package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jdziat/durable-training-queue/pkg/core"
	"github.com/jdziat/durable-training-queue/pkg/security"
)

// StoreOption configures a BlobQueueStore.
type StoreOption interface {
	applyStore(*BlobQueueStore)
}

type storeOptionFunc func(*BlobQueueStore)

func (f storeOptionFunc) applyStore(s *BlobQueueStore) { f(s) }

// WithPrefix sets the key prefix under which queue objects are stored.
// A queue named "main" with prefix "queues/" lives at "queues/main.json".
func WithPrefix(prefix string) StoreOption {
	return storeOptionFunc(func(s *BlobQueueStore) {
		s.prefix = prefix
	})
}

// WithSessionID sets the writer identity recorded in saved_by.
func WithSessionID(id string) StoreOption {
	return storeOptionFunc(func(s *BlobQueueStore) {
		if id != "" {
			s.sessionID = id
		}
	})
}

// WithStoreClock overrides the clock used to derive saved_at markers.
func WithStoreClock(now func() time.Time) StoreOption {
	return storeOptionFunc(func(s *BlobQueueStore) {
		if now != nil {
			s.now = now
		}
	})
}

// BlobQueueStore implements core.QueueStore on top of a BlobStore.
//
// Each queue is one JSON object. The blob version always equals the payload's
// saved_at marker, so marker reads never fetch the payload itself.
type BlobQueueStore struct {
	blobs     BlobStore
	prefix    string
	sessionID string
	now       func() time.Time
}

var _ core.QueueStore = (*BlobQueueStore)(nil)

// NewBlobQueueStore creates a queue store over blobs.
func NewBlobQueueStore(blobs BlobStore, opts ...StoreOption) *BlobQueueStore {
	s := &BlobQueueStore{
		blobs:     blobs,
		sessionID: uuid.New().String(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt.applyStore(s)
	}
	return s
}

// SessionID returns the identity this store writes into saved_by.
func (s *BlobQueueStore) SessionID() string {
	return s.sessionID
}

// Key returns the object key for a queue.
func (s *BlobQueueStore) Key(name string) string {
	return s.prefix + name + ".json"
}

// Load implements core.QueueStore.
func (s *BlobQueueStore) Load(ctx context.Context, name string) (*core.QueuePayload, error) {
	if err := security.ValidateQueueName(name); err != nil {
		return nil, err
	}

	data, version, err := s.blobs.Get(ctx, s.Key(name))
	if errors.Is(err, core.ErrObjectNotFound) {
		return core.NewQueuePayload(name), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load queue %s: %w", name, err)
	}

	var payload core.QueuePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("decode queue %s: %w", name, err)
	}
	payload.Name = name
	payload.SavedAt = version
	if payload.Entries == nil {
		payload.Entries = []core.JobEntry{}
	}
	fixNextID(&payload)
	return &payload, nil
}

// Save implements core.QueueStore. The write is unconditional.
func (s *BlobQueueStore) Save(ctx context.Context, name string, entries []core.JobEntry, running bool) (int64, error) {
	prev, err := s.Load(ctx, name)
	if err != nil {
		return 0, err
	}

	payload := &core.QueuePayload{
		Name:    name,
		Entries: entries,
		Running: running,
		NextID:  prev.NextID,
	}
	data, marker, err := s.encode(payload, prev.SavedAt)
	if err != nil {
		return 0, err
	}
	if err := s.blobs.Put(ctx, s.Key(name), data, marker); err != nil {
		return 0, fmt.Errorf("save queue %s: %w", name, err)
	}
	return marker, nil
}

// SaveIf implements core.QueueStore. On success payload.SavedAt and
// payload.SavedBy are updated in place.
func (s *BlobQueueStore) SaveIf(ctx context.Context, payload *core.QueuePayload, expectedSavedAt int64) (int64, error) {
	if err := security.ValidateQueueName(payload.Name); err != nil {
		return 0, err
	}

	data, marker, err := s.encode(payload, expectedSavedAt)
	if err != nil {
		return 0, err
	}
	err = s.blobs.PutIf(ctx, s.Key(payload.Name), data, marker, expectedSavedAt)
	if errors.Is(err, core.ErrStaleQueue) {
		return 0, err
	}
	if err != nil {
		return 0, fmt.Errorf("save queue %s: %w", payload.Name, err)
	}

	payload.SavedAt = marker
	payload.SavedBy = s.sessionID
	return marker, nil
}

// Marker implements core.QueueStore.
func (s *BlobQueueStore) Marker(ctx context.Context, name string) (int64, error) {
	if err := security.ValidateQueueName(name); err != nil {
		return 0, err
	}
	v, err := s.blobs.Version(ctx, s.Key(name))
	if err != nil {
		return 0, fmt.Errorf("read marker %s: %w", name, err)
	}
	return v, nil
}

// RefreshIfStale implements core.QueueStore.
func (s *BlobQueueStore) RefreshIfStale(ctx context.Context, name string, localSavedAt int64) (*core.QueuePayload, bool, error) {
	marker, err := s.Marker(ctx, name)
	if err != nil {
		return nil, false, err
	}
	if marker == localSavedAt {
		return nil, false, nil
	}
	payload, err := s.Load(ctx, name)
	if err != nil {
		return nil, false, err
	}
	return payload, true, nil
}

// encode serializes payload under a marker strictly greater than prev.
func (s *BlobQueueStore) encode(payload *core.QueuePayload, prev int64) ([]byte, int64, error) {
	marker := s.now().UnixNano()
	if marker <= prev {
		marker = prev + 1
	}

	out := *payload
	out.SavedAt = marker
	out.SavedBy = s.sessionID
	if out.Entries == nil {
		out.Entries = []core.JobEntry{}
	}
	fixNextID(&out)

	data, err := json.Marshal(&out)
	if err != nil {
		return nil, 0, fmt.Errorf("encode queue %s: %w", payload.Name, err)
	}
	if err := security.ValidatePayloadSize(len(data)); err != nil {
		return nil, 0, err
	}
	payload.NextID = out.NextID
	return data, marker, nil
}

// fixNextID keeps next_id above every stored id, including payloads written
// before next_id existed.
func fixNextID(p *core.QueuePayload) {
	if p.NextID < 1 {
		p.NextID = 1
	}
	for _, e := range p.Entries {
		if e.ID >= p.NextID {
			p.NextID = e.ID + 1
		}
	}
}
