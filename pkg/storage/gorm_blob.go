package storage

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/jdziat/durable-training-queue/pkg/core"
)

// QueueBlob is one versioned object row.
type QueueBlob struct {
	Name      string `gorm:"primaryKey;size:512"`
	Data      []byte `gorm:"not null"`
	Version   int64  `gorm:"not null;default:0"`
	UpdatedAt time.Time
}

// TableName implements gorm's tabler.
func (QueueBlob) TableName() string {
	return "queue_blobs"
}

// GormBlobStore implements BlobStore using GORM. Conditional writes are a
// single UPDATE guarded by the expected version, so they are atomic on every
// supported database.
type GormBlobStore struct {
	db *gorm.DB
}

var _ BlobStore = (*GormBlobStore)(nil)

// NewGormBlobStore creates a new GORM-backed blob store.
func NewGormBlobStore(db *gorm.DB) *GormBlobStore {
	return &GormBlobStore{db: db}
}

// Migrate creates the necessary tables.
func (s *GormBlobStore) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(&QueueBlob{})
}

// Get implements BlobStore.
func (s *GormBlobStore) Get(ctx context.Context, key string) ([]byte, int64, error) {
	var row QueueBlob
	err := s.db.WithContext(ctx).First(&row, "name = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, 0, core.ErrObjectNotFound
	}
	if err != nil {
		return nil, 0, err
	}
	return row.Data, row.Version, nil
}

// Version implements BlobStore.
func (s *GormBlobStore) Version(ctx context.Context, key string) (int64, error) {
	var versions []int64
	err := s.db.WithContext(ctx).
		Model(&QueueBlob{}).
		Where("name = ?", key).
		Limit(1).
		Pluck("version", &versions).Error
	if err != nil {
		return 0, err
	}
	if len(versions) == 0 {
		return 0, nil
	}
	return versions[0], nil
}

// Put implements BlobStore.
func (s *GormBlobStore) Put(ctx context.Context, key string, data []byte, version int64) error {
	row := QueueBlob{Name: key, Data: data, Version: version, UpdatedAt: time.Now()}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoUpdates: clause.AssignmentColumns([]string{"data", "version", "updated_at"}),
		}).
		Create(&row).Error
}

// PutIf implements BlobStore.
func (s *GormBlobStore) PutIf(ctx context.Context, key string, data []byte, version, expected int64) error {
	now := time.Now()

	if expected == 0 {
		row := QueueBlob{Name: key, Data: data, Version: version, UpdatedAt: now}
		result := s.db.WithContext(ctx).
			Clauses(clause.OnConflict{DoNothing: true}).
			Create(&row)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return core.ErrStaleQueue
		}
		return nil
	}

	result := s.db.WithContext(ctx).
		Model(&QueueBlob{}).
		Where("name = ? AND version = ?", key, expected).
		Updates(map[string]any{
			"data":       data,
			"version":    version,
			"updated_at": now,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return core.ErrStaleQueue
	}
	return nil
}
