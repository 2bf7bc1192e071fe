package storage

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/jdziat/durable-training-queue/pkg/core"
	"github.com/jdziat/durable-training-queue/pkg/security"
)

// GormHistoryStore implements core.HistoryStore using GORM.
type GormHistoryStore struct {
	db *gorm.DB
}

var _ core.HistoryStore = (*GormHistoryStore)(nil)

// NewGormHistoryStore creates a new GORM-backed history store.
func NewGormHistoryStore(db *gorm.DB) *GormHistoryStore {
	return &GormHistoryStore{db: db}
}

// DB returns the underlying database handle.
func (s *GormHistoryStore) DB() *gorm.DB {
	return s.db
}

// Migrate creates the necessary tables.
func (s *GormHistoryStore) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(&core.HistoryRecord{})
}

// Append adds one record. Records are never updated afterwards.
func (s *GormHistoryStore) Append(ctx context.Context, rec *core.HistoryRecord) error {
	if rec == nil {
		return errors.New("trainq: nil history record")
	}
	if rec.ID != 0 {
		return errors.New("trainq: history record already stored")
	}
	rec.Message = security.SanitizeErrorMessage(rec.Message)
	return s.db.WithContext(ctx).Create(rec).Error
}

// QueryRecent returns matching records, newest first.
func (s *GormHistoryStore) QueryRecent(ctx context.Context, filter core.HistoryFilter) ([]core.HistoryRecord, error) {
	q := s.db.WithContext(ctx).Model(&core.HistoryRecord{})

	if len(filter.Countries) > 0 {
		q = q.Where("param_country IN ?", filter.Countries)
	}
	if len(filter.States) > 0 {
		q = q.Where("state IN ?", filter.States)
	}
	if len(filter.Signatures) > 0 {
		q = q.Where("signature IN ?", filter.Signatures)
	}
	if filter.Since != nil {
		q = q.Where("recorded_at >= ?", *filter.Since)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}

	var records []core.HistoryRecord
	err := q.Order("recorded_at DESC, id DESC").Find(&records).Error
	return records, err
}
