package core

import "time"

// HistoryRecord is an immutable row written once per terminated job.
type HistoryRecord struct {
	ID              uint        `gorm:"primaryKey"`
	Params          JobParams   `gorm:"embedded;embeddedPrefix:param_"`
	Signature       string      `gorm:"index;size:64;not null"`
	QueueName       string      `gorm:"index;size:255"`
	EntryID         int64       `gorm:"not null"`
	State           EntryStatus `gorm:"index;size:20;not null"`
	StartTime       *time.Time
	EndTime         *time.Time
	Duration        float64 // seconds
	OutputLocation  string    `gorm:"size:1024"`
	ExecutionHandle string    `gorm:"size:512"`
	Message         string    `gorm:"type:text"`
	RecordedAt      time.Time `gorm:"index;autoCreateTime"`
}

// TableName pins the table name so the history log is shared across
// deployments regardless of struct naming.
func (HistoryRecord) TableName() string {
	return "job_history"
}

// HistoryFilter narrows a history query. Zero-valued fields do not filter.
type HistoryFilter struct {
	Countries  []string
	States     []EntryStatus
	Signatures []string
	Since      *time.Time
	Limit      int
}
