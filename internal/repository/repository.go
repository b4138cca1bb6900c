package repository

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"jobscout/internal/models"
)

// Repository persists the optional extraction audit trail. It is only
// wired up when a database is configured; the checkpoint file stays the
// source of truth for resumption.
type Repository struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// LogExtraction records the disposition of one processed message
func (r *Repository) LogExtraction(messageID, status string, jobsFound int, errorMsg string) error {
	entry := models.ExtractionLog{
		MessageID: messageID,
		Status:    status,
		JobsFound: jobsFound,
		ErrorMsg:  errorMsg,
		CreatedAt: time.Now(),
	}
	result := r.db.Create(&entry)
	if result.Error != nil {
		return fmt.Errorf("failed to log extraction: %w", result.Error)
	}
	return nil
}

// RecentLogs returns the most recent audit entries, newest first
func (r *Repository) RecentLogs(limit int) ([]models.ExtractionLog, error) {
	var logs []models.ExtractionLog
	result := r.db.Order("created_at DESC").Limit(limit).Find(&logs)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to get extraction logs: %w", result.Error)
	}
	return logs, nil
}
