package models

import (
	"time"
)

// JobRecord represents one extracted job posting, as written to the CSV ledger
type JobRecord struct {
	Role          string `json:"role"`
	Company       string `json:"company"`
	Salary        string `json:"salary"`
	Experience    string `json:"experience"`
	Location      string `json:"location"`
	MatchReason   string `json:"match_reason"`
	ApplyLink     string `json:"apply_link"`
	EmailDate     string `json:"email_date"`
	SourceSubject string `json:"source_subject"`
}

// EmailMessage represents one fetched mailbox message
type EmailMessage struct {
	ID      string `json:"id"`
	Subject string `json:"subject"`
	Date    string `json:"date"`
	Body    string `json:"body"`
}

// ExtractionLog represents an audit entry for one processed message.
// Written only when a database is configured; the checkpoint file remains
// the source of truth for resumption.
type ExtractionLog struct {
	ID        uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	MessageID string    `json:"message_id" gorm:"type:varchar(255);not null;index"`
	Status    string    `json:"status" gorm:"type:varchar(50);not null"` // extracted, empty, skipped, error
	JobsFound int       `json:"jobs_found"`
	ErrorMsg  string    `json:"error_msg" gorm:"type:text"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName specifies the table name for ExtractionLog
func (ExtractionLog) TableName() string {
	return "extraction_logs"
}
