package domain

import (
	"time"

	"github.com/google/uuid"
)

// RequestStatus is the outcome of one API request
type RequestStatus string

const (
	StatusSucceeded RequestStatus = "succeeded"
	StatusFailed    RequestStatus = "failed"
	StatusRejected  RequestStatus = "rejected" // invalid input, nothing was spawned
)

// API endpoints recorded in history
const (
	EndpointInfo     = "info"
	EndpointDownload = "download"
)

// RequestRecord is one row of request history. Media is never stored, only the outcome.
type RequestRecord struct {
	ID           string        `json:"id" gorm:"primaryKey"`
	Endpoint     string        `json:"endpoint" gorm:"not null;index"`
	URL          string        `json:"url" gorm:"not null"`
	Provider     ProviderKind  `json:"provider,omitempty"`
	Quality      string        `json:"quality,omitempty"`
	Status       RequestStatus `json:"status" gorm:"not null;index"`
	ErrorKind    ErrorKind     `json:"error_kind,omitempty"`
	ErrorMessage string        `json:"error_message,omitempty"`
	BytesSent    int64         `json:"bytes_sent"`
	DurationMs   int64         `json:"duration_ms"`
	CreatedAt    time.Time     `json:"created_at" gorm:"autoCreateTime;index"`
}

// TableName specifies the table name for GORM
func (RequestRecord) TableName() string {
	return "request_history"
}

// NewRequestRecord starts a history record
func NewRequestRecord(endpoint, url string) *RequestRecord {
	return &RequestRecord{
		ID:        uuid.New().String(),
		Endpoint:  endpoint,
		URL:       url,
		CreatedAt: time.Now(),
	}
}

// Finish sets the outcome from err and the elapsed time since the record was created
func (r *RequestRecord) Finish(err error) {
	r.DurationMs = time.Since(r.CreatedAt).Milliseconds()
	if err == nil {
		r.Status = StatusSucceeded
		return
	}
	e := AsError(err)
	r.ErrorKind = e.Kind
	r.ErrorMessage = e.Message
	if e.Kind == KindInvalidInput {
		r.Status = StatusRejected
	} else {
		r.Status = StatusFailed
	}
}

// HistoryRepository persists request outcomes
type HistoryRepository interface {
	// Create stores a finished record
	Create(record *RequestRecord) error

	// FindRecent returns the newest records first, optionally filtered by column
	FindRecent(limit int, filters map[string]interface{}) ([]*RequestRecord, error)

	// GetStats aggregates all stored records
	GetStats() (*HistoryStats, error)

	Close() error
}

// HistoryStats represents request statistics
type HistoryStats struct {
	Total     int64 `json:"total"`
	Succeeded int64 `json:"succeeded"`
	Failed    int64 `json:"failed"`
	Rejected  int64 `json:"rejected"`
	BytesSent int64 `json:"bytes_sent"`
}
