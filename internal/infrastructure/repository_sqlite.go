package infrastructure

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/groupxyz/media-relay/internal/domain"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// historyFilterColumns are the columns FindRecent accepts as filters
var historyFilterColumns = map[string]bool{
	"endpoint": true,
	"status":   true,
	"provider": true,
}

// SQLiteHistoryRepository implements HistoryRepository using SQLite
type SQLiteHistoryRepository struct {
	db *gorm.DB
}

// NewSQLiteHistoryRepository opens (and migrates) the history database at dbPath
func NewSQLiteHistoryRepository(dbPath string) (*SQLiteHistoryRepository, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.AutoMigrate(&domain.RequestRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &SQLiteHistoryRepository{db: db}, nil
}

// Create stores a finished record
func (r *SQLiteHistoryRepository) Create(record *domain.RequestRecord) error {
	return r.db.Create(record).Error
}

// FindRecent returns up to limit records, newest first. Unknown filter keys are rejected.
func (r *SQLiteHistoryRepository) FindRecent(limit int, filters map[string]interface{}) ([]*domain.RequestRecord, error) {
	query := r.db.Model(&domain.RequestRecord{})
	for key, value := range filters {
		if !historyFilterColumns[key] {
			return nil, fmt.Errorf("unsupported history filter %q", key)
		}
		query = query.Where(fmt.Sprintf("%s = ?", key), value)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	var records []*domain.RequestRecord
	err := query.Order("created_at DESC").Find(&records).Error
	return records, err
}

// GetStats returns request statistics
func (r *SQLiteHistoryRepository) GetStats() (*domain.HistoryStats, error) {
	stats := &domain.HistoryStats{}

	statusCounts := []struct {
		Status domain.RequestStatus
		Count  int64
		Bytes  int64
	}{}

	if err := r.db.Model(&domain.RequestRecord{}).
		Select("status, count(*) as count, coalesce(sum(bytes_sent), 0) as bytes").
		Group("status").
		Scan(&statusCounts).Error; err != nil {
		return nil, err
	}

	for _, sc := range statusCounts {
		stats.Total += sc.Count
		stats.BytesSent += sc.Bytes
		switch sc.Status {
		case domain.StatusSucceeded:
			stats.Succeeded = sc.Count
		case domain.StatusFailed:
			stats.Failed = sc.Count
		case domain.StatusRejected:
			stats.Rejected = sc.Count
		}
	}

	return stats, nil
}

// Close closes the database connection
func (r *SQLiteHistoryRepository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// NopHistoryRepository discards records; used when history is disabled
type NopHistoryRepository struct{}

func (NopHistoryRepository) Create(*domain.RequestRecord) error { return nil }

func (NopHistoryRepository) FindRecent(int, map[string]interface{}) ([]*domain.RequestRecord, error) {
	return []*domain.RequestRecord{}, nil
}

func (NopHistoryRepository) GetStats() (*domain.HistoryStats, error) {
	return &domain.HistoryStats{}, nil
}

func (NopHistoryRepository) Close() error { return nil }
