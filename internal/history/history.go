// Package history persists analyses and their ratings for signed-in users.
package history

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"truthguard/pkg/domain"
)

// Record is one stored analysis. Raw keeps the service response as returned,
// so later schema additions are queryable without a migration.
type Record struct {
	PredictionID string  `gorm:"primaryKey;size:64"`
	UserID       string  `gorm:"index;size:64;not null"`
	Label        string  `gorm:"size:8;not null"`
	Confidence   float64 `gorm:"not null"`
	Excerpt      string  `gorm:"size:512"`
	Raw          datatypes.JSON
	Rating       *int
	CreatedAt    time.Time
}

func (Record) TableName() string { return "analysis_history" }

// Store is the postgres-backed analysis history.
type Store struct {
	db *gorm.DB
}

// Open connects to postgres and migrates the history table.
func Open(databaseURL string) (*Store, error) {
	db, err := gorm.Open(postgres.Open(databaseURL), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}
	if err := db.AutoMigrate(&Record{}); err != nil {
		return nil, fmt.Errorf("migrate history schema: %w", err)
	}
	return &Store{db: db}, nil
}

// SaveAnalysis stores one completed analysis for the given user. Replaying
// the same prediction id is a no-op.
func (s *Store) SaveAnalysis(ctx context.Context, userID, excerpt string, result domain.AnalysisResult, raw []byte) error {
	if userID == "" {
		return errors.New("history requires a user id")
	}
	rec := Record{
		PredictionID: result.PredictionID,
		UserID:       userID,
		Label:        string(result.Label),
		Confidence:   result.Confidence,
		Excerpt:      truncate(excerpt, 512),
		Raw:          datatypes.JSON(raw),
	}
	err := s.db.WithContext(ctx).Create(&rec).Error
	if err != nil && errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil
	}
	return err
}

// RecordRating attaches a rating to a stored analysis.
func (s *Store) RecordRating(ctx context.Context, predictionID string, rating int) error {
	res := s.db.WithContext(ctx).
		Model(&Record{}).
		Where("prediction_id = ?", predictionID).
		Update("rating", rating)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("no stored analysis %q", predictionID)
	}
	return nil
}

// ListByUser returns a user's analyses, newest first.
func (s *Store) ListByUser(ctx context.Context, userID string, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}
	var records []Record
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
