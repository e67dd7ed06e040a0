package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pagetrail/pagetrail/internal/domain"
	"github.com/pagetrail/pagetrail/internal/logger"
	"github.com/pagetrail/pagetrail/internal/store/schema"
)

// rootSegmentsKey is the key_value_store key holding the root-segment cache
const rootSegmentsKey = "path_history:root_segments"

type pgStore struct {
	db *gorm.DB
}

// NewPGStore creates a new PostgreSQL store instance
func NewPGStore(db *gorm.DB) Store {
	return &pgStore{db: db}
}

// ConfigureConnectionPool configures the connection pool settings for a GORM
// database connection. Zero values fall back to reasonable defaults:
//   - MaxOpenConns: 20
//   - MaxIdleConns: 5
//   - ConnMaxLifetime: 5 minutes
//   - ConnMaxIdleTime: 10 minutes
func ConfigureConnectionPool(db *gorm.DB, maxOpenConns, maxIdleConns int, connMaxLifetime, connMaxIdleTime time.Duration) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	if maxOpenConns == 0 {
		maxOpenConns = 20
	}
	if maxIdleConns == 0 {
		maxIdleConns = 5
	}
	if maxIdleConns > maxOpenConns {
		maxIdleConns = maxOpenConns
	}
	if connMaxLifetime == 0 {
		connMaxLifetime = 5 * time.Minute
	}
	if connMaxIdleTime == 0 {
		connMaxIdleTime = 10 * time.Minute
	}

	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetMaxIdleConns(maxIdleConns)
	sqlDB.SetConnMaxLifetime(connMaxLifetime)
	sqlDB.SetConnMaxIdleTime(connMaxIdleTime)

	return nil
}

// InsertPathHistory records a historical path. A duplicate path is not an
// error: concurrent writers racing on the same path both succeed, with the
// loser reporting inserted=false.
func (s *pgStore) InsertPathHistory(ctx context.Context, entry schema.PathHistory) (bool, error) {
	result := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "path"}},
		DoNothing: true,
	}).Create(&entry)
	if result.Error != nil {
		if s.recoverLanguageColumn(ctx, result.Error) {
			return s.InsertPathHistory(ctx, entry)
		}
		return false, fmt.Errorf("failed to insert path history: %w", result.Error)
	}

	return result.RowsAffected > 0, nil
}

// GetPathHistory retrieves the entry for an exact path, any language
func (s *pgStore) GetPathHistory(ctx context.Context, path string) (*schema.PathHistory, error) {
	var entry schema.PathHistory
	err := s.db.WithContext(ctx).Where("path = ?", path).First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get path history: %w", err)
	}
	return &entry, nil
}

// GetPathHistoryForLanguage retrieves the entry for an exact path in one language
func (s *pgStore) GetPathHistoryForLanguage(ctx context.Context, path string, language domain.LanguageID) (*schema.PathHistory, error) {
	var entry schema.PathHistory
	err := s.db.WithContext(ctx).Where("path = ? AND language_id = ?", path, language).First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		if s.recoverLanguageColumn(ctx, err) {
			return s.GetPathHistoryForLanguage(ctx, path, language)
		}
		return nil, fmt.Errorf("failed to get path history for language: %w", err)
	}
	return &entry, nil
}

// ListPathHistoryByPage retrieves all entries for a page ordered by creation
// time ascending, optionally restricted to one language
func (s *pgStore) ListPathHistoryByPage(ctx context.Context, pageID int64, language *domain.LanguageID) ([]schema.PathHistory, error) {
	query := s.db.WithContext(ctx).Where("pages_id = ?", pageID)
	if language != nil {
		query = query.Where("language_id = ?", *language)
	}

	var entries []schema.PathHistory
	err := query.Order("created_at ASC, path ASC").Find(&entries).Error
	if err != nil {
		if s.recoverLanguageColumn(ctx, err) {
			return s.ListPathHistoryByPage(ctx, pageID, language)
		}
		return nil, fmt.Errorf("failed to list path history: %w", err)
	}

	return entries, nil
}

// DeletePathHistory removes the entry matching the page and exact path
func (s *pgStore) DeletePathHistory(ctx context.Context, pageID int64, path string) (int64, error) {
	result := s.db.WithContext(ctx).
		Where("pages_id = ? AND path = ?", pageID, path).
		Delete(&schema.PathHistory{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete path history: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// DeletePathHistoryByPage removes all entries for a page
func (s *pgStore) DeletePathHistoryByPage(ctx context.Context, pageID int64) (int64, error) {
	result := s.db.WithContext(ctx).
		Where("pages_id = ?", pageID).
		Delete(&schema.PathHistory{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete path history by page: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// DeleteByPath removes the entry for an exact path regardless of owner
func (s *pgStore) DeleteByPath(ctx context.Context, path string) (int64, error) {
	result := s.db.WithContext(ctx).
		Where("path = ?", path).
		Delete(&schema.PathHistory{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete path: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// DeleteAllPathHistory truncates the entire store
func (s *pgStore) DeleteAllPathHistory(ctx context.Context) error {
	err := s.db.WithContext(ctx).
		Where("1 = 1").
		Delete(&schema.PathHistory{}).Error
	if err != nil {
		return fmt.Errorf("failed to delete all path history: %w", err)
	}
	return nil
}

// DistinctRootSegments full-scans the store for the distinct set of first
// path segments
func (s *pgStore) DistinctRootSegments(ctx context.Context) ([]string, error) {
	var segments []string
	err := s.db.WithContext(ctx).
		Raw(`SELECT DISTINCT split_part(ltrim(path, '/'), '/', 1) FROM path_history`).
		Scan(&segments).Error
	if err != nil {
		return nil, fmt.Errorf("failed to scan root segments: %w", err)
	}
	return segments, nil
}

// GetRootSegments loads the persisted root-segment cache
func (s *pgStore) GetRootSegments(ctx context.Context) ([]string, error) {
	var kv schema.KeyValueStore
	err := s.db.WithContext(ctx).Where("key = ?", rootSegmentsKey).First(&kv).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get root segments: %w", err)
	}

	var segments []string
	if err := json.Unmarshal([]byte(kv.Value), &segments); err != nil {
		return nil, fmt.Errorf("failed to parse root segments: %w", err)
	}
	return segments, nil
}

// SetRootSegments persists the root-segment cache
func (s *pgStore) SetRootSegments(ctx context.Context, segments []string) error {
	value, err := json.Marshal(segments)
	if err != nil {
		return fmt.Errorf("failed to marshal root segments: %w", err)
	}

	kv := schema.KeyValueStore{
		Key:   rootSegmentsKey,
		Value: string(value),
	}
	if err := s.db.WithContext(ctx).Save(&kv).Error; err != nil {
		return fmt.Errorf("failed to set root segments: %w", err)
	}
	return nil
}

// recoverLanguageColumn detects queries failing against an installation whose
// path_history table predates the language column, attempts an in-place
// schema upgrade, and reports whether the caller should retry. Upgrade
// failures are logged and swallowed so a missing historical feature never
// blocks normal page resolution.
func (s *pgStore) recoverLanguageColumn(ctx context.Context, err error) bool {
	if err == nil || !strings.Contains(err.Error(), "language_id") {
		return false
	}
	if s.db.Migrator().HasColumn(&schema.PathHistory{}, "language_id") {
		return false
	}

	if migErr := s.db.WithContext(ctx).AutoMigrate(&schema.PathHistory{}); migErr != nil {
		logger.WarnCtx(ctx, "Failed to upgrade path_history schema", zap.Error(migErr))
		return false
	}

	logger.InfoCtx(ctx, "Upgraded path_history schema with language column")
	return true
}
