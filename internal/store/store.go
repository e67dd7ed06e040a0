package store

import (
	"context"

	"github.com/pagetrail/pagetrail/internal/domain"
	"github.com/pagetrail/pagetrail/internal/store/schema"
)

// Store defines the interface for path-history persistence
//
//go:generate mockgen -source=store.go -destination=../mocks/store.go -package=mocks -mock_names=Store=MockStore
type Store interface {
	// InsertPathHistory records a historical path. It reports false when the
	// path is already present (duplicate inserts are not an error).
	InsertPathHistory(ctx context.Context, entry schema.PathHistory) (bool, error)
	// GetPathHistory retrieves the entry for an exact path, any language
	GetPathHistory(ctx context.Context, path string) (*schema.PathHistory, error)
	// GetPathHistoryForLanguage retrieves the entry for an exact path in one language
	GetPathHistoryForLanguage(ctx context.Context, path string, language domain.LanguageID) (*schema.PathHistory, error)
	// ListPathHistoryByPage retrieves all entries for a page ordered by
	// creation time ascending, optionally restricted to one language
	ListPathHistoryByPage(ctx context.Context, pageID int64, language *domain.LanguageID) ([]schema.PathHistory, error)
	// DeletePathHistory removes the entry matching the page and exact path,
	// returning the number of rows removed
	DeletePathHistory(ctx context.Context, pageID int64, path string) (int64, error)
	// DeletePathHistoryByPage removes all entries for a page
	DeletePathHistoryByPage(ctx context.Context, pageID int64) (int64, error)
	// DeleteByPath removes the entry for an exact path regardless of owner
	DeleteByPath(ctx context.Context, path string) (int64, error)
	// DeleteAllPathHistory truncates the entire store
	DeleteAllPathHistory(ctx context.Context) error
	// DistinctRootSegments full-scans the store for the distinct set of
	// first path segments (used to rebuild the root-segment cache)
	DistinctRootSegments(ctx context.Context) ([]string, error)
	// GetRootSegments loads the persisted root-segment cache
	GetRootSegments(ctx context.Context) ([]string, error)
	// SetRootSegments persists the root-segment cache
	SetRootSegments(ctx context.Context, segments []string) error
}
