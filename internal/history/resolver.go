package history

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/pagetrail/pagetrail/internal/domain"
	"github.com/pagetrail/pagetrail/internal/logger"
	"github.com/pagetrail/pagetrail/internal/pages"
	"github.com/pagetrail/pagetrail/internal/store"
	"github.com/pagetrail/pagetrail/internal/store/schema"
)

// Resolver finds the live page behind a stale request path. It is called on
// the host's not-found path, so every failure degrades to a plain no-match
// and lets the 404 through.
type Resolver struct {
	store       store.Store
	repo        pages.Repository
	segments    *RootSegmentIndex
	maxSegments int
}

// NewResolver creates a path resolver. A zero maxSegments falls back to the
// default strip and recursion bound.
func NewResolver(s store.Store, repo pages.Repository, segments *RootSegmentIndex, maxSegments int) *Resolver {
	if maxSegments == 0 {
		maxSegments = domain.MaxSegments
	}
	return &Resolver{
		store:       s,
		repo:        repo,
		segments:    segments,
		maxSegments: maxSegments,
	}
}

// ResolvePath resolves a stale request path to a live page together with the
// match record of the history entry that settled it: the entry's language,
// whether the match was exact or a prefix with leftover segments, and the
// leftover suffix itself. A nil page means no match; resolution never
// returns an error.
func (r *Resolver) ResolvePath(ctx context.Context, path string) (*domain.Page, *domain.PathInfo) {
	return r.resolve(ctx, domain.NormalizePath(path), 0)
}

func (r *Resolver) resolve(ctx context.Context, path string, depth int) (*domain.Page, *domain.PathInfo) {
	if depth > r.maxSegments {
		// Designed termination for pathological move chains
		return nil, nil
	}
	if !r.segments.Contains(ctx, domain.FirstSegment(path)) {
		return nil, nil
	}

	remaining := path
	suffix := ""
	for strips := 0; strips <= r.maxSegments && remaining != "/"; strips++ {
		entry, err := r.store.GetPathHistory(ctx, remaining)
		if err != nil {
			logger.WarnCtx(ctx, "Path history lookup failed",
				zap.String("path", remaining), zap.Error(err))
			return nil, nil
		}

		if entry != nil {
			page, info := r.chase(ctx, entry, suffix, depth)
			if page != nil {
				return page, info
			}
		}

		parent, leaf := domain.SplitParent(remaining)
		suffix = "/" + leaf + suffix
		remaining = parent
	}

	return nil, nil
}

// chase turns a history hit into a live page. For a hit at a stripped
// prefix, the removed suffix is re-appended to the owning page's current
// path: either that reconstructed path is live, or it is itself stale and
// resolution recurses to follow the chain of moves. Failing both, the prefix
// page itself is the match when its template accepts trailing URL segments.
func (r *Resolver) chase(ctx context.Context, entry *schema.PathHistory, suffix string, depth int) (*domain.Page, *domain.PathInfo) {
	page, err := r.repo.GetByID(ctx, entry.PagesID)
	if err != nil {
		logger.WarnCtx(ctx, "Page lookup failed", zap.Int64("page_id", entry.PagesID), zap.Error(err))
		return nil, nil
	}
	if page == nil {
		return nil, nil
	}

	if suffix == "" {
		return page, r.matchInfo(entry, page.ID, domain.MatchExact, "")
	}

	currentPath, err := r.repo.Path(ctx, page, entry.LanguageID)
	if err != nil {
		logger.WarnCtx(ctx, "Current path lookup failed", zap.Int64("page_id", page.ID), zap.Error(err))
		return nil, nil
	}

	reconstructed := domain.NormalizePath(currentPath + suffix)
	live, err := r.repo.GetByPath(ctx, reconstructed, nil)
	if err != nil {
		logger.WarnCtx(ctx, "Live path lookup failed", zap.String("path", reconstructed), zap.Error(err))
		return nil, nil
	}
	if live != nil {
		// The whole request path was consumed through the reconstruction,
		// so this counts as an exact match of the prefix entry.
		return live, r.matchInfo(entry, live.ID, domain.MatchExact, "")
	}

	if chained, chainedInfo := r.resolve(ctx, reconstructed, depth+1); chained != nil {
		return chained, chainedInfo
	}

	if page.Template.AllowURLSegments {
		return page, r.matchInfo(entry, page.ID, domain.MatchPartial, suffix)
	}
	return nil, nil
}

func (r *Resolver) matchInfo(entry *schema.PathHistory, pageID int64, match domain.MatchKind, segments string) *domain.PathInfo {
	return &domain.PathInfo{
		PageID:     pageID,
		Path:       entry.Path,
		LanguageID: entry.LanguageID,
		Match:      match,
		Segments:   segments,
		CreatedAt:  entry.CreatedAt,
	}
}

// PathInfo looks a request path up against the stored history and reports
// how it matched. With allowSegments, trailing components are stripped one
// by one and the most specific stored prefix wins, provided the owning
// page's template accepts URL segments.
func (r *Resolver) PathInfo(ctx context.Context, path string, allowSegments bool) (*domain.PathInfo, error) {
	normalized := domain.NormalizePath(path)

	entry, err := r.store.GetPathHistory(ctx, normalized)
	if err != nil {
		return nil, fmt.Errorf("failed to look up path: %w", err)
	}
	if entry != nil {
		return r.matchInfo(entry, entry.PagesID, domain.MatchExact, ""), nil
	}
	if !allowSegments {
		return nil, nil
	}

	remaining := normalized
	suffix := ""
	for strips := 0; strips < r.maxSegments; strips++ {
		parent, leaf := domain.SplitParent(remaining)
		suffix = "/" + leaf + suffix
		remaining = parent
		if remaining == "/" {
			break
		}

		entry, err := r.store.GetPathHistory(ctx, remaining)
		if err != nil {
			return nil, fmt.Errorf("failed to look up path prefix: %w", err)
		}
		if entry == nil {
			continue
		}

		page, err := r.repo.GetByID(ctx, entry.PagesID)
		if err != nil {
			return nil, fmt.Errorf("failed to load page: %w", err)
		}
		if page == nil || !page.Template.AllowURLSegments {
			continue
		}

		return r.matchInfo(entry, entry.PagesID, domain.MatchPartial, suffix), nil
	}

	return nil, nil
}
