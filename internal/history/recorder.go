package history

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/pagetrail/pagetrail/internal/adapter"
	"github.com/pagetrail/pagetrail/internal/domain"
	"github.com/pagetrail/pagetrail/internal/logger"
	"github.com/pagetrail/pagetrail/internal/pages"
	"github.com/pagetrail/pagetrail/internal/store"
	"github.com/pagetrail/pagetrail/internal/store/schema"
)

// Recorder reacts to page move, rename and delete events and maintains the
// path history store. It is the only writer of history entries.
type Recorder struct {
	store      store.Store
	repo       pages.Repository
	segments   *RootSegmentIndex
	patterns   *Patterns
	clock      adapter.Clock
	minimumAge time.Duration
}

// NewRecorder creates a recorder. A zero minimumAge falls back to the
// default of two minutes.
func NewRecorder(
	s store.Store,
	repo pages.Repository,
	segments *RootSegmentIndex,
	patterns *Patterns,
	clock adapter.Clock,
	minimumAge time.Duration,
) *Recorder {
	if minimumAge == 0 {
		minimumAge = domain.DefaultMinimumAge
	}
	return &Recorder{
		store:      s,
		repo:       repo,
		segments:   segments,
		patterns:   patterns,
		clock:      clock,
		minimumAge: minimumAge,
	}
}

// AttachHooks subscribes the recorder to page lifecycle events. Hook errors
// are logged, never propagated: a failed history write must not break the
// host's page mutation.
func (r *Recorder) AttachHooks(hooks *pages.Hooks) {
	hooks.OnMoved(func(ctx context.Context, event pages.Moved) {
		err := r.RecordMove(ctx, event.Page, event.PreviousParentPath, event.PreviousName, event.PreviousNames)
		if err != nil {
			logger.ErrorCtx(ctx, err,
				zap.String("message", "Failed to record page move"),
				zap.Int64("page_id", event.Page.ID))
		}
	})
	hooks.OnRenamed(func(ctx context.Context, event pages.Renamed) {
		err := r.RecordRename(ctx, event.Page, event.PreviousName, event.PreviousNames)
		if err != nil {
			logger.ErrorCtx(ctx, err,
				zap.String("message", "Failed to record page rename"),
				zap.Int64("page_id", event.Page.ID))
		}
	})
	hooks.OnDeleted(func(ctx context.Context, event pages.Deleted) {
		if err := r.OnPageDeleted(ctx, event.Page); err != nil {
			logger.ErrorCtx(ctx, err,
				zap.String("message", "Failed to clear history of deleted page"),
				zap.Int64("page_id", event.Page.ID))
		}
	})
}

// RecordMove records the path a page occupied before a move or rename.
// Nothing is recorded for system-template pages, pages being cloned, pages
// younger than the minimum age, or paths matching the trash or untitled
// naming patterns.
func (r *Recorder) RecordMove(
	ctx context.Context,
	page *domain.Page,
	previousParentPath string,
	previousName string,
	previousNames map[domain.LanguageID]string,
) error {
	if page.Template.System || page.Cloning {
		return nil
	}
	if r.clock.Since(page.CreatedAt) < r.minimumAge {
		return nil
	}

	if previousName == "" {
		previousName = page.Name(domain.DefaultLanguage)
	}
	defaultPath := domain.NormalizePath(domain.JoinPath(previousParentPath, previousName))

	if err := r.recordOne(ctx, page, defaultPath, previousName, domain.DefaultLanguage); err != nil {
		return err
	}

	for lang := range previousNames {
		if lang == domain.DefaultLanguage {
			continue
		}
		name := previousNames[lang]
		if name == "" {
			name = page.Name(lang)
		}
		parentPath := r.localizedParentPath(ctx, previousParentPath, lang)
		localized := domain.NormalizePath(domain.JoinPath(parentPath, name))
		if localized == defaultPath {
			continue
		}
		if err := r.recordOne(ctx, page, localized, name, lang); err != nil {
			return err
		}
	}

	return nil
}

// RecordRename handles in-place renames: the parent is unchanged, so the
// previous parent path is the page's current one.
func (r *Recorder) RecordRename(
	ctx context.Context,
	page *domain.Page,
	previousName string,
	previousNames map[domain.LanguageID]string,
) error {
	parent, err := r.repo.Parent(ctx, page)
	if err != nil {
		return fmt.Errorf("failed to look up parent: %w", err)
	}

	parentPath := "/"
	if parent != nil {
		parentPath, err = r.repo.Path(ctx, parent, domain.DefaultLanguage)
		if err != nil {
			return fmt.Errorf("failed to compute parent path: %w", err)
		}
	}

	return r.RecordMove(ctx, page, parentPath, previousName, previousNames)
}

func (r *Recorder) recordOne(ctx context.Context, page *domain.Page, path, name string, language domain.LanguageID) error {
	if r.patterns.MatchesTrash(path) || r.patterns.IsUntitled(name) {
		return nil
	}

	current, err := r.repo.Path(ctx, page, language)
	if err == nil && current == path {
		// Only the other language changed; this one is still live
		return nil
	}

	_, err = r.AddPathHistory(ctx, page, path, language)
	return err
}

// localizedParentPath resolves the previous parent's path in another
// language. The previous parent itself did not move, so its live path is
// still authoritative.
func (r *Recorder) localizedParentPath(ctx context.Context, previousParentPath string, language domain.LanguageID) string {
	normalized := domain.NormalizePath(previousParentPath)
	if normalized == "/" {
		return "/"
	}

	parent, err := r.repo.GetByPath(ctx, normalized, nil)
	if err != nil || parent == nil {
		return normalized
	}
	localized, err := r.repo.Path(ctx, parent, language)
	if err != nil {
		return normalized
	}
	return localized
}

// AddPathHistory records one historical path for a page. It reports false
// without error when the path is already recorded or currently resolves to
// a live page other than the page itself. The root segment index is updated
// even for duplicates, keeping it sound after partial failures.
func (r *Recorder) AddPathHistory(ctx context.Context, page *domain.Page, path string, language domain.LanguageID) (bool, error) {
	normalized := domain.NormalizePath(path)
	if normalized == "/" {
		return false, nil
	}

	live, err := r.repo.GetByPath(ctx, normalized, nil)
	if err != nil {
		return false, fmt.Errorf("failed to check live path: %w", err)
	}
	if live != nil && live.ID != page.ID {
		return false, nil
	}

	inserted, err := r.store.InsertPathHistory(ctx, schema.PathHistory{
		Path:       normalized,
		PagesID:    page.ID,
		LanguageID: language,
		CreatedAt:  r.clock.Now(),
	})
	if err != nil {
		return false, fmt.Errorf("failed to add path history: %w", err)
	}

	if err := r.segments.Add(ctx, normalized); err != nil {
		logger.WarnCtx(ctx, "Failed to update root segment index",
			zap.String("path", normalized), zap.Error(err))
	}

	return inserted, nil
}

// SetPathHistory records a historical path and removes any entry equal to
// the page's current live path. A path that is live again must not also
// appear as historical.
func (r *Recorder) SetPathHistory(ctx context.Context, page *domain.Page, path string, language domain.LanguageID) (bool, error) {
	added, err := r.AddPathHistory(ctx, page, path, language)
	if err != nil || !added {
		return added, err
	}

	current, err := r.repo.Path(ctx, page, language)
	if err != nil {
		return added, fmt.Errorf("failed to compute current path: %w", err)
	}
	if _, err := r.store.DeleteByPath(ctx, current); err != nil {
		return added, fmt.Errorf("failed to clean up live path: %w", err)
	}

	return added, nil
}

// DeletePathHistory removes the entry matching the page and exact path
func (r *Recorder) DeletePathHistory(ctx context.Context, page *domain.Page, path string) (int64, error) {
	return r.store.DeletePathHistory(ctx, page.ID, domain.NormalizePath(path))
}

// DeleteAllPathHistory removes all entries for one page, or for every page
// when all is set, and rebuilds the root segment index afterwards. Exactly
// one of page and all must be given.
func (r *Recorder) DeleteAllPathHistory(ctx context.Context, page *domain.Page, all bool) error {
	switch {
	case all:
		if err := r.store.DeleteAllPathHistory(ctx); err != nil {
			return err
		}
	case page != nil:
		if _, err := r.store.DeletePathHistoryByPage(ctx, page.ID); err != nil {
			return err
		}
	default:
		return fmt.Errorf("%w: need a page or the all flag", domain.ErrInvalidArgument)
	}

	if _, err := r.segments.Rebuild(ctx); err != nil {
		return err
	}
	return nil
}

// OnPageDeleted removes all history of a deleted page
func (r *Recorder) OnPageDeleted(ctx context.Context, page *domain.Page) error {
	_, err := r.store.DeletePathHistoryByPage(ctx, page.ID)
	return err
}
