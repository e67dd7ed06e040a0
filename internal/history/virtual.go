package history

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/pagetrail/pagetrail/internal/domain"
	"github.com/pagetrail/pagetrail/internal/pages"
	"github.com/pagetrail/pagetrail/internal/store"
)

// Options controls a path history query
type Options struct {
	// Language restricts results to one language; nil returns all
	Language *domain.LanguageID
	// Verbose sorts the results newest-first for display
	Verbose bool
	// Virtual includes paths inferred from ancestor moves
	Virtual bool
}

// DefaultOptions enables virtual synthesis, matching what redirect
// resolution needs
func DefaultOptions() Options {
	return Options{Virtual: true}
}

// guardKey identifies an in-progress history computation. Parent and child
// histories can reference each other through overlapping ancestor chains; a
// key already in progress is never re-entered.
type guardKey struct {
	pageID int64
	name   string
}

// VirtualResolver reconstructs a page's full path history, including paths
// the page never directly recorded but effectively had because an ancestor
// moved or was renamed.
type VirtualResolver struct {
	store    store.Store
	repo     pages.Repository
	patterns *Patterns
}

// NewVirtualResolver creates a virtual history resolver
func NewVirtualResolver(s store.Store, repo pages.Repository, patterns *Patterns) *VirtualResolver {
	return &VirtualResolver{store: s, repo: repo, patterns: patterns}
}

// PathHistory returns the page's historical paths oldest-first, each path
// appearing once. With Options.Virtual, entries synthesized from ancestor
// history are included. With Options.Verbose, the result is re-sorted
// newest-first; ties on the timestamp are broken by the per-record sequence
// counter so the display order is total without touching any dates.
func (v *VirtualResolver) PathHistory(ctx context.Context, page *domain.Page, opts Options) ([]domain.HistoryRecord, error) {
	guard := make(map[guardKey]struct{})
	var sequence int

	records, err := v.history(ctx, page, opts, guard, &sequence)
	if err != nil {
		return nil, err
	}

	if opts.Verbose {
		sort.SliceStable(records, func(i, j int) bool {
			if !records[i].CreatedAt.Equal(records[j].CreatedAt) {
				return records[i].CreatedAt.After(records[j].CreatedAt)
			}
			return records[i].Sequence > records[j].Sequence
		})
	}

	return records, nil
}

// Paths is PathHistory reduced to the bare path strings
func (v *VirtualResolver) Paths(ctx context.Context, page *domain.Page, opts Options) ([]string, error) {
	records, err := v.PathHistory(ctx, page, opts)
	if err != nil {
		return nil, err
	}
	paths := make([]string, len(records))
	for i, record := range records {
		paths[i] = record.Path
	}
	return paths, nil
}

func (v *VirtualResolver) history(
	ctx context.Context,
	page *domain.Page,
	opts Options,
	guard map[guardKey]struct{},
	sequence *int,
) ([]domain.HistoryRecord, error) {
	self := guardKey{pageID: page.ID, name: page.Name(domain.DefaultLanguage)}
	if _, inProgress := guard[self]; inProgress {
		return nil, nil
	}
	guard[self] = struct{}{}
	defer delete(guard, self)

	rows, err := v.store.ListPathHistoryByPage(ctx, page.ID, opts.Language)
	if err != nil {
		return nil, fmt.Errorf("failed to list path history: %w", err)
	}

	seen := make(map[string]struct{})
	records := make([]domain.HistoryRecord, 0, len(rows))
	for _, row := range rows {
		if _, dup := seen[row.Path]; dup {
			continue
		}
		seen[row.Path] = struct{}{}
		*sequence++
		records = append(records, domain.HistoryRecord{
			Path:       row.Path,
			CreatedAt:  row.CreatedAt,
			LanguageID: row.LanguageID,
			Sequence:   *sequence,
		})
	}

	if !opts.Virtual {
		return records, nil
	}

	virtual, err := v.synthesize(ctx, page, records, opts, guard, sequence)
	if err != nil {
		return nil, err
	}
	for _, record := range virtual {
		if _, dup := seen[record.Path]; dup {
			continue
		}
		seen[record.Path] = struct{}{}
		records = append(records, record)
	}

	return records, nil
}

// candidateName is a leaf name the page carried at some point, together with
// the time the page started using it (zero when unknown). An ancestor that
// left its old path before a name came into use never carried the page under
// that name, so such combinations are stale.
type candidateName struct {
	name    string
	validAt time.Time
}

// synthesize derives the paths the page effectively had whenever an ancestor
// moved. For every ancestor that ever carried the page (the current parent
// plus any historical parent implied by a recorded path), each of the
// ancestor's own historical paths is combined with each name the page had.
func (v *VirtualResolver) synthesize(
	ctx context.Context,
	page *domain.Page,
	own []domain.HistoryRecord,
	opts Options,
	guard map[guardKey]struct{},
	sequence *int,
) ([]domain.HistoryRecord, error) {
	currentParentPath := ""
	currentParent, err := v.repo.Parent(ctx, page)
	if err != nil {
		return nil, fmt.Errorf("failed to look up parent: %w", err)
	}
	if currentParent != nil {
		currentParentPath, err = v.repo.Path(ctx, currentParent, domain.DefaultLanguage)
		if err != nil {
			return nil, fmt.Errorf("failed to compute parent path: %w", err)
		}
	}

	// Each recorded path carried its leaf name from the previous record's
	// timestamp until its own; the current name took over at the newest one.
	currentNameValidAt := time.Time{}
	for _, record := range own {
		if record.CreatedAt.After(currentNameValidAt) {
			currentNameValidAt = record.CreatedAt
		}
	}
	names := []candidateName{{name: page.Name(domain.DefaultLanguage), validAt: currentNameValidAt}}

	ancestors := make(map[int64]*domain.Page)
	if currentParent != nil {
		ancestors[currentParent.ID] = currentParent
	}

	var previousAt time.Time
	for _, record := range own {
		parentPath, leaf := domain.SplitParent(record.Path)
		names = append(names, candidateName{name: leaf, validAt: previousAt})
		previousAt = record.CreatedAt

		if parentPath == "/" || parentPath == currentParentPath {
			continue
		}
		ancestor, err := v.resolveAncestor(ctx, parentPath)
		if err != nil {
			return nil, err
		}
		if ancestor == nil || ancestor.ID == page.ID {
			continue
		}
		ancestors[ancestor.ID] = ancestor
	}

	var virtual []domain.HistoryRecord
	for _, ancestor := range ancestors {
		ancestorHistory, err := v.history(ctx, ancestor, Options{Language: opts.Language, Virtual: true}, guard, sequence)
		if err != nil {
			return nil, err
		}

		for _, ancestorRecord := range ancestorHistory {
			for _, candidate := range names {
				// Stale combination: the ancestor left that path before
				// the page ever carried this name
				if ancestorRecord.CreatedAt.Before(candidate.validAt) {
					continue
				}

				path := domain.NormalizePath(domain.JoinPath(ancestorRecord.Path, candidate.name))
				if v.patterns.MatchesTrash(path) {
					continue
				}

				*sequence++
				virtual = append(virtual, domain.HistoryRecord{
					Path:             path,
					CreatedAt:        ancestorRecord.CreatedAt,
					LanguageID:       ancestorRecord.LanguageID,
					Virtual:          true,
					SourceAncestorID: ancestor.ID,
					Sequence:         *sequence,
				})
			}
		}
	}

	return virtual, nil
}

// resolveAncestor maps a historical parent path to a page, preferring a live
// page at that path and falling back to the path's own history entry
func (v *VirtualResolver) resolveAncestor(ctx context.Context, path string) (*domain.Page, error) {
	page, err := v.repo.GetByPath(ctx, path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to look up ancestor path: %w", err)
	}
	if page != nil {
		return page, nil
	}

	entry, err := v.store.GetPathHistory(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to look up ancestor history: %w", err)
	}
	if entry == nil {
		return nil, nil
	}

	page, err = v.repo.GetByID(ctx, entry.PagesID)
	if err != nil {
		return nil, fmt.Errorf("failed to load ancestor page: %w", err)
	}
	return page, nil
}
