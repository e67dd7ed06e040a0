package pages

import (
	"context"
	"fmt"
	"sync"

	"github.com/pagetrail/pagetrail/internal/adapter"
	"github.com/pagetrail/pagetrail/internal/domain"
)

// maxTreeDepth bounds parent-chain walks against corrupted trees
const maxTreeDepth = 64

// MemoryRepository is an in-process page tree. It is the reference host
// adapter used in tests and single-binary deployments; real hosts implement
// Repository against their own content store.
type MemoryRepository struct {
	mu     sync.RWMutex
	pages  map[int64]*domain.Page
	hooks  *Hooks
	clock  adapter.Clock
	nextID int64
}

// NewMemoryRepository creates an empty in-memory page tree
func NewMemoryRepository(clock adapter.Clock) *MemoryRepository {
	return &MemoryRepository{
		pages: make(map[int64]*domain.Page),
		hooks: NewHooks(),
		clock: clock,
	}
}

// Hooks returns the repository's lifecycle hook registry
func (r *MemoryRepository) Hooks() *Hooks {
	return r.hooks
}

// Add inserts a page into the tree. A zero ID is assigned; a zero CreatedAt
// is stamped with the current time.
func (r *MemoryRepository) Add(page domain.Page) *domain.Page {
	r.mu.Lock()
	defer r.mu.Unlock()

	if page.ID == 0 {
		r.nextID++
		page.ID = r.nextID
	} else if page.ID > r.nextID {
		r.nextID = page.ID
	}
	if page.CreatedAt.IsZero() {
		page.CreatedAt = r.clock.Now()
	}
	if page.Names == nil {
		page.Names = make(map[domain.LanguageID]string)
	}

	r.pages[page.ID] = &page
	return clonePage(&page)
}

func (r *MemoryRepository) GetByID(_ context.Context, id int64) (*domain.Page, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	page, ok := r.pages[id]
	if !ok {
		return nil, nil
	}
	return clonePage(page), nil
}

func (r *MemoryRepository) GetByPath(_ context.Context, path string, language *domain.LanguageID) (*domain.Page, error) {
	normalized := domain.NormalizePath(path)

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, page := range r.pages {
		for lang := range pageLanguages(page) {
			if language != nil && lang != *language {
				continue
			}
			current, err := r.pathLocked(page, lang)
			if err != nil {
				return nil, err
			}
			if current == normalized {
				return clonePage(page), nil
			}
		}
	}
	return nil, nil
}

func (r *MemoryRepository) Path(_ context.Context, page *domain.Page, language domain.LanguageID) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stored, ok := r.pages[page.ID]
	if !ok {
		return "", domain.ErrPageNotFound
	}
	return r.pathLocked(stored, language)
}

func (r *MemoryRepository) Parent(_ context.Context, page *domain.Page) (*domain.Page, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if page.ParentID == 0 {
		return nil, nil
	}
	parent, ok := r.pages[page.ParentID]
	if !ok {
		return nil, nil
	}
	return clonePage(parent), nil
}

// Move reparents a page and fires the moved hook with the page's previous
// default-language parent path and names
func (r *MemoryRepository) Move(ctx context.Context, id, newParentID int64) error {
	r.mu.Lock()
	page, ok := r.pages[id]
	if !ok {
		r.mu.Unlock()
		return domain.ErrPageNotFound
	}

	previousParentPath := "/"
	if parent, ok := r.pages[page.ParentID]; ok {
		path, err := r.pathLocked(parent, domain.DefaultLanguage)
		if err != nil {
			r.mu.Unlock()
			return err
		}
		previousParentPath = path
	}
	previousNames := cloneNames(page.Names)

	page.ParentID = newParentID
	moved := clonePage(page)
	r.mu.Unlock()

	r.hooks.FireMoved(ctx, Moved{
		Page:               moved,
		PreviousParentPath: previousParentPath,
		PreviousName:       previousNames[domain.DefaultLanguage],
		PreviousNames:      previousNames,
	})
	return nil
}

// Rename changes a page's URL name in one language and fires the renamed hook
func (r *MemoryRepository) Rename(ctx context.Context, id int64, language domain.LanguageID, name string) error {
	r.mu.Lock()
	page, ok := r.pages[id]
	if !ok {
		r.mu.Unlock()
		return domain.ErrPageNotFound
	}

	previousNames := cloneNames(page.Names)
	page.Names[language] = name
	renamed := clonePage(page)
	r.mu.Unlock()

	r.hooks.FireRenamed(ctx, Renamed{
		Page:          renamed,
		PreviousName:  previousNames[domain.DefaultLanguage],
		PreviousNames: previousNames,
	})
	return nil
}

// Delete removes a page from the tree and fires the deleted hook. Children
// are left in place; the host is responsible for cascading.
func (r *MemoryRepository) Delete(ctx context.Context, id int64) error {
	r.mu.Lock()
	page, ok := r.pages[id]
	if !ok {
		r.mu.Unlock()
		return domain.ErrPageNotFound
	}
	delete(r.pages, id)
	deleted := clonePage(page)
	r.mu.Unlock()

	r.hooks.FireDeleted(ctx, Deleted{Page: deleted})
	return nil
}

// pathLocked computes a page's current path by walking the parent chain.
// Callers must hold at least a read lock.
func (r *MemoryRepository) pathLocked(page *domain.Page, language domain.LanguageID) (string, error) {
	path := ""
	current := page
	for depth := 0; ; depth++ {
		if depth > maxTreeDepth {
			return "", fmt.Errorf("failed to compute path: page %d exceeds max tree depth", page.ID)
		}
		path = "/" + current.Name(language) + path
		if current.ParentID == 0 {
			break
		}
		parent, ok := r.pages[current.ParentID]
		if !ok {
			break
		}
		current = parent
	}
	return domain.NormalizePath(path), nil
}

func pageLanguages(page *domain.Page) map[domain.LanguageID]struct{} {
	languages := map[domain.LanguageID]struct{}{domain.DefaultLanguage: {}}
	for lang := range page.Names {
		languages[lang] = struct{}{}
	}
	return languages
}

func clonePage(page *domain.Page) *domain.Page {
	clone := *page
	clone.Names = cloneNames(page.Names)
	return &clone
}

func cloneNames(names map[domain.LanguageID]string) map[domain.LanguageID]string {
	clone := make(map[domain.LanguageID]string, len(names))
	for lang, name := range names {
		clone[lang] = name
	}
	return clone
}
