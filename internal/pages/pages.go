// Package pages abstracts the host content tree. The history subsystem never
// owns pages; it reads them through Repository and learns about mutations
// through Hooks.
package pages

import (
	"context"
	"sync"

	"github.com/pagetrail/pagetrail/internal/domain"
)

// Repository is the read-side view of the host page tree.
//
//go:generate mockgen -source=pages.go -destination=../mocks/pages.go -package=mocks
type Repository interface {
	// GetByID returns the page or (nil, nil) when no page has that id
	GetByID(ctx context.Context, id int64) (*domain.Page, error)

	// GetByPath returns the live page whose current path equals the given
	// normalized path, or (nil, nil) when none does. A nil language matches
	// any language.
	GetByPath(ctx context.Context, path string, language *domain.LanguageID) (*domain.Page, error)

	// Path returns the page's current normalized path in the given language
	Path(ctx context.Context, page *domain.Page, language domain.LanguageID) (string, error)

	// Parent returns the page's parent, or (nil, nil) for top-level pages
	Parent(ctx context.Context, page *domain.Page) (*domain.Page, error)
}

// Moved describes a page whose parent changed
type Moved struct {
	Page               *domain.Page
	PreviousParentPath string
	PreviousName       string
	PreviousNames      map[domain.LanguageID]string
}

// Renamed describes a page whose URL name changed in place
type Renamed struct {
	Page          *domain.Page
	PreviousName  string
	PreviousNames map[domain.LanguageID]string
}

// Deleted describes a page removed from the tree
type Deleted struct {
	Page *domain.Page
}

// Hooks is the registration point for page lifecycle callbacks. The host
// fires them synchronously after the mutation is committed.
type Hooks struct {
	mu      sync.RWMutex
	moved   []func(ctx context.Context, event Moved)
	renamed []func(ctx context.Context, event Renamed)
	deleted []func(ctx context.Context, event Deleted)
}

// NewHooks creates an empty hook registry
func NewHooks() *Hooks {
	return &Hooks{}
}

// OnMoved registers a callback for page moves
func (h *Hooks) OnMoved(fn func(ctx context.Context, event Moved)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.moved = append(h.moved, fn)
}

// OnRenamed registers a callback for page renames
func (h *Hooks) OnRenamed(fn func(ctx context.Context, event Renamed)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.renamed = append(h.renamed, fn)
}

// OnDeleted registers a callback for page deletions
func (h *Hooks) OnDeleted(fn func(ctx context.Context, event Deleted)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.deleted = append(h.deleted, fn)
}

// FireMoved invokes all move callbacks
func (h *Hooks) FireMoved(ctx context.Context, event Moved) {
	h.mu.RLock()
	callbacks := h.moved
	h.mu.RUnlock()
	for _, fn := range callbacks {
		fn(ctx, event)
	}
}

// FireRenamed invokes all rename callbacks
func (h *Hooks) FireRenamed(ctx context.Context, event Renamed) {
	h.mu.RLock()
	callbacks := h.renamed
	h.mu.RUnlock()
	for _, fn := range callbacks {
		fn(ctx, event)
	}
}

// FireDeleted invokes all delete callbacks
func (h *Hooks) FireDeleted(ctx context.Context, event Deleted) {
	h.mu.RLock()
	callbacks := h.deleted
	h.mu.RUnlock()
	for _, fn := range callbacks {
		fn(ctx, event)
	}
}
