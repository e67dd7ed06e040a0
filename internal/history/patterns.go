// Package history records the historical URL paths of content pages and
// resolves stale request paths back to live pages.
package history

import (
	"fmt"
	"regexp"

	"github.com/pagetrail/pagetrail/internal/domain"
)

// Patterns holds the naming predicates that exclude noise from the recorded
// history. Trash-recovery paths and freshly created "untitled" pages would
// otherwise pollute the store with paths nobody ever linked to.
type Patterns struct {
	trash    *regexp.Regexp
	untitled *regexp.Regexp
}

// NewPatterns compiles the exclusion predicates. Empty pattern strings fall
// back to the defaults.
func NewPatterns(trashPattern, untitledPattern string) (*Patterns, error) {
	if trashPattern == "" {
		trashPattern = domain.DefaultTrashPattern
	}
	if untitledPattern == "" {
		untitledPattern = domain.DefaultUntitledPattern
	}

	trash, err := regexp.Compile(trashPattern)
	if err != nil {
		return nil, fmt.Errorf("failed to compile trash pattern: %w", err)
	}
	untitled, err := regexp.Compile(untitledPattern)
	if err != nil {
		return nil, fmt.Errorf("failed to compile untitled pattern: %w", err)
	}

	return &Patterns{trash: trash, untitled: untitled}, nil
}

// MustPatterns is NewPatterns for the default patterns, which always compile
func MustPatterns() *Patterns {
	patterns, err := NewPatterns("", "")
	if err != nil {
		panic(err)
	}
	return patterns
}

// MatchesTrash reports whether a path looks like a trash-recovery artifact
func (p *Patterns) MatchesTrash(path string) bool {
	return p.trash.MatchString(path)
}

// IsUntitled reports whether a page name is a default placeholder name
func (p *Patterns) IsUntitled(name string) bool {
	return p.untitled.MatchString(name)
}
