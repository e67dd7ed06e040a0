package history

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pagetrail/pagetrail/internal/domain"
	"github.com/pagetrail/pagetrail/internal/pages"
	"github.com/pagetrail/pagetrail/internal/store"
)

// fakeClock is a manually advanced clock so minimum-age and ordering rules
// can be tested without sleeping
type fakeClock struct {
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time                  { return c.now }
func (c *fakeClock) Since(t time.Time) time.Duration { return c.now.Sub(t) }
func (c *fakeClock) Sleep(d time.Duration)           { c.now = c.now.Add(d) }
func (c *fakeClock) Unix(sec, nsec int64) time.Time  { return time.Unix(sec, nsec) }

func (c *fakeClock) Parse(layout, value string) (time.Time, error) {
	return time.Parse(layout, value)
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	ch <- c.now.Add(d)
	return ch
}

func (c *fakeClock) advance(d time.Duration) { c.now = c.now.Add(d) }

type fixture struct {
	store    store.Store
	repo     *pages.MemoryRepository
	segments *RootSegmentIndex
	recorder *Recorder
	virtual  *VirtualResolver
	resolver *Resolver
	clock    *fakeClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	clock := newFakeClock()
	s := store.NewMemoryStore()
	repo := pages.NewMemoryRepository(clock)
	segments := NewRootSegmentIndex(s, clock)
	require.NoError(t, segments.Load(context.Background()))
	patterns := MustPatterns()

	recorder := NewRecorder(s, repo, segments, patterns, clock, 0)
	recorder.AttachHooks(repo.Hooks())

	return &fixture{
		store:    s,
		repo:     repo,
		segments: segments,
		recorder: recorder,
		virtual:  NewVirtualResolver(s, repo, patterns),
		resolver: NewResolver(s, repo, segments, 0),
		clock:    clock,
	}
}

// addPage inserts a page created long enough ago to pass the minimum-age
// guard
func (f *fixture) addPage(parentID int64, name string) *domain.Page {
	return f.repo.Add(domain.Page{
		ParentID:  parentID,
		Names:     map[domain.LanguageID]string{domain.DefaultLanguage: name},
		CreatedAt: f.clock.Now().Add(-time.Hour),
	})
}

func (f *fixture) listPaths(t *testing.T, pageID int64) []string {
	t.Helper()
	entries, err := f.store.ListPathHistoryByPage(context.Background(), pageID, nil)
	require.NoError(t, err)
	paths := make([]string, len(entries))
	for i, entry := range entries {
		paths[i] = entry.Path
	}
	return paths
}
