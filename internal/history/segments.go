package history

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pagetrail/pagetrail/internal/adapter"
	"github.com/pagetrail/pagetrail/internal/domain"
	"github.com/pagetrail/pagetrail/internal/logger"
	"github.com/pagetrail/pagetrail/internal/store"
)

// segmentRefreshInterval bounds how often a Contains miss may re-read the
// persisted segment set. Within one interval repeated unknown segments cost
// no store round trips.
const segmentRefreshInterval = 30 * time.Second

// RootSegmentIndex caches the set of first path segments present in the
// store. It is a cheap negative filter: a request whose first segment was
// never recorded cannot match any history entry, so no query is needed.
// Stale extra segments only cost a wasted lookup; missing segments would
// break resolution, so a miss falls back to the persisted set (the recorder
// and the API run as separate processes over one database) and bulk deletes
// trigger a full rebuild.
type RootSegmentIndex struct {
	mu          sync.RWMutex
	set         map[string]struct{}
	lastRefresh time.Time
	store       store.Store
	clock       adapter.Clock
}

// NewRootSegmentIndex creates an empty index backed by the given store
func NewRootSegmentIndex(s store.Store, clock adapter.Clock) *RootSegmentIndex {
	return &RootSegmentIndex{
		set:   make(map[string]struct{}),
		store: s,
		clock: clock,
	}
}

// Load populates the index from the persisted segment set, rebuilding from
// a full scan when nothing was persisted yet
func (i *RootSegmentIndex) Load(ctx context.Context) error {
	segments, err := i.store.GetRootSegments(ctx)
	if err != nil {
		return fmt.Errorf("failed to load root segments: %w", err)
	}
	if segments == nil {
		_, err := i.Rebuild(ctx)
		return err
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	i.set = make(map[string]struct{}, len(segments))
	for _, segment := range segments {
		i.set[segment] = struct{}{}
	}
	i.lastRefresh = i.clock.Now()
	return nil
}

// Contains reports whether the segment has ever been recorded. On a local
// miss the persisted set is consulted, rate-limited, so segments written by
// another process become visible without a restart.
func (i *RootSegmentIndex) Contains(ctx context.Context, segment string) bool {
	i.mu.RLock()
	_, ok := i.set[segment]
	i.mu.RUnlock()
	if ok {
		return true
	}
	return i.refreshOnMiss(ctx, segment)
}

// refreshOnMiss re-reads the persisted segment set and re-checks. The
// refresh only ever adds segments; a concurrent Rebuild elsewhere may leave
// stale extras behind, which are harmless.
func (i *RootSegmentIndex) refreshOnMiss(ctx context.Context, segment string) bool {
	i.mu.Lock()
	if _, ok := i.set[segment]; ok {
		i.mu.Unlock()
		return true
	}
	now := i.clock.Now()
	if now.Sub(i.lastRefresh) < segmentRefreshInterval {
		i.mu.Unlock()
		return false
	}
	i.lastRefresh = now
	i.mu.Unlock()

	segments, err := i.store.GetRootSegments(ctx)
	if err != nil {
		logger.WarnCtx(ctx, "Failed to refresh root segments", zap.Error(err))
		return false
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	for _, s := range segments {
		i.set[s] = struct{}{}
	}
	_, ok := i.set[segment]
	return ok
}

// Add records the first segment of a newly inserted path, persisting the
// set when the segment is new
func (i *RootSegmentIndex) Add(ctx context.Context, path string) error {
	segment := domain.FirstSegment(path)
	if segment == "" {
		return nil
	}

	i.mu.Lock()
	if _, ok := i.set[segment]; ok {
		i.mu.Unlock()
		return nil
	}
	i.set[segment] = struct{}{}
	snapshot := i.snapshotLocked()
	i.mu.Unlock()

	if err := i.store.SetRootSegments(ctx, snapshot); err != nil {
		return fmt.Errorf("failed to persist root segments: %w", err)
	}
	return nil
}

// Rebuild recomputes the segment set from a full store scan and persists it
func (i *RootSegmentIndex) Rebuild(ctx context.Context) ([]string, error) {
	segments, err := i.store.DistinctRootSegments(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to rebuild root segments: %w", err)
	}

	i.mu.Lock()
	i.set = make(map[string]struct{}, len(segments))
	for _, segment := range segments {
		i.set[segment] = struct{}{}
	}
	i.lastRefresh = i.clock.Now()
	snapshot := i.snapshotLocked()
	i.mu.Unlock()

	if err := i.store.SetRootSegments(ctx, snapshot); err != nil {
		return nil, fmt.Errorf("failed to persist root segments: %w", err)
	}
	return snapshot, nil
}

func (i *RootSegmentIndex) snapshotLocked() []string {
	snapshot := make([]string, 0, len(i.set))
	for segment := range i.set {
		snapshot = append(snapshot, segment)
	}
	return snapshot
}
