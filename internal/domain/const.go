package domain

import "time"

const (
	// DefaultMinimumAge is how old a page must be before a move or rename is
	// recorded. Pages renamed immediately after creation are still being set
	// up and produce noise rather than useful history.
	DefaultMinimumAge = 120 * time.Second

	// MaxSegments is the maximum number of trailing URL segments stripped
	// (and the maximum recursion depth chased) during stale-path resolution.
	MaxSegments = 10

	// DefaultTrashPattern matches paths produced by trash recovery naming
	// (e.g. "/1234.5.6_name"). Entries matching it are never recorded or
	// synthesized.
	DefaultTrashPattern = `/\d+\.\d+\.\d+_`

	// DefaultUntitledPattern matches placeholder names given to pages that
	// were never explicitly titled.
	DefaultUntitledPattern = `^untitled(-\d+)?$`
)
