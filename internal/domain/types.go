package domain

import "time"

// LanguageID identifies a site language. Zero is the default language.
type LanguageID uint16

// DefaultLanguage is the language assigned to entries that carry no
// language-specific information.
const DefaultLanguage LanguageID = 0

// MatchKind describes how a request path matched a historical entry
type MatchKind string

const (
	// MatchExact means the full request path matched a historical entry
	MatchExact MatchKind = "exact"
	// MatchPartial means a prefix of the request path matched and the
	// remainder was treated as trailing URL segments
	MatchPartial MatchKind = "partial"
)

// PathInfo is the match record produced when a request path is looked up
// against the path history
type PathInfo struct {
	// PageID is the page that owned the matched historical path
	PageID int64 `json:"page_id"`
	// Path is the historical path that matched
	Path string `json:"path"`
	// LanguageID is the language the entry was recorded for (0 = default)
	LanguageID LanguageID `json:"language_id"`
	// Match reports whether the hit was exact or partial
	Match MatchKind `json:"match"`
	// Segments holds the trailing URL segments left over on a partial match
	Segments string `json:"segments,omitempty"`
	// CreatedAt is when the historical entry was recorded
	CreatedAt time.Time `json:"created_at"`
}

// HistoryRecord is one entry of a page's path history, either recorded or
// synthesized from ancestor path changes
type HistoryRecord struct {
	// Path is the historical (or inferred) path
	Path string `json:"path"`
	// CreatedAt is when the path stopped being live
	CreatedAt time.Time `json:"created_at"`
	// LanguageID is the language the entry belongs to (0 = default)
	LanguageID LanguageID `json:"language_id"`
	// Virtual reports whether the entry was inferred from an ancestor's
	// path change rather than recorded directly
	Virtual bool `json:"virtual"`
	// SourceAncestorID is the ancestor whose history produced a virtual
	// entry (0 for recorded entries)
	SourceAncestorID int64 `json:"source_ancestor_id,omitempty"`
	// Sequence is a strictly increasing counter assigned at the outermost
	// call, used to order records that share a timestamp
	Sequence int `json:"sequence"`
}

// PageEventType identifies a page-management event
type PageEventType string

const (
	// PageEventMoved is emitted when a page is moved to a new parent
	PageEventMoved PageEventType = "moved"
	// PageEventRenamed is emitted when a page's name changes
	PageEventRenamed PageEventType = "renamed"
	// PageEventDeleted is emitted when a page is deleted
	PageEventDeleted PageEventType = "deleted"
)

// PageEvent is the wire representation of a page-management event published
// by the host content repository
type PageEvent struct {
	Type   PageEventType `json:"type"`
	PageID int64         `json:"page_id"`
	// PreviousParentPath is the parent path before a move ("" for renames)
	PreviousParentPath string `json:"previous_parent_path,omitempty"`
	// PreviousName is the page name before a rename (current name for pure moves)
	PreviousName string `json:"previous_name,omitempty"`
	// PreviousNames holds the localized names before the change, keyed by
	// language (only languages whose name actually changed)
	PreviousNames map[LanguageID]string `json:"previous_names,omitempty"`
	Timestamp     time.Time             `json:"timestamp"`
}
