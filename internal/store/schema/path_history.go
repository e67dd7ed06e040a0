package schema

import (
	"time"

	"github.com/pagetrail/pagetrail/internal/domain"
)

// PathHistory represents the path_history table - one row per historical URL
// path a page has occupied. The path itself is the primary key: at most one
// page ever owns a given historical path at a time.
type PathHistory struct {
	// Path is the normalized historical path (leading slash, no trailing slash)
	Path string `gorm:"column:path;primaryKey;type:text"`
	// PagesID is the page that owned this path
	PagesID int64 `gorm:"column:pages_id;not null;index:idx_path_history_pages_id"`
	// LanguageID is the language the entry was recorded for (0 = default)
	LanguageID domain.LanguageID `gorm:"column:language_id;not null;default:0"`
	// CreatedAt is when the path stopped being the page's live path
	CreatedAt time.Time `gorm:"column:created_at;not null;default:now()"`
}

// TableName specifies the table name for the PathHistory model
func (PathHistory) TableName() string {
	return "path_history"
}
