package pages

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/pagetrail/pagetrail/internal/domain"
)

// pageRow mirrors the host's pages table. The table is owned by the host
// content repository; this adapter only reads it.
type pageRow struct {
	ID                       int64     `gorm:"column:id;primaryKey"`
	ParentID                 int64     `gorm:"column:parent_id"`
	TemplateName             string    `gorm:"column:template_name"`
	TemplateSystem           bool      `gorm:"column:template_system"`
	TemplateAllowURLSegments bool      `gorm:"column:template_allow_url_segments"`
	Cloning                  bool      `gorm:"column:cloning"`
	CreatedAt                time.Time `gorm:"column:created_at"`
}

// TableName returns the table name for the pageRow model
func (pageRow) TableName() string {
	return "pages"
}

// pageNameRow mirrors the host's localized page name table
type pageNameRow struct {
	PagesID    int64             `gorm:"column:pages_id;primaryKey"`
	LanguageID domain.LanguageID `gorm:"column:language_id;primaryKey"`
	Name       string            `gorm:"column:name"`
}

// TableName returns the table name for the pageNameRow model
func (pageNameRow) TableName() string {
	return "page_names"
}

// PGRepository reads the host page tree from PostgreSQL. Mutations stay with
// the host; page lifecycle events arrive over the event stream instead of
// through Hooks.
type PGRepository struct {
	db *gorm.DB
}

// NewPGRepository creates a read-only page repository backed by the host
// database
func NewPGRepository(db *gorm.DB) *PGRepository {
	return &PGRepository{db: db}
}

func (r *PGRepository) GetByID(ctx context.Context, id int64) (*domain.Page, error) {
	var row pageRow
	err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get page: %w", err)
	}

	names, err := r.loadNames(ctx, []int64{row.ID})
	if err != nil {
		return nil, err
	}
	return toPage(&row, names[row.ID]), nil
}

func (r *PGRepository) GetByPath(ctx context.Context, path string, language *domain.LanguageID) (*domain.Page, error) {
	normalized := domain.NormalizePath(path)
	if normalized == "/" {
		return nil, nil
	}
	segments := strings.Split(strings.TrimPrefix(normalized, "/"), "/")

	if language != nil {
		return r.walk(ctx, segments, *language)
	}

	// Without a language the default tree is tried first, then every
	// language that has localized names.
	page, err := r.walk(ctx, segments, domain.DefaultLanguage)
	if err != nil || page != nil {
		return page, err
	}

	var languages []domain.LanguageID
	err = r.db.WithContext(ctx).
		Model(&pageNameRow{}).
		Distinct("language_id").
		Where("language_id <> ?", domain.DefaultLanguage).
		Pluck("language_id", &languages).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list page languages: %w", err)
	}

	for _, lang := range languages {
		page, err := r.walk(ctx, segments, lang)
		if err != nil || page != nil {
			return page, err
		}
	}
	return nil, nil
}

func (r *PGRepository) Path(ctx context.Context, page *domain.Page, language domain.LanguageID) (string, error) {
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
		parent, err := r.GetByID(ctx, current.ParentID)
		if err != nil {
			return "", err
		}
		if parent == nil {
			break
		}
		current = parent
	}
	return domain.NormalizePath(path), nil
}

func (r *PGRepository) Parent(ctx context.Context, page *domain.Page) (*domain.Page, error) {
	if page.ParentID == 0 {
		return nil, nil
	}
	return r.GetByID(ctx, page.ParentID)
}

// walk descends the tree level by level, matching each path segment against
// the children's names in the given language (with default-language fallback).
func (r *PGRepository) walk(ctx context.Context, segments []string, language domain.LanguageID) (*domain.Page, error) {
	parentID := int64(0)
	var match *domain.Page

	for _, segment := range segments {
		var children []pageRow
		err := r.db.WithContext(ctx).
			Where("parent_id = ?", parentID).
			Find(&children).Error
		if err != nil {
			return nil, fmt.Errorf("failed to list child pages: %w", err)
		}
		if len(children) == 0 {
			return nil, nil
		}

		ids := make([]int64, len(children))
		for i, child := range children {
			ids[i] = child.ID
		}
		names, err := r.loadNames(ctx, ids)
		if err != nil {
			return nil, err
		}

		match = nil
		for i := range children {
			candidate := toPage(&children[i], names[children[i].ID])
			if candidate.Name(language) == segment {
				match = candidate
				break
			}
		}
		if match == nil {
			return nil, nil
		}
		parentID = match.ID
	}
	return match, nil
}

// loadNames fetches localized names for a set of pages
func (r *PGRepository) loadNames(ctx context.Context, ids []int64) (map[int64]map[domain.LanguageID]string, error) {
	var rows []pageNameRow
	err := r.db.WithContext(ctx).
		Where("pages_id IN ?", ids).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load page names: %w", err)
	}

	names := make(map[int64]map[domain.LanguageID]string, len(ids))
	for _, row := range rows {
		if names[row.PagesID] == nil {
			names[row.PagesID] = make(map[domain.LanguageID]string)
		}
		names[row.PagesID][row.LanguageID] = row.Name
	}
	return names, nil
}

func toPage(row *pageRow, names map[domain.LanguageID]string) *domain.Page {
	if names == nil {
		names = make(map[domain.LanguageID]string)
	}
	return &domain.Page{
		ID:       row.ID,
		ParentID: row.ParentID,
		Template: domain.Template{
			Name:             row.TemplateName,
			System:           row.TemplateSystem,
			AllowURLSegments: row.TemplateAllowURLSegments,
		},
		Names:     names,
		CreatedAt: row.CreatedAt,
		Cloning:   row.Cloning,
	}
}
