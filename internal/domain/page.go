package domain

import "time"

// Template describes the page template properties the history subsystem
// cares about
type Template struct {
	Name string `json:"name"`
	// System marks administrative templates whose pages never record history
	System bool `json:"system"`
	// AllowURLSegments permits requests for paths below the page to still
	// resolve to it, with the remainder passed along as URL segments
	AllowURLSegments bool `json:"allow_url_segments"`
}

// Page is the subsystem's view of a content page. The host owns the page
// tree; only the fields the history subsystem reads are modeled here.
type Page struct {
	ID       int64    `json:"id"`
	ParentID int64    `json:"parent_id"`
	Template Template `json:"template"`
	// Names maps a language to the page's localized URL name. The default
	// language entry is always present.
	Names     map[LanguageID]string `json:"names"`
	CreatedAt time.Time             `json:"created_at"`
	// Cloning is set while the page is part of a bulk clone operation
	Cloning bool `json:"cloning"`
}

// Name returns the page's URL name in the given language, falling back to
// the default language.
func (p *Page) Name(language LanguageID) string {
	if name, ok := p.Names[language]; ok && name != "" {
		return name
	}
	return p.Names[DefaultLanguage]
}
