package models

import (
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// Subtitle represents one subtitle track to inject into a manifest
type Subtitle struct {
	LanguageCode string `json:"language" binding:"required"`
	URL          string `json:"url" binding:"required"`
	IsDefault    bool   `json:"default"`
}

// LanguageName returns a human-readable display name for the track's
// language code, falling back to the raw code when it cannot be resolved
func (s Subtitle) LanguageName() string {
	tag, err := language.Parse(s.LanguageCode)
	if err != nil {
		return s.LanguageCode
	}

	if name := display.English.Tags().Name(tag); name != "" {
		return name
	}

	return s.LanguageCode
}
