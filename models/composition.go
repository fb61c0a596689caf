package models

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var ErrCompositionNotPersisted = errors.New("models: composition has no id yet")

type ReleaseType int

const (
	ReleaseSingle ReleaseType = iota + 1
	ReleaseExtendedPlay
	ReleaseAlbum
)

var ReleaseTypes = []ReleaseType{ReleaseSingle, ReleaseExtendedPlay, ReleaseAlbum}

func (r ReleaseType) String() string {
	switch r {
	case ReleaseSingle:
		return "Single"
	case ReleaseExtendedPlay:
		return "Extended Play"
	case ReleaseAlbum:
		return "Album"
	}
	return "Unknown"
}

func (r ReleaseType) Valid() bool {
	return r >= ReleaseSingle && r <= ReleaseAlbum
}

// ParseReleaseType accepts the numeric value posted by the composition forms.
func ParseReleaseType(s string) (ReleaseType, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("models: invalid release type %q", s)
	}
	r := ReleaseType(n)
	if !r.Valid() {
		return 0, fmt.Errorf("models: invalid release type %q", s)
	}
	return r, nil
}

// nonWord matches runs of characters that are not letters, digits or underscore.
var nonWord = regexp.MustCompile(`[^\p{L}\p{N}_]+`)

// SlugFor builds "{id}-{title}" with the title lowercased and every run of
// non-word characters replaced by one hyphen. Edge hyphens are kept, so
// "Hello, World!!" with id 7 becomes "7-hello-world-".
func SlugFor(id uint, title string) string {
	lowered := cases.Lower(language.Und).String(title)
	return fmt.Sprintf("%d-%s", id, nonWord.ReplaceAllString(lowered, "-"))
}

// GenerateSlug sets the slug from the id and title. It must run after the
// first insert because the slug embeds the id.
func (c *Composition) GenerateSlug() error {
	if c.ID == 0 {
		return ErrCompositionNotPersisted
	}
	slug := SlugFor(c.ID, c.Title)
	c.Slug = &slug
	return nil
}

// Permalink returns the slug or "" while the composition has none.
func (c *Composition) Permalink() string {
	if c.Slug == nil {
		return ""
	}
	return *c.Slug
}

func (c *Composition) URL() string {
	return "/composition/" + c.Permalink()
}
