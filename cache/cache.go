package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"gorm.io/gorm"

	"cadenza/database"
	"cadenza/models"
)

// PageCache stores rendered composition pages as HTML files keyed by slug.
type PageCache struct {
	dir    string
	maxAge time.Duration
}

func New(dir string, maxAge time.Duration) *PageCache {
	return &PageCache{dir: dir, maxAge: maxAge}
}

// Path returns the cache file path for a composition slug.
func (p *PageCache) Path(slug string) string {
	shortHash := generateHash(slug)[:16]
	return filepath.Join(p.dir, fmt.Sprintf("%s_%s.html", slug, shortHash))
}

// generateHash generates an xxHash hash for the given string
func generateHash(s string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(s))
}

func (p *PageCache) Write(slug, html string) error {
	if err := os.MkdirAll(p.dir, 0755); err != nil {
		return err
	}
	return os.WriteFile(p.Path(slug), []byte(html), 0644)
}

// Read returns the cached page if it exists and is younger than maxAge.
func (p *PageCache) Read(slug string) (string, bool) {
	cachePath := p.Path(slug)

	info, err := os.Stat(cachePath)
	if err != nil {
		return "", false
	}
	if time.Since(info.ModTime()) > p.maxAge {
		return "", false
	}

	content, err := os.ReadFile(cachePath)
	if err != nil {
		return "", false
	}
	return string(content), true
}

func (p *PageCache) Clear(slug string) error {
	err := os.Remove(p.Path(slug))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// ClearSlugs removes the pages of every slug, e.g. all compositions of an
// author whose display name changed.
func (p *PageCache) ClearSlugs(slugs ...string) error {
	for _, slug := range slugs {
		if err := p.Clear(slug); err != nil {
			return err
		}
	}
	return nil
}

// ClearAuthor drops every cached composition page of author. Those pages
// embed the author's display name and avatar.
func (p *PageCache) ClearAuthor(db *gorm.DB, author *models.User) error {
	slugs, err := database.SlugsByAuthor(db, author)
	if err != nil {
		return fmt.Errorf("cache: list slugs of user %d: %w", author.ID, err)
	}
	return p.ClearSlugs(slugs...)
}

func (p *PageCache) ClearAll() error {
	return os.RemoveAll(p.dir)
}

// ClearOld removes cached pages older than maxAge.
func (p *PageCache) ClearOld() error {
	return filepath.Walk(p.dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if info.IsDir() || !strings.HasSuffix(path, ".html") {
			return nil
		}
		if time.Since(info.ModTime()) > p.maxAge {
			os.Remove(path)
		}
		return nil
	})
}
