package database

import (
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"cadenza/models"
)

// CreateComposition inserts c and then stamps its slug, which embeds the new
// id. Both writes share one transaction so a slug-less row is never visible
// to other requests.
func CreateComposition(db *gorm.DB, c *models.Composition) error {
	if !c.ReleaseType.Valid() {
		return fmt.Errorf("database: invalid release type %d", c.ReleaseType)
	}
	return db.Transaction(func(tx *gorm.DB) error {
		c.Slug = nil
		if err := tx.Omit(clause.Associations).Create(c).Error; err != nil {
			return fmt.Errorf("database: insert composition: %w", err)
		}
		if err := c.GenerateSlug(); err != nil {
			return err
		}
		if err := tx.Model(c).UpdateColumn("slug", c.Slug).Error; err != nil {
			return fmt.Errorf("database: set composition slug: %w", err)
		}
		return nil
	})
}

// UpdateComposition saves c, regenerating the slug so it follows the title.
func UpdateComposition(db *gorm.DB, c *models.Composition) error {
	if err := c.GenerateSlug(); err != nil {
		return err
	}
	return db.Omit(clause.Associations).Save(c).Error
}

func DeleteComposition(db *gorm.DB, c *models.Composition) error {
	if c.ID == 0 {
		return models.ErrCompositionNotPersisted
	}
	return db.Delete(c).Error
}

func CompositionBySlug(db *gorm.DB, slug string) (*models.Composition, error) {
	var c models.Composition
	if err := db.Preload("Author").Where("slug = ?", slug).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// ListCompositions returns every composition with a slug, newest first.
func ListCompositions(db *gorm.DB, offset, limit int) ([]models.Composition, int64, error) {
	return paginate(db.Model(&models.Composition{}).Where("slug IS NOT NULL"), offset, limit)
}

func CompositionsByAuthor(db *gorm.DB, author *models.User, offset, limit int) ([]models.Composition, int64, error) {
	return paginate(db.Model(&models.Composition{}).
		Where("author_id = ? AND slug IS NOT NULL", author.ID), offset, limit)
}

// FollowedCompositions returns compositions by the users u follows.
func FollowedCompositions(db *gorm.DB, u *models.User, offset, limit int) ([]models.Composition, int64, error) {
	return paginate(db.Model(&models.Composition{}).
		Joins("JOIN follows ON follows.followed_id = compositions.author_id").
		Where("follows.follower_id = ? AND compositions.slug IS NOT NULL", u.ID), offset, limit)
}

// SlugsByAuthor lists the permalinks of every composition by author.
func SlugsByAuthor(db *gorm.DB, author *models.User) ([]string, error) {
	var slugs []string
	err := db.Model(&models.Composition{}).
		Where("author_id = ? AND slug IS NOT NULL", author.ID).
		Pluck("slug", &slugs).Error
	return slugs, err
}

func paginate(q *gorm.DB, offset, limit int) ([]models.Composition, int64, error) {
	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var out []models.Composition
	err := q.Session(&gorm.Session{}).
		Preload("Author").
		Order("compositions.created_at DESC, compositions.id DESC").
		Offset(offset).Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func CompositionCount(db *gorm.DB, author *models.User) (int64, error) {
	var n int64
	err := db.Model(&models.Composition{}).Where("author_id = ?", author.ID).Count(&n).Error
	return n, err
}
