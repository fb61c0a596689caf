package database

import (
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"cadenza/models"
)

var ErrSelfFollow = errors.New("database: users cannot follow themselves")

// FollowEntry is one row of a followers/following listing.
type FollowEntry struct {
	User  *models.User
	Since time.Time
}

// Follow records that follower follows followed. Following twice is a no-op:
// the insert yields to the composite primary key instead of checking first,
// so concurrent duplicate requests cannot race into an error. Nothing is
// committed here; the caller owns the transaction.
func Follow(tx *gorm.DB, follower, followed *models.User) error {
	if follower.ID == 0 || followed.ID == 0 {
		return ErrNotPersisted
	}
	if follower.ID == followed.ID {
		return ErrSelfFollow
	}

	edge := models.Follow{FollowerID: follower.ID, FollowedID: followed.ID}
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "follower_id"}, {Name: "followed_id"}},
		DoNothing: true,
	}).Create(&edge).Error
}

// Unfollow removes the edge if there is one.
func Unfollow(tx *gorm.DB, follower, followed *models.User) error {
	if follower.ID == 0 || followed.ID == 0 {
		return nil
	}
	return tx.Where("follower_id = ? AND followed_id = ?", follower.ID, followed.ID).
		Delete(&models.Follow{}).Error
}

// IsFollowing reports whether a follows b.
func IsFollowing(db *gorm.DB, a, b *models.User) (bool, error) {
	if a == nil || b == nil || a.ID == 0 || b.ID == 0 {
		return false, nil
	}
	return edgeExists(db, a.ID, b.ID)
}

// IsAFollower reports whether b follows a.
func IsAFollower(db *gorm.DB, a, b *models.User) (bool, error) {
	if a == nil || b == nil || a.ID == 0 || b.ID == 0 {
		return false, nil
	}
	return edgeExists(db, b.ID, a.ID)
}

func edgeExists(db *gorm.DB, followerID, followedID uint) (bool, error) {
	var n int64
	err := db.Model(&models.Follow{}).
		Where("follower_id = ? AND followed_id = ?", followerID, followedID).
		Count(&n).Error
	return n > 0, err
}

func FollowerCount(db *gorm.DB, u *models.User) (int64, error) {
	var n int64
	err := db.Model(&models.Follow{}).Where("followed_id = ?", u.ID).Count(&n).Error
	return n, err
}

func FollowingCount(db *gorm.DB, u *models.User) (int64, error) {
	var n int64
	err := db.Model(&models.Follow{}).Where("follower_id = ?", u.ID).Count(&n).Error
	return n, err
}

// Followers lists the users following u, newest edge first.
func Followers(db *gorm.DB, u *models.User, offset, limit int) ([]FollowEntry, int64, error) {
	total, err := FollowerCount(db, u)
	if err != nil {
		return nil, 0, err
	}

	var edges []models.Follow
	err = db.Preload("Follower").
		Where("followed_id = ?", u.ID).
		Order("created_at DESC").
		Offset(offset).Limit(limit).
		Find(&edges).Error
	if err != nil {
		return nil, 0, err
	}

	entries := make([]FollowEntry, 0, len(edges))
	for _, e := range edges {
		entries = append(entries, FollowEntry{User: e.Follower, Since: e.CreatedAt})
	}
	return entries, total, nil
}

// Following lists the users u follows, newest edge first.
func Following(db *gorm.DB, u *models.User, offset, limit int) ([]FollowEntry, int64, error) {
	total, err := FollowingCount(db, u)
	if err != nil {
		return nil, 0, err
	}

	var edges []models.Follow
	err = db.Preload("Followed").
		Where("follower_id = ?", u.ID).
		Order("created_at DESC").
		Offset(offset).Limit(limit).
		Find(&edges).Error
	if err != nil {
		return nil, 0, err
	}

	entries := make([]FollowEntry, 0, len(edges))
	for _, e := range edges {
		entries = append(entries, FollowEntry{User: e.Followed, Since: e.CreatedAt})
	}
	return entries, total, nil
}
