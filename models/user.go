package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gorm.io/gorm"
)

const (
	RoleUser          = "User"
	RoleModerator     = "Moderator"
	RoleAdministrator = "Administrator"
)

const avatarURL = "https://unicornify.pictures/avatar"

// SetPassword replaces the stored hash with a bcrypt hash of password.
// The plaintext is never kept and there is no way to read it back.
func (u *User) SetPassword(password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("models: hash password: %w", err)
	}
	u.PasswordHash = string(hash)
	return nil
}

func (u *User) VerifyPassword(password string) bool {
	if u.PasswordHash == "" {
		return false
	}
	err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password))
	return err == nil
}

// NormalizeEmail is the stored form of an address: trimmed and lowercased.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// SetEmail changes the address and recomputes the cached avatar hash.
func (u *User) SetEmail(email string) {
	u.Email = NormalizeEmail(email)
	u.AvatarHash = EmailHash(u.Email)
}

// Can reports whether the user's role grants perm. A nil user (anonymous
// visitor) or a user without a loaded role can do nothing.
func (u *User) Can(perm Permission) bool {
	return u != nil && u.Role != nil && u.Role.HasPermission(perm)
}

func (u *User) IsAdministrator() bool {
	return u.Can(PermAdmin)
}

// Ping marks the user as active at now.
func (u *User) Ping(now time.Time) {
	u.LastSeen = now
}

func (u *User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.Username
}

func (u *User) AvatarURL(size int) string {
	hash := u.AvatarHash
	if hash == "" {
		hash = EmailHash(u.Email)
	}
	return fmt.Sprintf("%s/%s?s=%d", avatarURL, hash, size)
}

// EmailHash is the avatar fingerprint: xxhash64 of the lowercased email.
func EmailHash(email string) string {
	normalized := cases.Lower(language.Und).String(strings.TrimSpace(email))
	return fmt.Sprintf("%016x", xxhash.Sum64String(normalized))
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	now := time.Now()
	if u.MemberSince.IsZero() {
		u.MemberSince = now
	}
	if u.LastSeen.IsZero() {
		u.LastSeen = now
	}
	if u.AvatarHash == "" && u.Email != "" {
		u.AvatarHash = EmailHash(u.Email)
	}
	return nil
}

// BeforeDelete removes the follow edges on both sides of the user and the
// user's compositions so no row is left pointing at a missing user.
func (u *User) BeforeDelete(tx *gorm.DB) error {
	if u.ID == 0 {
		return nil
	}
	if err := tx.Where("follower_id = ? OR followed_id = ?", u.ID, u.ID).Delete(&Follow{}).Error; err != nil {
		return err
	}
	return tx.Where("author_id = ?", u.ID).Delete(&Composition{}).Error
}
