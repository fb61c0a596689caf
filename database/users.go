package database

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"cadenza/config"
	"cadenza/models"
)

var (
	ErrNotPersisted = errors.New("database: user has no id yet")
	ErrNoRole       = errors.New("database: no role could be assigned")
)

// AssignRole gives u a role when it has none: Administrator when its email
// is the admin address, otherwise the default role. When neither exists the
// user is left without a role and the insert fails on the NOT NULL column.
func AssignRole(tx *gorm.DB, u *models.User, adminEmail string) error {
	if u.RoleID != nil {
		if u.Role == nil {
			var role models.Role
			if err := tx.First(&role, *u.RoleID).Error; err != nil {
				return fmt.Errorf("database: load role %d: %w", *u.RoleID, err)
			}
			u.Role = &role
		}
		return nil
	}
	if u.Role != nil && u.Role.ID != 0 {
		u.RoleID = &u.Role.ID
		return nil
	}

	var role *models.Role
	var err error
	if config.IsAdminEmail(adminEmail, u.Email) {
		role, err = RoleByName(tx, models.RoleAdministrator)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
	}
	if role == nil {
		role, err = DefaultRole(tx)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
	}
	u.Role = role
	u.RoleID = &role.ID
	return nil
}

// CreateUser assigns a role and inserts u. Unique username/email and the
// NOT NULL role are enforced by the schema.
func CreateUser(tx *gorm.DB, u *models.User, adminEmail string) error {
	u.Email = models.NormalizeEmail(u.Email)
	if err := AssignRole(tx, u, adminEmail); err != nil {
		return err
	}
	if err := tx.Omit(clause.Associations).Create(u).Error; err != nil {
		if u.RoleID == nil {
			return fmt.Errorf("%w: %v", ErrNoRole, err)
		}
		return fmt.Errorf("database: create user %s: %w", u.Username, err)
	}
	return nil
}

func UserByID(db *gorm.DB, id uint) (*models.User, error) {
	var u models.User
	if err := db.Preload("Role").First(&u, id).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

func UserByUsername(db *gorm.DB, username string) (*models.User, error) {
	var u models.User
	if err := db.Preload("Role").Where("username = ?", username).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

func UserByEmail(db *gorm.DB, email string) (*models.User, error) {
	var u models.User
	if err := db.Preload("Role").Where("email = ?", models.NormalizeEmail(email)).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// UsernameTaken reports whether another user (not exceptID) owns username.
func UsernameTaken(db *gorm.DB, username string, exceptID uint) (bool, error) {
	var n int64
	err := db.Model(&models.User{}).Where("username = ? AND id <> ?", username, exceptID).Count(&n).Error
	return n > 0, err
}

func EmailTaken(db *gorm.DB, email string, exceptID uint) (bool, error) {
	var n int64
	err := db.Model(&models.User{}).Where("email = ? AND id <> ?", models.NormalizeEmail(email), exceptID).Count(&n).Error
	return n > 0, err
}

// SaveUser writes every column of u, without touching the role row.
func SaveUser(tx *gorm.DB, u *models.User) error {
	if u.ID == 0 {
		return ErrNotPersisted
	}
	return tx.Omit(clause.Associations).Save(u).Error
}

// TouchLastSeen persists only the last_seen column.
func TouchLastSeen(db *gorm.DB, u *models.User, now time.Time) error {
	if u.ID == 0 {
		return ErrNotPersisted
	}
	u.Ping(now)
	return db.Model(&models.User{}).Where("id = ?", u.ID).UpdateColumn("last_seen", u.LastSeen).Error
}

// Confirm marks u as confirmed. The caller owns the transaction.
func Confirm(tx *gorm.DB, u *models.User) error {
	if u.ID == 0 {
		return ErrNotPersisted
	}
	u.Confirmed = true
	return tx.Model(&models.User{}).Where("id = ?", u.ID).Update("confirmed", true).Error
}

// DeleteUser removes u. Its follow edges and compositions go with it.
func DeleteUser(tx *gorm.DB, u *models.User) error {
	if u.ID == 0 {
		return ErrNotPersisted
	}
	return tx.Delete(u).Error
}

// ListUsers pages through every account, oldest first.
func ListUsers(db *gorm.DB, offset, limit int) ([]models.User, int64, error) {
	var total int64
	if err := db.Model(&models.User{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var users []models.User
	err := db.Preload("Role").Order("id ASC").Offset(offset).Limit(limit).Find(&users).Error
	if err != nil {
		return nil, 0, err
	}
	return users, total, nil
}
