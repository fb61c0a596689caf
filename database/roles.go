package database

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"cadenza/models"
)

type roleSeed struct {
	name        string
	permissions []models.Permission
}

// roleSeeds is the fixed role table. Order matters only for display.
var roleSeeds = []roleSeed{
	{models.RoleUser, []models.Permission{
		models.PermFollow, models.PermReview, models.PermPublish,
	}},
	{models.RoleModerator, []models.Permission{
		models.PermFollow, models.PermReview, models.PermPublish, models.PermModerate,
	}},
	{models.RoleAdministrator, []models.Permission{
		models.PermFollow, models.PermReview, models.PermPublish, models.PermModerate, models.PermAdmin,
	}},
}

const defaultRole = models.RoleUser

// InsertRoles brings the roles table in line with roleSeeds. Existing roles
// are found by name and have their permissions rebuilt from scratch, so
// running it again never duplicates a role or leaves a stale permission.
func InsertRoles(db *gorm.DB) error {
	return db.Transaction(func(tx *gorm.DB) error {
		for _, seed := range roleSeeds {
			var role models.Role
			err := tx.Where("name = ?", seed.name).First(&role).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				role = models.Role{Name: seed.name}
			} else if err != nil {
				return fmt.Errorf("database: find role %s: %w", seed.name, err)
			}

			role.ResetPermissions()
			for _, perm := range seed.permissions {
				role.AddPermission(perm)
			}
			role.IsDefault = role.Name == defaultRole

			if err := tx.Save(&role).Error; err != nil {
				return fmt.Errorf("database: save role %s: %w", seed.name, err)
			}
		}

		// Roles outside the seed table must not keep the default flag.
		names := make([]string, len(roleSeeds))
		for i, seed := range roleSeeds {
			names[i] = seed.name
		}
		return tx.Model(&models.Role{}).
			Where("name NOT IN ? AND is_default = ?", names, true).
			Update("is_default", false).Error
	})
}

func RoleByName(db *gorm.DB, name string) (*models.Role, error) {
	var role models.Role
	if err := db.Where("name = ?", name).First(&role).Error; err != nil {
		return nil, err
	}
	return &role, nil
}

func DefaultRole(db *gorm.DB) (*models.Role, error) {
	var role models.Role
	if err := db.Where("is_default = ?", true).First(&role).Error; err != nil {
		return nil, err
	}
	return &role, nil
}

func ListRoles(db *gorm.DB) ([]models.Role, error) {
	var roles []models.Role
	err := db.Order("permissions ASC").Find(&roles).Error
	return roles, err
}
