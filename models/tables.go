package models

import "time"

type Role struct {
	ID          uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	Name        string     `gorm:"size:64;uniqueIndex;not null" json:"name"`
	IsDefault   bool       `gorm:"index;default:false" json:"is_default"` // at most one role is the default
	Permissions Permission `gorm:"not null;default:0" json:"permissions"`
}

type User struct {
	ID           uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Username     string    `gorm:"size:64;uniqueIndex;not null" json:"username"`
	Email        string    `gorm:"size:64;uniqueIndex;not null" json:"email"`
	PasswordHash string    `gorm:"size:128" json:"-"`
	RoleID       *uint     `gorm:"not null;index" json:"role_id"`
	Role         *Role     `gorm:"constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"role,omitempty"`
	Confirmed    bool      `gorm:"default:false" json:"confirmed"` // false until a confirmation token is redeemed
	Name         string    `gorm:"size:64" json:"name"`
	Location     string    `gorm:"size:64" json:"location"`
	Bio          string    `gorm:"type:text" json:"bio"`
	MemberSince  time.Time `json:"member_since"`
	LastSeen     time.Time `json:"last_seen"`
	AvatarHash   string    `gorm:"size:32" json:"avatar_hash"`
}

// Follow is a directed edge of the social graph: Follower follows Followed.
type Follow struct {
	FollowerID uint      `gorm:"primaryKey;autoIncrement:false" json:"follower_id"`
	FollowedID uint      `gorm:"primaryKey;autoIncrement:false;index" json:"followed_id"`
	CreatedAt  time.Time `json:"created_at"`
	Follower   *User     `gorm:"foreignKey:FollowerID;constraint:OnDelete:CASCADE" json:"-"`
	Followed   *User     `gorm:"foreignKey:FollowedID;constraint:OnDelete:CASCADE" json:"-"`
}

type Composition struct {
	ID          uint        `gorm:"primaryKey;autoIncrement" json:"id"`
	ReleaseType ReleaseType `gorm:"not null;default:1" json:"release_type"`
	Title       string      `gorm:"size:64;not null" json:"title"`
	Description string      `gorm:"type:text" json:"description"` // markdown
	CreatedAt   time.Time   `gorm:"index" json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
	AuthorID    uint        `gorm:"not null;index" json:"author_id"`
	Author      *User       `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
	Slug        *string     `gorm:"size:128;uniqueIndex" json:"slug"` // nil until the row has an id
}
