package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/coverdesk/internal/permission"
)

type User struct {
	ID        snowflake.ID    `gorm:"primaryKey" json:"id"`
	Username  string          `gorm:"type:varchar(150);not null;uniqueIndex" json:"username"`
	FullName  string          `gorm:"type:varchar(200)" json:"full_name"`
	Email     string          `gorm:"type:varchar(254);not null" json:"email"`
	Role      permission.Role `gorm:"type:varchar(32);not null;index" json:"role"`
	IsActive  bool            `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time       `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time       `gorm:"not null" json:"updated_at"`
}

func (User) TableName() string { return "users" }

func (u User) Actor() permission.Actor {
	return permission.Actor{UserID: u.ID, Role: u.Role}
}

func (u User) DisplayName() string {
	if u.FullName != "" {
		return u.FullName
	}
	return u.Username
}
