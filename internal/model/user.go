package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Built-in role names.
const (
	RoleAdmin     = "admin"
	RoleManager   = "manager"
	RoleFinance   = "finance"
	RolePurchaser = "purchaser"
	RoleStaff     = "staff"
)

// IsPrivilegedRole reports whether the role may act on requests it does not own.
func IsPrivilegedRole(role string) bool {
	return role == RoleAdmin || role == RoleManager
}

// User is an employee who raises, approves or fulfils requests.
type User struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Username  string         `gorm:"type:varchar(255);uniqueIndex;not null" json:"username"`
	Email     string         `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	FullName  string         `gorm:"type:varchar(255)" json:"full_name"`
	Password  string         `gorm:"type:varchar(255);not null" json:"-"`
	Role      string         `gorm:"type:varchar(50);not null" json:"role"`
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	assignID(&u.ID)
	return nil
}
