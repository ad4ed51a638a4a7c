package model

import (
	"time"

	"github.com/google/uuid"
)

// Role constants — closed set, no DB-driven permission tables
const (
	RoleSales    = "sales"
	RoleManager  = "manager"
	RoleAccounts = "accounts"
	RoleOther    = "other"
)

// ValidRole reports whether role is one of the known workflow roles
func ValidRole(role string) bool {
	return role == RoleSales || role == RoleManager || role == RoleAccounts || role == RoleOther
}

// User represents the central user entity for logic and database structure
type User struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Username  string    `gorm:"type:varchar(255);uniqueIndex;not null" json:"username"`
	Email     string    `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	Password  string    `gorm:"type:varchar(255);not null" json:"-"`   // Omit password from JSON requests/responses
	Role      string    `gorm:"type:varchar(50);not null" json:"role"` // sales, manager, accounts, other
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
