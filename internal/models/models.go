package models

import (
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"gorm.io/gorm"

	"github.com/securewatch/securewatch/internal/rbac"
)

// BaseModel provides common fields and auto-generated ULID for all models
type BaseModel struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(26)"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// BeforeCreate generates a ULID for the ID field if it's empty
func (b *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = ulid.Make().String()
	}
	return nil
}

// User is an account known to the auth stub
type User struct {
	BaseModel
	Email           string     `json:"email" gorm:"unique;not null"`
	PasswordHash    string     `json:"-" gorm:"not null"`
	FirstName       string     `json:"first_name"`
	LastName        string     `json:"last_name"`
	Role            rbac.Role  `json:"role" gorm:"type:varchar(32);not null;default:viewer"`
	IsActive        bool       `json:"is_active" gorm:"not null;default:true"`
	IsEmailVerified bool       `json:"is_email_verified" gorm:"not null;default:false"`
	LastLoginAt     *time.Time `json:"last_login_at"`
	UpdatedAt       time.Time  `json:"updated_at" gorm:"autoUpdateTime"`
}

// FullName joins first and last name
func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// SplitName splits "Ada Lovelace Byron" into "Ada" and "Lovelace Byron"
func SplitName(name string) (first, last string) {
	name = strings.TrimSpace(name)
	first, last, _ = strings.Cut(name, " ")
	return first, strings.TrimSpace(last)
}

// AutoMigrate runs database migrations for all models
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&User{})
}
