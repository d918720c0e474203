package models

import "time"

// Roles assignable to a user account. Role is fixed at creation time.
const (
	RoleAdmin  = "ADMIN"
	RoleUser   = "USER"
	RoleDoctor = "DOCTOR"
)

// User represents an account able to authenticate and participate in chat.
type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Username  string    `gorm:"size:128;uniqueIndex" json:"username"`
	Password  string    `gorm:"size:255" json:"-"`
	Phone     string    `gorm:"size:32;index" json:"phone,omitempty"`
	Name      string    `gorm:"size:255" json:"name"`
	Avatar    string    `gorm:"size:512" json:"avatar,omitempty"`
	Role      string    `gorm:"size:16;not null;default:USER" json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
