package model

import "time"

// Role is the closed set of roles a user can hold.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// User represents a registered account.
type User struct {
	ID           uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	Name         string    `json:"name" gorm:"size:100;not null"`
	Email        string    `json:"email" gorm:"uniqueIndex;size:100;not null"`
	Phone        string    `json:"phone" gorm:"uniqueIndex;size:15;not null"`
	PasswordHash string    `json:"-" gorm:"column:password;size:255;not null"` // Never expose in JSON
	ProfileImage *string   `json:"profile_image" gorm:"size:255"`
	Address      *string   `json:"address" gorm:"size:150"`
	State        string    `json:"state" gorm:"size:50;not null"`
	City         string    `json:"city" gorm:"size:50;not null"`
	Country      string    `json:"country" gorm:"size:50;not null"`
	Pincode      string    `json:"pincode" gorm:"size:10;not null"`
	Role         Role      `json:"role" gorm:"type:varchar(10);not null;default:user;index"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// IsAdmin reports whether the user holds the admin role. Unknown roles are not admin.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
