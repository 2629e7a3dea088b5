package models

import "time"

const (
	RoleUser       = "USER"
	RoleTeacher    = "TEACHER"
	RoleHOD        = "HOD"
	RoleDean       = "DEAN"
	RoleAdmin      = "ADMIN"
	RoleSuperAdmin = "SUPER_ADMIN"
)

const (
	ProviderLocal  = "LOCAL"
	ProviderGoogle = "GOOGLE"
	ProviderGithub = "GITHUB"
)

// User is the single identity record shared by local and OAuth logins.
// Email is the merge key: an OAuth login for an email that already has a
// local account updates that record instead of creating a second identity.
type User struct {
	ID           string `gorm:"primaryKey"               json:"id"`
	Email        string `gorm:"uniqueIndex;not null"     json:"email"`
	// nullable so accounts without a username do not collide on the index
	Username *string `gorm:"uniqueIndex"              json:"username,omitempty"`
	Name         string `gorm:"not null"                 json:"name"`
	PasswordHash string `json:"-"`
	Role         string `gorm:"not null;default:USER"    json:"role"`
	Provider     string `gorm:"not null;default:LOCAL"   json:"provider"`
	ProviderID   string `json:"-"`
	IsActive     bool   `gorm:"not null;default:true"    json:"isActive"`

	PhoneNumber    string     `json:"phoneNumber,omitempty"`
	DOB            *time.Time `json:"dob,omitempty"`
	Gender         string     `json:"gender,omitempty"`
	AvatarURL      string     `json:"avatarUrl,omitempty"`
	AvatarData     []byte     `json:"-"`
	AvatarMimeType string     `json:"-"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// HasPassword reports whether the account can do password login at all.
// Pure-OAuth accounts have no hash stored.
func (u *User) HasPassword() bool { return u.PasswordHash != "" }
