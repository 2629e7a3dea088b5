package models

import "time"

// UserUpdate is a partial profile update. Nil fields are left untouched.
type UserUpdate struct {
	Name           *string
	Username       *string
	PhoneNumber    *string
	DOB            *time.Time
	Gender         *string
	PasswordHash   *string
	AvatarData     []byte
	AvatarMimeType *string
}

// OAuthProfile is the validated identity a provider callback resolves to
// before it reaches the session service.
type OAuthProfile struct {
	Provider   string
	ProviderID string
	Email      string
	Name       string
	AvatarURL  string
}
