package service

import "errors"

// Sentinel errors making up the session error taxonomy. The transport
// adapter maps these onto HTTP statuses; nothing else about an error
// crosses that boundary.
var (
	ErrConflict            = errors.New("already exists")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	ErrAccountDeactivated  = errors.New("account is deactivated")
	ErrWrongPassword       = errors.New("invalid current password")
	ErrNoPassword          = errors.New("user has no password set or does not exist")
	ErrNotFound            = errors.New("not found")
)
