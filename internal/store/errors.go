package store

import "errors"

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailTaken         = errors.New("email already registered")
	ErrWeakPassword       = errors.New("password too weak")
	ErrSessionNotFound    = errors.New("session not found")
	ErrRoleNotFound       = errors.New("role record not found")
)
