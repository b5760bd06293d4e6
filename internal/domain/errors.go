package domain

import "errors"

// Sentinel errors returned by repositories and services. Handlers map them to
// HTTP status codes with errors.Is.
var (
	ErrNotFound           = errors.New("not found")
	ErrForbidden          = errors.New("forbidden")
	ErrEmailTaken         = errors.New("email already in use")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidEmail       = errors.New("invalid email address")
	ErrWeakPassword       = errors.New("password must be at least 8 characters and contain upper, lower, digit and special characters")
	ErrInvalidGrade       = errors.New("rating must be between 0 and 5")
	ErrAlreadyRated       = errors.New("book already rated by this user")
)
