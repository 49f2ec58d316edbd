package service

import "errors"

var (
	// ErrInvalidCredentials is returned when a bearer token is missing, expired or malformed
	ErrInvalidCredentials = errors.New("invalid credentials")
)
