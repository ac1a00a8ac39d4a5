package store

import "errors"

var (
	ErrTicketNotFound  = errors.New("ticket not found")
	ErrInvalidStatus   = errors.New("invalid status")
	ErrSessionNotFound = errors.New("session not found")
	ErrAccessDenied    = errors.New("access denied")
	ErrPoolTimeout     = errors.New("connection pool timeout")
)
