package store

import (
	"errors"

	"chathub/internal/storage"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrDuplicateUsername  = errors.New("username already exists")
	ErrDuplicateEmail     = errors.New("email already exists")
	ErrInvalidCredentials = errors.New("incorrect username or password")
)

// Service persists users, roles, and conversations.
type Service struct {
	db *storage.DB
}

// NewService builds a store service over the opened database.
func NewService(db *storage.DB) *Service {
	return &Service{db: db}
}
