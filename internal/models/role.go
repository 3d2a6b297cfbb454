package models

import "time"

// Role names a set of permissions. Users and roles are many-to-many,
// as are roles and permissions. Only is_admin on the user gates admin
// operations; the permission graph is stored but not enforced.
type Role struct {
	ID          int64        `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
	Permissions []Permission `json:"permissions,omitempty"`
}

// Permission is attached to roles only, never directly to users.
type Permission struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}
