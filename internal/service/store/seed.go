package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
)

const (
	bootstrapAdminUsername = "admin"
	bootstrapAdminPassword = "admin123"
)

// SeedDefaults ensures the "admin" and "user" roles and the bootstrap
// admin account exist. Idempotent: safe to run on every startup.
func (s *Service) SeedDefaults(ctx context.Context) error {
	adminRoleID, err := s.ensureRole(ctx, "admin", "Administrator role")
	if err != nil {
		return err
	}
	if _, err := s.ensureRole(ctx, "user", "Regular user role"); err != nil {
		return err
	}

	var adminID int64
	err = s.db.QueryRowContext(ctx,
		`SELECT id FROM users WHERE username = ?`, bootstrapAdminUsername,
	).Scan(&adminID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("check admin user: %w", err)
	}

	hash, err := hashPassword(bootstrapAdminPassword)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	adminID, err = s.db.InsertID(ctx,
		`INSERT INTO users (username, email, password_hash, is_active, is_admin, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		bootstrapAdminUsername, nil, hash, true, true, now, now,
	)
	if err != nil {
		return fmt.Errorf("create admin user: %w", err)
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO user_roles (user_id, role_id) VALUES (?, ?)`, adminID, adminRoleID,
	); err != nil {
		return fmt.Errorf("attach admin role: %w", err)
	}
	log.Info("created bootstrap admin user")
	return nil
}

func (s *Service) ensureRole(ctx context.Context, name, description string) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `SELECT id FROM roles WHERE name = ?`, name).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("check role %s: %w", name, err)
	}
	now := time.Now().UTC()
	id, err = s.db.InsertID(ctx,
		`INSERT INTO roles (name, description, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		name, description, now, now,
	)
	if err != nil {
		return 0, fmt.Errorf("create role %s: %w", name, err)
	}
	log.WithField("role", name).Info("created role")
	return id, nil
}
