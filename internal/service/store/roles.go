package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"chathub/internal/models"
)

// ListRoles returns a page of roles ordered by id, permissions included.
func (s *Service) ListRoles(ctx context.Context, skip, limit int) ([]models.Role, error) {
	if limit <= 0 {
		limit = 100
	}
	if skip < 0 {
		skip = 0
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, description, created_at, updated_at
		 FROM roles ORDER BY id LIMIT ? OFFSET ?`, limit, skip,
	)
	if err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}
	defer rows.Close()

	roles := make([]models.Role, 0)
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, fmt.Errorf("scan role: %w", err)
		}
		roles = append(roles, *role)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range roles {
		perms, err := s.loadRolePermissions(ctx, roles[i].ID)
		if err != nil {
			return nil, err
		}
		roles[i].Permissions = perms
	}
	return roles, nil
}

func scanRole(row rowScanner) (*models.Role, error) {
	var (
		role models.Role
		desc sql.NullString
	)
	if err := row.Scan(&role.ID, &role.Name, &desc, &role.CreatedAt, &role.UpdatedAt); err != nil {
		return nil, err
	}
	role.Description = desc.String
	return &role, nil
}

func (s *Service) getRoleByName(ctx context.Context, name string) (*models.Role, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, description, created_at, updated_at FROM roles WHERE name = ?`, name,
	)
	role, err := scanRole(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query role: %w", err)
	}
	return role, nil
}

func (s *Service) loadUserRoles(ctx context.Context, userID int64) ([]models.Role, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT r.id, r.name, r.description, r.created_at, r.updated_at
		 FROM roles r
		 JOIN user_roles ur ON ur.role_id = r.id
		 WHERE ur.user_id = ?
		 ORDER BY r.id`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("load user roles: %w", err)
	}
	defer rows.Close()

	roles := make([]models.Role, 0)
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, fmt.Errorf("scan role: %w", err)
		}
		roles = append(roles, *role)
	}
	return roles, rows.Err()
}

func (s *Service) loadRolePermissions(ctx context.Context, roleID int64) ([]models.Permission, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT p.id, p.name, p.description
		 FROM permissions p
		 JOIN role_permissions rp ON rp.permission_id = p.id
		 WHERE rp.role_id = ?
		 ORDER BY p.id`, roleID,
	)
	if err != nil {
		return nil, fmt.Errorf("load role permissions: %w", err)
	}
	defer rows.Close()

	perms := make([]models.Permission, 0)
	for rows.Next() {
		var (
			perm models.Permission
			desc sql.NullString
		)
		if err := rows.Scan(&perm.ID, &perm.Name, &desc); err != nil {
			return nil, fmt.Errorf("scan permission: %w", err)
		}
		perm.Description = desc.String
		perms = append(perms, perm)
	}
	return perms, rows.Err()
}

// replaceUserRoles swaps the user's role set for the roles among ids
// that actually exist. Unknown ids are dropped silently.
func (s *Service) replaceUserRoles(ctx context.Context, userID int64, roleIDs []int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM user_roles WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("clear user roles: %w", err)
	}
	if len(roleIDs) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(roleIDs)), ", ")
		args := make([]any, 0, len(roleIDs))
		for _, id := range roleIDs {
			args = append(args, id)
		}
		rows, err := tx.QueryContext(ctx,
			`SELECT id FROM roles WHERE id IN (`+placeholders+`)`, args...)
		if err != nil {
			return fmt.Errorf("resolve roles: %w", err)
		}
		var existing []int64
		for rows.Next() {
			var id int64
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return fmt.Errorf("scan role id: %w", err)
			}
			existing = append(existing, id)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return err
		}
		rows.Close()
		for _, roleID := range existing {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO user_roles (user_id, role_id) VALUES (?, ?)`, userID, roleID,
			); err != nil {
				return fmt.Errorf("attach role: %w", err)
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit role replace: %w", err)
	}
	return nil
}
