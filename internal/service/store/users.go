package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"chathub/internal/models"
)

const bcryptCost = bcrypt.DefaultCost

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// nullableEmail maps an empty email to NULL so the unique index does
// not collide for accounts created without one.
func nullableEmail(email string) any {
	if email == "" {
		return nil
	}
	return email
}

// CreateUser inserts a user with a bcrypt-hashed password. Plaintext is
// never retained.
func (s *Service) CreateUser(ctx context.Context, username, email, password string, isAdmin bool) (*models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, errors.New("username and password are required")
	}
	if taken, err := s.usernameTaken(ctx, username); err != nil {
		return nil, err
	} else if taken {
		return nil, ErrDuplicateUsername
	}
	if email != "" {
		if taken, err := s.emailTaken(ctx, email); err != nil {
			return nil, err
		} else if taken {
			return nil, ErrDuplicateEmail
		}
	}

	hash, err := hashPassword(password)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	id, err := s.db.InsertID(ctx,
		`INSERT INTO users (username, email, password_hash, is_active, is_admin, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		username, nullableEmail(email), hash, true, isAdmin, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return s.GetUserByID(ctx, id)
}

// Authenticate verifies the stored hash against the supplied password.
// Unknown user and wrong password are indistinguishable to the caller;
// the distinction is only logged.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	user, err := s.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			log.WithField("username", username).Warn("login failed: user not found")
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		log.WithField("username", username).Warn("login failed: invalid password")
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// GetUserByUsername returns the user and their roles.
func (s *Service) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.getUser(ctx, `WHERE username = ?`, username)
}

// GetUserByID returns the user and their roles.
func (s *Service) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	return s.getUser(ctx, `WHERE id = ?`, id)
}

func (s *Service) getUser(ctx context.Context, where string, arg any) (*models.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, username, email, password_hash, is_active, is_admin, created_at, updated_at
		 FROM users `+where, arg,
	)
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query user: %w", err)
	}
	roles, err := s.loadUserRoles(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	user.Roles = roles
	return user, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	var (
		user  models.User
		email sql.NullString
	)
	err := row.Scan(&user.ID, &user.Username, &email, &user.PasswordHash,
		&user.IsActive, &user.IsAdmin, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return nil, err
	}
	user.Email = email.String
	return &user, nil
}

// ListUsers returns a page of users ordered by id, roles included.
func (s *Service) ListUsers(ctx context.Context, skip, limit int) ([]models.User, error) {
	if limit <= 0 {
		limit = 100
	}
	if skip < 0 {
		skip = 0
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, username, email, password_hash, is_active, is_admin, created_at, updated_at
		 FROM users ORDER BY id LIMIT ? OFFSET ?`, limit, skip,
	)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := make([]models.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, *user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range users {
		roles, err := s.loadUserRoles(ctx, users[i].ID)
		if err != nil {
			return nil, err
		}
		users[i].Roles = roles
	}
	return users, nil
}

// UserUpdate carries optional replacements for mutable user fields.
// A nil field is left untouched; a non-nil RoleIDs replaces the whole
// role set rather than merging.
type UserUpdate struct {
	Username *string `json:"username"`
	Email    *string `json:"email"`
	Password *string `json:"password"`
	IsActive *bool   `json:"is_active"`
	RoleIDs  []int64 `json:"role_ids"`
}

// UpdateUser applies the update field by field. Password changes are
// re-hashed before storage.
func (s *Service) UpdateUser(ctx context.Context, id int64, upd UserUpdate) (*models.User, error) {
	existing, err := s.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}

	sets := make([]string, 0, 5)
	args := make([]any, 0, 6)
	if upd.Username != nil && *upd.Username != existing.Username {
		if taken, err := s.usernameTaken(ctx, *upd.Username); err != nil {
			return nil, err
		} else if taken {
			return nil, ErrDuplicateUsername
		}
		sets = append(sets, "username = ?")
		args = append(args, *upd.Username)
	}
	if upd.Email != nil && *upd.Email != existing.Email {
		if *upd.Email != "" {
			if taken, err := s.emailTaken(ctx, *upd.Email); err != nil {
				return nil, err
			} else if taken {
				return nil, ErrDuplicateEmail
			}
		}
		sets = append(sets, "email = ?")
		args = append(args, nullableEmail(*upd.Email))
	}
	if upd.Password != nil {
		hash, err := hashPassword(*upd.Password)
		if err != nil {
			return nil, err
		}
		sets = append(sets, "password_hash = ?")
		args = append(args, hash)
	}
	if upd.IsActive != nil {
		sets = append(sets, "is_active = ?")
		args = append(args, *upd.IsActive)
	}

	if len(sets) > 0 {
		sets = append(sets, "updated_at = ?")
		args = append(args, time.Now().UTC())
		args = append(args, id)
		query := fmt.Sprintf(`UPDATE users SET %s WHERE id = ?`, strings.Join(sets, ", "))
		if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
			return nil, fmt.Errorf("update user: %w", err)
		}
	}
	if upd.RoleIDs != nil {
		if err := s.replaceUserRoles(ctx, id, upd.RoleIDs); err != nil {
			return nil, err
		}
	}
	return s.GetUserByID(ctx, id)
}

// UserSpec is one entry of a bulk creation request.
type UserSpec struct {
	Username string `json:"username"`
	Password string `json:"password"`
	IsAdmin  bool   `json:"is_admin"`
}

type BulkFailure struct {
	User  UserSpec `json:"user"`
	Error string   `json:"error"`
}

// BulkResult separates per-item outcomes of a bulk creation.
type BulkResult struct {
	Success []UserSpec    `json:"success"`
	Failed  []BulkFailure `json:"failed"`
}

// BulkCreateUsers creates each spec independently: one failed item does
// not abort the batch. Every created user gets the default "user" role.
func (s *Service) BulkCreateUsers(ctx context.Context, specs []UserSpec) (*BulkResult, error) {
	result := &BulkResult{Success: []UserSpec{}, Failed: []BulkFailure{}}
	for _, spec := range specs {
		if err := s.bulkCreateOne(ctx, spec); err != nil {
			result.Failed = append(result.Failed, BulkFailure{User: spec, Error: err.Error()})
			continue
		}
		result.Success = append(result.Success, spec)
	}
	return result, nil
}

func (s *Service) bulkCreateOne(ctx context.Context, spec UserSpec) error {
	if strings.TrimSpace(spec.Username) == "" || spec.Password == "" {
		return errors.New("username and password are required")
	}
	if taken, err := s.usernameTaken(ctx, spec.Username); err != nil {
		return err
	} else if taken {
		return ErrDuplicateUsername
	}
	defaultRole, err := s.getRoleByName(ctx, "user")
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return errors.New("default user role not found")
		}
		return err
	}
	hash, err := hashPassword(spec.Password)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	id, err := s.db.InsertID(ctx,
		`INSERT INTO users (username, email, password_hash, is_active, is_admin, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		spec.Username, nil, hash, true, spec.IsAdmin, now, now,
	)
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO user_roles (user_id, role_id) VALUES (?, ?)`, id, defaultRole.ID,
	); err != nil {
		return fmt.Errorf("attach default role: %w", err)
	}
	return nil
}

func (s *Service) usernameTaken(ctx context.Context, username string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM users WHERE username = ?)`, username,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check username: %w", err)
	}
	return exists, nil
}

func (s *Service) emailTaken(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM users WHERE email = ?)`, email,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check email: %w", err)
	}
	return exists, nil
}
