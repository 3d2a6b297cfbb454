package store

import (
	"context"
	"errors"
	"testing"
)

func TestCreateUserAndAuthenticate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	user, err := s.CreateUser(ctx, "alice", "alice@example.com", "s3cret", false)
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if user.ID == 0 || user.Username != "alice" || user.Email != "alice@example.com" {
		t.Fatalf("unexpected user: %+v", user)
	}
	if !user.IsActive || user.IsAdmin {
		t.Fatalf("unexpected flags: active=%v admin=%v", user.IsActive, user.IsAdmin)
	}
	if user.PasswordHash == "s3cret" || user.PasswordHash == "" {
		t.Fatal("password must be stored hashed")
	}

	got, err := s.Authenticate(ctx, "alice", "s3cret")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if got.ID != user.ID {
		t.Fatalf("authenticated id = %d, want %d", got.ID, user.ID)
	}

	if _, err := s.Authenticate(ctx, "alice", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("wrong password: err = %v, want ErrInvalidCredentials", err)
	}
	// Unknown user fails with the same error as a wrong password.
	if _, err := s.Authenticate(ctx, "nobody", "s3cret"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("unknown user: err = %v, want ErrInvalidCredentials", err)
	}
}

func TestCreateUserDuplicates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.CreateUser(ctx, "alice", "alice@example.com", "pw", false); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if _, err := s.CreateUser(ctx, "alice", "", "pw", false); !errors.Is(err, ErrDuplicateUsername) {
		t.Fatalf("duplicate username: err = %v", err)
	}
	if _, err := s.CreateUser(ctx, "bob", "alice@example.com", "pw", false); !errors.Is(err, ErrDuplicateEmail) {
		t.Fatalf("duplicate email: err = %v", err)
	}
	// Empty emails are stored as NULL and never collide.
	if _, err := s.CreateUser(ctx, "carol", "", "pw", false); err != nil {
		t.Fatalf("first empty email: %v", err)
	}
	if _, err := s.CreateUser(ctx, "dave", "", "pw", false); err != nil {
		t.Fatalf("second empty email: %v", err)
	}
}

func TestUpdateUser(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if err := s.SeedDefaults(ctx); err != nil {
		t.Fatalf("SeedDefaults: %v", err)
	}

	user, err := s.CreateUser(ctx, "alice", "", "old-pw", false)
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	email := "alice@example.com"
	password := "new-pw"
	inactive := false
	updated, err := s.UpdateUser(ctx, user.ID, UserUpdate{
		Email:    &email,
		Password: &password,
		IsActive: &inactive,
	})
	if err != nil {
		t.Fatalf("UpdateUser: %v", err)
	}
	if updated.Email != email {
		t.Errorf("email = %q, want %q", updated.Email, email)
	}
	if updated.IsActive {
		t.Error("user should be inactive")
	}
	if _, err := s.Authenticate(ctx, "alice", "new-pw"); err != nil {
		t.Errorf("authenticate with new password: %v", err)
	}
	if _, err := s.Authenticate(ctx, "alice", "old-pw"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("old password still accepted: err = %v", err)
	}

	// Non-nil RoleIDs replaces the full role set.
	roles, err := s.ListRoles(ctx, 0, 10)
	if err != nil {
		t.Fatalf("ListRoles: %v", err)
	}
	var adminRoleID int64
	for _, role := range roles {
		if role.Name == "admin" {
			adminRoleID = role.ID
		}
	}
	if adminRoleID == 0 {
		t.Fatal("admin role not seeded")
	}
	updated, err = s.UpdateUser(ctx, user.ID, UserUpdate{RoleIDs: []int64{adminRoleID}})
	if err != nil {
		t.Fatalf("UpdateUser roles: %v", err)
	}
	if len(updated.Roles) != 1 || updated.Roles[0].Name != "admin" {
		t.Fatalf("roles = %+v, want single admin role", updated.Roles)
	}

	if _, err := s.UpdateUser(ctx, 9999, UserUpdate{Email: &email}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown user: err = %v, want ErrNotFound", err)
	}
}

func TestBulkCreateUsers(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if err := s.SeedDefaults(ctx); err != nil {
		t.Fatalf("SeedDefaults: %v", err)
	}
	if _, err := s.CreateUser(ctx, "taken", "", "pw", false); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	result, err := s.BulkCreateUsers(ctx, []UserSpec{
		{Username: "u1", Password: "pw1"},
		{Username: "taken", Password: "pw2"},
		{Username: "u2", Password: "pw3", IsAdmin: true},
	})
	if err != nil {
		t.Fatalf("BulkCreateUsers: %v", err)
	}
	if len(result.Success) != 2 {
		t.Fatalf("success = %d, want 2", len(result.Success))
	}
	if len(result.Failed) != 1 || result.Failed[0].User.Username != "taken" {
		t.Fatalf("failed = %+v, want one entry for taken", result.Failed)
	}

	// Every bulk-created user gets the default role.
	u1, err := s.GetUserByUsername(ctx, "u1")
	if err != nil {
		t.Fatalf("GetUserByUsername: %v", err)
	}
	if len(u1.Roles) != 1 || u1.Roles[0].Name != "user" {
		t.Fatalf("roles = %+v, want default user role", u1.Roles)
	}
	u2, err := s.GetUserByUsername(ctx, "u2")
	if err != nil {
		t.Fatalf("GetUserByUsername: %v", err)
	}
	if !u2.IsAdmin {
		t.Error("u2 should be admin")
	}
}

func TestListUsersPaging(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, name := range []string{"a", "b", "c", "d"} {
		if _, err := s.CreateUser(ctx, name, "", "pw", false); err != nil {
			t.Fatalf("CreateUser %s: %v", name, err)
		}
	}
	page, err := s.ListUsers(ctx, 1, 2)
	if err != nil {
		t.Fatalf("ListUsers: %v", err)
	}
	if len(page) != 2 || page[0].Username != "b" || page[1].Username != "c" {
		t.Fatalf("page = %+v, want [b c]", page)
	}
}

func TestSeedDefaultsIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.SeedDefaults(ctx); err != nil {
		t.Fatalf("first seed: %v", err)
	}
	if err := s.SeedDefaults(ctx); err != nil {
		t.Fatalf("second seed: %v", err)
	}

	admin, err := s.Authenticate(ctx, "admin", "admin123")
	if err != nil {
		t.Fatalf("authenticate seeded admin: %v", err)
	}
	if !admin.IsAdmin {
		t.Error("seeded admin must have is_admin set")
	}
	hasAdminRole := false
	for _, role := range admin.Roles {
		if role.Name == "admin" {
			hasAdminRole = true
		}
	}
	if !hasAdminRole {
		t.Errorf("admin roles = %+v, want admin role attached", admin.Roles)
	}

	roles, err := s.ListRoles(ctx, 0, 10)
	if err != nil {
		t.Fatalf("ListRoles: %v", err)
	}
	if len(roles) != 2 {
		t.Fatalf("roles = %d, want exactly 2 after double seed", len(roles))
	}
}
