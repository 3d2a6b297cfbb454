package storage

import (
	"context"
	"testing"

	"chathub/internal/config"
)

func TestNormalizeDriver(t *testing.T) {
	cases := map[string]string{
		"sqlite":     "sqlite3",
		"sqlite3":    "sqlite3",
		"Postgres":   "postgres",
		"postgresql": "postgres",
		"pq":         "postgres",
		"mysql":      "mysql",
	}
	for in, want := range cases {
		if got := normalizeDriver(in); got != want {
			t.Errorf("normalizeDriver(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRebind(t *testing.T) {
	pg := &DB{driver: "postgres"}
	got := pg.Rebind(`INSERT INTO t (a, b) VALUES (?, ?) ON CONFLICT DO NOTHING`)
	want := `INSERT INTO t (a, b) VALUES ($1, $2) ON CONFLICT DO NOTHING`
	if got != want {
		t.Errorf("Rebind = %q, want %q", got, want)
	}

	lite := &DB{driver: "sqlite3"}
	query := `SELECT * FROM t WHERE a = ?`
	if got := lite.Rebind(query); got != query {
		t.Errorf("non-postgres Rebind must be a no-op, got %q", got)
	}
}

func TestOpenAndMigrateSQLite(t *testing.T) {
	db, err := Open(config.DatabaseConfig{Driver: "sqlite3", DSN: ":memory:"})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(1)

	if err := Migrate(db); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	// Running migrations twice must be harmless.
	if err := Migrate(db); err != nil {
		t.Fatalf("second Migrate: %v", err)
	}

	ctx := context.Background()
	id, err := db.InsertID(ctx,
		`INSERT INTO roles (name, description, created_at, updated_at)
		 VALUES (?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)`, "tester", "test role")
	if err != nil {
		t.Fatalf("InsertID: %v", err)
	}
	if id == 0 {
		t.Fatal("expected generated id")
	}

	var name string
	if err := db.QueryRowContext(ctx, `SELECT name FROM roles WHERE id = ?`, id).Scan(&name); err != nil {
		t.Fatalf("query: %v", err)
	}
	if name != "tester" {
		t.Errorf("name = %q", name)
	}
}

func TestOpenUnsupportedDriver(t *testing.T) {
	if _, err := Open(config.DatabaseConfig{Driver: "oracle", DSN: "x"}); err == nil {
		t.Fatal("expected error for unsupported driver")
	}
}
