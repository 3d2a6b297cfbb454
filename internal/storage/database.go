package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"chathub/internal/config"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// DB wraps sql.DB with the driver name so queries written with `?`
// placeholders run unchanged against postgres.
type DB struct {
	*sql.DB
	driver string
}

// Open connects to the configured database and verifies the connection.
func Open(cfg config.DatabaseConfig) (*DB, error) {
	driver := normalizeDriver(cfg.Driver)
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database dsn must be provided")
	}

	var (
		db  *sql.DB
		err error
	)
	switch driver {
	case "sqlite3":
		db, err = sql.Open("sqlite3", cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("open sqlite database: %w", err)
		}
		if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enable sqlite foreign keys: %w", err)
		}
	case "mysql", "postgres":
		db, err = sql.Open(driver, cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("open %s database: %w", driver, err)
		}
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &DB{DB: db, driver: driver}, nil
}

func normalizeDriver(name string) string {
	switch strings.ToLower(name) {
	case "sqlite", "sqlite3":
		return "sqlite3"
	case "postgres", "postgresql", "pq":
		return "postgres"
	default:
		return strings.ToLower(name)
	}
}

// Driver reports the normalized driver name.
func (d *DB) Driver() string { return d.driver }

// Rebind rewrites `?` placeholders to `$1..$n` for postgres.
func (d *DB) Rebind(query string) string {
	if d.driver != "postgres" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (d *DB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return d.DB.ExecContext(ctx, d.Rebind(query), args...)
}

func (d *DB) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return d.DB.QueryContext(ctx, d.Rebind(query), args...)
}

func (d *DB) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return d.DB.QueryRowContext(ctx, d.Rebind(query), args...)
}

// InsertID runs an INSERT and returns the generated id. lib/pq has no
// LastInsertId, so postgres goes through RETURNING instead.
func (d *DB) InsertID(ctx context.Context, query string, args ...any) (int64, error) {
	return insertID(ctx, d, d.driver, query, args...)
}

// BeginTx starts a transaction carrying the same placeholder handling.
func (d *DB) BeginTx(ctx context.Context, opts *sql.TxOptions) (*Tx, error) {
	tx, err := d.DB.BeginTx(ctx, opts)
	if err != nil {
		return nil, err
	}
	return &Tx{Tx: tx, db: d}, nil
}

// Tx wraps sql.Tx with the owning DB's placeholder rewriting.
type Tx struct {
	*sql.Tx
	db *DB
}

func (t *Tx) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return t.Tx.ExecContext(ctx, t.db.Rebind(query), args...)
}

func (t *Tx) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return t.Tx.QueryContext(ctx, t.db.Rebind(query), args...)
}

func (t *Tx) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return t.Tx.QueryRowContext(ctx, t.db.Rebind(query), args...)
}

func (t *Tx) InsertID(ctx context.Context, query string, args ...any) (int64, error) {
	return insertID(ctx, t, t.db.driver, query, args...)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func insertID(ctx context.Context, e execer, driver, query string, args ...any) (int64, error) {
	if driver == "postgres" {
		var id int64
		if err := e.QueryRowContext(ctx, query+" RETURNING id", args...).Scan(&id); err != nil {
			return 0, err
		}
		return id, nil
	}
	res, err := e.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// Migrate ensures the required tables are present.
func Migrate(db *DB) error {
	var stmts []string
	switch db.driver {
	case "sqlite3":
		stmts = []string{
			`CREATE TABLE IF NOT EXISTS users (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				username TEXT NOT NULL UNIQUE,
				email TEXT UNIQUE,
				password_hash TEXT NOT NULL,
				is_active BOOLEAN NOT NULL DEFAULT 1,
				is_admin BOOLEAN NOT NULL DEFAULT 0,
				created_at DATETIME NOT NULL,
				updated_at DATETIME NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS roles (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				name TEXT NOT NULL UNIQUE,
				description TEXT,
				created_at DATETIME NOT NULL,
				updated_at DATETIME NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS permissions (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				name TEXT NOT NULL UNIQUE,
				description TEXT
			)`,
			`CREATE TABLE IF NOT EXISTS user_roles (
				user_id INTEGER NOT NULL,
				role_id INTEGER NOT NULL,
				PRIMARY KEY (user_id, role_id),
				FOREIGN KEY(user_id) REFERENCES users(id) ON DELETE CASCADE,
				FOREIGN KEY(role_id) REFERENCES roles(id) ON DELETE CASCADE
			)`,
			`CREATE TABLE IF NOT EXISTS role_permissions (
				role_id INTEGER NOT NULL,
				permission_id INTEGER NOT NULL,
				PRIMARY KEY (role_id, permission_id),
				FOREIGN KEY(role_id) REFERENCES roles(id) ON DELETE CASCADE,
				FOREIGN KEY(permission_id) REFERENCES permissions(id) ON DELETE CASCADE
			)`,
			`CREATE TABLE IF NOT EXISTS conversations (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				user_id INTEGER NOT NULL,
				title TEXT NOT NULL,
				created_at DATETIME NOT NULL,
				updated_at DATETIME NOT NULL,
				FOREIGN KEY(user_id) REFERENCES users(id) ON DELETE CASCADE
			)`,
			`CREATE TABLE IF NOT EXISTS messages (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				conversation_id INTEGER NOT NULL,
				role TEXT NOT NULL,
				content TEXT NOT NULL,
				created_at DATETIME NOT NULL,
				FOREIGN KEY(conversation_id) REFERENCES conversations(id) ON DELETE CASCADE
			)`,
			`CREATE INDEX IF NOT EXISTS idx_conversations_user ON conversations(user_id)`,
			`CREATE INDEX IF NOT EXISTS idx_conversations_created ON conversations(created_at DESC)`,
			`CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id)`,
		}
	case "mysql":
		stmts = []string{
			`CREATE TABLE IF NOT EXISTS users (
				id BIGINT NOT NULL AUTO_INCREMENT,
				username VARCHAR(255) NOT NULL UNIQUE,
				email VARCHAR(255) UNIQUE,
				password_hash VARCHAR(255) NOT NULL,
				is_active BOOLEAN NOT NULL DEFAULT TRUE,
				is_admin BOOLEAN NOT NULL DEFAULT FALSE,
				created_at DATETIME NOT NULL,
				updated_at DATETIME NOT NULL,
				PRIMARY KEY (id)
			) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
			`CREATE TABLE IF NOT EXISTS roles (
				id BIGINT NOT NULL AUTO_INCREMENT,
				name VARCHAR(255) NOT NULL UNIQUE,
				description VARCHAR(255),
				created_at DATETIME NOT NULL,
				updated_at DATETIME NOT NULL,
				PRIMARY KEY (id)
			) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
			`CREATE TABLE IF NOT EXISTS permissions (
				id BIGINT NOT NULL AUTO_INCREMENT,
				name VARCHAR(255) NOT NULL UNIQUE,
				description VARCHAR(255),
				PRIMARY KEY (id)
			) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
			`CREATE TABLE IF NOT EXISTS user_roles (
				user_id BIGINT NOT NULL,
				role_id BIGINT NOT NULL,
				PRIMARY KEY (user_id, role_id),
				CONSTRAINT fk_user_roles_user FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE,
				CONSTRAINT fk_user_roles_role FOREIGN KEY (role_id) REFERENCES roles(id) ON DELETE CASCADE
			) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
			`CREATE TABLE IF NOT EXISTS role_permissions (
				role_id BIGINT NOT NULL,
				permission_id BIGINT NOT NULL,
				PRIMARY KEY (role_id, permission_id),
				CONSTRAINT fk_role_permissions_role FOREIGN KEY (role_id) REFERENCES roles(id) ON DELETE CASCADE,
				CONSTRAINT fk_role_permissions_perm FOREIGN KEY (permission_id) REFERENCES permissions(id) ON DELETE CASCADE
			) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
			`CREATE TABLE IF NOT EXISTS conversations (
				id BIGINT NOT NULL AUTO_INCREMENT,
				user_id BIGINT NOT NULL,
				title VARCHAR(255) NOT NULL,
				created_at DATETIME NOT NULL,
				updated_at DATETIME NOT NULL,
				PRIMARY KEY (id),
				INDEX idx_conversations_user (user_id),
				INDEX idx_conversations_created (created_at),
				CONSTRAINT fk_conversations_user FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
			) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
			`CREATE TABLE IF NOT EXISTS messages (
				id BIGINT NOT NULL AUTO_INCREMENT,
				conversation_id BIGINT NOT NULL,
				role VARCHAR(50) NOT NULL,
				content MEDIUMTEXT NOT NULL,
				created_at DATETIME NOT NULL,
				PRIMARY KEY (id),
				INDEX idx_messages_conversation (conversation_id),
				CONSTRAINT fk_messages_conversation FOREIGN KEY (conversation_id) REFERENCES conversations(id) ON DELETE CASCADE
			) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
		}
	case "postgres":
		stmts = []string{
			`CREATE TABLE IF NOT EXISTS users (
				id BIGSERIAL PRIMARY KEY,
				username TEXT NOT NULL UNIQUE,
				email TEXT UNIQUE,
				password_hash TEXT NOT NULL,
				is_active BOOLEAN NOT NULL DEFAULT TRUE,
				is_admin BOOLEAN NOT NULL DEFAULT FALSE,
				created_at TIMESTAMPTZ NOT NULL,
				updated_at TIMESTAMPTZ NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS roles (
				id BIGSERIAL PRIMARY KEY,
				name TEXT NOT NULL UNIQUE,
				description TEXT,
				created_at TIMESTAMPTZ NOT NULL,
				updated_at TIMESTAMPTZ NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS permissions (
				id BIGSERIAL PRIMARY KEY,
				name TEXT NOT NULL UNIQUE,
				description TEXT
			)`,
			`CREATE TABLE IF NOT EXISTS user_roles (
				user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				role_id BIGINT NOT NULL REFERENCES roles(id) ON DELETE CASCADE,
				PRIMARY KEY (user_id, role_id)
			)`,
			`CREATE TABLE IF NOT EXISTS role_permissions (
				role_id BIGINT NOT NULL REFERENCES roles(id) ON DELETE CASCADE,
				permission_id BIGINT NOT NULL REFERENCES permissions(id) ON DELETE CASCADE,
				PRIMARY KEY (role_id, permission_id)
			)`,
			`CREATE TABLE IF NOT EXISTS conversations (
				id BIGSERIAL PRIMARY KEY,
				user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				title TEXT NOT NULL,
				created_at TIMESTAMPTZ NOT NULL,
				updated_at TIMESTAMPTZ NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS messages (
				id BIGSERIAL PRIMARY KEY,
				conversation_id BIGINT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
				role TEXT NOT NULL,
				content TEXT NOT NULL,
				created_at TIMESTAMPTZ NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_conversations_user ON conversations(user_id)`,
			`CREATE INDEX IF NOT EXISTS idx_conversations_created ON conversations(created_at DESC)`,
			`CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id)`,
		}
	default:
		return fmt.Errorf("unsupported driver for migration: %s", db.driver)
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate (%s): %w", db.driver, err)
		}
	}
	return nil
}
