// Package sqlstore persists dialog session states in a SQL database.
// PostgreSQL (lib/pq) and SQLite (modernc.org/sqlite) are supported.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/lyoneil/Botpress/pkg/domain"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// DefaultTable holds one row per conversation.
const DefaultTable = "dialog_sessions"

// Dialect adapts queries to a database engine.
type Dialect struct {
	Name string
	// Placeholder returns the bind marker of the n-th argument, starting at 1.
	Placeholder func(n int) string
}

var (
	Postgres = Dialect{Name: DriverPostgres, Placeholder: func(n int) string { return "$" + strconv.Itoa(n) }}
	SQLite   = Dialect{Name: DriverSQLite, Placeholder: func(int) string { return "?" }}
)

// DialectFor returns the dialect of a driver name.
func DialectFor(driver string) (Dialect, error) {
	switch driver {
	case DriverPostgres:
		return Postgres, nil
	case DriverSQLite:
		return SQLite, nil
	default:
		return Dialect{}, fmt.Errorf("unsupported database driver: %s", driver)
	}
}

// Store implements ports.StateStore with database/sql.
type Store struct {
	db      *sql.DB
	dialect Dialect
	table   string
	now     func() time.Time
}

type Option func(*Store)

// WithTable overrides DefaultTable.
func WithTable(table string) Option {
	return func(s *Store) {
		if table != "" {
			s.table = table
		}
	}
}

// Open connects to the database, checks the connection and creates the table.
func Open(ctx context.Context, driver, dsn string, opts ...Option) (*Store, error) {
	dialect, err := DialectFor(driver)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := New(db, dialect, opts...)
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an open database.
func New(db *sql.DB, dialect Dialect, opts ...Option) *Store {
	s := &Store{
		db:      db,
		dialect: dialect,
		table:   DefaultTable,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) ph(n int) string {
	return s.dialect.Placeholder(n)
}

// Migrate creates the sessions table when missing.
func (s *Store) Migrate(ctx context.Context) error {
	query := "CREATE TABLE IF NOT EXISTS " + s.table + " (" +
		"id VARCHAR(255) PRIMARY KEY, " +
		"state TEXT NOT NULL, " +
		"modified_on TIMESTAMP NOT NULL)"
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create table %s: %w", s.table, err)
	}
	return nil
}

// Save upserts the session state.
func (s *Store) Save(ctx context.Context, sessionID string, state *domain.State) error {
	js, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	query := "INSERT INTO " + s.table + " (id, state, modified_on) VALUES (" +
		s.ph(1) + ", " + s.ph(2) + ", " + s.ph(3) + ") " +
		"ON CONFLICT (id) DO UPDATE SET state = excluded.state, modified_on = excluded.modified_on"

	if _, err := s.db.ExecContext(ctx, query, sessionID, string(js), s.now().UTC()); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// Load retrieves the session state.
func (s *Store) Load(ctx context.Context, sessionID string) (*domain.State, error) {
	query := "SELECT state FROM " + s.table + " WHERE id = " + s.ph(1)

	var raw string
	err := s.db.QueryRowContext(ctx, query, sessionID).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	var state domain.State
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal state: %w", err)
	}
	state.Normalize()
	return &state, nil
}

// Delete removes the session.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	query := "DELETE FROM " + s.table + " WHERE id = " + s.ph(1)
	if _, err := s.db.ExecContext(ctx, query, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// List returns the session ids ordered by id.
func (s *Store) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id FROM "+s.table+" ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
