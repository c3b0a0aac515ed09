package filesystem

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
)

var tableRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// SQL stores templates in a database table with the columns name and
// source. Queries use ? placeholders, as SQLite and MySQL drivers do.
type SQL struct {
	db    *sql.DB
	table string
}

// NewSQL creates a SQL file system over table.
func NewSQL(db *sql.DB, table string) (*SQL, error) {
	if table == "" {
		table = "templates"
	}
	if !tableRe.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &SQL{db: db, table: table}, nil
}

// EnsureSchema creates the table if it does not exist.
func (s *SQL) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	name TEXT PRIMARY KEY,
	source TEXT NOT NULL,
	updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
)`, s.table))
	return err
}

func (s *SQL) ReadTemplate(ctx context.Context, name string) (string, error) {
	if err := validateName(name); err != nil {
		return "", err
	}
	var source string
	err := s.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT source FROM %s WHERE name = ?`, s.table), name).Scan(&source)
	if errors.Is(err, sql.ErrNoRows) {
		return "", notFound(name)
	}
	if err != nil {
		return "", fmt.Errorf("reading template '%s': %w", name, err)
	}
	return source, nil
}

// WriteTemplate inserts or replaces the template name.
func (s *SQL) WriteTemplate(ctx context.Context, name, source string) error {
	if err := validateName(name); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(`INSERT INTO %s (name, source) VALUES (?, ?)
ON CONFLICT(name) DO UPDATE SET source = excluded.source, updated_at = CURRENT_TIMESTAMP`, s.table), name, source)
	if err != nil {
		return fmt.Errorf("writing template '%s': %w", name, err)
	}
	return nil
}

// Names lists the stored template names in order.
func (s *SQL) Names(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`SELECT name FROM %s ORDER BY name`, s.table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		names = append(names, n)
	}
	return names, rows.Err()
}
