package responder

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fluxorio/taskpool/pkg/db"
)

// Page names stored in the pages table.
const (
	PageIndex    = "index"
	PageNotFound = "404"
)

// SQLSource reads pages from a table with (name, body) columns.
type SQLSource struct {
	pool  *db.Pool
	table string
}

// NewSQLSource returns a source backed by table in pool.
func NewSQLSource(pool *db.Pool, table string) *SQLSource {
	if pool == nil {
		panic("sql page source requires a pool")
	}
	if table == "" {
		table = "pages"
	}
	return &SQLSource{pool: pool, table: table}
}

// Migrate creates the pages table if it does not exist.
func (s *SQLSource) Migrate(ctx context.Context) error {
	stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	name TEXT PRIMARY KEY,
	body TEXT NOT NULL
)`, s.table)
	if _, err := s.pool.DB().ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("migrate %s: %w", s.table, err)
	}
	return nil
}

// Put inserts or replaces a page body.
func (s *SQLSource) Put(ctx context.Context, name string, body []byte) error {
	stmt := fmt.Sprintf(
		"INSERT INTO %s (name, body) VALUES (%s, %s) ON CONFLICT (name) DO UPDATE SET body = excluded.body",
		s.table, s.pool.Placeholder(1), s.pool.Placeholder(2))
	if _, err := s.pool.DB().ExecContext(ctx, stmt, name, string(body)); err != nil {
		return fmt.Errorf("put page %q: %w", name, err)
	}
	return nil
}

// Seed stores both pages of p.
func (s *SQLSource) Seed(ctx context.Context, p Pages) error {
	if err := s.Put(ctx, PageIndex, p.Index); err != nil {
		return err
	}
	return s.Put(ctx, PageNotFound, p.NotFound)
}

// Load implements PageSource.
func (s *SQLSource) Load(ctx context.Context) (Pages, error) {
	index, err := s.get(ctx, PageIndex)
	if err != nil {
		return Pages{}, err
	}
	notFound, err := s.get(ctx, PageNotFound)
	if err != nil {
		return Pages{}, err
	}
	return Pages{Index: index, NotFound: notFound}, nil
}

func (s *SQLSource) get(ctx context.Context, name string) ([]byte, error) {
	query := fmt.Sprintf("SELECT body FROM %s WHERE name = %s", s.table, s.pool.Placeholder(1))

	var body string
	err := s.pool.DB().QueryRowContext(ctx, query, name).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("page %q not found in %s", name, s.table)
	}
	if err != nil {
		return nil, fmt.Errorf("load page %q: %w", name, err)
	}
	return []byte(body), nil
}
