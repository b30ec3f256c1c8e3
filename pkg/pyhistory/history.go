// Package pyhistory records an append-only log of breakpoint and step
// hits to a SQL store, picking the driver from the DSN's scheme the same
// way this repo's other storage packages split one concern across
// multiple blank-imported drivers.
package pyhistory

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Row is one recorded hit.
type Row struct {
	SessionID string
	Line      int
	HitCount  int
	Timestamp time.Time
}

// Store wraps a database/sql handle plus the driver-specific placeholder
// style (sqlite/mysql use "?", postgres uses "$1").
type Store struct {
	db       *sql.DB
	postgres bool
}

// Open parses dsn's scheme (sqlite://, postgres://, mysql://) to pick a
// driver, opens the connection, and ensures the hits table exists.
func Open(dsn string) (*Store, error) {
	driver, dataSource, postgres, err := splitDSN(dsn)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(driver, dataSource)
	if err != nil {
		return nil, fmt.Errorf("opening history store: %w", err)
	}
	s := &Store{db: db, postgres: postgres}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func splitDSN(dsn string) (driver, dataSource string, postgres bool, err error) {
	switch {
	case strings.HasPrefix(dsn, "sqlite://"):
		return "sqlite", strings.TrimPrefix(dsn, "sqlite://"), false, nil
	case strings.HasPrefix(dsn, "postgres://"):
		return "postgres", dsn, true, nil
	case strings.HasPrefix(dsn, "mysql://"):
		return "mysql", strings.TrimPrefix(dsn, "mysql://"), false, nil
	default:
		return "", "", false, fmt.Errorf("unrecognized history DSN scheme: %s", dsn)
	}
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS breakpoint_hits (
	session_id TEXT NOT NULL,
	line INTEGER NOT NULL,
	hit_count INTEGER NOT NULL,
	hit_at TIMESTAMP NOT NULL
)`)
	return err
}

// Record appends one hit row.
func (s *Store) Record(ctx context.Context, sessionID string, line, hitCount int, when time.Time) error {
	query := "INSERT INTO breakpoint_hits (session_id, line, hit_count, hit_at) VALUES (?, ?, ?, ?)"
	if s.postgres {
		query = "INSERT INTO breakpoint_hits (session_id, line, hit_count, hit_at) VALUES ($1, $2, $3, $4)"
	}
	_, err := s.db.ExecContext(ctx, query, sessionID, line, hitCount, when)
	return err
}

// Replay returns every recorded hit for sessionID, oldest first.
func (s *Store) Replay(ctx context.Context, sessionID string) ([]Row, error) {
	query := "SELECT session_id, line, hit_count, hit_at FROM breakpoint_hits WHERE session_id = ? ORDER BY hit_at"
	if s.postgres {
		query = "SELECT session_id, line, hit_count, hit_at FROM breakpoint_hits WHERE session_id = $1 ORDER BY hit_at"
	}
	rows, err := s.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Row
	for rows.Next() {
		var r Row
		if err := rows.Scan(&r.SessionID, &r.Line, &r.HitCount, &r.Timestamp); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) Close() error { return s.db.Close() }
