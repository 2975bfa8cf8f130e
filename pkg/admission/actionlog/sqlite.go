package actionlog

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// SQLiteStore implements Store using SQLite for persistence.
//
// Multiple server processes may share one database file; SQLite's WAL mode
// and busy timeout let concurrent writers proceed without application-level
// locking. Timestamps are stored as unix seconds (UTC) so that window
// predicates are integer comparisons and period sub-fields can be extracted
// with strftime.
type SQLiteStore struct {
	db        *sql.DB
	closeOnce sync.Once

	insertStmt *sql.Stmt
	countStmt  *sql.Stmt
	countAll   *sql.Stmt
	deleteStmt *sql.Stmt
}

// SQLiteConfig configures the SQLite action log store.
type SQLiteConfig struct {
	// Path is the path to the SQLite database file.
	Path string

	// BusyTimeout is how long to wait for locks before failing.
	// Default: 5 seconds
	BusyTimeout time.Duration

	// MaxOpenConns limits the connection pool size. Default: 4
	MaxOpenConns int
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS ratelimit_actions (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	action    TEXT NOT NULL,
	source    TEXT NOT NULL,
	timestamp INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_ratelimit_actions_key
	ON ratelimit_actions (action, source, timestamp);
`

// NewSQLiteStore opens (or creates) the action log database at path with
// default settings.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	return NewSQLiteStoreWithConfig(SQLiteConfig{Path: path})
}

// NewSQLiteStoreWithConfig opens the action log database with custom settings.
func NewSQLiteStoreWithConfig(cfg SQLiteConfig) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("db path cannot be empty")
	}
	if cfg.BusyTimeout == 0 {
		cfg.BusyTimeout = 5 * time.Second
	}
	if cfg.MaxOpenConns == 0 {
		cfg.MaxOpenConns = 4
	}

	// modernc's driver takes pragmas as _pragma=name(value) query
	// parameters; the mattn-style _journal_mode form is silently ignored.
	dsn := fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)&_pragma=synchronous(NORMAL)",
		cfg.Path, int(cfg.BusyTimeout.Milliseconds()))

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxOpenConns)
	db.SetConnMaxLifetime(0)

	s := &SQLiteStore{db: db}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	if err := s.prepareStatements(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare statements: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) prepareStatements() error {
	var err error

	s.insertStmt, err = s.db.Prepare(
		`INSERT INTO ratelimit_actions (action, source, timestamp) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}

	s.countStmt, err = s.db.Prepare(
		`SELECT COUNT(*) FROM ratelimit_actions WHERE action = ? AND source = ? AND timestamp > ?`)
	if err != nil {
		return fmt.Errorf("prepare count: %w", err)
	}

	s.countAll, err = s.db.Prepare(
		`SELECT COUNT(*) FROM ratelimit_actions WHERE action = ? AND source = ?`)
	if err != nil {
		return fmt.Errorf("prepare count all: %w", err)
	}

	s.deleteStmt, err = s.db.Prepare(
		`DELETE FROM ratelimit_actions WHERE action = ? AND timestamp < ?`)
	if err != nil {
		return fmt.Errorf("prepare delete: %w", err)
	}

	return nil
}

// Insert appends a record with the given timestamp.
func (s *SQLiteStore) Insert(ctx context.Context, action Action, source string, ts time.Time) error {
	if _, err := s.insertStmt.ExecContext(ctx, string(action), source, ts.UTC().Unix()); err != nil {
		return fmt.Errorf("%w: insert: %v", ErrStorageFailure, err)
	}
	return nil
}

// CountSince returns the number of records for (action, source) newer than
// since. A zero since counts the entire history.
func (s *SQLiteStore) CountSince(ctx context.Context, action Action, source string, since time.Time) (int64, error) {
	var (
		count int64
		err   error
	)
	if since.IsZero() {
		err = s.countAll.QueryRowContext(ctx, string(action), source).Scan(&count)
	} else {
		err = s.countStmt.QueryRowContext(ctx, string(action), source, since.UTC().Unix()).Scan(&count)
	}
	if err != nil {
		return 0, fmt.Errorf("%w: count: %v", ErrStorageFailure, err)
	}
	return count, nil
}

// CountInPeriod counts records in the lookback whose calendar sub-field
// matches (or differs from) the given period value.
func (s *SQLiteStore) CountInPeriod(ctx context.Context, action Action, source string, since time.Time, field PeriodField, period int, match bool) (int64, error) {
	format, err := strftimeFormat(field)
	if err != nil {
		return 0, err
	}
	op := "="
	if !match {
		op = "!="
	}

	// field and op come from closed sets above, never from caller input.
	query := fmt.Sprintf(
		`SELECT COUNT(*) FROM ratelimit_actions
		 WHERE action = ? AND source = ? AND timestamp > ?
		   AND CAST(strftime('%s', timestamp, 'unixepoch') AS INTEGER) %s ?`,
		format, op)

	var count int64
	if err := s.db.QueryRowContext(ctx, query,
		string(action), source, since.UTC().Unix(), period).Scan(&count); err != nil {
		return 0, fmt.Errorf("%w: period count: %v", ErrStorageFailure, err)
	}
	return count, nil
}

// DeleteBefore removes records for action older than cutoff.
func (s *SQLiteStore) DeleteBefore(ctx context.Context, action Action, cutoff time.Time) (int64, error) {
	res, err := s.deleteStmt.ExecContext(ctx, string(action), cutoff.UTC().Unix())
	if err != nil {
		return 0, fmt.Errorf("%w: delete: %v", ErrStorageFailure, err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%w: rows affected: %v", ErrStorageFailure, err)
	}
	return deleted, nil
}

// Close closes the prepared statements and the database.
func (s *SQLiteStore) Close() error {
	var err error
	s.closeOnce.Do(func() {
		for _, stmt := range []*sql.Stmt{s.insertStmt, s.countStmt, s.countAll, s.deleteStmt} {
			if stmt != nil {
				stmt.Close()
			}
		}
		err = s.db.Close()
	})
	return err
}

func strftimeFormat(field PeriodField) (string, error) {
	switch field {
	case FieldMonth:
		return "%m", nil
	case FieldDay:
		return "%d", nil
	case FieldMinute:
		return "%M", nil
	default:
		return "", fmt.Errorf("unknown period field %q", field)
	}
}
