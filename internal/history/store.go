package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Store is the SQLite-backed journal.
type Store struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// Commit is one pack committed during a run.
type Commit struct {
	ID           int64
	RunID        string
	Root         string
	Pack         string
	LedgerDir    string
	LedgerAction string
	Delta        float64
	Precision    int
	CommittedAt  time.Time
	Changes      []Change
}

// Change is one chart rewritten as part of a commit.
type Change struct {
	Song      string
	File      string
	Path      string
	Previous  string
	Current   string
	Encoding  string
	Reencoded bool
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

// Open creates or connects to the journal at path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("history path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path, now: time.Now}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the journal location.
func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Append stores commit and its changes in one transaction and returns the new
// commit ID. A zero CommittedAt is stamped with the current time.
func (s *Store) Append(ctx context.Context, commit Commit) (int64, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if commit.CommittedAt.IsZero() {
		commit.CommittedAt = s.now()
	}

	var id int64
	err := retryOnBusy(ctx, func() error {
		var txErr error
		id, txErr = s.append(ctx, commit)
		return txErr
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (s *Store) append(ctx context.Context, commit Commit) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin history tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO commits (run_id, root, pack, ledger_dir, ledger_action, delta, field_precision, committed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		commit.RunID, commit.Root, commit.Pack, commit.LedgerDir, commit.LedgerAction,
		commit.Delta, commit.Precision, commit.CommittedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("insert commit: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("commit id: %w", err)
	}

	for _, change := range commit.Changes {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO changes (commit_id, song, file, path, previous_field, new_field, encoding, reencoded)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			id, change.Song, change.File, change.Path, change.Previous, change.Current,
			change.Encoding, boolToInt(change.Reencoded),
		); err != nil {
			return 0, fmt.Errorf("insert change for %s: %w", change.Path, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit history tx: %w", err)
	}
	return id, nil
}

// Recent returns up to limit commits, newest first, with their changes.
// A non-positive limit returns every commit.
func (s *Store) Recent(ctx context.Context, limit int) ([]Commit, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	query := `SELECT id, run_id, root, pack, ledger_dir, ledger_action, delta, field_precision, committed_at
		FROM commits ORDER BY id DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list commits: %w", err)
	}
	defer rows.Close()

	var commits []Commit
	for rows.Next() {
		var (
			commit      Commit
			committedAt string
		)
		if err := rows.Scan(
			&commit.ID, &commit.RunID, &commit.Root, &commit.Pack, &commit.LedgerDir,
			&commit.LedgerAction, &commit.Delta, &commit.Precision, &committedAt,
		); err != nil {
			return nil, fmt.Errorf("scan commit: %w", err)
		}
		if ts, parseErr := time.Parse(time.RFC3339Nano, committedAt); parseErr == nil {
			commit.CommittedAt = ts
		}
		commits = append(commits, commit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate commits: %w", err)
	}
	rows.Close()

	for i := range commits {
		changes, err := s.changes(ctx, commits[i].ID)
		if err != nil {
			return nil, err
		}
		commits[i].Changes = changes
	}
	return commits, nil
}

func (s *Store) changes(ctx context.Context, commitID int64) ([]Change, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT song, file, path, previous_field, new_field, encoding, reencoded
		 FROM changes WHERE commit_id = ? ORDER BY id`, commitID)
	if err != nil {
		return nil, fmt.Errorf("list changes: %w", err)
	}
	defer rows.Close()

	var changes []Change
	for rows.Next() {
		var (
			change    Change
			reencoded int
		)
		if err := rows.Scan(
			&change.Song, &change.File, &change.Path, &change.Previous,
			&change.Current, &change.Encoding, &reencoded,
		); err != nil {
			return nil, fmt.Errorf("scan change: %w", err)
		}
		change.Reencoded = reencoded != 0
		changes = append(changes, change)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate changes: %w", err)
	}
	return changes, nil
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
