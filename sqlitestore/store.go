package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"modernc.org/sqlite"
	sqlitelib "modernc.org/sqlite/lib"

	"github.com/veldran/twogate"
)

const createTableStmt = `
CREATE TABLE IF NOT EXISTS users (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	username         TEXT    NOT NULL UNIQUE,
	password_hash    TEXT    NOT NULL,
	otp_secret       TEXT    NOT NULL,
	failed_logins    INTEGER NOT NULL DEFAULT 0,
	locked_until     INTEGER NOT NULL DEFAULT 0,
	otp_last_counter INTEGER NOT NULL DEFAULT 0
)`

// upgradeColumns are added to databases created by earlier schema versions.
// PRAGMA table_info drives detection; the upgrade is idempotent.
var upgradeColumns = []struct {
	name string
	ddl  string
}{
	{"failed_logins", "ALTER TABLE users ADD COLUMN failed_logins INTEGER NOT NULL DEFAULT 0"},
	{"locked_until", "ALTER TABLE users ADD COLUMN locked_until INTEGER NOT NULL DEFAULT 0"},
	{"otp_last_counter", "ALTER TABLE users ADD COLUMN otp_last_counter INTEGER NOT NULL DEFAULT 0"},
}

// Store is a SQLite-backed credential store. Safe for concurrent use; the
// underlying *sql.DB pools connections and WAL mode keeps readers off the
// writer's lock.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (or creates) the database at path, applies the schema, and
// upgrades older databases that predate the lockout columns. An upgrade
// failure is fatal: the lockout policy cannot run against a partial schema.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	s := &Store{db: db, logger: logger}
	if err := s.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, createTableStmt); err != nil {
		return fmt.Errorf("create users table: %w", err)
	}

	existing, err := s.columnSet(ctx)
	if err != nil {
		return err
	}

	for _, col := range upgradeColumns {
		if existing[col.name] {
			continue
		}
		s.logger.Info("upgrading users schema", "column", col.name)
		if _, err := s.db.ExecContext(ctx, col.ddl); err != nil {
			return fmt.Errorf("add column %s: %w", col.name, err)
		}
	}

	return nil
}

func (s *Store) columnSet(ctx context.Context) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx, "PRAGMA table_info(users)")
	if err != nil {
		return nil, fmt.Errorf("inspect users schema: %w", err)
	}
	defer rows.Close()

	columns := make(map[string]bool)
	for rows.Next() {
		var (
			cid        int
			name, typ  string
			notNull    int
			defaultVal sql.NullString
			primaryKey int
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &defaultVal, &primaryKey); err != nil {
			return nil, fmt.Errorf("inspect users schema: %w", err)
		}
		columns[name] = true
	}

	return columns, rows.Err()
}

// Create inserts a new account with zeroed failure state.
func (s *Store) Create(ctx context.Context, username, passwordHash, otpSecret string) (twogate.Account, error) {
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO users (username, password_hash, otp_secret) VALUES (?, ?, ?)",
		username, passwordHash, otpSecret,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return twogate.Account{}, fmt.Errorf("%w: %s", twogate.ErrDuplicateUsername, username)
		}
		return twogate.Account{}, fmt.Errorf("insert account: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return twogate.Account{}, fmt.Errorf("insert account: %w", err)
	}

	return twogate.Account{
		ID:           id,
		Username:     username,
		PasswordHash: passwordHash,
		OTPSecret:    otpSecret,
	}, nil
}

// Find returns the account by username.
func (s *Store) Find(ctx context.Context, username string) (twogate.Account, error) {
	var acct twogate.Account
	err := s.db.QueryRowContext(ctx,
		"SELECT id, username, password_hash, otp_secret, failed_logins, locked_until FROM users WHERE username = ?",
		username,
	).Scan(&acct.ID, &acct.Username, &acct.PasswordHash, &acct.OTPSecret, &acct.FailedLogins, &acct.LockedUntil)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return twogate.Account{}, fmt.Errorf("%w: %s", twogate.ErrAccountNotFound, username)
		}
		return twogate.Account{}, fmt.Errorf("find account: %w", err)
	}

	return acct, nil
}

// RecordFailure increments failed_logins and sets locked_until once the
// post-increment count reaches threshold, in one statement so concurrent
// failures never lose counts.
func (s *Store) RecordFailure(ctx context.Context, username string, threshold int, lockedUntil int64) (int, int64, error) {
	var (
		failed int
		locked int64
	)
	err := s.db.QueryRowContext(ctx,
		`UPDATE users
		 SET failed_logins = failed_logins + 1,
		     locked_until = CASE WHEN failed_logins + 1 >= ? THEN ? ELSE locked_until END
		 WHERE username = ?
		 RETURNING failed_logins, locked_until`,
		threshold, lockedUntil, username,
	).Scan(&failed, &locked)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, 0, fmt.Errorf("%w: %s", twogate.ErrAccountNotFound, username)
		}
		return 0, 0, fmt.Errorf("record failure: %w", err)
	}

	return failed, locked, nil
}

// ResetFailures zeroes the counter and clears any lock.
func (s *Store) ResetFailures(ctx context.Context, username string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE users SET failed_logins = 0, locked_until = 0 WHERE username = ?",
		username,
	)
	if err != nil {
		return fmt.Errorf("reset failures: %w", err)
	}
	return nil
}

// UpdateFailureState overwrites both lockout counters.
func (s *Store) UpdateFailureState(ctx context.Context, username string, failedLogins int, lockedUntil int64) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE users SET failed_logins = ?, locked_until = ? WHERE username = ?",
		failedLogins, lockedUntil, username,
	)
	if err != nil {
		return fmt.Errorf("update failure state: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update failure state: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", twogate.ErrAccountNotFound, username)
	}
	return nil
}

// UpdateOTPCounter advances the replay watermark only forward. Reports false
// when counter does not exceed the stored value.
func (s *Store) UpdateOTPCounter(ctx context.Context, username string, counter int64) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		"UPDATE users SET otp_last_counter = ? WHERE username = ? AND otp_last_counter < ?",
		counter, username, counter,
	)
	if err != nil {
		return false, fmt.Errorf("update otp counter: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update otp counter: %w", err)
	}
	return n > 0, nil
}

// List returns every account ordered by id.
func (s *Store) List(ctx context.Context) ([]twogate.Account, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, username, password_hash, otp_secret, failed_logins, locked_until FROM users ORDER BY id",
	)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []twogate.Account
	for rows.Next() {
		var acct twogate.Account
		if err := rows.Scan(&acct.ID, &acct.Username, &acct.PasswordHash, &acct.OTPSecret, &acct.FailedLogins, &acct.LockedUntil); err != nil {
			return nil, fmt.Errorf("list accounts: %w", err)
		}
		accounts = append(accounts, acct)
	}

	return accounts, rows.Err()
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func isUniqueViolation(err error) bool {
	var serr *sqlite.Error
	if errors.As(err, &serr) {
		code := serr.Code()
		return code == sqlitelib.SQLITE_CONSTRAINT_UNIQUE || code == sqlitelib.SQLITE_CONSTRAINT
	}
	return false
}
