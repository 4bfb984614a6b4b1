package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ashureev/onboard-chat/internal/domain"
	"github.com/ashureev/onboard-chat/internal/shared"
	_ "modernc.org/sqlite"
)

// draftPosition marks the vehicle row holding the session's in-progress vehicle.
const draftPosition = -1

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db      *sql.DB
	writeMu sync.Mutex // Serializes writers to keep SQLITE_BUSY rare
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA journal_mode = WAL;
	CREATE TABLE IF NOT EXISTS sessions (
		session_id TEXT PRIMARY KEY,
		current_state TEXT NOT NULL,
		zip_code TEXT NOT NULL DEFAULT '',
		full_name TEXT NOT NULL DEFAULT '',
		email TEXT NOT NULL DEFAULT '',
		license_type TEXT NOT NULL DEFAULT '',
		license_status TEXT NOT NULL DEFAULT '',
		greeting TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_updated ON sessions(updated_at);

	CREATE TABLE IF NOT EXISTS messages (
		session_id TEXT NOT NULL REFERENCES sessions(session_id) ON DELETE CASCADE,
		seq INTEGER NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		PRIMARY KEY (session_id, seq)
	);

	CREATE TABLE IF NOT EXISTS vehicles (
		session_id TEXT NOT NULL REFERENCES sessions(session_id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		mode TEXT NOT NULL DEFAULT '',
		vin TEXT NOT NULL DEFAULT '',
		year INTEGER NOT NULL DEFAULT 0,
		make TEXT NOT NULL DEFAULT '',
		model TEXT NOT NULL DEFAULT '',
		body_type TEXT NOT NULL DEFAULT '',
		vehicle_use TEXT NOT NULL DEFAULT '',
		blind_spot_warning INTEGER,
		days_per_week INTEGER,
		one_way_miles INTEGER,
		annual_mileage INTEGER,
		warning TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (session_id, position)
	);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// Create stores a new session.
func (s *SQLiteStore) Create(ctx context.Context, sess *domain.Session) error {
	return s.write(ctx, "create session", sess.ID, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO sessions (session_id, current_state, zip_code, full_name, email,
				license_type, license_status, greeting, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			sess.ID, string(sess.State), sess.ZipCode, sess.FullName, sess.Email,
			sess.LicenseType, sess.LicenseStatus, sess.Greeting,
			toMillis(sess.CreatedAt), toMillis(sess.UpdatedAt),
		)
		if err != nil {
			return fmt.Errorf("insert session: %w", err)
		}
		if err := insertTurns(ctx, tx, sess.ID, 0, sess.Transcript); err != nil {
			return err
		}
		return replaceVehicles(ctx, tx, sess)
	})
}

// Update writes the session's scalar fields, replaces its vehicles and
// appends transcript turns not yet stored, all in one transaction.
func (s *SQLiteStore) Update(ctx context.Context, sess *domain.Session) error {
	return s.write(ctx, "update session", sess.ID, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `
			UPDATE sessions SET current_state = ?, zip_code = ?, full_name = ?, email = ?,
				license_type = ?, license_status = ?, greeting = ?, updated_at = ?
			WHERE session_id = ?`,
			string(sess.State), sess.ZipCode, sess.FullName, sess.Email,
			sess.LicenseType, sess.LicenseStatus, sess.Greeting, toMillis(sess.UpdatedAt),
			sess.ID,
		)
		if err != nil {
			return fmt.Errorf("update session: %w", err)
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("get rows affected: %w", err)
		}
		if rows == 0 {
			return ErrNotFound
		}

		var stored int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM messages WHERE session_id = ?`, sess.ID,
		).Scan(&stored); err != nil {
			return fmt.Errorf("count messages: %w", err)
		}
		if stored > len(sess.Transcript) {
			return fmt.Errorf("transcript for %s shrank from %d to %d turns", sess.ID, stored, len(sess.Transcript))
		}
		if err := insertTurns(ctx, tx, sess.ID, stored, sess.Transcript[stored:]); err != nil {
			return err
		}
		return replaceVehicles(ctx, tx, sess)
	})
}

// Delete removes a session and its children.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	return s.write(ctx, "delete session", id, func(tx *sql.Tx) error {
		for _, q := range []string{
			`DELETE FROM messages WHERE session_id = ?`,
			`DELETE FROM vehicles WHERE session_id = ?`,
		} {
			if _, err := tx.ExecContext(ctx, q, id); err != nil {
				return fmt.Errorf("delete session children: %w", err)
			}
		}
		result, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE session_id = ?`, id)
		if err != nil {
			return fmt.Errorf("delete session: %w", err)
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("get rows affected: %w", err)
		}
		if rows == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// write runs fn in a transaction, retrying SQLITE_BUSY with exponential backoff.
func (s *SQLiteStore) write(ctx context.Context, op, id string, fn func(tx *sql.Tx) error) error {
	maxRetries := 3
	baseDelay := 100 * time.Millisecond

	var err error
	for i := 0; i < maxRetries; i++ {
		err = s.writeOnce(ctx, fn)
		if err == nil || !shared.IsSQLiteConflictError(err) {
			break
		}
		if i < maxRetries-1 {
			delay := baseDelay * time.Duration(1<<i) // exponential backoff: 100ms, 200ms, 400ms
			slog.Debug("SQLite write failed with SQLITE_BUSY, retrying",
				"op", op,
				"session_id", id,
				"attempt", i+1,
				"delay", delay)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	if errors.Is(err, ErrNotFound) {
		return err
	}
	if err != nil {
		return fmt.Errorf("%s %s: %w", op, id, err)
	}
	return nil
}

func (s *SQLiteStore) writeOnce(ctx context.Context, fn func(tx *sql.Tx) error) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			slog.Warn("failed to roll back transaction", "error", rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func insertTurns(ctx context.Context, tx *sql.Tx, id string, offset int, turns []domain.Turn) error {
	for i, t := range turns {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO messages (session_id, seq, role, content, created_at) VALUES (?, ?, ?, ?, ?)`,
			id, offset+i, string(t.Role), t.Content, toMillis(t.Timestamp),
		); err != nil {
			return fmt.Errorf("insert message: %w", err)
		}
	}
	return nil
}

func replaceVehicles(ctx context.Context, tx *sql.Tx, sess *domain.Session) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM vehicles WHERE session_id = ?`, sess.ID); err != nil {
		return fmt.Errorf("clear vehicles: %w", err)
	}
	for i := range sess.Vehicles {
		if err := insertVehicle(ctx, tx, sess.ID, i, &sess.Vehicles[i]); err != nil {
			return err
		}
	}
	if sess.Draft != nil {
		return insertVehicle(ctx, tx, sess.ID, draftPosition, sess.Draft)
	}
	return nil
}

func insertVehicle(ctx context.Context, tx *sql.Tx, id string, pos int, v *domain.Vehicle) error {
	var blindSpot any
	if v.BlindSpotWarning != nil {
		blindSpot = *v.BlindSpotWarning
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO vehicles (session_id, position, mode, vin, year, make, model, body_type,
			vehicle_use, blind_spot_warning, days_per_week, one_way_miles, annual_mileage, warning)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, pos, string(v.Mode), v.VIN, v.Year, v.Make, v.Model, v.BodyType,
		string(v.Use), blindSpot, nullableInt(v.DaysPerWeek), nullableInt(v.OneWayMiles),
		nullableInt(v.AnnualMileage), v.Warning,
	)
	if err != nil {
		return fmt.Errorf("insert vehicle: %w", err)
	}
	return nil
}

// Get retrieves a full session snapshot.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*domain.Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT session_id, current_state, zip_code, full_name, email,
		       license_type, license_status, greeting, created_at, updated_at
		FROM sessions WHERE session_id = ?`, id)

	var sess domain.Session
	var state string
	var createdAt, updatedAt int64
	err := row.Scan(
		&sess.ID, &state, &sess.ZipCode, &sess.FullName, &sess.Email,
		&sess.LicenseType, &sess.LicenseStatus, &sess.Greeting, &createdAt, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan session row: %w", err)
	}
	sess.State = domain.State(state)
	sess.CreatedAt = fromMillis(createdAt)
	sess.UpdatedAt = fromMillis(updatedAt)

	if sess.Transcript, err = s.turns(ctx, id); err != nil {
		return nil, err
	}
	if err := s.loadVehicles(ctx, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

func (s *SQLiteStore) turns(ctx context.Context, id string) ([]domain.Turn, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT role, content, created_at FROM messages WHERE session_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close message rows", "error", closeErr)
		}
	}()

	turns := []domain.Turn{}
	for rows.Next() {
		var t domain.Turn
		var role string
		var at int64
		if err := rows.Scan(&role, &t.Content, &at); err != nil {
			return nil, fmt.Errorf("scan message row: %w", err)
		}
		t.Role = domain.Role(role)
		t.Timestamp = fromMillis(at)
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return turns, nil
}

func (s *SQLiteStore) loadVehicles(ctx context.Context, sess *domain.Session) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT position, mode, vin, year, make, model, body_type, vehicle_use,
		       blind_spot_warning, days_per_week, one_way_miles, annual_mileage, warning
		FROM vehicles WHERE session_id = ? ORDER BY position`, sess.ID)
	if err != nil {
		return fmt.Errorf("query vehicles: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close vehicle rows", "error", closeErr)
		}
	}()

	sess.Vehicles = []domain.Vehicle{}
	for rows.Next() {
		var v domain.Vehicle
		var pos int
		var mode, use string
		var blindSpot, days, miles, annual sql.NullInt64
		if err := rows.Scan(
			&pos, &mode, &v.VIN, &v.Year, &v.Make, &v.Model, &v.BodyType, &use,
			&blindSpot, &days, &miles, &annual, &v.Warning,
		); err != nil {
			return fmt.Errorf("scan vehicle row: %w", err)
		}
		v.Mode = domain.IDMode(mode)
		v.Use = domain.VehicleUse(use)
		if blindSpot.Valid {
			b := blindSpot.Int64 != 0
			v.BlindSpotWarning = &b
		}
		v.DaysPerWeek = intPtr(days)
		v.OneWayMiles = intPtr(miles)
		v.AnnualMileage = intPtr(annual)

		if pos == draftPosition {
			draft := v
			sess.Draft = &draft
			continue
		}
		sess.Vehicles = append(sess.Vehicles, v)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate vehicles: %w", err)
	}
	return nil
}

// ListRecent returns session summaries, most recently updated first.
func (s *SQLiteStore) ListRecent(ctx context.Context, limit int) ([]domain.Summary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.session_id, s.current_state, s.full_name, s.email, s.created_at, s.updated_at,
		       (SELECT COUNT(*) FROM vehicles v WHERE v.session_id = s.session_id AND v.position >= 0),
		       (SELECT COUNT(*) FROM messages m WHERE m.session_id = s.session_id)
		FROM sessions s
		ORDER BY s.updated_at DESC, s.session_id
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent sessions: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close recent sessions rows", "error", closeErr)
		}
	}()

	summaries := []domain.Summary{}
	for rows.Next() {
		var sum domain.Summary
		var state string
		var createdAt, updatedAt int64
		if err := rows.Scan(
			&sum.ID, &state, &sum.FullName, &sum.Email, &createdAt, &updatedAt,
			&sum.VehicleCount, &sum.MessageCount,
		); err != nil {
			return nil, fmt.Errorf("scan summary row: %w", err)
		}
		sum.State = domain.State(state)
		sum.CreatedAt = fromMillis(createdAt)
		sum.UpdatedAt = fromMillis(updatedAt)
		summaries = append(summaries, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recent sessions: %w", err)
	}
	return summaries, nil
}

// IdleSessions returns the IDs of sessions last updated before the cutoff.
func (s *SQLiteStore) IdleSessions(ctx context.Context, before time.Time) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id FROM sessions WHERE updated_at < ? ORDER BY updated_at`, toMillis(before))
	if err != nil {
		return nil, fmt.Errorf("query idle sessions: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close idle sessions rows", "error", closeErr)
		}
	}()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan idle session row: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate idle sessions: %w", err)
	}
	return ids, nil
}

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func nullableInt(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}

func intPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}
