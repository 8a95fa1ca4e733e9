// Package sessionstore implements the durable Session Store: the
// persisted record of every in-flight or finished upload session and
// its progress counters, backed by an embedded SQLite database.
package sessionstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite" // pure-Go SQLite driver, registers as "sqlite"
)

// ErrNotFound is returned by Get when no row matches the session id.
var ErrNotFound = errors.New("sessionstore: session not found")

const walJournalSizeLimit = 67108864 // 64 MiB

// Session is the persisted view of one upload attempt, matching the
// Session attributes of the data model.
type Session struct {
	ID             string
	Owner          string
	Filename       string
	MediaType      string
	Size           int64
	Digest         string
	ChunkSize      int64
	TotalChunks    int
	UploadedChunks int
	State          State
	StoredPath     string
	ErrorMessage   string
	CreatedAt      time.Time
	LastChunkAt    *time.Time
	CompletedAt    *time.Time
}

// Progress returns uploaded/total as a percentage to two decimals.
func (s Session) Progress() float64 {
	if s.TotalChunks == 0 {
		return 0
	}
	pct := float64(s.UploadedChunks) / float64(s.TotalChunks) * 100
	return float64(int(pct*100)) / 100
}

// Store owns the database connection and prepared statements.
type Store struct {
	db     *sql.DB
	logger *slog.Logger

	stmts statements
}

type statements struct {
	create         *sql.Stmt
	get            *sql.Stmt
	updateProgress *sql.Stmt
	markCompleted  *sql.Stmt
	markFailed     *sql.Stmt
	markCancelled  *sql.Stmt
}

// Open creates or attaches to the SQLite database at dsn, applies
// migrations, and prepares all statements. Use ":memory:" for tests.
func Open(dsn string, logger *slog.Logger) (*Store, error) {
	logger.Info("opening session store database", "dsn", dsn)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sessionstore: open: %w", err)
	}

	if err := setPragmas(context.Background(), db, logger); err != nil {
		db.Close()
		return nil, err
	}

	if err := runMigrations(context.Background(), db, logger); err != nil {
		db.Close()
		return nil, err
	}

	st := &Store{db: db, logger: logger}
	if err := st.prepareAll(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("sessionstore: prepare statements: %w", err)
	}

	logger.Info("session store ready", "dsn", dsn)
	return st, nil
}

func setPragmas(ctx context.Context, db *sql.DB, logger *slog.Logger) error {
	pragmas := []struct {
		sql  string
		desc string
	}{
		{"PRAGMA journal_mode = WAL", "WAL mode"},
		{"PRAGMA synchronous = NORMAL", "synchronous NORMAL"},
		{"PRAGMA foreign_keys = ON", "foreign keys"},
		{fmt.Sprintf("PRAGMA journal_size_limit = %d", walJournalSizeLimit), "journal size limit"},
	}

	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p.sql); err != nil {
			return fmt.Errorf("sessionstore: set pragma %s: %w", p.desc, err)
		}
		logger.Debug("pragma set", "pragma", p.desc)
	}
	return nil
}

const (
	sqlCreate = `INSERT INTO upload_sessions
		(id, owner, filename, media_type, size, digest, chunk_size,
		 total_chunks, uploaded_chunks, state, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?)`

	sqlGet = `SELECT id, owner, filename, media_type, size, digest, chunk_size,
		total_chunks, uploaded_chunks, state, stored_path, error_message,
		created_at, last_chunk_at, completed_at
		FROM upload_sessions WHERE id = ?`

	sqlUpdateProgress = `UPDATE upload_sessions
		SET uploaded_chunks = ?, state = ?, last_chunk_at = ?
		WHERE id = ?`

	sqlMarkCompleted = `UPDATE upload_sessions
		SET state = ?, stored_path = ?, completed_at = ?
		WHERE id = ?`

	sqlMarkFailed = `UPDATE upload_sessions
		SET state = ?, error_message = ?, completed_at = ?
		WHERE id = ?`

	sqlMarkCancelled = `UPDATE upload_sessions
		SET state = ?, completed_at = ?
		WHERE id = ?`
)

// stmtDef maps a SQL string to the prepared statement pointer it
// should populate, used by the generic prepare helper below.
type stmtDef struct {
	dest **sql.Stmt
	sql  string
	name string
}

func prepareAll(ctx context.Context, db *sql.DB, defs []stmtDef) error {
	for i := range defs {
		stmt, err := db.PrepareContext(ctx, defs[i].sql)
		if err != nil {
			return fmt.Errorf("prepare %s: %w", defs[i].name, err)
		}
		*defs[i].dest = stmt
	}
	return nil
}

func (s *Store) prepareAll(ctx context.Context) error {
	return prepareAll(ctx, s.db, []stmtDef{
		{&s.stmts.create, sqlCreate, "createSession"},
		{&s.stmts.get, sqlGet, "getSession"},
		{&s.stmts.updateProgress, sqlUpdateProgress, "updateProgress"},
		{&s.stmts.markCompleted, sqlMarkCompleted, "markCompleted"},
		{&s.stmts.markFailed, sqlMarkFailed, "markFailed"},
		{&s.stmts.markCancelled, sqlMarkCancelled, "markCancelled"},
	})
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the underlying database connection is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Create persists a new session row in the state carried by sess (the
// Session Manager always passes Initiated).
func (s *Store) Create(ctx context.Context, sess Session) error {
	_, err := s.stmts.create.ExecContext(ctx,
		sess.ID, sess.Owner, sess.Filename, sess.MediaType, sess.Size, sess.Digest,
		sess.ChunkSize, sess.TotalChunks, sess.State.String(), sess.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("sessionstore: create: %w", err)
	}
	return nil
}

// Get fetches a session by id, returning ErrNotFound if no row matches.
func (s *Store) Get(ctx context.Context, id string) (Session, error) {
	row := s.stmts.get.QueryRowContext(ctx, id)
	return scanSession(row)
}

func scanSession(row *sql.Row) (Session, error) {
	var (
		sess          Session
		stateStr      string
		lastChunkUnix sql.NullInt64
		completedUnix sql.NullInt64
		createdAtUnix int64
	)

	err := row.Scan(
		&sess.ID, &sess.Owner, &sess.Filename, &sess.MediaType, &sess.Size, &sess.Digest,
		&sess.ChunkSize, &sess.TotalChunks, &sess.UploadedChunks, &stateStr,
		&sess.StoredPath, &sess.ErrorMessage, &createdAtUnix, &lastChunkUnix, &completedUnix,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, ErrNotFound
	}
	if err != nil {
		return Session{}, fmt.Errorf("sessionstore: scan: %w", err)
	}

	sess.State = stateFromString(stateStr)
	sess.CreatedAt = time.Unix(createdAtUnix, 0).UTC()
	if lastChunkUnix.Valid {
		t := time.Unix(lastChunkUnix.Int64, 0).UTC()
		sess.LastChunkAt = &t
	}
	if completedUnix.Valid {
		t := time.Unix(completedUnix.Int64, 0).UTC()
		sess.CompletedAt = &t
	}
	return sess, nil
}

// UpdateProgress records a chunk receipt: the new uploaded-chunk count,
// the (possibly advanced) state, and the last-chunk timestamp.
func (s *Store) UpdateProgress(ctx context.Context, id string, uploadedChunks int, state State, lastChunkAt time.Time) error {
	_, err := s.stmts.updateProgress.ExecContext(ctx, uploadedChunks, state.String(), lastChunkAt.Unix(), id)
	if err != nil {
		return fmt.Errorf("sessionstore: update progress: %w", err)
	}
	return nil
}

// MarkCompleted transitions a session to Completed, recording the
// stored path and completion timestamp.
func (s *Store) MarkCompleted(ctx context.Context, id, storedPath string, completedAt time.Time) error {
	_, err := s.stmts.markCompleted.ExecContext(ctx, Completed.String(), storedPath, completedAt.Unix(), id)
	if err != nil {
		return fmt.Errorf("sessionstore: mark completed: %w", err)
	}
	return nil
}

// MarkFailed transitions a session to Failed, recording a short error
// description and the completion timestamp.
func (s *Store) MarkFailed(ctx context.Context, id, message string, completedAt time.Time) error {
	_, err := s.stmts.markFailed.ExecContext(ctx, Failed.String(), message, completedAt.Unix(), id)
	if err != nil {
		return fmt.Errorf("sessionstore: mark failed: %w", err)
	}
	return nil
}

// MarkCancelled transitions a session to Cancelled.
func (s *Store) MarkCancelled(ctx context.Context, id string, completedAt time.Time) error {
	_, err := s.stmts.markCancelled.ExecContext(ctx, Cancelled.String(), completedAt.Unix(), id)
	if err != nil {
		return fmt.Errorf("sessionstore: mark cancelled: %w", err)
	}
	return nil
}
