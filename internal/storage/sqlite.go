package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when a requested entity doesn't exist
	ErrNotFound = errors.New("not found")
	// ErrNoActiveBuild is returned by reads before any build completed
	ErrNoActiveBuild = errors.New("no completed index build")
	// ErrBuildNotOpen is returned when writing to a build that is not being built
	ErrBuildNotOpen = errors.New("build is not open for writing")
	// ErrBuildInProgress is returned by CreateBuild while another build of the same database runs
	ErrBuildInProgress = errors.New("another build is in progress")
	// ErrDimensionMismatch is returned when a query vector does not match the stored vectors
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
)

// SQLiteStorage implements the Storage interface using SQLite
type SQLiteStorage struct {
	db   *sql.DB
	path string
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// A single connection serializes writers and keeps :memory: databases alive.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// NewSQLiteStorage creates a new SQLite storage instance
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLiteStorage{db: db, path: dbPath}, nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// BeginTx starts a new transaction
func (s *SQLiteStorage) BeginTx(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &sqliteTx{tx: tx, storage: s}, nil
}

// querier is an interface that both *sql.DB and *sql.Tx implement
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// sqliteTx wraps a SQL transaction
type sqliteTx struct {
	tx      *sql.Tx
	storage *SQLiteStorage
}

func (t *sqliteTx) Commit() error {
	return t.tx.Commit()
}

func (t *sqliteTx) Rollback() error {
	return t.tx.Rollback()
}

func (t *sqliteTx) InsertFragment(ctx context.Context, fragment *Fragment) error {
	return t.storage.insertFragmentWithQuerier(ctx, t.tx, fragment)
}

func (t *sqliteTx) InsertEmbedding(ctx context.Context, embedding *Embedding) error {
	return t.storage.insertEmbeddingWithQuerier(ctx, t.tx, embedding)
}

// Build operations

// StaleBuildAfter is how long a build may stay in the building state before
// another writer treats it as abandoned by a crashed process.
const StaleBuildAfter = 2 * time.Hour

// CreateBuild registers a new build in the building state. An empty ID is
// filled with a fresh UUID.
//
// Only one build per database may be in progress, across processes. While
// another writer's build is running ErrBuildInProgress is returned; builds
// older than StaleBuildAfter are marked failed and their rows discarded.
func (s *SQLiteStorage) CreateBuild(ctx context.Context, build *Build) error {
	if build.ID == "" {
		build.ID = uuid.NewString()
	}
	build.Status = BuildBuilding
	build.StartedAt = time.Now()
	staleBefore := build.StartedAt.Add(-StaleBuildAfter).UnixNano()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM fragments WHERE build_id IN (
			SELECT id FROM builds WHERE status = ? AND started_at <= ?
		)
	`, BuildBuilding, staleBefore); err != nil {
		return fmt.Errorf("failed to discard abandoned builds: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE builds SET status = ?, error = ?, fragment_count = 0, finished_at = ?
		WHERE status = ? AND started_at <= ?
	`, BuildFailed, "abandoned", build.StartedAt.UnixNano(), BuildBuilding, staleBefore); err != nil {
		return fmt.Errorf("failed to mark abandoned builds: %w", err)
	}

	result, err := tx.ExecContext(ctx, `
		INSERT INTO builds (id, root_path, status, provider, model, dimension, started_at)
		SELECT ?, ?, ?, ?, ?, ?, ?
		WHERE NOT EXISTS (SELECT 1 FROM builds WHERE status = ?)
	`, build.ID, build.RootPath, build.Status, build.Provider, build.Model, build.Dimension,
		build.StartedAt.UnixNano(), BuildBuilding)
	if err != nil {
		return fmt.Errorf("failed to create build: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrBuildInProgress
	}
	return tx.Commit()
}

const buildColumns = `b.id, b.root_path, b.status, b.provider, b.model, b.dimension,
	b.fragment_count, b.error, b.started_at, b.finished_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanBuild(row rowScanner) (*Build, error) {
	var (
		b          Build
		startedAt  int64
		finishedAt sql.NullInt64
		errMsg     sql.NullString
	)
	err := row.Scan(&b.ID, &b.RootPath, &b.Status, &b.Provider, &b.Model, &b.Dimension,
		&b.FragmentCount, &errMsg, &startedAt, &finishedAt)
	if err != nil {
		return nil, err
	}
	b.Error = errMsg.String
	b.StartedAt = time.Unix(0, startedAt)
	if finishedAt.Valid {
		t := time.Unix(0, finishedAt.Int64)
		b.FinishedAt = &t
	}
	return &b, nil
}

func (s *SQLiteStorage) getBuildWithQuerier(ctx context.Context, q querier, id string) (*Build, error) {
	row := q.QueryRowContext(ctx, `SELECT `+buildColumns+` FROM builds b WHERE b.id = ?`, id)
	build, err := scanBuild(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("build %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get build: %w", err)
	}
	return build, nil
}

func (s *SQLiteStorage) GetBuild(ctx context.Context, id string) (*Build, error) {
	return s.getBuildWithQuerier(ctx, s.db, id)
}

// ActiveBuild returns the build queries are served from
func (s *SQLiteStorage) ActiveBuild(ctx context.Context) (*Build, error) {
	return s.activeBuildWithQuerier(ctx, s.db)
}

func (s *SQLiteStorage) activeBuildWithQuerier(ctx context.Context, q querier) (*Build, error) {
	row := q.QueryRowContext(ctx, `
		SELECT `+buildColumns+`
		FROM active_build a
		INNER JOIN builds b ON b.id = a.build_id
		WHERE a.slot = 1
	`)
	build, err := scanBuild(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoActiveBuild
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active build: %w", err)
	}
	return build, nil
}

// ListBuilds returns all known builds, newest first
func (s *SQLiteStorage) ListBuilds(ctx context.Context) ([]*Build, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+buildColumns+` FROM builds b ORDER BY b.started_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list builds: %w", err)
	}
	defer func() { _ = rows.Close() }()

	builds := make([]*Build, 0)
	for rows.Next() {
		build, err := scanBuild(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan build: %w", err)
		}
		builds = append(builds, build)
	}
	return builds, rows.Err()
}

// FinishBuild marks a build ready and makes it the active build in a single
// transaction. Every other finished build, together with its fragments and
// embeddings, is removed in the same transaction.
func (s *SQLiteStorage) FinishBuild(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	build, err := s.getBuildWithQuerier(ctx, tx, id)
	if err != nil {
		return err
	}
	if build.Status != BuildBuilding {
		return fmt.Errorf("finish build %s (%s): %w", id, build.Status, ErrBuildNotOpen)
	}

	count, err := s.countFragmentsWithQuerier(ctx, tx, id)
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE builds SET status = ?, fragment_count = ?, finished_at = ?,
			dimension = COALESCE((
				SELECT e.dimension FROM embeddings e
				INNER JOIN fragments f ON f.id = e.fragment_id
				WHERE f.build_id = ? LIMIT 1
			), dimension)
		WHERE id = ?
	`, BuildReady, count, time.Now().UnixNano(), id, id); err != nil {
		return fmt.Errorf("failed to mark build ready: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO active_build (slot, build_id, activated_at) VALUES (1, ?, ?)
		ON CONFLICT(slot) DO UPDATE SET build_id = excluded.build_id, activated_at = excluded.activated_at
	`, id, time.Now().UnixNano()); err != nil {
		return fmt.Errorf("failed to activate build: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM builds WHERE id != ? AND status != ?
	`, id, BuildBuilding); err != nil {
		return fmt.Errorf("failed to remove previous builds: %w", err)
	}

	return tx.Commit()
}

// FailBuild marks a build failed and deletes everything written for it
func (s *SQLiteStorage) FailBuild(ctx context.Context, id string, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM fragments WHERE build_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete fragments of build %s: %w", id, err)
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE builds SET status = ?, error = ?, fragment_count = 0, finished_at = ? WHERE id = ? AND status = ?
	`, BuildFailed, msg, time.Now().UnixNano(), id, BuildBuilding)
	if err != nil {
		return fmt.Errorf("failed to mark build failed: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("fail build %s: %w", id, ErrBuildNotOpen)
	}

	return tx.Commit()
}

// Fragment operations

func (s *SQLiteStorage) insertFragmentWithQuerier(ctx context.Context, q querier, f *Fragment) error {
	var status BuildStatus
	err := q.QueryRowContext(ctx, `SELECT status FROM builds WHERE id = ?`, f.BuildID).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("build %s: %w", f.BuildID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to check build: %w", err)
	}
	if status != BuildBuilding {
		return fmt.Errorf("insert into build %s (%s): %w", f.BuildID, status, ErrBuildNotOpen)
	}

	var functionName sql.NullString
	if f.FunctionName != nil {
		functionName = sql.NullString{String: *f.FunctionName, Valid: true}
	}

	result, err := q.ExecContext(ctx, `
		INSERT INTO fragments (build_id, ordinal, source_path, file_name, file_type, function_name,
			chunk_index, content, content_hash, token_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, f.BuildID, f.Ordinal, f.SourcePath, f.FileName, f.FileType, functionName,
		f.ChunkIndex, f.Content, f.ContentHash[:], f.TokenCount)
	if err != nil {
		return fmt.Errorf("failed to insert fragment: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	f.ID = id
	return nil
}

func (s *SQLiteStorage) InsertFragment(ctx context.Context, fragment *Fragment) error {
	return s.insertFragmentWithQuerier(ctx, s.db, fragment)
}

func (s *SQLiteStorage) insertEmbeddingWithQuerier(ctx context.Context, q querier, e *Embedding) error {
	if len(e.Vector) == 0 {
		return fmt.Errorf("embedding for fragment %d is empty", e.FragmentID)
	}
	_, err := q.ExecContext(ctx, `
		INSERT INTO embeddings (fragment_id, vector, dimension) VALUES (?, ?, ?)
	`, e.FragmentID, serializeVector(e.Vector), len(e.Vector))
	if err != nil {
		return fmt.Errorf("failed to insert embedding: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) InsertEmbedding(ctx context.Context, embedding *Embedding) error {
	return s.insertEmbeddingWithQuerier(ctx, s.db, embedding)
}

func (s *SQLiteStorage) countFragmentsWithQuerier(ctx context.Context, q querier, buildID string) (int, error) {
	var count int
	err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM fragments WHERE build_id = ?`, buildID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count fragments: %w", err)
	}
	return count, nil
}

func (s *SQLiteStorage) CountFragments(ctx context.Context, buildID string) (int, error) {
	return s.countFragmentsWithQuerier(ctx, s.db, buildID)
}

const fragmentColumns = `f.id, f.build_id, f.ordinal, f.source_path, f.file_name, f.file_type,
	f.function_name, f.chunk_index, f.content, f.content_hash, f.token_count`

func scanFragment(row rowScanner, extra ...interface{}) (*Fragment, error) {
	var (
		f            Fragment
		functionName sql.NullString
		hash         []byte
	)
	dest := []interface{}{&f.ID, &f.BuildID, &f.Ordinal, &f.SourcePath, &f.FileName, &f.FileType,
		&functionName, &f.ChunkIndex, &f.Content, &hash, &f.TokenCount}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	if functionName.Valid {
		name := functionName.String
		f.FunctionName = &name
	}
	copy(f.ContentHash[:], hash)
	return &f, nil
}

// ListFragments returns the fragments of a build in ordinal order
func (s *SQLiteStorage) ListFragments(ctx context.Context, buildID string) ([]*Fragment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+fragmentColumns+` FROM fragments f WHERE f.build_id = ? ORDER BY f.ordinal
	`, buildID)
	if err != nil {
		return nil, fmt.Errorf("failed to list fragments: %w", err)
	}
	defer func() { _ = rows.Close() }()

	fragments := make([]*Fragment, 0)
	for rows.Next() {
		f, err := scanFragment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan fragment: %w", err)
		}
		fragments = append(fragments, f)
	}
	return fragments, rows.Err()
}

// SearchVector ranks the fragments of the active build by cosine similarity.
// The active build and its fragments are read in one transaction, so the
// returned build ID is the build the hits come from even if a swap lands
// concurrently.
func (s *SQLiteStorage) SearchVector(ctx context.Context, queryVector []float32, limit int) (*SearchResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin read: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	build, err := s.activeBuildWithQuerier(ctx, tx)
	if err != nil {
		return nil, err
	}

	hits, err := searchVector(ctx, tx, build.ID, queryVector, limit)
	if err != nil {
		return nil, err
	}
	return &SearchResult{BuildID: build.ID, Hits: hits}, nil
}

// GetStatus summarizes the store
func (s *SQLiteStorage) GetStatus(ctx context.Context) (*Status, error) {
	status := &Status{DatabasePath: s.path}

	err := s.db.QueryRowContext(ctx,
		"SELECT version FROM schema_version ORDER BY applied_at DESC LIMIT 1").Scan(&status.SchemaVersion)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema version: %w", err)
	}

	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM builds").Scan(&status.Builds); err != nil {
		return nil, fmt.Errorf("failed to count builds: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM fragments").Scan(&status.TotalFragments); err != nil {
		return nil, fmt.Errorf("failed to count fragments: %w", err)
	}

	active, err := s.ActiveBuild(ctx)
	switch {
	case errors.Is(err, ErrNoActiveBuild):
	case err != nil:
		return nil, err
	default:
		status.Active = active
	}

	return status, nil
}
