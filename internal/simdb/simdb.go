// Package simdb persists simulation runs and grid snapshots in SQLite.
package simdb

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/banshee-data/gridsim/internal/geometry"
	"github.com/banshee-data/gridsim/internal/gridmap"
	"github.com/banshee-data/gridsim/internal/robot"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a requested run or snapshot does not exist.
var ErrNotFound = errors.New("not found")

//go:embed migrations/*.sql
var migrationsFS embed.FS

// DB wraps the simulation database.
type DB struct {
	*sql.DB
	path string
}

// Open opens (creating if needed) the database at path with foreign keys
// enforced. Call MigrateUp before use.
func Open(path string) (*DB, error) {
	dsn := path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if path == ":memory:" {
		// Each pooled connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	diagf("opened database %s", path)
	return &DB{DB: db, path: path}, nil
}

// MigrateUp applies all pending embedded migrations. It is a no-op when the
// schema is current.
func (db *DB) MigrateUp() error {
	m, err := db.newMigrate()
	if err != nil {
		return err
	}
	// m is not closed: closing it would close the underlying DB.
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// MigrateVersion returns the current schema version and dirty state; 0 when
// no migration has run.
func (db *DB) MigrateVersion() (version uint, dirty bool, err error) {
	m, err := db.newMigrate()
	if err != nil {
		return 0, false, err
	}
	version, dirty, err = m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return version, dirty, err
}

func (db *DB) newMigrate() (*migrate.Migrate, error) {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded migrations: %w", err)
	}
	driver, err := sqlite.WithInstance(db.DB, &sqlite.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to create sqlite driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	m.Log = &migrateLogger{}
	return m, nil
}

// migrateLogger implements migrate.Logger on the diag stream.
type migrateLogger struct{}

func (l *migrateLogger) Printf(format string, v ...interface{}) {
	diagf("[migrate] "+format, v...)
}

func (l *migrateLogger) Verbose() bool {
	return false
}

// Run describes one simulation run.
type Run struct {
	ID         string    `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	ConfigJSON string    `json:"config_json"`
}

// CreateRun records a new run. Recording the same run ID twice is a no-op.
func (db *DB) CreateRun(ctx context.Context, r Run) error {
	if r.ID == "" {
		return fmt.Errorf("run id is required")
	}
	if r.ConfigJSON == "" {
		r.ConfigJSON = "{}"
	}
	_, err := db.ExecContext(ctx,
		`INSERT OR IGNORE INTO sim_runs (run_id, started_unix_nanos, config_json) VALUES (?, ?, ?)`,
		r.ID, r.StartedAt.UnixNano(), r.ConfigJSON)
	if err != nil {
		return fmt.Errorf("create run %s: %w", r.ID, err)
	}
	return nil
}

// GetRun returns the run with the given ID or ErrNotFound.
func (db *DB) GetRun(ctx context.Context, id string) (*Run, error) {
	var r Run
	var started int64
	err := db.QueryRowContext(ctx,
		`SELECT run_id, started_unix_nanos, config_json FROM sim_runs WHERE run_id = ?`, id).
		Scan(&r.ID, &started, &r.ConfigJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	r.StartedAt = time.Unix(0, started).UTC()
	return &r, nil
}

// GridSnapshotRecord is one persisted grid snapshot. Snapshot is nil in list
// results, which carry only metadata.
type GridSnapshotRecord struct {
	ID      int64             `json:"snapshot_id"`
	RunID   string            `json:"run_id"`
	Tick    uint64            `json:"tick"`
	Seq     uint64            `json:"seq"`
	TakenAt time.Time         `json:"taken_at"`
	Pose    robot.Pose        `json:"pose"`
	Counts  gridmap.Counts    `json:"counts"`
	Grid    *gridmap.Snapshot `json:"-"`
}

// InsertGridSnapshot stores a snapshot taken at tick with the robot at pose
// and returns the new snapshot ID.
func (db *DB) InsertGridSnapshot(ctx context.Context, runID string, tick uint64, pose robot.Pose, snap *gridmap.Snapshot, takenAt time.Time) (int64, error) {
	if snap == nil {
		return 0, fmt.Errorf("nil snapshot")
	}
	blob, err := gridmap.EncodeSnapshot(snap)
	if err != nil {
		return 0, err
	}
	counts := snap.Counts()
	res, err := db.ExecContext(ctx, `
		INSERT INTO grid_snapshots (
			run_id, tick, seq, taken_unix_nanos, grid_size, cell_size, anchor_x, anchor_y,
			pose_x, pose_y, pose_heading, unknown_cells, free_cells, occupied_cells, grid_blob
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, int64(tick), int64(snap.Seq), takenAt.UnixNano(), snap.Size, snap.CellSize,
		snap.Anchor.X, snap.Anchor.Y, pose.Position.X, pose.Position.Y, pose.Heading,
		counts.Unknown, counts.Freespace, counts.Occupied, blob)
	if err != nil {
		opsf("insert grid snapshot run=%s tick=%d: %v", runID, tick, err)
		return 0, fmt.Errorf("insert grid snapshot: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	tracef("stored grid snapshot id=%d run=%s tick=%d bytes=%d", id, runID, tick, len(blob))
	return id, nil
}

const snapshotColumns = `snapshot_id, run_id, tick, seq, taken_unix_nanos,
	pose_x, pose_y, pose_heading, unknown_cells, free_cells, occupied_cells`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner, blob *[]byte) (*GridSnapshotRecord, error) {
	var (
		r            GridSnapshotRecord
		tick, seq    int64
		taken        int64
		px, py, head float64
	)
	dest := []any{&r.ID, &r.RunID, &tick, &seq, &taken, &px, &py, &head,
		&r.Counts.Unknown, &r.Counts.Freespace, &r.Counts.Occupied}
	if blob != nil {
		dest = append(dest, blob)
	}
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	r.Tick = uint64(tick)
	r.Seq = uint64(seq)
	r.TakenAt = time.Unix(0, taken).UTC()
	r.Pose = robot.Pose{Position: geometry.NewVector(px, py), Heading: head}
	return &r, nil
}

func (db *DB) querySnapshot(ctx context.Context, where string, args ...any) (*GridSnapshotRecord, error) {
	var blob []byte
	row := db.QueryRowContext(ctx, `SELECT `+snapshotColumns+`, grid_blob FROM grid_snapshots `+where, args...)
	r, err := scanRecord(row, &blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	r.Grid, err = gridmap.DecodeSnapshot(blob)
	if err != nil {
		return nil, fmt.Errorf("snapshot %d: %w", r.ID, err)
	}
	return r, nil
}

// LatestGridSnapshot returns the most recent snapshot of a run, decoded.
func (db *DB) LatestGridSnapshot(ctx context.Context, runID string) (*GridSnapshotRecord, error) {
	r, err := db.querySnapshot(ctx, `WHERE run_id = ? ORDER BY tick DESC, snapshot_id DESC LIMIT 1`, runID)
	if errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("latest snapshot for run %s: %w", runID, ErrNotFound)
	}
	return r, err
}

// GridSnapshotByID returns one snapshot, decoded.
func (db *DB) GridSnapshotByID(ctx context.Context, id int64) (*GridSnapshotRecord, error) {
	r, err := db.querySnapshot(ctx, `WHERE snapshot_id = ?`, id)
	if errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("snapshot %d: %w", id, ErrNotFound)
	}
	return r, err
}

// ListGridSnapshots returns snapshot metadata for a run, newest first. A
// non-positive limit defaults to 100.
func (db *DB) ListGridSnapshots(ctx context.Context, runID string, limit int) ([]GridSnapshotRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.QueryContext(ctx,
		`SELECT `+snapshotColumns+` FROM grid_snapshots WHERE run_id = ? ORDER BY tick DESC, snapshot_id DESC LIMIT ?`,
		runID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []GridSnapshotRecord
	for rows.Next() {
		r, err := scanRecord(rows, nil)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}
