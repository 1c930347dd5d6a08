// Package persistence archives finished runs in SQLite. The archive holds
// results only; simulation state is always rebuilt from a seed.
package persistence

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/firesim/internal/engine"
)

// ErrNotFound is returned when a run ID is not in the archive.
var ErrNotFound = errors.New("run not found")

// DB wraps a SQLite connection for the run archive.
type DB struct {
	conn *sqlx.DB
}

// Run is the summary row of an archived run.
type Run struct {
	ID         string `db:"id" json:"id"`
	Seed       int64  `db:"seed" json:"seed"`
	Scenario   string `db:"scenario" json:"scenario"`
	Days       int    `db:"days" json:"days"`
	Ticks      uint64 `db:"ticks" json:"ticks"`
	FinishedAt int64  `db:"finished_at" json:"finished_at"` // Unix seconds

	Casualties           int `db:"casualties" json:"casualties"`
	BuildingsDestroyed   int `db:"buildings_destroyed" json:"buildings_destroyed"`
	FiresStarted         int `db:"fires_started" json:"fires_started"`
	FiresExtinguished    int `db:"fires_extinguished" json:"fires_extinguished"`
	ArsonistsApprehended int `db:"arsonists_apprehended" json:"arsonists_apprehended"`

	StatsJSON string       `db:"stats_json" json:"-"`
	Stats     engine.Stats `db:"-" json:"stats"`
}

// Finished returns the archive time.
func (r Run) Finished() time.Time {
	return time.Unix(r.FinishedAt, 0)
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		seed INTEGER NOT NULL,
		scenario TEXT NOT NULL,
		days INTEGER NOT NULL,
		ticks INTEGER NOT NULL,
		finished_at INTEGER NOT NULL,
		casualties INTEGER NOT NULL,
		buildings_destroyed INTEGER NOT NULL,
		fires_started INTEGER NOT NULL,
		fires_extinguished INTEGER NOT NULL,
		arsonists_apprehended INTEGER NOT NULL,
		stats_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS history (
		run_id TEXT NOT NULL REFERENCES runs(id),
		tick INTEGER NOT NULL,
		fires INTEGER NOT NULL,
		active_fires INTEGER NOT NULL,
		casualties INTEGER NOT NULL,
		buildings_destroyed INTEGER NOT NULL,
		arsonists_apprehended INTEGER NOT NULL,
		PRIMARY KEY (run_id, tick)
	);

	CREATE TABLE IF NOT EXISTS events (
		run_id TEXT NOT NULL REFERENCES runs(id),
		seq INTEGER NOT NULL,
		event_id TEXT NOT NULL,
		tick INTEGER NOT NULL,
		description TEXT NOT NULL,
		category TEXT NOT NULL,
		PRIMARY KEY (run_id, seq)
	);

	CREATE INDEX IF NOT EXISTS idx_runs_finished ON runs(finished_at);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// SaveRun archives a finished simulation: its summary, the full hourly
// history and the final event log. The caller must hold the engine lock
// for the duration of the call.
func (db *DB) SaveRun(sim *engine.Simulation, finished time.Time) (Run, error) {
	statsJSON, err := json.Marshal(sim.Stats)
	if err != nil {
		return Run{}, fmt.Errorf("encode stats: %w", err)
	}
	run := Run{
		ID:                   uuid.NewString(),
		Seed:                 sim.Params.Seed,
		Scenario:             sim.Params.Scenario.String(),
		Days:                 sim.Params.Days,
		Ticks:                sim.Tick,
		FinishedAt:           finished.Unix(),
		Casualties:           sim.Stats.Casualties,
		BuildingsDestroyed:   sim.Stats.BuildingsDestroyed,
		FiresStarted:         sim.Stats.FiresStarted,
		FiresExtinguished:    sim.Stats.FiresExtinguished,
		ArsonistsApprehended: sim.Stats.ArsonistsApprehended,
		StatsJSON:            string(statsJSON),
		Stats:                sim.Stats.Clone(),
	}

	tx, err := db.conn.Beginx()
	if err != nil {
		return Run{}, err
	}
	defer tx.Rollback()

	_, err = tx.NamedExec(`INSERT INTO runs
		(id, seed, scenario, days, ticks, finished_at, casualties, buildings_destroyed,
		 fires_started, fires_extinguished, arsonists_apprehended, stats_json)
		VALUES (:id, :seed, :scenario, :days, :ticks, :finished_at, :casualties, :buildings_destroyed,
		 :fires_started, :fires_extinguished, :arsonists_apprehended, :stats_json)`, &run)
	if err != nil {
		return Run{}, fmt.Errorf("insert run: %w", err)
	}

	hist, err := tx.Preparex(`INSERT INTO history
		(run_id, tick, fires, active_fires, casualties, buildings_destroyed, arsonists_apprehended)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return Run{}, err
	}
	defer hist.Close()
	for _, h := range sim.FullHistory {
		_, err := hist.Exec(run.ID, h.Tick, h.Fires, h.ActiveFires,
			h.Casualties, h.BuildingsDestroyed, h.ArsonistsApprehended)
		if err != nil {
			return Run{}, fmt.Errorf("insert history tick %d: %w", h.Tick, err)
		}
	}

	evs, err := tx.Preparex(`INSERT INTO events
		(run_id, seq, event_id, tick, description, category)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return Run{}, err
	}
	defer evs.Close()
	for i, e := range sim.Events {
		if _, err := evs.Exec(run.ID, i, e.ID, e.Tick, e.Description, e.Category); err != nil {
			return Run{}, fmt.Errorf("insert event %s: %w", e.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return Run{}, err
	}
	slog.Info("run archived", "id", run.ID, "ticks", run.Ticks,
		"history", len(sim.FullHistory), "events", len(sim.Events))
	return run, nil
}

// ListRuns returns the most recent runs, newest first.
func (db *DB) ListRuns(limit int) ([]Run, error) {
	var runs []Run
	err := db.conn.Select(&runs,
		"SELECT * FROM runs ORDER BY finished_at DESC, rowid DESC LIMIT ?", limit)
	if err != nil {
		return nil, err
	}
	for i := range runs {
		if err := runs[i].decodeStats(); err != nil {
			return nil, err
		}
	}
	return runs, nil
}

// GetRun returns one archived run.
func (db *DB) GetRun(id string) (Run, error) {
	var run Run
	err := db.conn.Get(&run, "SELECT * FROM runs WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, ErrNotFound
	}
	if err != nil {
		return Run{}, err
	}
	if err := run.decodeStats(); err != nil {
		return Run{}, err
	}
	return run, nil
}

type historyRow struct {
	Tick                 uint64 `db:"tick"`
	Fires                int    `db:"fires"`
	ActiveFires          int    `db:"active_fires"`
	Casualties           int    `db:"casualties"`
	BuildingsDestroyed   int    `db:"buildings_destroyed"`
	ArsonistsApprehended int    `db:"arsonists_apprehended"`
}

// RunHistory returns the hourly samples of a run in tick order.
func (db *DB) RunHistory(id string) ([]engine.HistorySample, error) {
	if _, err := db.GetRun(id); err != nil {
		return nil, err
	}
	var rows []historyRow
	err := db.conn.Select(&rows, `SELECT tick, fires, active_fires, casualties,
		buildings_destroyed, arsonists_apprehended
		FROM history WHERE run_id = ? ORDER BY tick`, id)
	if err != nil {
		return nil, err
	}
	out := make([]engine.HistorySample, len(rows))
	for i, r := range rows {
		out[i] = engine.HistorySample(r)
	}
	return out, nil
}

type eventRow struct {
	ID          string `db:"event_id"`
	Tick        uint64 `db:"tick"`
	Description string `db:"description"`
	Category    string `db:"category"`
}

// RunEvents returns the final event log of a run, newest first.
func (db *DB) RunEvents(id string) ([]engine.Event, error) {
	if _, err := db.GetRun(id); err != nil {
		return nil, err
	}
	var rows []eventRow
	err := db.conn.Select(&rows, `SELECT event_id, tick, description, category
		FROM events WHERE run_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, err
	}
	out := make([]engine.Event, len(rows))
	for i, r := range rows {
		out[i] = engine.Event(r)
	}
	return out, nil
}

func (r *Run) decodeStats() error {
	if err := json.Unmarshal([]byte(r.StatsJSON), &r.Stats); err != nil {
		return fmt.Errorf("decode stats for run %s: %w", r.ID, err)
	}
	return nil
}
