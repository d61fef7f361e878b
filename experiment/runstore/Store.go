// Package runstore records training runs, their per-iteration results
// and policy snapshots in a SQLite database.
package runstore

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/samuelfneumann/armppo/agent/ppo"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id       TEXT PRIMARY KEY,
	environment  TEXT NOT NULL,
	config       TEXT NOT NULL,
	status       TEXT NOT NULL,
	created_at   TEXT NOT NULL,
	finished_at  TEXT
);

CREATE TABLE IF NOT EXISTS iterations (
	run_id              TEXT NOT NULL,
	iteration           INTEGER NOT NULL,
	mean_reward         REAL NOT NULL,
	best_mean_reward    REAL NOT NULL,
	decision            TEXT NOT NULL,
	entropy_coefficient REAL NOT NULL,
	reversion_threshold REAL NOT NULL,
	actor_loss          REAL NOT NULL,
	critic_loss         REAL NOT NULL,
	entropy             REAL NOT NULL,
	total_loss          REAL NOT NULL,
	collect_ns          INTEGER NOT NULL,
	optimize_ns         INTEGER NOT NULL,
	PRIMARY KEY (run_id, iteration),
	FOREIGN KEY (run_id) REFERENCES runs(run_id)
);

CREATE TABLE IF NOT EXISTS snapshots (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id      TEXT NOT NULL,
	iteration   INTEGER NOT NULL,
	kind        TEXT NOT NULL,
	data        BLOB NOT NULL,
	created_at  TEXT NOT NULL,
	FOREIGN KEY (run_id) REFERENCES runs(run_id)
);
`

// Run statuses
const (
	StatusRunning  = "running"
	StatusFinished = "finished"
	StatusFailed   = "failed"
)

// timeFormat is a fixed-width UTC timestamp format, so that stored
// timestamps sort chronologically as text
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// ErrNotFound is returned when a requested record does not exist
var ErrNotFound = errors.New("not found")

// Run is a recorded training run
type Run struct {
	ID          string
	Environment string
	Config      string
	Status      string
	CreatedAt   time.Time
	FinishedAt  time.Time
}

// Snapshot is a serialized policy recorded during a run
type Snapshot struct {
	RunID     string
	Iteration int
	Kind      string
	Data      []byte
	CreatedAt time.Time
}

// Store manages training runs in SQLite.
type Store struct {
	db *sql.DB
}

// Open opens the SQLite database at path, creating it and its tables
// if needed.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// Pragmas are per connection
	db.SetMaxOpenConns(1)
	pragmas := []string{"PRAGMA journal_mode=WAL", "PRAGMA foreign_keys=ON"}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("pragma: %w", err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateRun records a new running run with the given environment name
// and serialized configuration, and returns its ID.
func (s *Store) CreateRun(environment, config string) (string, error) {
	id := uuid.New().String()
	_, err := s.db.Exec(
		`INSERT INTO runs (run_id, environment, config, status, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		id, environment, config, StatusRunning, now(),
	)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}
	return id, nil
}

// FinishRun marks a run as finished, or failed if runErr is not nil.
func (s *Store) FinishRun(runID string, runErr error) error {
	status := StatusFinished
	if runErr != nil {
		status = StatusFailed
	}
	res, err := s.db.Exec(
		`UPDATE runs SET status = ?, finished_at = ? WHERE run_id = ?`,
		status, now(), runID,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("finish run %s: %w", runID, ErrNotFound)
	}
	return nil
}

// GetRun retrieves a run by ID.
func (s *Store) GetRun(runID string) (Run, error) {
	row := s.db.QueryRow(
		`SELECT run_id, environment, config, status, created_at, finished_at
		 FROM runs WHERE run_id = ?`, runID,
	)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("get run %s: %w", runID, ErrNotFound)
	} else if err != nil {
		return Run{}, fmt.Errorf("get run %s: %w", runID, err)
	}
	return run, nil
}

// ListRuns returns all runs, newest first.
func (s *Store) ListRuns() ([]Run, error) {
	rows, err := s.db.Query(
		`SELECT run_id, environment, config, status, created_at, finished_at
		 FROM runs ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// RecordIteration records the outcome of an iteration of a run.
func (s *Store) RecordIteration(runID string, it ppo.Iteration) error {
	_, err := s.db.Exec(
		`INSERT INTO iterations (run_id, iteration, mean_reward,
		 best_mean_reward, decision, entropy_coefficient, reversion_threshold,
		 actor_loss, critic_loss, entropy, total_loss, collect_ns, optimize_ns)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, it.Index, it.MeanReward, it.BestMeanReward,
		it.Decision.String(), it.EntropyCoefficient, it.ReversionThreshold,
		it.Losses.Actor, it.Losses.Critic, it.Losses.Entropy, it.Losses.Total,
		int64(it.CollectTime), int64(it.OptimizeTime),
	)
	if err != nil {
		return fmt.Errorf("insert iteration: %w", err)
	}
	return nil
}

// Iterations returns the recorded iterations of a run in order.
func (s *Store) Iterations(runID string) ([]ppo.Iteration, error) {
	rows, err := s.db.Query(
		`SELECT iteration, mean_reward, best_mean_reward, decision,
		 entropy_coefficient, reversion_threshold, actor_loss, critic_loss,
		 entropy, total_loss, collect_ns, optimize_ns
		 FROM iterations WHERE run_id = ? ORDER BY iteration`, runID,
	)
	if err != nil {
		return nil, fmt.Errorf("query iterations: %w", err)
	}
	defer rows.Close()

	var its []ppo.Iteration
	for rows.Next() {
		var (
			it                ppo.Iteration
			decision          string
			collect, optimize int64
		)
		err := rows.Scan(&it.Index, &it.MeanReward, &it.BestMeanReward,
			&decision, &it.EntropyCoefficient, &it.ReversionThreshold,
			&it.Losses.Actor, &it.Losses.Critic, &it.Losses.Entropy,
			&it.Losses.Total, &collect, &optimize)
		if err != nil {
			return nil, fmt.Errorf("scan iteration: %w", err)
		}
		it.Decision = parseDecision(decision)
		it.CollectTime = time.Duration(collect)
		it.OptimizeTime = time.Duration(optimize)
		its = append(its, it)
	}
	return its, rows.Err()
}

// SaveSnapshot records serialized policy data of a run. Kind names the
// snapshot, such as "best" or "final".
func (s *Store) SaveSnapshot(runID string, iteration int, kind string,
	data []byte) error {
	_, err := s.db.Exec(
		`INSERT INTO snapshots (run_id, iteration, kind, data, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		runID, iteration, kind, data, now(),
	)
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	return nil
}

// LatestSnapshot returns the most recently saved snapshot of the given
// kind for a run.
func (s *Store) LatestSnapshot(runID, kind string) (Snapshot, error) {
	snap := Snapshot{RunID: runID, Kind: kind}
	var created string
	err := s.db.QueryRow(
		`SELECT iteration, data, created_at FROM snapshots
		 WHERE run_id = ? AND kind = ? ORDER BY id DESC LIMIT 1`,
		runID, kind,
	).Scan(&snap.Iteration, &snap.Data, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, fmt.Errorf("latest snapshot %s/%s: %w", runID,
			kind, ErrNotFound)
	} else if err != nil {
		return Snapshot{}, fmt.Errorf("latest snapshot %s/%s: %w", runID,
			kind, err)
	}
	snap.CreatedAt, _ = time.Parse(timeFormat, created)
	return snap, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (Run, error) {
	var (
		run      Run
		created  string
		finished sql.NullString
	)
	if err := row.Scan(&run.ID, &run.Environment, &run.Config, &run.Status,
		&created, &finished); err != nil {
		return Run{}, err
	}
	run.CreatedAt, _ = time.Parse(timeFormat, created)
	if finished.Valid {
		run.FinishedAt, _ = time.Parse(timeFormat, finished.String)
	}
	return run, nil
}

func parseDecision(s string) ppo.Decision {
	switch s {
	case ppo.Improved.String():
		return ppo.Improved
	case ppo.Reverted.String():
		return ppo.Reverted
	}
	return ppo.Kept
}

func now() string {
	return time.Now().UTC().Format(timeFormat)
}
