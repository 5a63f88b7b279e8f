package history

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/adaptivelab/experiment-core/internal/space"
)

const schema = `
CREATE TABLE IF NOT EXISTS experiments (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	config     TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS trials (
	experiment_id TEXT NOT NULL,
	trial_id      INTEGER NOT NULL,
	strategy      TEXT NOT NULL,
	stimuli       TEXT NOT NULL,
	asked_at      TIMESTAMP NOT NULL,
	PRIMARY KEY (experiment_id, trial_id)
);

CREATE TABLE IF NOT EXISTS outcomes (
	experiment_id TEXT NOT NULL,
	trial_id      INTEGER NOT NULL,
	outcome       TEXT NOT NULL,
	told_at       TIMESTAMP NOT NULL,
	PRIMARY KEY (experiment_id, trial_id)
);
`

// Store persists every ask and tell so an experiment can be audited or
// replayed after the process exits. One store serves all experiments.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and ensures the
// schema exists
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database %s: %w", path, err)
	}
	// Serialized access keeps the driver happy under concurrent handlers
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create history schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveExperiment records a new experiment and its raw config
func (s *Store) SaveExperiment(id, name string, cfg []byte) error {
	_, err := s.db.Exec(
		`INSERT INTO experiments (id, name, config, created_at) VALUES (?, ?, ?, ?)`,
		id, name, string(cfg), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save experiment %s: %w", id, err)
	}
	return nil
}

// SaveTrial records one issued trial
func (s *Store) SaveTrial(experimentID string, trial *space.Trial, strategy string) error {
	stimuli, err := json.Marshal(trial.Stimuli)
	if err != nil {
		return fmt.Errorf("failed to encode stimuli: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO trials (experiment_id, trial_id, strategy, stimuli, asked_at) VALUES (?, ?, ?, ?, ?)`,
		experimentID, trial.ID, strategy, string(stimuli), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save trial %d: %w", trial.ID, err)
	}
	return nil
}

// SaveOutcome records one told outcome
func (s *Store) SaveOutcome(experimentID string, trialID int64, outcome []float64) error {
	enc, err := json.Marshal(outcome)
	if err != nil {
		return fmt.Errorf("failed to encode outcome: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO outcomes (experiment_id, trial_id, outcome, told_at) VALUES (?, ?, ?, ?)`,
		experimentID, trialID, string(enc), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save outcome for trial %d: %w", trialID, err)
	}
	return nil
}

// ReplayEntry is one trial with its outcome, if told
type ReplayEntry struct {
	TrialID  int64
	Strategy string
	Stimuli  [][]float64
	Outcome  []float64 // nil when the trial was never told
}

// Replay returns every trial of an experiment in issue order, joined with
// its outcome where one was recorded
func (s *Store) Replay(experimentID string) ([]ReplayEntry, error) {
	rows, err := s.db.Query(`
		SELECT t.trial_id, t.strategy, t.stimuli, o.outcome
		FROM trials t
		LEFT JOIN outcomes o
			ON o.experiment_id = t.experiment_id AND o.trial_id = t.trial_id
		WHERE t.experiment_id = ?
		ORDER BY t.trial_id`,
		experimentID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query replay for %s: %w", experimentID, err)
	}
	defer rows.Close()

	var out []ReplayEntry
	for rows.Next() {
		var e ReplayEntry
		var stimuli string
		var outcome sql.NullString
		if err := rows.Scan(&e.TrialID, &e.Strategy, &stimuli, &outcome); err != nil {
			return nil, fmt.Errorf("failed to scan replay row: %w", err)
		}
		if err := json.Unmarshal([]byte(stimuli), &e.Stimuli); err != nil {
			return nil, fmt.Errorf("corrupt stimuli for trial %d: %w", e.TrialID, err)
		}
		if outcome.Valid {
			if err := json.Unmarshal([]byte(outcome.String), &e.Outcome); err != nil {
				return nil, fmt.Errorf("corrupt outcome for trial %d: %w", e.TrialID, err)
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ExperimentInfo is a stored experiment's identity row
type ExperimentInfo struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

// ListExperiments returns all stored experiments, newest first
func (s *Store) ListExperiments() ([]ExperimentInfo, error) {
	rows, err := s.db.Query(`SELECT id, name, created_at FROM experiments ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list experiments: %w", err)
	}
	defer rows.Close()

	var out []ExperimentInfo
	for rows.Next() {
		var info ExperimentInfo
		if err := rows.Scan(&info.ID, &info.Name, &info.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan experiment row: %w", err)
		}
		out = append(out, info)
	}
	return out, rows.Err()
}
