// Package episodelog persists rollout episodes to a sqlite database.
package episodelog

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"ptzcam/reinforcement"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

var ErrEpisodeNotFound = errors.New("episode not found")

type DB struct {
	*sql.DB
}

// Open opens (creating if needed) the episode database at path. Use ":memory:" for
// a throwaway database.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// An in-memory database lives and dies with its connection.
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS episodes (
			episode_id        TEXT PRIMARY KEY,
			worker            INTEGER,
			policy            TEXT,
			num_steps         INTEGER,
			total_reward      DOUBLE,
			terminated        BOOLEAN,
			started_ns        BIGINT,
			finished_ns       BIGINT
		);
		CREATE TABLE IF NOT EXISTS steps (
			episode_id        TEXT,
			step              INTEGER,
			viewport_x        INTEGER,
			viewport_y        INTEGER,
			reward            DOUBLE,
			terminated        BOOLEAN,
			PRIMARY KEY(episode_id, step),
			FOREIGN KEY(episode_id) REFERENCES episodes(episode_id)
		);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create episode tables: %w", err)
	}

	return &DB{db}, nil
}

// Record writes an episode and all of its steps in one transaction.
func (db *DB) Record(episode *reinforcement.EpisodeSummary) (err error) {
	var tx *sql.Tx
	if tx, err = db.Begin(); err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	_, err = tx.Exec(`
		INSERT INTO episodes (
			episode_id, worker, policy, num_steps, total_reward, terminated, started_ns, finished_ns
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		episode.ID.String(),
		episode.Worker,
		episode.Policy,
		len(episode.Steps),
		episode.TotalReward,
		episode.Terminated,
		episode.Started.UTC().UnixNano(),
		episode.Finished.UTC().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("insert episode %s: %w", episode.ID, err)
	}

	var stmt *sql.Stmt
	if stmt, err = tx.Prepare(`
		INSERT INTO steps (
			episode_id, step, viewport_x, viewport_y, reward, terminated
		) VALUES (?, ?, ?, ?, ?, ?)`,
	); err != nil {
		return err
	}
	defer stmt.Close()

	for _, step := range episode.Steps {
		if _, err = stmt.Exec(
			episode.ID.String(),
			step.Step,
			step.Viewport.X,
			step.Viewport.Y,
			step.Reward,
			step.Terminated,
		); err != nil {
			return fmt.Errorf("insert step %d of %s: %w", step.Step, episode.ID, err)
		}
	}

	return tx.Commit()
}

// Episode is a stored episode without its steps.
type Episode struct {
	ID          uuid.UUID `json:"id"`
	Worker      int       `json:"worker"`
	Policy      string    `json:"policy"`
	NumSteps    int       `json:"num_steps"`
	TotalReward float64   `json:"total_reward"`
	Terminated  bool      `json:"terminated"`
	Started     time.Time `json:"started"`
	Finished    time.Time `json:"finished"`
}

// Episodes returns up to limit of the most recently finished episodes, newest first.
func (db *DB) Episodes(limit int) ([]Episode, error) {
	rows, err := db.Query(`
		SELECT episode_id, worker, policy, num_steps, total_reward, terminated, started_ns, finished_ns
		FROM episodes
		ORDER BY finished_ns DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	episodes := []Episode{}
	for rows.Next() {
		var ep Episode
		var id string
		var started, finished int64
		if err := rows.Scan(
			&id,
			&ep.Worker,
			&ep.Policy,
			&ep.NumSteps,
			&ep.TotalReward,
			&ep.Terminated,
			&started,
			&finished,
		); err != nil {
			return nil, err
		}
		if ep.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("episode id %q: %w", id, err)
		}
		ep.Started = time.Unix(0, started).UTC()
		ep.Finished = time.Unix(0, finished).UTC()
		episodes = append(episodes, ep)
	}
	return episodes, rows.Err()
}

// Steps returns the recorded steps of one episode in order. An episode that ended
// before its first step has none; an unknown id is ErrEpisodeNotFound.
func (db *DB) Steps(id uuid.UUID) ([]reinforcement.StepRecord, error) {
	var found int
	err := db.QueryRow(`SELECT 1 FROM episodes WHERE episode_id = ?`, id.String()).Scan(&found)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", id, ErrEpisodeNotFound)
	}
	if err != nil {
		return nil, err
	}

	rows, err := db.Query(`
		SELECT step, viewport_x, viewport_y, reward, terminated
		FROM steps
		WHERE episode_id = ?
		ORDER BY step`, id.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	steps := []reinforcement.StepRecord{}
	for rows.Next() {
		var step reinforcement.StepRecord
		if err := rows.Scan(
			&step.Step,
			&step.Viewport.X,
			&step.Viewport.Y,
			&step.Reward,
			&step.Terminated,
		); err != nil {
			return nil, err
		}
		steps = append(steps, step)
	}
	return steps, rows.Err()
}
