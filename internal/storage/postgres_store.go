package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/example/visit-trip-linker/internal/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS linker_runs (
	id          TEXT PRIMARY KEY,
	source      TEXT NOT NULL,
	visits      INTEGER NOT NULL,
	trip_legs   INTEGER NOT NULL,
	created_at  TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS visit_trip_matches (
	run_id            TEXT NOT NULL REFERENCES linker_runs(id) ON DELETE CASCADE,
	seq               INTEGER NOT NULL,
	visit_id          TEXT NOT NULL,
	care_episode_id   TEXT NOT NULL,
	car_start_time    TIMESTAMP NOT NULL,
	car_end_time      TIMESTAMP NOT NULL,
	duration_min      DOUBLE PRECISION NOT NULL,
	distance_m        INTEGER NOT NULL,
	distance_bucket   SMALLINT NOT NULL,
	start_time_bucket SMALLINT NOT NULL,
	classification    TEXT NOT NULL,
	PRIMARY KEY (run_id, seq)
);`

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping results db: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

// Migrate creates the result tables if they do not exist.
func (p *PostgresStore) Migrate(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, schema)
	return err
}

func (p *PostgresStore) SaveRun(ctx context.Context, run models.Run, records []models.MatchRecord) (err error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx,
		`INSERT INTO linker_runs(id, source, visits, trip_legs, created_at) VALUES($1,$2,$3,$4,$5)`,
		run.ID, run.Source, run.Visits, run.TripLegs, run.CreatedAt); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, pq.CopyIn("visit_trip_matches",
		"run_id", "seq", "visit_id", "care_episode_id", "car_start_time", "car_end_time",
		"duration_min", "distance_m", "distance_bucket", "start_time_bucket", "classification"))
	if err != nil {
		return fmt.Errorf("prepare copy: %w", err)
	}
	for i, r := range records {
		if _, err = stmt.ExecContext(ctx, run.ID, i, r.VisitID, r.CareEpisodeID, r.CarStartTime, r.CarEndTime,
			r.DurationMinutes, r.DistanceMeters, r.DistanceBucket, r.StartTimeBucket, string(r.Classification)); err != nil {
			_ = stmt.Close()
			return fmt.Errorf("copy record %d: %w", i, err)
		}
	}
	if _, err = stmt.ExecContext(ctx); err != nil {
		_ = stmt.Close()
		return fmt.Errorf("flush copy: %w", err)
	}
	if err = stmt.Close(); err != nil {
		return err
	}
	return tx.Commit()
}

func (p *PostgresStore) Records(ctx context.Context, runID string) ([]models.MatchRecord, error) {
	var exists bool
	if err := p.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM linker_runs WHERE id=$1)`, runID).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrRunNotFound
	}

	rows, err := p.db.QueryContext(ctx, `SELECT visit_id, care_episode_id, car_start_time, car_end_time, duration_min,
		distance_m, distance_bucket, start_time_bucket, classification
		FROM visit_trip_matches WHERE run_id=$1 ORDER BY seq`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.MatchRecord
	for rows.Next() {
		var r models.MatchRecord
		var class string
		if err := rows.Scan(&r.VisitID, &r.CareEpisodeID, &r.CarStartTime, &r.CarEndTime, &r.DurationMinutes,
			&r.DistanceMeters, &r.DistanceBucket, &r.StartTimeBucket, &class); err != nil {
			return nil, err
		}
		r.Classification = models.Classification(class)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (p *PostgresStore) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

func (p *PostgresStore) Close() error {
	if p.db == nil {
		return errors.New("postgres store not initialised")
	}
	return p.db.Close()
}
