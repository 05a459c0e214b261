package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/example/visit-trip-linker/internal/models"
)

// Visits are joined with the patient location of their care episode; rows
// come back in their recorded order since the matcher is order sensitive.
const (
	visitsQuery = `
SELECT v.visit_id, v.care_episode_id, l.latitude, l.longitude, v.finished_at
FROM finished_visits v
JOIN patient_locations l ON l.care_episode_id = v.care_episode_id
WHERE v.finished_at >= $1 AND v.finished_at < $2
ORDER BY v.seq`

	tripLegsQuery = `
SELECT trip_group_id, role, start_latitude, start_longitude, start_time,
       end_latitude, end_longitude, end_time
FROM car_trip_legs
WHERE start_time >= $1 AND start_time < $2
ORDER BY seq`
)

// PGSource loads visits and trip legs from the operational database.
type PGSource struct {
	pool *pgxpool.Pool
}

func NewPGSource(ctx context.Context, dsn string) (*PGSource, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse source dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create source pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping source db: %w", err)
	}
	return &PGSource{pool: pool}, nil
}

// Load returns the visits finished and the legs started in [from, to).
func (s *PGSource) Load(ctx context.Context, from, to time.Time) (models.Batch, error) {
	rows, err := s.pool.Query(ctx, visitsQuery, from, to)
	if err != nil {
		return models.Batch{}, fmt.Errorf("query visits: %w", err)
	}
	visits, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Visit, error) {
		var v models.Visit
		err := row.Scan(&v.VisitID, &v.CareEpisodeID, &v.Location.Lat, &v.Location.Lon, &v.FinishedAt)
		return v, err
	})
	if err != nil {
		return models.Batch{}, fmt.Errorf("scan visits: %w", err)
	}

	rows, err = s.pool.Query(ctx, tripLegsQuery, from, to)
	if err != nil {
		return models.Batch{}, fmt.Errorf("query trip legs: %w", err)
	}
	legs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.TripLeg, error) {
		var l models.TripLeg
		var role string
		err := row.Scan(&l.TripGroupID, &role, &l.StartLocation.Lat, &l.StartLocation.Lon, &l.StartTime,
			&l.EndLocation.Lat, &l.EndLocation.Lon, &l.EndTime)
		l.Role = models.LegRole(role)
		return l, err
	})
	if err != nil {
		return models.Batch{}, fmt.Errorf("scan trip legs: %w", err)
	}
	return models.Batch{Visits: visits, TripLegs: legs}, nil
}

func (s *PGSource) Close() { s.pool.Close() }
