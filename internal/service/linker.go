package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/example/visit-trip-linker/internal/ingest"
	"github.com/example/visit-trip-linker/internal/matcher"
	"github.com/example/visit-trip-linker/internal/models"
	"github.com/example/visit-trip-linker/internal/observability"
	"github.com/example/visit-trip-linker/internal/storage"
)

type Publisher interface {
	Publish(ctx context.Context, runID string, records []models.MatchRecord) error
}

type Broadcaster interface {
	Broadcast(runID string, records []models.MatchRecord) int
}

// Linker validates a batch, runs the matching engine over it and hands the
// records to the configured sinks. Publisher and Feed are optional.
type Linker struct {
	Engine    *matcher.Engine
	Store     storage.ResultStore
	Publisher Publisher
	Feed      Broadcaster
	Logger    *slog.Logger

	now func() time.Time
}

type Result struct {
	Run      models.Run           `json:"run"`
	Summary  models.RunSummary    `json:"summary"`
	Rejected ingest.Rejected      `json:"rejected"`
	Records  []models.MatchRecord `json:"records"`
}

// Link runs one batch. A failed store write fails the run; publishing and
// live-feed failures are only logged since the records are already saved.
func (l *Linker) Link(ctx context.Context, source string, b models.Batch) (Result, error) {
	logger := l.logger()
	valid, rej := ingest.Validate(b)
	if rej.Total() > 0 {
		observability.RejectedRecords.WithLabelValues("visit").Add(float64(rej.Visits))
		observability.RejectedRecords.WithLabelValues("trip_leg").Add(float64(rej.TripLegs))
		logger.Warn("dropped invalid input records", "source", source, "visits", rej.Visits, "trip_legs", rej.TripLegs)
	}

	records, err := l.Engine.Run(ctx, valid.Visits, valid.TripLegs)
	if err != nil {
		observability.RunsTotal.WithLabelValues(source, "error").Inc()
		return Result{}, fmt.Errorf("match: %w", err)
	}

	run := models.Run{
		ID:        uuid.NewString(),
		Source:    source,
		Visits:    len(valid.Visits),
		TripLegs:  len(valid.TripLegs),
		CreatedAt: l.clock().UTC(),
	}
	if err := l.Store.SaveRun(ctx, run, records); err != nil {
		observability.RunsTotal.WithLabelValues(source, "error").Inc()
		return Result{}, fmt.Errorf("save run %s: %w", run.ID, err)
	}

	if l.Publisher != nil {
		if err := l.Publisher.Publish(ctx, run.ID, records); err != nil {
			logger.Error("publish records failed", "run_id", run.ID, "error", err)
		}
	}
	if l.Feed != nil {
		l.Feed.Broadcast(run.ID, records)
	}

	observability.RunsTotal.WithLabelValues(source, "ok").Inc()
	res := Result{Run: run, Summary: models.Summarize(records), Rejected: rej, Records: records}
	logger.Info("run stored", "run_id", run.ID, "source", source, "records", res.Summary.Records, "matched", res.Summary.Matched)
	return res, nil
}

func (l *Linker) logger() *slog.Logger {
	if l.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return l.Logger
}

func (l *Linker) clock() time.Time {
	if l.now == nil {
		return time.Now()
	}
	return l.now()
}
