package matcher

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/example/visit-trip-linker/internal/models"
	"github.com/example/visit-trip-linker/internal/observability"
)

// Engine partitions a batch into day cohorts and runs the Matcher over them.
// With Workers > 1 days are matched concurrently; each day owns its own pool
// and the results are stitched back together in date order, so the output is
// the same as a sequential run.
type Engine struct {
	Matcher *Matcher
	Workers int
	Logger  *slog.Logger
}

func (e *Engine) Run(ctx context.Context, visits []models.Visit, legs []models.TripLeg) ([]models.MatchRecord, error) {
	start := time.Now()
	days := Partition(visits, legs)

	perDay := make([]Accumulator, len(days))
	if e.Workers <= 1 {
		for i := range days {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			e.runDay(days[i], &perDay[i])
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(e.Workers)
		for i := range days {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				e.runDay(days[i], &perDay[i])
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	var acc Accumulator
	for i := range perDay {
		for _, r := range perDay[i].records {
			acc.Append(r)
		}
	}
	out := acc.Records()

	if e.Logger != nil {
		s := models.Summarize(out)
		e.Logger.Info("linker run finished",
			"days", len(days),
			"visits", len(visits),
			"trip_legs", len(legs),
			"records", s.Records,
			"matched", s.Matched,
			"unmatched", s.Unmatched,
			"no_trips_days", s.NoTripsThisDay,
			"workers", max(e.Workers, 1),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
	return out, nil
}

func (e *Engine) runDay(c DayCohort, acc *Accumulator) {
	t := time.Now()
	e.Matcher.MatchDay(c, acc)
	observability.DayMatchLatency.Observe(time.Since(t).Seconds())
}
