package matcher

import (
	"log/slog"
	"time"

	"github.com/example/visit-trip-linker/internal/geo"
	"github.com/example/visit-trip-linker/internal/models"
	"github.com/example/visit-trip-linker/internal/observability"
)

// Matcher links each visit of a day to at most one trip leg. It is greedy
// and order dependent: visits are resolved in input order and a leg claimed
// as a start is no longer available to later visits of the same day.
type Matcher struct {
	cfg      Config
	distance geo.DistanceFunc
	logger   *slog.Logger
}

func New(cfg Config, distance geo.DistanceFunc, logger *slog.Logger) *Matcher {
	if distance == nil {
		distance = geo.Geodesic
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Matcher{cfg: cfg, distance: distance, logger: logger}
}

// MatchDay resolves every visit of the cohort and appends the outcomes to acc.
// A day with visits but no legs yields a single no_trips_this_day record.
func (m *Matcher) MatchDay(c DayCohort, acc *Accumulator) {
	if len(c.Visits) == 0 {
		return
	}
	if len(c.Legs) == 0 {
		m.emit(acc, models.MatchRecord{
			CarStartTime:   c.Date,
			CarEndTime:     c.Date,
			Classification: models.NoTripsThisDay,
		})
		m.logger.Debug("no trips for day", "date", c.Date.Format(time.DateOnly), "visits", len(c.Visits))
		return
	}

	perEpisode := make(map[string]int, len(c.Visits))
	for _, v := range c.Visits {
		perEpisode[v.CareEpisodeID]++
	}

	pool := NewLegPool(c.Legs)
	matched := 0
	for _, v := range c.Visits {
		rec := m.matchVisit(v, c.Date, WindowFor(perEpisode[v.CareEpisodeID], m.cfg), pool)
		if rec.Classification == models.Matched {
			matched++
		}
		m.emit(acc, rec)
	}
	m.logger.Debug("day matched",
		"date", c.Date.Format(time.DateOnly),
		"visits", len(c.Visits),
		"legs", len(c.Legs),
		"matched", matched,
		"legs_left", pool.Len(),
	)
}

func (m *Matcher) matchVisit(v models.Visit, day time.Time, w Window, pool *LegPool) models.MatchRecord {
	minDistance := m.cfg.NoMatchDistanceSentinel

	for i := pool.Next(0); i >= 0; i = pool.Next(i + 1) {
		leg, _ := pool.At(i)
		if !w.Contains(v.FinishedAt, leg.StartTime) {
			continue
		}
		d := geo.RoundMeters(m.distance(v.Location, leg.StartLocation))
		if d >= m.cfg.DistanceThresholdMeters {
			minDistance = min(minDistance, d)
			continue
		}

		// The first close start decides the visit, even when its trip has
		// no closing entry later in the pool.
		j, ok := pool.FindGroup(i+1, leg.TripGroupID)
		if !ok {
			break
		}
		end, _ := pool.At(j)
		pool.Remove(i)
		observability.LegsConsumed.Inc()
		return models.MatchRecord{
			VisitID:         v.VisitID,
			CareEpisodeID:   v.CareEpisodeID,
			CarStartTime:    leg.StartTime,
			CarEndTime:      end.EndTime,
			DurationMinutes: end.EndTime.Sub(leg.StartTime).Minutes(),
			DistanceMeters:  d,
			DistanceBucket:  DistanceBucket(d, m.cfg.DistanceThresholdMeters, m.cfg.DistanceBucketCount),
			StartTimeBucket: StartHourBucket(leg.StartTime.Hour(), m.cfg.StartTimeBucketCount),
			Classification:  models.Matched,
		}
	}

	return models.MatchRecord{
		VisitID:        v.VisitID,
		CareEpisodeID:  v.CareEpisodeID,
		CarStartTime:   day,
		CarEndTime:     day,
		DistanceMeters: minDistance,
		Classification: models.Unmatched,
	}
}

func (m *Matcher) emit(acc *Accumulator, r models.MatchRecord) {
	acc.Append(r)
	observability.RecordsTotal.WithLabelValues(string(r.Classification)).Inc()
}
