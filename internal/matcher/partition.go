package matcher

import (
	"time"

	"github.com/example/visit-trip-linker/internal/models"
)

// DayCohort holds the visits and trip legs of one calendar date, each in
// input order.
type DayCohort struct {
	Date   time.Time
	Visits []models.Visit
	Legs   []models.TripLeg
}

// Partition groups visits by finish date and legs by start date. One cohort
// is produced for every date from the earliest to the latest visit date,
// including dates without visits. Legs outside that range are dropped.
func Partition(visits []models.Visit, legs []models.TripLeg) []DayCohort {
	if len(visits) == 0 {
		return nil
	}
	first, last := dayOf(visits[0].FinishedAt), dayOf(visits[0].FinishedAt)
	byDay := make(map[time.Time]*DayCohort)
	cohort := func(d time.Time) *DayCohort {
		c, ok := byDay[d]
		if !ok {
			c = &DayCohort{Date: d}
			byDay[d] = c
		}
		return c
	}
	for _, v := range visits {
		d := dayOf(v.FinishedAt)
		if d.Before(first) {
			first = d
		}
		if d.After(last) {
			last = d
		}
		c := cohort(d)
		c.Visits = append(c.Visits, v)
	}
	for _, l := range legs {
		d := dayOf(l.StartTime)
		if d.Before(first) || d.After(last) {
			continue
		}
		c := cohort(d)
		c.Legs = append(c.Legs, l)
	}

	out := make([]DayCohort, 0, int(last.Sub(first).Hours()/24)+1)
	for d := first; !d.After(last); d = d.AddDate(0, 0, 1) {
		if c, ok := byDay[d]; ok {
			out = append(out, *c)
			continue
		}
		out = append(out, DayCohort{Date: d})
	}
	return out
}

// dayOf truncates to the wall-clock date. Timestamps are treated as
// timezone-free, so the result is always expressed in UTC.
func dayOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
