package matcher

import "time"

// Window is the tolerance around a visit's finish time within which a trip
// leg may start. Both bounds are inclusive.
type Window struct {
	Before time.Duration
	After  time.Duration
}

// WindowFor picks the tight window when the care episode has more than one
// visit on the day, and the loose window otherwise.
func WindowFor(sameDayVisits int, cfg Config) Window {
	if sameDayVisits > 1 {
		return Window{Before: cfg.WindowBeforeTight, After: cfg.WindowAfterTight}
	}
	return Window{Before: cfg.WindowLoose, After: cfg.WindowLoose}
}

func (w Window) Contains(anchor, t time.Time) bool {
	return !t.Before(anchor.Add(-w.Before)) && !t.After(anchor.Add(w.After))
}
