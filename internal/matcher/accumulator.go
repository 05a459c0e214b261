package matcher

import "github.com/example/visit-trip-linker/internal/models"

// Accumulator is the ordered, append-only result sequence.
type Accumulator struct {
	records []models.MatchRecord
}

func (a *Accumulator) Append(r models.MatchRecord) { a.records = append(a.records, r) }

func (a *Accumulator) Len() int { return len(a.records) }

// Records returns a copy of the accumulated records in append order.
func (a *Accumulator) Records() []models.MatchRecord {
	out := make([]models.MatchRecord, len(a.records))
	copy(out, a.records)
	return out
}
