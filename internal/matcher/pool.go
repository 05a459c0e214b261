package matcher

import "github.com/example/visit-trip-linker/internal/models"

// LegPool is the day's set of trip legs. Entries keep their original index
// for the whole day; removal only marks an entry consumed, so forward scans
// never see shifted indices.
type LegPool struct {
	legs     []models.TripLeg
	consumed []bool
	live     int
}

func NewLegPool(legs []models.TripLeg) *LegPool {
	return &LegPool{legs: legs, consumed: make([]bool, len(legs)), live: len(legs)}
}

// Len returns the number of entries not yet consumed.
func (p *LegPool) Len() int { return p.live }

func (p *LegPool) At(i int) (models.TripLeg, bool) {
	if i < 0 || i >= len(p.legs) || p.consumed[i] {
		return models.TripLeg{}, false
	}
	return p.legs[i], true
}

// Next returns the first live index >= i, or -1.
func (p *LegPool) Next(i int) int {
	if i < 0 {
		i = 0
	}
	for ; i < len(p.legs); i++ {
		if !p.consumed[i] {
			return i
		}
	}
	return -1
}

// FindGroup returns the first live index >= from whose leg belongs to group.
func (p *LegPool) FindGroup(from int, group string) (int, bool) {
	for i := p.Next(from); i >= 0; i = p.Next(i + 1) {
		if p.legs[i].TripGroupID == group {
			return i, true
		}
	}
	return -1, false
}

func (p *LegPool) Remove(i int) {
	if i < 0 || i >= len(p.legs) || p.consumed[i] {
		return
	}
	p.consumed[i] = true
	p.live--
}
