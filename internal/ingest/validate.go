package ingest

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/example/visit-trip-linker/internal/models"
)

// ErrInvalidRecord marks an input record that cannot be linked.
var ErrInvalidRecord = errors.New("invalid record")

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterStructValidation(func(sl validator.StructLevel) {
		leg := sl.Current().Interface().(models.TripLeg)
		if !leg.EndTime.IsZero() && leg.EndTime.Before(leg.StartTime) {
			sl.ReportError(leg.EndTime, "EndTime", "end_time", "endafterstart", "")
		}
	}, models.TripLeg{})
	return v
}

// Rejected counts records dropped by Validate.
type Rejected struct {
	Visits   int `json:"visits"`
	TripLegs int `json:"trip_legs"`
}

func (r Rejected) Total() int { return r.Visits + r.TripLegs }

func ValidateVisit(v models.Visit) error {
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("%w: visit %q: %v", ErrInvalidRecord, v.VisitID, err)
	}
	return nil
}

func ValidateTripLeg(l models.TripLeg) error {
	if err := validate.Struct(l); err != nil {
		return fmt.Errorf("%w: trip leg of group %q: %v", ErrInvalidRecord, l.TripGroupID, err)
	}
	return nil
}

// Validate keeps the records that satisfy the linker's input contract, in
// their original order.
func Validate(b models.Batch) (models.Batch, Rejected) {
	var out models.Batch
	var rej Rejected
	out.Visits = make([]models.Visit, 0, len(b.Visits))
	for _, v := range b.Visits {
		if ValidateVisit(v) != nil {
			rej.Visits++
			continue
		}
		out.Visits = append(out.Visits, v)
	}
	out.TripLegs = make([]models.TripLeg, 0, len(b.TripLegs))
	for _, l := range b.TripLegs {
		if ValidateTripLeg(l) != nil {
			rej.TripLegs++
			continue
		}
		out.TripLegs = append(out.TripLegs, l)
	}
	return out, rej
}
