package models

import "time"

type Coord struct {
	Lat float64 `json:"lat" validate:"gte=-90,lte=90"`
	Lon float64 `json:"lon" validate:"gte=-180,lte=180"`
}

// Visit is a finished care appointment.
type Visit struct {
	VisitID       string    `json:"visit_id" validate:"required"`
	CareEpisodeID string    `json:"care_episode_id" validate:"required"`
	Location      Coord     `json:"location"`
	FinishedAt    time.Time `json:"finished_at" validate:"required"`
}

type LegRole string

const (
	RoleStart LegRole = "start"
	RoleEnd   LegRole = "end"
)

// TripLeg is one recorded row of a vehicle trip. Rows sharing a TripGroupID
// belong to the same trip; the start sub-event is used when the leg is a
// match candidate and the end sub-event when it closes a trip.
type TripLeg struct {
	TripGroupID   string    `json:"trip_group_id" validate:"required"`
	Role          LegRole   `json:"role,omitempty" validate:"omitempty,oneof=start end"`
	StartLocation Coord     `json:"start_location"`
	StartTime     time.Time `json:"start_time" validate:"required"`
	EndLocation   Coord     `json:"end_location"`
	EndTime       time.Time `json:"end_time" validate:"required"`
}

type Classification string

const (
	Matched        Classification = "matched"
	Unmatched      Classification = "unmatched"
	NoTripsThisDay Classification = "no_trips_this_day"
)

// MatchRecord is the outcome of resolving one visit (or one trip-less day).
type MatchRecord struct {
	VisitID         string         `json:"visit_id"`
	CareEpisodeID   string         `json:"care_episode_id"`
	CarStartTime    time.Time      `json:"car_start_time"`
	CarEndTime      time.Time      `json:"car_end_time"`
	DurationMinutes float64        `json:"duration_minutes"`
	DistanceMeters  int            `json:"distance_meters"`
	DistanceBucket  int            `json:"distance_bucket"`
	StartTimeBucket int            `json:"start_time_bucket"`
	Classification  Classification `json:"classification"`
}

// Run describes one execution of the linker over a batch.
type Run struct {
	ID        string    `json:"run_id"`
	Source    string    `json:"source"`
	Visits    int       `json:"visits"`
	TripLegs  int       `json:"trip_legs"`
	CreatedAt time.Time `json:"created_at"`
}

// RunSummary counts records per classification.
type RunSummary struct {
	Records        int `json:"records"`
	Matched        int `json:"matched"`
	Unmatched      int `json:"unmatched"`
	NoTripsThisDay int `json:"no_trips_this_day"`
}

func Summarize(records []MatchRecord) RunSummary {
	s := RunSummary{Records: len(records)}
	for _, r := range records {
		switch r.Classification {
		case Matched:
			s.Matched++
		case Unmatched:
			s.Unmatched++
		case NoTripsThisDay:
			s.NoTripsThisDay++
		}
	}
	return s
}

// Batch is a fully materialised input to one linker run, each slice in
// source order.
type Batch struct {
	Visits   []Visit   `json:"visits"`
	TripLegs []TripLeg `json:"trip_legs"`
}
