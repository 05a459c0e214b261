package matcher

import (
	"errors"
	"fmt"
	"time"
)

// Config holds the matching thresholds. The zero value is not usable; start
// from DefaultConfig.
type Config struct {
	DistanceThresholdMeters int
	WindowBeforeTight       time.Duration
	WindowAfterTight        time.Duration
	WindowLoose             time.Duration
	DistanceBucketCount     int
	StartTimeBucketCount    int
	NoMatchDistanceSentinel int
}

func DefaultConfig() Config {
	return Config{
		DistanceThresholdMeters: 150,
		WindowBeforeTight:       2 * time.Hour,
		WindowAfterTight:        time.Hour,
		WindowLoose:             24 * time.Hour,
		DistanceBucketCount:     6,
		StartTimeBucketCount:    12,
		NoMatchDistanceSentinel: 1_000_000,
	}
}

func (c Config) Validate() error {
	var errs []error
	if c.DistanceThresholdMeters <= 0 {
		errs = append(errs, fmt.Errorf("distance threshold must be > 0, got %d", c.DistanceThresholdMeters))
	}
	if c.WindowBeforeTight < 0 || c.WindowAfterTight < 0 || c.WindowLoose < 0 {
		errs = append(errs, errors.New("time windows must not be negative"))
	}
	// bucket 0 is reserved for the no-match case, so at least one more is needed
	if c.DistanceBucketCount < 2 {
		errs = append(errs, fmt.Errorf("distance bucket count must be >= 2, got %d", c.DistanceBucketCount))
	}
	if c.StartTimeBucketCount < 1 {
		errs = append(errs, fmt.Errorf("start time bucket count must be >= 1, got %d", c.StartTimeBucketCount))
	}
	if c.NoMatchDistanceSentinel < c.DistanceThresholdMeters {
		errs = append(errs, errors.New("no-match distance sentinel must not be below the distance threshold"))
	}
	return errors.Join(errs...)
}
