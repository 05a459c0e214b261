package matcher

// DistanceBucket maps an accepted match distance to [1, bucketCount-1].
// Bucket 0 is left for records without a match.
func DistanceBucket(distanceMeters, threshold, bucketCount int) int {
	return min(distanceMeters*bucketCount/threshold+1, bucketCount-1)
}

// StartHourBucket maps a clock hour (0-23) to [0, bucketCount-1]. The divisor
// is 25, not 24, so buckets are slightly uneven across the day.
func StartHourBucket(hour, bucketCount int) int {
	return min(hour*bucketCount/25, bucketCount-1)
}
