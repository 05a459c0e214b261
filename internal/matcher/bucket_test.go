package matcher

import "testing"

func TestDistanceBucket(t *testing.T) {
	cases := []struct {
		distance, want int
	}{
		{0, 1}, {24, 1}, {25, 2}, {49, 2}, {50, 3}, {99, 4}, {100, 5}, {149, 5},
	}
	for _, c := range cases {
		if got := DistanceBucket(c.distance, 150, 6); got != c.want {
			t.Errorf("DistanceBucket(%d) = %d, want %d", c.distance, got, c.want)
		}
	}
}

func TestStartHourBucket(t *testing.T) {
	// divisor 25 leaves hour 0-2 in bucket 0 and hour 23 in bucket 11
	want := []int{0, 0, 0, 1, 1, 2, 2, 3, 3, 4, 4, 5, 5, 6, 6, 7, 7, 8, 8, 9, 9, 10, 10, 11}
	for h, w := range want {
		if got := StartHourBucket(h, 12); got != w {
			t.Errorf("StartHourBucket(%d) = %d, want %d", h, got, w)
		}
	}
}

func TestBucketsSaturate(t *testing.T) {
	for d := 0; d < 10_000; d++ {
		if b := DistanceBucket(d, 150, 6); b > 5 || b < 1 {
			t.Fatalf("DistanceBucket(%d) = %d out of [1,5]", d, b)
		}
	}
	for h := 0; h < 48; h++ {
		if b := StartHourBucket(h, 12); b > 11 || b < 0 {
			t.Fatalf("StartHourBucket(%d) = %d out of [0,11]", h, b)
		}
	}
}
