package geo

import (
	"math"
	"testing"

	"github.com/example/visit-trip-linker/internal/models"
)

func TestGeodesicZero(t *testing.T) {
	p := models.Coord{Lat: 59.3293, Lon: 18.0686}
	if d := Geodesic(p, p); d != 0 {
		t.Fatalf("expected 0, got %f", d)
	}
}

func TestGeodesicKnownDistances(t *testing.T) {
	tests := []struct {
		name      string
		a, b      models.Coord
		want      float64
		tolerance float64
	}{
		{
			name:      "one millidegree of latitude near Stockholm",
			a:         models.Coord{Lat: 59.3290, Lon: 18.0686},
			b:         models.Coord{Lat: 59.3300, Lon: 18.0686},
			want:      111.4,
			tolerance: 0.5,
		},
		{
			name:      "equator one degree of longitude",
			a:         models.Coord{Lat: 0, Lon: 0},
			b:         models.Coord{Lat: 0, Lon: 1},
			want:      111319.49,
			tolerance: 0.1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Geodesic(tt.a, tt.b)
			if math.Abs(got-tt.want) > tt.tolerance {
				t.Errorf("Geodesic() = %f, want %f (±%f)", got, tt.want, tt.tolerance)
			}
		})
	}
}

func TestGeodesicCloseToHaversine(t *testing.T) {
	a := models.Coord{Lat: 57.7089, Lon: 11.9746}
	b := models.Coord{Lat: 57.7095, Lon: 11.9760}
	g, h := Geodesic(a, b), Haversine(a, b)
	if math.Abs(g-h)/g > 0.005 {
		t.Fatalf("geodesic %f and haversine %f differ by more than 0.5%%", g, h)
	}
}

func TestRoundMetersHalfToEven(t *testing.T) {
	cases := map[float64]int{0.4: 0, 0.5: 0, 1.5: 2, 2.5: 2, 149.6: 150}
	for in, want := range cases {
		if got := RoundMeters(in); got != want {
			t.Errorf("RoundMeters(%v) = %d, want %d", in, got, want)
		}
	}
}

func TestByName(t *testing.T) {
	for _, name := range []string{"", "geodesic", "haversine"} {
		if _, err := ByName(name); err != nil {
			t.Errorf("ByName(%q): %v", name, err)
		}
	}
	if _, err := ByName("euclidean"); err == nil {
		t.Fatal("expected error for unknown model")
	}
}
