package location

import (
	"math"
	"testing"
)

func TestDistance(t *testing.T) {
	sf := Coordinates{Latitude: 37.7749, Longitude: -122.4194}
	la := Coordinates{Latitude: 34.0522, Longitude: -118.2437}

	t.Run("Same point is zero", func(t *testing.T) {
		if d := Distance(sf, sf); d != 0 {
			t.Errorf("expected 0, got %v", d)
		}
	})

	t.Run("Symmetric", func(t *testing.T) {
		ab := Distance(sf, la)
		ba := Distance(la, sf)
		if math.Abs(ab-ba) > 1e-6 {
			t.Errorf("expected symmetric distance, got %v and %v", ab, ba)
		}
	})

	t.Run("Known distance", func(t *testing.T) {
		// San Francisco to Los Angeles is roughly 559 km.
		d := Distance(sf, la)
		if d < 555000 || d > 563000 {
			t.Errorf("expected about 559km, got %.0fm", d)
		}
	})

	t.Run("One degree north at the equator", func(t *testing.T) {
		// Walk 111,320m north and check the latitude moved by about one degree.
		origin := Coordinates{Latitude: 0, Longitude: 12.5}
		deltaDeg := 111320 / EarthRadiusMeters * 180 / math.Pi
		north := Coordinates{Latitude: deltaDeg, Longitude: 12.5}
		if math.Abs(deltaDeg-1.0) > 0.01 {
			t.Errorf("expected ~1 degree, got %v", deltaDeg)
		}
		if d := Distance(origin, north); math.Abs(d-111320) > 1 {
			t.Errorf("expected 111320m, got %v", d)
		}
	})
}

func TestParseCoordinates(t *testing.T) {
	tests := []struct {
		in   string
		ok   bool
		want Coordinates
	}{
		{"37.7749, -122.4194", true, Coordinates{37.7749, -122.4194}},
		{"37.7749,-122.4194", true, Coordinates{37.7749, -122.4194}},
		{"  -33.8688 , 151.2093 ", true, Coordinates{-33.8688, 151.2093}},
		{"Golden Gate Park", false, Coordinates{}},
		{"", false, Coordinates{}},
		{"91, 0", false, Coordinates{}},
		{"1, 2, 3", false, Coordinates{}},
		{"12 Main St, Springfield", false, Coordinates{}},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseCoordinates(tt.in)
			if ok != tt.ok {
				t.Fatalf("ParseCoordinates(%q) ok = %v, want %v", tt.in, ok, tt.ok)
			}
			if ok && got != tt.want {
				t.Errorf("ParseCoordinates(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestCoordinatesLabel(t *testing.T) {
	c := Coordinates{Latitude: 47.60621, Longitude: -122.33207}
	if got := c.Label(); got != "Lat: 47.6062, Long: -122.3321" {
		t.Errorf("unexpected label %q", got)
	}
}
