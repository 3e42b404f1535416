package geo

import (
	"errors"
	"math"
	"testing"
)

func TestDistanceKm(t *testing.T) {
	tests := []struct {
		name string
		a, b Point
		want float64
		tol  float64
	}{
		{"same point", Point{48.8566, 2.3522}, Point{48.8566, 2.3522}, 0, 1e-9},
		{"paris to london", Point{48.8566, 2.3522}, Point{51.5074, -0.1278}, 343.5, 2},
		{"quarter meridian", Point{0, 0}, Point{90, 0}, math.Pi * EarthRadiusKm / 2, 1e-6},
		{"antipodal", Point{0, 0}, Point{0, 180}, math.Pi * EarthRadiusKm, 1e-6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DistanceKm(tt.a, tt.b)
			if math.Abs(got-tt.want) > tt.tol {
				t.Fatalf("DistanceKm = %v, want %v±%v", got, tt.want, tt.tol)
			}
			if back := DistanceKm(tt.b, tt.a); math.Abs(back-got) > 1e-9 {
				t.Fatalf("distance not symmetric: %v vs %v", got, back)
			}
		})
	}
}

func TestPointValidate(t *testing.T) {
	if err := (Point{Lat: 45, Lon: 120}).Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, p := range []Point{{Lat: 91}, {Lon: -181}, {Lat: math.NaN()}} {
		if err := p.Validate(); !errors.Is(err, ErrInvalidCoordinate) {
			t.Fatalf("point %+v: expected ErrInvalidCoordinate, got %v", p, err)
		}
	}
}
