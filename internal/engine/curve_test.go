package engine

import (
	"math"
	"testing"
)

const (
	testHouseEdge = 0.06
	testCap       = 25.0
)

func TestCrashPointKnownDraws(t *testing.T) {
	cases := []struct {
		name string
		r    uint16
		want float64
	}{
		{
			name: "MinimumDrawClampsToCap",
			r:    0,
			want: 25.0,
		},
		{
			name: "MaximumDrawFlooredToOne",
			r:    65535, // U = 1, raw value 0.94
			want: 1.0,
		},
		{
			name: "MidRangeDraw",
			r:    32767, // U = 0.5
			want: 1.88,
		},
	}

	for _, tc := range cases {
		tc := tc

		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got := CrashPoint(tc.r, testHouseEdge, testCap)
			if math.Abs(got-tc.want) > 1e-9 {
				t.Errorf("unexpected crash point, want: %f, got: %f", tc.want, got)
			}
		})
	}
}

func TestCrashPointFormula(t *testing.T) {
	// Uncapped, unfloored draws must match the inverse-CDF formula exactly.
	for _, r := range []uint16{100, 1000, 5000, 20000, 50000} {
		u := (float64(r) + 1) / 65536.0
		want := (1 - testHouseEdge) / u
		if want > testCap {
			want = testCap
		}
		if want < 1.0 {
			want = 1.0
		}

		got := CrashPoint(r, testHouseEdge, testCap)
		if got != want {
			t.Errorf("r=%d: want %f, got %f", r, want, got)
		}
	}
}

func TestCrashPointRange(t *testing.T) {
	// Every possible draw must land in [1, cap].
	for r := 0; r <= 65535; r++ {
		got := CrashPoint(uint16(r), testHouseEdge, testCap)
		if got < 1.0 {
			t.Fatalf("r=%d: crash point %f below 1.0", r, got)
		}
		if got > testCap {
			t.Fatalf("r=%d: crash point %f above cap", r, got)
		}
	}
}

func TestMultiplierCurve(t *testing.T) {
	k := GrowthRate(3.4, 20)

	if got := Multiplier(0, k, testCap); got != 1.0 {
		t.Errorf("multiplier at t=0 should be 1.0, got %f", got)
	}

	// The curve is tuned to hit the target multiplier at the target time.
	if got := Multiplier(20, k, testCap); math.Abs(got-3.4) > 1e-9 {
		t.Errorf("multiplier at target time should be 3.4, got %f", got)
	}

	// Far past the cap crossing, the curve pins to the cap.
	if got := Multiplier(1000, k, testCap); got != testCap {
		t.Errorf("multiplier should cap at %f, got %f", testCap, got)
	}
}

func TestMultiplierMonotonic(t *testing.T) {
	k := GrowthRate(3.4, 20)

	prev := 0.0
	for i := 0; i <= 2000; i++ {
		tSec := float64(i) * 0.05
		got := Multiplier(tSec, k, testCap)
		if got < prev {
			t.Fatalf("multiplier decreased at t=%f: %f -> %f", tSec, prev, got)
		}
		prev = got
	}
}
